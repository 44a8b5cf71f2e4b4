package payroll

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"attendance.service/internal/worker/hrapi"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// PayrollProcessor handles completed-day events from the payroll queue,
// which involves calling the downstream HR system. It uses a circuit
// breaker to avoid hammering that system if it's having issues.
type PayrollProcessor struct {
	Repo  repository.Repository
	hrapi hrapi.Client
	cb    *gobreaker.CircuitBreaker
}

// NewProcessor creates a new processor for the payroll queue. It sets up a
// circuit breaker to protect the HR API from being overwhelmed.
func NewProcessor(r repository.Repository, client hrapi.Client) *PayrollProcessor {
	settings := gobreaker.Settings{
		Name:        "HR-API",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Trip if failure rate exceeds 50% after at least 10 requests
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}

	return &PayrollProcessor{
		Repo:  r,
		hrapi: client,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

// Process handles one message from the payroll queue. It posts the day to
// the HR API through the circuit breaker and schedules retries with
// exponential backoff via message visibility.
func (p *PayrollProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.AttendanceCompletedEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal payroll event")
		return false, 0, err // Do not retry on malformed message
	}

	key := repository.Key{EmployeeID: event.EmployeeID, BusinessID: event.BusinessID, WorkDate: event.WorkDate}

	day, err := p.Repo.GetDay(ctx, key)
	if err != nil {
		return true, 10, fmt.Errorf("failed to get day from db: %w", err)
	}
	if day == nil {
		return false, 0, fmt.Errorf("no attendance day for event %s", event.EventID)
	}

	if day.PayrollStatus == model.ExportCompleted {
		log.Ctx(ctx).Info().Str("work_date", event.WorkDate).Msg("Payroll export already done. Skipping.")
		return false, 0, nil
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.hrapi.RecordAttendance(ctx, event)
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			log.Ctx(ctx).Warn().Msg("Circuit Breaker is OPEN; skipping HR API call")
		}
		newCount := day.PayrollRetryCount + 1
		p.Repo.UpdatePayrollStatus(ctx, key, model.ExportPending, newCount)

		delay := calculateBackoff(newCount)
		return true, delay, err
	}

	err = p.Repo.UpdatePayrollStatus(ctx, key, model.ExportCompleted, 0)
	return false, 0, err
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 {
		return 3600 // max at 1 hour
	}
	return backoff
}
