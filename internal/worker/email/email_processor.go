package email

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

type EmailProcessor struct {
	emailService core.EmailService
	repo         repository.Repository
	// emailDomain turns an employee ID into a mailbox until the platform
	// exposes a proper directory lookup.
	emailDomain string
}

// NewProcessor sets up a new processor for handling email-related jobs.
// It needs an email service to send emails and a repository to update the job status.
func NewProcessor(emailService core.EmailService, repo repository.Repository, emailDomain string) *EmailProcessor {
	return &EmailProcessor{
		emailService: emailService,
		repo:         repo,
		emailDomain:  emailDomain,
	}
}

// Process is the main entry point for handling a message from the email queue.
// It tries to send a checkout summary and will tell the worker to retry if something goes wrong.
func (p *EmailProcessor) Process(ctx context.Context, msg types.Message) (bool, int32, error) {
	var event messaging.EmailEvent
	if err := json.Unmarshal([]byte(*msg.Body), &event); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to unmarshal email event")
		return false, 0, err // Do not retry on malformed message
	}

	key := repository.Key{EmployeeID: event.EmployeeID, BusinessID: event.BusinessID, WorkDate: event.WorkDate}

	day, err := p.repo.GetDay(ctx, key)
	if err != nil {
		// If we can't get the record, retry after a short delay.
		return true, 10, fmt.Errorf("failed to get day from db for email processing: %w", err)
	}
	if day == nil {
		return false, 0, fmt.Errorf("no attendance day for event %s", event.EventID)
	}

	if day.EmailStatus == model.ExportCompleted {
		log.Ctx(ctx).Info().Str("work_date", event.WorkDate).Msg("Email already sent. Skipping.")
		return false, 0, nil
	}

	to := event.EmployeeID + "@" + p.emailDomain
	err = p.emailService.SendCheckOutSummary(ctx, to, event.TotalWorkMinutes, event.BreakMinutes)
	if err != nil {
		newCount := day.EmailRetryCount + 1
		p.repo.UpdateEmailStatus(ctx, key, model.ExportPending, newCount)

		delay := calculateBackoff(newCount)
		return true, delay, err
	}

	err = p.repo.UpdateEmailStatus(ctx, key, model.ExportCompleted, 0)
	return false, 0, err
}

// calculateBackoff determines how long to wait before retrying a failed job.
// It increases the delay exponentially with each retry to avoid overwhelming a struggling service.
func calculateBackoff(retryCount int) int32 {
	backoff := int32(math.Pow(2, float64(retryCount)) * 10)
	if backoff > 3600 { // Cap at 1 hour
		return 3600
	}
	return backoff
}
