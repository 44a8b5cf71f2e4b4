package core

import (
	"context"
	"errors"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/geo"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"attendance.service/internal/token"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// casAttempts bounds the read-validate-write retry loop when a concurrent
// writer bumps the version under us.
const casAttempts = 3

// TokenVerifier validates a scanned token against a business. Satisfied by
// token.Codec.
type TokenVerifier interface {
	Verify(tok, expectedBusinessID string, now time.Time) (*token.Claims, error)
}

// AttendanceService is the only entry point external callers use for
// attendance mutations. It sequences token and geofence validation before
// any state change, and serializes writes per (employee, business, day)
// through the repository's compare-and-swap.
//
// Callers supply now explicitly; the service never reads a wall clock.
type AttendanceService struct {
	tokens     TokenVerifier
	repo       repository.Repository
	businesses repository.BusinessRepository
	producer   messaging.Producer
	nonces     *nonceCache
}

// NewAttendanceService wires up the verifier, the two repositories and the
// event producer.
func NewAttendanceService(tokens TokenVerifier, repo repository.Repository, businesses repository.BusinessRepository, producer messaging.Producer) *AttendanceService {
	return &AttendanceService{
		tokens:     tokens,
		repo:       repo,
		businesses: businesses,
		producer:   producer,
		nonces:     newNonceCache(),
	}
}

// CheckIn validates the scanned token and the device position, then creates
// the day record in WORKING state. Validation order: token, authorization,
// business location, geofence, state. When two check-ins race for the same
// key, the storage unique key lets exactly one create the record; the loser
// gets ALREADY_CHECKED_IN with the winner's state.
func (s *AttendanceService) CheckIn(ctx context.Context, employeeID, businessID, scannedToken string, observed geo.Point, now time.Time) (*model.AttendanceDay, error) {
	claims, err := s.tokens.Verify(scannedToken, businessID, now)
	if err != nil {
		return nil, newError(CodeInvalidToken, tokenReason(err), err)
	}

	if s.nonces.consumed(businessID, claims.Nonce, employeeID, now) {
		return nil, newError(CodeInvalidToken, "replayed", nil)
	}

	authorized, err := s.businesses.IsAuthorized(ctx, employeeID, businessID)
	if err != nil {
		return nil, newError(CodeStoreUnavailable, "authorization lookup failed", err)
	}
	if !authorized {
		return nil, newError(CodeNotAuthorized, "no active employment at business", nil)
	}

	loc, err := s.businesses.GetLocation(ctx, businessID)
	if err != nil {
		return nil, newError(CodeStoreUnavailable, "location lookup failed", err)
	}
	if loc == nil {
		return nil, newError(CodeLocationNotConfigured, "business has no registered location", nil)
	}

	if !geo.WithinRadius(loc.Point, observed, loc.RadiusMeters) {
		return nil, newError(CodeOutOfRange, "device outside allowed radius", nil)
	}

	day := model.NewDay(employeeID, businessID, now)
	if err := s.repo.CreateDay(ctx, day); err != nil {
		if errors.Is(err, repository.ErrDuplicateDay) {
			existing, getErr := s.repo.GetDay(ctx, keyFor(employeeID, businessID, now))
			if getErr != nil {
				return nil, newError(CodeStoreUnavailable, "reading existing day failed", getErr)
			}
			return nil, conflictError(CodeAlreadyCheckedIn, existing)
		}
		return nil, newError(CodeStoreUnavailable, "creating day failed", err)
	}
	day.Version = 1

	// Consume the nonce only after the check-in committed, so a geofence
	// or conflict failure does not burn a still-valid code.
	s.nonces.record(businessID, claims.Nonce, employeeID, claims.ExpiresAt, now)

	log.Ctx(ctx).Info().
		Str("employee_id", employeeID).
		Str("business_id", businessID).
		Str("work_date", day.WorkDate).
		Msg("Employee checked in")
	return &day, nil
}

// StartBreak transitions the current day WORKING -> ON_BREAK.
func (s *AttendanceService) StartBreak(ctx context.Context, employeeID, businessID string, now time.Time) (*model.AttendanceDay, error) {
	return s.transition(ctx, employeeID, businessID, now, func(d model.AttendanceDay) (model.AttendanceDay, error) {
		return d.StartBreak(now)
	})
}

// EndBreak transitions ON_BREAK -> WORKING, committing the finished break.
func (s *AttendanceService) EndBreak(ctx context.Context, employeeID, businessID string, now time.Time) (*model.AttendanceDay, error) {
	return s.transition(ctx, employeeID, businessID, now, func(d model.AttendanceDay) (model.AttendanceDay, error) {
		return d.EndBreak(now)
	})
}

// CheckOut completes the day and publishes the payroll and email events.
// Event publishing is best-effort: the completed day is already committed,
// failures are logged and retried by the export workers' queues.
func (s *AttendanceService) CheckOut(ctx context.Context, employeeID, businessID string, now time.Time) (*model.AttendanceDay, error) {
	day, err := s.transition(ctx, employeeID, businessID, now, func(d model.AttendanceDay) (model.AttendanceDay, error) {
		return d.CheckOut(now)
	})
	if err != nil {
		return nil, err
	}

	s.publishCompletion(ctx, day, now)
	return day, nil
}

// GetStatus is a pure read: it computes the live view from a consistent
// snapshot of the current day and never mutates state.
func (s *AttendanceService) GetStatus(ctx context.Context, employeeID, businessID string, now time.Time) (*model.StatusView, error) {
	day, err := s.repo.GetDay(ctx, keyFor(employeeID, businessID, now))
	if err != nil {
		return nil, newError(CodeStoreUnavailable, "reading day failed", err)
	}
	if day == nil {
		return &model.StatusView{Status: model.StatusNotStarted}, nil
	}
	view := day.Live(now)
	return &view, nil
}

// transition runs the guarded read-validate-write cycle for one key. A lost
// compare-and-swap means another request committed between our read and
// write; we re-read and re-validate, so an event that became invalid (e.g.
// the racing request already checked out) surfaces as a conflict, never a
// double apply.
func (s *AttendanceService) transition(ctx context.Context, employeeID, businessID string, now time.Time, apply func(model.AttendanceDay) (model.AttendanceDay, error)) (*model.AttendanceDay, error) {
	key := keyFor(employeeID, businessID, now)

	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := s.repo.GetDay(ctx, key)
		if err != nil {
			return nil, newError(CodeStoreUnavailable, "reading day failed", err)
		}
		if current == nil {
			return nil, newError(CodeNotCheckedIn, "no attendance record for today", nil)
		}

		next, err := apply(*current)
		if err != nil {
			return nil, conflictError(CodeConflict, current)
		}

		err = s.repo.UpdateDay(ctx, next, current.Version)
		if errors.Is(err, repository.ErrVersionMismatch) {
			continue
		}
		if err != nil {
			return nil, newError(CodeStoreUnavailable, "writing day failed", err)
		}
		next.Version = current.Version + 1
		return &next, nil
	}

	return nil, newError(CodeConflict, "too many concurrent updates", nil)
}

func (s *AttendanceService) publishCompletion(ctx context.Context, day *model.AttendanceDay, now time.Time) {
	checkOut := now
	if day.CheckOutTime != nil {
		checkOut = *day.CheckOutTime
	}

	completed := messaging.AttendanceCompletedEvent{
		EventID:                 uuid.NewString(),
		EmployeeID:              day.EmployeeID,
		BusinessID:              day.BusinessID,
		WorkDate:                day.WorkDate,
		CheckInTime:             day.CheckInTime,
		CheckOutTime:            checkOut,
		TotalWorkMinutes:        day.TotalWorkMinutes,
		AccumulatedBreakMinutes: day.AccumulatedBreakMinutes,
	}
	if err := s.producer.PublishPayroll(ctx, completed); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("employee_id", day.EmployeeID).Msg("Failed to publish payroll event")
	}

	email := messaging.EmailEvent{
		EventID:          uuid.NewString(),
		EmployeeID:       day.EmployeeID,
		BusinessID:       day.BusinessID,
		WorkDate:         day.WorkDate,
		TotalWorkMinutes: day.TotalWorkMinutes,
		BreakMinutes:     day.AccumulatedBreakMinutes,
		OccurredAt:       now,
	}
	if err := s.producer.PublishEmail(ctx, email); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("employee_id", day.EmployeeID).Msg("Failed to publish email event")
	}
}

func keyFor(employeeID, businessID string, now time.Time) repository.Key {
	return repository.Key{
		EmployeeID: employeeID,
		BusinessID: businessID,
		WorkDate:   now.UTC().Format(model.DateLayout),
	}
}

func tokenReason(err error) string {
	switch {
	case errors.Is(err, token.ErrMalformed):
		return "malformed"
	case errors.Is(err, token.ErrBadSignature):
		return "bad-signature"
	case errors.Is(err, token.ErrBusinessMismatch):
		return "business-mismatch"
	case errors.Is(err, token.ErrExpired):
		return "expired"
	default:
		return "invalid"
	}
}
