package repository

import (
	"context"
	"errors"

	"attendance.service/internal/core/model"
	"attendance.service/internal/geo"
)

var (
	// ErrDuplicateDay means a day record already exists for the key.
	ErrDuplicateDay = errors.New("repository: attendance day already exists")
	// ErrVersionMismatch means the compare-and-swap lost against a
	// concurrent writer; the caller should re-read and retry.
	ErrVersionMismatch = errors.New("repository: version mismatch")
)

// Key identifies one attendance day.
type Key struct {
	EmployeeID string
	BusinessID string
	WorkDate   string
}

// Repository is the attendance day store contract. GetDay returns (nil, nil)
// when no record exists. UpdateDay is an optimistic compare-and-swap on the
// record's version: it writes day with version expectedVersion+1 only if the
// stored version still equals expectedVersion.
type Repository interface {
	GetDay(ctx context.Context, key Key) (*model.AttendanceDay, error)
	CreateDay(ctx context.Context, day model.AttendanceDay) error
	UpdateDay(ctx context.Context, day model.AttendanceDay, expectedVersion int64) error
	UpdatePayrollStatus(ctx context.Context, key Key, status model.ExportStatus, retryCount int) error
	UpdateEmailStatus(ctx context.Context, key Key, status model.ExportStatus, retryCount int) error
}

// BusinessLocation is a business's registered reference point and allowed
// check-in radius.
type BusinessLocation struct {
	Point        geo.Point
	RadiusMeters float64
}

// BusinessRepository resolves per-business configuration and the opaque
// employment authorization check. GetLocation returns (nil, nil) when the
// business has no registered location.
type BusinessRepository interface {
	GetLocation(ctx context.Context, businessID string) (*BusinessLocation, error)
	IsAuthorized(ctx context.Context, employeeID, businessID string) (bool, error)
}
