package repository

import (
	"context"
	"database/sql"
	"time"

	"attendance.service/internal/core/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AttendanceDayRepository is the concrete implementation for a PostgreSQL
// database. One row per (employee_id, business_id, work_date); the version
// column backs the optimistic compare-and-swap.
type AttendanceDayRepository struct {
	DB *sql.DB
}

// NewAttendanceDayRepository create new instance
func NewAttendanceDayRepository(db *sql.DB) Repository {
	return &AttendanceDayRepository{DB: db}
}

// GetDay fetches the day record for a key, or (nil, nil) when none exists.
func (r *AttendanceDayRepository) GetDay(ctx context.Context, key Key) (*model.AttendanceDay, error) {
	annotate(ctx, key.EmployeeID)

	query := `SELECT status, check_in_time, check_out_time, break_start_time,
	                 accumulated_break_minutes, total_work_minutes,
	                 payroll_status, payroll_retry_count, email_status, email_retry_count, version
              FROM attendance_days
              WHERE employee_id = $1 AND business_id = $2 AND work_date = $3`

	day := &model.AttendanceDay{
		EmployeeID: key.EmployeeID,
		BusinessID: key.BusinessID,
		WorkDate:   key.WorkDate,
	}
	var checkOut, breakStart sql.NullTime
	var payrollStatus, emailStatus sql.NullString

	row := r.DB.QueryRowContext(ctx, query, key.EmployeeID, key.BusinessID, key.WorkDate)
	err := row.Scan(&day.Status, &day.CheckInTime, &checkOut, &breakStart,
		&day.AccumulatedBreakMinutes, &day.TotalWorkMinutes,
		&payrollStatus, &day.PayrollRetryCount, &emailStatus, &day.EmailRetryCount, &day.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if checkOut.Valid {
		t := checkOut.Time
		day.CheckOutTime = &t
	}
	if breakStart.Valid {
		t := breakStart.Time
		day.BreakStartTime = &t
	}
	if payrollStatus.Valid {
		day.PayrollStatus = model.ExportStatus(payrollStatus.String)
	}
	if emailStatus.Valid {
		day.EmailStatus = model.ExportStatus(emailStatus.String)
	}
	return day, nil
}

// CreateDay inserts the first record of the day. The unique key on
// (employee_id, business_id, work_date) makes a racing second check-in lose
// with ErrDuplicateDay instead of creating a duplicate row.
func (r *AttendanceDayRepository) CreateDay(ctx context.Context, day model.AttendanceDay) error {
	annotate(ctx, day.EmployeeID)

	query := `INSERT INTO attendance_days
	            (employee_id, business_id, work_date, status, check_in_time,
	             accumulated_break_minutes, total_work_minutes, version)
              VALUES ($1, $2, $3, $4, $5, 0, 0, 1)
              ON CONFLICT (employee_id, business_id, work_date) DO NOTHING`

	res, err := r.DB.ExecContext(ctx, query,
		day.EmployeeID, day.BusinessID, day.WorkDate, day.Status, day.CheckInTime)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrDuplicateDay
	}
	return nil
}

// UpdateDay writes the new state only if the stored version still matches
// expectedVersion. A concurrent writer makes this fail with
// ErrVersionMismatch; the caller re-reads and retries the transition.
func (r *AttendanceDayRepository) UpdateDay(ctx context.Context, day model.AttendanceDay, expectedVersion int64) error {
	annotate(ctx, day.EmployeeID)

	query := `UPDATE attendance_days
              SET status = $1,
                  check_out_time = $2,
                  break_start_time = $3,
                  accumulated_break_minutes = $4,
                  total_work_minutes = $5,
                  payroll_status = $6,
                  email_status = $7,
                  version = $8
              WHERE employee_id = $9 AND business_id = $10 AND work_date = $11 AND version = $12`

	res, err := r.DB.ExecContext(ctx, query,
		day.Status, nullTime(day.CheckOutTime), nullTime(day.BreakStartTime),
		day.AccumulatedBreakMinutes, day.TotalWorkMinutes,
		nullStatus(day.PayrollStatus), nullStatus(day.EmailStatus),
		expectedVersion+1,
		day.EmployeeID, day.BusinessID, day.WorkDate, expectedVersion)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionMismatch
	}
	return nil
}

// UpdatePayrollStatus updates the status and retry count for the payroll
// export job. Used only by background workers, never part of the CAS flow.
func (r *AttendanceDayRepository) UpdatePayrollStatus(ctx context.Context, key Key, status model.ExportStatus, retryCount int) error {
	query := `UPDATE attendance_days
              SET payroll_status = $1,
                  payroll_retry_count = $2
              WHERE employee_id = $3 AND business_id = $4 AND work_date = $5`

	_, err := r.DB.ExecContext(ctx, query, status, retryCount, key.EmployeeID, key.BusinessID, key.WorkDate)
	return err
}

// UpdateEmailStatus updates the status and retry count for the summary
// email job.
func (r *AttendanceDayRepository) UpdateEmailStatus(ctx context.Context, key Key, status model.ExportStatus, retryCount int) error {
	query := `UPDATE attendance_days
              SET email_status = $1,
                  email_retry_count = $2
              WHERE employee_id = $3 AND business_id = $4 AND work_date = $5`

	_, err := r.DB.ExecContext(ctx, query, status, retryCount, key.EmployeeID, key.BusinessID, key.WorkDate)
	return err
}

func annotate(ctx context.Context, employeeID string) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("app.employee_id", employeeID))
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullStatus(s model.ExportStatus) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(s), Valid: true}
}
