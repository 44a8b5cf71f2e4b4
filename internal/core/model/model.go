package model

import (
	"errors"
	"time"
)

// DateLayout is how work dates are keyed. One AttendanceDay exists per
// employee, business and calendar date.
const DateLayout = "2006-01-02"

// Status is the per-day attendance state.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusWorking    Status = "WORKING"
	StatusOnBreak    Status = "ON_BREAK"
	StatusCompleted  Status = "COMPLETED"
)

// ExportStatus tracks asynchronous post-completion processing (payroll
// export, summary email) for a completed day.
type ExportStatus string

const (
	ExportPending   ExportStatus = "PENDING"
	ExportCompleted ExportStatus = "COMPLETED"
	ExportFailed    ExportStatus = "FAILED"
)

// ErrInvalidTransition is returned for any event applied from a state it is
// not valid in.
var ErrInvalidTransition = errors.New("attendance: invalid state transition")

// AttendanceDay is the single mutable record tracking one employee's
// attendance for one calendar date at one business. It is created on the
// first check-in of the day and becomes immutable once COMPLETED.
//
// Version backs the repository's compare-and-swap; it is owned by the
// storage layer and never changed by transitions.
type AttendanceDay struct {
	EmployeeID string `json:"employeeId"`
	BusinessID string `json:"businessId"`
	WorkDate   string `json:"workDate"`

	Status         Status     `json:"status"`
	CheckInTime    time.Time  `json:"checkInTime"`
	CheckOutTime   *time.Time `json:"checkOutTime,omitempty"`
	BreakStartTime *time.Time `json:"breakStartTime,omitempty"`

	AccumulatedBreakMinutes int `json:"accumulatedBreakMinutes"`
	TotalWorkMinutes        int `json:"totalWorkMinutes"`

	PayrollStatus     ExportStatus `json:"payrollStatus,omitempty"`
	PayrollRetryCount int          `json:"payrollRetryCount,omitempty"`
	EmailStatus       ExportStatus `json:"emailStatus,omitempty"`
	EmailRetryCount   int          `json:"emailRetryCount,omitempty"`

	Version int64 `json:"version"`
}

// NewDay creates the day record for a first check-in. The storage layer's
// unique key guarantees at most one record per (employee, business, date).
func NewDay(employeeID, businessID string, now time.Time) AttendanceDay {
	return AttendanceDay{
		EmployeeID:  employeeID,
		BusinessID:  businessID,
		WorkDate:    now.UTC().Format(DateLayout),
		Status:      StatusWorking,
		CheckInTime: now,
	}
}

// StartBreak transitions WORKING -> ON_BREAK.
func (d AttendanceDay) StartBreak(now time.Time) (AttendanceDay, error) {
	if d.Status != StatusWorking {
		return d, ErrInvalidTransition
	}
	t := now
	d.Status = StatusOnBreak
	d.BreakStartTime = &t
	return d, nil
}

// EndBreak transitions ON_BREAK -> WORKING and folds the finished break
// into the accumulated total. Accumulated break minutes only ever grow.
func (d AttendanceDay) EndBreak(now time.Time) (AttendanceDay, error) {
	if d.Status != StatusOnBreak || d.BreakStartTime == nil {
		return d, ErrInvalidTransition
	}
	d.AccumulatedBreakMinutes += elapsedMinutes(*d.BreakStartTime, now)
	d.Status = StatusWorking
	d.BreakStartTime = nil
	return d, nil
}

// CheckOut transitions WORKING or ON_BREAK -> COMPLETED. An open break is
// closed implicitly first. Total work minutes are the wall span minus
// accumulated breaks, floored at zero.
func (d AttendanceDay) CheckOut(now time.Time) (AttendanceDay, error) {
	if d.Status == StatusOnBreak {
		var err error
		d, err = d.EndBreak(now)
		if err != nil {
			return d, err
		}
	}
	if d.Status != StatusWorking {
		return d, ErrInvalidTransition
	}

	t := now
	d.Status = StatusCompleted
	d.CheckOutTime = &t

	total := elapsedMinutes(d.CheckInTime, now) - d.AccumulatedBreakMinutes
	if total < 0 {
		total = 0
	}
	d.TotalWorkMinutes = total

	d.PayrollStatus = ExportPending
	d.EmailStatus = ExportPending
	return d, nil
}

// StatusView is a pure, point-in-time projection of a day. Computing it
// never mutates the underlying record; an in-progress break appears only in
// the displayed totals.
type StatusView struct {
	Status              Status `json:"status"`
	LiveWorkingMinutes  int    `json:"liveWorkingMinutes"`
	DisplayBreakMinutes int    `json:"displayBreakMinutes"`
}

// Live computes the current working/break minutes for display.
func (d AttendanceDay) Live(now time.Time) StatusView {
	v := StatusView{Status: d.Status, DisplayBreakMinutes: d.AccumulatedBreakMinutes}

	switch d.Status {
	case StatusWorking:
		v.LiveWorkingMinutes = elapsedMinutes(d.CheckInTime, now) - d.AccumulatedBreakMinutes
	case StatusOnBreak:
		if d.BreakStartTime != nil {
			v.DisplayBreakMinutes += elapsedMinutes(*d.BreakStartTime, now)
		}
		v.LiveWorkingMinutes = elapsedMinutes(d.CheckInTime, now) - v.DisplayBreakMinutes
	case StatusCompleted:
		v.LiveWorkingMinutes = d.TotalWorkMinutes
	}

	if v.LiveWorkingMinutes < 0 {
		v.LiveWorkingMinutes = 0
	}
	return v
}

func elapsedMinutes(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}
