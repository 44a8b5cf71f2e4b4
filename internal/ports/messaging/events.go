package messaging

import "time"

// AttendanceCompletedEvent is the JSON payload sent to the payroll queue
// when a day reaches COMPLETED.
type AttendanceCompletedEvent struct {
	EventID                 string    `json:"eventId"`
	EmployeeID              string    `json:"employeeId"`
	BusinessID              string    `json:"businessId"`
	WorkDate                string    `json:"workDate"`
	CheckInTime             time.Time `json:"checkInTime"`
	CheckOutTime            time.Time `json:"checkOutTime"`
	TotalWorkMinutes        int       `json:"totalWorkMinutes"`
	AccumulatedBreakMinutes int       `json:"accumulatedBreakMinutes"`
}

// EmailEvent is the JSON payload sent to the email queue for the checkout
// summary mail.
type EmailEvent struct {
	EventID          string    `json:"eventId"`
	EmployeeID       string    `json:"employeeId"`
	BusinessID       string    `json:"businessId"`
	WorkDate         string    `json:"workDate"`
	TotalWorkMinutes int       `json:"totalWorkMinutes"`
	BreakMinutes     int       `json:"breakMinutes"`
	OccurredAt       time.Time `json:"occurredAt"`
}
