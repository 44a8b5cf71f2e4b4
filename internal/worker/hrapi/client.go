package hrapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"attendance.service/internal/ports/messaging"
	"github.com/rs/zerolog/log"
)

// Client contract for the downstream HR/payroll system
type Client interface {
	RecordAttendance(ctx context.Context, event messaging.AttendanceCompletedEvent) error
}

// HTTPClient API client using HTTP
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient new HTTPClient
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
	}
}

// RecordAttendance posts the completed day to the HR/payroll API.
func (c *HTTPClient) RecordAttendance(ctx context.Context, event messaging.AttendanceCompletedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal hr api payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create hr api request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call hr api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("hr api returned non-successful status code: %d", resp.StatusCode)
	}

	log.Ctx(ctx).Info().Str("employee_id", event.EmployeeID).Str("work_date", event.WorkDate).
		Msg("Recorded attendance in HR system")
	return nil
}
