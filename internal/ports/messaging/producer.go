package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// QueueProducer marshals events and routes them to the payroll or email
// queue through a MessageSender.
type QueueProducer struct {
	sender          MessageSender
	payrollQueueURL string
	emailQueueURL   string
}

func NewProducer(sender MessageSender, payrollQueueURL, emailQueueURL string) *QueueProducer {
	return &QueueProducer{
		sender:          sender,
		payrollQueueURL: payrollQueueURL,
		emailQueueURL:   emailQueueURL,
	}
}

// NewSQSProducer builds a producer backed by an AWS SQS sender.
func NewSQSProducer(client SQSClient, payrollQueueURL, emailQueueURL string) *QueueProducer {
	return NewProducer(&SQSSender{client: client}, payrollQueueURL, emailQueueURL)
}

func (p *QueueProducer) PublishPayroll(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.payrollQueueURL, body)
}

func (p *QueueProducer) PublishEmail(ctx context.Context, body interface{}) error {
	return p.publish(ctx, p.emailQueueURL, body)
}

func (p *QueueProducer) publish(ctx context.Context, destination string, body interface{}) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}

	// Enrich the current span with employee_id if available
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		var payload struct {
			EmployeeID string `json:"employeeId"`
		}
		if err := json.Unmarshal(b, &payload); err == nil && payload.EmployeeID != "" {
			span.SetAttributes(attribute.String("app.employee_id", payload.EmployeeID))
		}
	}

	if err := p.sender.SendMessage(ctx, destination, b); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

var _ Producer = (*QueueProducer)(nil)
