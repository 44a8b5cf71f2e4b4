package payroll

import (
	"context"
	"errors"
	"testing"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type mockHRClient struct {
	recordFn func(ctx context.Context, event messaging.AttendanceCompletedEvent) error
	calls    int
}

func (m *mockHRClient) RecordAttendance(ctx context.Context, event messaging.AttendanceCompletedEvent) error {
	m.calls++
	if m.recordFn != nil {
		return m.recordFn(ctx, event)
	}
	return nil
}

func seedCompletedDay(t *testing.T, store *repository.MemoryStore) model.AttendanceDay {
	t.Helper()
	checkIn := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	day := model.NewDay("emp-1", "biz-1", checkIn)
	if err := store.CreateDay(context.Background(), day); err != nil {
		t.Fatalf("seeding day: %v", err)
	}
	completed, err := day.CheckOut(checkIn.Add(8 * time.Hour))
	if err != nil {
		t.Fatalf("completing day: %v", err)
	}
	if err := store.UpdateDay(context.Background(), completed, 1); err != nil {
		t.Fatalf("storing completed day: %v", err)
	}
	completed.Version = 2
	return completed
}

func eventMessage(t *testing.T, day model.AttendanceDay) types.Message {
	t.Helper()
	body := `{"eventId":"evt-1","employeeId":"` + day.EmployeeID + `","businessId":"` + day.BusinessID +
		`","workDate":"` + day.WorkDate + `","totalWorkMinutes":480}`
	return types.Message{Body: aws.String(body), MessageId: aws.String("msg-1")}
}

func TestProcessExportsAndMarksCompleted(t *testing.T) {
	store := repository.NewMemoryStore()
	day := seedCompletedDay(t, store)
	client := &mockHRClient{}
	p := NewProcessor(store, client)

	retry, _, err := p.Process(context.Background(), eventMessage(t, day))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if retry {
		t.Error("expected no retry on success")
	}
	if client.calls != 1 {
		t.Errorf("expected 1 HR API call, got %d", client.calls)
	}

	stored, _ := store.GetDay(context.Background(), repository.Key{
		EmployeeID: day.EmployeeID, BusinessID: day.BusinessID, WorkDate: day.WorkDate,
	})
	if stored.PayrollStatus != model.ExportCompleted {
		t.Errorf("expected payroll status COMPLETED, got %s", stored.PayrollStatus)
	}
}

func TestProcessSkipsAlreadyExported(t *testing.T) {
	store := repository.NewMemoryStore()
	day := seedCompletedDay(t, store)
	key := repository.Key{EmployeeID: day.EmployeeID, BusinessID: day.BusinessID, WorkDate: day.WorkDate}
	store.UpdatePayrollStatus(context.Background(), key, model.ExportCompleted, 0)

	client := &mockHRClient{}
	p := NewProcessor(store, client)

	retry, _, err := p.Process(context.Background(), eventMessage(t, day))
	if err != nil || retry {
		t.Fatalf("expected clean skip, got retry=%v err=%v", retry, err)
	}
	if client.calls != 0 {
		t.Errorf("expected no HR API call for exported day, got %d", client.calls)
	}
}

func TestProcessRetriesOnAPIFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	day := seedCompletedDay(t, store)
	client := &mockHRClient{
		recordFn: func(context.Context, messaging.AttendanceCompletedEvent) error {
			return errors.New("hr system down")
		},
	}
	p := NewProcessor(store, client)

	retry, delay, err := p.Process(context.Background(), eventMessage(t, day))
	if err == nil {
		t.Fatal("expected error")
	}
	if !retry {
		t.Error("expected retry on API failure")
	}
	if delay <= 0 {
		t.Errorf("expected positive backoff delay, got %d", delay)
	}

	stored, _ := store.GetDay(context.Background(), repository.Key{
		EmployeeID: day.EmployeeID, BusinessID: day.BusinessID, WorkDate: day.WorkDate,
	})
	if stored.PayrollRetryCount != 1 {
		t.Errorf("expected retry count 1, got %d", stored.PayrollRetryCount)
	}
}

func TestProcessDropsMalformedMessage(t *testing.T) {
	store := repository.NewMemoryStore()
	p := NewProcessor(store, &mockHRClient{})

	msg := types.Message{Body: aws.String("not-json"), MessageId: aws.String("msg-1")}
	retry, _, err := p.Process(context.Background(), msg)
	if err == nil {
		t.Fatal("expected error for malformed message")
	}
	if retry {
		t.Error("malformed messages must not be retried")
	}
}
