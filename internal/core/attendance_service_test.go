package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/geo"
	"attendance.service/internal/ports/repository"
	"attendance.service/internal/token"
)

var (
	office     = geo.Point{Latitude: 37.5665, Longitude: 126.9780}
	acrossTown = geo.Point{Latitude: 37.4979, Longitude: 127.0276}
)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
}

type mockBusinessRepo struct {
	getLocationFn  func(ctx context.Context, businessID string) (*repository.BusinessLocation, error)
	isAuthorizedFn func(ctx context.Context, employeeID, businessID string) (bool, error)
}

func (m *mockBusinessRepo) GetLocation(ctx context.Context, businessID string) (*repository.BusinessLocation, error) {
	if m.getLocationFn != nil {
		return m.getLocationFn(ctx, businessID)
	}
	return &repository.BusinessLocation{Point: office, RadiusMeters: 100}, nil
}

func (m *mockBusinessRepo) IsAuthorized(ctx context.Context, employeeID, businessID string) (bool, error) {
	if m.isAuthorizedFn != nil {
		return m.isAuthorizedFn(ctx, employeeID, businessID)
	}
	return true, nil
}

type mockProducer struct {
	mu       sync.Mutex
	payroll  []interface{}
	emails   []interface{}
	publishE error
}

func (m *mockProducer) PublishPayroll(_ context.Context, body interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payroll = append(m.payroll, body)
	return m.publishE
}

func (m *mockProducer) PublishEmail(_ context.Context, body interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, body)
	return m.publishE
}

type fixture struct {
	svc      *AttendanceService
	codec    *token.Codec
	store    *repository.MemoryStore
	biz      *mockBusinessRepo
	producer *mockProducer
}

func newFixture() *fixture {
	codec := token.NewCodec("test-signing-secret")
	store := repository.NewMemoryStore()
	biz := &mockBusinessRepo{}
	producer := &mockProducer{}
	return &fixture{
		svc:      NewAttendanceService(codec, store, biz, producer),
		codec:    codec,
		store:    store,
		biz:      biz,
		producer: producer,
	}
}

func (f *fixture) checkIn(t *testing.T, employeeID string, now time.Time) *model.AttendanceDay {
	t.Helper()
	tok, err := f.codec.Issue("biz-1", now)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	day, err := f.svc.CheckIn(context.Background(), employeeID, "biz-1", tok, office, now)
	if err != nil {
		t.Fatalf("check in: %v", err)
	}
	return day
}

func coreErr(t *testing.T, err error) *Error {
	t.Helper()
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *core.Error, got %T: %v", err, err)
	}
	return ce
}

func TestCheckInHappyPath(t *testing.T) {
	f := newFixture()
	day := f.checkIn(t, "emp-1", at(9, 0))

	if day.Status != model.StatusWorking {
		t.Errorf("expected WORKING, got %s", day.Status)
	}
	if !day.CheckInTime.Equal(at(9, 0)) {
		t.Errorf("expected check-in at 09:00, got %v", day.CheckInTime)
	}

	stored, _ := f.store.GetDay(context.Background(), repository.Key{
		EmployeeID: "emp-1", BusinessID: "biz-1", WorkDate: "2025-06-02",
	})
	if stored == nil || stored.Status != model.StatusWorking {
		t.Fatal("expected stored day in WORKING state")
	}
}

func TestCheckInRejectsBadTokens(t *testing.T) {
	f := newFixture()
	now := at(9, 0)

	otherBiz, _ := f.codec.Issue("biz-2", now)
	expired, _ := f.codec.Issue("biz-1", now.Add(-time.Minute))
	foreign, _ := token.NewCodec("another-secret").Issue("biz-1", now)

	cases := []struct {
		name       string
		tok        string
		wantReason string
	}{
		{"garbage", "not-a-token", "malformed"},
		{"business mismatch", otherBiz, "business-mismatch"},
		{"expired", expired, "expired"},
		{"wrong secret", foreign, "bad-signature"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CheckIn(context.Background(), "emp-1", "biz-1", tc.tok, office, now)
			ce := coreErr(t, err)
			if ce.Code != CodeInvalidToken {
				t.Errorf("expected INVALID_TOKEN, got %s", ce.Code)
			}
			if ce.Reason != tc.wantReason {
				t.Errorf("expected reason %q, got %q", tc.wantReason, ce.Reason)
			}

			// No record may be created on a rejected scan.
			day, _ := f.store.GetDay(context.Background(), repository.Key{
				EmployeeID: "emp-1", BusinessID: "biz-1", WorkDate: "2025-06-02",
			})
			if day != nil {
				t.Error("attendance day created despite invalid token")
			}
		})
	}
}

func TestCheckInOutOfRange(t *testing.T) {
	f := newFixture()
	now := at(9, 0)
	tok, _ := f.codec.Issue("biz-1", now)

	_, err := f.svc.CheckIn(context.Background(), "emp-1", "biz-1", tok, acrossTown, now)
	if ce := coreErr(t, err); ce.Code != CodeOutOfRange {
		t.Errorf("expected OUT_OF_RANGE, got %s", ce.Code)
	}
}

func TestCheckInLocationNotConfigured(t *testing.T) {
	f := newFixture()
	f.biz.getLocationFn = func(context.Context, string) (*repository.BusinessLocation, error) {
		return nil, nil
	}

	now := at(9, 0)
	tok, _ := f.codec.Issue("biz-1", now)
	_, err := f.svc.CheckIn(context.Background(), "emp-1", "biz-1", tok, office, now)
	if ce := coreErr(t, err); ce.Code != CodeLocationNotConfigured {
		t.Errorf("expected LOCATION_NOT_CONFIGURED, got %s", ce.Code)
	}
}

func TestCheckInNotAuthorized(t *testing.T) {
	f := newFixture()
	f.biz.isAuthorizedFn = func(context.Context, string, string) (bool, error) {
		return false, nil
	}

	now := at(9, 0)
	tok, _ := f.codec.Issue("biz-1", now)
	_, err := f.svc.CheckIn(context.Background(), "emp-1", "biz-1", tok, office, now)
	if ce := coreErr(t, err); ce.Code != CodeNotAuthorized {
		t.Errorf("expected NOT_AUTHORIZED, got %s", ce.Code)
	}
}

func TestCheckInStoreUnavailable(t *testing.T) {
	f := newFixture()
	f.biz.getLocationFn = func(context.Context, string) (*repository.BusinessLocation, error) {
		return nil, errors.New("connection refused")
	}

	now := at(9, 0)
	tok, _ := f.codec.Issue("biz-1", now)
	_, err := f.svc.CheckIn(context.Background(), "emp-1", "biz-1", tok, office, now)
	if ce := coreErr(t, err); ce.Code != CodeStoreUnavailable {
		t.Errorf("expected STORE_UNAVAILABLE, got %s", ce.Code)
	}
}

func TestDoubleCheckInConflicts(t *testing.T) {
	f := newFixture()
	first := f.checkIn(t, "emp-1", at(9, 0))

	tok, _ := f.codec.Issue("biz-1", at(9, 5))
	_, err := f.svc.CheckIn(context.Background(), "emp-1", "biz-1", tok, office, at(9, 5))
	ce := coreErr(t, err)
	if ce.Code != CodeAlreadyCheckedIn {
		t.Fatalf("expected ALREADY_CHECKED_IN, got %s", ce.Code)
	}
	if ce.Day == nil || !ce.Day.CheckInTime.Equal(first.CheckInTime) {
		t.Error("expected conflict to carry the existing day state")
	}
}

func TestNonceReplayRejected(t *testing.T) {
	f := newFixture()
	now := at(9, 0)
	tok, _ := f.codec.Issue("biz-1", now)

	if _, err := f.svc.CheckIn(context.Background(), "emp-1", "biz-1", tok, office, now); err != nil {
		t.Fatalf("first check-in: %v", err)
	}

	// Same employee, same token, different day bucket would be needed for
	// a state conflict; replay must be caught at the token layer first.
	_, err := f.svc.CheckIn(context.Background(), "emp-1", "biz-1", tok, office, now.Add(time.Second))
	ce := coreErr(t, err)
	if ce.Code != CodeInvalidToken || ce.Reason != "replayed" {
		t.Errorf("expected replayed INVALID_TOKEN, got %s/%s", ce.Code, ce.Reason)
	}
}

func TestSameTokenUsableByOtherEmployees(t *testing.T) {
	f := newFixture()
	now := at(9, 0)
	tok, _ := f.codec.Issue("biz-1", now)

	// Several employees scanning the one displayed QR within its window is
	// the normal case and must all succeed.
	for _, emp := range []string{"emp-1", "emp-2", "emp-3"} {
		if _, err := f.svc.CheckIn(context.Background(), emp, "biz-1", tok, office, now); err != nil {
			t.Fatalf("check-in for %s: %v", emp, err)
		}
	}
}

func TestConcurrentCheckInRace(t *testing.T) {
	f := newFixture()
	now := at(9, 0)

	const racers = 8
	results := make(chan error, racers)
	var start sync.WaitGroup
	start.Add(1)

	for i := 0; i < racers; i++ {
		tok, _ := f.codec.Issue("biz-1", now)
		go func(tok string) {
			start.Wait()
			_, err := f.svc.CheckIn(context.Background(), "emp-1", "biz-1", tok, office, now)
			results <- err
		}(tok)
	}
	start.Done()

	var wins, conflicts int
	for i := 0; i < racers; i++ {
		err := <-results
		if err == nil {
			wins++
			continue
		}
		if ce := coreErr(t, err); ce.Code == CodeAlreadyCheckedIn {
			conflicts++
		} else {
			t.Errorf("unexpected error code %s", ce.Code)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one winning check-in, got %d", wins)
	}
	if conflicts != racers-1 {
		t.Errorf("expected %d conflicts, got %d", racers-1, conflicts)
	}
}

func TestFullDayFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.checkIn(t, "emp-1", at(9, 0))

	if _, err := f.svc.StartBreak(ctx, "emp-1", "biz-1", at(12, 0)); err != nil {
		t.Fatalf("start break: %v", err)
	}
	if _, err := f.svc.EndBreak(ctx, "emp-1", "biz-1", at(12, 30)); err != nil {
		t.Fatalf("end break: %v", err)
	}

	day, err := f.svc.CheckOut(ctx, "emp-1", "biz-1", at(18, 0))
	if err != nil {
		t.Fatalf("check out: %v", err)
	}
	if day.AccumulatedBreakMinutes != 30 {
		t.Errorf("expected 30 break minutes, got %d", day.AccumulatedBreakMinutes)
	}
	if day.TotalWorkMinutes != 510 {
		t.Errorf("expected 510 work minutes, got %d", day.TotalWorkMinutes)
	}

	if len(f.producer.payroll) != 1 || len(f.producer.emails) != 1 {
		t.Errorf("expected one payroll and one email event, got %d/%d",
			len(f.producer.payroll), len(f.producer.emails))
	}
}

func TestCheckOutSucceedsWhenPublishFails(t *testing.T) {
	f := newFixture()
	f.producer.publishE = errors.New("queue unreachable")

	f.checkIn(t, "emp-1", at(9, 0))
	day, err := f.svc.CheckOut(context.Background(), "emp-1", "biz-1", at(17, 0))
	if err != nil {
		t.Fatalf("check out must not fail on publish error: %v", err)
	}
	if day.Status != model.StatusCompleted {
		t.Errorf("expected COMPLETED, got %s", day.Status)
	}
}

func TestTransitionsWithoutCheckIn(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ops := map[string]func() (*model.AttendanceDay, error){
		"start break": func() (*model.AttendanceDay, error) { return f.svc.StartBreak(ctx, "emp-1", "biz-1", at(10, 0)) },
		"end break":   func() (*model.AttendanceDay, error) { return f.svc.EndBreak(ctx, "emp-1", "biz-1", at(10, 0)) },
		"check out":   func() (*model.AttendanceDay, error) { return f.svc.CheckOut(ctx, "emp-1", "biz-1", at(10, 0)) },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			_, err := op()
			if ce := coreErr(t, err); ce.Code != CodeNotCheckedIn {
				t.Errorf("expected NOT_CHECKED_IN, got %s", ce.Code)
			}
		})
	}
}

func TestInvalidTransitionIsConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.checkIn(t, "emp-1", at(9, 0))
	if _, err := f.svc.CheckOut(ctx, "emp-1", "biz-1", at(17, 0)); err != nil {
		t.Fatalf("check out: %v", err)
	}

	_, err := f.svc.StartBreak(ctx, "emp-1", "biz-1", at(17, 30))
	ce := coreErr(t, err)
	if ce.Code != CodeConflict {
		t.Fatalf("expected CONFLICT, got %s", ce.Code)
	}
	if ce.Day == nil || ce.Day.Status != model.StatusCompleted {
		t.Error("expected conflict to carry the completed day")
	}
}

func TestGetStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.svc.GetStatus(ctx, "emp-1", "biz-1", at(8, 0))
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if view.Status != model.StatusNotStarted {
		t.Errorf("expected NOT_STARTED before check-in, got %s", view.Status)
	}

	f.checkIn(t, "emp-1", at(9, 0))
	view, err = f.svc.GetStatus(ctx, "emp-1", "biz-1", at(11, 0))
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if view.Status != model.StatusWorking || view.LiveWorkingMinutes != 120 {
		t.Errorf("expected WORKING/120, got %s/%d", view.Status, view.LiveWorkingMinutes)
	}

	if _, err := f.svc.StartBreak(ctx, "emp-1", "biz-1", at(12, 0)); err != nil {
		t.Fatalf("start break: %v", err)
	}
	view, _ = f.svc.GetStatus(ctx, "emp-1", "biz-1", at(12, 20))
	if view.Status != model.StatusOnBreak || view.DisplayBreakMinutes != 20 {
		t.Errorf("expected ON_BREAK/20, got %s/%d", view.Status, view.DisplayBreakMinutes)
	}

	// The in-progress break shown by the read must not have been committed.
	day, _ := f.store.GetDay(ctx, repository.Key{EmployeeID: "emp-1", BusinessID: "biz-1", WorkDate: "2025-06-02"})
	if day.AccumulatedBreakMinutes != 0 {
		t.Errorf("GetStatus mutated stored break minutes: %d", day.AccumulatedBreakMinutes)
	}
}

func TestConcurrentBreakToggles(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.checkIn(t, "emp-1", at(9, 0))

	// Two simultaneous start-break taps: exactly one transition applies,
	// the other observes the new state and conflicts.
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := f.svc.StartBreak(ctx, "emp-1", "biz-1", at(12, 0))
			results <- err
		}()
	}

	var ok, conflict int
	for i := 0; i < 2; i++ {
		if err := <-results; err == nil {
			ok++
		} else if ce := coreErr(t, err); ce.Code == CodeConflict {
			conflict++
		}
	}
	if ok != 1 || conflict != 1 {
		t.Errorf("expected 1 success and 1 conflict, got %d/%d", ok, conflict)
	}
}
