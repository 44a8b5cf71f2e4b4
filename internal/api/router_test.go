package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"attendance.service/internal/core/model"
	"attendance.service/internal/geo"
)

type stubService struct{}

func (stubService) CheckIn(_ context.Context, employeeID, businessID, _ string, _ geo.Point, now time.Time) (*model.AttendanceDay, error) {
	day := model.NewDay(employeeID, businessID, now)
	return &day, nil
}

func (stubService) StartBreak(context.Context, string, string, time.Time) (*model.AttendanceDay, error) {
	return &model.AttendanceDay{}, nil
}

func (stubService) EndBreak(context.Context, string, string, time.Time) (*model.AttendanceDay, error) {
	return &model.AttendanceDay{}, nil
}

func (stubService) CheckOut(context.Context, string, string, time.Time) (*model.AttendanceDay, error) {
	return &model.AttendanceDay{}, nil
}

func (stubService) GetStatus(context.Context, string, string, time.Time) (*model.StatusView, error) {
	return &model.StatusView{Status: model.StatusNotStarted}, nil
}

type stubSessions struct {
	tokens map[string]string
}

func (s *stubSessions) Start(businessID string) (string, error) {
	if s.tokens == nil {
		s.tokens = map[string]string{}
	}
	s.tokens[businessID] = "tok-" + businessID
	return s.tokens[businessID], nil
}

func (s *stubSessions) Stop(businessID string) bool {
	_, ok := s.tokens[businessID]
	delete(s.tokens, businessID)
	return ok
}

func (s *stubSessions) CurrentToken(businessID string) (string, bool) {
	tok, ok := s.tokens[businessID]
	return tok, ok
}

func TestQRSessionRoutes(t *testing.T) {
	router := NewRouter(stubService{}, &stubSessions{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	// No session yet
	resp, err := http.Get(srv.URL + "/api/v1/qr-sessions/biz-1/token")
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 before session start, got %d", resp.StatusCode)
	}

	// Start a session
	resp, err = http.Post(srv.URL+"/api/v1/qr-sessions/biz-1", "application/json", nil)
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.StatusCode)
	}

	// Token now available
	resp, err = http.Get(srv.URL + "/api/v1/qr-sessions/biz-1/token")
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after start, got %d", resp.StatusCode)
	}

	// Stop it
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/qr-sessions/biz-1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stop session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}

	// Second stop reports missing
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stop session again: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 on double stop, got %d", resp.StatusCode)
	}
}

func TestHealthRoute(t *testing.T) {
	router := NewRouter(stubService{}, &stubSessions{})
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
