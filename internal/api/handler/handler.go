package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"attendance.service/internal/core"
	"attendance.service/internal/core/model"
	"attendance.service/internal/geo"
	"github.com/gorilla/mux"
)

// AttendanceService is the orchestrator surface the handlers consume.
type AttendanceService interface {
	CheckIn(ctx context.Context, employeeID, businessID, scannedToken string, observed geo.Point, now time.Time) (*model.AttendanceDay, error)
	StartBreak(ctx context.Context, employeeID, businessID string, now time.Time) (*model.AttendanceDay, error)
	EndBreak(ctx context.Context, employeeID, businessID string, now time.Time) (*model.AttendanceDay, error)
	CheckOut(ctx context.Context, employeeID, businessID string, now time.Time) (*model.AttendanceDay, error)
	GetStatus(ctx context.Context, employeeID, businessID string, now time.Time) (*model.StatusView, error)
}

// QRSessions is the rotating QR session registry consumed by the admin
// endpoints.
type QRSessions interface {
	Start(businessID string) (string, error)
	Stop(businessID string) bool
	CurrentToken(businessID string) (string, bool)
}

// AttendanceHandler serves the attendance and QR session endpoints. Each
// request reads the wall clock once and passes it down; the core never
// reads time itself.
type AttendanceHandler struct {
	Service  AttendanceService
	Sessions QRSessions
	Now      func() time.Time
}

type checkInRequest struct {
	EmployeeID     string  `json:"employeeId"`
	BusinessID     string  `json:"businessId"`
	Token          string  `json:"token"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracyMeters,omitempty"`
}

type attendanceRequest struct {
	EmployeeID string `json:"employeeId"`
	BusinessID string `json:"businessId"`
}

type errorResponse struct {
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Day     *model.AttendanceDay `json:"day,omitempty"`
}

func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.EmployeeID == "" || req.BusinessID == "" || req.Token == "" {
		http.Error(w, "employeeId, businessId and token are required", http.StatusBadRequest)
		return
	}

	observed := geo.Point{Latitude: req.Latitude, Longitude: req.Longitude, AccuracyMeters: req.AccuracyMeters}
	day, err := h.Service.CheckIn(r.Context(), req.EmployeeID, req.BusinessID, req.Token, observed, h.now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, day)
}

func (h *AttendanceHandler) StartBreak(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.Service.StartBreak)
}

func (h *AttendanceHandler) EndBreak(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.Service.EndBreak)
}

func (h *AttendanceHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.applyTransition(w, r, h.Service.CheckOut)
}

func (h *AttendanceHandler) applyTransition(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, employeeID, businessID string, now time.Time) (*model.AttendanceDay, error)) {

	var req attendanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.EmployeeID == "" || req.BusinessID == "" {
		http.Error(w, "employeeId and businessId are required", http.StatusBadRequest)
		return
	}

	day, err := op(r.Context(), req.EmployeeID, req.BusinessID, h.now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (h *AttendanceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	employeeID := r.URL.Query().Get("employeeId")
	businessID := r.URL.Query().Get("businessId")
	if employeeID == "" || businessID == "" {
		http.Error(w, "employeeId and businessId are required", http.StatusBadRequest)
		return
	}

	view, err := h.Service.GetStatus(r.Context(), employeeID, businessID, h.now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *AttendanceHandler) StartQRSession(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessId"]

	tok, err := h.Sessions.Start(businessID)
	if err != nil {
		http.Error(w, "Failed to start QR session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"businessId": businessID, "token": tok})
}

func (h *AttendanceHandler) StopQRSession(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessId"]

	if !h.Sessions.Stop(businessID) {
		http.Error(w, "No running session for business", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AttendanceHandler) CurrentQRToken(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessId"]

	tok, ok := h.Sessions.CurrentToken(businessID)
	if !ok {
		http.Error(w, "No running session for business", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"businessId": businessID, "token": tok})
}

func (h *AttendanceHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// writeError maps typed core failures to HTTP statuses. Domain failures get
// specific codes the client can show; infrastructure failures are 503 and
// retryable.
func (h *AttendanceHandler) writeError(w http.ResponseWriter, err error) {
	var ce *core.Error
	if !errors.As(err, &ce) {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	status := http.StatusInternalServerError
	switch ce.Code {
	case core.CodeInvalidToken:
		status = http.StatusUnauthorized
	case core.CodeNotAuthorized, core.CodeOutOfRange:
		status = http.StatusForbidden
	case core.CodeLocationNotConfigured:
		status = http.StatusNotFound
	case core.CodeAlreadyCheckedIn, core.CodeNotCheckedIn, core.CodeConflict:
		status = http.StatusConflict
	case core.CodeStoreUnavailable:
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, errorResponse{
		Code:    string(ce.Code),
		Message: ce.Error(),
		Day:     ce.Day,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
