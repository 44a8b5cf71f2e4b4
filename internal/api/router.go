package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"attendance.service/internal/api/handler"
)

// NewRouter sets up the gorilla/mux router and defines all API routes.
func NewRouter(service handler.AttendanceService, sessions handler.QRSessions) *mux.Router {

	attendanceHandler := handler.AttendanceHandler{
		Service:  service,
		Sessions: sessions,
		Now:      func() time.Time { return time.Now().UTC() },
	}

	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/attendance/check-in", attendanceHandler.CheckIn).Methods(http.MethodPost)
	api.HandleFunc("/attendance/check-out", attendanceHandler.CheckOut).Methods(http.MethodPost)
	api.HandleFunc("/attendance/break/start", attendanceHandler.StartBreak).Methods(http.MethodPost)
	api.HandleFunc("/attendance/break/end", attendanceHandler.EndBreak).Methods(http.MethodPost)
	api.HandleFunc("/attendance/status", attendanceHandler.GetStatus).Methods(http.MethodGet)

	api.HandleFunc("/qr-sessions/{businessId}", attendanceHandler.StartQRSession).Methods(http.MethodPost)
	api.HandleFunc("/qr-sessions/{businessId}", attendanceHandler.StopQRSession).Methods(http.MethodDelete)
	api.HandleFunc("/qr-sessions/{businessId}/token", attendanceHandler.CurrentQRToken).Methods(http.MethodGet)

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}
