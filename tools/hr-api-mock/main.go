package main

import (
	"encoding/json"
	"log"
	"net/http"
)

// A simple struct to capture the incoming event data
type AttendanceEvent struct {
	EventID          string `json:"eventId"`
	EmployeeID       string `json:"employeeId"`
	BusinessID       string `json:"businessId"`
	WorkDate         string `json:"workDate"`
	TotalWorkMinutes int    `json:"totalWorkMinutes"`
}

func attendanceHandler(w http.ResponseWriter, r *http.Request) {
	var event AttendanceEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	log.Printf("Received attendance for EmployeeID: %s, Date: %s, Minutes: %d",
		event.EmployeeID, event.WorkDate, event.TotalWorkMinutes)
	w.WriteHeader(http.StatusOK)
}

func main() {
	http.HandleFunc("/", attendanceHandler)
	log.Println("HR API mock server starting on port 8081...")
	log.Fatal(http.ListenAndServe(":8081", nil))
}
