package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"attendance.service/internal/token"
)

// Fires concurrent check-ins at a locally running API. Tokens are minted
// here with the same signing secret the server uses, so every request
// carries a valid scan for the target business.
func main() {
	url := "http://localhost:8080/api/v1/attendance/check-in"
	contentType := "application/json"
	businessID := "load-test-biz"

	secret := os.Getenv("TOKEN_SIGNING_SECRET")
	if secret == "" {
		secret = "local-dev-secret-do-not-use"
	}
	codec := token.NewCodec(secret)

	numEmployees := 5000
	concurrency := 50 // Number of concurrent requests to avoid local port exhaustion

	fmt.Printf("Starting load test: %d employees to %s with concurrency %d\n", numEmployees, url, concurrency)

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // Semaphore to limit concurrency

	var successCount int64
	var failCount int64

	startTime := time.Now()

	for i := 0; i < numEmployees; i++ {
		wg.Add(1)
		sem <- struct{}{} // Acquire token

		employeeID := fmt.Sprintf("load-test-emp-%d", i)

		go func(empID string) {
			defer wg.Done()
			defer func() { <-sem }() // Release token

			scan, err := codec.Issue(businessID, time.Now().UTC())
			if err != nil {
				atomic.AddInt64(&failCount, 1)
				return
			}

			payload := []byte(fmt.Sprintf(
				`{"employeeId": "%s", "businessId": "%s", "token": "%s", "latitude": 37.5665, "longitude": 126.9780}`,
				empID, businessID, scan))

			resp, err := http.Post(url, contentType, bytes.NewBuffer(payload))
			if err != nil {
				atomic.AddInt64(&failCount, 1)
				return
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				atomic.AddInt64(&successCount, 1)
			} else {
				atomic.AddInt64(&failCount, 1)
			}
			resp.Body.Close()
		}(employeeID)
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", numEmployees)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(numEmployees)/duration.Seconds())
}
