package repository

import (
	"context"
	"sync"

	"attendance.service/internal/core/model"
)

// MemoryStore is an in-memory Repository with the same compare-and-swap
// semantics as the PostgreSQL implementation. It backs tests and local runs
// without a database.
type MemoryStore struct {
	mu   sync.Mutex
	days map[Key]model.AttendanceDay
}

// NewMemoryStore create new instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: make(map[Key]model.AttendanceDay)}
}

func keyOf(day model.AttendanceDay) Key {
	return Key{EmployeeID: day.EmployeeID, BusinessID: day.BusinessID, WorkDate: day.WorkDate}
}

// GetDay returns a copy of the stored day, or (nil, nil) when none exists.
func (s *MemoryStore) GetDay(_ context.Context, key Key) (*model.AttendanceDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	day, ok := s.days[key]
	if !ok {
		return nil, nil
	}
	return &day, nil
}

// CreateDay inserts the first record of the day, failing with
// ErrDuplicateDay when one already exists.
func (s *MemoryStore) CreateDay(_ context.Context, day model.AttendanceDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(day)
	if _, exists := s.days[k]; exists {
		return ErrDuplicateDay
	}
	day.Version = 1
	s.days[k] = day
	return nil
}

// UpdateDay applies the CAS: the write succeeds only if the stored version
// still equals expectedVersion.
func (s *MemoryStore) UpdateDay(_ context.Context, day model.AttendanceDay, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(day)
	stored, exists := s.days[k]
	if !exists || stored.Version != expectedVersion {
		return ErrVersionMismatch
	}
	day.Version = expectedVersion + 1
	s.days[k] = day
	return nil
}

// UpdatePayrollStatus mirrors the worker-side status update.
func (s *MemoryStore) UpdatePayrollStatus(_ context.Context, key Key, status model.ExportStatus, retryCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if day, ok := s.days[key]; ok {
		day.PayrollStatus = status
		day.PayrollRetryCount = retryCount
		s.days[key] = day
	}
	return nil
}

// UpdateEmailStatus mirrors the worker-side status update.
func (s *MemoryStore) UpdateEmailStatus(_ context.Context, key Key, status model.ExportStatus, retryCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if day, ok := s.days[key]; ok {
		day.EmailStatus = status
		day.EmailRetryCount = retryCount
		s.days[key] = day
	}
	return nil
}

var _ Repository = (*MemoryStore)(nil)
