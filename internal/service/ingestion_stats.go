package service

import (
	"fmt"
	"sync"
	"time"
)

// IngestionStats tracks one results ingestion run.
type IngestionStats struct {
	mu               sync.RWMutex
	StartTime        time.Time
	Duration         time.Duration
	Fetched          int
	Stored           int
	Settled          int
	ValidationErrors int
	Errors           int
}

// NewIngestionStats creates a tracker started at now.
func NewIngestionStats(now time.Time) *IngestionStats {
	return &IngestionStats{StartTime: now}
}

func (m *IngestionStats) addFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fetched += n
}

func (m *IngestionStats) addStored(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stored += n
}

func (m *IngestionStats) recordSettled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Settled++
}

func (m *IngestionStats) recordValidationError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ValidationErrors++
}

func (m *IngestionStats) recordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors++
}

func (m *IngestionStats) finish(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Duration = now.Sub(m.StartTime)
}

// String returns a one-line summary.
func (m *IngestionStats) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rate := float64(0)
	if m.Fetched > 0 {
		rate = float64(m.Stored) / float64(m.Fetched) * 100
	}
	return fmt.Sprintf(
		"IngestionStats{Fetched=%d, Stored=%d (%.1f%%), Settled=%d, ValidationErrors=%d, Errors=%d, Duration=%v}",
		m.Fetched, m.Stored, rate, m.Settled, m.ValidationErrors, m.Errors, m.Duration,
	)
}
