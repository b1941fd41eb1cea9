package model

import "time"

// RefreshStatus is the state of one recorded refresh cycle.
type RefreshStatus string

const (
	RefreshRunning  RefreshStatus = "running"
	RefreshComplete RefreshStatus = "complete"
	RefreshFailed   RefreshStatus = "failed"
)

// RefreshRun is one row of the refresh log.
type RefreshRun struct {
	ID          int64          `json:"id"`
	Strategy    string         `json:"strategy"`
	Status      RefreshStatus  `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	RowsSynced  int64          `json:"rows_synced"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
