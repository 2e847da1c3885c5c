package database

import (
	"time"
)

// Area refresh statuses. Only one caller may move an area into
// StatusRefreshing at a time; the refresh coordinator enforces that.
const (
	StatusIdle       = "idle"
	StatusRefreshing = "refreshing"
	StatusFailed     = "failed"
)

// AreaFreshness tracks when an area was last refreshed and how the last
// attempt went.
type AreaFreshness struct {
	AreaKey         string
	Status          string
	LastRefreshedAt *time.Time
	LastAttemptAt   *time.Time
	ErrorCount      int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stats summarizes store contents for the health endpoint.
type Stats struct {
	TotalDeals int
	TotalAreas int
}
