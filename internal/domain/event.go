package domain

import "time"

// StatusChanged is emitted after a transition changed a member's status.
type StatusChanged struct {
	UserID         int64
	Username       string
	PreviousStatus Status
	NewStatus      Status
	Timestamp      time.Time
}

// WorkSummary is emitted after a transition closed a work session.
type WorkSummary struct {
	UserID          int64
	Username        string
	DurationMinutes int
	BreakMinutes    int
	WorkLogSnapshot string
	Timestamp       time.Time
}

// Notifier delivers events to an external messaging collaborator. Calls must
// not block and must not report delivery failures to the caller.
type Notifier interface {
	StatusChanged(event StatusChanged)
	WorkSummary(event WorkSummary)
}
