package domain

import (
	"context"
	"fmt"
	"time"
)

// Status is a member's presence indicator.
type Status string

const (
	StatusHome    Status = "home"
	StatusWorking Status = "working"
	StatusBreak   Status = "break"
)

// Valid reports whether s is one of the three presence values.
func (s Status) Valid() bool {
	switch s {
	case StatusHome, StatusWorking, StatusBreak:
		return true
	}
	return false
}

// ParseStatus converts a raw value into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// ClosesSession reports whether moving from previous to next ends a work
// session: working -> home and break -> home.
func ClosesSession(previous, next Status) bool {
	return next == StatusHome && (previous == StatusWorking || previous == StatusBreak)
}

// StatusRecord is the persisted current status of a single user.
type StatusRecord struct {
	UserID      int64
	Status      Status
	LastUpdated time.Time
}

// MemberPresence is a user joined with their status record. Members that
// never transitioned have a zero LastUpdated and StatusHome.
type MemberPresence struct {
	UserID      int64
	DisplayName string
	Status      Status
	LastUpdated *time.Time
}

// StatusRepository persists one StatusRecord per user.
type StatusRepository interface {
	Get(ctx context.Context, userID int64) (*StatusRecord, error)
	Upsert(ctx context.Context, record *StatusRecord) error
	ListMembers(ctx context.Context) ([]MemberPresence, error)
}
