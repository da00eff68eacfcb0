package domain

import (
	"context"
	"time"
)

// DateLayout is the layout of WorkSession.Date.
const DateLayout = "2006-01-02"

// WorkSession is one check-in/check-out pair. A session without a check-out
// time is open; a user has at most one open session.
type WorkSession struct {
	ID              int64
	UserID          int64
	Date            string // business-timezone day of CheckInTime, YYYY-MM-DD
	CheckInTime     time.Time
	CheckOutTime    *time.Time
	DurationMinutes *int
}

// IsOpen reports whether the session has not been checked out yet.
func (s *WorkSession) IsOpen() bool {
	return s.CheckOutTime == nil
}

// Close checks the session out at the given instant and records the
// whole-minute duration.
func (s *WorkSession) Close(at time.Time) {
	d := ElapsedMinutes(s.CheckInTime, at)
	s.CheckOutTime = &at
	s.DurationMinutes = &d
}

// Minutes returns the recorded duration, or 0 for an open session.
func (s *WorkSession) Minutes() int {
	if s.DurationMinutes == nil {
		return 0
	}
	return *s.DurationMinutes
}

// ElapsedMinutes returns the floor of the wall-clock minutes between from and
// to, clamped at zero.
func ElapsedMinutes(from, to time.Time) int {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int(d / time.Minute)
}

// WorkSessionRepository persists work sessions.
type WorkSessionRepository interface {
	// Create inserts an open session. It returns ErrOpenSessionExists when the
	// user already has an open session.
	Create(ctx context.Context, session *WorkSession) error
	// Close stores the check-out time and duration of an open session. It
	// returns ErrNotFound when the session is missing or already closed.
	Close(ctx context.Context, session *WorkSession) error
	// GetOpenByUser returns the most recently opened session without a
	// check-out time.
	GetOpenByUser(ctx context.Context, userID int64) (*WorkSession, error)
	// GetLatestByUser returns the most recently opened session regardless of
	// check-out state.
	GetLatestByUser(ctx context.Context, userID int64) (*WorkSession, error)
	ListByUserAndDate(ctx context.Context, userID int64, date string) ([]WorkSession, error)
	// ListInRange returns sessions whose date lies in [from, to]. A userID of
	// zero selects every user.
	ListInRange(ctx context.Context, userID int64, from, to string) ([]WorkSession, error)
}
