package service

import (
	"fmt"
	"time"

	"github.com/msomdec/workville/internal/domain"
)

// SessionEffect is the work-session mutation a transition requires.
type SessionEffect int

const (
	SessionNone SessionEffect = iota
	SessionOpen
	SessionClose
)

func (e SessionEffect) String() string {
	switch e {
	case SessionOpen:
		return "open"
	case SessionClose:
		return "close"
	}
	return "none"
}

// Transition is the outcome of DecideTransition. It describes which writes
// the caller must perform; it performs none itself.
type Transition struct {
	UserID   int64
	Previous domain.Status
	Next     domain.Status
	At       time.Time
	Date     string // calendar day of At, used when a session is opened
	Session  SessionEffect
	// Accumulate is set when the closed session's duration must be added to
	// the profile accumulator.
	Accumulate bool
}

// NoOp reports whether the requested status equals the previous one.
func (t Transition) NoOp() bool {
	return t.Previous == t.Next
}

// DecideTransition applies the presence state machine. An empty or unknown
// previous status is treated as home.
func DecideTransition(userID int64, previous, requested domain.Status, now time.Time, cal Calendar) (Transition, error) {
	if !requested.Valid() {
		return Transition{}, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, requested)
	}
	if !previous.Valid() {
		previous = domain.StatusHome
	}

	t := Transition{
		UserID:   userID,
		Previous: previous,
		Next:     requested,
		At:       now,
		Date:     cal.Day(now),
	}

	switch {
	case previous == requested:
		// Idempotent: the status write still happens, nothing else.
	case previous == domain.StatusHome && requested == domain.StatusWorking:
		t.Session = SessionOpen
	case domain.ClosesSession(previous, requested):
		t.Session = SessionClose
		t.Accumulate = true
	case previous == domain.StatusHome && requested == domain.StatusBreak:
		return Transition{}, fmt.Errorf("%w: cannot take a break without an active session", domain.ErrInvalidTransition)
	}
	// working <-> break leave the open session untouched.
	return t, nil
}
