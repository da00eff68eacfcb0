package domain

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// WorkLog is a member's journal for one business day. Every session that
// day contributes an entry; entries are merged into the single log.
type WorkLog struct {
	ID               int64
	UserID           int64
	Date             string // YYYY-MM-DD, same calendar as WorkSession.Date
	Content          string
	Todos            []string
	CompletedTodos   []string
	ROIHigh          string
	ROILow           string
	TomorrowPriority string
	Feedback         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WorkLogEntry is what one session contributes to the day's log.
type WorkLogEntry struct {
	Content          string
	Todos            []string
	CompletedTodos   []string
	ROIHigh          string
	ROILow           string
	TomorrowPriority string
	Feedback         string
}

// IsEmpty reports whether the entry carries nothing to store.
func (e WorkLogEntry) IsEmpty() bool {
	return strings.TrimSpace(e.Content) == "" && len(e.Todos) == 0 && len(e.CompletedTodos) == 0 &&
		e.ROIHigh == "" && e.ROILow == "" && e.TomorrowPriority == "" && e.Feedback == ""
}

const (
	sessionSeparator = "\n\n---\n\n"
	fieldSeparator   = "\n---\n"
	sessionMarker    = "[Session "
)

// NewWorkLog starts a day's log from its first entry.
func NewWorkLog(userID int64, date string, e WorkLogEntry) *WorkLog {
	l := &WorkLog{UserID: userID, Date: date}
	l.Replace(e)
	return l
}

// Merge appends a later session's entry. Content is appended under a
// numbered session heading, list items are de-duplicated keeping first
// occurrence, and free-text fields are joined with a separator. Empty parts
// of the entry leave the log untouched.
func (l *WorkLog) Merge(e WorkLogEntry) {
	if content := strings.TrimSpace(e.Content); content != "" {
		if l.Content == "" {
			l.Content = content
		} else {
			n := strings.Count(l.Content, sessionMarker) + 2
			l.Content = fmt.Sprintf("%s%s%s%d]\n%s", l.Content, sessionSeparator, sessionMarker, n, content)
		}
	}
	l.Todos = mergeItems(l.Todos, e.Todos)
	l.CompletedTodos = mergeItems(l.CompletedTodos, e.CompletedTodos)
	l.ROIHigh = mergeText(l.ROIHigh, e.ROIHigh)
	l.ROILow = mergeText(l.ROILow, e.ROILow)
	l.TomorrowPriority = mergeText(l.TomorrowPriority, e.TomorrowPriority)
	l.Feedback = mergeText(l.Feedback, e.Feedback)
}

// Replace overwrites every field with the entry, as an edit does.
func (l *WorkLog) Replace(e WorkLogEntry) {
	l.Content = strings.TrimSpace(e.Content)
	l.Todos = mergeItems(nil, e.Todos)
	l.CompletedTodos = mergeItems(nil, e.CompletedTodos)
	l.ROIHigh = e.ROIHigh
	l.ROILow = e.ROILow
	l.TomorrowPriority = e.TomorrowPriority
	l.Feedback = e.Feedback
}

func mergeItems(existing, added []string) []string {
	out := make([]string, 0, len(existing)+len(added))
	for _, item := range slices.Concat(existing, added) {
		if item = strings.TrimSpace(item); item != "" && !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}

func mergeText(existing, added string) string {
	switch {
	case existing == "":
		return added
	case added == "":
		return existing
	}
	return existing + fieldSeparator + added
}

// TeamLog is a work log joined with its author and that day's sessions.
type TeamLog struct {
	WorkLog
	DisplayName string
	Sessions    []WorkSession
}

// WorkLogFilter narrows a team log listing. Zero values select everything.
type WorkLogFilter struct {
	UserID    int64
	StartDate string
	EndDate   string
	Limit     int
	Offset    int
}

// WorkLogRepository persists one work log per user and day.
type WorkLogRepository interface {
	// Create inserts a new log. It returns ErrDuplicateWorkLog when the user
	// already has a log for that date.
	Create(ctx context.Context, log *WorkLog) error
	// Update rewrites a log owned by log.UserID; ErrNotFound otherwise.
	Update(ctx context.Context, log *WorkLog) error
	GetByID(ctx context.Context, id int64) (*WorkLog, error)
	GetByUserAndDate(ctx context.Context, userID int64, date string) (*WorkLog, error)
	// ListByUser returns the user's most recent logs, newest date first.
	ListByUser(ctx context.Context, userID int64, limit int) ([]WorkLog, error)
	// ListTeam returns logs matching filter with author names, newest date
	// first, and the total number of matches ignoring Limit and Offset.
	ListTeam(ctx context.Context, filter WorkLogFilter) ([]TeamLog, int, error)
}

// WorkLogTemplate is the team-wide starting text for new logs.
type WorkLogTemplate struct {
	Content   string
	UpdatedBy *int64
	UpdatedAt time.Time
}

// WorkLogTemplateRepository stores the single shared template.
type WorkLogTemplateRepository interface {
	Get(ctx context.Context) (*WorkLogTemplate, error)
	Save(ctx context.Context, tmpl *WorkLogTemplate) error
}
