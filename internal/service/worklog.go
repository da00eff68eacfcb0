package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/msomdec/workville/internal/domain"
)

const (
	defaultLogLimit     = 10
	maxLogLimit         = 100
	defaultTeamLogLimit = 50
	maxTeamLogLimit     = 200
)

// WorkLogService keeps one journal per member and business day. Entries
// written during later sessions of the same day are merged into it.
type WorkLogService struct {
	logs      domain.WorkLogRepository
	templates domain.WorkLogTemplateRepository
	sessions  domain.WorkSessionRepository
	calendar  Calendar
	clock     Clock
	locks     *keyedMutex
}

// NewWorkLogService creates a WorkLogService. A nil clock means SystemClock.
func NewWorkLogService(logs domain.WorkLogRepository, templates domain.WorkLogTemplateRepository, sessions domain.WorkSessionRepository, calendar Calendar, clock Clock) *WorkLogService {
	if clock == nil {
		clock = SystemClock
	}
	return &WorkLogService{
		logs:      logs,
		templates: templates,
		sessions:  sessions,
		calendar:  calendar,
		clock:     clock,
		locks:     newKeyedMutex(),
	}
}

// day validates an optional YYYY-MM-DD value, defaulting to today.
func (s *WorkLogService) day(date string) (string, error) {
	if date == "" {
		return s.calendar.Day(s.clock.Now()), nil
	}
	if _, err := s.calendar.ParseDay(date); err != nil {
		return "", err
	}
	return date, nil
}

// Record merges entry into the member's log for date, creating the log when
// the day has none. merged reports whether an existing log was extended. An
// empty entry is rejected with ErrInvalidInput.
func (s *WorkLogService) Record(ctx context.Context, userID int64, date string, entry domain.WorkLogEntry) (log *domain.WorkLog, merged bool, err error) {
	if userID <= 0 {
		return nil, false, domain.ErrUnauthorized
	}
	if entry.IsEmpty() {
		return nil, false, fmt.Errorf("%w: work log is empty", domain.ErrInvalidInput)
	}
	date, err = s.day(date)
	if err != nil {
		return nil, false, err
	}

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	now := s.clock.Now()
	existing, err := s.logs.GetByUserAndDate(ctx, userID, date)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		log = domain.NewWorkLog(userID, date, entry)
		log.CreatedAt, log.UpdatedAt = now, now
		if err := s.logs.Create(ctx, log); err != nil {
			return nil, false, fmt.Errorf("create work log: %w", err)
		}
		return log, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("get work log: %w", err)
	}

	existing.Merge(entry)
	existing.UpdatedAt = now
	if err := s.logs.Update(ctx, existing); err != nil {
		return nil, false, fmt.Errorf("update work log: %w", err)
	}
	return existing, true, nil
}

// Edit replaces the contents of one of the member's logs.
func (s *WorkLogService) Edit(ctx context.Context, userID, id int64, entry domain.WorkLogEntry) (*domain.WorkLog, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	log, err := s.logs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if log.UserID != userID {
		return nil, domain.ErrNotFound
	}

	log.Replace(entry)
	log.UpdatedAt = s.clock.Now()
	if err := s.logs.Update(ctx, log); err != nil {
		return nil, err
	}
	return log, nil
}

// List returns the log for date when one is given, otherwise the member's
// most recent logs.
func (s *WorkLogService) List(ctx context.Context, userID int64, date string, limit int) ([]domain.WorkLog, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	if date != "" {
		if _, err := s.calendar.ParseDay(date); err != nil {
			return nil, err
		}
		log, err := s.logs.GetByUserAndDate(ctx, userID, date)
		if errors.Is(err, domain.ErrNotFound) {
			return []domain.WorkLog{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []domain.WorkLog{*log}, nil
	}
	return s.logs.ListByUser(ctx, userID, clampLimit(limit, defaultLogLimit, maxLogLimit))
}

// WorkLogDay is the member's current session context and the log it writes to.
type WorkLogDay struct {
	Active *domain.WorkSession
	Last   *domain.WorkSession
	// SessionDate is the date of the active session, or of the last one.
	SessionDate string
	// Log is never nil; a day without a stored log yields an empty one with
	// ID 0.
	Log *domain.WorkLog
}

// Today resolves which day's log the member is writing. An explicit date
// wins; otherwise an active session keeps its check-in day, so a session
// running past midnight still writes to the day it started.
func (s *WorkLogService) Today(ctx context.Context, userID int64, date string) (*WorkLogDay, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	if date != "" {
		if _, err := s.calendar.ParseDay(date); err != nil {
			return nil, err
		}
	}

	day := &WorkLogDay{}
	var err error
	day.Active, err = s.sessions.GetOpenByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get open session: %w", err)
	}
	day.Last, err = s.sessions.GetLatestByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get latest session: %w", err)
	}
	switch {
	case day.Active != nil:
		day.SessionDate = day.Active.Date
	case day.Last != nil:
		day.SessionDate = day.Last.Date
	}

	logDate := date
	if logDate == "" && day.Active != nil {
		logDate = day.Active.Date
	}
	if logDate == "" {
		logDate = s.calendar.Day(s.clock.Now())
	}

	day.Log, err = s.logs.GetByUserAndDate(ctx, userID, logDate)
	if errors.Is(err, domain.ErrNotFound) {
		day.Log, err = domain.NewWorkLog(userID, logDate, domain.WorkLogEntry{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get work log: %w", err)
	}
	return day, nil
}

// Snapshot returns the stored content of the member's log for date, or ""
// when there is none.
func (s *WorkLogService) Snapshot(ctx context.Context, userID int64, date string) (string, error) {
	log, err := s.logs.GetByUserAndDate(ctx, userID, date)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return log.Content, nil
}

// TeamLogPage is one page of the team feed.
type TeamLogPage struct {
	Logs   []domain.TeamLog
	Total  int
	Limit  int
	Offset int
}

// Team lists logs across members, newest first, each joined with the work
// sessions its author had on that day.
func (s *WorkLogService) Team(ctx context.Context, filter domain.WorkLogFilter) (*TeamLogPage, error) {
	for _, d := range []string{filter.StartDate, filter.EndDate} {
		if d == "" {
			continue
		}
		if _, err := s.calendar.ParseDay(d); err != nil {
			return nil, err
		}
	}
	if filter.Offset < 0 {
		return nil, fmt.Errorf("%w: negative offset", domain.ErrInvalidInput)
	}
	filter.Limit = clampLimit(filter.Limit, defaultTeamLogLimit, maxTeamLogLimit)

	logs, total, err := s.logs.ListTeam(ctx, filter)
	if err != nil {
		return nil, err
	}
	page := &TeamLogPage{Logs: logs, Total: total, Limit: filter.Limit, Offset: filter.Offset}
	if len(logs) == 0 {
		page.Logs = []domain.TeamLog{}
		return page, nil
	}

	// Logs are newest first, so the page spans [last, first].
	from, to := logs[len(logs)-1].Date, logs[0].Date
	sessions, err := s.sessions.ListInRange(ctx, filter.UserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions for team logs: %w", err)
	}
	type key struct {
		user int64
		date string
	}
	byDay := make(map[key][]domain.WorkSession)
	for _, ws := range sessions {
		k := key{ws.UserID, ws.Date}
		byDay[k] = append(byDay[k], ws)
	}
	for i := range page.Logs {
		l := &page.Logs[i]
		l.Sessions = byDay[key{l.UserID, l.Date}]
	}
	return page, nil
}

// Template returns the shared starting text for new logs.
func (s *WorkLogService) Template(ctx context.Context) (*domain.WorkLogTemplate, error) {
	return s.templates.Get(ctx)
}

// SaveTemplate replaces the shared template on behalf of userID.
func (s *WorkLogService) SaveTemplate(ctx context.Context, userID int64, content string) (*domain.WorkLogTemplate, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: template content is required", domain.ErrInvalidInput)
	}
	tmpl := &domain.WorkLogTemplate{Content: content, UpdatedBy: &userID, UpdatedAt: s.clock.Now()}
	if err := s.templates.Save(ctx, tmpl); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func clampLimit(limit, def, ceiling int) int {
	switch {
	case limit <= 0:
		return def
	case limit > ceiling:
		return ceiling
	}
	return limit
}
