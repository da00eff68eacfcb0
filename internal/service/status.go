package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/msomdec/workville/internal/domain"
)

// maxTransitionAttempts bounds the read-decide-write retries after a
// concurrent writer opened a session first.
const maxTransitionAttempts = 3

// StatusService is the only writer of work sessions, status records and
// profile accumulators. Transitions for the same user are serialized and
// each runs inside one storage transaction.
type StatusService struct {
	uow      domain.UnitOfWork
	sessions domain.WorkSessionRepository
	statuses domain.StatusRepository
	users    domain.UserRepository
	calendar Calendar
	clock    Clock
	notifier domain.Notifier
	presence *PresenceHub
	worklogs *WorkLogService
	locks    *keyedMutex
	logger   *slog.Logger
}

// StatusOption customizes a StatusService.
type StatusOption func(*StatusService)

// WithClock overrides the wall clock.
func WithClock(c Clock) StatusOption {
	return func(s *StatusService) { s.clock = c }
}

// WithNotifier sets the outbound event sink.
func WithNotifier(n domain.Notifier) StatusOption {
	return func(s *StatusService) { s.notifier = n }
}

// WithPresenceHub publishes every status change to hub.
func WithPresenceHub(hub *PresenceHub) StatusOption {
	return func(s *StatusService) { s.presence = hub }
}

// WithWorkLogs stores the work log sent with a check-out and uses the
// day's stored log as the summary snapshot.
func WithWorkLogs(w *WorkLogService) StatusOption {
	return func(s *StatusService) { s.worklogs = w }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) StatusOption {
	return func(s *StatusService) { s.logger = l }
}

// NewStatusService creates a StatusService. repos serve reads outside of
// transactions; uow provides the transactional repositories for writes.
func NewStatusService(uow domain.UnitOfWork, repos domain.Repositories, users domain.UserRepository, calendar Calendar, opts ...StatusOption) *StatusService {
	s := &StatusService{
		uow:      uow,
		sessions: repos.Sessions,
		statuses: repos.Statuses,
		users:    users,
		calendar: calendar,
		clock:    SystemClock,
		locks:    newKeyedMutex(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StatusSnapshot is the read model behind GET /status.
type StatusSnapshot struct {
	Status            domain.Status
	LastUpdated       *time.Time
	TodaySessions     []domain.WorkSession
	TotalMinutesToday int
}

// TransitionResult reports what a SetStatus call changed.
type TransitionResult struct {
	PreviousStatus domain.Status
	NewStatus      domain.Status
	At             time.Time
	// PreviousSince is when the previous status was entered; zero when the
	// user had no status record.
	PreviousSince time.Time
	OpenedSession *domain.WorkSession
	ClosedSession *domain.WorkSession
	Profile       *domain.Profile
}

// Changed reports whether the transition moved to a different status.
func (r *TransitionResult) Changed() bool {
	return r.PreviousStatus != r.NewStatus
}

// GetStatus returns the user's live status together with today's sessions.
func (s *StatusService) GetStatus(ctx context.Context, userID int64) (*StatusSnapshot, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}

	now := s.clock.Now()
	snap := &StatusSnapshot{Status: domain.StatusHome}

	rec, err := s.statuses.Get(ctx, userID)
	switch {
	case err == nil:
		snap.Status = rec.Status
		lastUpdated := rec.LastUpdated
		snap.LastUpdated = &lastUpdated
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("get status: %w", err)
	}

	sessions, err := s.sessions.ListByUserAndDate(ctx, userID, s.calendar.Day(now))
	if err != nil {
		return nil, fmt.Errorf("list today's sessions: %w", err)
	}
	snap.TodaySessions = sessions
	snap.TotalMinutesToday = TodayMinutes(sessions, snap.Status, now)
	return snap, nil
}

// TodayMinutes sums closed durations and, while the member is working, the
// elapsed time of the open session. Time spent on break is not counted live.
func TodayMinutes(sessions []domain.WorkSession, live domain.Status, now time.Time) int {
	total := 0
	for i := range sessions {
		if sessions[i].IsOpen() {
			if live == domain.StatusWorking {
				total += domain.ElapsedMinutes(sessions[i].CheckInTime, now)
			}
			continue
		}
		total += sessions[i].Minutes()
	}
	return total
}

// OpenSession returns the user's open session and their most recent session.
// Either may be nil.
func (s *StatusService) OpenSession(ctx context.Context, userID int64) (open, latest *domain.WorkSession, err error) {
	if userID <= 0 {
		return nil, nil, domain.ErrUnauthorized
	}
	open, err = s.sessions.GetOpenByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("get open session: %w", err)
	}
	latest, err = s.sessions.GetLatestByUser(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, fmt.Errorf("get latest session: %w", err)
	}
	return open, latest, nil
}

// ListMembers returns the presence board of the whole team.
func (s *StatusService) ListMembers(ctx context.Context) ([]domain.MemberPresence, error) {
	return s.statuses.ListMembers(ctx)
}

// SetStatus moves the user to the requested status. Session and accumulator
// bookkeeping failures are logged and do not fail the call; a failure to
// write the status itself does, and rolls back everything.
func (s *StatusService) SetStatus(ctx context.Context, userID int64, requested domain.Status, workLog string) (*TransitionResult, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	if !requested.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, requested)
	}

	unlock, err := s.locks.Lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var res *TransitionResult
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		res, err = s.apply(ctx, userID, requested, attempt == maxTransitionAttempts)
		if !errors.Is(err, domain.ErrOpenSessionExists) {
			break
		}
		s.logger.Warn("work session opened concurrently, retrying transition",
			"user_id", userID, "attempt", attempt)
	}
	if err != nil {
		return nil, err
	}

	snapshot := s.recordWorkLog(ctx, userID, res, workLog)
	s.announce(ctx, userID, res, snapshot)
	return res, nil
}

// recordWorkLog files the work log sent with a check-out under the closed
// session's day and returns that day's stored log. Failures are logged and
// fall back to the submitted text.
func (s *StatusService) recordWorkLog(ctx context.Context, userID int64, res *TransitionResult, workLog string) string {
	if s.worklogs == nil || !domain.ClosesSession(res.PreviousStatus, res.NewStatus) {
		return workLog
	}
	date := s.calendar.Day(res.At)
	if res.ClosedSession != nil {
		date = res.ClosedSession.Date
	}

	if strings.TrimSpace(workLog) != "" {
		log, _, err := s.worklogs.Record(ctx, userID, date, domain.WorkLogEntry{Content: workLog})
		if err != nil {
			s.logger.Warn("store work log", "user_id", userID, "date", date, "error", err)
			return workLog
		}
		return log.Content
	}

	snapshot, err := s.worklogs.Snapshot(ctx, userID, date)
	if err != nil {
		s.logger.Warn("load work log snapshot", "user_id", userID, "date", date, "error", err)
	}
	return snapshot
}

func (s *StatusService) apply(ctx context.Context, userID int64, requested domain.Status, adoptOpen bool) (*TransitionResult, error) {
	var res *TransitionResult
	err := s.uow.WithinTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		now := s.clock.Now()

		previous := domain.StatusHome
		var since time.Time
		rec, err := repos.Statuses.Get(ctx, userID)
		switch {
		case err == nil:
			previous = rec.Status
			since = rec.LastUpdated
		case errors.Is(err, domain.ErrNotFound):
		default:
			return fmt.Errorf("get status: %w", err)
		}

		t, err := DecideTransition(userID, previous, requested, now, s.calendar)
		if err != nil {
			return err
		}
		res = &TransitionResult{
			PreviousStatus: t.Previous,
			NewStatus:      t.Next,
			At:             now,
			PreviousSince:  since,
		}

		switch t.Session {
		case SessionOpen:
			if err := s.openSession(ctx, repos, t, res, adoptOpen); err != nil {
				return err
			}
		case SessionClose:
			s.closeSession(ctx, repos, t, res)
		}

		if err := repos.Statuses.Upsert(ctx, &domain.StatusRecord{
			UserID:      userID,
			Status:      t.Next,
			LastUpdated: now,
		}); err != nil {
			return fmt.Errorf("upsert status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// openSession returns an error only for ErrOpenSessionExists when the
// existing session must not be adopted; other failures are logged.
func (s *StatusService) openSession(ctx context.Context, repos domain.Repositories, t Transition, res *TransitionResult, adoptOpen bool) error {
	session := &domain.WorkSession{
		UserID:      t.UserID,
		Date:        t.Date,
		CheckInTime: t.At,
	}
	err := repos.Sessions.Create(ctx, session)
	switch {
	case err == nil:
		res.OpenedSession = session
	case errors.Is(err, domain.ErrOpenSessionExists):
		if !adoptOpen {
			return err
		}
		s.logger.Warn("keeping existing open work session", "user_id", t.UserID)
	default:
		s.logger.Error("open work session", "user_id", t.UserID, "error", err)
	}
	return nil
}

func (s *StatusService) closeSession(ctx context.Context, repos domain.Repositories, t Transition, res *TransitionResult) {
	open, err := repos.Sessions.GetOpenByUser(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("no open work session to close", "user_id", t.UserID)
		} else {
			s.logger.Error("find open work session", "user_id", t.UserID, "error", err)
		}
		return
	}

	open.Close(t.At)
	if err := repos.Sessions.Close(ctx, open); err != nil {
		s.logger.Error("close work session", "user_id", t.UserID, "session_id", open.ID, "error", err)
		return
	}
	res.ClosedSession = open

	if !t.Accumulate {
		return
	}
	profile, err := repos.Profiles.Get(ctx, t.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		profile, err = domain.NewProfile(t.UserID), nil
	}
	if err != nil {
		s.logger.Error("load profile", "user_id", t.UserID, "error", err)
		return
	}
	profile.AddMinutes(open.Minutes())
	if err := repos.Profiles.Save(ctx, profile); err != nil {
		s.logger.Error("update profile", "user_id", t.UserID, "error", err)
		return
	}
	res.Profile = profile
}

// announce publishes the committed transition to the presence stream and,
// when it ends the work day, to the notifier. Nothing here can fail the
// transition.
func (s *StatusService) announce(ctx context.Context, userID int64, res *TransitionResult, workLog string) {
	if !res.Changed() {
		return
	}
	if s.presence != nil {
		s.presence.Publish(PresenceEvent{UserID: userID, Status: res.NewStatus, At: res.At})
	}
	if s.notifier == nil || !domain.ClosesSession(res.PreviousStatus, res.NewStatus) {
		return
	}

	username := fmt.Sprintf("user-%d", userID)
	if s.users != nil {
		if u, err := s.users.GetByID(ctx, userID); err == nil {
			username = u.DisplayName
		} else {
			s.logger.Warn("resolve username for notification", "user_id", userID, "error", err)
		}
	}

	s.notifier.StatusChanged(domain.StatusChanged{
		UserID:         userID,
		Username:       username,
		PreviousStatus: res.PreviousStatus,
		NewStatus:      res.NewStatus,
		Timestamp:      res.At,
	})

	if res.ClosedSession == nil {
		return
	}
	breakMinutes := 0
	if res.PreviousStatus == domain.StatusBreak && !res.PreviousSince.IsZero() {
		breakMinutes = domain.ElapsedMinutes(res.PreviousSince, res.At)
	}
	s.notifier.WorkSummary(domain.WorkSummary{
		UserID:          userID,
		Username:        username,
		DurationMinutes: res.ClosedSession.Minutes(),
		BreakMinutes:    breakMinutes,
		WorkLogSnapshot: workLog,
		Timestamp:       res.At,
	})
}
