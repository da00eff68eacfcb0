package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/msomdec/workville/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Granularity selects the bucket size of a rollup.
type Granularity string

const (
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// ParseGranularity defaults to day.
func ParseGranularity(raw string) (Granularity, error) {
	switch Granularity(raw) {
	case "", GranularityDay:
		return GranularityDay, nil
	case GranularityWeek:
		return GranularityWeek, nil
	}
	return "", fmt.Errorf("%w: unknown granularity %q", domain.ErrInvalidInput, raw)
}

// DailyStat is the worked time of one calendar day.
type DailyStat struct {
	Date     string
	Hours    float64
	Sessions int
}

// Summary aggregates a series of daily stats.
type Summary struct {
	TotalHours    float64
	WorkDays      int
	AverageHours  float64
	TotalSessions int
}

// WeekdayStat is the average daily worked time of one weekday.
type WeekdayStat struct {
	Weekday      time.Weekday
	AverageHours float64
	Days         int
}

// BucketStat is a rollup bucket starting on Start.
type BucketStat struct {
	Start    string
	End      string
	Hours    float64
	WorkDays int
}

func sessionHours(s *domain.WorkSession) float64 {
	return float64(s.Minutes()) / 60
}

// AggregateDaily seeds every day of rng with zero hours and folds closed
// sessions into the bucket of their date. Open sessions count for nothing and
// sessions dated outside the range are ignored.
func AggregateDaily(rng DateRange, sessions []domain.WorkSession) []DailyStat {
	days := rng.Days()
	daily := make([]DailyStat, len(days))
	index := make(map[string]int, len(days))
	for i, d := range days {
		date := d.Format(domain.DateLayout)
		daily[i] = DailyStat{Date: date}
		index[date] = i
	}
	for i := range sessions {
		s := &sessions[i]
		if s.IsOpen() {
			continue
		}
		j, ok := index[s.Date]
		if !ok {
			continue
		}
		daily[j].Hours += sessionHours(s)
		daily[j].Sessions++
	}
	return daily
}

// Summarize totals a daily series. Only days with hours count as work days.
func Summarize(daily []DailyStat) Summary {
	var sum Summary
	for _, d := range daily {
		sum.TotalHours += d.Hours
		sum.TotalSessions += d.Sessions
		if d.Hours > 0 {
			sum.WorkDays++
		}
	}
	if sum.WorkDays > 0 {
		sum.AverageHours = sum.TotalHours / float64(sum.WorkDays)
	}
	return sum
}

func weekdayOf(date string) (time.Weekday, bool) {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return 0, false
	}
	return t.Weekday(), true
}

// WeekdayPattern averages the daily buckets of each weekday, Sunday first.
// Every bucket in the series counts, including days without work.
func WeekdayPattern(daily []DailyStat) []WeekdayStat {
	pattern := make([]WeekdayStat, 7)
	totals := make([]float64, 7)
	for i := range pattern {
		pattern[i].Weekday = time.Weekday(i)
	}
	for _, d := range daily {
		wd, ok := weekdayOf(d.Date)
		if !ok {
			continue
		}
		totals[wd] += d.Hours
		pattern[wd].Days++
	}
	for i := range pattern {
		if pattern[i].Days > 0 {
			pattern[i].AverageHours = totals[i] / float64(pattern[i].Days)
		}
	}
	return pattern
}

// Rollup groups a daily series by granularity. Weeks start on Sunday.
func Rollup(daily []DailyStat, g Granularity) []BucketStat {
	var buckets []BucketStat
	for _, d := range daily {
		start := d.Date
		if g == GranularityWeek {
			t, err := time.Parse(domain.DateLayout, d.Date)
			if err != nil {
				continue
			}
			start = t.AddDate(0, 0, -int(t.Weekday())).Format(domain.DateLayout)
		}
		if n := len(buckets); n == 0 || buckets[n-1].Start != start {
			buckets = append(buckets, BucketStat{Start: start})
		}
		b := &buckets[len(buckets)-1]
		b.End = d.Date
		b.Hours += d.Hours
		if d.Hours > 0 {
			b.WorkDays++
		}
	}
	return buckets
}

// StatsQuery selects the window and bucket size of a statistics request.
type StatsQuery struct {
	Period      Period
	StartDate   string
	EndDate     string
	Granularity string
}

// PersonalStats is the statistics view of one member.
type PersonalStats struct {
	Range       DateRange
	Granularity Granularity
	Daily       []DailyStat
	Rollup      []BucketStat
	Summary     Summary
	Level       domain.LevelProgress
	Weekday     []WeekdayStat
}

// MemberStats is one row of the team ranking.
type MemberStats struct {
	UserID       int64
	DisplayName  string
	TotalHours   float64
	WorkDays     int
	AverageHours float64
	Level        int
}

// TeamDay is the team's worked time on one day.
type TeamDay struct {
	Date          string
	TotalHours    float64
	ActiveMembers int
}

// TeamSummary totals the team view.
// TotalMembers counts everyone with a session in range, ActiveMembers only
// those with closed hours. The per-member average divides by TotalMembers.
type TeamSummary struct {
	TotalHours            float64
	TotalMembers          int
	ActiveMembers         int
	AverageHoursPerMember float64
}

// TeamStats is the statistics view of the whole team.
type TeamStats struct {
	Range         DateRange
	Members       []MemberStats
	Summary       TeamSummary
	DailyActivity []TeamDay
}

// MemberDetail is the drill-down view of one member.
type MemberDetail struct {
	UserID      int64
	DisplayName string
	Range       DateRange
	Daily       []DailyStat
	Summary     Summary
	Level       domain.LevelProgress
	Weekday     []WeekdayStat
	// EarliestCheckIn and LatestCheckOut are HH:MM in the business timezone,
	// empty when the range has no sessions.
	EarliestCheckIn   string
	LatestCheckOut    string
	MostProductiveDay *time.Weekday
}

// StatsService computes read-only statistics. It never writes.
type StatsService struct {
	sessions domain.WorkSessionRepository
	statuses domain.StatusRepository
	profiles domain.ProfileRepository
	calendar Calendar
	clock    Clock
}

// NewStatsService creates a StatsService.
func NewStatsService(repos domain.Repositories, calendar Calendar, clock Clock) *StatsService {
	if clock == nil {
		clock = SystemClock
	}
	return &StatsService{
		sessions: repos.Sessions,
		statuses: repos.Statuses,
		profiles: repos.Profiles,
		calendar: calendar,
		clock:    clock,
	}
}

func (s *StatsService) resolve(q StatsQuery) (DateRange, Granularity, error) {
	g, err := ParseGranularity(q.Granularity)
	if err != nil {
		return DateRange{}, "", err
	}
	rng, err := s.calendar.ResolvePeriod(q.Period, q.StartDate, q.EndDate, s.clock.Now())
	if err != nil {
		return DateRange{}, "", err
	}
	return rng, g, nil
}

func (s *StatsService) profile(ctx context.Context, userID int64) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewProfile(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Personal returns the statistics of one member.
func (s *StatsService) Personal(ctx context.Context, userID int64, q StatsQuery) (*PersonalStats, error) {
	if userID <= 0 {
		return nil, domain.ErrUnauthorized
	}
	rng, g, err := s.resolve(q)
	if err != nil {
		return nil, err
	}
	from, to := rng.Bounds()
	sessions, err := s.sessions.ListInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	profile, err := s.profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	daily := AggregateDaily(rng, sessions)
	return &PersonalStats{
		Range:       rng,
		Granularity: g,
		Daily:       daily,
		Rollup:      Rollup(daily, g),
		Summary:     Summarize(daily),
		Level:       profile.Progress(),
		Weekday:     WeekdayPattern(daily),
	}, nil
}

// Team returns the ranking and daily activity of every member that has a
// session in the range.
func (s *StatsService) Team(ctx context.Context, q StatsQuery) (*TeamStats, error) {
	rng, _, err := s.resolve(q)
	if err != nil {
		return nil, err
	}
	from, to := rng.Bounds()

	var (
		sessions []domain.WorkSession
		members  []domain.MemberPresence
		profiles []domain.Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = s.sessions.ListInRange(gctx, 0, from, to)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		members, err = s.statuses.ListMembers(gctx)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		profiles, err = s.profiles.List(gctx)
		if err != nil {
			return fmt.Errorf("list profiles: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return BuildTeamStats(rng, sessions, members, profiles), nil
}

// BuildTeamStats folds sessions per member and per day. Members are ranked by
// total hours, ties keep ascending user ID order.
func BuildTeamStats(rng DateRange, sessions []domain.WorkSession, members []domain.MemberPresence, profiles []domain.Profile) *TeamStats {
	byUser := make(map[int64][]domain.WorkSession)
	for _, ws := range sessions {
		byUser[ws.UserID] = append(byUser[ws.UserID], ws)
	}
	names := make(map[int64]string, len(members))
	for _, m := range members {
		names[m.UserID] = m.DisplayName
	}
	levels := make(map[int64]int, len(profiles))
	for _, p := range profiles {
		levels[p.UserID] = p.Level
	}

	userIDs := make([]int64, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	slices.Sort(userIDs)

	daily := AggregateDaily(rng, nil)
	dayIndex := make(map[string]int, len(daily))
	activity := make([]TeamDay, len(daily))
	for i, d := range daily {
		activity[i] = TeamDay{Date: d.Date}
		dayIndex[d.Date] = i
	}

	stats := &TeamStats{Range: rng, Members: make([]MemberStats, 0, len(userIDs))}
	for _, id := range userIDs {
		memberDaily := AggregateDaily(rng, byUser[id])
		sum := Summarize(memberDaily)
		level, ok := levels[id]
		if !ok {
			level = 1
		}
		stats.Members = append(stats.Members, MemberStats{
			UserID:       id,
			DisplayName:  names[id],
			TotalHours:   sum.TotalHours,
			WorkDays:     sum.WorkDays,
			AverageHours: sum.AverageHours,
			Level:        level,
		})
		for _, d := range memberDaily {
			if d.Hours <= 0 {
				continue
			}
			a := &activity[dayIndex[d.Date]]
			a.TotalHours += d.Hours
			a.ActiveMembers++
		}
		stats.Summary.TotalHours += sum.TotalHours
		if sum.TotalHours > 0 {
			stats.Summary.ActiveMembers++
		}
	}

	slices.SortStableFunc(stats.Members, func(a, b MemberStats) int {
		return cmp.Compare(b.TotalHours, a.TotalHours)
	})
	stats.Summary.TotalMembers = len(stats.Members)
	if stats.Summary.TotalMembers > 0 {
		stats.Summary.AverageHoursPerMember = stats.Summary.TotalHours / float64(stats.Summary.TotalMembers)
	}
	stats.DailyActivity = activity
	return stats
}

// Member returns the drill-down statistics of one member.
func (s *StatsService) Member(ctx context.Context, userID int64, q StatsQuery) (*MemberDetail, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidInput)
	}
	rng, _, err := s.resolve(q)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.Get(ctx, userID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Get reports ErrNotFound only for unknown users.
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("get profile: %w", err)
	}

	from, to := rng.Bounds()
	sessions, err := s.sessions.ListInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	daily := AggregateDaily(rng, sessions)
	detail := &MemberDetail{
		UserID:      userID,
		DisplayName: profile.DisplayName,
		Range:       rng,
		Daily:       daily,
		Summary:     Summarize(daily),
		Level:       profile.Progress(),
		Weekday:     WeekdayPattern(daily),
	}
	detail.EarliestCheckIn, detail.LatestCheckOut = s.clockExtremes(sessions)

	var best *WeekdayStat
	for i := range detail.Weekday {
		w := &detail.Weekday[i]
		if w.AverageHours > 0 && (best == nil || w.AverageHours > best.AverageHours) {
			best = w
		}
	}
	if best != nil {
		wd := best.Weekday
		detail.MostProductiveDay = &wd
	}
	return detail, nil
}

// clockExtremes returns the earliest check-in and latest check-out time of
// day across sessions.
func (s *StatsService) clockExtremes(sessions []domain.WorkSession) (earliest, latest string) {
	loc := s.calendar.Location()
	for i := range sessions {
		in := sessions[i].CheckInTime.In(loc).Format("15:04")
		if earliest == "" || in < earliest {
			earliest = in
		}
		if out := sessions[i].CheckOutTime; out != nil {
			o := out.In(loc).Format("15:04")
			if o > latest {
				latest = o
			}
		}
	}
	return earliest, latest
}
