package service_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/msomdec/workville/internal/domain"
	"github.com/msomdec/workville/internal/repository/sqlite"
	"github.com/msomdec/workville/internal/service"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func closedSession(userID int64, date string, hour, minutes int) domain.WorkSession {
	day, _ := time.Parse(domain.DateLayout, date)
	in := day.Add(time.Duration(hour) * time.Hour)
	s := domain.WorkSession{UserID: userID, Date: date, CheckInTime: in}
	s.Close(in.Add(time.Duration(minutes) * time.Minute))
	return s
}

func weekRange(t *testing.T) service.DateRange {
	t.Helper()
	rng, err := service.NewCalendar(time.UTC).ResolvePeriod(service.PeriodCustom, "2025-01-06", "2025-01-12", time.Now())
	if err != nil {
		t.Fatalf("ResolvePeriod: %v", err)
	}
	return rng
}

func TestAggregateDaily_SevenDayScenario(t *testing.T) {
	sessions := []domain.WorkSession{
		closedSession(1, "2025-01-06", 9, 120),
		closedSession(1, "2025-01-08", 9, 180),
		closedSession(1, "2025-01-10", 9, 60),
		{UserID: 1, Date: "2025-01-11", CheckInTime: time.Date(2025, 1, 11, 9, 0, 0, 0, time.UTC)},
		closedSession(1, "2025-02-01", 9, 600),
	}

	daily := service.AggregateDaily(weekRange(t), sessions)
	if len(daily) != 7 {
		t.Fatalf("expected 7 daily buckets, got %d", len(daily))
	}
	if daily[1].Hours != 0 || daily[1].Date != "2025-01-07" {
		t.Fatalf("expected empty bucket for 2025-01-07, got %+v", daily[1])
	}
	if daily[5].Hours != 0 {
		t.Fatalf("open session should count 0, got %f", daily[5].Hours)
	}

	sum := service.Summarize(daily)
	if !approx(sum.TotalHours, 6.0) {
		t.Fatalf("expected total 6.0, got %f", sum.TotalHours)
	}
	if sum.WorkDays != 3 {
		t.Fatalf("expected 3 work days, got %d", sum.WorkDays)
	}
	if !approx(sum.AverageHours, 2.0) {
		t.Fatalf("expected average 2.0, got %f", sum.AverageHours)
	}
	if sum.TotalSessions != 3 {
		t.Fatalf("expected 3 sessions, got %d", sum.TotalSessions)
	}
}

func TestSummarize_NoWork(t *testing.T) {
	sum := service.Summarize(service.AggregateDaily(weekRange(t), nil))
	if sum.TotalHours != 0 || sum.WorkDays != 0 || sum.AverageHours != 0 {
		t.Fatalf("expected zero summary, got %+v", sum)
	}
}

func TestWeekdayPattern(t *testing.T) {
	rng, err := service.NewCalendar(time.UTC).ResolvePeriod(service.PeriodCustom, "2025-01-06", "2025-01-19", time.Now())
	if err != nil {
		t.Fatalf("ResolvePeriod: %v", err)
	}
	// Two Mondays: 4h and nothing. One Wednesday: 3h.
	daily := service.AggregateDaily(rng, []domain.WorkSession{
		closedSession(1, "2025-01-06", 9, 240),
		closedSession(1, "2025-01-08", 9, 180),
	})
	pattern := service.WeekdayPattern(daily)
	if len(pattern) != 7 {
		t.Fatalf("expected 7 weekdays, got %d", len(pattern))
	}
	if mon := pattern[time.Monday]; mon.Days != 2 || !approx(mon.AverageHours, 2.0) {
		t.Fatalf("unexpected Monday %+v", mon)
	}
	if wed := pattern[time.Wednesday]; !approx(wed.AverageHours, 1.5) {
		t.Fatalf("unexpected Wednesday %+v", wed)
	}
	if sun := pattern[time.Sunday]; sun.AverageHours != 0 || sun.Days != 2 {
		t.Fatalf("unexpected Sunday %+v", sun)
	}
}

func TestRollup_WeeksStartOnSunday(t *testing.T) {
	rng, err := service.NewCalendar(time.UTC).ResolvePeriod(service.PeriodCustom, "2025-01-09", "2025-01-14", time.Now())
	if err != nil {
		t.Fatalf("ResolvePeriod: %v", err)
	}
	daily := service.AggregateDaily(rng, []domain.WorkSession{
		closedSession(1, "2025-01-10", 9, 60),
		closedSession(1, "2025-01-13", 9, 120),
	})

	weeks := service.Rollup(daily, service.GranularityWeek)
	if len(weeks) != 2 {
		t.Fatalf("expected 2 weekly buckets, got %d", len(weeks))
	}
	if weeks[0].Start != "2025-01-05" || weeks[0].End != "2025-01-11" || !approx(weeks[0].Hours, 1) {
		t.Fatalf("unexpected first week %+v", weeks[0])
	}
	if weeks[1].Start != "2025-01-12" || weeks[1].End != "2025-01-14" || !approx(weeks[1].Hours, 2) || weeks[1].WorkDays != 1 {
		t.Fatalf("unexpected second week %+v", weeks[1])
	}

	days := service.Rollup(daily, service.GranularityDay)
	if len(days) != 6 {
		t.Fatalf("expected 6 daily buckets, got %d", len(days))
	}
}

func TestBuildTeamStats_RankingAndActivity(t *testing.T) {
	rng := weekRange(t)
	sessions := []domain.WorkSession{
		closedSession(1, "2025-01-06", 9, 60),
		closedSession(2, "2025-01-06", 9, 180),
		closedSession(3, "2025-01-07", 9, 60),
		closedSession(2, "2025-01-07", 9, 60),
	}
	members := []domain.MemberPresence{
		{UserID: 1, DisplayName: "Ann"},
		{UserID: 2, DisplayName: "Bo"},
		{UserID: 3, DisplayName: "Cy"},
		{UserID: 4, DisplayName: "Idle"},
	}
	profiles := []domain.Profile{{UserID: 2, Level: 3}}

	stats := service.BuildTeamStats(rng, sessions, members, profiles)
	if len(stats.Members) != 3 {
		t.Fatalf("expected 3 members with sessions, got %d", len(stats.Members))
	}
	wantOrder := []int64{2, 1, 3}
	for i, id := range wantOrder {
		if stats.Members[i].UserID != id {
			t.Fatalf("position %d: expected user %d, got %d", i, id, stats.Members[i].UserID)
		}
	}
	if stats.Members[0].DisplayName != "Bo" || stats.Members[0].Level != 3 {
		t.Fatalf("unexpected leader %+v", stats.Members[0])
	}
	if stats.Members[1].Level != 1 {
		t.Fatalf("expected default level 1, got %d", stats.Members[1].Level)
	}
	if !approx(stats.Summary.TotalHours, 6) || stats.Summary.ActiveMembers != 3 || stats.Summary.TotalMembers != 3 || !approx(stats.Summary.AverageHoursPerMember, 2) {
		t.Fatalf("unexpected summary %+v", stats.Summary)
	}
	if len(stats.DailyActivity) != 7 {
		t.Fatalf("expected 7 activity days, got %d", len(stats.DailyActivity))
	}
	if d := stats.DailyActivity[0]; d.ActiveMembers != 2 || !approx(d.TotalHours, 4) {
		t.Fatalf("unexpected first day %+v", d)
	}
	if d := stats.DailyActivity[2]; d.ActiveMembers != 0 || d.TotalHours != 0 {
		t.Fatalf("unexpected idle day %+v", d)
	}
}

func seedSession(t *testing.T, db *sqlite.DB, ws domain.WorkSession) {
	t.Helper()
	ctx := context.Background()
	open := ws
	open.CheckOutTime, open.DurationMinutes = nil, nil
	if err := db.Sessions().Create(ctx, &open); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ws.CheckOutTime == nil {
		return
	}
	open.Close(*ws.CheckOutTime)
	if err := db.Sessions().Close(ctx, &open); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func newStatsFixture(t *testing.T) (*service.StatsService, *sqlite.DB, *domain.User) {
	t.Helper()
	db := newTestDB(t)
	user := &domain.User{Email: "stats@example.com", DisplayName: "Stats", PasswordHash: "hash"}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	clock := service.ClockFunc(func() time.Time { return time.Date(2025, 1, 12, 18, 0, 0, 0, time.UTC) })
	return service.NewStatsService(db.Repositories(), service.NewCalendar(time.UTC), clock), db, user
}

func TestStatsService_Personal(t *testing.T) {
	svc, db, user := newStatsFixture(t)
	ctx := context.Background()
	seedSession(t, db, closedSession(user.ID, "2025-01-06", 9, 120))
	seedSession(t, db, closedSession(user.ID, "2025-01-08", 9, 180))
	seedSession(t, db, closedSession(user.ID, "2025-01-10", 9, 60))

	stats, err := svc.Personal(ctx, user.ID, service.StatsQuery{
		Period: service.PeriodCustom, StartDate: "2025-01-06", EndDate: "2025-01-12", Granularity: "week",
	})
	if err != nil {
		t.Fatalf("Personal: %v", err)
	}
	if !approx(stats.Summary.TotalHours, 6) || stats.Summary.WorkDays != 3 || !approx(stats.Summary.AverageHours, 2) {
		t.Fatalf("unexpected summary %+v", stats.Summary)
	}
	if stats.Granularity != service.GranularityWeek || len(stats.Rollup) != 2 {
		t.Fatalf("expected 2 weekly buckets, got %d (%s)", len(stats.Rollup), stats.Granularity)
	}
	if stats.Level.Current != 1 {
		t.Fatalf("expected level 1 without an accumulator row, got %d", stats.Level.Current)
	}

	week, err := svc.Personal(ctx, user.ID, service.StatsQuery{Period: service.PeriodWeek})
	if err != nil {
		t.Fatalf("Personal week: %v", err)
	}
	if len(week.Daily) != 8 {
		t.Fatalf("expected today-7..today to span 8 days, got %d", len(week.Daily))
	}
}

func TestStatsService_Personal_InvalidQuery(t *testing.T) {
	svc, _, user := newStatsFixture(t)
	ctx := context.Background()

	if _, err := svc.Personal(ctx, user.ID, service.StatsQuery{Granularity: "month"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for granularity, got %v", err)
	}
	if _, err := svc.Personal(ctx, 0, service.StatsQuery{}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestStatsService_TeamAndMember(t *testing.T) {
	svc, db, user := newStatsFixture(t)
	ctx := context.Background()
	other := &domain.User{Email: "other@example.com", DisplayName: "Other", PasswordHash: "hash"}
	if err := db.Users().Create(ctx, other); err != nil {
		t.Fatalf("create user: %v", err)
	}
	seedSession(t, db, closedSession(user.ID, "2025-01-06", 8, 90))
	seedSession(t, db, closedSession(other.ID, "2025-01-06", 10, 300))
	seedSession(t, db, closedSession(user.ID, "2025-01-07", 9, 60))

	q := service.StatsQuery{Period: service.PeriodCustom, StartDate: "2025-01-06", EndDate: "2025-01-12"}
	team, err := svc.Team(ctx, q)
	if err != nil {
		t.Fatalf("Team: %v", err)
	}
	if len(team.Members) != 2 || team.Members[0].UserID != other.ID || team.Members[0].DisplayName != "Other" {
		t.Fatalf("unexpected ranking %+v", team.Members)
	}

	detail, err := svc.Member(ctx, user.ID, q)
	if err != nil {
		t.Fatalf("Member: %v", err)
	}
	if detail.EarliestCheckIn != "08:00" || detail.LatestCheckOut != "10:00" {
		t.Fatalf("unexpected check-in/out extremes %q / %q", detail.EarliestCheckIn, detail.LatestCheckOut)
	}
	if detail.MostProductiveDay == nil || *detail.MostProductiveDay != time.Monday {
		t.Fatalf("expected Monday as most productive day, got %v", detail.MostProductiveDay)
	}
	if !approx(detail.Summary.TotalHours, 2.5) {
		t.Fatalf("expected 2.5 hours, got %f", detail.Summary.TotalHours)
	}

	if _, err := svc.Member(ctx, 9999, q); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown member, got %v", err)
	}
}

func TestBuildTeamStats_AverageCountsMembersWithoutHours(t *testing.T) {
	rng := weekRange(t)
	open := domain.WorkSession{
		UserID:      2,
		Date:        "2025-01-07",
		CheckInTime: time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC),
	}
	sessions := []domain.WorkSession{
		closedSession(1, "2025-01-06", 9, 240),
		open,
	}

	stats := service.BuildTeamStats(rng, sessions, nil, nil)
	if stats.Summary.TotalMembers != 2 || stats.Summary.ActiveMembers != 1 {
		t.Fatalf("unexpected member counts %+v", stats.Summary)
	}
	if !approx(stats.Summary.AverageHoursPerMember, 2) {
		t.Fatalf("expected 4h over 2 members, got %v", stats.Summary.AverageHoursPerMember)
	}
}
