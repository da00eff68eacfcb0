package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/workville/internal/domain"
	"github.com/msomdec/workville/internal/service"
)

func newWorkLogService(f *statusFixture) *service.WorkLogService {
	return service.NewWorkLogService(f.db.WorkLogs(), f.db.WorkLogTemplate(), f.db.Sessions(), service.NewCalendar(time.UTC), f.clock)
}

func TestWorkLogService_RecordMergesSameDay(t *testing.T) {
	f := newStatusFixture(t)
	logs := newWorkLogService(f)
	ctx := context.Background()

	first, merged, err := logs.Record(ctx, f.user.ID, "", domain.WorkLogEntry{Content: "morning", Todos: []string{"a"}})
	if err != nil || merged {
		t.Fatalf("first Record: merged=%v err=%v", merged, err)
	}
	if first.Date != "2025-01-06" {
		t.Fatalf("expected today's date, got %s", first.Date)
	}

	second, merged, err := logs.Record(ctx, f.user.ID, "2025-01-06", domain.WorkLogEntry{Content: "afternoon", Todos: []string{"a", "b"}})
	if err != nil || !merged {
		t.Fatalf("second Record: merged=%v err=%v", merged, err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same log, got %d and %d", first.ID, second.ID)
	}
	if second.Content != "morning\n\n---\n\n[Session 2]\nafternoon" {
		t.Fatalf("unexpected content %q", second.Content)
	}
	if strings.Join(second.Todos, ",") != "a,b" {
		t.Fatalf("unexpected todos %v", second.Todos)
	}

	if _, _, err := logs.Record(ctx, f.user.ID, "", domain.WorkLogEntry{Content: " "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("empty entry: expected ErrInvalidInput, got %v", err)
	}
	if _, _, err := logs.Record(ctx, 0, "", domain.WorkLogEntry{Content: "x"}); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("anonymous: expected ErrUnauthorized, got %v", err)
	}
}

func TestWorkLogService_EditRequiresOwner(t *testing.T) {
	f := newStatusFixture(t)
	logs := newWorkLogService(f)
	ctx := context.Background()
	other := &domain.User{Email: "other@example.com", DisplayName: "Other", PasswordHash: "hash"}
	if err := f.db.Users().Create(ctx, other); err != nil {
		t.Fatalf("create user: %v", err)
	}

	log, _, err := logs.Record(ctx, f.user.ID, "", domain.WorkLogEntry{Content: "draft"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := logs.Edit(ctx, other.ID, log.ID, domain.WorkLogEntry{Content: "mine now"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign edit: expected ErrNotFound, got %v", err)
	}

	edited, err := logs.Edit(ctx, f.user.ID, log.ID, domain.WorkLogEntry{Content: "final", ROIHigh: "parser"})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	stored, err := f.db.WorkLogs().GetByID(ctx, log.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Content != "final" || stored.ROIHigh != "parser" || edited.Content != stored.Content {
		t.Fatalf("unexpected stored log %+v", stored)
	}
}

func TestWorkLogService_TodayKeepsActiveSessionDay(t *testing.T) {
	f := newStatusFixture(t)
	logs := newWorkLogService(f)
	ctx := context.Background()

	f.set(t, 22, 0, domain.StatusWorking)
	if _, _, err := logs.Record(ctx, f.user.ID, "2025-01-06", domain.WorkLogEntry{Content: "evening"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	f.clock.SetTime(time.Date(2025, 1, 7, 0, 45, 0, 0, time.UTC))

	day, err := logs.Today(ctx, f.user.ID, "")
	if err != nil {
		t.Fatalf("Today: %v", err)
	}
	if day.Active == nil || day.SessionDate != "2025-01-06" {
		t.Fatalf("expected the active session from 2025-01-06, got %+v", day)
	}
	if day.Log.Date != "2025-01-06" || day.Log.Content != "evening" {
		t.Fatalf("expected the 2025-01-06 log, got %+v", day.Log)
	}

	day, err = logs.Today(ctx, f.user.ID, "2025-01-07")
	if err != nil {
		t.Fatalf("Today with date: %v", err)
	}
	if day.Log.ID != 0 || day.Log.Date != "2025-01-07" {
		t.Fatalf("expected an empty log for 2025-01-07, got %+v", day.Log)
	}
}

func TestWorkLogService_TeamAttachesSessions(t *testing.T) {
	f := newStatusFixture(t)
	logs := newWorkLogService(f)
	ctx := context.Background()

	f.set(t, 9, 0, domain.StatusWorking)
	f.set(t, 10, 0, domain.StatusHome)
	f.set(t, 13, 0, domain.StatusWorking)
	f.set(t, 13, 30, domain.StatusHome)
	if _, _, err := logs.Record(ctx, f.user.ID, "2025-01-06", domain.WorkLogEntry{Content: "monday"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, _, err := logs.Record(ctx, f.user.ID, "2025-01-03", domain.WorkLogEntry{Content: "friday"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	page, err := logs.Team(ctx, domain.WorkLogFilter{})
	if err != nil {
		t.Fatalf("Team: %v", err)
	}
	if page.Total != 2 || page.Limit != 50 || len(page.Logs) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	monday, friday := page.Logs[0], page.Logs[1]
	if monday.Date != "2025-01-06" || monday.DisplayName != "Worker" || len(monday.Sessions) != 2 {
		t.Fatalf("unexpected monday entry %+v", monday)
	}
	if friday.Date != "2025-01-03" || len(friday.Sessions) != 0 {
		t.Fatalf("unexpected friday entry %+v", friday)
	}

	page, err = logs.Team(ctx, domain.WorkLogFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Team page 2: %v", err)
	}
	if page.Total != 2 || len(page.Logs) != 1 || page.Logs[0].Date != "2025-01-03" {
		t.Fatalf("unexpected second page %+v", page)
	}

	if _, err := logs.Team(ctx, domain.WorkLogFilter{Offset: -1}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("negative offset: expected ErrInvalidInput, got %v", err)
	}
}

func TestWorkLogService_Template(t *testing.T) {
	f := newStatusFixture(t)
	logs := newWorkLogService(f)
	ctx := context.Background()

	if _, err := logs.SaveTemplate(ctx, f.user.ID, "\n"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("blank template: expected ErrInvalidInput, got %v", err)
	}
	if _, err := logs.SaveTemplate(ctx, f.user.ID, "## Today"); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	tmpl, err := logs.Template(ctx)
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	if tmpl.Content != "## Today" || tmpl.UpdatedBy == nil || *tmpl.UpdatedBy != f.user.ID {
		t.Fatalf("unexpected template %+v", tmpl)
	}
}

func TestStatusService_WorkSummaryCarriesStoredLog(t *testing.T) {
	notifier := &recordingNotifier{}
	f := newStatusFixture(t)
	logs := newWorkLogService(f)
	svc := service.NewStatusService(f.db, f.db.Repositories(), f.db.Users(), service.NewCalendar(time.UTC),
		service.WithClock(f.clock), service.WithNotifier(notifier), service.WithWorkLogs(logs))
	ctx := context.Background()

	step := func(hour, minute int, status domain.Status, workLog string) {
		t.Helper()
		f.clock.Set(hour, minute)
		if _, err := svc.SetStatus(ctx, f.user.ID, status, workLog); err != nil {
			t.Fatalf("SetStatus %s: %v", status, err)
		}
	}
	step(9, 0, domain.StatusWorking, "")
	step(10, 0, domain.StatusHome, "first pass")
	step(13, 0, domain.StatusWorking, "")
	step(14, 0, domain.StatusHome, "second pass")
	step(15, 0, domain.StatusWorking, "")
	step(15, 30, domain.StatusHome, "")

	if len(notifier.summaries) != 3 {
		t.Fatalf("expected 3 work summaries, got %d", len(notifier.summaries))
	}
	merged := "first pass\n\n---\n\n[Session 2]\nsecond pass"
	if got := notifier.summaries[1].WorkLogSnapshot; got != merged {
		t.Fatalf("expected merged snapshot, got %q", got)
	}
	if got := notifier.summaries[2].WorkLogSnapshot; got != merged {
		t.Fatalf("check-out without a log should carry the stored log, got %q", got)
	}

	stored, err := f.db.WorkLogs().GetByUserAndDate(ctx, f.user.ID, "2025-01-06")
	if err != nil {
		t.Fatalf("GetByUserAndDate: %v", err)
	}
	if stored.Content != merged {
		t.Fatalf("unexpected stored content %q", stored.Content)
	}
}
