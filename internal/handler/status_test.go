package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/msomdec/workville/internal/handler"
	"github.com/msomdec/workville/internal/service"
)

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatus_RequiresAuth(t *testing.T) {
	h := newTestEnv(t).handler()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/status"},
		{http.MethodPost, "/status"},
		{http.MethodGet, "/work-sessions/today"},
		{http.MethodGet, "/users"},
		{http.MethodGet, "/stats/personal"},
		{http.MethodGet, "/stats/team"},
	} {
		w := doJSON(t, h, tc.method, tc.path, "", "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestSetStatus_Errors(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	_, token := env.member(t, "err@example.com", "Err")

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed body", `{"status":`, http.StatusBadRequest},
		{"unknown status", `{"status":"sleeping"}`, http.StatusBadRequest},
		{"empty status", `{}`, http.StatusBadRequest},
		{"break from home", `{"status":"break"}`, http.StatusConflict},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/status", token, tc.body)
			if w.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, w.Code, w.Body.String())
			}
			var body map[string]string
			decodeBody(t, w, &body)
			if body["error"] == "" {
				t.Fatal("expected error message")
			}
		})
	}

	var snap handler.StatusDTO
	w := doJSON(t, h, http.MethodGet, "/status", token, "")
	decodeBody(t, w, &snap)
	if snap.Status != "home" || snap.LastUpdated != nil {
		t.Fatalf("rejected requests must not change state, got %+v", snap)
	}
}

func TestStatus_WorkDay(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	user, token := env.member(t, "day@example.com", "Day")

	w := doJSON(t, h, http.MethodPost, "/status", token, `{"status":"working"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("check in: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var set handler.SetStatusDTO
	decodeBody(t, w, &set)
	if !set.Success || set.Status != "working" || set.PreviousStatus != "home" {
		t.Fatalf("unexpected response %+v", set)
	}

	w = doJSON(t, h, http.MethodPost, "/status", token, `{"status":"working"}`)
	decodeBody(t, w, &set)
	if set.Message != "Status unchanged." {
		t.Fatalf("expected no-op message, got %q", set.Message)
	}

	env.clock.Set(time.Date(2025, 1, 6, 11, 5, 0, 0, time.UTC))
	w = doJSON(t, h, http.MethodGet, "/work-sessions/today", token, "")
	var today struct {
		Session       *handler.WorkSessionDTO `json:"session"`
		ActiveSession *handler.WorkSessionDTO `json:"activeSession"`
	}
	decodeBody(t, w, &today)
	if today.ActiveSession == nil || today.ActiveSession.Date != "2025-01-06" {
		t.Fatalf("expected an active session, got %+v", today)
	}

	w = doJSON(t, h, http.MethodPost, "/status", token, `{"status":"home","workLog":"done"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("check out: expected 200, got %d", w.Code)
	}

	var snap handler.StatusDTO
	decodeBody(t, doJSON(t, h, http.MethodGet, "/status", token, ""), &snap)
	if snap.Status != "home" || snap.TotalDurationMinutes != 125 || len(snap.TodaySessions) != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if d := snap.TodaySessions[0].DurationMinutes; d == nil || *d != 125 {
		t.Fatalf("expected 125 minute session, got %v", d)
	}

	var users struct {
		Users []handler.MemberDTO `json:"users"`
	}
	decodeBody(t, doJSON(t, h, http.MethodGet, "/users", token, ""), &users)
	if len(users.Users) != 1 || users.Users[0].ID != user.ID || users.Users[0].Status != "home" {
		t.Fatalf("unexpected presence board %+v", users.Users)
	}
}

func TestStats_Endpoints(t *testing.T) {
	env := newTestEnv(t)
	h := env.handler()
	user, token := env.member(t, "stats@example.com", "Stats")

	doJSON(t, h, http.MethodPost, "/status", token, `{"status":"working"}`)
	env.clock.Set(time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC))
	doJSON(t, h, http.MethodPost, "/status", token, `{"status":"home"}`)

	w := doJSON(t, h, http.MethodGet, "/stats/personal?period=custom&startDate=2025-01-06&endDate=2025-01-12&granularity=week", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("personal: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var personal handler.PersonalStatsDTO
	decodeBody(t, w, &personal)
	if personal.Summary.TotalHours != 3 || personal.Summary.WorkDays != 1 || len(personal.DailyStats) != 7 {
		t.Fatalf("unexpected personal stats %+v", personal.Summary)
	}
	if personal.Level.Current != 1 || personal.Level.HoursToNext != 5 || personal.Level.Progress != 37.5 {
		t.Fatalf("unexpected level block %+v", personal.Level)
	}
	if len(personal.WeekdayPattern) != 7 || len(personal.Rollup) != 2 {
		t.Fatalf("expected weekday pattern and weekly rollup, got %d/%d", len(personal.WeekdayPattern), len(personal.Rollup))
	}

	w = doJSON(t, h, http.MethodGet, "/stats/team?period=custom&startDate=2025-01-06&endDate=2025-01-12", token, "")
	var team handler.TeamStatsDTO
	decodeBody(t, w, &team)
	if len(team.Members) != 1 || team.Members[0].TotalHours != 3 {
		t.Fatalf("unexpected team stats %+v", team)
	}

	w = doJSON(t, h, http.MethodGet, "/stats/member?period=custom&startDate=2025-01-06&endDate=2025-01-12&userId="+strconv.FormatInt(user.ID, 10), token, "")
	var member handler.MemberStatsDTO
	decodeBody(t, w, &member)
	if member.EarliestCheckIn != "09:00" || member.LatestCheckOut != "12:00" || member.MostProductiveDay != "Monday" {
		t.Fatalf("unexpected member stats %+v", member)
	}

	for _, path := range []string{
		"/stats/personal?period=year",
		"/stats/personal?granularity=month",
		"/stats/personal?period=custom&startDate=2025-01-10&endDate=2025-01-01",
		"/stats/member?userId=abc",
	} {
		if w := doJSON(t, h, http.MethodGet, path, token, ""); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, w.Code)
		}
	}
	if w := doJSON(t, h, http.MethodGet, "/stats/member?userId=9999", token, ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown member: expected 404, got %d", w.Code)
	}
}

func TestSetStatus_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()
	env.deps.StatusLimiter = service.NewRateLimiter(ctx, 0.001, 1)
	h := env.handler()
	_, token := env.member(t, "busy@example.com", "Busy")

	doJSON(t, h, http.MethodPost, "/status", token, `{"status":"working"}`)
	w := doJSON(t, h, http.MethodPost, "/status", token, `{"status":"break"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
