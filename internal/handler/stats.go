package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/workville/internal/domain"
	"github.com/msomdec/workville/internal/service"
)

// StatsHandler serves the statistics endpoints.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func statsQuery(r *http.Request) service.StatsQuery {
	q := r.URL.Query()
	return service.StatsQuery{
		Period:      service.Period(q.Get("period")),
		StartDate:   q.Get("startDate"),
		EndDate:     q.Get("endDate"),
		Granularity: q.Get("granularity"),
	}
}

// HandlePersonal returns the caller's statistics.
// GET /stats/personal?period=week|month|quarter|custom&startDate=&endDate=&granularity=day|week
func (h *StatsHandler) HandlePersonal(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	stats, err := h.stats.Personal(r.Context(), user.ID, statsQuery(r))
	if err != nil {
		writeServiceError(w, r, "personal stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonalStatsDTO(stats))
}

// HandleTeam returns the team ranking and activity.
// GET /stats/team?period=...
func (h *StatsHandler) HandleTeam(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Team(r.Context(), statsQuery(r))
	if err != nil {
		writeServiceError(w, r, "team stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toTeamStatsDTO(stats))
}

// HandleMember returns one member's drill-down statistics.
// GET /stats/member?userId=&period=...
func (h *StatsHandler) HandleMember(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID <= 0 {
		writeServiceError(w, r, "member stats", domain.ErrInvalidInput)
		return
	}
	detail, err := h.stats.Member(r.Context(), userID, statsQuery(r))
	if err != nil {
		writeServiceError(w, r, "member stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberStatsDTO(detail))
}
