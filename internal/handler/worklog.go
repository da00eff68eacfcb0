package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/workville/internal/domain"
	"github.com/msomdec/workville/internal/service"
)

// WorkLogHandler serves the daily journal endpoints.
type WorkLogHandler struct {
	logs *service.WorkLogService
}

// NewWorkLogHandler creates a new WorkLogHandler.
func NewWorkLogHandler(logs *service.WorkLogService) *WorkLogHandler {
	return &WorkLogHandler{logs: logs}
}

type workLogRequest struct {
	Date             string   `json:"date"`
	Content          string   `json:"content"`
	Todos            []string `json:"todos"`
	CompletedTodos   []string `json:"completedTodos"`
	ROIHigh          string   `json:"roiHigh"`
	ROILow           string   `json:"roiLow"`
	TomorrowPriority string   `json:"tomorrowPriority"`
	Feedback         string   `json:"feedback"`
}

func (req workLogRequest) entry() domain.WorkLogEntry {
	return domain.WorkLogEntry{
		Content:          req.Content,
		Todos:            req.Todos,
		CompletedTodos:   req.CompletedTodos,
		ROIHigh:          req.ROIHigh,
		ROILow:           req.ROILow,
		TomorrowPriority: req.TomorrowPriority,
		Feedback:         req.Feedback,
	}
}

// queryInt parses an optional integer query parameter. Missing values yield 0.
func queryInt(r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}

// HandleList returns the caller's log for a date, or their recent logs.
// GET /work-logs?date=YYYY-MM-DD&limit=N
func (h *WorkLogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	limit, ok := queryInt(r, "limit")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit.")
		return
	}
	logs, err := h.logs.List(r.Context(), user.ID, r.URL.Query().Get("date"), limit)
	if err != nil {
		writeServiceError(w, r, "list work logs", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": toWorkLogDTOs(logs)})
}

// HandleRecord stores an entry, merging it into the day's log if one exists.
// POST /work-logs
// Request:  {"date":"...","content":"...","todos":[...],...}
// Response: {"success":true,"id":1,"merged":false}
func (h *WorkLogHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	var req workLogRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	log, merged, err := h.logs.Record(r.Context(), user.ID, req.Date, req.entry())
	if err != nil {
		writeServiceError(w, r, "record work log", err)
		return
	}
	status := http.StatusCreated
	if merged {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]any{
		"success": true,
		"id":      log.ID,
		"merged":  merged,
	})
}

// HandleEdit replaces one of the caller's logs.
// PATCH /work-logs/{id}
func (h *WorkLogHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid work log ID.")
		return
	}
	var req workLogRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	log, err := h.logs.Edit(r.Context(), user.ID, id, req.entry())
	if err != nil {
		writeServiceError(w, r, "edit work log", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    toWorkLogDTO(log),
	})
}

// HandleToday returns the caller's session context and the log it writes to.
// GET /work-logs/today?date=YYYY-MM-DD
func (h *WorkLogHandler) HandleToday(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	day, err := h.logs.Today(r.Context(), user.ID, r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, r, "get today's work log", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": map[string]any{
			"active": toWorkSessionDTO(day.Active),
			"last":   toWorkSessionDTO(day.Last),
			"date":   day.SessionDate,
		},
		"workLog": toWorkLogDTO(day.Log),
	})
}

// HandleTeam lists logs across the team with their sessions.
// GET /team-logs?startDate=&endDate=&userId=&limit=&offset=
func (h *WorkLogHandler) HandleTeam(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.WorkLogFilter{StartDate: q.Get("startDate"), EndDate: q.Get("endDate")}
	if raw := q.Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid user ID.")
			return
		}
		filter.UserID = id
	}
	var ok bool
	if filter.Limit, ok = queryInt(r, "limit"); !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit.")
		return
	}
	if filter.Offset, ok = queryInt(r, "offset"); !ok {
		writeError(w, http.StatusBadRequest, "Invalid offset.")
		return
	}

	page, err := h.logs.Team(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, "list team logs", err)
		return
	}
	writeJSON(w, http.StatusOK, toTeamLogPageDTO(page))
}

// HandleGetTemplate returns the shared log template.
// GET /template
func (h *WorkLogHandler) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.logs.Template(r.Context())
	if err != nil {
		writeServiceError(w, r, "get template", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkLogTemplateDTO(tmpl))
}

// HandleSaveTemplate replaces the shared log template.
// PUT /template
// Request: {"content":"..."}
func (h *WorkLogHandler) HandleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	tmpl, err := h.logs.SaveTemplate(r.Context(), user.ID, req.Content)
	if err != nil {
		writeServiceError(w, r, "save template", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    toWorkLogTemplateDTO(tmpl),
	})
}
