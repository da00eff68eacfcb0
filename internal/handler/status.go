package handler

import (
	"net/http"

	"github.com/msomdec/workville/internal/domain"
	"github.com/msomdec/workville/internal/service"
)

// StatusHandler serves the presence endpoints.
type StatusHandler struct {
	status *service.StatusService
}

// NewStatusHandler creates a new StatusHandler.
func NewStatusHandler(status *service.StatusService) *StatusHandler {
	return &StatusHandler{status: status}
}

func requireUser(w http.ResponseWriter, r *http.Request) *domain.User {
	user := UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated.")
	}
	return user
}

// HandleGetStatus returns the caller's status and today's sessions.
// GET /status
func (h *StatusHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	snap, err := h.status.GetStatus(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "get status", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusDTO(snap))
}

// HandleSetStatus transitions the caller to a new status.
// POST /status
// Request:  {"status":"working|break|home","workLog":"..."}
// Response: {"success":true,"status":"...","previousStatus":"...","message":"..."}
func (h *StatusHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	var req struct {
		Status  string `json:"status"`
		WorkLog string `json:"workLog"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeServiceError(w, r, "parse status", err)
		return
	}

	res, err := h.status.SetStatus(r.Context(), user.ID, status, req.WorkLog)
	if err != nil {
		writeServiceError(w, r, "set status", err)
		return
	}
	writeJSON(w, http.StatusOK, toSetStatusDTO(res))
}

// HandleTodaySession returns the caller's open session and latest session.
// GET /work-sessions/today
func (h *StatusHandler) HandleTodaySession(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	open, latest, err := h.status.OpenSession(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "get today's session", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":       toWorkSessionDTO(latest),
		"activeSession": toWorkSessionDTO(open),
	})
}

// HandleListUsers returns the presence board.
// GET /users
func (h *StatusHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	members, err := h.status.ListMembers(r.Context())
	if err != nil {
		writeServiceError(w, r, "list members", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": toMemberDTOs(members),
	})
}
