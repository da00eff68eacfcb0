package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/msomdec/workville/internal/service"
	"github.com/starfederation/datastar-go/datastar"
)

// PresenceStreamHandler pushes presence changes as datastar signal patches.
// Clients first receive the whole board, then one patch per change, keyed by
// member ID so patches merge into the board.
type PresenceStreamHandler struct {
	hub    *service.PresenceHub
	status *service.StatusService
}

// NewPresenceStreamHandler creates a new PresenceStreamHandler.
func NewPresenceStreamHandler(hub *service.PresenceHub, status *service.StatusService) *PresenceStreamHandler {
	return &PresenceStreamHandler{hub: hub, status: status}
}

type presenceSignal struct {
	DisplayName string     `json:"displayName,omitempty"`
	Status      string     `json:"status"`
	LastUpdated *time.Time `json:"lastUpdated"`
}

// HandleStream streams presence updates until the client disconnects.
// GET /status/stream
func (h *PresenceStreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	// Subscribe before reading the board so no change falls in between.
	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	members, err := h.status.ListMembers(r.Context())
	if err != nil {
		writeServiceError(w, r, "list members", err)
		return
	}

	sse := datastar.NewSSE(w, r)

	board := make(map[string]presenceSignal, len(members))
	for _, m := range members {
		board[strconv.FormatInt(m.UserID, 10)] = presenceSignal{
			DisplayName: m.DisplayName,
			Status:      string(m.Status),
			LastUpdated: m.LastUpdated,
		}
	}
	if err := sse.MarshalAndPatchSignals(map[string]any{"presence": board}); err != nil {
		slog.Warn("send presence board", "error", err)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			at := ev.At
			patch := map[string]any{"presence": map[string]presenceSignal{
				strconv.FormatInt(ev.UserID, 10): {Status: string(ev.Status), LastUpdated: &at},
			}}
			if err := sse.MarshalAndPatchSignals(patch); err != nil {
				slog.Debug("presence stream closed", "error", err)
				return
			}
		}
	}
}
