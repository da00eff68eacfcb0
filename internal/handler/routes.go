package handler

import (
	"net/http"

	"github.com/msomdec/workville/internal/service"
)

// Dependencies are the services the HTTP surface is built on. Nil rate
// limiters disable limiting.
type Dependencies struct {
	Auth          *service.AuthService
	Status        *service.StatusService
	Stats         *service.StatsService
	Presence      *service.PresenceHub
	WorkLogs      *service.WorkLogService
	DB            Pinger
	StatusLimiter *service.RateLimiter
	LoginLimiter  *service.RateLimiter
	CookieSecure  bool
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	authH := NewAuthHandler(deps.Auth, deps.CookieSecure)
	statusH := NewStatusHandler(deps.Status)
	statsH := NewStatsHandler(deps.Stats)
	healthH := NewHealthHandler(deps.DB)

	protected := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(deps.Auth, h)
	}

	mux.HandleFunc("GET /healthz", healthH.HandleHealthz)

	mux.HandleFunc("POST /auth/register", authH.HandleRegister)
	mux.Handle("POST /auth/login", RateLimit(deps.LoginLimiter, clientIP, http.HandlerFunc(authH.HandleLogin)))
	mux.HandleFunc("POST /auth/logout", authH.HandleLogout)
	mux.Handle("GET /auth/me", protected(authH.HandleMe))

	mux.Handle("GET /status", protected(statusH.HandleGetStatus))
	mux.Handle("POST /status", RequireAuth(deps.Auth,
		RateLimit(deps.StatusLimiter, userKey, http.HandlerFunc(statusH.HandleSetStatus))))
	mux.Handle("GET /work-sessions/today", protected(statusH.HandleTodaySession))
	mux.Handle("GET /users", protected(statusH.HandleListUsers))

	if deps.Presence != nil {
		streamH := NewPresenceStreamHandler(deps.Presence, deps.Status)
		mux.Handle("GET /status/stream", protected(streamH.HandleStream))
	}

	if deps.WorkLogs != nil {
		logH := NewWorkLogHandler(deps.WorkLogs)
		mux.Handle("GET /work-logs", protected(logH.HandleList))
		mux.Handle("POST /work-logs", protected(logH.HandleRecord))
		mux.Handle("GET /work-logs/today", protected(logH.HandleToday))
		mux.Handle("PATCH /work-logs/{id}", protected(logH.HandleEdit))
		mux.Handle("GET /team-logs", protected(logH.HandleTeam))
		mux.Handle("GET /template", protected(logH.HandleGetTemplate))
		mux.Handle("PUT /template", protected(logH.HandleSaveTemplate))
	}

	mux.Handle("GET /stats/personal", protected(statsH.HandlePersonal))
	mux.Handle("GET /stats/team", protected(statsH.HandleTeam))
	mux.Handle("GET /stats/member", protected(statsH.HandleMember))
}

// Wrap applies the middleware every route shares.
func Wrap(h http.Handler) http.Handler {
	return RequestID(AccessLog(SecurityHeaders(h)))
}
