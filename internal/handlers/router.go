package handlers

import (
	"net/http"
	"time"

	"github.com/ukydev/maintenance-tracker/internal/metrics"
	"github.com/ukydev/maintenance-tracker/internal/middleware"
	"github.com/ukydev/maintenance-tracker/internal/models"
)

// Sign-in attempts allowed per client within signInWindow
const (
	signInLimit  = 10
	signInWindow = time.Minute
)

// Router wires every route behind recovery, request logging and session
// checks.
type Router struct {
	Maintenance *MaintenanceHandler
	Auth        *AuthHandler
	Users       *UserHandler
	Sessions    *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimitMiddleware
}

// Handler builds the HTTP handler.
func (rt Router) Handler() http.Handler {
	mux := http.NewServeMux()
	handle := func(pattern string, h http.Handler) {
		mux.Handle(pattern, middleware.Instrument(pattern, h))
	}
	fn := func(pattern string, h http.HandlerFunc) { handle(pattern, h) }

	limiter := rt.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimitMiddleware()
	}
	adminOnly := rt.Sessions.RequireRole(models.RoleAdmin)

	// Public
	fn("GET /health", Health)
	mux.Handle("GET /metrics", metrics.Handler())
	fn("GET /signin", rt.Auth.SignInInfo)
	handle("POST /signin", limiter.RateLimit(signInLimit, signInWindow)(http.HandlerFunc(rt.Auth.SignIn)))
	fn("POST /signup", rt.Auth.SignUp)
	fn("POST /signout", rt.Auth.SignOut)
	fn("POST /forgot-password", rt.Auth.ForgotPassword)
	fn("POST /reset-password", rt.Auth.ResetPassword)

	fn("GET /api/me", rt.Auth.Me)
	fn("GET /api/dashboard/stats", rt.Maintenance.Dashboard)

	m := rt.Maintenance
	fn("GET /api/equipment", m.ListEquipment)
	fn("POST /api/equipment", m.CreateEquipment)
	fn("GET /api/equipment/{id}", m.GetEquipment)
	fn("PUT /api/equipment/{id}", m.UpdateEquipment)
	fn("DELETE /api/equipment/{id}", m.DeleteEquipment)
	fn("POST /api/equipment/{id}/scrap", m.ScrapEquipment)
	fn("POST /api/equipment/{id}/activate", m.ActivateEquipment)

	fn("GET /api/teams", m.ListTeams)
	fn("POST /api/teams", m.CreateTeam)
	fn("GET /api/teams/{id}", m.GetTeam)
	fn("PUT /api/teams/{id}", m.UpdateTeam)
	fn("DELETE /api/teams/{id}", m.DeleteTeam)
	fn("GET /api/teams/{id}/workload", m.TeamWorkload)

	fn("GET /api/maintenance", m.ListRequests)
	fn("POST /api/maintenance", m.CreateRequest)
	fn("GET /api/maintenance/kanban", m.Kanban)
	fn("GET /api/maintenance/calendar", m.Calendar)
	fn("GET /api/maintenance/{id}", m.GetRequest)
	fn("PUT /api/maintenance/{id}", m.UpdateRequest)
	fn("DELETE /api/maintenance/{id}", m.DeleteRequest)
	fn("POST /api/maintenance/{id}/start", m.StartRequest)
	fn("POST /api/maintenance/{id}/done", m.CompleteRequest)
	fn("POST /api/maintenance/{id}/cancel", m.CancelRequest)

	fn("GET /api/reports/pivot", m.Pivot)
	fn("GET /api/reports/pivot.xlsx", m.PivotSpreadsheet)
	fn("GET /api/reports/charts", m.Charts)
	fn("POST /api/check_overdue", m.CheckOverdue)

	if rt.Users != nil {
		handle("GET /api/users", adminOnly(http.HandlerFunc(rt.Users.List)))
		handle("GET /api/users/{id}", adminOnly(http.HandlerFunc(rt.Users.Get)))
		handle("PUT /api/users/{id}", adminOnly(http.HandlerFunc(rt.Users.Update)))
		handle("DELETE /api/users/{id}", adminOnly(http.HandlerFunc(rt.Users.Delete)))
	}

	return middleware.Chain(mux,
		middleware.Recover,
		middleware.Logging,
		rt.Sessions.Authenticate,
	)
}

// Health answers liveness probes
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
