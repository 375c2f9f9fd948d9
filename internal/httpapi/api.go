package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"inventra.org/internal/auth"
	"inventra.org/internal/obs"
	"inventra.org/internal/rbac"
)

// ReadyProbe checks backing-store reachability for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

type readinessChecker interface {
	Check(ctx context.Context) error
}

// API is the HTTP surface of the auth core.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	perms      *rbac.Resolver
	readyProbe ReadyProbe
	version    string

	rateBurst  int
	ratePerSec int

	loginBurst  int
	loginPerSec int
}

// New wires the route table.
func New(rp ReadyProbe, version string, svc *auth.Service, resolver *rbac.Resolver) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       svc,
		perms:      resolver,
		readyProbe: rp,
		version:    version,
		rateBurst:   20,
		ratePerSec:  10,
		loginBurst:  5,
		loginPerSec: 1,
	}

	a.mux.HandleFunc("/healthz", a.handleHealthz)
	a.mux.HandleFunc("/readyz", a.handleReady)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/auth/register", a.handleRegister)
	a.mux.HandleFunc("/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/auth/me", a.handleMe)
	a.mux.HandleFunc("/auth/validate", a.handleValidate)
	a.mux.HandleFunc("/auth/permissions", a.handlePermissions)
	a.mux.HandleFunc("/auth/profile", a.handleProfile)

	a.mux.HandleFunc("/users", a.handleUsers)
	a.mux.HandleFunc("/users/", a.handleUserResource)
	a.mux.HandleFunc("/admin/dashboard", a.handleAdminDashboard)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// SetRateLimit overrides the per-IP limiter parameters.
func (a *API) SetRateLimit(burst, perSecond int) {
	if burst > 0 {
		a.rateBurst = burst
	}
	if perSecond > 0 {
		a.ratePerSec = perSecond
	}
}

// SetLoginRateLimit overrides the tighter per-IP limiter on /auth/login.
func (a *API) SetLoginRateLimit(burst, perSecond int) {
	if burst > 0 {
		a.loginBurst = burst
	}
	if perSecond > 0 {
		a.loginPerSec = perSecond
	}
}

// Handler assembles the middleware chain around the route table.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimitPath(h, "/auth/login", a.loginBurst, a.loginPerSec)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "inventra-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
