package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"agendafit.app/internal/auth"
	"agendafit.app/internal/obs"
	"agendafit.app/internal/service"
	"agendafit.app/internal/stream"
)

const serviceName = "agendafit-checkin"

// ReadyProbe: простая проверка готовности (например, ping БД).
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

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readiness  readinessChecker
	version    string
	checkins   *service.CheckinService
	tokens     *auth.Tokens
	stream     *stream.Stream
	validate   *validator.Validate
	issuerTTL  time.Duration
	origins    []string
	rateBurst  int
	ratePerSec float64
	maxBody    int64
}

type Option func(*API)

// WithStream exposes GET /v1/checkins/stream.
func WithStream(s *stream.Stream) Option {
	return func(a *API) { a.stream = s }
}

// WithTokenIssuer enables POST /v1/auth/token. Development only.
func WithTokenIssuer(ttl time.Duration) Option {
	return func(a *API) {
		if ttl > 0 {
			a.issuerTTL = ttl
		}
	}
}

func WithRateLimit(burst int, perSec float64) Option {
	return func(a *API) {
		if burst > 0 && perSec > 0 {
			a.rateBurst = burst
			a.ratePerSec = perSec
		}
	}
}

func WithAllowedOrigins(origins []string) Option {
	return func(a *API) { a.origins = origins }
}

func New(rp readinessChecker, version string, checkins *service.CheckinService, tokens *auth.Tokens, opts ...Option) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readiness:  rp,
		version:    version,
		checkins:   checkins,
		tokens:     tokens,
		validate:   validator.New(),
		rateBurst:  20,
		ratePerSec: 10,
		maxBody:    1 << 20,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	a.mux.HandleFunc("POST /v1/bookings/{id}/checkin", a.handleCheckin)
	a.mux.HandleFunc("GET /v1/bookings/{id}/checkins", a.handleCheckinHistory)
	a.mux.HandleFunc("GET /v1/credits/{ownerID}", a.handleCredits)
	a.mux.HandleFunc("GET /v1/checkins/stream", a.Stream)

	if a.issuerTTL > 0 {
		a.mux.HandleFunc("POST /v1/auth/token", a.handleAuthToken)
	}

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "resource not found")
	})

	return a
}

// Handler returns the mux wrapped in metrics and the middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.origins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readiness.Check(r.Context()); err != nil {
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
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
