// Package httpapi wires the control plane's HTTP surface: mesh and
// server settings, route-update orchestration, live and ad-hoc
// telemetry, and the operational endpoints.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"meshctl/internal/config"
	"meshctl/internal/meshbus"
	"meshctl/internal/metrics"
	"meshctl/internal/routing"
	"meshctl/internal/settings"
	"meshctl/internal/telemetry"
)

// Server is the HTTP half of the control plane.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// Broker is the subset of *meshbus.Bridge the HTTP handlers need:
// queue a payload for the mesh, and reach the inbound fan-out bus.
// Narrowed to an interface so handlers can be tested against a fake.
type Broker interface {
	Enqueue(data []byte) error
	Bus() *meshbus.Bus
}

// Deps collects everything the HTTP handlers need.
type Deps struct {
	Config    *config.Config
	Bridge    Broker
	Settings  *settings.AppSettings
	Cache     *telemetry.Cache
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Adjacency *routing.Store
}

// NewServer builds the HTTP mux and wraps it with CORS and rate
// limiting middleware.
func NewServer(deps Deps) *Server {
	h := &handlers{deps: deps, updateGate: make(chan struct{}, 1)}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	mux.Handle("/admin/set-mesh-settings", instrument(deps.Metrics, "set-mesh-settings", h.handleSetMeshSettings))
	mux.Handle("/admin/set-server-settings", instrument(deps.Metrics, "set-server-settings", h.handleSetServerSettings))
	mux.Handle("/get-mesh-settings", instrument(deps.Metrics, "get-mesh-settings", h.handleGetMeshSettings))
	mux.Handle("/get-server-settings", instrument(deps.Metrics, "get-server-settings", h.handleGetServerSettings))
	mux.Handle("/admin/update-routes", instrument(deps.Metrics, "update-routes", h.handleUpdateRoutes))
	mux.HandleFunc("/info/live", h.handleLiveTelemetry)
	mux.Handle("/info/ad-hoc", instrument(deps.Metrics, "ad-hoc-telemetry", h.handleAdHocTelemetry))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		MaxAge:           300,
	}).Handler(mux)

	limiter := rate.NewLimiter(rate.Limit(50), 100)
	limited := rateLimitMiddleware(limiter, corsHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:         deps.Config.ServerAddr,
			Handler:      limited,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // websocket connections stay open indefinitely
		},
		logger: deps.Logger,
	}
}

// instrument wraps a handler to record request counts and latency under
// a fixed route label, avoiding high-cardinality labels from raw paths.
func instrument(m *metrics.Metrics, route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		m.HTTPRequest(route, strconv.Itoa(sw.status), time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func rateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe starts the HTTP server; it blocks until Shutdown is
// called or the listener fails.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
