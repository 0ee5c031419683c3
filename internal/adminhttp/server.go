// Package adminhttp serves the operational HTTP surface: the admin ping
// page and the Prometheus metrics exposition.
package adminhttp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Params names the identity the ping page reports.
type Params struct {
	AppName string
	Version string
	Addr    string
}

// Server hosts /admin/ping and /metrics.
type Server struct {
	params   Params
	gatherer prometheus.Gatherer
	httpSrv  *http.Server
	now      func() time.Time
}

// New builds a Server over the metrics gatherer (a registry, or a
// dynamic wrapper when the registry changes per run). Start must be
// called to begin serving.
func New(params Params, gatherer prometheus.Gatherer) *Server {
	s := &Server{params: params, gatherer: gatherer, now: time.Now}
	s.httpSrv = &http.Server{Addr: params.Addr, Handler: s.Handler()}
	return s
}

// Handler returns the routed handler, also used directly by tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/admin/ping", s.handlePing)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start serves until Shutdown; it returns http.ErrServerClosed on a
// clean stop.
func (s *Server) Start() error {
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops the server, waiting for in-flight requests up to ctx's
// deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w,
		"<html><head><title>%s</title></head><body><h1>%s</h1><p>version %s</p><p>%s</p></body></html>",
		s.params.AppName, s.params.AppName, s.params.Version, s.now().Format(time.RFC3339))
}
