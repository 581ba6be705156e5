package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var bootTime = time.Now().UTC()

var loginOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "reqdesk_login_attempts_total",
	Help: "Login attempts by outcome.",
}, []string{"outcome"})

func (s *Server) registerObservabilityRoutes() {
	s.router.MethodFunc("GET", "/healthz", s.healthz)
	s.router.MethodFunc("GET", "/readyz", s.readyz)
	if s.cfg == nil || !s.cfg.Observability.MetricsEnabled {
		return
	}
	s.router.Method("GET", "/metrics", s.metricsAuth(promhttp.HandlerFor(s.buildRegistry(), promhttp.HandlerOpts{})))
}

func (s *Server) buildRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	_ = reg.Register(collectors.NewGoCollector())
	_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "reqdesk_uptime_seconds",
			Help: "Process uptime in seconds.",
		}, func() float64 { return time.Since(bootTime).Seconds() }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "reqdesk_sessions_open",
			Help: "Sessions that are neither revoked nor past expiry.",
		}, s.openSessionCount),
		loginOutcomes,
	)
	return reg
}

func (s *Server) openSessionCount() float64 {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE revoked=0 AND expires_at > ?`,
		time.Now().UTC()).Scan(&n)
	if err != nil {
		return 0
	}
	return float64(n)
}

// metricsAuth requires a bearer token on /metrics. An empty configured token
// closes the endpoint rather than opening it.
func (s *Server) metricsAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if s.cfg != nil {
			token = strings.TrimSpace(s.cfg.Observability.MetricsToken)
		}
		got := r.Header.Get("Authorization")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte("Bearer "+token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	env := ""
	if s.cfg != nil {
		env = s.cfg.AppEnv
	}
	s.healthRespond(w, http.StatusOK, map[string]any{
		"ok":         true,
		"now":        time.Now().UTC().Format(time.RFC3339Nano),
		"uptime_sec": int64(time.Since(bootTime).Seconds()),
		"app_env":    env,
	})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()
	if s.db == nil || s.db.PingContext(ctx) != nil {
		s.healthRespond(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
		return
	}
	s.healthRespond(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) healthRespond(w http.ResponseWriter, code int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
