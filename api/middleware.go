package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"reqdesk/core/auth"
	"reqdesk/core/rbac"
	"reqdesk/core/store"
)

const (
	sessionCookie           = "reqdesk_session"
	csrfCookie              = "reqdesk_csrf"
	sessionActivityInterval = 30 * time.Second

	throttleEntryTTL  = 10 * time.Minute
	throttleSweepGap  = time.Minute
	throttleMaxKeys   = 10000
)

// loginThrottle caps login attempts per key (client IP or handle) using a
// fixed window. Stale keys are swept lazily on the allow path.
type loginThrottle struct {
	mu        sync.Mutex
	entries   map[string]*throttleEntry
	limit     int
	window    time.Duration
	maxKeys   int
	lastSweep time.Time
}

type throttleEntry struct {
	count   int
	opened  time.Time
	touched time.Time
}

func newLoginThrottle(limit int, window time.Duration) *loginThrottle {
	return &loginThrottle{
		entries: make(map[string]*throttleEntry),
		limit:   limit,
		window:  window,
		maxKeys: throttleMaxKeys,
	}
}

func (t *loginThrottle) allow(key string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.Sub(t.lastSweep) >= throttleSweepGap {
		t.sweep(now)
		t.lastSweep = now
	}
	e := t.entries[key]
	if e == nil || now.Sub(e.opened) >= t.window {
		t.entries[key] = &throttleEntry{count: 1, opened: now, touched: now}
		return true
	}
	e.touched = now
	if e.count >= t.limit {
		return false
	}
	e.count++
	return true
}

func (t *loginThrottle) sweep(now time.Time) {
	for key, e := range t.entries {
		if now.Sub(e.touched) > throttleEntryTTL {
			delete(t.entries, key)
		}
	}
	for len(t.entries) > t.maxKeys {
		victim := ""
		var victimSeen time.Time
		for key, e := range t.entries {
			if victim == "" || e.touched.Before(victimSeen) {
				victim, victimSeen = key, e.touched
			}
		}
		if victim == "" {
			return
		}
		delete(t.entries, victim)
	}
}

// activityDebounce spaces out session activity writes so a chatty client
// does not hit the database on every call.
type activityDebounce struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newActivityDebounce() *activityDebounce {
	return &activityDebounce{seen: map[string]time.Time{}}
}

func (d *activityDebounce) due(id string, now time.Time, interval time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.seen[id]; ok && now.Sub(prev) < interval {
		return false
	}
	d.seen[id] = now
	return true
}

var securityHeaders = map[string]string{
	"Content-Security-Policy": "default-src 'self'; style-src 'self'; script-src 'self'; img-src 'self' data:; object-src 'none'; frame-ancestors 'self'",
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "SAMEORIGIN",
	"Referrer-Policy":         "no-referrer",
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for name, value := range securityHeaders {
			w.Header().Set(name, value)
		}
		if s.cfg.TLSEnabled {
			w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseMeta{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.logger == nil {
			return
		}
		user := "-"
		if v := r.Context().Value(auth.SessionContextKey); v != nil {
			user = v.(*store.SessionRecord).Handle
		}
		s.logger.Printf("RESP %s %s user=%s status=%d dur=%s bytes=%d",
			r.Method, r.URL.Path, user, rec.status, time.Since(start), rec.written)
	})
}

type responseMeta struct {
	http.ResponseWriter
	status  int
	written int
}

func (m *responseMeta) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeta) Write(b []byte) (int, error) {
	n, err := m.ResponseWriter.Write(b)
	m.written += n
	return n, err
}

// withSession authenticates the request. Idle and absolute expiry are
// enforced inside SessionManager.Validate; a session rejected there reads
// the same as a missing one.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		sr, err := s.sessionManager.Validate(r.Context(), cookie.Value)
		if err != nil || sr == nil {
			if s.logger != nil {
				s.logger.Printf("AUTH fail (session) %s %s", r.Method, r.URL.Path)
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		user, err := s.users.Get(r.Context(), sr.UserID)
		if err != nil || user == nil || !user.Active {
			_ = s.sessionManager.Destroy(r.Context(), sr.ID, sr.Handle)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if user.RequirePasswordChange && !allowedForPasswordChange(r.URL.Path) {
			http.Error(w, "password change required", http.StatusForbidden)
			return
		}
		if mutatingMethod(r.Method) {
			header := r.Header.Get("X-CSRF-Token")
			csrfC, _ := r.Cookie(csrfCookie)
			if header == "" || csrfC == nil || header != csrfC.Value || header != sr.CSRFToken {
				if s.logger != nil {
					s.logger.Printf("AUTH fail (csrf) %s %s user=%s", r.Method, r.URL.Path, sr.Handle)
				}
				http.Error(w, "csrf invalid", http.StatusForbidden)
				return
			}
		}
		ctx := context.WithValue(r.Context(), auth.SessionContextKey, sr)
		now := time.Now().UTC()
		if s.activityTracker == nil || s.activityTracker.due(sr.ID, now, sessionActivityInterval) {
			_ = s.sessionManager.Touch(r.Context(), sr.ID, now)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func mutatingMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// requireRoute gates a handler on the session role's access to a named
// navigation target. Unknown targets and unknown roles are denied.
func (s *Server) requireRoute(route string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			val := r.Context().Value(auth.SessionContextKey)
			if val == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			sess := val.(*store.SessionRecord)
			if !rbac.Allowed(sess.Role, route) {
				if s.logger != nil {
					s.logger.Printf("ACCESS fail %s %s user=%s role=%s need=%s",
						r.Method, r.URL.Path, sess.Handle, sess.Role, route)
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}

func allowedForPasswordChange(path string) bool {
	switch {
	case strings.HasPrefix(path, "/api/auth/change-password"),
		strings.HasPrefix(path, "/api/auth/logout"),
		path == "/api/auth/me":
		return true
	}
	return false
}

// rateLimitMiddleware throttles by both client IP and the submitted handle,
// so one address cannot walk many accounts and many addresses cannot walk
// one account.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var cred auth.Credentials
		_ = json.Unmarshal(body, &cred)
		handle := strings.ToLower(strings.TrimSpace(cred.Handle))
		if !s.loginLimiter.allow("ip|" + strings.ToLower(s.clientIP(r))) {
			http.Error(w, "too many attempts", http.StatusTooManyRequests)
			return
		}
		if handle != "" && !s.loginLimiter.allow("user|"+handle) {
			http.Error(w, "too many attempts", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) clientIP(r *http.Request) string {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	ip = strings.TrimSpace(ip)
	if s == nil || s.cfg == nil || !proxyTrusted(ip, s.cfg.Security.TrustedProxies) {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			if candidate := strings.TrimSpace(first); candidate != "" {
				return candidate
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return ip
}

func proxyTrusted(ip string, trusted []string) bool {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil {
		return false
	}
	for _, raw := range trusted {
		val := strings.TrimSpace(raw)
		switch {
		case val == "":
		case strings.Contains(val, "/"):
			if _, block, err := net.ParseCIDR(val); err == nil && block.Contains(addr) {
				return true
			}
		case addr.Equal(net.ParseIP(val)):
			return true
		}
	}
	return false
}
