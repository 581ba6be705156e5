package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"reqdesk/config"
)

const (
	SessionCookieName = "reqdesk_session"
	CSRFCookieName    = "reqdesk_csrf"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request, name string) (int64, bool) {
	return parseID(chi.URLParam(r, name))
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func remoteIP(r *http.Request) string {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	return strings.TrimSpace(ip)
}

// clientIP resolves the caller address, honoring forwarding headers only
// when the direct peer is a configured trusted proxy.
func clientIP(r *http.Request, cfg *config.AppConfig) string {
	peer := remoteIP(r)
	if cfg == nil || !proxyTrusted(peer, cfg.Security.TrustedProxies) {
		return peer
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if candidate := strings.TrimSpace(first); candidate != "" {
			return candidate
		}
	}
	if real := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); real != nil {
		return real.String()
	}
	return peer
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

func isSecureRequest(r *http.Request, cfg *config.AppConfig) bool {
	if r == nil {
		return false
	}
	if r.TLS != nil || (cfg != nil && cfg.TLSEnabled) {
		return true
	}
	if cfg == nil || !proxyTrusted(remoteIP(r), cfg.Security.TrustedProxies) {
		return false
	}
	proto, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Proto"), ",")
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}
