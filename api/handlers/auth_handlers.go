package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"reqdesk/config"
	"reqdesk/core/auth"
	"reqdesk/core/bootstrap"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

type AuthHandler struct {
	cfg            *config.AppConfig
	svc            *auth.Service
	sessionManager *auth.SessionManager
	users          store.UsersStore
	logger         *utils.Logger
	onLoginOutcome func(outcome string)
}

func NewAuthHandler(cfg *config.AppConfig, svc *auth.Service, sm *auth.SessionManager, users store.UsersStore, logger *utils.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, svc: svc, sessionManager: sm, users: users, logger: logger}
}

// SetLoginOutcomeHook installs an observer called once per login verdict.
func (h *AuthHandler) SetLoginOutcomeHook(fn func(outcome string)) {
	h.onLoginOutcome = fn
}

func (h *AuthHandler) outcome(name string) {
	if h.onLoginOutcome != nil {
		h.onLoginOutcome(name)
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	// Re-seed the default admin in case the users table was wiped.
	if err := bootstrap.EnsureDefaultAdminWithStore(r.Context(), h.users, h.cfg, h.logger); err != nil && h.logger != nil {
		h.logger.Errorf("ensure default admin: %v", err)
	}
	var cred auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&cred); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	res, err := h.svc.Login(r.Context(), cred.Handle, cred.Password, clientIP(r, h.cfg), r.UserAgent())
	if err != nil {
		h.writeLoginError(w, err)
		return
	}
	h.outcome("success")
	sess := res.Session
	h.setSessionCookies(w, r, sess.ID, sess.CSRFToken, sess.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":                     auth.NewUserDTO(res.User),
		"csrf_token":               sess.CSRFToken,
		"password_change_required": res.PasswordChangeRequired,
	})
}

func (h *AuthHandler) writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		h.outcome("invalid_input")
		http.Error(w, "bad request", http.StatusBadRequest)
	case errors.Is(err, auth.ErrAccountLocked):
		h.outcome("locked")
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":              "account locked",
			"attempts_remaining": 0,
		})
	case errors.Is(err, auth.ErrAccountInactive):
		h.outcome("inactive")
		http.Error(w, "account inactive", http.StatusForbidden)
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.outcome("invalid_credentials")
		body := map[string]any{"error": "invalid credentials"}
		if remaining := auth.AttemptsRemaining(err); remaining >= 0 {
			body["attempts_remaining"] = remaining
		}
		writeJSON(w, http.StatusUnauthorized, body)
	default:
		h.outcome("error")
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	actor := ""
	if ctxSess := r.Context().Value(auth.SessionContextKey); ctxSess != nil {
		actor = ctxSess.(*store.SessionRecord).Handle
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		_ = h.svc.Logout(r.Context(), cookie.Value, actor)
	}
	h.clearSessionCookies(w, r)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// setSessionCookies writes the opaque session cookie plus the readable CSRF
// twin for double-submit checks.
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, r *http.Request, sessionID, csrfToken string, expires time.Time) {
	secure := isSecureRequest(r, h.cfg)
	http.SetCookie(w, &http.Cookie{
		Name: SessionCookieName, Value: sessionID, Path: "/",
		HttpOnly: true, Secure: secure, SameSite: http.SameSiteLaxMode, Expires: expires,
	})
	http.SetCookie(w, &http.Cookie{
		Name: CSRFCookieName, Value: csrfToken, Path: "/",
		Secure: secure, SameSite: http.SameSiteLaxMode, Expires: expires,
	})
}

func (h *AuthHandler) clearSessionCookies(w http.ResponseWriter, r *http.Request) {
	secure := isSecureRequest(r, h.cfg)
	for _, name := range []string{SessionCookieName, CSRFCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name: name, Value: "", Path: "/", MaxAge: -1,
			HttpOnly: name == SessionCookieName, Secure: secure, SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sr := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	user, err := h.users.Get(r.Context(), sr.UserID)
	if err != nil || user == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":       auth.NewUserDTO(user),
		"csrf_token": sr.CSRFToken,
	})
}

// Ping keeps a session alive from an otherwise idle page.
func (h *AuthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	sr := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	now := time.Now().UTC()
	if !sr.LastSeenAt.IsZero() && !now.After(sr.LastSeenAt) {
		now = sr.LastSeenAt.Add(1 * time.Millisecond)
	}
	_ = h.sessionManager.Touch(r.Context(), sr.ID, now)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "last_seen_at": now})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sr := r.Context().Value(auth.SessionContextKey).(*store.SessionRecord)
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	user, err := h.users.Get(r.Context(), sr.UserID)
	if err != nil || user == nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	// A forced change (fresh temp credential login) skips the current
	// password check; the caller just proved a credential moments ago.
	if !user.RequirePasswordChange {
		ph, err := auth.ParsePasswordHash(user.PasswordHash, user.Salt)
		if err != nil {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		ok, err := auth.VerifyPassword(req.CurrentPassword, h.cfg.Pepper, ph)
		if err != nil || !ok {
			http.Error(w, "invalid current password", http.StatusForbidden)
			return
		}
	}
	if err := h.svc.UpdatePassword(r.Context(), sr.UserID, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
