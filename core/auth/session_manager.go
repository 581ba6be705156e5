package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reqdesk/config"
	"reqdesk/core/rbac"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

// SessionManager owns the lifecycle of persisted sessions: creation on
// login, idle/absolute expiry on validation, explicit destruction on logout
// or administrative revocation.
type SessionManager struct {
	sessions store.SessionStore
	cfg      *config.AppConfig
	logger   *utils.Logger
}

func NewSessionManager(sessions store.SessionStore, cfg *config.AppConfig, logger *utils.Logger) *SessionManager {
	return &SessionManager{sessions: sessions, cfg: cfg, logger: logger}
}

func (m *SessionManager) Create(ctx context.Context, user *store.User, role rbac.Role, ip, userAgent string) (*store.SessionRecord, error) {
	id := uuid.NewString()
	csrf, err := GenerateCSRF(m.cfg.CSRFKey, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &store.SessionRecord{
		ID:         id,
		UserID:     user.ID,
		Handle:     user.Handle,
		Role:       role,
		IP:         ip,
		UserAgent:  userAgent,
		CSRFToken:  csrf,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.cfg.EffectiveSessionTTL()),
	}
	if err := m.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate resolves a session ID to a live record. A session past its
// absolute expiry or idle for longer than the configured window is revoked
// here; the revocation UPDATE is guarded on revoked=0, so the clear happens
// exactly once even when requests race.
func (m *SessionManager) Validate(ctx context.Context, id string) (*store.SessionRecord, error) {
	sr, err := m.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sr == nil || sr.Revoked {
		return nil, ErrSessionNotFound
	}
	now := time.Now().UTC()
	if now.After(sr.ExpiresAt) {
		_, _ = m.sessions.DeleteSession(ctx, sr.ID, "expiry")
		return nil, ErrSessionNotFound
	}
	if now.Sub(sr.LastSeenAt) > m.cfg.EffectiveIdleTimeout() {
		if m.logger != nil {
			m.logger.Printf("session %s idle-expired for %s", sr.ID, sr.Handle)
		}
		_, _ = m.sessions.DeleteSession(ctx, sr.ID, "idle-timeout")
		return nil, ErrSessionNotFound
	}
	return sr, nil
}

// Touch records activity, sliding the absolute expiry window forward.
func (m *SessionManager) Touch(ctx context.Context, id string, now time.Time) error {
	return m.sessions.UpdateActivity(ctx, id, now, now.Add(m.cfg.EffectiveSessionTTL()))
}

// Destroy revokes a session. Destroying an already-revoked or unknown
// session is a no-op.
func (m *SessionManager) Destroy(ctx context.Context, id, by string) error {
	_, err := m.sessions.DeleteSession(ctx, id, by)
	return err
}

func (m *SessionManager) DestroyAllForUser(ctx context.Context, userID int64, by string) error {
	_, err := m.sessions.DeleteAllForUser(ctx, userID, by)
	return err
}
