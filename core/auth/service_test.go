package auth_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"reqdesk/config"
	"reqdesk/core/auth"
	"reqdesk/core/rbac"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

type authEnv struct {
	cfg      *config.AppConfig
	db       *sql.DB
	users    store.UsersStore
	sessions store.SessionStore
	svc      *auth.Service
	sm       *auth.SessionManager
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DBPath:          filepath.Join(dir, "auth.db"),
		Pepper:          "test-pepper",
		CSRFKey:         "test-csrf-key",
		MaxFailedLogins: 3,
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, cfg, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	users := store.NewUsersStore(db)
	sessions := store.NewSessionStore(db)
	audits := store.NewAuditStore(db)
	sm := auth.NewSessionManager(sessions, cfg, logger)
	svc := auth.NewService(cfg, users, sm, audits, logger)
	return &authEnv{cfg: cfg, db: db, users: users, sessions: sessions, svc: svc, sm: sm}
}

func (e *authEnv) seedUser(t *testing.T, handle, password string) *store.User {
	t.Helper()
	ph := auth.MustHashPassword(password, e.cfg.Pepper)
	u := &store.User{
		Handle:       handle,
		Role:         string(rbac.RoleUser),
		PasswordHash: ph.Hash,
		Salt:         ph.Salt,
		Active:       true,
	}
	id, err := e.users.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("seed %s: %v", handle, err)
	}
	u.ID = id
	return u
}

func TestLoginSuccess(t *testing.T) {
	env := newAuthEnv(t)
	env.seedUser(t, "alice", "Sup3rSecret!pass")

	res, err := env.svc.Login(context.Background(), "Alice", "Sup3rSecret!pass", "127.0.0.1", "go-test")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Session == nil || res.Session.ID == "" || res.Session.CSRFToken == "" {
		t.Fatalf("session not created: %+v", res.Session)
	}
	if res.PasswordChangeRequired {
		t.Fatalf("unexpected forced password change")
	}
	if res.User.FailedAttempts != 0 || res.User.LastLoginAt == nil {
		t.Fatalf("login bookkeeping missing: %+v", res.User)
	}
	got, err := env.sm.Validate(context.Background(), res.Session.ID)
	if err != nil || got == nil {
		t.Fatalf("fresh session does not validate: %v", err)
	}
}

func TestLoginUnknownHandle(t *testing.T) {
	env := newAuthEnv(t)
	_, err := env.svc.Login(context.Background(), "ghost", "whatever123A", "", "")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	// Unknown handle carries no attempt counter.
	if auth.AttemptsRemaining(err) != -1 {
		t.Fatalf("unknown handle leaked attempt count")
	}
}

func TestLoginValidation(t *testing.T) {
	env := newAuthEnv(t)
	for _, tc := range []struct{ handle, password string }{
		{"", "something123A"},
		{"alice", ""},
		{"a", "something123A"},
		{"bad handle!", "something123A"},
	} {
		_, err := env.svc.Login(context.Background(), tc.handle, tc.password, "", "")
		if !errors.Is(err, auth.ErrValidation) {
			t.Fatalf("login(%q,%q) err = %v, want ErrValidation", tc.handle, tc.password, err)
		}
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	env := newAuthEnv(t)
	u := env.seedUser(t, "bob", "Sup3rSecret!pass")
	if err := env.users.SetActive(context.Background(), u.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := env.svc.Login(context.Background(), "bob", "Sup3rSecret!pass", "", "")
	if !errors.Is(err, auth.ErrAccountInactive) {
		t.Fatalf("err = %v, want ErrAccountInactive", err)
	}
	got, _ := env.users.Get(context.Background(), u.ID)
	if got.FailedAttempts != 0 {
		t.Fatalf("inactive login touched the counter: %d", got.FailedAttempts)
	}
}

func TestLockoutAtThreshold(t *testing.T) {
	env := newAuthEnv(t)
	u := env.seedUser(t, "carol", "Sup3rSecret!pass")
	ctx := context.Background()

	// Open a session so the lockout can revoke it.
	res, err := env.svc.Login(ctx, "carol", "Sup3rSecret!pass", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	for i := 1; i < env.cfg.EffectiveMaxFailedLogins(); i++ {
		_, err := env.svc.Login(ctx, "carol", "wrong-password1A", "", "")
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("attempt %d err = %v", i, err)
		}
		want := env.cfg.EffectiveMaxFailedLogins() - i
		if got := auth.AttemptsRemaining(err); got != want {
			t.Fatalf("attempt %d remaining = %d, want %d", i, got, want)
		}
	}

	// The final failure trips the lockout.
	_, err = env.svc.Login(ctx, "carol", "wrong-password1A", "", "")
	if !errors.Is(err, auth.ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}
	if auth.AttemptsRemaining(err) != 0 {
		t.Fatalf("locked verdict should carry zero remaining attempts")
	}
	got, _ := env.users.Get(ctx, u.ID)
	if got.Active || got.LockedAt == nil {
		t.Fatalf("account not locked: %+v", got)
	}
	if _, err := env.sm.Validate(ctx, res.Session.ID); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("lockout left a live session: %v", err)
	}

	// Even the right password is rejected now.
	_, err = env.svc.Login(ctx, "carol", "Sup3rSecret!pass", "", "")
	if !errors.Is(err, auth.ErrAccountInactive) {
		t.Fatalf("post-lockout err = %v, want ErrAccountInactive", err)
	}
}

func TestSuccessResetsCounter(t *testing.T) {
	env := newAuthEnv(t)
	u := env.seedUser(t, "dave", "Sup3rSecret!pass")
	ctx := context.Background()

	for i := 0; i < env.cfg.EffectiveMaxFailedLogins()-1; i++ {
		_, _ = env.svc.Login(ctx, "dave", "wrong-password1A", "", "")
	}
	if _, err := env.svc.Login(ctx, "dave", "Sup3rSecret!pass", "", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	got, _ := env.users.Get(ctx, u.ID)
	if got.FailedAttempts != 0 {
		t.Fatalf("counter = %d after success", got.FailedAttempts)
	}
	// A fresh failure starts from a clean slate.
	_, err := env.svc.Login(ctx, "dave", "wrong-password1A", "", "")
	want := env.cfg.EffectiveMaxFailedLogins() - 1
	if got := auth.AttemptsRemaining(err); got != want {
		t.Fatalf("remaining = %d, want %d", got, want)
	}
}

func TestTempPasswordLogin(t *testing.T) {
	env := newAuthEnv(t)
	u := env.seedUser(t, "erin", "Sup3rSecret!pass")
	ctx := context.Background()

	secret, err := env.svc.IssueTempPassword(ctx, u.ID, "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	res, err := env.svc.Login(ctx, "erin", secret, "", "")
	if err != nil {
		t.Fatalf("temp login: %v", err)
	}
	if !res.PasswordChangeRequired {
		t.Fatalf("temp credential login must force a password change")
	}
	// The regular password still works; the pending change persists until
	// the password is actually rotated.
	res, err = env.svc.Login(ctx, "erin", "Sup3rSecret!pass", "", "")
	if err != nil {
		t.Fatalf("regular login: %v", err)
	}
	if !res.PasswordChangeRequired {
		t.Fatalf("pending password change dropped without a rotation")
	}
	if err := env.svc.UpdatePassword(ctx, u.ID, "Brand!New1Secret"); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	res, err = env.svc.Login(ctx, "erin", "Brand!New1Secret", "", "")
	if err != nil {
		t.Fatalf("login after rotation: %v", err)
	}
	if res.PasswordChangeRequired {
		t.Fatalf("rotation did not clear the pending change")
	}
	if _, err := env.svc.Login(ctx, "erin", secret, "", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("retired temp credential still accepted: %v", err)
	}
}

func TestExpiredTempPasswordFallsThrough(t *testing.T) {
	env := newAuthEnv(t)
	u := env.seedUser(t, "frank", "Sup3rSecret!pass")
	ctx := context.Background()

	ph := auth.MustHashPassword("abc123", env.cfg.Pepper)
	expired := time.Now().UTC().Add(-time.Minute)
	if err := env.users.SetTempPassword(ctx, u.ID, ph.Hash, ph.Salt, expired); err != nil {
		t.Fatalf("set temp: %v", err)
	}
	// Exact match on the expired secret reads as a plain wrong password.
	_, err := env.svc.Login(ctx, "frank", "abc123", "", "")
	if !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	got, _ := env.users.Get(ctx, u.ID)
	if got.FailedAttempts != 1 {
		t.Fatalf("expired temp attempt not counted: %d", got.FailedAttempts)
	}
}

func TestUpdatePassword(t *testing.T) {
	env := newAuthEnv(t)
	u := env.seedUser(t, "grace", "Sup3rSecret!pass")
	ctx := context.Background()

	if err := env.svc.UpdatePassword(ctx, u.ID, "short"); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("weak password err = %v, want ErrValidation", err)
	}
	if err := env.svc.UpdatePassword(ctx, u.ID, "N3w!SecretValue"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := env.svc.Login(ctx, "grace", "Sup3rSecret!pass", "", ""); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := env.svc.Login(ctx, "grace", "N3w!SecretValue", "", ""); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestLogoutIdempotent(t *testing.T) {
	env := newAuthEnv(t)
	env.seedUser(t, "heidi", "Sup3rSecret!pass")
	ctx := context.Background()

	res, err := env.svc.Login(ctx, "heidi", "Sup3rSecret!pass", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := env.svc.Logout(ctx, res.Session.ID, "heidi"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := env.svc.Logout(ctx, res.Session.ID, "heidi"); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if err := env.svc.Logout(ctx, "no-such-session", "heidi"); err != nil {
		t.Fatalf("unknown session logout: %v", err)
	}
	if _, err := env.sm.Validate(ctx, res.Session.ID); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("session survived logout: %v", err)
	}
}

func TestUnlockAccount(t *testing.T) {
	env := newAuthEnv(t)
	u := env.seedUser(t, "ivan", "Sup3rSecret!pass")
	ctx := context.Background()

	for i := 0; i < env.cfg.EffectiveMaxFailedLogins(); i++ {
		_, _ = env.svc.Login(ctx, "ivan", "wrong-password1A", "", "")
	}
	if err := env.svc.UnlockAccount(ctx, u.ID, "admin"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := env.svc.Login(ctx, "ivan", "Sup3rSecret!pass", "", ""); err != nil {
		t.Fatalf("login after unlock: %v", err)
	}
}
