package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reqdesk/core/auth"
	"reqdesk/core/store"
)

func TestValidateUnknownSession(t *testing.T) {
	env := newAuthEnv(t)
	if _, err := env.sm.Validate(context.Background(), "nope"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestValidateAbsoluteExpiry(t *testing.T) {
	env := newAuthEnv(t)
	u := env.seedUser(t, "mallory", "Sup3rSecret!pass")
	ctx := context.Background()
	now := time.Now().UTC()

	rec := &store.SessionRecord{
		ID: "stale", UserID: u.ID, Handle: u.Handle, Role: "user",
		CreatedAt: now.Add(-2 * time.Hour), LastSeenAt: now, ExpiresAt: now.Add(-time.Minute),
	}
	if err := env.sessions.SaveSession(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := env.sm.Validate(ctx, "stale"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	got, _ := env.sessions.GetSession(ctx, "stale")
	if got == nil || !got.Revoked || got.RevokedBy != "expiry" {
		t.Fatalf("expired session not revoked: %+v", got)
	}
}

func TestValidateIdleTimeout(t *testing.T) {
	env := newAuthEnv(t)
	env.cfg.IdleTimeout = 10 * time.Millisecond
	u := env.seedUser(t, "nick", "Sup3rSecret!pass")
	ctx := context.Background()

	sess, err := env.sm.Create(ctx, u, "user", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.sm.Validate(ctx, sess.ID); err != nil {
		t.Fatalf("fresh session rejected: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	if _, err := env.sm.Validate(ctx, sess.ID); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("idle session survived: %v", err)
	}
	got, _ := env.sessions.GetSession(ctx, sess.ID)
	if got == nil || !got.Revoked || got.RevokedBy != "idle-timeout" {
		t.Fatalf("idle session not revoked: %+v", got)
	}
	// Once revoked, a second validation sees the same terminal state.
	if _, err := env.sm.Validate(ctx, sess.ID); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("revoked session resurrected: %v", err)
	}
}

func TestTouchExtendsIdleWindow(t *testing.T) {
	env := newAuthEnv(t)
	env.cfg.IdleTimeout = 40 * time.Millisecond
	u := env.seedUser(t, "olga", "Sup3rSecret!pass")
	ctx := context.Background()

	sess, err := env.sm.Create(ctx, u, "user", "", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	for i := 0; i < 3; i++ {
		time.Sleep(15 * time.Millisecond)
		if err := env.sm.Touch(ctx, sess.ID, time.Now().UTC()); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}
	if _, err := env.sm.Validate(ctx, sess.ID); err != nil {
		t.Fatalf("active session rejected after 45ms of touches: %v", err)
	}
}
