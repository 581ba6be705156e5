package auth

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"reqdesk/config"
	"reqdesk/core/rbac"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

// Service is the single owner of the login/logout lifecycle. Every entry
// point into authentication goes through here; handlers hold no credential
// logic of their own.
type Service struct {
	cfg      *config.AppConfig
	users    store.UsersStore
	sessions *SessionManager
	audits   store.AuditStore
	logger   *utils.Logger
	locks    accountLocks
}

func NewService(cfg *config.AppConfig, users store.UsersStore, sessions *SessionManager, audits store.AuditStore, logger *utils.Logger) *Service {
	return &Service{cfg: cfg, users: users, sessions: sessions, audits: audits, logger: logger}
}

// accountLocks serializes login attempts per handle so the failed-attempt
// counter cannot be raced from within one process. Sharded: collisions only
// over-serialize, never under-serialize.
type accountLocks struct {
	shards [64]sync.Mutex
}

func (a *accountLocks) forHandle(handle string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(handle))
	return &a.shards[h.Sum32()%uint32(len(a.shards))]
}

// Login authenticates handle/password and opens a session.
//
// Verdicts follow a strict order: input validation, account lookup
// (unknown handle indistinguishable from wrong password), inactive check
// (no counter change), temporary-credential path, then regular password
// verification with the lockout counter. Store failures at any step are
// reported as ErrTransient and leave the counter untouched.
func (s *Service) Login(ctx context.Context, handle, password, ip, userAgent string) (*LoginResult, error) {
	handle = strings.ToLower(strings.TrimSpace(handle))
	if handle == "" || password == "" {
		return nil, fmt.Errorf("%w: handle and password are required", ErrValidation)
	}
	if err := utils.ValidateHandle(handle); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	mu := s.locks.forHandle(handle)
	mu.Lock()
	defer mu.Unlock()

	user, err := s.users.FindByHandle(ctx, handle)
	if err != nil {
		s.logError("login lookup for %s: %v", handle, err)
		return nil, ErrTransient
	}
	if user == nil {
		s.audit(ctx, handle, "auth.login_failed", "unknown handle")
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		s.audit(ctx, handle, "auth.login_blocked", "inactive account")
		return nil, ErrAccountInactive
	}

	now := time.Now().UTC()
	if ok, err := s.matchesTempPassword(user, password, now); err != nil {
		s.logError("temp credential verify for %s: %v", handle, err)
		return nil, ErrTransient
	} else if ok {
		return s.finishLogin(ctx, user, now, ip, userAgent, true)
	}

	ph, err := ParsePasswordHash(user.PasswordHash, user.Salt)
	if err != nil {
		// No usable credential on record still reads as a wrong password.
		return s.recordFailure(ctx, user, now)
	}
	ok, err := VerifyPassword(password, s.cfg.Pepper, ph)
	if err != nil {
		s.logError("password verify for %s: %v", handle, err)
		return nil, ErrTransient
	}
	if !ok {
		return s.recordFailure(ctx, user, now)
	}
	return s.finishLogin(ctx, user, now, ip, userAgent, user.RequirePasswordChange)
}

func (s *Service) matchesTempPassword(user *store.User, candidate string, now time.Time) (bool, error) {
	if user.TempPasswordHash == "" || user.TempPasswordExpiresAt == nil {
		return false, nil
	}
	// Strictly-before expiry; an expired secret falls through to the
	// regular password check even on an exact match.
	if !now.Before(*user.TempPasswordExpiresAt) {
		return false, nil
	}
	ph, err := ParsePasswordHash(user.TempPasswordHash, user.TempPasswordSalt)
	if err != nil {
		return false, err
	}
	return VerifyPassword(candidate, s.cfg.Pepper, ph)
}

func (s *Service) recordFailure(ctx context.Context, user *store.User, now time.Time) (*LoginResult, error) {
	max := s.cfg.EffectiveMaxFailedLogins()
	count, err := s.users.IncrementFailedAttempts(ctx, user.ID, user.FailedAttempts, now)
	if err != nil {
		// Includes a lost conditional update: someone else moved the counter
		// first. Not a verdict, so no lockout decision is taken here.
		s.logError("failed-attempt increment for %s: %v", user.Handle, err)
		return nil, ErrTransient
	}
	if count >= max {
		if err := s.users.LockAccount(ctx, user.ID, now); err != nil {
			s.logError("lock account %s: %v", user.Handle, err)
			return nil, ErrTransient
		}
		_ = s.sessions.DestroyAllForUser(ctx, user.ID, "lockout")
		s.audit(ctx, user.Handle, "auth.lockout", "after "+strconv.Itoa(count)+" failed attempts")
		return nil, &LoginError{Err: ErrAccountLocked, AttemptsRemaining: 0}
	}
	s.audit(ctx, user.Handle, "auth.login_failed", "invalid password")
	return nil, &LoginError{Err: ErrInvalidCredentials, AttemptsRemaining: max - count}
}

func (s *Service) finishLogin(ctx context.Context, user *store.User, now time.Time, ip, userAgent string, passwordChangeRequired bool) (*LoginResult, error) {
	role := rbac.Resolve(user.Role, user.LegacyRole)
	if err := s.users.RecordLoginSuccess(ctx, user.ID, string(role), now, passwordChangeRequired); err != nil {
		s.logError("record login success for %s: %v", user.Handle, err)
		return nil, ErrTransient
	}
	sess, err := s.sessions.Create(ctx, user, role, ip, userAgent)
	if err != nil {
		s.logError("session create for %s: %v", user.Handle, err)
		return nil, ErrTransient
	}
	user.Role = string(role)
	user.FailedAttempts = 0
	user.LastLoginAt = &now
	user.RequirePasswordChange = passwordChangeRequired
	s.audit(ctx, user.Handle, "auth.login_success", "")
	return &LoginResult{User: user, Session: sess, PasswordChangeRequired: passwordChangeRequired}, nil
}

// UpdatePassword stores a freshly salted hash and retires any temporary
// credential. Authorization (account owner or administrator) is the
// caller's responsibility.
func (s *Service) UpdatePassword(ctx context.Context, userID int64, newPassword string) error {
	if err := utils.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		s.logError("update password lookup %d: %v", userID, err)
		return ErrTransient
	}
	if user == nil {
		return ErrInvalidCredentials
	}
	ph, err := HashPassword(newPassword, s.cfg.Pepper)
	if err != nil {
		return ErrTransient
	}
	if err := s.users.UpdatePassword(ctx, userID, ph.Hash, ph.Salt); err != nil {
		s.logError("update password store %d: %v", userID, err)
		return ErrTransient
	}
	s.audit(ctx, user.Handle, "auth.password_changed", "")
	return nil
}

// Logout revokes the session. Idempotent: revoking twice or revoking an
// unknown ID succeeds.
func (s *Service) Logout(ctx context.Context, sessionID, actor string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, sessionID, actor); err != nil {
		s.logError("logout %s: %v", actor, err)
		return ErrTransient
	}
	s.audit(ctx, actor, "auth.logout", "")
	return nil
}

// UnlockAccount reactivates a locked account, zeroing the failed counter
// and clearing the lock timestamp.
func (s *Service) UnlockAccount(ctx context.Context, userID int64, by string) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		s.logError("unlock lookup %d: %v", userID, err)
		return ErrTransient
	}
	if user == nil {
		return ErrInvalidCredentials
	}
	if err := s.users.UnlockAccount(ctx, userID); err != nil {
		s.logError("unlock %d: %v", userID, err)
		return ErrTransient
	}
	s.audit(ctx, by, "auth.account_unlocked", "handle="+user.Handle)
	return nil
}

// IssueTempPassword creates an administrator-issued, time-limited secret
// permitting one login cycle. The plaintext is returned once and never
// stored.
func (s *Service) IssueTempPassword(ctx context.Context, userID int64, by string) (string, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		s.logError("temp password lookup %d: %v", userID, err)
		return "", ErrTransient
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	secret, err := utils.RandString(9)
	if err != nil {
		return "", ErrTransient
	}
	ph, err := HashPassword(secret, s.cfg.Pepper)
	if err != nil {
		return "", ErrTransient
	}
	expires := time.Now().UTC().Add(s.cfg.EffectiveTempPasswordTTL())
	if err := s.users.SetTempPassword(ctx, userID, ph.Hash, ph.Salt, expires); err != nil {
		s.logError("temp password store %d: %v", userID, err)
		return "", ErrTransient
	}
	s.audit(ctx, by, "auth.temp_password_issued", "handle="+user.Handle)
	return secret, nil
}

func (s *Service) audit(ctx context.Context, actor, action, details string) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Log(ctx, actor, action, details); err != nil && s.logger != nil {
		s.logger.Errorf("audit %s: %v", action, err)
	}
}

func (s *Service) logError(format string, v ...any) {
	if s.logger != nil {
		s.logger.Errorf(format, v...)
	}
}
