package store

import (
	"context"
	"database/sql"
	"time"
)

type SessionStore interface {
	SaveSession(ctx context.Context, rec *SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	UpdateActivity(ctx context.Context, id string, seenAt, expiresAt time.Time) error
	DeleteSession(ctx context.Context, id, revokedBy string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID int64, revokedBy string) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]SessionRecord, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionStore struct {
	db *sql.DB
}

func NewSessionStore(db *sql.DB) SessionStore {
	return &sessionStore{db: db}
}

func (s *sessionStore) SaveSession(ctx context.Context, rec *SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions(id, user_id, handle, role, ip, user_agent, csrf_token, created_at, last_seen_at, expires_at, revoked, revoked_at, revoked_by)
		VALUES(?,?,?,?,?,?,?,?,?,?,0,NULL,'')`,
		rec.ID, rec.UserID, rec.Handle, string(rec.Role), rec.IP, rec.UserAgent,
		rec.CSRFToken, rec.CreatedAt, rec.LastSeenAt, rec.ExpiresAt)
	return err
}

func (s *sessionStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, handle, role, ip, user_agent, csrf_token, created_at, last_seen_at, expires_at, revoked, revoked_at, revoked_by
		FROM sessions WHERE id=?`, id)
	rec := SessionRecord{}
	var role string
	var revoked int
	var revokedAt sql.NullTime
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.Handle, &role, &rec.IP, &rec.UserAgent,
		&rec.CSRFToken, &rec.CreatedAt, &rec.LastSeenAt, &rec.ExpiresAt,
		&revoked, &revokedAt, &rec.RevokedBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.Role = roleFromString(role)
	rec.Revoked = revoked == 1
	if revokedAt.Valid {
		rec.RevokedAt = &revokedAt.Time
	}
	return &rec, nil
}

func (s *sessionStore) UpdateActivity(ctx context.Context, id string, seenAt, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_seen_at=?, expires_at=? WHERE id=? AND revoked=0`,
		seenAt, expiresAt, id)
	return err
}

// DeleteSession revokes a live session. The revoked=0 guard makes the
// transition observable exactly once even under concurrent callers.
func (s *sessionStore) DeleteSession(ctx context.Context, id, revokedBy string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked=1, revoked_at=?, revoked_by=? WHERE id=? AND revoked=0`,
		time.Now().UTC(), revokedBy, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sessionStore) DeleteAllForUser(ctx context.Context, userID int64, revokedBy string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revoked=1, revoked_at=?, revoked_by=? WHERE user_id=? AND revoked=0`,
		time.Now().UTC(), revokedBy, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sessionStore) ListByUser(ctx context.Context, userID int64) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, handle, role, ip, user_agent, csrf_token, created_at, last_seen_at, expires_at, revoked, revoked_at, revoked_by
		FROM sessions WHERE user_id=? AND revoked=0 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionRecord
	for rows.Next() {
		rec := SessionRecord{}
		var role string
		var revoked int
		var revokedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Handle, &role, &rec.IP, &rec.UserAgent,
			&rec.CSRFToken, &rec.CreatedAt, &rec.LastSeenAt, &rec.ExpiresAt,
			&revoked, &revokedAt, &rec.RevokedBy); err != nil {
			return nil, err
		}
		rec.Role = roleFromString(role)
		rec.Revoked = revoked == 1
		if revokedAt.Valid {
			rec.RevokedAt = &revokedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteExpired hard-removes sessions that are past their absolute expiry
// or were revoked. Run from the maintenance sweeper.
func (s *sessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ? OR revoked=1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
