package store

import (
	"context"
	"database/sql"
	"time"
)

type NotificationsStore interface {
	Notify(ctx context.Context, userIDs []int64, kind, message string, requestID *int64) error
	ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID, notificationID int64) error
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
	DeleteOld(ctx context.Context, before time.Time) (int64, error)
}

type notificationsStore struct {
	db *sql.DB
}

func NewNotificationsStore(db *sql.DB) NotificationsStore {
	return &notificationsStore{db: db}
}

// Notify fans one message out to every recipient in a single transaction,
// so a partial delivery never becomes visible.
func (s *notificationsStore) Notify(ctx context.Context, userIDs []int64, kind, message string, requestID *int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notifications(user_id, kind, message, request_id, read, read_at, created_at)
		VALUES(?,?,?,?,0,NULL,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, uid := range userIDs {
		if _, err := stmt.ExecContext(ctx, uid, kind, message, nullID(requestID), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *notificationsStore) ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]Notification, error) {
	q := `SELECT id, user_id, kind, message, request_id, read, read_at, created_at
		FROM notifications WHERE user_id=?`
	if unreadOnly {
		q += ` AND read=0`
	}
	q += ` ORDER BY created_at DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Notification
	for rows.Next() {
		n := Notification{}
		var requestID sql.NullInt64
		var read int
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Message, &requestID, &read, &readAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if requestID.Valid {
			n.RequestID = &requestID.Int64
		}
		n.Read = read == 1
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *notificationsStore) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=? AND read=0`, userID).Scan(&n)
	return n, err
}

// MarkRead is idempotent; marking an already-read notification is a no-op.
func (s *notificationsStore) MarkRead(ctx context.Context, userID, notificationID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read=1, read_at=? WHERE id=? AND user_id=? AND read=0`,
		time.Now().UTC(), notificationID, userID)
	return err
}

func (s *notificationsStore) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read=1, read_at=? WHERE user_id=? AND read=0`,
		time.Now().UTC(), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *notificationsStore) DeleteOld(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications WHERE read=1 AND created_at < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
