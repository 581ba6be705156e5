package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// ErrStaleCounter is returned when a conditional failed-attempt increment
// lost the race: the stored counter no longer matches the expected value.
var ErrStaleCounter = errors.New("failed-attempt counter changed concurrently")

type UsersStore interface {
	FindByHandle(ctx context.Context, handle string) (*User, error)
	Get(ctx context.Context, userID int64) (*User, error)
	Create(ctx context.Context, user *User) (int64, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user *User) error
	SetActive(ctx context.Context, userID int64, active bool) error
	UpdatePassword(ctx context.Context, userID int64, hash, salt string) error
	SetTempPassword(ctx context.Context, userID int64, hash, salt string, expiresAt time.Time) error
	RecordLoginSuccess(ctx context.Context, userID int64, role string, at time.Time, requireChange bool) error
	IncrementFailedAttempts(ctx context.Context, userID int64, expectedPrev int, at time.Time) (int, error)
	LockAccount(ctx context.Context, userID int64, at time.Time) error
	UnlockAccount(ctx context.Context, userID int64) error
	Delete(ctx context.Context, userID int64) error
	IDsByRole(ctx context.Context, roles ...string) ([]int64, error)
	IDsByOrg(ctx context.Context, orgID int64) ([]int64, error)
	ClearExpiredTempPasswords(ctx context.Context, now time.Time) (int64, error)
}

type usersStore struct {
	db *sql.DB
}

func NewUsersStore(db *sql.DB) UsersStore {
	return &usersStore{db: db}
}

const userColumns = `id, handle, display_name, email, role, legacy_role, org_id, password_hash, salt, require_password_change, temp_password_hash, temp_password_salt, temp_password_expires_at, active, failed_attempts, locked_at, last_login_at, password_changed_at, created_at, updated_at`

func (s *usersStore) FindByHandle(ctx context.Context, handle string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE handle=?`, strings.ToLower(handle))
	return scanUser(row)
}

func (s *usersStore) Get(ctx context.Context, userID int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, userID)
	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := User{}
	var orgID sql.NullInt64
	var tempExpires, lockedAt, lastLogin, pwChanged sql.NullTime
	var requireChange, active int
	if err := row.Scan(
		&u.ID, &u.Handle, &u.DisplayName, &u.Email, &u.Role, &u.LegacyRole, &orgID,
		&u.PasswordHash, &u.Salt, &requireChange,
		&u.TempPasswordHash, &u.TempPasswordSalt, &tempExpires,
		&active, &u.FailedAttempts, &lockedAt, &lastLogin, &pwChanged,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.RequirePasswordChange = requireChange == 1
	u.Active = active == 1
	if orgID.Valid {
		u.OrgID = &orgID.Int64
	}
	if tempExpires.Valid {
		u.TempPasswordExpiresAt = &tempExpires.Time
	}
	if lockedAt.Valid {
		u.LockedAt = &lockedAt.Time
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	if pwChanged.Valid {
		u.PasswordChangedAt = &pwChanged.Time
	}
	return &u, nil
}

func (s *usersStore) Create(ctx context.Context, user *User) (int64, error) {
	now := time.Now().UTC()
	user.Handle = strings.ToLower(strings.TrimSpace(user.Handle))
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users(handle, display_name, email, role, legacy_role, org_id, password_hash, salt, require_password_change, temp_password_hash, temp_password_salt, temp_password_expires_at, active, failed_attempts, locked_at, last_login_at, password_changed_at, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		user.Handle, user.DisplayName, user.Email, user.Role, user.LegacyRole, nullID(user.OrgID),
		user.PasswordHash, user.Salt, boolToInt(user.RequirePasswordChange),
		user.TempPasswordHash, user.TempPasswordSalt, nullTime(user.TempPasswordExpiresAt),
		boolToInt(user.Active), user.FailedAttempts, nullTime(user.LockedAt),
		nullTime(user.LastLoginAt), nullTime(user.PasswordChangedAt), now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *usersStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	return res, rows.Err()
}

func (s *usersStore) Update(ctx context.Context, user *User) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET display_name=?, email=?, role=?, legacy_role=?, org_id=?, require_password_change=?, active=?, updated_at=?
		WHERE id=?`,
		user.DisplayName, user.Email, user.Role, user.LegacyRole, nullID(user.OrgID),
		boolToInt(user.RequirePasswordChange), boolToInt(user.Active), time.Now().UTC(), user.ID)
	return err
}

func (s *usersStore) SetActive(ctx context.Context, userID int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET active=?, updated_at=? WHERE id=?`,
		boolToInt(active), time.Now().UTC(), userID)
	return err
}

func (s *usersStore) UpdatePassword(ctx context.Context, userID int64, hash, salt string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash=?, salt=?, require_password_change=0,
		    temp_password_hash='', temp_password_salt='', temp_password_expires_at=NULL,
		    failed_attempts=0, password_changed_at=?, updated_at=?
		WHERE id=?`, hash, salt, now, now, userID)
	return err
}

func (s *usersStore) SetTempPassword(ctx context.Context, userID int64, hash, salt string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET temp_password_hash=?, temp_password_salt=?, temp_password_expires_at=?, updated_at=?
		WHERE id=?`, hash, salt, expiresAt, time.Now().UTC(), userID)
	return err
}

func (s *usersStore) RecordLoginSuccess(ctx context.Context, userID int64, role string, at time.Time, requireChange bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET failed_attempts=0, locked_at=NULL, role=?, last_login_at=?, require_password_change=?, updated_at=?
		WHERE id=?`, role, at, boolToInt(requireChange), at, userID)
	return err
}

// IncrementFailedAttempts bumps the counter only if it still holds
// expectedPrev, so two concurrent failures cannot both land on the same
// slot. Returns the new counter value.
func (s *usersStore) IncrementFailedAttempts(ctx context.Context, userID int64, expectedPrev int, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET failed_attempts=failed_attempts+1, updated_at=?
		WHERE id=? AND failed_attempts=?`, at, userID, expectedPrev)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrStaleCounter
	}
	return expectedPrev + 1, nil
}

func (s *usersStore) LockAccount(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET active=0, locked_at=?, updated_at=? WHERE id=?`, at, at, userID)
	return err
}

func (s *usersStore) UnlockAccount(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET active=1, failed_attempts=0, locked_at=NULL, updated_at=? WHERE id=?`, time.Now().UTC(), userID)
	return err
}

func (s *usersStore) Delete(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id=?`, userID)
	return err
}

func (s *usersStore) IDsByRole(ctx context.Context, roles ...string) ([]int64, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	q := `SELECT id FROM users WHERE active=1 AND role IN (?` + strings.Repeat(",?", len(roles)-1) + `)`
	args := make([]any, len(roles))
	for i, r := range roles {
		args[i] = r
	}
	return s.queryIDs(ctx, q, args...)
}

func (s *usersStore) IDsByOrg(ctx context.Context, orgID int64) ([]int64, error) {
	return s.queryIDs(ctx, `SELECT id FROM users WHERE active=1 AND org_id=?`, orgID)
}

func (s *usersStore) queryIDs(ctx context.Context, q string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClearExpiredTempPasswords retires temporary credentials past their expiry.
// Run from the maintenance sweeper.
func (s *usersStore) ClearExpiredTempPasswords(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET temp_password_hash='', temp_password_salt='', temp_password_expires_at=NULL, updated_at=?
		WHERE temp_password_expires_at IS NOT NULL AND temp_password_expires_at < ?`, now, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
