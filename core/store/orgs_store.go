package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

type OrgsStore interface {
	Get(ctx context.Context, orgID int64) (*Organization, error)
	FindByName(ctx context.Context, name string) (*Organization, error)
	Create(ctx context.Context, org *Organization) (int64, error)
	List(ctx context.Context) ([]Organization, error)
	Update(ctx context.Context, org *Organization) error
	SetActive(ctx context.Context, orgID int64, active bool) error
	Delete(ctx context.Context, orgID int64) error
}

type orgsStore struct {
	db *sql.DB
}

func NewOrgsStore(db *sql.DB) OrgsStore {
	return &orgsStore{db: db}
}

const orgColumns = `id, name, contact_name, contact_email, active, created_at, updated_at`

func scanOrg(row rowScanner) (*Organization, error) {
	o := Organization{}
	var active int
	if err := row.Scan(&o.ID, &o.Name, &o.ContactName, &o.ContactEmail,
		&active, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	o.Active = active == 1
	return &o, nil
}

func (s *orgsStore) Get(ctx context.Context, orgID int64) (*Organization, error) {
	return scanOrg(s.db.QueryRowContext(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id=?`, orgID))
}

func (s *orgsStore) FindByName(ctx context.Context, name string) (*Organization, error) {
	return scanOrg(s.db.QueryRowContext(ctx,
		`SELECT `+orgColumns+` FROM organizations WHERE LOWER(name)=?`, strings.ToLower(strings.TrimSpace(name))))
}

func (s *orgsStore) Create(ctx context.Context, org *Organization) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations(name, contact_name, contact_email, active, created_at, updated_at)
		VALUES(?,?,?,?,?,?)`,
		strings.TrimSpace(org.Name), org.ContactName, org.ContactEmail,
		boolToInt(org.Active), now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *orgsStore) List(ctx context.Context) ([]Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *orgsStore) Update(ctx context.Context, org *Organization) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE organizations
		SET name=?, contact_name=?, contact_email=?, active=?, updated_at=?
		WHERE id=?`,
		strings.TrimSpace(org.Name), org.ContactName, org.ContactEmail,
		boolToInt(org.Active), time.Now().UTC(), org.ID)
	return err
}

func (s *orgsStore) SetActive(ctx context.Context, orgID int64, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE organizations SET active=?, updated_at=? WHERE id=?`,
		boolToInt(active), time.Now().UTC(), orgID)
	return err
}

func (s *orgsStore) Delete(ctx context.Context, orgID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM organizations WHERE id=?`, orgID)
	return err
}
