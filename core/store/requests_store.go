package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrBadTransition signals a request status change outside the allowed
// machine: submitted -> processing -> answered | rejected.
var ErrBadTransition = errors.New("request status transition not allowed")

type RequestFilter struct {
	OrgID      *int64
	Status     string
	AssigneeID *int64
}

type RequestsStore interface {
	Get(ctx context.Context, id int64) (*DocumentRequest, error)
	FindByRefNo(ctx context.Context, refNo string) (*DocumentRequest, error)
	Create(ctx context.Context, req *DocumentRequest) (int64, error)
	List(ctx context.Context, filter RequestFilter) ([]DocumentRequest, error)
	Assign(ctx context.Context, id, assigneeID int64) error
	Transition(ctx context.Context, id int64, from, to, response string, at time.Time) error
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByOrg(ctx context.Context) (map[int64]int, error)
	CountByMonth(ctx context.Context, since time.Time) (map[string]int, error)
}

type requestsStore struct {
	db *sql.DB
}

func NewRequestsStore(db *sql.DB) RequestsStore {
	return &requestsStore{db: db}
}

var allowedTransitions = map[string][]string{
	RequestStatusSubmitted:  {RequestStatusProcessing, RequestStatusRejected},
	RequestStatusProcessing: {RequestStatusAnswered, RequestStatusRejected},
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// NewRefNo builds a human-quotable reference like REQ-2026-4F2A9C1D.
func NewRefNo(at time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("REQ-%d-%s", at.Year(), id)
}

const requestColumns = `id, ref_no, org_id, title, description, status, submitted_by, assignee_id, response, responded_at, created_at, updated_at`

func scanRequest(row rowScanner) (*DocumentRequest, error) {
	r := DocumentRequest{}
	var assignee sql.NullInt64
	var respondedAt sql.NullTime
	if err := row.Scan(&r.ID, &r.RefNo, &r.OrgID, &r.Title, &r.Description, &r.Status,
		&r.SubmittedBy, &assignee, &r.Response, &respondedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if assignee.Valid {
		r.AssigneeID = &assignee.Int64
	}
	if respondedAt.Valid {
		r.RespondedAt = &respondedAt.Time
	}
	return &r, nil
}

func (s *requestsStore) Get(ctx context.Context, id int64) (*DocumentRequest, error) {
	return scanRequest(s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id=?`, id))
}

func (s *requestsStore) FindByRefNo(ctx context.Context, refNo string) (*DocumentRequest, error) {
	return scanRequest(s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE ref_no=?`, strings.TrimSpace(refNo)))
}

func (s *requestsStore) Create(ctx context.Context, req *DocumentRequest) (int64, error) {
	now := time.Now().UTC()
	if req.RefNo == "" {
		req.RefNo = NewRefNo(now)
	}
	if req.Status == "" {
		req.Status = RequestStatusSubmitted
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO requests(ref_no, org_id, title, description, status, submitted_by, assignee_id, response, responded_at, created_at, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		req.RefNo, req.OrgID, strings.TrimSpace(req.Title), req.Description, req.Status,
		req.SubmittedBy, nullID(req.AssigneeID), req.Response, nullTime(req.RespondedAt), now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *requestsStore) List(ctx context.Context, filter RequestFilter) ([]DocumentRequest, error) {
	q := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	var args []any
	if filter.OrgID != nil {
		q += ` AND org_id=?`
		args = append(args, *filter.OrgID)
	}
	if filter.Status != "" {
		q += ` AND status=?`
		args = append(args, filter.Status)
	}
	if filter.AssigneeID != nil {
		q += ` AND assignee_id=?`
		args = append(args, *filter.AssigneeID)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DocumentRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *requestsStore) Assign(ctx context.Context, id, assigneeID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE requests SET assignee_id=?, updated_at=? WHERE id=?`,
		assigneeID, time.Now().UTC(), id)
	return err
}

// Transition moves a request along the status machine. The WHERE status=?
// guard keeps two concurrent workers from both claiming the same step.
func (s *requestsStore) Transition(ctx context.Context, id int64, from, to, response string, at time.Time) error {
	if !transitionAllowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, from, to)
	}
	var respondedAt any
	if to == RequestStatusAnswered || to == RequestStatusRejected {
		respondedAt = at
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE requests SET status=?, response=?, responded_at=?, updated_at=?
		WHERE id=? AND status=?`, to, response, respondedAt, at, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: request %d is no longer %s", ErrBadTransition, id, from)
	}
	return nil
}

func (s *requestsStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (s *requestsStore) CountByOrg(ctx context.Context) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT org_id, COUNT(*) FROM requests GROUP BY org_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[int64]int{}
	for rows.Next() {
		var orgID int64
		var n int
		if err := rows.Scan(&orgID, &n); err != nil {
			return nil, err
		}
		out[orgID] = n
	}
	return out, rows.Err()
}

// CountByMonth buckets requests by creation month (YYYY-MM) since the
// given cutoff. Bucketing happens in Go so both backends behave the same.
func (s *requestsStore) CountByMonth(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT created_at FROM requests WHERE created_at >= ?`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var createdAt time.Time
		if err := rows.Scan(&createdAt); err != nil {
			return nil, err
		}
		out[createdAt.UTC().Format("2006-01")]++
	}
	return out, rows.Err()
}
