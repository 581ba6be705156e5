package store

import (
	"time"

	"reqdesk/core/rbac"
)

type User struct {
	ID          int64  `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`

	// Role is the canonical role cached at login time; LegacyRole is the
	// free-text value carried over from the imported account base and is
	// never trusted directly.
	Role       string `json:"role"`
	LegacyRole string `json:"-"`
	OrgID      *int64 `json:"org_id,omitempty"`

	PasswordHash          string `json:"-"`
	Salt                  string `json:"-"`
	RequirePasswordChange bool   `json:"require_password_change"`

	TempPasswordHash      string     `json:"-"`
	TempPasswordSalt      string     `json:"-"`
	TempPasswordExpiresAt *time.Time `json:"-"`

	Active         bool       `json:"active"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedAt       *time.Time `json:"locked_at,omitempty"`

	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type SessionRecord struct {
	ID         string     `json:"id"`
	UserID     int64      `json:"user_id"`
	Handle     string     `json:"handle"`
	Role       rbac.Role  `json:"role"`
	IP         string     `json:"ip"`
	UserAgent  string     `json:"user_agent"`
	CSRFToken  string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Revoked    bool       `json:"revoked"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	RevokedBy  string     `json:"revoked_by,omitempty"`
}

type Organization struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Document request status machine: submitted -> processing -> answered | rejected.
const (
	RequestStatusSubmitted  = "submitted"
	RequestStatusProcessing = "processing"
	RequestStatusAnswered   = "answered"
	RequestStatusRejected   = "rejected"
)

type DocumentRequest struct {
	ID          int64      `json:"id"`
	RefNo       string     `json:"ref_no"`
	OrgID       int64      `json:"org_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	SubmittedBy int64      `json:"submitted_by"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
	Response    string     `json:"response,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Kind      string     `json:"kind"`
	Message   string     `json:"message"`
	RequestID *int64     `json:"request_id,omitempty"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type AuditRecord struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
