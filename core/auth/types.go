package auth

import (
	"time"

	"reqdesk/core/rbac"
	"reqdesk/core/store"
)

type contextKey string

// SessionContextKey carries the *store.SessionRecord of the authenticated
// caller through request contexts.
const SessionContextKey contextKey = "reqdesk.session"

type Credentials struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

type LoginResult struct {
	User                   *store.User          `json:"user"`
	Session                *store.SessionRecord `json:"session"`
	PasswordChangeRequired bool                 `json:"password_change_required"`
}

type UserDTO struct {
	ID                    int64      `json:"id"`
	Handle                string     `json:"handle"`
	DisplayName           string     `json:"display_name"`
	Role                  rbac.Role  `json:"role"`
	OrgID                 *int64     `json:"org_id,omitempty"`
	Active                bool       `json:"active"`
	RequirePasswordChange bool       `json:"require_password_change"`
	LastLoginAt           *time.Time `json:"last_login_at,omitempty"`
	Menu                  []string   `json:"menu,omitempty"`
}

func NewUserDTO(u *store.User) UserDTO {
	role := rbac.Resolve(u.Role, u.LegacyRole)
	return UserDTO{
		ID:                    u.ID,
		Handle:                u.Handle,
		DisplayName:           u.DisplayName,
		Role:                  role,
		OrgID:                 u.OrgID,
		Active:                u.Active,
		RequirePasswordChange: u.RequirePasswordChange,
		LastLoginAt:           u.LastLoginAt,
		Menu:                  rbac.MenuFor(role),
	}
}
