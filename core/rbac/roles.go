package rbac

import "strings"

// Role is the closed set of canonical roles the rest of the system is
// allowed to branch on. Stored/legacy role strings never cross this
// boundary unresolved.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleUser          Role = "user"
	RoleOrganization  Role = "organization"
)

// DefaultRole is what every unrecognized input collapses into.
const DefaultRole = RoleUser

// legacyRoles maps free-text role values from the imported account base.
// Supervisor and processor were distinct staff flavors upstream; both are
// plain users here.
var legacyRoles = map[string]Role{
	"admin":         RoleAdministrator,
	"administrator": RoleAdministrator,
	"superadmin":    RoleAdministrator,
	"user":          RoleUser,
	"staff":         RoleUser,
	"supervisor":    RoleUser,
	"processor":     RoleUser,
	"organization":  RoleOrganization,
	"org":           RoleOrganization,
	"client":        RoleOrganization,
}

// Resolve maps a stored role pair to a canonical role. The modern field wins
// when it already holds a canonical value; otherwise the legacy value goes
// through the lookup table. Total: every input pair yields exactly one
// canonical role.
func Resolve(modern, legacy string) Role {
	if r, ok := parseCanonical(modern); ok {
		return r
	}
	if r, ok := legacyRoles[strings.ToLower(strings.TrimSpace(legacy))]; ok {
		return r
	}
	return DefaultRole
}

func parseCanonical(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdministrator:
		return RoleAdministrator, true
	case RoleUser:
		return RoleUser, true
	case RoleOrganization:
		return RoleOrganization, true
	}
	return "", false
}

// IsValid reports whether r is one of the canonical roles.
func IsValid(r Role) bool {
	_, ok := parseCanonical(string(r))
	return ok
}

func AllRoles() []Role {
	return []Role{RoleAdministrator, RoleUser, RoleOrganization}
}
