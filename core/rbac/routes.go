package rbac

import (
	"sort"
	"strings"
)

// Navigation targets gated per role. The table is static; anything not
// listed here is denied for every role.
var routeAccess = map[string][]Role{
	"dashboard":       {RoleAdministrator, RoleUser, RoleOrganization},
	"requests":        {RoleAdministrator, RoleUser, RoleOrganization},
	"requests.submit": {RoleOrganization},
	"requests.manage": {RoleAdministrator, RoleUser},
	"notifications":   {RoleAdministrator, RoleUser, RoleOrganization},
	"reports":         {RoleAdministrator, RoleUser},
	"accounts":        {RoleAdministrator},
	"organizations":   {RoleAdministrator},
	"audit":           {RoleAdministrator},
	"settings":        {RoleAdministrator},
}

// Allowed reports whether role may reach the navigation target. Unknown
// targets are denied.
func Allowed(role Role, route string) bool {
	allowed, ok := routeAccess[strings.ToLower(strings.TrimSpace(route))]
	if !ok {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// MenuFor lists the navigation targets visible to role, sorted for stable
// menu rendering.
func MenuFor(role Role) []string {
	var out []string
	for route, allowed := range routeAccess {
		for _, r := range allowed {
			if r == role {
				out = append(out, route)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
