package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(RoleAdministrator, "accounts"))
	assert.True(t, Allowed(RoleOrganization, "requests.submit"))
	assert.False(t, Allowed(RoleUser, "requests.submit"))
	assert.True(t, Allowed(RoleUser, "requests.manage"))
	assert.False(t, Allowed(RoleOrganization, "requests.manage"))
	assert.False(t, Allowed(RoleOrganization, "accounts"))
	assert.False(t, Allowed(RoleUser, "settings"))
}

func TestAllowedFailsClosed(t *testing.T) {
	for _, role := range AllRoles() {
		assert.False(t, Allowed(role, "unknown-target"), "role %s should be denied unknown targets", role)
		assert.False(t, Allowed(role, ""), "role %s should be denied empty target", role)
	}
}

func TestMenuFor(t *testing.T) {
	admin := MenuFor(RoleAdministrator)
	assert.Contains(t, admin, "accounts")
	assert.Contains(t, admin, "organizations")

	org := MenuFor(RoleOrganization)
	assert.Contains(t, org, "requests.submit")
	assert.NotContains(t, org, "accounts")
	assert.NotContains(t, org, "reports")
}
