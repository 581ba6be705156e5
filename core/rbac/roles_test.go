package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveLegacyValues(t *testing.T) {
	cases := []struct {
		modern string
		legacy string
		want   Role
	}{
		{"", "Administrator", RoleAdministrator},
		{"", "ADMIN", RoleAdministrator},
		{"", "superadmin", RoleAdministrator},
		{"", "organization", RoleOrganization},
		{"", "Org", RoleOrganization},
		{"", "client", RoleOrganization},
		{"", "supervisor", RoleUser},
		{"", "processor", RoleUser},
		{"", "staff", RoleUser},
		{"", "", RoleUser},
		{"", "   ", RoleUser},
		{"", "something-else", RoleUser},
		{"administrator", "organization", RoleAdministrator},
		{"ORGANIZATION", "", RoleOrganization},
		{"user", "admin", RoleUser},
		{"bogus", "admin", RoleAdministrator},
		{"bogus", "bogus", RoleUser},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Resolve(tc.modern, tc.legacy), "Resolve(%q, %q)", tc.modern, tc.legacy)
	}
}

func TestResolveIsTotal(t *testing.T) {
	inputs := []string{"", " ", "x", "ADMIN", "Organization", "supervisor", "123", "user "}
	for _, m := range inputs {
		for _, l := range inputs {
			got := Resolve(m, l)
			assert.True(t, IsValid(got), "Resolve(%q, %q) returned %q", m, l, got)
		}
	}
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid(RoleAdministrator))
	assert.True(t, IsValid(RoleUser))
	assert.True(t, IsValid(RoleOrganization))
	assert.False(t, IsValid(Role("supervisor")))
	assert.False(t, IsValid(Role("")))
}
