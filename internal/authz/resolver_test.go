package authz

import (
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func perm(resource, action string) model.Permission {
	return model.Permission{
		ID:       uuid.New(),
		Action:   action,
		Resource: &model.Resource{ID: uuid.New(), Name: resource},
	}
}

func TestIsAllowedNilUser(t *testing.T) {
	assert.False(t, IsAllowed(nil, "USERS", "READ"))
}

func TestIsAllowedDirectGrant(t *testing.T) {
	u := &model.User{Permissions: []model.Permission{perm("USERS", "READ")}}

	assert.True(t, IsAllowed(u, "USERS", "READ"))
	assert.True(t, IsAllowed(u, "users", "read"), "checks are case-insensitive")
	assert.False(t, IsAllowed(u, "USERS", "DELETE"))
	assert.False(t, IsAllowed(u, "GROUPS", "READ"))
}

func TestIsAllowedGroupInheritance(t *testing.T) {
	u := &model.User{
		Group: &model.Group{
			Name:        "MODERATOR",
			Permissions: []model.Permission{perm("USERS", "UPDATE")},
		},
	}

	assert.True(t, IsAllowed(u, "USERS", "UPDATE"))
	assert.False(t, IsAllowed(u, "USERS", "DELETE"))
}

func TestIsAllowedSystemGroupGrantsEverything(t *testing.T) {
	u := &model.User{Group: &model.Group{Name: "ADMIN", IsSystem: true}}

	assert.True(t, IsAllowed(u, "USERS", "DELETE"))
	assert.True(t, IsAllowed(u, "ANYTHING", "MANAGE"))
	assert.True(t, IsAllowed(u, "NEVER_REGISTERED", "READ"))
}

func TestPermissionCodesUnion(t *testing.T) {
	shared := perm("USERS", "READ")
	u := &model.User{
		Permissions: []model.Permission{shared, perm("GROUPS", "READ")},
		Group: &model.Group{
			Name:        "MODERATOR",
			Permissions: []model.Permission{shared, perm("USERS", "UPDATE")},
		},
	}

	codes := PermissionCodes(u)
	assert.Equal(t, []string{"GROUPS_READ", "USERS_READ", "USERS_UPDATE"}, codes)
}

func TestPermissionCodesNoGroup(t *testing.T) {
	u := &model.User{Permissions: []model.Permission{perm("USERS", "READ")}}
	assert.Equal(t, []string{"USERS_READ"}, PermissionCodes(u))
}

func TestPermissionCodesEmpty(t *testing.T) {
	assert.Empty(t, PermissionCodes(&model.User{}))
	assert.Nil(t, PermissionCodes(nil))
}

func TestRolesBaseline(t *testing.T) {
	assert.Equal(t, []string{"ROLE_USER"}, Roles(&model.User{}))
}

func TestRolesGroupDerived(t *testing.T) {
	u := &model.User{Group: &model.Group{Name: "MODERATOR"}}
	assert.Equal(t, []string{"ROLE_MODERATOR", "ROLE_USER"}, Roles(u))
}

func TestRolesStoredTokensAndDedup(t *testing.T) {
	u := &model.User{
		Roles: []string{"ROLE_AUDITOR", "ROLE_USER", " "},
		Group: &model.Group{Name: "AUDITOR_X"},
	}
	assert.Equal(t, []string{"ROLE_AUDITOR", "ROLE_AUDITOR_X", "ROLE_USER"}, Roles(u))
}

func TestRolesReflectRename(t *testing.T) {
	g := &model.Group{Name: "STAFF"}
	u := &model.User{Group: g}
	assert.Contains(t, Roles(u), "ROLE_STAFF")

	assert.NoError(t, g.Rename("CREW"))
	assert.Contains(t, Roles(u), "ROLE_CREW")
	assert.NotContains(t, Roles(u), "ROLE_STAFF")
}

func TestIsAdmin(t *testing.T) {
	assert.False(t, IsAdmin(&model.User{}))
	assert.False(t, IsAdmin(&model.User{Group: &model.Group{Name: "MODERATOR"}}))
	assert.True(t, IsAdmin(&model.User{Group: &model.Group{Name: "ADMIN", IsSystem: true}}))
	assert.True(t, IsAdmin(&model.User{Roles: []string{"ROLE_ADMIN"}}))
}
