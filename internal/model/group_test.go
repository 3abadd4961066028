package model

import (
	"testing"

	"backend/pkg/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testPerm(resource, action string) Permission {
	return Permission{
		ID:       uuid.New(),
		Action:   action,
		Resource: &Resource{ID: uuid.New(), Name: resource},
	}
}

func TestValidGroupName(t *testing.T) {
	assert.True(t, ValidGroupName("MODERATOR"))
	assert.True(t, ValidGroupName("CONTENT_EDITOR"))
	assert.False(t, ValidGroupName("moderator"))
	assert.False(t, ValidGroupName("MOD3RATOR"))
	assert.False(t, ValidGroupName("MOD ERATOR"))
	assert.False(t, ValidGroupName(""))
}

func TestGroupRole(t *testing.T) {
	g := Group{Name: "MODERATOR"}
	assert.Equal(t, "ROLE_MODERATOR", g.Role())
}

func TestRename(t *testing.T) {
	g := Group{Name: "STAFF"}

	assert.NoError(t, g.Rename("crew"))
	assert.Equal(t, "CREW", g.Name)

	err := g.Rename("not valid!")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, "CREW", g.Name)
}

func TestRenameSameNameIsNoOp(t *testing.T) {
	g := Group{Name: AdminGroupName, IsSystem: true}
	assert.NoError(t, g.Rename("ADMIN"))
	assert.NoError(t, g.Rename(" admin "))
	assert.Equal(t, "ADMIN", g.Name)
}

func TestRenameSystemGroupRejected(t *testing.T) {
	g := Group{Name: AdminGroupName, IsSystem: true}
	err := g.Rename("SUPERUSERS")
	assert.True(t, apperr.IsKind(err, apperr.KindInvariant))
	assert.Equal(t, "ADMIN", g.Name)
}

func TestAddPermissionDedup(t *testing.T) {
	g := Group{Name: "STAFF"}
	p := testPerm("USERS", "READ")

	assert.True(t, g.AddPermission(p))
	assert.False(t, g.AddPermission(p))
	assert.Len(t, g.Permissions, 1)
}

func TestRemovePermission(t *testing.T) {
	g := Group{Name: "STAFF"}
	p := testPerm("USERS", "READ")
	g.AddPermission(p)

	assert.True(t, g.RemovePermission(p.ID))
	assert.Empty(t, g.Permissions)
	assert.False(t, g.RemovePermission(p.ID))
}

func TestRemovePermissionSystemGroupNoOp(t *testing.T) {
	g := Group{Name: AdminGroupName, IsSystem: true}
	p := testPerm("USERS", "READ")
	g.AddPermission(p)

	assert.False(t, g.RemovePermission(p.ID))
	assert.Len(t, g.Permissions, 1)
}

func TestHasPermission(t *testing.T) {
	g := Group{Name: "STAFF"}
	g.AddPermission(testPerm("USERS", "READ"))

	assert.True(t, g.HasPermission("USERS", "READ"))
	assert.True(t, g.HasPermission("users", "read"))
	assert.False(t, g.HasPermission("USERS", "DELETE"))
}

func TestHasPermissionSystemGroup(t *testing.T) {
	g := Group{Name: AdminGroupName, IsSystem: true}
	assert.True(t, g.HasPermission("USERS", "DELETE"))
	assert.True(t, g.HasPermission("NOT_A_RESOURCE", "MANAGE"))
}
