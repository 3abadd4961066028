package service

import (
	"context"
	"testing"

	"backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapFreshDatabase(t *testing.T) {
	env := newTestEnv(t)
	report := env.seed(t)

	assert.Equal(t, 3, report.ResourcesCreated)
	assert.Equal(t, 13, report.PermissionsCreated)
	assert.Equal(t, 3, report.GroupsCreated)
	assert.True(t, report.AdminUserCreated)

	ctx := context.Background()

	admin, err := env.groups.FindSystemGroup(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.AdminGroupName, admin.Name)
	assert.True(t, admin.IsSystem)
	assert.Len(t, admin.Permissions, 13)

	moderator, err := env.groups.FindByName(ctx, "MODERATOR")
	require.NoError(t, err)
	assert.False(t, moderator.IsSystem)
	assert.Len(t, moderator.Permissions, 3)

	user, err := env.users.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, user.GroupID)
	assert.Equal(t, admin.ID, *user.GroupID)
}

func TestBootstrapIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	report := env.seed(t)
	assert.Zero(t, report.ResourcesCreated)
	assert.Zero(t, report.PermissionsCreated)
	assert.Zero(t, report.GroupsCreated)
	assert.Zero(t, report.AdminPermsSynced)
	assert.False(t, report.AdminUserCreated)

	ctx := context.Background()
	total, err := env.permissions.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 13, total)

	groups, err := env.groups.ListAllWithPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 3)
}

func TestBootstrapRefreshesEditedDescriptions(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	perm, err := env.permissions.FindByCode(ctx, "USERS_READ")
	require.NoError(t, err)
	perm.Description = "edited by hand"
	require.NoError(t, env.permissions.Update(ctx, perm))

	env.seed(t)

	perm, err = env.permissions.FindByCode(ctx, "USERS_READ")
	require.NoError(t, err)
	assert.Equal(t, "Allows read on Users", perm.Description)
}

func TestBootstrapSyncsNewPermissionsToAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	_, err := env.permissionSvc.CreateResource(ctx, nil, CreateResourceRequest{Name: "REPORTS", DisplayName: "Reports"})
	require.NoError(t, err)
	_, err = env.permissionSvc.Register(ctx, RegisterPermissionRequest{Resource: "REPORTS", Action: "READ"})
	require.NoError(t, err)

	report := env.seed(t)
	assert.Equal(t, 1, report.AdminPermsSynced)

	admin, err := env.groups.FindSystemGroup(ctx)
	require.NoError(t, err)
	found := false
	for _, p := range admin.Permissions {
		if p.Code() == "REPORTS_READ" {
			found = true
		}
	}
	assert.True(t, found, "admin group should hold the new permission after sync")
}

func TestBootstrapAdoptsExistingAdminUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	existing := model.User{Username: "admin", Password: "preexisting-hash", FirstName: "Jo", LastName: "Admin"}
	require.NoError(t, env.users.Create(ctx, &existing))

	report := env.seed(t)
	assert.False(t, report.AdminUserCreated)

	user, err := env.users.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "preexisting-hash", user.Password, "existing credentials are kept")
	require.NotNil(t, user.GroupID)

	admin, err := env.groups.FindSystemGroup(ctx)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, *user.GroupID)
}

func TestBootstrapRecreatesDeletedDefaultGroup(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	moderator, err := env.groups.FindByName(ctx, "MODERATOR")
	require.NoError(t, err)
	require.NoError(t, env.groupSvc.DeleteGroup(ctx, nil, moderator.ID.String()))

	report := env.seed(t)
	assert.Equal(t, 1, report.GroupsCreated)

	recreated, err := env.groups.FindByName(ctx, "MODERATOR")
	require.NoError(t, err)
	assert.Len(t, recreated.Permissions, 3)
}
