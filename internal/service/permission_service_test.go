package service

import (
	"context"
	"testing"

	"backend/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateResourceNormalizesName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resource, err := env.permissionSvc.CreateResource(ctx, nil, CreateResourceRequest{
		Name:        "  reports ",
		DisplayName: "Reports",
	})
	require.NoError(t, err)
	assert.Equal(t, "REPORTS", resource.Name)
}

func TestCreateResourceConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.permissionSvc.CreateResource(ctx, nil, CreateResourceRequest{Name: "REPORTS"})
	require.NoError(t, err)

	_, err = env.permissionSvc.CreateResource(ctx, nil, CreateResourceRequest{Name: "reports"})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestRegisterPermission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.permissionSvc.CreateResource(ctx, nil, CreateResourceRequest{Name: "REPORTS"})
	require.NoError(t, err)

	perm, err := env.permissionSvc.Register(ctx, RegisterPermissionRequest{
		Resource:    "REPORTS",
		Action:      "read",
		Description: "View reports",
	})
	require.NoError(t, err)
	assert.Equal(t, "REPORTS_READ", perm.Code)
	assert.Equal(t, "READ", perm.Action)
}

func TestRegisterPermissionIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.permissionSvc.CreateResource(ctx, nil, CreateResourceRequest{Name: "REPORTS"})
	require.NoError(t, err)

	first, err := env.permissionSvc.Register(ctx, RegisterPermissionRequest{Resource: "REPORTS", Action: "READ", Description: "View"})
	require.NoError(t, err)

	second, err := env.permissionSvc.Register(ctx, RegisterPermissionRequest{Resource: "REPORTS", Action: "READ", Description: "View"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// A changed description is applied to the existing row.
	third, err := env.permissionSvc.Register(ctx, RegisterPermissionRequest{Resource: "REPORTS", Action: "READ", Description: "View all reports"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
	assert.Equal(t, "View all reports", third.Description)

	perms, err := env.permissionSvc.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, 1)
}

func TestRegisterPermissionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.permissionSvc.Register(ctx, RegisterPermissionRequest{Resource: "REPORTS", Action: "FLY"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = env.permissionSvc.Register(ctx, RegisterPermissionRequest{Resource: "MISSING", Action: "READ"})
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestDeleteResourceCascadesPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resource, err := env.permissionSvc.CreateResource(ctx, nil, CreateResourceRequest{Name: "REPORTS"})
	require.NoError(t, err)
	_, err = env.permissionSvc.Register(ctx, RegisterPermissionRequest{Resource: "REPORTS", Action: "READ"})
	require.NoError(t, err)
	_, err = env.permissionSvc.Register(ctx, RegisterPermissionRequest{Resource: "REPORTS", Action: "DELETE"})
	require.NoError(t, err)

	require.NoError(t, env.permissionSvc.DeleteResource(ctx, nil, resource.ID))

	perms, err := env.permissionSvc.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestResourceRenameChangesCodesEverywhere(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.permissionSvc.CreateResource(ctx, nil, CreateResourceRequest{Name: "REPORTS"})
	require.NoError(t, err)
	_, err = env.permissionSvc.Register(ctx, RegisterPermissionRequest{Resource: "REPORTS", Action: "READ"})
	require.NoError(t, err)

	// Rename at the storage layer; codes are computed, never stored.
	resource, err := env.resources.FindByName(ctx, "REPORTS")
	require.NoError(t, err)
	resource.Name = "DOCUMENTS"
	require.NoError(t, env.resources.Update(ctx, resource))

	perms, err := env.permissionSvc.ListPermissions(ctx)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "DOCUMENTS_READ", perms[0].Code)

	_, err = env.permissions.FindByCode(ctx, "REPORTS_READ")
	assert.Error(t, err, "old code no longer resolves")
}

func TestListResourcesIncludesPermissions(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	resources, err := env.permissionSvc.ListResources(context.Background())
	require.NoError(t, err)
	require.Len(t, resources, 3)

	byName := make(map[string]ResourceResponse, len(resources))
	for _, r := range resources {
		byName[r.Name] = r
	}
	assert.Len(t, byName["USERS"].Permissions, 4)
	assert.Len(t, byName["PERMISSIONS"].Permissions, 5)
}
