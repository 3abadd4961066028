package service

import (
	"context"
	"testing"

	"backend/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) createUser(t *testing.T, username string) *UserResponse {
	t.Helper()
	user, err := e.userSvc.CreateUser(context.Background(), nil, CreateUserRequest{
		Username:  username,
		Password:  "secret-pass",
		FirstName: "Test",
		LastName:  "User",
	})
	require.NoError(t, err)
	return user
}

func TestCreateUserAndLogin(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	created := env.createUser(t, "alice")
	assert.Equal(t, "alice", created.Username)
	assert.Contains(t, created.Roles, "ROLE_USER")
	assert.Nil(t, created.Group)

	res, err := env.userSvc.Login(ctx, LoginRequest{Username: "alice", Password: "secret-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, created.ID, res.User.ID)

	_, err = env.userSvc.Login(ctx, LoginRequest{Username: "alice", Password: "wrong"})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateUserUsernameConflict(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.createUser(t, "alice")

	_, err := env.userSvc.CreateUser(context.Background(), nil, CreateUserRequest{
		Username:  "alice",
		Password:  "another-pass",
		FirstName: "Other",
		LastName:  "Alice",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))
}

func TestUsernameAvailable(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	available, err := env.userSvc.UsernameAvailable(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, available)

	env.createUser(t, "alice")

	available, err = env.userSvc.UsernameAvailable(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, available)

	_, err = env.userSvc.UsernameAvailable(ctx, "  ")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestDirectGrantAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	user := env.createUser(t, "alice")
	permID := env.permissionID(t, "GROUPS_READ")

	allowed, err := env.userSvc.IsAllowed(ctx, user.ID, "GROUPS", "READ")
	require.NoError(t, err)
	assert.False(t, allowed)

	_, err = env.userSvc.GrantPermission(ctx, nil, user.ID, permID)
	require.NoError(t, err)

	allowed, err = env.userSvc.IsAllowed(ctx, user.ID, "GROUPS", "READ")
	require.NoError(t, err)
	assert.True(t, allowed)

	// Double grant conflicts.
	_, err = env.userSvc.GrantPermission(ctx, nil, user.ID, permID)
	assert.True(t, apperr.IsKind(err, apperr.KindConflict))

	require.NoError(t, env.userSvc.RevokePermission(ctx, nil, user.ID, permID))

	allowed, err = env.userSvc.IsAllowed(ctx, user.ID, "GROUPS", "READ")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Revoking a grant the user does not hold fails.
	err = env.userSvc.RevokePermission(ctx, nil, user.ID, permID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestGroupInheritanceThroughAssignment(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	user := env.createUser(t, "mod")
	moderator, err := env.groups.FindByName(ctx, "MODERATOR")
	require.NoError(t, err)

	_, err = env.userSvc.AssignGroup(ctx, nil, user.ID, AssignGroupRequest{GroupID: moderator.ID.String()})
	require.NoError(t, err)

	access, err := env.userSvc.GetUserAccess(ctx, user.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"USERS_READ", "USERS_UPDATE", "PERMISSIONS_READ"}, access.PermissionCodes)
	assert.Contains(t, access.Roles, "ROLE_MODERATOR")
	assert.Contains(t, access.Roles, "ROLE_USER")
	assert.False(t, access.IsAdmin)

	allowed, err := env.userSvc.IsAllowed(ctx, user.ID, "USERS", "UPDATE")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = env.userSvc.IsAllowed(ctx, user.ID, "USERS", "DELETE")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestReassignmentTakesEffectImmediately(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	user := env.createUser(t, "alice")
	moderator, err := env.groups.FindByName(ctx, "MODERATOR")
	require.NoError(t, err)
	basic, err := env.groups.FindByName(ctx, "USER")
	require.NoError(t, err)

	_, err = env.userSvc.AssignGroup(ctx, nil, user.ID, AssignGroupRequest{GroupID: moderator.ID.String()})
	require.NoError(t, err)

	allowed, err := env.userSvc.IsAllowed(ctx, user.ID, "USERS", "UPDATE")
	require.NoError(t, err)
	assert.True(t, allowed)

	_, err = env.userSvc.AssignGroup(ctx, nil, user.ID, AssignGroupRequest{GroupID: basic.ID.String()})
	require.NoError(t, err)

	allowed, err = env.userSvc.IsAllowed(ctx, user.ID, "USERS", "UPDATE")
	require.NoError(t, err)
	assert.False(t, allowed, "old group's access is gone on the next check")

	allowed, err = env.userSvc.IsAllowed(ctx, user.ID, "USERS", "READ")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestClearGroupDropsInheritedAccess(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	user := env.createUser(t, "alice")
	moderator, err := env.groups.FindByName(ctx, "MODERATOR")
	require.NoError(t, err)

	_, err = env.userSvc.AssignGroup(ctx, nil, user.ID, AssignGroupRequest{GroupID: moderator.ID.String()})
	require.NoError(t, err)

	cleared, err := env.userSvc.ClearGroup(ctx, nil, user.ID)
	require.NoError(t, err)
	assert.Nil(t, cleared.Group)

	access, err := env.userSvc.GetUserAccess(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, access.PermissionCodes)
	assert.Equal(t, []string{"ROLE_USER"}, access.Roles)
}

func TestDirectGrantsSurviveGroupChanges(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	user := env.createUser(t, "alice")
	_, err := env.userSvc.GrantPermission(ctx, nil, user.ID, env.permissionID(t, "GROUPS_READ"))
	require.NoError(t, err)

	moderator, err := env.groups.FindByName(ctx, "MODERATOR")
	require.NoError(t, err)
	_, err = env.userSvc.AssignGroup(ctx, nil, user.ID, AssignGroupRequest{GroupID: moderator.ID.String()})
	require.NoError(t, err)
	_, err = env.userSvc.ClearGroup(ctx, nil, user.ID)
	require.NoError(t, err)

	access, err := env.userSvc.GetUserAccess(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"GROUPS_READ"}, access.PermissionCodes)
}

func TestSystemGroupMemberIsAllowedEverything(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	admin, err := env.userSvc.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)

	allowed, err := env.userSvc.IsAllowed(ctx, admin.ID, "NEVER_REGISTERED", "MANAGE")
	require.NoError(t, err)
	assert.True(t, allowed)

	access, err := env.userSvc.GetUserAccess(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, access.IsAdmin)
	assert.Contains(t, access.Roles, "ROLE_ADMIN")
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	user := env.createUser(t, "alice")
	_, err := env.userSvc.GrantPermission(ctx, nil, user.ID, env.permissionID(t, "USERS_READ"))
	require.NoError(t, err)

	require.NoError(t, env.userSvc.DeleteUser(ctx, nil, user.ID))

	_, err = env.userSvc.GetUser(ctx, user.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	// The permission itself survives the grant cleanup.
	_, err = env.permissions.FindByCode(ctx, "USERS_READ")
	assert.NoError(t, err)
}

func TestUpdateUserPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	user := env.createUser(t, "alice")
	_, err := env.userSvc.UpdateUser(ctx, nil, user.ID, UpdateUserRequest{
		FirstName: "Alice",
		LastName:  "Changed",
		Password:  "new-secret",
	})
	require.NoError(t, err)

	_, err = env.userSvc.Login(ctx, LoginRequest{Username: "alice", Password: "secret-pass"})
	assert.Error(t, err)

	res, err := env.userSvc.Login(ctx, LoginRequest{Username: "alice", Password: "new-secret"})
	require.NoError(t, err)
	assert.Equal(t, "Changed", res.User.LastName)
}
