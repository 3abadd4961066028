package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupStats(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	stats, err := env.statsSvc.GroupStats(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalGroups)
	assert.EqualValues(t, 1, stats.TotalUsers)
	assert.EqualValues(t, 13, stats.TotalPermissions)

	var admin *GroupUsage
	for i := range stats.Groups {
		if stats.Groups[i].IsSystem {
			admin = &stats.Groups[i]
		}
	}
	require.NotNil(t, admin)
	assert.EqualValues(t, 1, admin.UsersCount)
	assert.Equal(t, 13, admin.PermissionsCount)
	assert.True(t, stats.Groups[0].IsSystem, "largest group first")
}

func TestGroupMatrixSystemRowAllTrue(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	matrix, err := env.statsSvc.GroupMatrix(context.Background())
	require.NoError(t, err)
	require.Len(t, matrix.Codes, 13)

	for _, row := range matrix.Rows {
		require.Len(t, row.Cells, len(matrix.Codes))
		if row.IsSystem {
			for _, cell := range row.Cells {
				assert.True(t, cell)
			}
		}
		if row.Name == "USER" {
			granted := 0
			for _, cell := range row.Cells {
				if cell {
					granted++
				}
			}
			assert.Equal(t, 1, granted)
		}
	}
}

func TestUserMatrixUsesResolvedAccess(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	user := env.createUser(t, "mod")
	moderator, err := env.groups.FindByName(ctx, "MODERATOR")
	require.NoError(t, err)
	_, err = env.userSvc.AssignGroup(ctx, nil, user.ID, AssignGroupRequest{GroupID: moderator.ID.String()})
	require.NoError(t, err)

	matrix, err := env.statsSvc.UserMatrix(ctx)
	require.NoError(t, err)

	byName := make(map[string]MatrixRow)
	for _, row := range matrix.Rows {
		byName[row.Name] = row
	}

	// The admin account holds every cell through the system group.
	adminRow := byName["admin"]
	for _, cell := range adminRow.Cells {
		assert.True(t, cell)
	}

	modRow := byName["mod"]
	granted := 0
	for _, cell := range modRow.Cells {
		if cell {
			granted++
		}
	}
	assert.Equal(t, 3, granted)
}

func TestUsersByGroup(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	entries, err := env.statsSvc.UsersByGroup(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for _, entry := range entries {
		if entry.Group.IsSystem {
			require.Len(t, entry.Users, 1)
			assert.Equal(t, "admin", entry.Users[0].Username)
		} else {
			assert.Empty(t, entry.Users)
		}
	}
}

func TestPermissionStats(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	ctx := context.Background()

	user := env.createUser(t, "alice")
	_, err := env.userSvc.GrantPermission(ctx, nil, user.ID, env.permissionID(t, "USERS_READ"))
	require.NoError(t, err)

	stats, err := env.statsSvc.PermissionStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalResources)
	assert.EqualValues(t, 13, stats.TotalPermissions)

	for _, p := range stats.Permissions {
		if p.Code == "USERS_READ" {
			assert.EqualValues(t, 1, p.Holders)
		}
	}

	// Ordered by direct grant count, so alice leads the admin account whose
	// access is inherited, not granted.
	require.NotEmpty(t, stats.Users)
	assert.Equal(t, "alice", stats.Users[0].Username)
	assert.EqualValues(t, 1, stats.Users[0].DirectGrants)
}
