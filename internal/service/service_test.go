package service

import (
	"context"
	"testing"

	"backend/internal/database"
	"backend/internal/repository"
	"backend/internal/websocket"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testEnv wires the full service stack against an in-memory database.
type testEnv struct {
	db *gorm.DB

	resources   repository.ResourceRepository
	permissions repository.PermissionRepository
	groups      repository.GroupRepository
	users       repository.UserRepository
	txm         repository.TransactionManager

	audit         AuditService
	permissionSvc PermissionService
	groupSvc      GroupService
	userSvc       UserService
	statsSvc      StatsService
	bootstrap     BootstrapService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every query on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	env := &testEnv{db: db}
	env.resources = repository.NewResourceRepository(db)
	env.permissions = repository.NewPermissionRepository(db)
	env.groups = repository.NewGroupRepository(db)
	env.users = repository.NewUserRepository(db)
	env.txm = repository.NewTransactionManager(db)

	hub := websocket.NewHub()
	env.audit = NewAuditService(db)
	env.permissionSvc = NewPermissionService(env.resources, env.permissions, env.txm, env.audit, hub)
	env.groupSvc = NewGroupService(env.groups, env.permissions, env.txm, env.audit, hub)
	env.userSvc = NewUserService(env.users, env.groups, env.permissions, env.txm, env.audit, hub, []byte("test-secret"))
	env.statsSvc = NewStatsService(env.resources, env.permissions, env.groups, env.users)
	env.bootstrap = NewBootstrapService(
		env.resources, env.permissions, env.groups, env.users,
		env.groupSvc, env.txm, env.audit,
		"admin", "admin123",
	)
	return env
}

// seed runs the bootstrap once and fails the test on error.
func (e *testEnv) seed(t *testing.T) *BootstrapReport {
	t.Helper()
	report, err := e.bootstrap.Run(context.Background())
	require.NoError(t, err)
	return report
}
