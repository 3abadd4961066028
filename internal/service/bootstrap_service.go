package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// seedResource is one entry of the fixed bootstrap catalog.
type seedResource struct {
	Name        string
	DisplayName string
	Description string
	Actions     []string
}

// seedGroup names a default group and the permission codes it starts with.
type seedGroup struct {
	Name        string
	DisplayName string
	Description string
	Codes       []string
}

var seedResources = []seedResource{
	{
		Name:        "USERS",
		DisplayName: "Users",
		Description: "User management",
		Actions:     []string{model.ActionCreate, model.ActionRead, model.ActionUpdate, model.ActionDelete},
	},
	{
		Name:        "GROUPS",
		DisplayName: "Groups",
		Description: "Group and role management",
		Actions:     []string{model.ActionCreate, model.ActionRead, model.ActionUpdate, model.ActionDelete},
	},
	{
		Name:        "PERMISSIONS",
		DisplayName: "Permissions",
		Description: "Permission management",
		Actions:     []string{model.ActionCreate, model.ActionRead, model.ActionUpdate, model.ActionDelete, model.ActionManage},
	},
}

var seedGroups = []seedGroup{
	{
		Name:        "USER",
		DisplayName: "Users",
		Description: "Default group for regular users",
		Codes:       []string{"USERS_READ"},
	},
	{
		Name:        "MODERATOR",
		DisplayName: "Moderators",
		Description: "Can review users and permissions",
		Codes:       []string{"USERS_READ", "USERS_UPDATE", "PERMISSIONS_READ"},
	},
}

// BootstrapReport summarizes what one bootstrap run changed. A second run
// against the same database reports all zeros.
type BootstrapReport struct {
	ResourcesCreated   int  `json:"resources_created"`
	PermissionsCreated int  `json:"permissions_created"`
	GroupsCreated      int  `json:"groups_created"`
	AdminPermsSynced   int  `json:"admin_permissions_synced"`
	AdminUserCreated   bool `json:"admin_user_created"`
}

// BootstrapService seeds a deployment: the permission catalog, the system
// group plus default groups, and the initial admin account. Every phase
// converges, so running it on every startup is safe.
type BootstrapService interface {
	Run(ctx context.Context) (*BootstrapReport, error)
}

type bootstrapService struct {
	resources     repository.ResourceRepository
	permissions   repository.PermissionRepository
	groups        repository.GroupRepository
	users         repository.UserRepository
	groupService  GroupService
	txm           repository.TransactionManager
	audit         AuditService
	adminUsername string
	adminPassword string
}

func NewBootstrapService(
	resources repository.ResourceRepository,
	permissions repository.PermissionRepository,
	groups repository.GroupRepository,
	users repository.UserRepository,
	groupService GroupService,
	txm repository.TransactionManager,
	audit AuditService,
	adminUsername, adminPassword string,
) BootstrapService {
	return &bootstrapService{
		resources:     resources,
		permissions:   permissions,
		groups:        groups,
		users:         users,
		groupService:  groupService,
		txm:           txm,
		audit:         audit,
		adminUsername: adminUsername,
		adminPassword: adminPassword,
	}
}

func (s *bootstrapService) Run(ctx context.Context) (*BootstrapReport, error) {
	report := &BootstrapReport{}

	if err := s.seedCatalog(ctx, report); err != nil {
		return nil, err
	}
	if err := s.seedGroups(ctx, report); err != nil {
		return nil, err
	}
	if err := s.seedAdminUser(ctx, report); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, nil, model.AuditBootstrap, "", "", report)
	log.Printf("bootstrap: %d resources, %d permissions, %d groups created, %d admin permissions synced",
		report.ResourcesCreated, report.PermissionsCreated, report.GroupsCreated, report.AdminPermsSynced)
	return report, nil
}

// seedCatalog ensures every catalog resource and its permissions exist,
// with the registry's upsert semantics: an existing permission gets its
// description refreshed to the catalog text on re-run.
func (s *bootstrapService) seedCatalog(ctx context.Context, report *BootstrapReport) error {
	return s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		for _, seed := range seedResources {
			resource, err := s.resources.FindByName(txCtx, seed.Name)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				resource = &model.Resource{
					Name:        seed.Name,
					DisplayName: seed.DisplayName,
					Description: seed.Description,
				}
				if err := s.resources.Create(txCtx, resource); err != nil {
					return apperr.Storage(err, "failed to seed resource '%s'", seed.Name)
				}
				report.ResourcesCreated++
			} else if err != nil {
				return apperr.Storage(err, "failed to look up resource '%s'", seed.Name)
			}

			for _, action := range seed.Actions {
				description := "Allows " + strings.ToLower(action) + " on " + resource.DisplayName
				perm, err := s.permissions.FindByResourceAndAction(txCtx, resource.ID, action)
				if errors.Is(err, gorm.ErrRecordNotFound) {
					perm = &model.Permission{
						ResourceID:  resource.ID,
						Action:      action,
						Description: description,
					}
					if err := s.permissions.Create(txCtx, perm); err != nil {
						return apperr.Storage(err, "failed to seed permission %s_%s", seed.Name, action)
					}
					report.PermissionsCreated++
					continue
				}
				if err != nil {
					return apperr.Storage(err, "failed to look up permission %s_%s", seed.Name, action)
				}
				if perm.Description != description {
					perm.Description = description
					if err := s.permissions.Update(txCtx, perm); err != nil {
						return apperr.Storage(err, "failed to refresh permission %s_%s", seed.Name, action)
					}
				}
			}
		}
		return nil
	})
}

// seedGroups ensures the system group holds every permission and the default
// groups exist with their starting codes.
func (s *bootstrapService) seedGroups(ctx context.Context, report *BootstrapReport) error {
	_, err := s.groups.FindSystemGroup(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if _, err := s.groupService.EnsureAdminGroup(ctx); err != nil {
			return err
		}
		report.GroupsCreated++
	} else if err != nil {
		return apperr.Storage(err, "failed to look up the system group")
	} else {
		added, err := s.groupService.SyncAdminPermissions(ctx)
		if err != nil {
			return err
		}
		report.AdminPermsSynced = added
	}

	for _, seed := range seedGroups {
		_, err := s.groups.FindByName(ctx, seed.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Storage(err, "failed to look up group '%s'", seed.Name)
		}
		_, err = s.groupService.CreateGroup(ctx, nil, CreateGroupRequest{
			Name:            seed.Name,
			DisplayName:     seed.DisplayName,
			Description:     seed.Description,
			PermissionCodes: seed.Codes,
		})
		if err != nil {
			// Another instance may have seeded the same group concurrently.
			if apperr.IsKind(err, apperr.KindConflict) {
				continue
			}
			return err
		}
		report.GroupsCreated++
	}
	return nil
}

// seedAdminUser ensures one account belongs to the system group. If the
// configured username already exists it is adopted as-is.
func (s *bootstrapService) seedAdminUser(ctx context.Context, report *BootstrapReport) error {
	return s.txm.RunInTx(ctx, func(txCtx context.Context) error {
		admin, err := s.groups.FindSystemGroup(txCtx)
		if err != nil {
			return apperr.Storage(err, "failed to look up the system group")
		}

		existing, err := s.users.FindByUsername(txCtx, s.adminUsername)
		if err == nil {
			if existing.GroupID == nil {
				existing.GroupID = &admin.ID
				if err := s.users.Update(txCtx, existing); err != nil {
					return apperr.Storage(err, "failed to attach admin user to the system group")
				}
			}
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Storage(err, "failed to look up admin user")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(s.adminPassword), bcrypt.DefaultCost)
		if err != nil {
			return apperr.Storage(err, "failed to hash admin password")
		}
		user := &model.User{
			Username:  s.adminUsername,
			Password:  string(hash),
			FirstName: "System",
			LastName:  "Administrator",
			Roles:     []string{},
			GroupID:   &admin.ID,
		}
		if err := s.users.Create(txCtx, user); err != nil {
			return apperr.Storage(err, "failed to create admin user")
		}
		report.AdminUserCreated = true
		return nil
	})
}
