package repository

import (
	"context"
	"strings"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupRepository interface {
	Create(ctx context.Context, group *model.Group) error
	Update(ctx context.Context, group *model.Group) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Group, error)
	FindByIDWithPermissions(ctx context.Context, id uuid.UUID) (*model.Group, error)
	FindByName(ctx context.Context, name string) (*model.Group, error)
	FindSystemGroup(ctx context.Context) (*model.Group, error)
	ListAllWithPermissions(ctx context.Context) ([]model.Group, error)
	ListUsers(ctx context.Context, groupID uuid.UUID) ([]model.User, error)
	CountUsers(ctx context.Context, groupID uuid.UUID) (int64, error)
	Count(ctx context.Context) (int64, error)
	AppendPermissions(ctx context.Context, group *model.Group, perms []model.Permission) error
	RemovePermission(ctx context.Context, group *model.Group, perm model.Permission) error
	ReplacePermissions(ctx context.Context, group *model.Group, perms []model.Permission) error
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *model.Group) error {
	return GetDB(ctx, r.db).Create(group).Error
}

func (r *groupRepository) Update(ctx context.Context, group *model.Group) error {
	return GetDB(ctx, r.db).Omit("Permissions").Save(group).Error
}

func (r *groupRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	var group model.Group
	if err := db.First(&group, "id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Model(&group).Association("Permissions").Clear(); err != nil {
		return err
	}
	return db.Delete(&group).Error
}

func (r *groupRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	var group model.Group
	if err := GetDB(ctx, r.db).First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) FindByIDWithPermissions(ctx context.Context, id uuid.UUID) (*model.Group, error) {
	var group model.Group
	if err := GetDB(ctx, r.db).Preload("Permissions.Resource").First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindByName matches case-insensitively; stored names are uppercase.
func (r *groupRepository) FindByName(ctx context.Context, name string) (*model.Group, error) {
	var group model.Group
	err := GetDB(ctx, r.db).Preload("Permissions.Resource").
		Where("name = ?", strings.ToUpper(strings.TrimSpace(name))).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) FindSystemGroup(ctx context.Context) (*model.Group, error) {
	var group model.Group
	err := GetDB(ctx, r.db).Preload("Permissions.Resource").
		Where("is_system = ?", true).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) ListAllWithPermissions(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	if err := GetDB(ctx, r.db).Preload("Permissions.Resource").Order("name asc").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// ListUsers returns the members of a group. Membership is navigated through
// the user side only; groups hold no mirrored user slice.
func (r *groupRepository) ListUsers(ctx context.Context, groupID uuid.UUID) ([]model.User, error) {
	var users []model.User
	if err := GetDB(ctx, r.db).Where("group_id = ?", groupID).Order("username asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *groupRepository) CountUsers(ctx context.Context, groupID uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Where("group_id = ?", groupID).Count(&total).Error
	return total, err
}

func (r *groupRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Group{}).Count(&total).Error
	return total, err
}

func (r *groupRepository) AppendPermissions(ctx context.Context, group *model.Group, perms []model.Permission) error {
	return GetDB(ctx, r.db).Model(group).Association("Permissions").Append(perms)
}

func (r *groupRepository) RemovePermission(ctx context.Context, group *model.Group, perm model.Permission) error {
	return GetDB(ctx, r.db).Model(group).Association("Permissions").Delete(perm)
}

func (r *groupRepository) ReplacePermissions(ctx context.Context, group *model.Group, perms []model.Permission) error {
	return GetDB(ctx, r.db).Model(group).Association("Permissions").Replace(perms)
}
