package repository

import (
	"context"
	"strings"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PermissionRepository interface {
	Create(ctx context.Context, perm *model.Permission) error
	Update(ctx context.Context, perm *model.Permission) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Permission, error)
	FindByResourceAndAction(ctx context.Context, resourceID uuid.UUID, action string) (*model.Permission, error)
	FindByCode(ctx context.Context, code string) (*model.Permission, error)
	ListAll(ctx context.Context) ([]model.Permission, error)
	Count(ctx context.Context) (int64, error)
	CountHolders(ctx context.Context, permissionID uuid.UUID) (int64, error)
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) Create(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Create(perm).Error
}

func (r *permissionRepository) Update(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).Save(perm).Error
}

func (r *permissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Permission{}).Error
}

func (r *permissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).Preload("Resource").First(&perm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) FindByResourceAndAction(ctx context.Context, resourceID uuid.UUID, action string) (*model.Permission, error) {
	var perm model.Permission
	err := GetDB(ctx, r.db).Preload("Resource").
		Where("resource_id = ? AND action = ?", resourceID, strings.ToUpper(action)).
		First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// FindByCode resolves a RESOURCE_ACTION code by joining on the live resource
// name; codes are never stored.
func (r *permissionRepository) FindByCode(ctx context.Context, code string) (*model.Permission, error) {
	resourceName, action, ok := model.SplitPermissionCode(code)
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	var perm model.Permission
	err := GetDB(ctx, r.db).Preload("Resource").
		Joins("JOIN resources ON resources.id = permissions.resource_id").
		Where("resources.name = ? AND permissions.action = ?", resourceName, action).
		First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) ListAll(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	err := GetDB(ctx, r.db).Preload("Resource").
		Joins("JOIN resources ON resources.id = permissions.resource_id").
		Order("resources.name asc, permissions.action asc").
		Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Permission{}).Count(&total).Error
	return total, err
}

// CountHolders counts users directly granted the permission.
func (r *permissionRepository) CountHolders(ctx context.Context, permissionID uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Table("user_permissions").
		Where("permission_id = ?", permissionID).
		Count(&total).Error
	return total, err
}
