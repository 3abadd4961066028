package repository

import (
	"context"
	"strings"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ResourceRepository interface {
	Create(ctx context.Context, resource *model.Resource) error
	Update(ctx context.Context, resource *model.Resource) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Resource, error)
	FindByName(ctx context.Context, name string) (*model.Resource, error)
	ListAll(ctx context.Context) ([]model.Resource, error)
	ListAllWithPermissions(ctx context.Context) ([]model.Resource, error)
	Count(ctx context.Context) (int64, error)
}

type resourceRepository struct {
	db *gorm.DB
}

func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) Create(ctx context.Context, resource *model.Resource) error {
	return GetDB(ctx, r.db).Create(resource).Error
}

func (r *resourceRepository) Update(ctx context.Context, resource *model.Resource) error {
	return GetDB(ctx, r.db).Save(resource).Error
}

// Delete removes the resource; owned permissions cascade at the database
// level, so no dangling resource reference survives.
func (r *resourceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("resource_id = ?", id).Delete(&model.Permission{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&model.Resource{}).Error
}

func (r *resourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	var resource model.Resource
	if err := GetDB(ctx, r.db).First(&resource, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}

func (r *resourceRepository) FindByName(ctx context.Context, name string) (*model.Resource, error) {
	var resource model.Resource
	if err := GetDB(ctx, r.db).Where("name = ?", strings.ToUpper(strings.TrimSpace(name))).First(&resource).Error; err != nil {
		return nil, err
	}
	return &resource, nil
}

func (r *resourceRepository) ListAll(ctx context.Context) ([]model.Resource, error) {
	var resources []model.Resource
	if err := GetDB(ctx, r.db).Order("name asc").Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *resourceRepository) ListAllWithPermissions(ctx context.Context) ([]model.Resource, error) {
	var resources []model.Resource
	if err := GetDB(ctx, r.db).Preload("Permissions").Order("name asc").Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *resourceRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.Resource{}).Count(&total).Error
	return total, err
}
