package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// FindByIDWithAccess loads the user together with everything resolution
	// needs: direct permissions with resources, and the group with its
	// permission set.
	FindByIDWithAccess(ctx context.Context, id uuid.UUID) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context, offset, limit int) ([]model.User, int64, error)
	ListAllWithAccess(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int64, error)
	CountDirectGrants(ctx context.Context, userID uuid.UUID) (int64, error)
	AppendPermission(ctx context.Context, user *model.User, perm model.Permission) error
	RemovePermission(ctx context.Context, user *model.User, perm model.Permission) error
	ReplacePermissions(ctx context.Context, user *model.User, perms []model.Permission) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Omit("Permissions").Save(user).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	var user model.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Model(&user).Association("Permissions").Clear(); err != nil {
		return err
	}
	return db.Delete(&user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByIDWithAccess(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	err := GetDB(ctx, r.db).
		Preload("Permissions.Resource").
		Preload("Group.Permissions.Resource").
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := GetDB(ctx, r.db).
		Preload("Permissions.Resource").
		Preload("Group.Permissions.Resource").
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	db := GetDB(ctx, r.db)
	var total int64
	if err := db.Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []model.User
	err := db.Preload("Group").Order("username asc").Offset(offset).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) ListAllWithAccess(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := GetDB(ctx, r.db).
		Preload("Permissions.Resource").
		Preload("Group.Permissions.Resource").
		Order("username asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Count(&total).Error
	return total, err
}

func (r *userRepository) CountDirectGrants(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Table("user_permissions").
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

func (r *userRepository) AppendPermission(ctx context.Context, user *model.User, perm model.Permission) error {
	return GetDB(ctx, r.db).Model(user).Association("Permissions").Append(&perm)
}

func (r *userRepository) RemovePermission(ctx context.Context, user *model.User, perm model.Permission) error {
	return GetDB(ctx, r.db).Model(user).Association("Permissions").Delete(&perm)
}

func (r *userRepository) ReplacePermissions(ctx context.Context, user *model.User, perms []model.Permission) error {
	return GetDB(ctx, r.db).Model(user).Association("Permissions").Replace(perms)
}
