package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents a principal: direct permission grants plus an optional
// single group membership. Effective permissions and roles are always
// computed from the live associations, never stored.
type User struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Username    string                      `gorm:"type:varchar(180);uniqueIndex;not null" json:"username"`
	Password    string                      `gorm:"type:varchar(255);not null" json:"-"` // Omit password hash from JSON responses
	FirstName   string                      `gorm:"type:varchar(255)" json:"first_name,omitempty"`
	LastName    string                      `gorm:"type:varchar(255)" json:"last_name,omitempty"`
	Roles       datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"roles"` // Supplementary role tokens only
	Permissions []Permission                `gorm:"many2many:user_permissions;" json:"permissions,omitempty"`
	GroupID     *uuid.UUID                  `gorm:"type:uuid;index" json:"group_id,omitempty"`
	Group       *Group                      `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	CreatedAt   time.Time                   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time                   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// HasDirectPermission reports whether the user directly holds permissionID.
func (u *User) HasDirectPermission(permissionID uuid.UUID) bool {
	for _, p := range u.Permissions {
		if p.ID == permissionID {
			return true
		}
	}
	return false
}
