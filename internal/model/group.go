package model

import (
	"regexp"
	"strings"
	"time"

	"backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminGroupName is the name the bootstrap gives the single system group.
const AdminGroupName = "ADMIN"

// RolePrefix prefixes every derived role token.
const RolePrefix = "ROLE_"

var groupNamePattern = regexp.MustCompile(`^[A-Z_]+$`)

// ValidGroupName reports whether name consists of uppercase letters and underscores.
func ValidGroupName(name string) bool {
	return groupNamePattern.MatchString(name)
}

// Group represents a named, reusable bundle of permissions users can be assigned to.
// The IsSystem flag marks the privileged group: it is implicitly granted every
// permission, cannot be renamed or deleted, and its permission set never shrinks.
type Group struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"` // Uppercase letters/underscores only
	DisplayName string       `gorm:"type:varchar(100);not null" json:"display_name"`
	Description string       `gorm:"type:varchar(255)" json:"description"`
	IsSystem    bool         `gorm:"default:false" json:"is_system"`
	Permissions []Permission `gorm:"many2many:group_permissions;" json:"permissions,omitempty"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (g *Group) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.Name = strings.ToUpper(strings.TrimSpace(g.Name))
	return nil
}

// Role derives the role token for this group, e.g. "ROLE_MODERATOR".
// Computed from the live name so a rename is reflected immediately.
func (g *Group) Role() string {
	return RolePrefix + g.Name
}

// Rename changes the group name. Renaming the system group away from its
// current name is an invariant violation; renaming to the same name is a
// no-op success.
func (g *Group) Rename(newName string) error {
	newName = strings.ToUpper(strings.TrimSpace(newName))
	if newName == g.Name {
		return nil
	}
	if g.IsSystem {
		return apperr.Invariant("the %s system group cannot be renamed", g.Name)
	}
	if !ValidGroupName(newName) {
		return apperr.Validation("group name must contain only uppercase letters and underscores")
	}
	g.Name = newName
	g.UpdatedAt = time.Now()
	return nil
}

// AddPermission attaches a permission if not already held.
func (g *Group) AddPermission(p Permission) bool {
	for _, existing := range g.Permissions {
		if existing.ID == p.ID {
			return false
		}
	}
	g.Permissions = append(g.Permissions, p)
	g.UpdatedAt = time.Now()
	return true
}

// RemovePermission detaches a permission. On the system group this is a
// silent no-op: its permission set never shrinks.
func (g *Group) RemovePermission(permissionID uuid.UUID) bool {
	if g.IsSystem {
		return false
	}
	for i, existing := range g.Permissions {
		if existing.ID == permissionID {
			g.Permissions = append(g.Permissions[:i], g.Permissions[i+1:]...)
			g.UpdatedAt = time.Now()
			return true
		}
	}
	return false
}

// HasPermission reports whether the group grants (resourceName, action).
// The system group grants everything regardless of its stored set.
func (g *Group) HasPermission(resourceName, action string) bool {
	if g.IsSystem {
		return true
	}
	resourceName = strings.ToUpper(resourceName)
	action = strings.ToUpper(action)
	for _, p := range g.Permissions {
		if p.Resource != nil && p.Resource.Name == resourceName && p.Action == action {
			return true
		}
	}
	return false
}
