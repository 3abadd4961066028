package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actions form a closed enumeration; anything else is rejected at creation.
const (
	ActionCreate = "CREATE"
	ActionRead   = "READ"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionManage = "MANAGE"
)

// Actions lists every valid permission action.
func Actions() []string {
	return []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}
}

// ValidAction reports whether action belongs to the closed enumeration.
func ValidAction(action string) bool {
	switch action {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage:
		return true
	}
	return false
}

// Permission represents a (resource, action) pair, the atomic unit of grantable access.
// The pair is unique; the code is always recomputed from the live resource name.
type Permission struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ResourceID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_permissions_resource_action" json:"resource_id"`
	Resource    *Resource `gorm:"foreignKey:ResourceID" json:"resource,omitempty"`
	Action      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_permissions_resource_action" json:"action"`
	Description string    `gorm:"type:varchar(255)" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Action = strings.ToUpper(strings.TrimSpace(p.Action))
	return nil
}

// Code computes the unique permission code, e.g. "USERS_READ".
// Never stored: a resource rename must be reflected immediately.
func (p *Permission) Code() string {
	if p.Resource == nil {
		return ""
	}
	return PermissionCode(p.Resource.Name, p.Action)
}

// PermissionCode builds the RESOURCE_ACTION code from its parts.
func PermissionCode(resourceName, action string) string {
	return strings.ToUpper(resourceName) + "_" + strings.ToUpper(action)
}

// SplitPermissionCode decomposes a code like "USERS_READ" into resource name
// and action. The action is the suffix matching the closed enumeration, so
// resource names containing underscores still round-trip.
func SplitPermissionCode(code string) (resourceName, action string, ok bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	idx := strings.LastIndex(code, "_")
	if idx <= 0 || idx == len(code)-1 {
		return "", "", false
	}
	resourceName, action = code[:idx], code[idx+1:]
	if !ValidAction(action) {
		return "", "", false
	}
	return resourceName, action, true
}
