package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Access-control audit actions.
const (
	AuditCreateUser       = "CREATE_USER"
	AuditUpdateUser       = "UPDATE_USER"
	AuditDeleteUser       = "DELETE_USER"
	AuditAssignGroup      = "ASSIGN_GROUP"
	AuditClearGroup       = "CLEAR_GROUP"
	AuditGrantPermission  = "GRANT_PERMISSION"
	AuditRevokePermission = "REVOKE_PERMISSION"
	AuditCreateGroup      = "CREATE_GROUP"
	AuditUpdateGroup      = "UPDATE_GROUP"
	AuditDeleteGroup      = "DELETE_GROUP"
	AuditCreateResource   = "CREATE_RESOURCE"
	AuditDeleteResource   = "DELETE_RESOURCE"
	AuditBootstrap        = "BOOTSTRAP"
)

// AuditLog tracks who changed what in the access-control model and when
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID    *uuid.UUID `gorm:"type:uuid;index" json:"actor_id"` // Nil for bootstrap/system changes
	Actor      *User      `gorm:"foreignKey:ActorID" json:"actor"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // Serialized JSON payload of the change
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
