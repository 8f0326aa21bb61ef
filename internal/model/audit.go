package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionRunImport    = "RUN_IMPORT"
	ActionDryRunImport = "DRY_RUN_IMPORT"
	ActionSweepImports = "SWEEP_IMPORTS"
	ActionPruneImports = "PRUNE_IMPORTS"
	ActionRefreshFx    = "REFRESH_FX"
)

// AuditLog tracks What and When for critical dataset changes
type AuditLog struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string    `gorm:"type:varchar(50);index" json:"entity_id"`        // Reference string (uuid/code)
	EntityName string    `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    string    `gorm:"type:jsonb" json:"details"`                      // Serialized JSON payload of the action
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
