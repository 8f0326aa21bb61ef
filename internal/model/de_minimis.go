package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppliesTo enum constants
const (
	DeMinimisDuty    = "DUTY"
	DeMinimisDutyVat = "DUTY_VAT"
	DeMinimisNone    = "NONE"
)

// DeMinimisThreshold stores the value threshold below which duty and/or VAT
// is waived for a destination.
type DeMinimisThreshold struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Destination   string          `gorm:"type:varchar(2);not null;index" json:"destination"`
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`
	Value         decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"value"`
	AppliesTo     string          `gorm:"type:varchar(10);not null" json:"applies_to"` // DUTY, DUTY_VAT, NONE
	EffectiveFrom time.Time       `gorm:"type:date;not null;index" json:"effective_from"`
	EffectiveTo   *time.Time      `gorm:"type:date;index" json:"effective_to"`
	ProvenanceID  *uuid.UUID      `gorm:"type:uuid;index" json:"provenance_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
