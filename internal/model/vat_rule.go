package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VatBase enum constants
const (
	VatBaseCIF         = "CIF"
	VatBaseCIFPlusDuty = "CIF_PLUS_DUTY"
)

// VatRule stores the import VAT rate for a destination. One record is current
// per destination at any instant; historical windows are retained.
type VatRule struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Destination   string          `gorm:"type:varchar(2);not null;index" json:"destination"`
	Rate          decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"rate"` // fraction, e.g. 0.10 = 10%
	Base          string          `gorm:"type:varchar(20);not null" json:"base"`   // CIF, CIF_PLUS_DUTY
	EffectiveFrom time.Time       `gorm:"type:date;not null;index" json:"effective_from"`
	EffectiveTo   *time.Time      `gorm:"type:date;index" json:"effective_to"`
	ProvenanceID  *uuid.UUID      `gorm:"type:uuid;index" json:"provenance_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
