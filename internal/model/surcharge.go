package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Surcharge code enum constants
const (
	SurchargeCustomsProcessing = "CUSTOMS_PROCESSING"
	SurchargeDisbursement      = "DISBURSEMENT"
	SurchargeExcise            = "EXCISE"
	SurchargeHandling          = "HANDLING"
)

// Surcharge stores a destination-level fee applied on top of duty and VAT.
// Multiple surcharges may be simultaneously active for one destination and
// aggregate additively.
type Surcharge struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Destination   string          `gorm:"type:varchar(2);not null;index:idx_surcharge_key" json:"destination"`
	Code          string          `gorm:"type:varchar(30);not null;index:idx_surcharge_key" json:"code"`
	FixedAmount   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"fixed_amount"`
	PercentAmount decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"percent_amount"` // fraction of CIF
	Currency      string          `gorm:"type:varchar(3);not null" json:"currency"`                    // currency of the fixed component
	EffectiveFrom time.Time       `gorm:"type:date;not null;index" json:"effective_from"`
	EffectiveTo   *time.Time      `gorm:"type:date;index" json:"effective_to"`
	ProvenanceID  *uuid.UUID      `gorm:"type:uuid;index" json:"provenance_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
