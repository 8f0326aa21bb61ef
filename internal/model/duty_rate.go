package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RuleType enum constants
const (
	RuleTypeMFN   = "MFN"
	RuleTypeFTA   = "FTA"
	RuleTypeOther = "OTHER"
)

// DutyRate stores an effective-dated customs duty rate for a destination/HS6
// pair. FTA rows additionally carry the partner/trade-agreement identity they
// apply to; MFN and OTHER rows leave PartnerID null.
type DutyRate struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Destination    string          `gorm:"type:varchar(2);not null;index:idx_duty_key" json:"destination"`
	PartnerID      *string         `gorm:"type:varchar(20);index:idx_duty_key" json:"partner_id"`
	HS6            string          `gorm:"column:hs6;type:varchar(6);not null;index:idx_duty_key" json:"hs6"`
	RuleType       string          `gorm:"type:varchar(10);not null;index" json:"rule_type"` // MFN, FTA, OTHER
	AdValoremRate  decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"ad_valorem_rate"` // fraction, e.g. 0.050000 = 5%
	SpecificAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"specific_amount"`
	SpecificUnit   string          `gorm:"type:varchar(10)" json:"specific_unit"` // kg, unit, ... empty when ad-valorem only
	Currency       string          `gorm:"type:varchar(3)" json:"currency"`      // currency of the specific component
	EffectiveFrom  time.Time       `gorm:"type:date;not null;index" json:"effective_from"`
	EffectiveTo    *time.Time      `gorm:"type:date;index" json:"effective_to"` // nullable = currently active
	ProvenanceID   *uuid.UUID      `gorm:"type:uuid;index" json:"provenance_id"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
