package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Freight mode enum constants
const (
	FreightModeAir = "air"
	FreightModeSea = "sea"
)

// Freight unit enum constants
const (
	FreightUnitKg = "kg"
	FreightUnitM3 = "m3"
)

// FreightCard is the effective-dated tariff card for one transport mode,
// composed of ordered step tiers.
type FreightCard struct {
	ID            uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Mode          string        `gorm:"type:varchar(10);not null;index" json:"mode"` // air, sea
	Unit          string        `gorm:"type:varchar(5);not null" json:"unit"`        // kg, m3
	Currency      string        `gorm:"type:varchar(3);not null" json:"currency"`
	Steps         []FreightStep `gorm:"foreignKey:FreightCardID;constraint:OnDelete:CASCADE" json:"steps"`
	EffectiveFrom time.Time     `gorm:"type:date;not null;index" json:"effective_from"`
	EffectiveTo   *time.Time    `gorm:"type:date;index" json:"effective_to"`
	ProvenanceID  *uuid.UUID    `gorm:"type:uuid;index" json:"provenance_id"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// FreightStep is one unit-priced tier up to a cumulative quantity ceiling.
// Steps within a card ascend by UptoQuantity; quantity above the last ceiling
// is priced at the last step's unit price.
type FreightStep struct {
	ID            uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FreightCardID uuid.UUID       `gorm:"type:uuid;not null;index" json:"freight_card_id"`
	Position      int             `gorm:"not null" json:"position"`
	UptoQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"upto_quantity"`
	PricePerUnit  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"price_per_unit"`
}
