package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FxRate stores one historical exchange rate observation. All rows are
// retained; lookup picks the most recent AsOf at or before the requested
// date. Rates are exact decimals to keep repeated conversions of the same
// historical date deterministic.
type FxRate struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Base         string          `gorm:"type:varchar(3);not null;index:idx_fx_pair" json:"base"`
	Quote        string          `gorm:"type:varchar(3);not null;index:idx_fx_pair" json:"quote"`
	Rate         decimal.Decimal `gorm:"type:decimal(24,10);not null" json:"rate"`
	AsOf         time.Time       `gorm:"type:date;not null;index:idx_fx_pair" json:"as_of"`
	ProvenanceID *uuid.UUID      `gorm:"type:uuid;index" json:"provenance_id"`
	CreatedAt    time.Time       `json:"created_at"`
}
