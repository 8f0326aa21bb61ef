package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

// Kind discriminates the raw-row union. Every loosely-typed source row is one
// of these variants; nothing untyped crosses past Normalize.
type Kind string

const (
	KindDuty      Kind = "duty"
	KindVat       Kind = "vat"
	KindDeMinimis Kind = "de_minimis"
	KindSurcharge Kind = "surcharge"
	KindFx        Kind = "fx"
	KindFreight   Kind = "freight"
)

var (
	iso2Re     = regexp.MustCompile(`^[A-Z]{2}$`)
	hs6Re      = regexp.MustCompile(`^\d{6}$`)
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
)

// RawRow is the tagged union of per-source row variants. Exactly one variant
// pointer is set, matching Kind.
type RawRow struct {
	Kind      Kind          `json:"kind"`
	Duty      *DutyRow      `json:"duty,omitempty"`
	Vat       *VatRow       `json:"vat,omitempty"`
	DeMinimis *DeMinimisRow `json:"de_minimis,omitempty"`
	Surcharge *SurchargeRow `json:"surcharge,omitempty"`
	Fx        *FxRow        `json:"fx,omitempty"`
	Freight   *FreightRow   `json:"freight,omitempty"`
}

// DutyRow is one candidate duty rate as delivered by a source adapter.
// Percentages arrive as percent values (5 = 5%), not fractions.
type DutyRow struct {
	Destination      string `csv:"destination" json:"destination"`
	PartnerID        string `csv:"partner_id,omitempty" json:"partner_id,omitempty"`
	HS6              string `csv:"hs6" json:"hs6"`
	RuleType         string `csv:"rule_type" json:"rule_type"`
	AdValoremPercent string `csv:"ad_valorem_percent" json:"ad_valorem_percent"`
	SpecificAmount   string `csv:"specific_amount,omitempty" json:"specific_amount,omitempty"`
	SpecificUnit     string `csv:"specific_unit,omitempty" json:"specific_unit,omitempty"`
	Currency         string `csv:"currency,omitempty" json:"currency,omitempty"`
	EffectiveFrom    string `csv:"effective_from" json:"effective_from"`
	EffectiveTo      string `csv:"effective_to,omitempty" json:"effective_to,omitempty"`
	SourceURL        string `csv:"source_url,omitempty" json:"source_url,omitempty"`
}

type VatRow struct {
	Destination   string `csv:"destination" json:"destination"`
	RatePercent   string `csv:"rate_percent" json:"rate_percent"`
	Base          string `csv:"base" json:"base"` // CIF, CIF_PLUS_DUTY
	EffectiveFrom string `csv:"effective_from" json:"effective_from"`
	EffectiveTo   string `csv:"effective_to,omitempty" json:"effective_to,omitempty"`
	SourceURL     string `csv:"source_url,omitempty" json:"source_url,omitempty"`
}

type DeMinimisRow struct {
	Destination   string `csv:"destination" json:"destination"`
	Currency      string `csv:"currency" json:"currency"`
	Value         string `csv:"value" json:"value"`
	AppliesTo     string `csv:"applies_to" json:"applies_to"` // DUTY, DUTY_VAT, NONE
	EffectiveFrom string `csv:"effective_from" json:"effective_from"`
	EffectiveTo   string `csv:"effective_to,omitempty" json:"effective_to,omitempty"`
	SourceURL     string `csv:"source_url,omitempty" json:"source_url,omitempty"`
}

type SurchargeRow struct {
	Destination   string `csv:"destination" json:"destination"`
	Code          string `csv:"code" json:"code"`
	FixedAmount   string `csv:"fixed_amount,omitempty" json:"fixed_amount,omitempty"`
	PercentAmount string `csv:"percent_amount,omitempty" json:"percent_amount,omitempty"` // percent of CIF
	Currency      string `csv:"currency" json:"currency"`
	EffectiveFrom string `csv:"effective_from" json:"effective_from"`
	EffectiveTo   string `csv:"effective_to,omitempty" json:"effective_to,omitempty"`
	SourceURL     string `csv:"source_url,omitempty" json:"source_url,omitempty"`
}

type FxRow struct {
	Base      string `csv:"base" json:"base"`
	Quote     string `csv:"quote" json:"quote"`
	Rate      string `csv:"rate" json:"rate"`
	AsOf      string `csv:"as_of" json:"as_of"`
	SourceURL string `csv:"source_url,omitempty" json:"source_url,omitempty"`
}

// FreightRow is one step tier; rows for the same (mode, effective_from) are
// grouped into a single card during normalization.
type FreightRow struct {
	Mode          string `csv:"mode" json:"mode"` // air, sea
	Unit          string `csv:"unit" json:"unit"` // kg, m3
	Currency      string `csv:"currency" json:"currency"`
	UptoQuantity  string `csv:"upto_quantity" json:"upto_quantity"`
	PricePerUnit  string `csv:"price_per_unit" json:"price_per_unit"`
	EffectiveFrom string `csv:"effective_from" json:"effective_from"`
	EffectiveTo   string `csv:"effective_to,omitempty" json:"effective_to,omitempty"`
	SourceURL     string `csv:"source_url,omitempty" json:"source_url,omitempty"`
}

// RowError is a per-row validation failure; rows are dropped and counted,
// never fatal individually.
type RowError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index, e.Reason)
}

// rowHash is the sha256 content hash of the raw row, recorded in provenance
// for dedup and audit.
func rowHash(row RawRow) string {
	b, _ := json.Marshal(row)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func parseNonNegative(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", field, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must be >= 0, got %s", field, s)
	}
	return d, nil
}
