package ingest

import (
	"testing"

	"landedcost/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dutyRow(dest, hs6, ruleType, partner, percent string) RawRow {
	return RawRow{Kind: KindDuty, Duty: &DutyRow{
		Destination:      dest,
		PartnerID:        partner,
		HS6:              hs6,
		RuleType:         ruleType,
		AdValoremPercent: percent,
		EffectiveFrom:    "2025-01-01",
		SourceURL:        "https://tariffs.example.com/duty.csv",
	}}
}

// TestNormalize_DutyRow verifies the percent-to-fraction conversion and
// canonical field mapping for a plain MFN row.
func TestNormalize_DutyRow(t *testing.T) {
	records, dropped := Normalize([]RawRow{dutyRow("DE", "610910", "MFN", "", "5")})

	require.Empty(t, dropped)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, KindDuty, rec.Kind)
	require.NotNil(t, rec.Duty)
	assert.Equal(t, "DE", rec.Duty.Destination)
	assert.Equal(t, "610910", rec.Duty.HS6)
	assert.Nil(t, rec.Duty.PartnerID)
	assert.Equal(t, "0.05", rec.Duty.AdValoremRate.String())
	assert.Equal(t, "https://tariffs.example.com/duty.csv", rec.SourceURL)
	assert.Len(t, rec.Hash, 64)
}

// TestNormalize_DutyPartnerRules verifies that FTA rows require a partner and
// MFN rows forbid one; violating rows are dropped, never fatal.
func TestNormalize_DutyPartnerRules(t *testing.T) {
	records, dropped := Normalize([]RawRow{
		dutyRow("DE", "610910", "FTA", "", "0"),       // FTA without partner
		dutyRow("DE", "610910", "MFN", "EU-FTA", "5"), // MFN with partner
		dutyRow("DE", "610910", "FTA", "EU-FTA", "0"), // valid
	})

	require.Len(t, records, 1)
	require.NotNil(t, records[0].Duty.PartnerID)
	assert.Equal(t, "EU-FTA", *records[0].Duty.PartnerID)

	require.Len(t, dropped, 2)
	assert.Equal(t, 0, dropped[0].Index)
	assert.Equal(t, 1, dropped[1].Index)
}

// TestNormalize_WindowValidation verifies that effective_from must strictly
// precede effective_to and that open-ended windows pass.
func TestNormalize_WindowValidation(t *testing.T) {
	open := dutyRow("FR", "610910", "MFN", "", "12")
	inverted := dutyRow("FR", "610910", "MFN", "", "12")
	inverted.Duty.EffectiveTo = "2024-06-01" // before effective_from

	records, dropped := Normalize([]RawRow{open, inverted})

	require.Len(t, records, 1)
	assert.Nil(t, records[0].Duty.EffectiveTo)
	require.Len(t, dropped, 1)
	assert.Contains(t, dropped[0].Reason, "must precede")
}

func TestNormalize_NegativeRateDropped(t *testing.T) {
	records, dropped := Normalize([]RawRow{dutyRow("DE", "610910", "MFN", "", "-3")})

	assert.Empty(t, records)
	require.Len(t, dropped, 1)
	assert.Contains(t, dropped[0].Reason, ">= 0")
}

func TestNormalize_VatBase(t *testing.T) {
	valid := RawRow{Kind: KindVat, Vat: &VatRow{
		Destination: "GB", RatePercent: "20", Base: "CIF_PLUS_DUTY", EffectiveFrom: "2025-01-01",
	}}
	badBase := RawRow{Kind: KindVat, Vat: &VatRow{
		Destination: "GB", RatePercent: "20", Base: "FOB", EffectiveFrom: "2025-01-01",
	}}

	records, dropped := Normalize([]RawRow{valid, badBase})

	require.Len(t, records, 1)
	assert.Equal(t, model.VatBaseCIFPlusDuty, records[0].Vat.Base)
	assert.Equal(t, "0.2", records[0].Vat.Rate.String())
	require.Len(t, dropped, 1)
	assert.Contains(t, dropped[0].Reason, "vat base")
}

func TestNormalize_SurchargeRequiresComponent(t *testing.T) {
	empty := RawRow{Kind: KindSurcharge, Surcharge: &SurchargeRow{
		Destination: "US", Code: model.SurchargeHandling, Currency: "USD", EffectiveFrom: "2025-01-01",
	}}
	fixed := RawRow{Kind: KindSurcharge, Surcharge: &SurchargeRow{
		Destination: "US", Code: model.SurchargeDisbursement, FixedAmount: "12.50",
		Currency: "USD", EffectiveFrom: "2025-01-01",
	}}

	records, dropped := Normalize([]RawRow{empty, fixed})

	require.Len(t, records, 1)
	assert.Equal(t, "12.5", records[0].Surcharge.FixedAmount.String())
	require.Len(t, dropped, 1)
	assert.Contains(t, dropped[0].Reason, "fixed or percent")
}

func freightRow(mode, upto, price string) RawRow {
	unit := model.FreightUnitKg
	if mode == model.FreightModeSea {
		unit = model.FreightUnitM3
	}
	return RawRow{Kind: KindFreight, Freight: &FreightRow{
		Mode: mode, Unit: unit, Currency: "USD",
		UptoQuantity: upto, PricePerUnit: price,
		EffectiveFrom: "2025-01-01",
	}}
}

// TestNormalize_FreightGrouping verifies that step rows sharing a
// (mode, unit, currency, window) fold into one card with steps ascending by
// ceiling regardless of input order.
func TestNormalize_FreightGrouping(t *testing.T) {
	records, dropped := Normalize([]RawRow{
		freightRow("air", "100", "4.20"),
		freightRow("air", "10", "8.00"),
		freightRow("air", "50", "5.50"),
		freightRow("sea", "20", "110"),
	})

	require.Empty(t, dropped)
	require.Len(t, records, 2)

	var air, sea *model.FreightCard
	for i := range records {
		require.Equal(t, KindFreight, records[i].Kind)
		switch records[i].Freight.Mode {
		case model.FreightModeAir:
			air = records[i].Freight
		case model.FreightModeSea:
			sea = records[i].Freight
		}
	}

	require.NotNil(t, air)
	require.Len(t, air.Steps, 3)
	assert.Equal(t, "10", air.Steps[0].UptoQuantity.String())
	assert.Equal(t, "50", air.Steps[1].UptoQuantity.String())
	assert.Equal(t, "100", air.Steps[2].UptoQuantity.String())
	assert.Equal(t, []int{0, 1, 2}, []int{air.Steps[0].Position, air.Steps[1].Position, air.Steps[2].Position})

	require.NotNil(t, sea)
	assert.Equal(t, model.FreightUnitM3, sea.Unit)
	require.Len(t, sea.Steps, 1)
}

// TestNormalize_FreightDuplicateCeiling verifies that a repeated ceiling
// within a card keeps the first row and reports the duplicate.
func TestNormalize_FreightDuplicateCeiling(t *testing.T) {
	records, dropped := Normalize([]RawRow{
		freightRow("air", "10", "8.00"),
		freightRow("air", "10", "7.00"),
	})

	require.Len(t, records, 1)
	require.Len(t, records[0].Freight.Steps, 1)
	require.Len(t, dropped, 1)
	assert.Contains(t, dropped[0].Reason, "duplicate step ceiling")
}

func TestNormalize_Empty(t *testing.T) {
	records, dropped := Normalize(nil)
	assert.Empty(t, records)
	assert.Empty(t, dropped)
}

// TestRowHash_Stable verifies the provenance hash is content-addressed:
// identical rows collide, differing rows do not.
func TestRowHash_Stable(t *testing.T) {
	a := dutyRow("DE", "610910", "MFN", "", "5")
	b := dutyRow("DE", "610910", "MFN", "", "5")
	c := dutyRow("DE", "610910", "MFN", "", "7")

	assert.Equal(t, rowHash(a), rowHash(b))
	assert.NotEqual(t, rowHash(a), rowHash(c))
}
