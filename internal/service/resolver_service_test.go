package service

import (
	"context"
	"testing"

	"landedcost/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(duty *fakeDutyRepo, vat *fakeVatRepo, deMin *fakeDeMinimisRepo, sur *fakeSurchargeRepo, excluded []string) ResolverService {
	if duty == nil {
		duty = &fakeDutyRepo{}
	}
	if vat == nil {
		vat = &fakeVatRepo{}
	}
	if deMin == nil {
		deMin = &fakeDeMinimisRepo{}
	}
	if sur == nil {
		sur = &fakeSurchargeRepo{}
	}
	return NewResolverService(duty, vat, deMin, sur, excluded)
}

func dutyRate(dest, hs6, ruleType string, partner *string, rate string, from string) model.DutyRate {
	return model.DutyRate{
		Destination:   dest,
		PartnerID:     partner,
		HS6:           hs6,
		RuleType:      ruleType,
		AdValoremRate: mustDecimal(rate),
		EffectiveFrom: mustDate(from),
	}
}

func strPtr(s string) *string { return &s }

// TestResolveDuty_FTAPartnerFilter verifies that a preferential rate only
// competes when its partner matches the shipment origin; otherwise MFN wins.
func TestResolveDuty_FTAPartnerFilter(t *testing.T) {
	duty := &fakeDutyRepo{rows: []model.DutyRate{
		dutyRate("DE", "610910", model.RuleTypeMFN, nil, "0.12", "2025-01-01"),
		dutyRate("DE", "610910", model.RuleTypeFTA, strPtr("KR"), "0", "2025-01-01"),
	}}
	r := newTestResolver(duty, nil, nil, nil, nil)
	asOf := mustDate("2025-06-01")

	// Origin matches the FTA partner: zero-rate preference applies.
	res := r.ResolveDuty(context.Background(), "KR", "DE", "610910", asOf)
	require.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, model.RuleTypeFTA, res.Rate.RuleType)
	assert.True(t, res.Rate.AdValoremRate.IsZero())

	// Different origin: the FTA row is ineligible and MFN applies.
	res = r.ResolveDuty(context.Background(), "CN", "DE", "610910", asOf)
	require.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, model.RuleTypeMFN, res.Rate.RuleType)
	assert.Equal(t, "0.12", res.Rate.AdValoremRate.String())
}

// TestResolveDuty_LowestRateWins verifies that preference is by effective
// rate, never by rule type: an FTA row above MFN loses.
func TestResolveDuty_LowestRateWins(t *testing.T) {
	duty := &fakeDutyRepo{rows: []model.DutyRate{
		dutyRate("DE", "610910", model.RuleTypeMFN, nil, "0.05", "2025-01-01"),
		dutyRate("DE", "610910", model.RuleTypeFTA, strPtr("KR"), "0.08", "2025-01-01"),
	}}
	r := newTestResolver(duty, nil, nil, nil, nil)

	res := r.ResolveDuty(context.Background(), "KR", "DE", "610910", mustDate("2025-06-01"))
	require.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, model.RuleTypeMFN, res.Rate.RuleType)
}

// TestResolveDuty_TieBreakNewest verifies that an exact rate tie falls to the
// most recently created record.
func TestResolveDuty_TieBreakNewest(t *testing.T) {
	older := dutyRate("DE", "610910", model.RuleTypeMFN, nil, "0.05", "2024-01-01")
	newer := dutyRate("DE", "610910", model.RuleTypeOther, nil, "0.05", "2025-01-01")
	duty := &fakeDutyRepo{rows: []model.DutyRate{older, newer}} // insertion order = age

	r := newTestResolver(duty, nil, nil, nil, nil)
	res := r.ResolveDuty(context.Background(), "CN", "DE", "610910", mustDate("2025-06-01"))

	require.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, model.RuleTypeOther, res.Rate.RuleType)
	assert.Equal(t, mustDate("2025-01-01"), *res.Meta.EffectiveFrom)
}

// TestResolveDuty_MissStatuses verifies the no_dataset / no_match split: an
// empty destination dataset versus a dataset that simply has no row for the
// requested code or date.
func TestResolveDuty_MissStatuses(t *testing.T) {
	duty := &fakeDutyRepo{rows: []model.DutyRate{
		dutyRate("DE", "610910", model.RuleTypeMFN, nil, "0.12", "2025-01-01"),
	}}
	r := newTestResolver(duty, nil, nil, nil, nil)

	res := r.ResolveDuty(context.Background(), "CN", "FR", "610910", mustDate("2025-06-01"))
	assert.Equal(t, StatusNoDataset, res.Meta.Status)

	res = r.ResolveDuty(context.Background(), "CN", "DE", "999999", mustDate("2025-06-01"))
	assert.Equal(t, StatusNoMatch, res.Meta.Status)

	// Date before any window also reads as no_match, not no_dataset.
	res = r.ResolveDuty(context.Background(), "CN", "DE", "610910", mustDate("2024-06-01"))
	assert.Equal(t, StatusNoMatch, res.Meta.Status)
}

// TestResolve_OutOfScope verifies that an excluded destination short-circuits
// every dataset with out_of_scope before any lookup.
func TestResolve_OutOfScope(t *testing.T) {
	duty := &fakeDutyRepo{rows: []model.DutyRate{
		dutyRate("KP", "610910", model.RuleTypeMFN, nil, "0.12", "2025-01-01"),
	}}
	r := newTestResolver(duty, nil, nil, nil, []string{"KP"})
	asOf := mustDate("2025-06-01")

	assert.Equal(t, StatusOutOfScope, r.ResolveDuty(context.Background(), "CN", "KP", "610910", asOf).Meta.Status)
	assert.Equal(t, StatusOutOfScope, r.ResolveVat(context.Background(), "KP", asOf).Meta.Status)
	assert.Equal(t, StatusOutOfScope, r.ResolveDeMinimis(context.Background(), "KP", asOf).Meta.Status)
	assert.Equal(t, StatusOutOfScope, r.ResolveSurcharges(context.Background(), "KP", asOf).Meta.Status)
}

// TestResolveVat_WindowSelection verifies that a superseded historical rate
// still resolves for dates inside its closed window.
func TestResolveVat_WindowSelection(t *testing.T) {
	cutover := mustDate("2025-07-01")
	vat := &fakeVatRepo{rows: []model.VatRule{
		{Destination: "GB", Rate: mustDecimal("0.175"), Base: model.VatBaseCIF, EffectiveFrom: mustDate("2024-01-01"), EffectiveTo: &cutover},
		{Destination: "GB", Rate: mustDecimal("0.2"), Base: model.VatBaseCIF, EffectiveFrom: cutover},
	}}
	r := newTestResolver(nil, vat, nil, nil, nil)

	res := r.ResolveVat(context.Background(), "GB", mustDate("2025-03-01"))
	require.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, "0.175", res.Rule.Rate.String())

	res = r.ResolveVat(context.Background(), "GB", cutover)
	require.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, "0.2", res.Rule.Rate.String(), "half-open window: the boundary date belongs to the new rate")
}

// TestResolveSurcharges_Aggregates verifies that all simultaneously active
// surcharges return together and the meta carries the newest window start.
func TestResolveSurcharges_Aggregates(t *testing.T) {
	sur := &fakeSurchargeRepo{rows: []model.Surcharge{
		{Destination: "US", Code: model.SurchargeCustomsProcessing, FixedAmount: mustDecimal("27.75"), Currency: "USD", EffectiveFrom: mustDate("2024-10-01")},
		{Destination: "US", Code: model.SurchargeDisbursement, PercentAmount: mustDecimal("0.021"), Currency: "USD", EffectiveFrom: mustDate("2025-02-01")},
	}}
	r := newTestResolver(nil, nil, nil, sur, nil)

	res := r.ResolveSurcharges(context.Background(), "US", mustDate("2025-06-01"))
	require.Equal(t, StatusOK, res.Meta.Status)
	assert.Len(t, res.Surcharges, 2)
	assert.Equal(t, mustDate("2025-02-01"), *res.Meta.EffectiveFrom)
}

// TestResolver_Deterministic verifies the read-only contract: repeated calls
// against unchanged store state give identical results.
func TestResolver_Deterministic(t *testing.T) {
	duty := &fakeDutyRepo{rows: []model.DutyRate{
		dutyRate("DE", "610910", model.RuleTypeMFN, nil, "0.12", "2025-01-01"),
		dutyRate("DE", "610910", model.RuleTypeFTA, strPtr("KR"), "0.02", "2025-01-01"),
	}}
	r := newTestResolver(duty, nil, nil, nil, nil)
	asOf := mustDate("2025-06-01")

	first := r.ResolveDuty(context.Background(), "KR", "DE", "610910", asOf)
	for i := 0; i < 5; i++ {
		again := r.ResolveDuty(context.Background(), "KR", "DE", "610910", asOf)
		assert.Equal(t, first.Meta.Status, again.Meta.Status)
		assert.True(t, first.Rate.AdValoremRate.Equal(again.Rate.AdValoremRate))
	}
}
