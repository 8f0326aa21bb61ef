package ingest

import (
	"fmt"
	"sort"
	"time"

	"landedcost/internal/model"
	"landedcost/pkg/money"

	"github.com/shopspring/decimal"
)

// Record is one canonical, effective-dated row ready for upsert. Exactly one
// entity pointer is set, matching Kind. SourceURL and Hash feed provenance.
type Record struct {
	Kind      Kind
	SourceURL string
	Hash      string

	Duty      *model.DutyRate
	Vat       *model.VatRule
	DeMinimis *model.DeMinimisThreshold
	Surcharge *model.Surcharge
	Fx        *model.FxRate
	Freight   *model.FreightCard
}

// Normalize maps raw rows to canonical records. Rows failing validation are
// dropped and reported; only a zero surviving-row count is fatal, and that is
// the caller's call to make.
func Normalize(rows []RawRow) ([]Record, []RowError) {
	var records []Record
	var dropped []RowError
	freightRows := make(map[string][]freightStepRow) // grouped into cards below

	for i, row := range rows {
		var rec *Record
		var err error

		switch row.Kind {
		case KindDuty:
			rec, err = normalizeDuty(row)
		case KindVat:
			rec, err = normalizeVat(row)
		case KindDeMinimis:
			rec, err = normalizeDeMinimis(row)
		case KindSurcharge:
			rec, err = normalizeSurcharge(row)
		case KindFx:
			rec, err = normalizeFx(row)
		case KindFreight:
			err = collectFreight(row, i, freightRows)
		default:
			err = fmt.Errorf("unknown row kind %q", row.Kind)
		}

		if err != nil {
			dropped = append(dropped, RowError{Index: i, Reason: err.Error()})
			continue
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}

	cards, cardErrs := buildFreightCards(freightRows)
	records = append(records, cards...)
	dropped = append(dropped, cardErrs...)

	return records, dropped
}

func parseWindow(fromStr, toStr string) (time.Time, *time.Time, error) {
	from, err := money.ParseDate(fromStr)
	if err != nil {
		return time.Time{}, nil, err
	}
	to, err := money.ParseDatePtr(toStr)
	if err != nil {
		return time.Time{}, nil, err
	}
	if to != nil && !from.Before(*to) {
		return time.Time{}, nil, fmt.Errorf("effective_from %s must precede effective_to %s", fromStr, toStr)
	}
	return from, to, nil
}

func normalizeDuty(row RawRow) (*Record, error) {
	d := row.Duty
	if d == nil {
		return nil, fmt.Errorf("duty row payload missing")
	}
	if !iso2Re.MatchString(d.Destination) {
		return nil, fmt.Errorf("invalid destination %q", d.Destination)
	}
	if !hs6Re.MatchString(d.HS6) {
		return nil, fmt.Errorf("invalid hs6 %q", d.HS6)
	}
	switch d.RuleType {
	case model.RuleTypeMFN, model.RuleTypeOther:
		if d.PartnerID != "" {
			return nil, fmt.Errorf("partner_id set on %s row", d.RuleType)
		}
	case model.RuleTypeFTA:
		if d.PartnerID == "" {
			return nil, fmt.Errorf("FTA row requires partner_id")
		}
	default:
		return nil, fmt.Errorf("invalid rule_type %q", d.RuleType)
	}
	percent, err := parseNonNegative("ad_valorem_percent", d.AdValoremPercent)
	if err != nil {
		return nil, err
	}
	specific, err := parseNonNegative("specific_amount", d.SpecificAmount)
	if err != nil {
		return nil, err
	}
	if !specific.IsZero() && !currencyRe.MatchString(d.Currency) {
		return nil, fmt.Errorf("specific component requires a currency, got %q", d.Currency)
	}
	from, to, err := parseWindow(d.EffectiveFrom, d.EffectiveTo)
	if err != nil {
		return nil, err
	}

	var partner *string
	if d.PartnerID != "" {
		p := d.PartnerID
		partner = &p
	}

	return &Record{
		Kind:      KindDuty,
		SourceURL: d.SourceURL,
		Hash:      rowHash(row),
		Duty: &model.DutyRate{
			Destination:    d.Destination,
			PartnerID:      partner,
			HS6:            d.HS6,
			RuleType:       d.RuleType,
			AdValoremRate:  money.PercentToFraction(percent),
			SpecificAmount: specific,
			SpecificUnit:   d.SpecificUnit,
			Currency:       d.Currency,
			EffectiveFrom:  from,
			EffectiveTo:    to,
		},
	}, nil
}

func normalizeVat(row RawRow) (*Record, error) {
	v := row.Vat
	if v == nil {
		return nil, fmt.Errorf("vat row payload missing")
	}
	if !iso2Re.MatchString(v.Destination) {
		return nil, fmt.Errorf("invalid destination %q", v.Destination)
	}
	if v.Base != model.VatBaseCIF && v.Base != model.VatBaseCIFPlusDuty {
		return nil, fmt.Errorf("invalid vat base %q", v.Base)
	}
	percent, err := parseNonNegative("rate_percent", v.RatePercent)
	if err != nil {
		return nil, err
	}
	from, to, err := parseWindow(v.EffectiveFrom, v.EffectiveTo)
	if err != nil {
		return nil, err
	}

	return &Record{
		Kind:      KindVat,
		SourceURL: v.SourceURL,
		Hash:      rowHash(row),
		Vat: &model.VatRule{
			Destination:   v.Destination,
			Rate:          money.PercentToFraction(percent),
			Base:          v.Base,
			EffectiveFrom: from,
			EffectiveTo:   to,
		},
	}, nil
}

func normalizeDeMinimis(row RawRow) (*Record, error) {
	d := row.DeMinimis
	if d == nil {
		return nil, fmt.Errorf("de_minimis row payload missing")
	}
	if !iso2Re.MatchString(d.Destination) {
		return nil, fmt.Errorf("invalid destination %q", d.Destination)
	}
	if !currencyRe.MatchString(d.Currency) {
		return nil, fmt.Errorf("invalid currency %q", d.Currency)
	}
	switch d.AppliesTo {
	case model.DeMinimisDuty, model.DeMinimisDutyVat, model.DeMinimisNone:
	default:
		return nil, fmt.Errorf("invalid applies_to %q", d.AppliesTo)
	}
	value, err := parseNonNegative("value", d.Value)
	if err != nil {
		return nil, err
	}
	from, to, err := parseWindow(d.EffectiveFrom, d.EffectiveTo)
	if err != nil {
		return nil, err
	}

	return &Record{
		Kind:      KindDeMinimis,
		SourceURL: d.SourceURL,
		Hash:      rowHash(row),
		DeMinimis: &model.DeMinimisThreshold{
			Destination:   d.Destination,
			Currency:      d.Currency,
			Value:         value,
			AppliesTo:     d.AppliesTo,
			EffectiveFrom: from,
			EffectiveTo:   to,
		},
	}, nil
}

func normalizeSurcharge(row RawRow) (*Record, error) {
	s := row.Surcharge
	if s == nil {
		return nil, fmt.Errorf("surcharge row payload missing")
	}
	if !iso2Re.MatchString(s.Destination) {
		return nil, fmt.Errorf("invalid destination %q", s.Destination)
	}
	switch s.Code {
	case model.SurchargeCustomsProcessing, model.SurchargeDisbursement,
		model.SurchargeExcise, model.SurchargeHandling:
	default:
		return nil, fmt.Errorf("invalid surcharge code %q", s.Code)
	}
	if !currencyRe.MatchString(s.Currency) {
		return nil, fmt.Errorf("invalid currency %q", s.Currency)
	}
	fixed, err := parseNonNegative("fixed_amount", s.FixedAmount)
	if err != nil {
		return nil, err
	}
	percent, err := parseNonNegative("percent_amount", s.PercentAmount)
	if err != nil {
		return nil, err
	}
	if fixed.IsZero() && percent.IsZero() {
		return nil, fmt.Errorf("surcharge requires a fixed or percent component")
	}
	from, to, err := parseWindow(s.EffectiveFrom, s.EffectiveTo)
	if err != nil {
		return nil, err
	}

	return &Record{
		Kind:      KindSurcharge,
		SourceURL: s.SourceURL,
		Hash:      rowHash(row),
		Surcharge: &model.Surcharge{
			Destination:   s.Destination,
			Code:          s.Code,
			FixedAmount:   fixed,
			PercentAmount: money.PercentToFraction(percent),
			Currency:      s.Currency,
			EffectiveFrom: from,
			EffectiveTo:   to,
		},
	}, nil
}

func normalizeFx(row RawRow) (*Record, error) {
	f := row.Fx
	if f == nil {
		return nil, fmt.Errorf("fx row payload missing")
	}
	if !currencyRe.MatchString(f.Base) {
		return nil, fmt.Errorf("invalid base currency %q", f.Base)
	}
	if !currencyRe.MatchString(f.Quote) {
		return nil, fmt.Errorf("invalid quote currency %q", f.Quote)
	}
	if f.Base == f.Quote {
		return nil, fmt.Errorf("base and quote must differ")
	}
	rate, err := decimal.NewFromString(f.Rate)
	if err != nil || !rate.IsPositive() {
		return nil, fmt.Errorf("invalid rate %q", f.Rate)
	}
	asOf, err := money.ParseDate(f.AsOf)
	if err != nil {
		return nil, err
	}

	return &Record{
		Kind:      KindFx,
		SourceURL: f.SourceURL,
		Hash:      rowHash(row),
		Fx: &model.FxRate{
			Base:  f.Base,
			Quote: f.Quote,
			Rate:  rate,
			AsOf:  asOf,
		},
	}, nil
}

type freightStepRow struct {
	index int
	row   RawRow
	upto  decimal.Decimal
	price decimal.Decimal
}

func collectFreight(row RawRow, index int, groups map[string][]freightStepRow) error {
	f := row.Freight
	if f == nil {
		return fmt.Errorf("freight row payload missing")
	}
	if f.Mode != model.FreightModeAir && f.Mode != model.FreightModeSea {
		return fmt.Errorf("invalid freight mode %q", f.Mode)
	}
	if f.Unit != model.FreightUnitKg && f.Unit != model.FreightUnitM3 {
		return fmt.Errorf("invalid freight unit %q", f.Unit)
	}
	if !currencyRe.MatchString(f.Currency) {
		return fmt.Errorf("invalid currency %q", f.Currency)
	}
	upto, err := parseNonNegative("upto_quantity", f.UptoQuantity)
	if err != nil {
		return err
	}
	if upto.IsZero() {
		return fmt.Errorf("upto_quantity must be > 0")
	}
	price, err := parseNonNegative("price_per_unit", f.PricePerUnit)
	if err != nil {
		return err
	}
	if _, _, err := parseWindow(f.EffectiveFrom, f.EffectiveTo); err != nil {
		return err
	}

	key := f.Mode + "|" + f.Unit + "|" + f.Currency + "|" + f.EffectiveFrom + "|" + f.EffectiveTo
	groups[key] = append(groups[key], freightStepRow{index: index, row: row, upto: upto, price: price})
	return nil
}

// buildFreightCards folds grouped step rows into one card per
// (mode, unit, currency, window), steps ascending by ceiling.
func buildFreightCards(groups map[string][]freightStepRow) ([]Record, []RowError) {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic card order across imports

	var records []Record
	var dropped []RowError
	for _, key := range keys {
		steps := groups[key]
		sort.Slice(steps, func(i, j int) bool { return steps[i].upto.LessThan(steps[j].upto) })

		first := steps[0].row.Freight
		from, to, err := parseWindow(first.EffectiveFrom, first.EffectiveTo)
		if err != nil {
			dropped = append(dropped, RowError{Index: steps[0].index, Reason: err.Error()})
			continue
		}

		card := &model.FreightCard{
			Mode:          first.Mode,
			Unit:          first.Unit,
			Currency:      first.Currency,
			EffectiveFrom: from,
			EffectiveTo:   to,
		}
		for pos, s := range steps {
			if pos > 0 && s.upto.Equal(steps[pos-1].upto) {
				dropped = append(dropped, RowError{Index: s.index, Reason: fmt.Sprintf("duplicate step ceiling %s", s.upto)})
				continue
			}
			card.Steps = append(card.Steps, model.FreightStep{
				Position:     len(card.Steps),
				UptoQuantity: s.upto,
				PricePerUnit: s.price,
			})
		}

		records = append(records, Record{
			Kind:      KindFreight,
			SourceURL: first.SourceURL,
			Hash:      rowHash(steps[0].row),
			Freight:   card,
		})
	}
	return records, dropped
}
