package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"landedcost/internal/model"
	"landedcost/internal/repository"
	"landedcost/pkg/money"

	"github.com/shopspring/decimal"
)

var (
	iso2Re     = regexp.MustCompile(`^[A-Z]{2}$`)
	hs6Re      = regexp.MustCompile(`^\d{6}$`)
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
)

// --- DTOs ---

type MoneyInput struct {
	Amount   string `json:"amount" binding:"required"` // decimal string
	Currency string `json:"currency" binding:"required"`
}

type QuoteInput struct {
	Origin         string     `json:"origin" binding:"required"`
	Dest           string     `json:"dest" binding:"required"`
	ItemValue      MoneyInput `json:"item_value" binding:"required"`
	DimsCm         Dims       `json:"dims_cm" binding:"required"`
	WeightKg       float64    `json:"weight_kg" binding:"required,gt=0"`
	CategoryKey    string     `json:"category_key"`
	UserHS6        string     `json:"user_hs6"`
	Mode           string     `json:"mode" binding:"required,oneof=air sea"`
	AsOf           string     `json:"as_of"`           // YYYY-MM-DD, default today
	ResultCurrency string     `json:"result_currency"` // default item currency
}

// QuoteComponent is one line of the landed-cost breakdown. Amount is rounded
// to the result currency's minor unit at presentation; the meta identifies
// which dataset version produced the number.
type QuoteComponent struct {
	Amount string         `json:"amount"`
	Meta   ResolutionMeta `json:"meta"`
	Note   string         `json:"note,omitempty"`
}

type QuoteResult struct {
	Origin     string         `json:"origin"`
	Dest       string         `json:"dest"`
	HS6        string         `json:"hs6"`
	Mode       string         `json:"mode"`
	AsOf       string         `json:"as_of"`
	Currency   string         `json:"currency"`
	ItemValue  QuoteComponent `json:"item_value"`
	Freight    QuoteComponent `json:"freight"`
	Duty       QuoteComponent `json:"duty"`
	Vat        QuoteComponent `json:"vat"`
	Surcharges QuoteComponent `json:"surcharges"`
	DeMinimis  QuoteComponent `json:"de_minimis"`
	Total      string         `json:"total"`
}

// --- Interface ---

// QuoteService composes resolver, FX, and freight lookups into one landed
// cost. It only reads the rate store and never blocks on imports; lookup
// failures surface as component statuses, not request failures.
type QuoteService interface {
	Compute(ctx context.Context, input QuoteInput) (QuoteResult, error)
}

type quoteService struct {
	resolver     ResolverService
	fx           FxService
	freight      FreightService
	categoryRepo repository.CategoryRepository
}

func NewQuoteService(
	resolver ResolverService,
	fx FxService,
	freight FreightService,
	categoryRepo repository.CategoryRepository,
) QuoteService {
	return &quoteService{
		resolver:     resolver,
		fx:           fx,
		freight:      freight,
		categoryRepo: categoryRepo,
	}
}

// --- Implementation ---

func (s *quoteService) Compute(ctx context.Context, input QuoteInput) (QuoteResult, error) {
	if !iso2Re.MatchString(input.Origin) {
		return QuoteResult{}, fmt.Errorf("%w: origin %q", ErrUnknownEntity, input.Origin)
	}
	if !iso2Re.MatchString(input.Dest) {
		return QuoteResult{}, fmt.Errorf("%w: dest %q", ErrUnknownEntity, input.Dest)
	}
	if !currencyRe.MatchString(input.ItemValue.Currency) {
		return QuoteResult{}, fmt.Errorf("%w: currency %q", ErrUnknownEntity, input.ItemValue.Currency)
	}

	itemValue, err := decimal.NewFromString(input.ItemValue.Amount)
	if err != nil || itemValue.IsNegative() {
		return QuoteResult{}, fmt.Errorf("%w: item value %q", ErrUnknownEntity, input.ItemValue.Amount)
	}

	asOf := money.Truncate(time.Now().UTC())
	if input.AsOf != "" {
		asOf, err = money.ParseDate(input.AsOf)
		if err != nil {
			return QuoteResult{}, fmt.Errorf("%w: as_of %q", ErrUnknownEntity, input.AsOf)
		}
	}

	hs6, err := s.resolveHS6(ctx, input)
	if err != nil {
		return QuoteResult{}, err
	}

	resultCurrency := input.ResultCurrency
	if resultCurrency == "" {
		resultCurrency = input.ItemValue.Currency
	} else if !currencyRe.MatchString(resultCurrency) {
		return QuoteResult{}, fmt.Errorf("%w: result currency %q", ErrUnknownEntity, resultCurrency)
	}

	itemCurrency := input.ItemValue.Currency
	weight := decimal.NewFromFloat(input.WeightKg)

	// Freight first: its cost is part of the CIF base everything else
	// builds on.
	quantity := s.freight.ChargeableQuantity(input.Mode, input.DimsCm, weight)
	freightCost := s.freight.Cost(ctx, input.Mode, quantity, asOf)

	freightInItem := decimal.Zero
	freightMeta := freightCost.Meta
	if freightCost.Meta.Status == StatusOK {
		converted, ok, convErr := s.fx.Convert(ctx, freightCost.Amount, freightCost.Currency, itemCurrency, &asOf)
		switch {
		case convErr != nil:
			freightMeta.Status = StatusError
		case !ok:
			freightMeta.Status = StatusNoMatch
		default:
			freightInItem = converted
		}
	}

	// CIF in item currency: goods value plus freight. All intermediate
	// figures stay unrounded; VAT on CIF+duty must use the unrounded duty.
	cif := itemValue.Add(freightInItem)

	dutyRes := s.resolver.ResolveDuty(ctx, input.Origin, input.Dest, hs6, asOf)
	duty := decimal.Zero
	if dutyRes.Meta.Status == StatusOK {
		duty = cif.Mul(dutyRes.Rate.AdValoremRate)
		if !dutyRes.Rate.SpecificAmount.IsZero() && dutyRes.Rate.SpecificUnit == model.FreightUnitKg {
			specific := dutyRes.Rate.SpecificAmount.Mul(weight)
			if converted, ok, convErr := s.fx.Convert(ctx, specific, dutyRes.Rate.Currency, itemCurrency, &asOf); convErr == nil && ok {
				duty = duty.Add(converted)
			}
		}
	}

	// De-minimis: threshold converted into the item currency decides
	// whether duty and/or VAT are waived for low-value shipments.
	deMinimisRes := s.resolver.ResolveDeMinimis(ctx, input.Dest, asOf)
	deMinimisMeta := deMinimisRes.Meta
	dutyWaived, vatWaived := false, false
	deMinimisNote := ""
	if deMinimisRes.Meta.Status == StatusOK {
		threshold, ok, convErr := s.fx.Convert(ctx, deMinimisRes.Threshold.Value, deMinimisRes.Threshold.Currency, itemCurrency, &asOf)
		switch {
		case convErr != nil:
			deMinimisMeta.Status = StatusError
		case !ok:
			deMinimisMeta.Status = StatusNoMatch
		case itemValue.LessThan(threshold):
			switch deMinimisRes.Threshold.AppliesTo {
			case model.DeMinimisDuty:
				dutyWaived = true
				deMinimisNote = "below threshold: duty waived"
			case model.DeMinimisDutyVat:
				dutyWaived, vatWaived = true, true
				deMinimisNote = "below threshold: duty and VAT waived"
			}
		}
	}
	if dutyWaived {
		duty = decimal.Zero
	}

	vatRes := s.resolver.ResolveVat(ctx, input.Dest, asOf)
	vat := decimal.Zero
	if vatRes.Meta.Status == StatusOK && !vatWaived {
		base := cif
		if vatRes.Rule.Base == model.VatBaseCIFPlusDuty {
			base = cif.Add(duty)
		}
		vat = base.Mul(vatRes.Rule.Rate)
	}

	surchargeRes := s.resolver.ResolveSurcharges(ctx, input.Dest, asOf)
	surchargeMeta := surchargeRes.Meta
	surcharges := decimal.Zero
	if surchargeRes.Meta.Status == StatusOK {
		for _, sc := range surchargeRes.Surcharges {
			surcharges = surcharges.Add(cif.Mul(sc.PercentAmount))
			if sc.FixedAmount.IsZero() {
				continue
			}
			fixed, ok, convErr := s.fx.Convert(ctx, sc.FixedAmount, sc.Currency, itemCurrency, &asOf)
			switch {
			case convErr != nil:
				surchargeMeta.Status = StatusError
			case !ok:
				surchargeMeta.Status = StatusNoMatch
			default:
				surcharges = surcharges.Add(fixed)
			}
		}
	}

	// Convert the whole breakdown into the result currency, summing
	// unrounded and rounding per component only at presentation.
	toResult := func(amount decimal.Decimal) (decimal.Decimal, bool) {
		converted, ok, convErr := s.fx.Convert(ctx, amount, itemCurrency, resultCurrency, &asOf)
		if convErr != nil || !ok {
			return decimal.Zero, false
		}
		return converted, true
	}

	itemOut, itemOK := toResult(itemValue)
	freightOut, _ := toResult(freightInItem)
	dutyOut, _ := toResult(duty)
	vatOut, _ := toResult(vat)
	surchargeOut, _ := toResult(surcharges)

	itemMeta := ResolutionMeta{Status: StatusOK}
	if !itemOK {
		itemMeta.Status = StatusNoMatch
	}

	total := itemOut.Add(freightOut).Add(dutyOut).Add(vatOut).Add(surchargeOut)

	render := func(d decimal.Decimal) string {
		return money.RoundMinorUnit(d, resultCurrency).StringFixed(money.MinorUnit(resultCurrency))
	}

	return QuoteResult{
		Origin:     input.Origin,
		Dest:       input.Dest,
		HS6:        hs6,
		Mode:       input.Mode,
		AsOf:       asOf.Format(money.DateLayout),
		Currency:   resultCurrency,
		ItemValue:  QuoteComponent{Amount: render(itemOut), Meta: itemMeta},
		Freight:    QuoteComponent{Amount: render(freightOut), Meta: freightMeta},
		Duty:       QuoteComponent{Amount: render(dutyOut), Meta: dutyRes.Meta},
		Vat:        QuoteComponent{Amount: render(vatOut), Meta: vatRes.Meta},
		Surcharges: QuoteComponent{Amount: render(surchargeOut), Meta: surchargeMeta},
		DeMinimis:  QuoteComponent{Amount: render(decimal.Zero), Meta: deMinimisMeta, Note: deMinimisNote},
		Total:      render(total),
	}, nil
}

// resolveHS6 prefers the caller's explicit code, falling back to the
// category's default classification.
func (s *quoteService) resolveHS6(ctx context.Context, input QuoteInput) (string, error) {
	if input.UserHS6 != "" {
		if !hs6Re.MatchString(input.UserHS6) {
			return "", fmt.Errorf("%w: hs6 %q", ErrUnknownEntity, input.UserHS6)
		}
		return input.UserHS6, nil
	}
	if input.CategoryKey == "" {
		return "", fmt.Errorf("%w: neither hs6 nor category supplied", ErrUnknownEntity)
	}
	category, err := s.categoryRepo.FindByKey(ctx, input.CategoryKey)
	if err != nil {
		return "", fmt.Errorf("failed to look up category: %w", err)
	}
	if category == nil {
		return "", fmt.Errorf("%w: category %q", ErrUnknownEntity, input.CategoryKey)
	}
	return category.DefaultHS6, nil
}
