package service

import (
	"context"
	"time"

	"landedcost/internal/model"
	"landedcost/internal/repository"

	"github.com/shopspring/decimal"
)

// volumetricDivisor converts cm³ to chargeable kg for air freight.
var volumetricDivisor = decimal.NewFromInt(5000)

// cubicCmPerM3 converts cm³ to m³ for sea freight.
var cubicCmPerM3 = decimal.NewFromInt(1000000)

// --- DTOs ---

type Dims struct {
	L float64 `json:"l" binding:"required,gt=0"`
	W float64 `json:"w" binding:"required,gt=0"`
	H float64 `json:"h" binding:"required,gt=0"`
}

type FreightCost struct {
	Meta     ResolutionMeta  `json:"meta"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Unit     string          `json:"unit,omitempty"`
}

// --- Interface ---

type FreightService interface {
	// Cost prices a quantity against the mode's tiered card: the first step
	// whose ceiling covers the quantity prices all of it; quantity past the
	// last ceiling is priced at the last step's unit price.
	Cost(ctx context.Context, mode string, quantity decimal.Decimal, asOf time.Time) FreightCost
	// ChargeableQuantity derives the billable quantity from dims and weight:
	// air charges max(actual kg, volumetric kg), sea charges volume in m³.
	ChargeableQuantity(mode string, dims Dims, weightKg decimal.Decimal) decimal.Decimal
}

type freightService struct {
	freightRepo repository.FreightRepository
}

func NewFreightService(freightRepo repository.FreightRepository) FreightService {
	return &freightService{freightRepo: freightRepo}
}

// --- Implementation ---

func (s *freightService) Cost(ctx context.Context, mode string, quantity decimal.Decimal, asOf time.Time) FreightCost {
	meta := ResolutionMeta{Dataset: "freight_cards"}

	card, err := s.freightRepo.FindActiveCard(ctx, mode, asOf)
	if err != nil {
		meta.Status = StatusError
		return FreightCost{Meta: meta, Quantity: quantity}
	}
	if card == nil || len(card.Steps) == 0 {
		meta.Status = StatusNoMatch
		return FreightCost{Meta: meta, Quantity: quantity}
	}

	meta.Status = StatusOK
	meta.EffectiveFrom = &card.EffectiveFrom

	// Steps ascend by ceiling; the clamp to the last step's price for
	// overflow quantity is deliberate and tested, not an accident of
	// iteration order.
	price := card.Steps[len(card.Steps)-1].PricePerUnit
	for _, step := range card.Steps {
		if quantity.LessThanOrEqual(step.UptoQuantity) {
			price = step.PricePerUnit
			break
		}
	}

	return FreightCost{
		Meta:     meta,
		Amount:   price.Mul(quantity),
		Currency: card.Currency,
		Quantity: quantity,
		Unit:     card.Unit,
	}
}

func (s *freightService) ChargeableQuantity(mode string, dims Dims, weightKg decimal.Decimal) decimal.Decimal {
	volumeCm3 := decimal.NewFromFloat(dims.L).
		Mul(decimal.NewFromFloat(dims.W)).
		Mul(decimal.NewFromFloat(dims.H))

	if mode == model.FreightModeSea {
		return volumeCm3.DivRound(cubicCmPerM3, 6)
	}

	volumetricKg := volumeCm3.DivRound(volumetricDivisor, 6)
	if volumetricKg.GreaterThan(weightKg) {
		return volumetricKg
	}
	return weightKg
}
