package service

import (
	"context"
	"log"
	"time"

	"landedcost/internal/model"
	"landedcost/internal/repository"
)

// --- DTOs ---

type DutyResolution struct {
	Meta ResolutionMeta  `json:"meta"`
	Rate *model.DutyRate `json:"rate,omitempty"`
}

type VatResolution struct {
	Meta ResolutionMeta `json:"meta"`
	Rule *model.VatRule `json:"rule,omitempty"`
}

type DeMinimisResolution struct {
	Meta      ResolutionMeta            `json:"meta"`
	Threshold *model.DeMinimisThreshold `json:"threshold,omitempty"`
}

type SurchargeResolution struct {
	Meta       ResolutionMeta    `json:"meta"`
	Surcharges []model.Surcharge `json:"surcharges,omitempty"`
}

// --- Interface ---

// ResolverService selects the single applicable rate among overlapping
// candidates at a point in time. It is a pure read-only consumer of the rate
// store: identical inputs against identical store state resolve identically.
type ResolverService interface {
	ResolveDuty(ctx context.Context, origin, dest, hs6 string, asOf time.Time) DutyResolution
	ResolveVat(ctx context.Context, dest string, asOf time.Time) VatResolution
	ResolveDeMinimis(ctx context.Context, dest string, asOf time.Time) DeMinimisResolution
	ResolveSurcharges(ctx context.Context, dest string, asOf time.Time) SurchargeResolution
}

type resolverService struct {
	dutyRepo      repository.DutyRateRepository
	vatRepo       repository.VatRuleRepository
	deMinimisRepo repository.DeMinimisRepository
	surchargeRepo repository.SurchargeRepository
	excluded      map[string]bool // destinations out of computable scope
}

func NewResolverService(
	dutyRepo repository.DutyRateRepository,
	vatRepo repository.VatRuleRepository,
	deMinimisRepo repository.DeMinimisRepository,
	surchargeRepo repository.SurchargeRepository,
	excludedDestinations []string,
) ResolverService {
	excluded := make(map[string]bool, len(excludedDestinations))
	for _, d := range excludedDestinations {
		excluded[d] = true
	}
	return &resolverService{
		dutyRepo:      dutyRepo,
		vatRepo:       vatRepo,
		deMinimisRepo: deMinimisRepo,
		surchargeRepo: surchargeRepo,
		excluded:      excluded,
	}
}

// --- Implementation ---

// ResolveDuty filters candidates whose window contains asOf, keeps FTA rows
// only when their partner matches the shipment origin, and picks the lowest
// effective ad-valorem rate. A preferential rate is never assumed cheaper
// than MFN; both compete on value. Exact ties fall to the newest record.
func (s *resolverService) ResolveDuty(ctx context.Context, origin, dest, hs6 string, asOf time.Time) DutyResolution {
	meta := ResolutionMeta{Dataset: "duty_rates"}

	if s.excluded[dest] {
		meta.Status = StatusOutOfScope
		return DutyResolution{Meta: meta}
	}

	candidates, err := s.dutyRepo.FindCandidates(ctx, dest, hs6, asOf)
	if err != nil {
		log.Printf("WARNING: duty candidate lookup failed for %s/%s: %v", dest, hs6, err)
		meta.Status = StatusError
		return DutyResolution{Meta: meta}
	}

	var winner *model.DutyRate
	for i := range candidates {
		c := &candidates[i]
		if c.RuleType == model.RuleTypeFTA {
			if c.PartnerID == nil || *c.PartnerID != origin {
				continue
			}
		}
		// Candidates arrive newest-first, so on an exact rate tie the
		// earlier-seen (most recently created) record is kept.
		if winner == nil || c.AdValoremRate.LessThan(winner.AdValoremRate) {
			winner = c
		}
	}

	if winner == nil {
		return DutyResolution{Meta: s.missStatus(meta, func() (int64, error) {
			return s.dutyRepo.CountByDestination(ctx, dest)
		})}
	}

	meta.Status = StatusOK
	meta.EffectiveFrom = &winner.EffectiveFrom
	return DutyResolution{Meta: meta, Rate: winner}
}

func (s *resolverService) ResolveVat(ctx context.Context, dest string, asOf time.Time) VatResolution {
	meta := ResolutionMeta{Dataset: "vat_rules"}

	if s.excluded[dest] {
		meta.Status = StatusOutOfScope
		return VatResolution{Meta: meta}
	}

	rule, err := s.vatRepo.FindActive(ctx, dest, asOf)
	if err != nil {
		log.Printf("WARNING: vat rule lookup failed for %s: %v", dest, err)
		meta.Status = StatusError
		return VatResolution{Meta: meta}
	}
	if rule == nil {
		return VatResolution{Meta: s.missStatus(meta, func() (int64, error) {
			return s.vatRepo.CountByDestination(ctx, dest)
		})}
	}

	meta.Status = StatusOK
	meta.EffectiveFrom = &rule.EffectiveFrom
	return VatResolution{Meta: meta, Rule: rule}
}

func (s *resolverService) ResolveDeMinimis(ctx context.Context, dest string, asOf time.Time) DeMinimisResolution {
	meta := ResolutionMeta{Dataset: "de_minimis_thresholds"}

	if s.excluded[dest] {
		meta.Status = StatusOutOfScope
		return DeMinimisResolution{Meta: meta}
	}

	threshold, err := s.deMinimisRepo.FindActive(ctx, dest, asOf)
	if err != nil {
		log.Printf("WARNING: de minimis lookup failed for %s: %v", dest, err)
		meta.Status = StatusError
		return DeMinimisResolution{Meta: meta}
	}
	if threshold == nil {
		return DeMinimisResolution{Meta: s.missStatus(meta, func() (int64, error) {
			return s.deMinimisRepo.CountByDestination(ctx, dest)
		})}
	}

	meta.Status = StatusOK
	meta.EffectiveFrom = &threshold.EffectiveFrom
	return DeMinimisResolution{Meta: meta, Threshold: threshold}
}

// ResolveSurcharges aggregates every currently-active surcharge for the
// destination rather than picking one; callers sum them.
func (s *resolverService) ResolveSurcharges(ctx context.Context, dest string, asOf time.Time) SurchargeResolution {
	meta := ResolutionMeta{Dataset: "surcharges"}

	if s.excluded[dest] {
		meta.Status = StatusOutOfScope
		return SurchargeResolution{Meta: meta}
	}

	surcharges, err := s.surchargeRepo.FindActive(ctx, dest, asOf)
	if err != nil {
		log.Printf("WARNING: surcharge lookup failed for %s: %v", dest, err)
		meta.Status = StatusError
		return SurchargeResolution{Meta: meta}
	}
	if len(surcharges) == 0 {
		return SurchargeResolution{Meta: s.missStatus(meta, func() (int64, error) {
			return s.surchargeRepo.CountByDestination(ctx, dest)
		})}
	}

	meta.Status = StatusOK
	for i := range surcharges {
		f := surcharges[i].EffectiveFrom
		if meta.EffectiveFrom == nil || f.After(*meta.EffectiveFrom) {
			meta.EffectiveFrom = &f
		}
	}
	return SurchargeResolution{Meta: meta, Surcharges: surcharges}
}

// missStatus distinguishes "no dataset for this destination at all" from
// "dataset exists but no row matches".
func (s *resolverService) missStatus(meta ResolutionMeta, count func() (int64, error)) ResolutionMeta {
	n, err := count()
	if err != nil {
		log.Printf("WARNING: %s destination count failed: %v", meta.Dataset, err)
		meta.Status = StatusError
		return meta
	}
	if n == 0 {
		meta.Status = StatusNoDataset
	} else {
		meta.Status = StatusNoMatch
	}
	return meta
}
