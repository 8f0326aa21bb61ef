package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"landedcost/internal/ingest"
	"landedcost/internal/model"
	"landedcost/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// fxRateScale bounds derived rates (reciprocals, cross-rates) so repeated
// conversions of the same historical date stay deterministic.
const fxRateScale = 10

// --- Source contract ---

// FxFetch is one daily observation set from an external rate source.
type FxFetch struct {
	Base      string
	AsOf      time.Time
	Rates     map[string]decimal.Decimal // quote currency -> rate
	SourceURL string
}

// FxSource is an external exchange-rate feed. Implementations live with the
// fetch adapters; this core only consumes their normalized output.
type FxSource interface {
	Name() string
	Fetch(ctx context.Context) (FxFetch, error)
}

// --- DTOs ---

type FxRefreshResult struct {
	Base     string    `json:"base"`
	FxAsOf   time.Time `json:"fx_as_of"`
	Inserted int       `json:"inserted"`
}

// --- Interface ---

type FxService interface {
	// Rate returns the applicable rate for base->quote at asOf (nil = most
	// recent overall), or nil when no chain resolves it.
	Rate(ctx context.Context, base, quote string, asOf *time.Time) (*decimal.Decimal, error)
	// Convert converts an amount between currencies at asOf; ok is false
	// when no rate chain resolves the pair.
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf *time.Time) (decimal.Decimal, bool, error)
	// Refresh ingests the primary daily feed and fills missing cross-rates
	// from the secondary source. A primary failure propagates; a secondary
	// failure is partial success and still reports the primary insert count.
	Refresh(ctx context.Context) (FxRefreshResult, error)
}

type fxService struct {
	fxRepo        repository.FxRateRepository
	importRepo    repository.ImportRepository
	importService ImportService
	primary       FxSource
	secondary     FxSource // optional
	pivot         string   // cross-rate pivot currency, e.g. USD
}

func NewFxService(
	fxRepo repository.FxRateRepository,
	importRepo repository.ImportRepository,
	importService ImportService,
	primary FxSource,
	secondary FxSource,
	pivot string,
) FxService {
	if pivot == "" {
		pivot = "USD"
	}
	return &fxService{
		fxRepo:        fxRepo,
		importRepo:    importRepo,
		importService: importService,
		primary:       primary,
		secondary:     secondary,
		pivot:         pivot,
	}
}

// --- Implementation ---

// Rate resolves via fallback chaining: direct pair, then the reciprocal of
// the inverse pair, then two legs through the pivot currency.
func (s *fxService) Rate(ctx context.Context, base, quote string, asOf *time.Time) (*decimal.Decimal, error) {
	if base == quote {
		one := decimal.NewFromInt(1)
		return &one, nil
	}

	direct, err := s.fxRepo.FindRate(ctx, base, quote, asOf)
	if err != nil {
		return nil, fmt.Errorf("fx lookup %s/%s: %w", base, quote, err)
	}
	if direct != nil {
		r := direct.Rate
		return &r, nil
	}

	inverse, err := s.fxRepo.FindRate(ctx, quote, base, asOf)
	if err != nil {
		return nil, fmt.Errorf("fx lookup %s/%s: %w", quote, base, err)
	}
	if inverse != nil && inverse.Rate.IsPositive() {
		r := decimal.NewFromInt(1).DivRound(inverse.Rate, fxRateScale)
		return &r, nil
	}

	if base != s.pivot && quote != s.pivot {
		toPivot, err := s.Rate(ctx, base, s.pivot, asOf)
		if err != nil {
			return nil, err
		}
		fromPivot, err := s.Rate(ctx, s.pivot, quote, asOf)
		if err != nil {
			return nil, err
		}
		if toPivot != nil && fromPivot != nil {
			r := toPivot.Mul(*fromPivot).Round(fxRateScale)
			return &r, nil
		}
	}

	return nil, nil
}

func (s *fxService) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf *time.Time) (decimal.Decimal, bool, error) {
	rate, err := s.Rate(ctx, from, to, asOf)
	if err != nil {
		return decimal.Zero, false, err
	}
	if rate == nil {
		return decimal.Zero, false, nil
	}
	return amount.Mul(*rate), true, nil
}

func (s *fxService) Refresh(ctx context.Context) (FxRefreshResult, error) {
	fetch, err := s.primary.Fetch(ctx)
	if err != nil {
		// Record a failed run so the scheduler's retry policy sees it.
		s.recordFailedFetch(ctx, s.primary.Name(), err)
		return FxRefreshResult{}, fmt.Errorf("%w: primary source %s: %v", ErrUpstreamFetch, s.primary.Name(), err)
	}

	rows := fetchToRows(fetch)
	result, err := s.importService.Run(ctx, ImportRequest{
		Source: s.primary.Name(),
		Job:    "fx:daily",
		Rows:   rows,
	})
	if err != nil {
		return FxRefreshResult{}, err
	}
	inserted := result.Inserted + result.Superseded

	if s.secondary != nil {
		if n, err := s.fillCrossRates(ctx, fetch); err != nil {
			// Partial success: the primary's inserts stand.
			log.Printf("WARNING: secondary fx source %s failed: %v", s.secondary.Name(), err)
		} else {
			inserted += n
		}
	}

	return FxRefreshResult{Base: fetch.Base, FxAsOf: fetch.AsOf, Inserted: inserted}, nil
}

// fillCrossRates imports secondary-source pairs the store has never seen.
func (s *fxService) fillCrossRates(ctx context.Context, primary FxFetch) (int, error) {
	fetch, err := s.secondary.Fetch(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUpstreamFetch, err)
	}

	var rows []ingest.RawRow
	for quote, rate := range fetch.Rates {
		if quote == fetch.Base {
			continue
		}
		if _, seen := primary.Rates[quote]; seen && fetch.Base == primary.Base {
			continue
		}
		has, err := s.fxRepo.HasPair(ctx, fetch.Base, quote)
		if err != nil {
			return 0, err
		}
		if has {
			continue
		}
		rows = append(rows, ingest.RawRow{Kind: ingest.KindFx, Fx: &ingest.FxRow{
			Base:      fetch.Base,
			Quote:     quote,
			Rate:      rate.String(),
			AsOf:      fetch.AsOf.Format("2006-01-02"),
			SourceURL: fetch.SourceURL,
		}})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	result, err := s.importService.Run(ctx, ImportRequest{
		Source: s.secondary.Name(),
		Job:    "fx:cross",
		Rows:   rows,
	})
	if err != nil {
		return 0, err
	}
	return result.Inserted + result.Superseded, nil
}

func (s *fxService) recordFailedFetch(ctx context.Context, source string, fetchErr error) {
	run := &model.ImportRun{
		ID:        uuid.New(),
		Source:    source,
		Job:       "fx:daily",
		StartedAt: time.Now().UTC(),
		Status:    model.ImportRunning,
	}
	if err := s.importRepo.CreateRun(ctx, run); err != nil {
		log.Printf("WARNING: failed to record failed fx fetch: %v", err)
		return
	}
	if err := s.importRepo.FinishRun(ctx, run.ID, model.ImportFailed, 0, fetchErr.Error()); err != nil {
		log.Printf("WARNING: failed to finish failed fx fetch run: %v", err)
	}
}

func fetchToRows(fetch FxFetch) []ingest.RawRow {
	rows := make([]ingest.RawRow, 0, len(fetch.Rates))
	for quote, rate := range fetch.Rates {
		if quote == fetch.Base {
			continue
		}
		rows = append(rows, ingest.RawRow{Kind: ingest.KindFx, Fx: &ingest.FxRow{
			Base:      fetch.Base,
			Quote:     quote,
			Rate:      rate.String(),
			AsOf:      fetch.AsOf.Format("2006-01-02"),
			SourceURL: fetch.SourceURL,
		}})
	}
	return rows
}
