package service

import (
	"context"
	"sync"
	"time"

	"landedcost/internal/model"
	"landedcost/internal/repository"
	"landedcost/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The fakes below mirror the GORM repositories' contracts in memory so the
// services can be exercised without a database. Candidate ordering matters:
// lookups return newest-inserted rows first, matching the created_at desc
// queries of the real repositories.

// --- transactions ---

type fakeTxManager struct {
	onRollback func()
}

func (m *fakeTxManager) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (m *fakeTxManager) RunInTxRollback(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if m.onRollback != nil {
		m.onRollback()
	}
	return err
}

// --- duty rates ---

type fakeDutyRepo struct {
	rows []model.DutyRate
}

func (r *fakeDutyRepo) Upsert(_ context.Context, rate *model.DutyRate) (repository.UpsertOutcome, error) {
	superseded := false
	for i := range r.rows {
		prior := &r.rows[i]
		if prior.Destination != rate.Destination || prior.HS6 != rate.HS6 || prior.RuleType != rate.RuleType {
			continue
		}
		if !ptrEq(prior.PartnerID, rate.PartnerID) {
			continue
		}
		if prior.EffectiveTo != nil && !prior.EffectiveTo.After(rate.EffectiveFrom) {
			continue
		}
		if windowEq(prior.EffectiveFrom, prior.EffectiveTo, rate.EffectiveFrom, rate.EffectiveTo) &&
			prior.AdValoremRate.Equal(rate.AdValoremRate) &&
			prior.SpecificAmount.Equal(rate.SpecificAmount) {
			return repository.UpsertUnchanged, nil
		}
		if prior.EffectiveFrom.After(rate.EffectiveFrom) {
			if rate.EffectiveTo == nil || rate.EffectiveTo.After(prior.EffectiveFrom) {
				to := prior.EffectiveFrom
				rate.EffectiveTo = &to
			}
			continue
		}
		to := rate.EffectiveFrom
		prior.EffectiveTo = &to
		superseded = true
	}
	rate.ID = uuid.New()
	r.rows = append(r.rows, *rate)
	if superseded {
		return repository.UpsertSuperseded, nil
	}
	return repository.UpsertInserted, nil
}

func (r *fakeDutyRepo) FindCandidates(_ context.Context, dest, hs6 string, asOf time.Time) ([]model.DutyRate, error) {
	var out []model.DutyRate
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if row.Destination == dest && row.HS6 == hs6 && money.WindowContains(row.EffectiveFrom, row.EffectiveTo, asOf) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeDutyRepo) CountByDestination(_ context.Context, dest string) (int64, error) {
	var n int64
	for _, row := range r.rows {
		if row.Destination == dest {
			n++
		}
	}
	return n, nil
}

func (r *fakeDutyRepo) List(_ context.Context, dest, hs6 string, page, limit int) ([]model.DutyRate, int64, error) {
	return r.rows, int64(len(r.rows)), nil
}

// --- vat rules ---

type fakeVatRepo struct {
	rows []model.VatRule
}

func (r *fakeVatRepo) Upsert(_ context.Context, rule *model.VatRule) (repository.UpsertOutcome, error) {
	superseded := false
	for i := range r.rows {
		prior := &r.rows[i]
		if prior.Destination != rule.Destination {
			continue
		}
		if prior.EffectiveTo != nil && !prior.EffectiveTo.After(rule.EffectiveFrom) {
			continue
		}
		if windowEq(prior.EffectiveFrom, prior.EffectiveTo, rule.EffectiveFrom, rule.EffectiveTo) &&
			prior.Rate.Equal(rule.Rate) && prior.Base == rule.Base {
			return repository.UpsertUnchanged, nil
		}
		if prior.EffectiveFrom.After(rule.EffectiveFrom) {
			if rule.EffectiveTo == nil || rule.EffectiveTo.After(prior.EffectiveFrom) {
				to := prior.EffectiveFrom
				rule.EffectiveTo = &to
			}
			continue
		}
		to := rule.EffectiveFrom
		prior.EffectiveTo = &to
		superseded = true
	}
	rule.ID = uuid.New()
	r.rows = append(r.rows, *rule)
	if superseded {
		return repository.UpsertSuperseded, nil
	}
	return repository.UpsertInserted, nil
}

func (r *fakeVatRepo) FindActive(_ context.Context, dest string, asOf time.Time) (*model.VatRule, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if row.Destination == dest && money.WindowContains(row.EffectiveFrom, row.EffectiveTo, asOf) {
			return &row, nil
		}
	}
	return nil, nil
}

func (r *fakeVatRepo) CountByDestination(_ context.Context, dest string) (int64, error) {
	var n int64
	for _, row := range r.rows {
		if row.Destination == dest {
			n++
		}
	}
	return n, nil
}

func (r *fakeVatRepo) List(_ context.Context, dest string, page, limit int) ([]model.VatRule, int64, error) {
	return r.rows, int64(len(r.rows)), nil
}

// --- de-minimis thresholds ---

type fakeDeMinimisRepo struct {
	rows []model.DeMinimisThreshold
}

func (r *fakeDeMinimisRepo) Upsert(_ context.Context, threshold *model.DeMinimisThreshold) (repository.UpsertOutcome, error) {
	threshold.ID = uuid.New()
	r.rows = append(r.rows, *threshold)
	return repository.UpsertInserted, nil
}

func (r *fakeDeMinimisRepo) FindActive(_ context.Context, dest string, asOf time.Time) (*model.DeMinimisThreshold, error) {
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if row.Destination == dest && money.WindowContains(row.EffectiveFrom, row.EffectiveTo, asOf) {
			return &row, nil
		}
	}
	return nil, nil
}

func (r *fakeDeMinimisRepo) CountByDestination(_ context.Context, dest string) (int64, error) {
	var n int64
	for _, row := range r.rows {
		if row.Destination == dest {
			n++
		}
	}
	return n, nil
}

func (r *fakeDeMinimisRepo) List(_ context.Context, dest string, page, limit int) ([]model.DeMinimisThreshold, int64, error) {
	return r.rows, int64(len(r.rows)), nil
}

// --- surcharges ---

type fakeSurchargeRepo struct {
	rows []model.Surcharge
}

func (r *fakeSurchargeRepo) Upsert(_ context.Context, surcharge *model.Surcharge) (repository.UpsertOutcome, error) {
	surcharge.ID = uuid.New()
	r.rows = append(r.rows, *surcharge)
	return repository.UpsertInserted, nil
}

func (r *fakeSurchargeRepo) FindActive(_ context.Context, dest string, asOf time.Time) ([]model.Surcharge, error) {
	var out []model.Surcharge
	for _, row := range r.rows {
		if row.Destination == dest && money.WindowContains(row.EffectiveFrom, row.EffectiveTo, asOf) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *fakeSurchargeRepo) CountByDestination(_ context.Context, dest string) (int64, error) {
	var n int64
	for _, row := range r.rows {
		if row.Destination == dest {
			n++
		}
	}
	return n, nil
}

func (r *fakeSurchargeRepo) List(_ context.Context, dest string, page, limit int) ([]model.Surcharge, int64, error) {
	return r.rows, int64(len(r.rows)), nil
}

// --- fx rates ---

type fakeFxRepo struct {
	rows []model.FxRate
}

func (r *fakeFxRepo) add(base, quote, rate string, asOf time.Time) {
	r.rows = append(r.rows, model.FxRate{
		ID: uuid.New(), Base: base, Quote: quote, Rate: mustDecimal(rate), AsOf: asOf,
	})
}

func (r *fakeFxRepo) Upsert(_ context.Context, rate *model.FxRate) (repository.UpsertOutcome, error) {
	for i := range r.rows {
		prior := &r.rows[i]
		if prior.Base == rate.Base && prior.Quote == rate.Quote && prior.AsOf.Equal(rate.AsOf) {
			if prior.Rate.Equal(rate.Rate) {
				return repository.UpsertUnchanged, nil
			}
			prior.Rate = rate.Rate
			return repository.UpsertSuperseded, nil
		}
	}
	rate.ID = uuid.New()
	r.rows = append(r.rows, *rate)
	return repository.UpsertInserted, nil
}

func (r *fakeFxRepo) FindRate(_ context.Context, base, quote string, asOf *time.Time) (*model.FxRate, error) {
	var best *model.FxRate
	for i := range r.rows {
		row := r.rows[i]
		if row.Base != base || row.Quote != quote {
			continue
		}
		if asOf != nil && row.AsOf.After(*asOf) {
			continue
		}
		if best == nil || row.AsOf.After(best.AsOf) {
			best = &row
		}
	}
	return best, nil
}

func (r *fakeFxRepo) HasPair(_ context.Context, base, quote string) (bool, error) {
	for _, row := range r.rows {
		if row.Base == base && row.Quote == quote {
			return true, nil
		}
	}
	return false, nil
}

// --- freight cards ---

type fakeFreightRepo struct {
	cards []model.FreightCard
}

func (r *fakeFreightRepo) Upsert(_ context.Context, card *model.FreightCard) (repository.UpsertOutcome, error) {
	superseded := false
	for i := range r.cards {
		prior := &r.cards[i]
		if prior.Mode != card.Mode {
			continue
		}
		if prior.EffectiveTo != nil && !prior.EffectiveTo.After(card.EffectiveFrom) {
			continue
		}
		if prior.EffectiveFrom.After(card.EffectiveFrom) {
			if card.EffectiveTo == nil || card.EffectiveTo.After(prior.EffectiveFrom) {
				to := prior.EffectiveFrom
				card.EffectiveTo = &to
			}
			continue
		}
		to := card.EffectiveFrom
		prior.EffectiveTo = &to
		superseded = true
	}
	card.ID = uuid.New()
	r.cards = append(r.cards, *card)
	if superseded {
		return repository.UpsertSuperseded, nil
	}
	return repository.UpsertInserted, nil
}

func (r *fakeFreightRepo) FindActiveCard(_ context.Context, mode string, asOf time.Time) (*model.FreightCard, error) {
	for i := len(r.cards) - 1; i >= 0; i-- {
		card := r.cards[i]
		if card.Mode == mode && money.WindowContains(card.EffectiveFrom, card.EffectiveTo, asOf) {
			return &card, nil
		}
	}
	return nil, nil
}

func (r *fakeFreightRepo) List(_ context.Context, mode string, page, limit int) ([]model.FreightCard, int64, error) {
	return r.cards, int64(len(r.cards)), nil
}

// --- import runs / provenance ---

type fakeImportRepo struct {
	mu         sync.Mutex
	runs       []model.ImportRun
	provenance []model.ProvenanceRecord
}

func (r *fakeImportRepo) CreateRun(_ context.Context, run *model.ImportRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

func (r *fakeImportRepo) FinishRun(_ context.Context, id uuid.UUID, status string, insertedCount int, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.runs {
		if r.runs[i].ID == id {
			now := time.Now().UTC()
			r.runs[i].FinishedAt = &now
			r.runs[i].Status = status
			r.runs[i].InsertedCount = insertedCount
			r.runs[i].Error = errMsg
			return nil
		}
	}
	return nil
}

func (r *fakeImportRepo) ListRuns(_ context.Context, page, limit int) ([]model.ImportRun, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ImportRun(nil), r.runs...), int64(len(r.runs)), nil
}

func (r *fakeImportRepo) CreateProvenance(_ context.Context, records []model.ProvenanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provenance = append(r.provenance, records...)
	return nil
}

func (r *fakeImportRepo) SweepStale(_ context.Context, olderThan time.Time, limit int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var swept int64
	for i := range r.runs {
		if r.runs[i].FinishedAt == nil && r.runs[i].StartedAt.Before(olderThan) {
			now := time.Now().UTC()
			r.runs[i].FinishedAt = &now
			r.runs[i].Status = model.ImportFailed
			r.runs[i].Error = "swept: exceeded stale-run threshold"
			swept++
			if limit > 0 && swept >= int64(limit) {
				break
			}
		}
	}
	return swept, nil
}

func (r *fakeImportRepo) PruneBefore(_ context.Context, cutoff time.Time) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keptProv []model.ProvenanceRecord
	var provDeleted int64
	for _, p := range r.provenance {
		if p.CreatedAt.Before(cutoff) {
			provDeleted++
			continue
		}
		keptProv = append(keptProv, p)
	}
	r.provenance = keptProv

	var keptRuns []model.ImportRun
	var runsDeleted int64
	for _, run := range r.runs {
		if run.FinishedAt != nil && run.StartedAt.Before(cutoff) {
			runsDeleted++
			continue
		}
		keptRuns = append(keptRuns, run)
	}
	r.runs = keptRuns
	return provDeleted, runsDeleted, nil
}

func (r *fakeImportRepo) runByID(id uuid.UUID) *model.ImportRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.runs {
		if r.runs[i].ID == id {
			run := r.runs[i]
			return &run
		}
	}
	return nil
}

// --- job locks ---

type fakeLockRepo struct {
	mu     sync.Mutex
	leases map[string]model.JobLock
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{leases: make(map[string]model.JobLock)}
}

func (r *fakeLockRepo) Acquire(_ context.Context, key string, runID uuid.UUID, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if lease, ok := r.leases[key]; ok && lease.ExpiresAt.After(now) {
		return repository.ErrLockHeld
	}
	r.leases[key] = model.JobLock{Key: key, RunID: runID, AcquiredAt: now, ExpiresAt: now.Add(ttl)}
	return nil
}

func (r *fakeLockRepo) Release(_ context.Context, key string, runID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lease, ok := r.leases[key]; ok && lease.RunID == runID {
		delete(r.leases, key)
	}
	return nil
}

func (r *fakeLockRepo) ReleaseExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for key, lease := range r.leases {
		if !lease.ExpiresAt.After(now) {
			delete(r.leases, key)
			n++
		}
	}
	return n, nil
}

// --- audit log ---

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, page, limit int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.AuditLog(nil), r.entries...), int64(len(r.entries)), nil
}

// --- categories ---

type fakeCategoryRepo struct {
	byKey map[string]model.Category
}

func (r *fakeCategoryRepo) FindByKey(_ context.Context, key string) (*model.Category, error) {
	if c, ok := r.byKey[key]; ok {
		return &c, nil
	}
	return nil, nil
}

func (r *fakeCategoryRepo) List(_ context.Context, page, limit int) ([]model.Category, int64, error) {
	out := make([]model.Category, 0, len(r.byKey))
	for _, c := range r.byKey {
		out = append(out, c)
	}
	return out, int64(len(out)), nil
}

// --- helpers ---

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func windowEq(fromA time.Time, toA *time.Time, fromB time.Time, toB *time.Time) bool {
	if !fromA.Equal(fromB) {
		return false
	}
	if toA == nil || toB == nil {
		return toA == toB
	}
	return toA.Equal(*toB)
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func mustDate(s string) time.Time {
	t, err := money.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}
