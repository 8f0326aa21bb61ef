package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"landedcost/internal/ingest"
	"landedcost/internal/model"
	"landedcost/internal/repository"

	"github.com/google/uuid"
)

const (
	DefaultBatchSize = 5000
	defaultLockTTL   = 30 * time.Minute
)

// --- DTOs ---

type ImportRequest struct {
	Source    string
	Job       string
	Rows      []ingest.RawRow
	BatchSize int        // 0 = DefaultBatchSize
	ImportID  *uuid.UUID // optional externally supplied run id
	DryRun    bool
}

type ImportResult struct {
	ImportRunID uuid.UUID         `json:"import_run_id"`
	Inserted    int               `json:"inserted"`
	Superseded  int               `json:"superseded"`
	Unchanged   int               `json:"unchanged"`
	Dropped     []ingest.RowError `json:"dropped,omitempty"`
	DryRun      bool              `json:"dry_run"`
}

// ImportNotifier pushes import-run lifecycle events to connected observers.
type ImportNotifier interface {
	BroadcastImportEvent(event interface{})
}

type importEvent struct {
	Type        string `json:"type"` // import_started, import_finished
	ImportRunID string `json:"import_run_id"`
	Source      string `json:"source"`
	Job         string `json:"job"`
	Status      string `json:"status,omitempty"`
	Inserted    int    `json:"inserted,omitempty"`
}

// --- Interface ---

// ImportService is the fetch-agnostic ingestion pipeline: normalize,
// validate, batch-upsert with supersession, record provenance, all under a
// named per-job lock.
type ImportService interface {
	Run(ctx context.Context, req ImportRequest) (ImportResult, error)
	ListRuns(ctx context.Context, page, limit int) ([]model.ImportRun, int64, error)
}

type importService struct {
	dutyRepo      repository.DutyRateRepository
	vatRepo       repository.VatRuleRepository
	deMinimisRepo repository.DeMinimisRepository
	surchargeRepo repository.SurchargeRepository
	fxRepo        repository.FxRateRepository
	freightRepo   repository.FreightRepository
	importRepo    repository.ImportRepository
	lockRepo      repository.LockRepository
	auditRepo     repository.AuditRepository
	txManager     repository.TransactionManager
	notifier      ImportNotifier
	batchSize     int
	lockTTL       time.Duration
}

func NewImportService(
	dutyRepo repository.DutyRateRepository,
	vatRepo repository.VatRuleRepository,
	deMinimisRepo repository.DeMinimisRepository,
	surchargeRepo repository.SurchargeRepository,
	fxRepo repository.FxRateRepository,
	freightRepo repository.FreightRepository,
	importRepo repository.ImportRepository,
	lockRepo repository.LockRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier ImportNotifier,
	batchSize int,
) ImportService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &importService{
		dutyRepo:      dutyRepo,
		vatRepo:       vatRepo,
		deMinimisRepo: deMinimisRepo,
		surchargeRepo: surchargeRepo,
		fxRepo:        fxRepo,
		freightRepo:   freightRepo,
		importRepo:    importRepo,
		lockRepo:      lockRepo,
		auditRepo:     auditRepo,
		txManager:     txManager,
		notifier:      notifier,
		batchSize:     batchSize,
		lockTTL:       defaultLockTTL,
	}
}

// --- Implementation ---

func (s *importService) Run(ctx context.Context, req ImportRequest) (ImportResult, error) {
	records, dropped := ingest.Normalize(req.Rows)
	if len(records) == 0 {
		// Hard precondition: a no-op import must not proceed silently.
		return ImportResult{}, fmt.Errorf("%w (source %s, %d rows dropped)", ErrEmptySource, req.Source, len(dropped))
	}

	runID := uuid.New()
	if req.ImportID != nil {
		runID = *req.ImportID
	}

	lockKey := "import:" + req.Job
	if err := s.lockRepo.Acquire(ctx, lockKey, runID, s.lockTTL); err != nil {
		if errors.Is(err, repository.ErrLockHeld) {
			return ImportResult{}, fmt.Errorf("%w: job %q", ErrImportAlreadyRunning, req.Job)
		}
		return ImportResult{}, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	// Released on every exit path; the lease TTL plus the stale-run sweeper
	// covers a holder that dies before reaching this.
	defer func() {
		if err := s.lockRepo.Release(ctx, lockKey, runID); err != nil {
			log.Printf("WARNING: failed to release job lock %s: %v", lockKey, err)
		}
	}()

	if req.DryRun {
		return s.dryRun(ctx, req, runID, records, dropped)
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}

	run := &model.ImportRun{
		ID:        runID,
		Source:    req.Source,
		Job:       req.Job,
		Params:    marshalParams(req, batchSize),
		StartedAt: time.Now().UTC(),
		Status:    model.ImportRunning,
	}
	if err := s.importRepo.CreateRun(ctx, run); err != nil {
		return ImportResult{}, fmt.Errorf("failed to create import run: %w", err)
	}
	s.notify(importEvent{Type: "import_started", ImportRunID: runID.String(), Source: req.Source, Job: req.Job})

	result := ImportResult{ImportRunID: runID, Dropped: dropped}
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			return s.applyBatch(txCtx, runID, batch, &result)
		})
		if err != nil {
			msg := err.Error()
			if ferr := s.importRepo.FinishRun(ctx, runID, model.ImportFailed, result.Inserted+result.Superseded, msg); ferr != nil {
				log.Printf("WARNING: failed to finish import run %s: %v", runID, ferr)
			}
			s.notify(importEvent{Type: "import_finished", ImportRunID: runID.String(), Source: req.Source, Job: req.Job, Status: model.ImportFailed})
			return result, fmt.Errorf("import batch failed: %w", err)
		}
	}

	written := result.Inserted + result.Superseded
	if err := s.importRepo.FinishRun(ctx, runID, model.ImportSucceeded, written, ""); err != nil {
		return result, fmt.Errorf("failed to finish import run: %w", err)
	}
	s.notify(importEvent{Type: "import_finished", ImportRunID: runID.String(), Source: req.Source, Job: req.Job, Status: model.ImportSucceeded, Inserted: written})
	s.writeAuditLog(ctx, model.ActionRunImport, runID.String(), req.Source+" "+req.Job, result)

	return result, nil
}

// dryRun computes the would-be diff inside a transaction that is always
// rolled back; no ImportRun row, no provenance, no rate mutation survives.
func (s *importService) dryRun(ctx context.Context, req ImportRequest, runID uuid.UUID, records []ingest.Record, dropped []ingest.RowError) (ImportResult, error) {
	result := ImportResult{ImportRunID: runID, Dropped: dropped, DryRun: true}
	err := s.txManager.RunInTxRollback(ctx, func(txCtx context.Context) error {
		return s.applyBatch(txCtx, runID, records, &result)
	})
	if err != nil {
		return result, fmt.Errorf("dry-run failed: %w", err)
	}
	s.writeAuditLog(ctx, model.ActionDryRunImport, runID.String(), req.Source+" "+req.Job, result)
	return result, nil
}

// applyBatch upserts records in source order so supersession windows chain
// correctly for repeated natural keys, then records provenance for every
// accepted row.
func (s *importService) applyBatch(ctx context.Context, runID uuid.UUID, batch []ingest.Record, result *ImportResult) error {
	provenance := make([]model.ProvenanceRecord, 0, len(batch))

	for i := range batch {
		rec := &batch[i]

		provID := uuid.New()
		setProvenanceID(rec, provID)

		outcome, err := s.applyRecord(ctx, rec)
		if err != nil {
			return fmt.Errorf("upsert %s record: %w", rec.Kind, err)
		}
		switch outcome {
		case repository.UpsertInserted:
			result.Inserted++
		case repository.UpsertSuperseded:
			result.Superseded++
		case repository.UpsertUnchanged:
			result.Unchanged++
		}

		provenance = append(provenance, model.ProvenanceRecord{
			ID:          provID,
			ImportRunID: runID,
			SourceURL:   rec.SourceURL,
			RawRowHash:  rec.Hash,
		})
	}

	return s.importRepo.CreateProvenance(ctx, provenance)
}

func (s *importService) applyRecord(ctx context.Context, rec *ingest.Record) (repository.UpsertOutcome, error) {
	switch rec.Kind {
	case ingest.KindDuty:
		return s.dutyRepo.Upsert(ctx, rec.Duty)
	case ingest.KindVat:
		return s.vatRepo.Upsert(ctx, rec.Vat)
	case ingest.KindDeMinimis:
		return s.deMinimisRepo.Upsert(ctx, rec.DeMinimis)
	case ingest.KindSurcharge:
		return s.surchargeRepo.Upsert(ctx, rec.Surcharge)
	case ingest.KindFx:
		return s.fxRepo.Upsert(ctx, rec.Fx)
	case ingest.KindFreight:
		return s.freightRepo.Upsert(ctx, rec.Freight)
	}
	return 0, fmt.Errorf("unknown record kind %q", rec.Kind)
}

func (s *importService) ListRuns(ctx context.Context, page, limit int) ([]model.ImportRun, int64, error) {
	return s.importRepo.ListRuns(ctx, page, limit)
}

// --- Helpers ---

func setProvenanceID(rec *ingest.Record, id uuid.UUID) {
	switch rec.Kind {
	case ingest.KindDuty:
		rec.Duty.ProvenanceID = &id
	case ingest.KindVat:
		rec.Vat.ProvenanceID = &id
	case ingest.KindDeMinimis:
		rec.DeMinimis.ProvenanceID = &id
	case ingest.KindSurcharge:
		rec.Surcharge.ProvenanceID = &id
	case ingest.KindFx:
		rec.Fx.ProvenanceID = &id
	case ingest.KindFreight:
		rec.Freight.ProvenanceID = &id
	}
}

func marshalParams(req ImportRequest, batchSize int) string {
	params := map[string]interface{}{
		"batch_size": batchSize,
		"row_count":  len(req.Rows),
		"dry_run":    req.DryRun,
	}
	b, _ := json.Marshal(params)
	return string(b)
}

func (s *importService) notify(event importEvent) {
	if s.notifier != nil {
		s.notifier.BroadcastImportEvent(event)
	}
}

func (s *importService) writeAuditLog(ctx context.Context, action, entityID, entityName string, details interface{}) {
	detailsJSON, _ := json.Marshal(details)

	entry := model.AuditLog{
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(detailsJSON),
	}

	// Best-effort audit log — don't fail the operation if logging fails
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		log.Printf("WARNING: failed to write audit log: %v", err)
	}
}
