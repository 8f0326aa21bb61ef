package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"landedcost/internal/model"
	"landedcost/internal/repository"
)

const (
	DefaultStaleThresholdMinutes = 30
	DefaultPruneDays             = 90
)

// --- DTOs ---

type SweepRequest struct {
	ThresholdMinutes int `json:"threshold_minutes"` // 0 = default
	Limit            int `json:"limit"`             // 0 = unbounded
}

type SweepResult struct {
	Swept int64 `json:"swept"`
}

type PruneRequest struct {
	Days int `json:"days"` // 0 = default
}

type PruneResult struct {
	ProvenanceDeleted int64     `json:"provenance_deleted"`
	ImportsDeleted    int64     `json:"imports_deleted"`
	Cutoff            time.Time `json:"cutoff"`
}

// --- Interface ---

// MaintenanceService owns recovery and retention for the import pipeline.
// The stale-run sweep is the de facto timeout for imports whose holder
// crashed without finishing; pruning bounds provenance growth.
type MaintenanceService interface {
	SweepStaleImports(ctx context.Context, req SweepRequest) (SweepResult, error)
	PruneImports(ctx context.Context, req PruneRequest) (PruneResult, error)
}

type maintenanceService struct {
	importRepo repository.ImportRepository
	lockRepo   repository.LockRepository
	auditRepo  repository.AuditRepository
}

func NewMaintenanceService(
	importRepo repository.ImportRepository,
	lockRepo repository.LockRepository,
	auditRepo repository.AuditRepository,
) MaintenanceService {
	return &maintenanceService{
		importRepo: importRepo,
		lockRepo:   lockRepo,
		auditRepo:  auditRepo,
	}
}

// --- Implementation ---

func (s *maintenanceService) SweepStaleImports(ctx context.Context, req SweepRequest) (SweepResult, error) {
	threshold := req.ThresholdMinutes
	if threshold <= 0 {
		threshold = DefaultStaleThresholdMinutes
	}
	olderThan := time.Now().UTC().Add(-time.Duration(threshold) * time.Minute)

	swept, err := s.importRepo.SweepStale(ctx, olderThan, req.Limit)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to sweep stale imports: %w", err)
	}

	// Leases whose holders were just force-failed are reclaimed here; their
	// TTLs have necessarily lapsed by the stale threshold.
	released, err := s.lockRepo.ReleaseExpired(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to release expired job locks: %w", err)
	}
	if swept > 0 || released > 0 {
		log.Printf("Sweep: %d stale import run(s) failed, %d expired lock(s) released", swept, released)
	}

	if swept > 0 {
		s.audit(ctx, model.ActionSweepImports, SweepResult{Swept: swept})
	}
	return SweepResult{Swept: swept}, nil
}

func (s *maintenanceService) PruneImports(ctx context.Context, req PruneRequest) (PruneResult, error) {
	days := req.Days
	if days <= 0 {
		days = DefaultPruneDays
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	provDeleted, runsDeleted, err := s.importRepo.PruneBefore(ctx, cutoff)
	if err != nil {
		return PruneResult{}, fmt.Errorf("failed to prune imports: %w", err)
	}

	result := PruneResult{
		ProvenanceDeleted: provDeleted,
		ImportsDeleted:    runsDeleted,
		Cutoff:            cutoff,
	}
	if provDeleted > 0 || runsDeleted > 0 {
		s.audit(ctx, model.ActionPruneImports, result)
	}
	return result, nil
}

func (s *maintenanceService) audit(ctx context.Context, action string, details interface{}) {
	detailsJSON, _ := json.Marshal(details)
	entry := model.AuditLog{
		Action:  action,
		Details: string(detailsJSON),
	}
	if err := s.auditRepo.Log(ctx, &entry); err != nil {
		log.Printf("WARNING: failed to write audit log: %v", err)
	}
}
