package repository

import (
	"context"
	"time"

	"landedcost/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ImportRepository interface {
	CreateRun(ctx context.Context, run *model.ImportRun) error
	FinishRun(ctx context.Context, id uuid.UUID, status string, insertedCount int, errMsg string) error
	ListRuns(ctx context.Context, page, limit int) ([]model.ImportRun, int64, error)
	CreateProvenance(ctx context.Context, records []model.ProvenanceRecord) error
	// SweepStale force-fails runs with no finished_at whose started_at is
	// older than the threshold. Limit bounds work per invocation; 0 means
	// no bound.
	SweepStale(ctx context.Context, olderThan time.Time, limit int) (int64, error)
	// PruneBefore deletes provenance records and terminal import runs older
	// than the cutoff, returning (provenanceDeleted, runsDeleted).
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, int64, error)
}

type importRepository struct {
	db *gorm.DB
}

func NewImportRepository(db *gorm.DB) ImportRepository {
	return &importRepository{db: db}
}

func (r *importRepository) CreateRun(ctx context.Context, run *model.ImportRun) error {
	return GetDB(ctx, r.db).Create(run).Error
}

func (r *importRepository) FinishRun(ctx context.Context, id uuid.UUID, status string, insertedCount int, errMsg string) error {
	now := time.Now().UTC()
	return GetDB(ctx, r.db).Model(&model.ImportRun{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         status,
			"inserted_count": insertedCount,
			"finished_at":    now,
			"error":          errMsg,
		}).Error
}

func (r *importRepository) ListRuns(ctx context.Context, page, limit int) ([]model.ImportRun, int64, error) {
	var runs []model.ImportRun
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.ImportRun{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("started_at desc").Offset(offset).Limit(limit).Find(&runs).Error; err != nil {
		return nil, 0, err
	}

	return runs, total, nil
}

func (r *importRepository) CreateProvenance(ctx context.Context, records []model.ProvenanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&records).Error
}

func (r *importRepository) SweepStale(ctx context.Context, olderThan time.Time, limit int) (int64, error) {
	db := GetDB(ctx, r.db)

	var ids []uuid.UUID
	q := db.Model(&model.ImportRun{}).
		Where("finished_at IS NULL AND started_at < ?", olderThan).
		Order("started_at asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	res := db.Model(&model.ImportRun{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":      model.ImportFailed,
			"finished_at": now,
			"error":       "swept: exceeded stale-run threshold",
		})
	return res.RowsAffected, res.Error
}

func (r *importRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, int64, error) {
	db := GetDB(ctx, r.db)

	provRes := db.Where("created_at < ?", cutoff).Delete(&model.ProvenanceRecord{})
	if provRes.Error != nil {
		return 0, 0, provRes.Error
	}

	runRes := db.Where("started_at < ? AND finished_at IS NOT NULL", cutoff).Delete(&model.ImportRun{})
	if runRes.Error != nil {
		return provRes.RowsAffected, 0, runRes.Error
	}

	return provRes.RowsAffected, runRes.RowsAffected, nil
}
