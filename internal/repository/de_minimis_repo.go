package repository

import (
	"context"
	"errors"
	"time"

	"landedcost/internal/model"

	"gorm.io/gorm"
)

type DeMinimisRepository interface {
	Upsert(ctx context.Context, threshold *model.DeMinimisThreshold) (UpsertOutcome, error)
	FindActive(ctx context.Context, dest string, asOf time.Time) (*model.DeMinimisThreshold, error)
	CountByDestination(ctx context.Context, dest string) (int64, error)
	List(ctx context.Context, dest string, page, limit int) ([]model.DeMinimisThreshold, int64, error)
}

type deMinimisRepository struct {
	db *gorm.DB
}

func NewDeMinimisRepository(db *gorm.DB) DeMinimisRepository {
	return &deMinimisRepository{db: db}
}

func (r *deMinimisRepository) Upsert(ctx context.Context, threshold *model.DeMinimisThreshold) (UpsertOutcome, error) {
	db := GetDB(ctx, r.db)

	var existing []model.DeMinimisThreshold
	err := db.Where("destination = ?", threshold.Destination).
		Where("effective_to IS NULL OR effective_to > ?", threshold.EffectiveFrom).
		Order("effective_from asc").
		Find(&existing).Error
	if err != nil {
		return 0, err
	}

	superseded := false
	for i := range existing {
		prior := &existing[i]
		if sameWindow(prior.EffectiveFrom, prior.EffectiveTo, threshold.EffectiveFrom, threshold.EffectiveTo) &&
			prior.Value.Equal(threshold.Value) &&
			prior.Currency == threshold.Currency &&
			prior.AppliesTo == threshold.AppliesTo {
			return UpsertUnchanged, nil
		}
		if prior.EffectiveFrom.After(threshold.EffectiveFrom) {
			if threshold.EffectiveTo == nil || threshold.EffectiveTo.After(prior.EffectiveFrom) {
				to := prior.EffectiveFrom
				threshold.EffectiveTo = &to
			}
			continue
		}
		// An equal start leaves an empty window, i.e. the record is replaced.
		if err := db.Model(prior).Update("effective_to", threshold.EffectiveFrom).Error; err != nil {
			return 0, err
		}
		superseded = true
	}

	if err := db.Create(threshold).Error; err != nil {
		return 0, err
	}
	if superseded {
		return UpsertSuperseded, nil
	}
	return UpsertInserted, nil
}

func (r *deMinimisRepository) FindActive(ctx context.Context, dest string, asOf time.Time) (*model.DeMinimisThreshold, error) {
	var threshold model.DeMinimisThreshold
	err := GetDB(ctx, r.db).
		Where("destination = ?", dest).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", asOf, asOf).
		Order("effective_from desc").
		First(&threshold).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &threshold, nil
}

func (r *deMinimisRepository) CountByDestination(ctx context.Context, dest string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.DeMinimisThreshold{}).Where("destination = ?", dest).Count(&count).Error
	return count, err
}

func (r *deMinimisRepository) List(ctx context.Context, dest string, page, limit int) ([]model.DeMinimisThreshold, int64, error) {
	var thresholds []model.DeMinimisThreshold
	var total int64

	db := GetDB(ctx, r.db).Model(&model.DeMinimisThreshold{})
	if dest != "" {
		db = db.Where("destination = ?", dest)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("effective_from desc").Offset(offset).Limit(limit).Find(&thresholds).Error; err != nil {
		return nil, 0, err
	}

	return thresholds, total, nil
}
