package repository

import (
	"context"
	"time"

	"landedcost/internal/model"

	"gorm.io/gorm"
)

type SurchargeRepository interface {
	Upsert(ctx context.Context, surcharge *model.Surcharge) (UpsertOutcome, error)
	// FindActive returns every surcharge active for the destination at asOf;
	// surcharges aggregate additively, there is no single winner.
	FindActive(ctx context.Context, dest string, asOf time.Time) ([]model.Surcharge, error)
	CountByDestination(ctx context.Context, dest string) (int64, error)
	List(ctx context.Context, dest string, page, limit int) ([]model.Surcharge, int64, error)
}

type surchargeRepository struct {
	db *gorm.DB
}

func NewSurchargeRepository(db *gorm.DB) SurchargeRepository {
	return &surchargeRepository{db: db}
}

func (r *surchargeRepository) Upsert(ctx context.Context, surcharge *model.Surcharge) (UpsertOutcome, error) {
	db := GetDB(ctx, r.db)

	var existing []model.Surcharge
	err := db.Where("destination = ? AND code = ?", surcharge.Destination, surcharge.Code).
		Where("effective_to IS NULL OR effective_to > ?", surcharge.EffectiveFrom).
		Order("effective_from asc").
		Find(&existing).Error
	if err != nil {
		return 0, err
	}

	superseded := false
	for i := range existing {
		prior := &existing[i]
		if sameWindow(prior.EffectiveFrom, prior.EffectiveTo, surcharge.EffectiveFrom, surcharge.EffectiveTo) &&
			prior.FixedAmount.Equal(surcharge.FixedAmount) &&
			prior.PercentAmount.Equal(surcharge.PercentAmount) &&
			prior.Currency == surcharge.Currency {
			return UpsertUnchanged, nil
		}
		if prior.EffectiveFrom.After(surcharge.EffectiveFrom) {
			if surcharge.EffectiveTo == nil || surcharge.EffectiveTo.After(prior.EffectiveFrom) {
				to := prior.EffectiveFrom
				surcharge.EffectiveTo = &to
			}
			continue
		}
		// An equal start leaves an empty window, i.e. the record is replaced.
		if err := db.Model(prior).Update("effective_to", surcharge.EffectiveFrom).Error; err != nil {
			return 0, err
		}
		superseded = true
	}

	if err := db.Create(surcharge).Error; err != nil {
		return 0, err
	}
	if superseded {
		return UpsertSuperseded, nil
	}
	return UpsertInserted, nil
}

func (r *surchargeRepository) FindActive(ctx context.Context, dest string, asOf time.Time) ([]model.Surcharge, error) {
	var surcharges []model.Surcharge
	err := GetDB(ctx, r.db).
		Where("destination = ?", dest).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", asOf, asOf).
		Order("code asc").
		Find(&surcharges).Error
	if err != nil {
		return nil, err
	}
	return surcharges, nil
}

func (r *surchargeRepository) CountByDestination(ctx context.Context, dest string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Surcharge{}).Where("destination = ?", dest).Count(&count).Error
	return count, err
}

func (r *surchargeRepository) List(ctx context.Context, dest string, page, limit int) ([]model.Surcharge, int64, error) {
	var surcharges []model.Surcharge
	var total int64

	db := GetDB(ctx, r.db).Model(&model.Surcharge{})
	if dest != "" {
		db = db.Where("destination = ?", dest)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("effective_from desc").Offset(offset).Limit(limit).Find(&surcharges).Error; err != nil {
		return nil, 0, err
	}

	return surcharges, total, nil
}
