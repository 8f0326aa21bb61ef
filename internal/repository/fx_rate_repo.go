package repository

import (
	"context"
	"errors"
	"time"

	"landedcost/internal/model"

	"gorm.io/gorm"
)

type FxRateRepository interface {
	// Upsert inserts one historical observation. A row for the same
	// (base, quote, as_of) with the same rate is a no-op; a differing rate
	// replaces the stored value.
	Upsert(ctx context.Context, rate *model.FxRate) (UpsertOutcome, error)
	// FindRate returns the most recent rate with as_of <= the requested
	// date, or the globally most recent when asOf is nil. Nil when no row
	// qualifies.
	FindRate(ctx context.Context, base, quote string, asOf *time.Time) (*model.FxRate, error)
	// HasPair reports whether any observation exists for the pair.
	HasPair(ctx context.Context, base, quote string) (bool, error)
}

type fxRateRepository struct {
	db *gorm.DB
}

func NewFxRateRepository(db *gorm.DB) FxRateRepository {
	return &fxRateRepository{db: db}
}

func (r *fxRateRepository) Upsert(ctx context.Context, rate *model.FxRate) (UpsertOutcome, error) {
	db := GetDB(ctx, r.db)

	var existing model.FxRate
	err := db.Where("base = ? AND quote = ? AND as_of = ?", rate.Base, rate.Quote, rate.AsOf).
		First(&existing).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		if err := db.Create(rate).Error; err != nil {
			return 0, err
		}
		return UpsertInserted, nil
	}

	if existing.Rate.Equal(rate.Rate) {
		return UpsertUnchanged, nil
	}
	if err := db.Model(&existing).Updates(map[string]interface{}{
		"rate":          rate.Rate,
		"provenance_id": rate.ProvenanceID,
	}).Error; err != nil {
		return 0, err
	}
	return UpsertSuperseded, nil
}

func (r *fxRateRepository) FindRate(ctx context.Context, base, quote string, asOf *time.Time) (*model.FxRate, error) {
	var rate model.FxRate
	db := GetDB(ctx, r.db).Where("base = ? AND quote = ?", base, quote)
	if asOf != nil {
		db = db.Where("as_of <= ?", *asOf)
	}
	err := db.Order("as_of desc").First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

func (r *fxRateRepository) HasPair(ctx context.Context, base, quote string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.FxRate{}).
		Where("base = ? AND quote = ?", base, quote).
		Limit(1).Count(&count).Error
	return count > 0, err
}
