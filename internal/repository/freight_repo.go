package repository

import (
	"context"
	"errors"
	"time"

	"landedcost/internal/model"

	"gorm.io/gorm"
)

type FreightRepository interface {
	// Upsert applies a whole tariff card with its steps. A prior card for
	// the same mode starting at or before the new card's effective_from is
	// closed at that date; one starting later caps the new card's window.
	Upsert(ctx context.Context, card *model.FreightCard) (UpsertOutcome, error)
	// FindActiveCard returns the card for the mode whose window contains
	// asOf, with steps loaded in ascending ceiling order. Nil when absent.
	FindActiveCard(ctx context.Context, mode string, asOf time.Time) (*model.FreightCard, error)
	List(ctx context.Context, mode string, page, limit int) ([]model.FreightCard, int64, error)
}

type freightRepository struct {
	db *gorm.DB
}

func NewFreightRepository(db *gorm.DB) FreightRepository {
	return &freightRepository{db: db}
}

func (r *freightRepository) Upsert(ctx context.Context, card *model.FreightCard) (UpsertOutcome, error) {
	db := GetDB(ctx, r.db)

	var existing []model.FreightCard
	err := db.Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("mode = ?", card.Mode).
		Where("effective_to IS NULL OR effective_to > ?", card.EffectiveFrom).
		Order("effective_from asc").
		Find(&existing).Error
	if err != nil {
		return 0, err
	}

	superseded := false
	for i := range existing {
		prior := &existing[i]
		if sameWindow(prior.EffectiveFrom, prior.EffectiveTo, card.EffectiveFrom, card.EffectiveTo) &&
			prior.Unit == card.Unit && prior.Currency == card.Currency &&
			sameSteps(prior.Steps, card.Steps) {
			return UpsertUnchanged, nil
		}
		if prior.EffectiveFrom.After(card.EffectiveFrom) {
			if card.EffectiveTo == nil || card.EffectiveTo.After(prior.EffectiveFrom) {
				to := prior.EffectiveFrom
				card.EffectiveTo = &to
			}
			continue
		}
		// An equal start leaves an empty window, i.e. the record is replaced.
		if err := db.Model(prior).Update("effective_to", card.EffectiveFrom).Error; err != nil {
			return 0, err
		}
		superseded = true
	}

	if err := db.Create(card).Error; err != nil {
		return 0, err
	}
	if superseded {
		return UpsertSuperseded, nil
	}
	return UpsertInserted, nil
}

func sameSteps(a, b []model.FreightStep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].UptoQuantity.Equal(b[i].UptoQuantity) || !a[i].PricePerUnit.Equal(b[i].PricePerUnit) {
			return false
		}
	}
	return true
}

func (r *freightRepository) FindActiveCard(ctx context.Context, mode string, asOf time.Time) (*model.FreightCard, error) {
	var card model.FreightCard
	err := GetDB(ctx, r.db).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("mode = ?", mode).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", asOf, asOf).
		Order("effective_from desc").
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

func (r *freightRepository) List(ctx context.Context, mode string, page, limit int) ([]model.FreightCard, int64, error) {
	var cards []model.FreightCard
	var total int64

	db := GetDB(ctx, r.db).Model(&model.FreightCard{})
	if mode != "" {
		db = db.Where("mode = ?", mode)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := db.Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Order("effective_from desc").Offset(offset).Limit(limit).Find(&cards).Error
	if err != nil {
		return nil, 0, err
	}

	return cards, total, nil
}
