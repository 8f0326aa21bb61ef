package repository

import (
	"context"
	"time"

	"landedcost/internal/model"

	"gorm.io/gorm"
)

type DutyRateRepository interface {
	// Upsert applies one canonical record: a prior record for the same
	// natural key starting at or before the incoming effective_from has its
	// window closed at that date, while a prior starting later caps the
	// incoming effective_to, so at most one record covers any instant. An
	// identical key+window+payload is a no-op.
	Upsert(ctx context.Context, rate *model.DutyRate) (UpsertOutcome, error)
	// FindCandidates returns all duty rows for (dest, hs6) whose effective
	// window contains asOf, any rule type.
	FindCandidates(ctx context.Context, dest, hs6 string, asOf time.Time) ([]model.DutyRate, error)
	CountByDestination(ctx context.Context, dest string) (int64, error)
	List(ctx context.Context, dest, hs6 string, page, limit int) ([]model.DutyRate, int64, error)
}

type dutyRateRepository struct {
	db *gorm.DB
}

func NewDutyRateRepository(db *gorm.DB) DutyRateRepository {
	return &dutyRateRepository{db: db}
}

func (r *dutyRateRepository) Upsert(ctx context.Context, rate *model.DutyRate) (UpsertOutcome, error) {
	db := GetDB(ctx, r.db)

	var existing []model.DutyRate
	q := db.Where("destination = ? AND hs6 = ? AND rule_type = ?", rate.Destination, rate.HS6, rate.RuleType).
		Where("effective_to IS NULL OR effective_to > ?", rate.EffectiveFrom)
	if rate.PartnerID != nil {
		q = q.Where("partner_id = ?", *rate.PartnerID)
	} else {
		q = q.Where("partner_id IS NULL")
	}
	if err := q.Order("effective_from asc").Find(&existing).Error; err != nil {
		return 0, err
	}

	superseded := false
	for i := range existing {
		prior := &existing[i]
		if sameWindow(prior.EffectiveFrom, prior.EffectiveTo, rate.EffectiveFrom, rate.EffectiveTo) &&
			prior.AdValoremRate.Equal(rate.AdValoremRate) &&
			prior.SpecificAmount.Equal(rate.SpecificAmount) &&
			prior.SpecificUnit == rate.SpecificUnit &&
			prior.Currency == rate.Currency {
			return UpsertUnchanged, nil
		}
		if prior.EffectiveFrom.After(rate.EffectiveFrom) {
			// Prior starts inside the incoming window; cap the incoming
			// record so the later row keeps its start date.
			if rate.EffectiveTo == nil || rate.EffectiveTo.After(prior.EffectiveFrom) {
				to := prior.EffectiveFrom
				rate.EffectiveTo = &to
			}
			continue
		}
		// Prior starts at or before the incoming date: close it there. An
		// equal start leaves an empty window, i.e. the record is replaced.
		if err := db.Model(prior).Update("effective_to", rate.EffectiveFrom).Error; err != nil {
			return 0, err
		}
		superseded = true
	}

	if err := db.Create(rate).Error; err != nil {
		return 0, err
	}
	if superseded {
		return UpsertSuperseded, nil
	}
	return UpsertInserted, nil
}

func (r *dutyRateRepository) FindCandidates(ctx context.Context, dest, hs6 string, asOf time.Time) ([]model.DutyRate, error) {
	var rates []model.DutyRate
	err := GetDB(ctx, r.db).
		Where("destination = ? AND hs6 = ?", dest, hs6).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", asOf, asOf).
		Order("created_at desc, id desc").
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *dutyRateRepository) CountByDestination(ctx context.Context, dest string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.DutyRate{}).Where("destination = ?", dest).Count(&count).Error
	return count, err
}

func (r *dutyRateRepository) List(ctx context.Context, dest, hs6 string, page, limit int) ([]model.DutyRate, int64, error) {
	var rates []model.DutyRate
	var total int64

	db := GetDB(ctx, r.db).Model(&model.DutyRate{})
	if dest != "" {
		db = db.Where("destination = ?", dest)
	}
	if hs6 != "" {
		db = db.Where("hs6 = ?", hs6)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("effective_from desc").Offset(offset).Limit(limit).Find(&rates).Error; err != nil {
		return nil, 0, err
	}

	return rates, total, nil
}
