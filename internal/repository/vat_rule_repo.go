package repository

import (
	"context"
	"errors"
	"time"

	"landedcost/internal/model"

	"gorm.io/gorm"
)

type VatRuleRepository interface {
	Upsert(ctx context.Context, rule *model.VatRule) (UpsertOutcome, error)
	FindActive(ctx context.Context, dest string, asOf time.Time) (*model.VatRule, error)
	CountByDestination(ctx context.Context, dest string) (int64, error)
	List(ctx context.Context, dest string, page, limit int) ([]model.VatRule, int64, error)
}

type vatRuleRepository struct {
	db *gorm.DB
}

func NewVatRuleRepository(db *gorm.DB) VatRuleRepository {
	return &vatRuleRepository{db: db}
}

func (r *vatRuleRepository) Upsert(ctx context.Context, rule *model.VatRule) (UpsertOutcome, error) {
	db := GetDB(ctx, r.db)

	var existing []model.VatRule
	err := db.Where("destination = ?", rule.Destination).
		Where("effective_to IS NULL OR effective_to > ?", rule.EffectiveFrom).
		Order("effective_from asc").
		Find(&existing).Error
	if err != nil {
		return 0, err
	}

	superseded := false
	for i := range existing {
		prior := &existing[i]
		if sameWindow(prior.EffectiveFrom, prior.EffectiveTo, rule.EffectiveFrom, rule.EffectiveTo) &&
			prior.Rate.Equal(rule.Rate) && prior.Base == rule.Base {
			return UpsertUnchanged, nil
		}
		if prior.EffectiveFrom.After(rule.EffectiveFrom) {
			if rule.EffectiveTo == nil || rule.EffectiveTo.After(prior.EffectiveFrom) {
				to := prior.EffectiveFrom
				rule.EffectiveTo = &to
			}
			continue
		}
		// An equal start leaves an empty window, i.e. the record is replaced.
		if err := db.Model(prior).Update("effective_to", rule.EffectiveFrom).Error; err != nil {
			return 0, err
		}
		superseded = true
	}

	if err := db.Create(rule).Error; err != nil {
		return 0, err
	}
	if superseded {
		return UpsertSuperseded, nil
	}
	return UpsertInserted, nil
}

func (r *vatRuleRepository) FindActive(ctx context.Context, dest string, asOf time.Time) (*model.VatRule, error) {
	var rule model.VatRule
	err := GetDB(ctx, r.db).
		Where("destination = ?", dest).
		Where("effective_from <= ? AND (effective_to IS NULL OR effective_to > ?)", asOf, asOf).
		Order("effective_from desc").
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil // no active rule — not an error
		}
		return nil, err
	}
	return &rule, nil
}

func (r *vatRuleRepository) CountByDestination(ctx context.Context, dest string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.VatRule{}).Where("destination = ?", dest).Count(&count).Error
	return count, err
}

func (r *vatRuleRepository) List(ctx context.Context, dest string, page, limit int) ([]model.VatRule, int64, error) {
	var rules []model.VatRule
	var total int64

	db := GetDB(ctx, r.db).Model(&model.VatRule{})
	if dest != "" {
		db = db.Where("destination = ?", dest)
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("effective_from desc").Offset(offset).Limit(limit).Find(&rules).Error; err != nil {
		return nil, 0, err
	}

	return rules, total, nil
}
