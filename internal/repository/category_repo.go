package repository

import (
	"context"
	"errors"

	"landedcost/internal/model"

	"gorm.io/gorm"
)

type CategoryRepository interface {
	FindByKey(ctx context.Context, key string) (*model.Category, error)
	List(ctx context.Context, page, limit int) ([]model.Category, int64, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) FindByKey(ctx context.Context, key string) (*model.Category, error) {
	var category model.Category
	if err := GetDB(ctx, r.db).First(&category, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context, page, limit int) ([]model.Category, int64, error) {
	var categories []model.Category
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Category{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("key asc").Offset(offset).Limit(limit).Find(&categories).Error; err != nil {
		return nil, 0, err
	}

	return categories, total, nil
}
