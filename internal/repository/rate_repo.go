package repository

import (
	"context"

	"taxaudit/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RetentionRateRepository interface {
	Create(ctx context.Context, rate *model.RetentionRate) error
	Update(ctx context.Context, rate *model.RetentionRate) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RetentionRate, error)
	FindByActivityCode(ctx context.Context, code string) (*model.RetentionRate, error)
	List(ctx context.Context, page, limit int) ([]model.RetentionRate, int64, error)
}

type retentionRateRepository struct {
	db *gorm.DB
}

func NewRetentionRateRepository(db *gorm.DB) RetentionRateRepository {
	return &retentionRateRepository{db: db}
}

func (r *retentionRateRepository) Create(ctx context.Context, rate *model.RetentionRate) error {
	return GetDB(ctx, r.db).Create(rate).Error
}

func (r *retentionRateRepository) Update(ctx context.Context, rate *model.RetentionRate) error {
	return GetDB(ctx, r.db).Save(rate).Error
}

func (r *retentionRateRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.RetentionRate{}).Error
}

func (r *retentionRateRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RetentionRate, error) {
	var rate model.RetentionRate
	if err := GetDB(ctx, r.db).First(&rate, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

// FindByActivityCode performs an exact-match lookup against the reference
// table. A miss is returned as gorm.ErrRecordNotFound for the service layer
// to translate — no default rate is ever fabricated.
func (r *retentionRateRepository) FindByActivityCode(ctx context.Context, code string) (*model.RetentionRate, error) {
	var rate model.RetentionRate
	if err := GetDB(ctx, r.db).First(&rate, "activity_code = ?", code).Error; err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *retentionRateRepository) List(ctx context.Context, page, limit int) ([]model.RetentionRate, int64, error) {
	var rates []model.RetentionRate
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.RetentionRate{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("activity_code asc").Offset(offset).Limit(limit).Find(&rates).Error; err != nil {
		return nil, 0, err
	}

	return rates, total, nil
}
