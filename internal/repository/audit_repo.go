package repository

import (
	"context"
	"time"

	"taxaudit/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RetentionAuditRepository interface {
	Create(ctx context.Context, audit *model.RetentionAudit) error
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*model.RetentionAudit, error)
	List(ctx context.Context, page, limit int) ([]model.RetentionAudit, int64, error)
	ListByClientAndPeriod(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]model.RetentionAudit, error)
	CountByStatus(ctx context.Context, clientID *uuid.UUID) (map[string]int64, error)
	SumTotalWithheld(ctx context.Context, clientID *uuid.UUID) (decimal.Decimal, error)
}

type retentionAuditRepository struct {
	db *gorm.DB
}

func NewRetentionAuditRepository(db *gorm.DB) RetentionAuditRepository {
	return &retentionAuditRepository{db: db}
}

func (r *retentionAuditRepository) Create(ctx context.Context, audit *model.RetentionAudit) error {
	return GetDB(ctx, r.db).Create(audit).Error
}

func (r *retentionAuditRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*model.RetentionAudit, error) {
	var audit model.RetentionAudit
	if err := GetDB(ctx, r.db).First(&audit, "payment_id = ?", paymentID).Error; err != nil {
		return nil, err
	}
	return &audit, nil
}

func (r *retentionAuditRepository) List(ctx context.Context, page, limit int) ([]model.RetentionAudit, int64, error) {
	var audits []model.RetentionAudit
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.RetentionAudit{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Payment").Preload("Supplier").Preload("Rate").
		Order("created_at desc").Offset(offset).Limit(limit).Find(&audits).Error; err != nil {
		return nil, 0, err
	}

	return audits, total, nil
}

// ListByClientAndPeriod returns audits whose underlying payment belongs to the
// client and is dated within [start, end] inclusive.
func (r *retentionAuditRepository) ListByClientAndPeriod(ctx context.Context, clientID uuid.UUID, start, end time.Time) ([]model.RetentionAudit, error) {
	var audits []model.RetentionAudit
	if err := GetDB(ctx, r.db).
		Joins("JOIN payments ON payments.id = retention_audits.payment_id").
		Where("payments.client_id = ? AND payments.payment_date >= ? AND payments.payment_date <= ?",
			clientID, start, end).
		Preload("Payment").Preload("Supplier").
		Find(&audits).Error; err != nil {
		return nil, err
	}
	return audits, nil
}

func (r *retentionAuditRepository) CountByStatus(ctx context.Context, clientID *uuid.UUID) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}

	query := GetDB(ctx, r.db).Model(&model.Payment{}).
		Select("status, COUNT(*) as count").
		Group("status")
	if clientID != nil {
		query = query.Where("client_id = ?", *clientID)
	}

	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *retentionAuditRepository) SumTotalWithheld(ctx context.Context, clientID *uuid.UUID) (decimal.Decimal, error) {
	var value string

	query := GetDB(ctx, r.db).Model(&model.RetentionAudit{}).
		Select("COALESCE(CAST(SUM(total_withheld) AS TEXT), '0') as value")
	if clientID != nil {
		query = query.
			Joins("JOIN payments ON payments.id = retention_audits.payment_id").
			Where("payments.client_id = ?", *clientID)
	}

	if err := query.Scan(&value).Error; err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(value)
}
