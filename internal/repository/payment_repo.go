package repository

import (
	"context"

	"taxaudit/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentFilter struct {
	ClientID *uuid.UUID
	Status   string
	Page     int
	Limit    int
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	CreateBatch(ctx context.Context, payments []model.Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, filter PaymentFilter) ([]model.Payment, int64, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) CreateBatch(ctx context.Context, payments []model.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&payments).Error
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var payment model.Payment
	if err := GetDB(ctx, r.db).Preload("Supplier").Preload("Client").First(&payment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Payment{}).Where("id = ?", id).Update("status", status).Error
}

func (r *paymentRepository) List(ctx context.Context, filter PaymentFilter) ([]model.Payment, int64, error) {
	var payments []model.Payment
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Payment{})

	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Preload("Supplier").Order("payment_date DESC").
		Offset(offset).Limit(filter.Limit).Find(&payments).Error; err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}
