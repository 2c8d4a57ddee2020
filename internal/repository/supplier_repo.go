package repository

import (
	"context"

	"taxaudit/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SupplierRepository interface {
	CreateIfAbsent(ctx context.Context, supplier *model.Supplier) (created bool, err error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error)
	FindByCNPJ(ctx context.Context, cnpj string) (*model.Supplier, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Supplier, int64, error)
}

type supplierRepository struct {
	db *gorm.DB
}

func NewSupplierRepository(db *gorm.DB) SupplierRepository {
	return &supplierRepository{db: db}
}

// CreateIfAbsent inserts the supplier unless a row with the same CNPJ already
// exists. The unique index on cnpj plus ON CONFLICT DO NOTHING makes
// concurrent first-time resolution of the same CNPJ safe: the loser's insert
// affects zero rows and the caller re-reads the winner's row.
func (r *supplierRepository) CreateIfAbsent(ctx context.Context, supplier *model.Supplier) (bool, error) {
	result := GetDB(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "cnpj"}}, DoNothing: true}).
		Create(supplier)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *supplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := GetDB(ctx, r.db).First(&supplier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *supplierRepository) FindByCNPJ(ctx context.Context, cnpj string) (*model.Supplier, error) {
	var supplier model.Supplier
	if err := GetDB(ctx, r.db).First(&supplier, "cnpj = ?", cnpj).Error; err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (r *supplierRepository) List(ctx context.Context, search string, page, limit int) ([]model.Supplier, int64, error) {
	var suppliers []model.Supplier
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Supplier{})

	if search != "" {
		query = query.Where("corporate_name ILIKE ? OR trade_name ILIKE ? OR cnpj LIKE ?",
			"%"+search+"%", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Order("corporate_name ASC").Offset(offset).Limit(limit).Find(&suppliers).Error; err != nil {
		return nil, 0, err
	}

	return suppliers, total, nil
}
