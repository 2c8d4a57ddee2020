package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"taxaudit/internal/cnpjws"
	"taxaudit/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens an isolated in-memory sqlite database. The shared-cache DSN
// keeps every pooled connection pointed at the same database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// sqlite allows one writer at a time; a single pooled connection keeps
	// concurrent audit runs from tripping over SQLITE_BUSY.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Client{},
		&model.Supplier{},
		&model.RetentionRate{},
		&model.Payment{},
		&model.RetentionAudit{},
	))

	return db
}

func seedClient(t *testing.T, db *gorm.DB) *model.Client {
	t.Helper()
	client := &model.Client{Name: "Acme Ltda", CNPJ: "11222333000181", IsActive: true}
	require.NoError(t, db.Create(client).Error)
	return client
}

func seedSupplier(t *testing.T, db *gorm.DB, cnpj, activityCode string) *model.Supplier {
	t.Helper()
	supplier := &model.Supplier{
		CNPJ:               cnpj,
		CorporateName:      "Fornecedor " + cnpj,
		ActivityCode:       activityCode,
		RegistrationStatus: model.RegistrationActive,
	}
	require.NoError(t, db.Create(supplier).Error)
	return supplier
}

func seedRate(t *testing.T, db *gorm.DB, activityCode string, rates model.LevyMap) *model.RetentionRate {
	t.Helper()
	rate := &model.RetentionRate{
		ActivityCode: activityCode,
		ActivityDesc: "Atividade " + activityCode,
		Rates:        rates,
	}
	require.NoError(t, db.Create(rate).Error)
	return rate
}

func seedPayment(t *testing.T, db *gorm.DB, clientID, supplierID uuid.UUID, date string, amount decimal.Decimal) *model.Payment {
	t.Helper()
	paymentDate, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)

	payment := &model.Payment{
		ClientID:    clientID,
		SupplierID:  supplierID,
		PaymentDate: paymentDate,
		Amount:      amount,
		Status:      model.PaymentStatusPending,
	}
	require.NoError(t, db.Create(payment).Error)
	return payment
}

// fakeLookup substitutes the CNPJ registry client in tests
type fakeLookup struct {
	mu    sync.Mutex
	info  *cnpjws.CompanyInfo
	err   error
	calls int
}

func (f *fakeLookup) Lookup(ctx context.Context, cnpj string) (*cnpjws.CompanyInfo, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	info := *f.info
	if info.CNPJ == "" {
		info.CNPJ = cnpjws.NormalizeCNPJ(cnpj)
	}
	return &info, nil
}
