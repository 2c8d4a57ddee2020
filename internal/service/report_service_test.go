package service

import (
	"context"
	"testing"
	"time"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedAudit(t *testing.T, db *gorm.DB, payment *model.Payment, supplierID, rateID uuid.UUID, withheld model.LevyMap) *model.RetentionAudit {
	t.Helper()

	total := withheld.Total()
	audit := &model.RetentionAudit{
		PaymentID:     payment.ID,
		SupplierID:    supplierID,
		RateID:        rateID,
		BaseAmount:    payment.Amount,
		Withheld:      withheld,
		TotalWithheld: total,
		NetValue:      payment.Amount.Sub(total),
		Status:        model.AuditStatusCompleted,
	}
	require.NoError(t, db.Create(audit).Error)
	require.NoError(t, db.Model(&model.Payment{}).Where("id = ?", payment.ID).
		Update("status", model.PaymentStatusAudited).Error)
	return audit
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func TestGenerateReport_SumsPeriodInclusive(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	supplier := seedSupplier(t, db, "12345678000195", "6201-5/01")
	rate := seedRate(t, db, "6201-5/01", model.LevyMap{model.LevyIRRF: mustDecimal(t, "10")})

	tenPercent := func(amount decimal.Decimal) model.LevyMap {
		return model.LevyMap{model.LevyIRRF: amount.Div(decimal.NewFromInt(10)).RoundBank(2)}
	}

	jan := seedPayment(t, db, client.ID, supplier.ID, "2024-01-05", mustDecimal(t, "1000.00"))
	feb := seedPayment(t, db, client.ID, supplier.ID, "2024-02-10", mustDecimal(t, "2000.00"))
	mar := seedPayment(t, db, client.ID, supplier.ID, "2024-03-01", mustDecimal(t, "3000.00"))

	seedAudit(t, db, jan, supplier.ID, rate.ID, tenPercent(jan.Amount))
	seedAudit(t, db, feb, supplier.ID, rate.ID, tenPercent(feb.Amount))
	seedAudit(t, db, mar, supplier.ID, rate.ID, tenPercent(mar.Amount))

	svc := NewReportService(repository.NewRetentionAuditRepository(db))

	report, err := svc.GenerateReport(context.Background(), client.ID,
		mustDate(t, "2024-01-01"), mustDate(t, "2024-02-28"))
	require.NoError(t, err)

	// January and February fall inside the period; March does not.
	assert.Equal(t, 2, report.AuditCount)
	assert.Equal(t, "3000.00", report.TotalBase)
	assert.Equal(t, "300.00", report.TotalWithheld[model.LevyIRRF])
	assert.Equal(t, "300.00", report.GrandWithheld)
	assert.Equal(t, "2700.00", report.TotalNet)
	assert.Equal(t, client.ID.String(), report.ClientID)
}

func TestGenerateReport_BoundaryDatesIncluded(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	supplier := seedSupplier(t, db, "12345678000195", "6201-5/01")
	rate := seedRate(t, db, "6201-5/01", model.LevyMap{model.LevyISS: mustDecimal(t, "5")})

	onStart := seedPayment(t, db, client.ID, supplier.ID, "2024-01-01", mustDecimal(t, "100.00"))
	onEnd := seedPayment(t, db, client.ID, supplier.ID, "2024-01-31", mustDecimal(t, "200.00"))

	seedAudit(t, db, onStart, supplier.ID, rate.ID, model.LevyMap{model.LevyISS: mustDecimal(t, "5.00")})
	seedAudit(t, db, onEnd, supplier.ID, rate.ID, model.LevyMap{model.LevyISS: mustDecimal(t, "10.00")})

	svc := NewReportService(repository.NewRetentionAuditRepository(db))

	report, err := svc.GenerateReport(context.Background(), client.ID,
		mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, 2, report.AuditCount)
	assert.Equal(t, "15.00", report.GrandWithheld)
}

func TestGenerateReport_EmptyPeriod(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)

	svc := NewReportService(repository.NewRetentionAuditRepository(db))

	report, err := svc.GenerateReport(context.Background(), client.ID,
		mustDate(t, "2023-01-01"), mustDate(t, "2023-12-31"))
	require.NoError(t, err)

	assert.Equal(t, 0, report.AuditCount)
	assert.Equal(t, "0.00", report.TotalBase)
	assert.Equal(t, "0.00", report.GrandWithheld)
	assert.Equal(t, "0.00", report.TotalNet)
	assert.Empty(t, report.TotalWithheld)
}

func TestGenerateReport_ScopedToClient(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	other := &model.Client{Name: "Outra Empresa", CNPJ: "99888777000166"}
	require.NoError(t, db.Create(other).Error)

	supplier := seedSupplier(t, db, "12345678000195", "6201-5/01")
	rate := seedRate(t, db, "6201-5/01", model.LevyMap{model.LevyIRRF: mustDecimal(t, "10")})

	mine := seedPayment(t, db, client.ID, supplier.ID, "2024-01-10", mustDecimal(t, "1000.00"))
	theirs := seedPayment(t, db, other.ID, supplier.ID, "2024-01-10", mustDecimal(t, "5000.00"))

	seedAudit(t, db, mine, supplier.ID, rate.ID, model.LevyMap{model.LevyIRRF: mustDecimal(t, "100.00")})
	seedAudit(t, db, theirs, supplier.ID, rate.ID, model.LevyMap{model.LevyIRRF: mustDecimal(t, "500.00")})

	svc := NewReportService(repository.NewRetentionAuditRepository(db))

	report, err := svc.GenerateReport(context.Background(), client.ID,
		mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.AuditCount)
	assert.Equal(t, "100.00", report.GrandWithheld)
}

func TestGetStats_CountsAndTotals(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	supplier := seedSupplier(t, db, "12345678000195", "6201-5/01")
	rate := seedRate(t, db, "6201-5/01", model.LevyMap{model.LevyIRRF: mustDecimal(t, "10")})

	p1 := seedPayment(t, db, client.ID, supplier.ID, "2024-01-05", mustDecimal(t, "1000.00"))
	p2 := seedPayment(t, db, client.ID, supplier.ID, "2024-01-06", mustDecimal(t, "2000.00"))
	seedPayment(t, db, client.ID, supplier.ID, "2024-01-07", mustDecimal(t, "3000.00"))
	broken := seedPayment(t, db, client.ID, supplier.ID, "2024-01-08", mustDecimal(t, "400.00"))
	require.NoError(t, db.Model(&model.Payment{}).Where("id = ?", broken.ID).
		Update("status", model.PaymentStatusFailed).Error)

	seedAudit(t, db, p1, supplier.ID, rate.ID, model.LevyMap{model.LevyIRRF: mustDecimal(t, "100.00")})
	seedAudit(t, db, p2, supplier.ID, rate.ID, model.LevyMap{model.LevyIRRF: mustDecimal(t, "200.00")})

	svc := NewReportService(repository.NewRetentionAuditRepository(db))

	stats, err := svc.GetStats(context.Background(), &client.ID)
	require.NoError(t, err)

	assert.EqualValues(t, 4, stats.TotalPayments)
	assert.EqualValues(t, 1, stats.Pending)
	assert.EqualValues(t, 2, stats.Audited)
	assert.EqualValues(t, 1, stats.Failed)
	assert.Equal(t, "300.00", stats.TotalWithheld)
}

func TestGetStats_EmptyDatabase(t *testing.T) {
	db := newTestDB(t)
	svc := NewReportService(repository.NewRetentionAuditRepository(db))

	stats, err := svc.GetStats(context.Background(), nil)
	require.NoError(t, err)

	assert.EqualValues(t, 0, stats.TotalPayments)
	assert.Equal(t, "0.00", stats.TotalWithheld)
}
