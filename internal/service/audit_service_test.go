package service

import (
	"context"
	"errors"
	"testing"

	"taxaudit/internal/cnpjws"
	"taxaudit/internal/model"
	"taxaudit/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestAuditService(t *testing.T, db *gorm.DB, lookup CNPJLookup) AuditService {
	t.Helper()
	logger := zap.NewNop()
	directory := NewDirectoryService(repository.NewSupplierRepository(db), lookup, logger)
	return NewAuditService(
		repository.NewPaymentRepository(db),
		repository.NewRetentionAuditRepository(db),
		repository.NewRetentionRateRepository(db),
		repository.NewClientRepository(db),
		directory,
		repository.NewTransactionManager(db),
		nil, // no websocket hub in tests
		logger,
	)
}

// registryMustNotBeCalled guards tests where every supplier is already known.
var registryMustNotBeCalled = &fakeLookup{err: errors.New("unexpected registry call")}

func TestAuditPayment_RecordsDecompositionAndFlipsStatus(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	supplier := seedSupplier(t, db, "12345678000195", "6201-5/01")
	rate := seedRate(t, db, "6201-5/01", model.LevyMap{
		model.LevyIRRF:   mustDecimal(t, "1.5"),
		model.LevyPIS:    mustDecimal(t, "0.65"),
		model.LevyCOFINS: mustDecimal(t, "3"),
	})
	payment := seedPayment(t, db, client.ID, supplier.ID, "2024-03-15", mustDecimal(t, "1000.00"))

	svc := newTestAuditService(t, db, registryMustNotBeCalled)

	resp, err := svc.AuditPayment(context.Background(), payment.ID)
	require.NoError(t, err)

	assert.Equal(t, payment.ID.String(), resp.PaymentID)
	assert.Equal(t, rate.ID.String(), resp.RateID)
	assert.Equal(t, "1000.00", resp.BaseAmount)
	assert.Equal(t, "15.00", resp.Withheld[model.LevyIRRF])
	assert.Equal(t, "6.50", resp.Withheld[model.LevyPIS])
	assert.Equal(t, "30.00", resp.Withheld[model.LevyCOFINS])
	assert.Equal(t, "51.50", resp.TotalWithheld)
	assert.Equal(t, "948.50", resp.NetValue)
	assert.Equal(t, model.AuditStatusCompleted, resp.Status)
	assert.Equal(t, "12345678000195", resp.SupplierCNPJ)

	var stored model.Payment
	require.NoError(t, db.First(&stored, "id = ?", payment.ID).Error)
	assert.Equal(t, model.PaymentStatusAudited, stored.Status)

	var audit model.RetentionAudit
	require.NoError(t, db.First(&audit, "payment_id = ?", payment.ID).Error)
	assert.True(t, audit.TotalWithheld.Equal(mustDecimal(t, "51.50")))
}

func TestAuditPayment_RejectsSecondAudit(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	supplier := seedSupplier(t, db, "12345678000195", "6201-5/01")
	seedRate(t, db, "6201-5/01", model.LevyMap{model.LevyIRRF: mustDecimal(t, "1.5")})
	payment := seedPayment(t, db, client.ID, supplier.ID, "2024-03-15", mustDecimal(t, "500.00"))

	svc := newTestAuditService(t, db, registryMustNotBeCalled)

	_, err := svc.AuditPayment(context.Background(), payment.ID)
	require.NoError(t, err)

	_, err = svc.AuditPayment(context.Background(), payment.ID)
	assert.True(t, errors.Is(err, ErrAlreadyAudited))

	var count int64
	require.NoError(t, db.Model(&model.RetentionAudit{}).Where("payment_id = ?", payment.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAuditPayment_MissingRateRule(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	supplier := seedSupplier(t, db, "12345678000195", "9999-9/99")
	payment := seedPayment(t, db, client.ID, supplier.ID, "2024-03-15", mustDecimal(t, "500.00"))

	svc := newTestAuditService(t, db, registryMustNotBeCalled)

	_, err := svc.AuditPayment(context.Background(), payment.ID)
	assert.True(t, errors.Is(err, ErrRateRuleNotFound))

	// The payment is untouched so a later run can pick it up once the rate exists.
	var stored model.Payment
	require.NoError(t, db.First(&stored, "id = ?", payment.ID).Error)
	assert.Equal(t, model.PaymentStatusPending, stored.Status)
}

func TestAuditPayments_PartialFailureIsIsolated(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	covered := seedSupplier(t, db, "12345678000195", "6201-5/01")
	uncovered := seedSupplier(t, db, "98765432000110", "0000-0/00")
	seedRate(t, db, "6201-5/01", model.LevyMap{model.LevyIRRF: mustDecimal(t, "1.5")})

	p1 := seedPayment(t, db, client.ID, covered.ID, "2024-03-01", mustDecimal(t, "1000.00"))
	p2 := seedPayment(t, db, client.ID, uncovered.ID, "2024-03-02", mustDecimal(t, "2000.00"))
	p3 := seedPayment(t, db, client.ID, covered.ID, "2024-03-03", mustDecimal(t, "3000.00"))

	svc := newTestAuditService(t, db, registryMustNotBeCalled)

	results := svc.AuditPayments(context.Background(), []uuid.UUID{p1.ID, p2.ID, p3.ID})
	require.Len(t, results, 3)

	assert.NotNil(t, results[0].Audit)
	assert.Empty(t, results[0].Error)

	assert.Nil(t, results[1].Audit)
	assert.Equal(t, "rate_rule_not_found", results[1].ErrorKind)

	assert.NotNil(t, results[2].Audit)
	assert.Equal(t, "45.00", results[2].Audit.Withheld[model.LevyIRRF])

	var auditCount int64
	require.NoError(t, db.Model(&model.RetentionAudit{}).Count(&auditCount).Error)
	assert.EqualValues(t, 2, auditCount)
}

func TestAuditPayments_SupplierLookupFailureMarksPaymentFailed(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	supplier := seedSupplier(t, db, "12345678000195", "6201-5/01")
	seedRate(t, db, "6201-5/01", model.LevyMap{model.LevyIRRF: mustDecimal(t, "1.5")})
	payment := seedPayment(t, db, client.ID, supplier.ID, "2024-03-15", mustDecimal(t, "1000.00"))

	// Remove the supplier so the payment can no longer be identified.
	require.NoError(t, db.Delete(&model.Supplier{}, "id = ?", supplier.ID).Error)

	svc := newTestAuditService(t, db, &fakeLookup{err: errors.New("registry offline")})
	results := svc.AuditPayments(context.Background(), []uuid.UUID{payment.ID})

	require.Len(t, results, 1)
	assert.Nil(t, results[0].Audit)
	assert.Equal(t, "supplier_lookup_failed", results[0].ErrorKind)

	var stored model.Payment
	require.NoError(t, db.First(&stored, "id = ?", payment.ID).Error)
	assert.Equal(t, model.PaymentStatusFailed, stored.Status)
}

func TestAuditPayments_CancelledContextStopsNewItems(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	supplier := seedSupplier(t, db, "12345678000195", "6201-5/01")
	seedRate(t, db, "6201-5/01", model.LevyMap{model.LevyIRRF: mustDecimal(t, "1.5")})
	payment := seedPayment(t, db, client.ID, supplier.ID, "2024-03-01", mustDecimal(t, "1000.00"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestAuditService(t, db, registryMustNotBeCalled)
	results := svc.AuditPayments(ctx, []uuid.UUID{payment.ID})

	require.Len(t, results, 1)
	assert.Equal(t, "cancelled", results[0].ErrorKind)

	var auditCount int64
	require.NoError(t, db.Model(&model.RetentionAudit{}).Count(&auditCount).Error)
	assert.EqualValues(t, 0, auditCount)
}

func TestProcessPayments_RegistersPendingBatch(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	lookup := &fakeLookup{info: &cnpjws.CompanyInfo{
		CorporateName: "Nova Fornecedora Ltda",
		ActivityCode:  "6201-5/01",
	}}

	svc := newTestAuditService(t, db, lookup)

	payments, err := svc.ProcessPayments(context.Background(), ProcessPaymentsRequest{
		ClientID: client.ID.String(),
		Payments: []PaymentInput{
			{SupplierCNPJ: "12.345.678/0001-95", PaymentDate: "2024-04-01", Amount: "1500.00", DocumentRef: "NF-1001"},
			{SupplierCNPJ: "12.345.678/0001-95", PaymentDate: "2024-04-02", Amount: "300.50"},
		},
	})
	require.NoError(t, err)
	require.Len(t, payments, 2)

	// One registry call for the shared CNPJ, both rows PENDING.
	assert.Equal(t, 1, lookup.calls)
	for _, p := range payments {
		assert.Equal(t, model.PaymentStatusPending, p.Status)
		assert.Equal(t, client.ID.String(), p.ClientID)
	}
	assert.Equal(t, "1500.00", payments[0].Amount)
	assert.Equal(t, "2024-04-01", payments[0].PaymentDate)
}

func TestProcessPayments_RejectsBadInput(t *testing.T) {
	db := newTestDB(t)
	client := seedClient(t, db)
	svc := newTestAuditService(t, db, registryMustNotBeCalled)

	_, err := svc.ProcessPayments(context.Background(), ProcessPaymentsRequest{
		ClientID: client.ID.String(),
		Payments: []PaymentInput{{SupplierCNPJ: "12345678000195", PaymentDate: "2024-04-01", Amount: "-10"}},
	})
	assert.Error(t, err)

	_, err = svc.ProcessPayments(context.Background(), ProcessPaymentsRequest{
		ClientID: uuid.NewString(),
		Payments: []PaymentInput{{SupplierCNPJ: "12345678000195", PaymentDate: "2024-04-01", Amount: "10.00"}},
	})
	assert.Error(t, err, "unknown client must be rejected")
}
