package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"
	ws "taxaudit/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// maxConcurrentAudits bounds how many payments are audited in parallel so a
// large batch does not overwhelm the CNPJ registry.
const maxConcurrentAudits = 4

// --- DTOs ---

type PaymentInput struct {
	SupplierCNPJ string `json:"supplier_cnpj" binding:"required"`
	PaymentDate  string `json:"payment_date" binding:"required"` // YYYY-MM-DD
	Amount       string `json:"amount" binding:"required"`       // Decimal string, e.g. "1500.00"
	Description  string `json:"description"`
	DocumentRef  string `json:"document_ref"`
}

type ProcessPaymentsRequest struct {
	ClientID string         `json:"client_id" binding:"required"`
	Payments []PaymentInput `json:"payments" binding:"required,min=1,dive"`
}

type RunAuditsRequest struct {
	PaymentIDs []string `json:"payment_ids" binding:"required,min=1"`
}

type AuditResponse struct {
	ID            string            `json:"id"`
	PaymentID     string            `json:"payment_id"`
	SupplierID    string            `json:"supplier_id"`
	SupplierCNPJ  string            `json:"supplier_cnpj,omitempty"`
	SupplierName  string            `json:"supplier_name,omitempty"`
	RateID        string            `json:"rate_id"`
	BaseAmount    string            `json:"base_amount"`
	Withheld      map[string]string `json:"withheld"`
	TotalWithheld string            `json:"total_withheld"`
	NetValue      string            `json:"net_value"`
	Status        string            `json:"status"`
	Notes         string            `json:"notes"`
	CreatedAt     string            `json:"created_at"`
}

// AuditItemResult reports the outcome of one payment in a batch run. Exactly
// one of Audit / Error is set.
type AuditItemResult struct {
	PaymentID string         `json:"payment_id"`
	Audit     *AuditResponse `json:"audit,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind string         `json:"error_kind,omitempty"`
}

type PaymentResponse struct {
	ID           string `json:"id"`
	ClientID     string `json:"client_id"`
	SupplierID   string `json:"supplier_id"`
	SupplierCNPJ string `json:"supplier_cnpj,omitempty"`
	SupplierName string `json:"supplier_name,omitempty"`
	PaymentDate  string `json:"payment_date"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	DocumentRef  string `json:"document_ref"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// --- Interface ---

type AuditService interface {
	ProcessPayments(ctx context.Context, req ProcessPaymentsRequest) ([]PaymentResponse, error)
	AuditPayment(ctx context.Context, paymentID uuid.UUID) (AuditResponse, error)
	AuditPayments(ctx context.Context, paymentIDs []uuid.UUID) []AuditItemResult
	ListAudits(ctx context.Context, page, limit int) ([]AuditResponse, int64, error)
	ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]PaymentResponse, int64, error)
}

type auditService struct {
	paymentRepo repository.PaymentRepository
	auditRepo   repository.RetentionAuditRepository
	rateRepo    repository.RetentionRateRepository
	clientRepo  repository.ClientRepository
	directory   DirectoryService
	txManager   repository.TransactionManager
	hub         *ws.Hub // optional; nil disables event broadcasting
	logger      *zap.Logger
}

func NewAuditService(
	paymentRepo repository.PaymentRepository,
	auditRepo repository.RetentionAuditRepository,
	rateRepo repository.RetentionRateRepository,
	clientRepo repository.ClientRepository,
	directory DirectoryService,
	txManager repository.TransactionManager,
	hub *ws.Hub,
	logger *zap.Logger,
) AuditService {
	return &auditService{
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
		rateRepo:    rateRepo,
		clientRepo:  clientRepo,
		directory:   directory,
		txManager:   txManager,
		hub:         hub,
		logger:      logger,
	}
}

// --- Implementation ---

// ProcessPayments registers a batch of imported payment descriptors for a
// client, resolving each supplier CNPJ through the directory first. The
// created payments are left PENDING for a subsequent audit run.
func (s *auditService) ProcessPayments(ctx context.Context, req ProcessPaymentsRequest) ([]PaymentResponse, error) {
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return nil, fmt.Errorf("invalid client_id: %w", err)
	}
	if _, err := s.clientRepo.FindByID(ctx, clientID); err != nil {
		return nil, fmt.Errorf("client not found: %w", err)
	}

	payments := make([]model.Payment, 0, len(req.Payments))
	// Resolve each distinct CNPJ once; the directory dedupes store rows anyway
	// but this avoids redundant registry calls within one batch.
	suppliers := make(map[string]*model.Supplier)
	for i, item := range req.Payments {
		amount, err := decimal.NewFromString(item.Amount)
		if err != nil {
			return nil, fmt.Errorf("payment %d: invalid amount: %w", i, err)
		}
		if !amount.IsPositive() {
			return nil, fmt.Errorf("payment %d: amount must be positive", i)
		}

		paymentDate, err := time.Parse("2006-01-02", item.PaymentDate)
		if err != nil {
			return nil, fmt.Errorf("payment %d: invalid payment_date (expected YYYY-MM-DD): %w", i, err)
		}

		supplier, ok := suppliers[item.SupplierCNPJ]
		if !ok {
			supplier, err = s.directory.ResolveOrCreate(ctx, item.SupplierCNPJ)
			if err != nil {
				return nil, fmt.Errorf("payment %d: %w", i, err)
			}
			suppliers[item.SupplierCNPJ] = supplier
		}

		payments = append(payments, model.Payment{
			ClientID:    clientID,
			SupplierID:  supplier.ID,
			PaymentDate: paymentDate,
			Amount:      amount,
			Description: item.Description,
			DocumentRef: item.DocumentRef,
			Status:      model.PaymentStatusPending,
		})
	}

	if err := s.paymentRepo.CreateBatch(ctx, payments); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	res := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		res = append(res, toPaymentResponse(&payments[i]))
	}
	return res, nil
}

// AuditPayment runs the full pipeline for one payment: resolve supplier, look
// up the retention rate for its activity code, compute the decomposition and
// persist the audit while flipping the payment to AUDITED. The audit insert
// and the status update share one transaction. A payment that already has an
// audit yields ErrAlreadyAudited.
func (s *auditService) AuditPayment(ctx context.Context, paymentID uuid.UUID) (AuditResponse, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AuditResponse{}, fmt.Errorf("payment %s not found", paymentID)
		}
		return AuditResponse{}, fmt.Errorf("failed to fetch payment: %w", err)
	}

	if _, err := s.auditRepo.FindByPaymentID(ctx, paymentID); err == nil {
		return AuditResponse{}, fmt.Errorf("%w: payment %s", ErrAlreadyAudited, paymentID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return AuditResponse{}, fmt.Errorf("failed to check existing audit: %w", err)
	}

	if payment.Supplier == nil {
		return AuditResponse{}, fmt.Errorf("%w: payment %s has no supplier", ErrSupplierLookupFailed, paymentID)
	}
	// Re-resolve through the directory so the audit always references the
	// canonical supplier row, even if the payment was imported elsewhere.
	supplier, err := s.directory.ResolveOrCreate(ctx, payment.Supplier.CNPJ)
	if err != nil {
		return AuditResponse{}, err
	}

	rate, err := s.rateRepo.FindByActivityCode(ctx, supplier.ActivityCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return AuditResponse{}, fmt.Errorf("%w: %q", ErrRateRuleNotFound, supplier.ActivityCode)
		}
		return AuditResponse{}, fmt.Errorf("failed to fetch retention rate: %w", err)
	}

	result, err := ComputeRetention(payment.Amount, rate)
	if err != nil {
		return AuditResponse{}, err
	}

	audit := model.RetentionAudit{
		PaymentID:     payment.ID,
		SupplierID:    supplier.ID,
		RateID:        rate.ID,
		BaseAmount:    payment.Amount,
		Withheld:      result.Withheld,
		TotalWithheld: result.TotalWithheld,
		NetValue:      result.NetValue,
		Status:        model.AuditStatusCompleted,
		Notes:         "Audit performed automatically",
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.auditRepo.Create(txCtx, &audit); err != nil {
			return err
		}
		return s.paymentRepo.UpdateStatus(txCtx, payment.ID, model.PaymentStatusAudited)
	})
	if err != nil {
		// The unique index on payment_id guards the re-audit race: if another
		// run committed first, report the duplicate rather than a write error.
		if _, findErr := s.auditRepo.FindByPaymentID(ctx, paymentID); findErr == nil {
			return AuditResponse{}, fmt.Errorf("%w: payment %s", ErrAlreadyAudited, paymentID)
		}
		return AuditResponse{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	s.logger.Info("payment audited",
		zap.String("payment_id", payment.ID.String()),
		zap.String("supplier_cnpj", supplier.CNPJ),
		zap.String("base_amount", payment.Amount.StringFixed(2)),
		zap.String("net_value", result.NetValue.StringFixed(2)))

	resp := toAuditResponse(&audit)
	resp.SupplierCNPJ = supplier.CNPJ
	resp.SupplierName = supplier.CorporateName

	s.broadcastEvent("audit_completed", resp)

	return resp, nil
}

// AuditPayments audits a batch with bounded concurrency. Items are
// independent: one payment's failure is captured in its slot of the result
// slice and never aborts siblings. Cancelling the context stops new items
// from starting; audits already in flight run to completion so no
// half-written records are left behind.
func (s *auditService) AuditPayments(ctx context.Context, paymentIDs []uuid.UUID) []AuditItemResult {
	results := make([]AuditItemResult, len(paymentIDs))

	var g errgroup.Group
	g.SetLimit(maxConcurrentAudits)

	for i, id := range paymentIDs {
		if ctx.Err() != nil {
			results[i] = AuditItemResult{PaymentID: id.String(), Error: "batch cancelled", ErrorKind: "cancelled"}
			continue
		}

		g.Go(func() error {
			audit, err := s.AuditPayment(ctx, id)
			if err != nil {
				// An unidentifiable supplier parks the payment as FAILED so the
				// stats surface it. Other failures (missing rate, duplicate)
				// leave the status alone: those items are retried by a later
				// run once the reference data exists.
				if errors.Is(err, ErrSupplierLookupFailed) {
					if updErr := s.paymentRepo.UpdateStatus(ctx, id, model.PaymentStatusFailed); updErr != nil {
						s.logger.Warn("could not mark payment as failed",
							zap.String("payment_id", id.String()), zap.Error(updErr))
					}
				}
				results[i] = AuditItemResult{PaymentID: id.String(), Error: err.Error(), ErrorKind: errorKind(err)}
				s.broadcastEvent("audit_failed", results[i])
				return nil
			}
			results[i] = AuditItemResult{PaymentID: id.String(), Audit: &audit}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (s *auditService) ListAudits(ctx context.Context, page, limit int) ([]AuditResponse, int64, error) {
	audits, total, err := s.auditRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audits: %w", err)
	}

	res := make([]AuditResponse, 0, len(audits))
	for i := range audits {
		resp := toAuditResponse(&audits[i])
		if audits[i].Supplier != nil {
			resp.SupplierCNPJ = audits[i].Supplier.CNPJ
			resp.SupplierName = audits[i].Supplier.CorporateName
		}
		res = append(res, resp)
	}
	return res, total, nil
}

func (s *auditService) ListPayments(ctx context.Context, filter repository.PaymentFilter) ([]PaymentResponse, int64, error) {
	payments, total, err := s.paymentRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch payments: %w", err)
	}

	res := make([]PaymentResponse, 0, len(payments))
	for i := range payments {
		res = append(res, toPaymentResponse(&payments[i]))
	}
	return res, total, nil
}

// --- Helpers ---

// errorKind maps a pipeline error to a stable machine-readable tag for batch
// result consumers.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrSupplierLookupFailed):
		return "supplier_lookup_failed"
	case errors.Is(err, ErrRateRuleNotFound):
		return "rate_rule_not_found"
	case errors.Is(err, ErrInvalidRateRule):
		return "invalid_rate_rule"
	case errors.Is(err, ErrAlreadyAudited):
		return "already_audited"
	case errors.Is(err, ErrPersistenceFailed):
		return "persistence_failed"
	default:
		return "internal"
	}
}

func (s *auditService) broadcastEvent(event string, payload interface{}) {
	if s.hub == nil {
		return
	}
	msg, err := json.Marshal(map[string]interface{}{"event": event, "data": payload})
	if err != nil {
		return
	}
	s.hub.Broadcast <- msg
}

func toAuditResponse(a *model.RetentionAudit) AuditResponse {
	withheld := make(map[string]string, len(a.Withheld))
	for levy, amount := range a.Withheld {
		withheld[levy] = amount.StringFixed(2)
	}

	return AuditResponse{
		ID:            a.ID.String(),
		PaymentID:     a.PaymentID.String(),
		SupplierID:    a.SupplierID.String(),
		RateID:        a.RateID.String(),
		BaseAmount:    a.BaseAmount.StringFixed(2),
		Withheld:      withheld,
		TotalWithheld: a.TotalWithheld.StringFixed(2),
		NetValue:      a.NetValue.StringFixed(2),
		Status:        a.Status,
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

func toPaymentResponse(p *model.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:          p.ID.String(),
		ClientID:    p.ClientID.String(),
		SupplierID:  p.SupplierID.String(),
		PaymentDate: p.PaymentDate.Format("2006-01-02"),
		Amount:      p.Amount.StringFixed(2),
		Description: p.Description,
		DocumentRef: p.DocumentRef,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt.Format(time.RFC3339),
	}
	if p.Supplier != nil {
		resp.SupplierCNPJ = p.Supplier.CNPJ
		resp.SupplierName = p.Supplier.CorporateName
	}
	return resp
}
