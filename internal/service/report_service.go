package service

import (
	"context"
	"fmt"
	"time"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

// PeriodReport aggregates audited withholdings for a client over a date
// range. Computed on demand, never persisted.
type PeriodReport struct {
	ClientID      string            `json:"client_id"`
	PeriodStart   string            `json:"period_start"`
	PeriodEnd     string            `json:"period_end"`
	AuditCount    int               `json:"audit_count"`
	TotalBase     string            `json:"total_base"`
	TotalWithheld map[string]string `json:"total_withheld"` // levy name -> summed amount
	GrandWithheld string            `json:"grand_withheld"`
	TotalNet      string            `json:"total_net"`
}

// RetentionStats summarizes payment processing progress for the dashboard
type RetentionStats struct {
	TotalPayments int64  `json:"total_payments"`
	Pending       int64  `json:"pending"`
	Audited       int64  `json:"audited"`
	Failed        int64  `json:"failed"`
	TotalWithheld string `json:"total_withheld"`
}

// --- Interface ---

type ReportService interface {
	GenerateReport(ctx context.Context, clientID uuid.UUID, start, end time.Time) (PeriodReport, error)
	GetStats(ctx context.Context, clientID *uuid.UUID) (RetentionStats, error)
}

type reportService struct {
	auditRepo repository.RetentionAuditRepository
}

func NewReportService(auditRepo repository.RetentionAuditRepository) ReportService {
	return &reportService{auditRepo: auditRepo}
}

// --- Implementation ---

// GenerateReport sums the per-levy withheld amounts, base amounts and net
// values of every audit whose payment falls inside [start, end] inclusive.
// An empty period produces a report with all totals zero. Read-only.
func (s *reportService) GenerateReport(ctx context.Context, clientID uuid.UUID, start, end time.Time) (PeriodReport, error) {
	audits, err := s.auditRepo.ListByClientAndPeriod(ctx, clientID, start, end)
	if err != nil {
		return PeriodReport{}, fmt.Errorf("failed to fetch audits for period: %w", err)
	}

	totalBase := decimal.Zero
	totalNet := decimal.Zero
	grandWithheld := decimal.Zero
	levyTotals := make(map[string]decimal.Decimal)

	for i := range audits {
		totalBase = totalBase.Add(audits[i].BaseAmount)
		totalNet = totalNet.Add(audits[i].NetValue)
		grandWithheld = grandWithheld.Add(audits[i].TotalWithheld)
		for levy, amount := range audits[i].Withheld {
			levyTotals[levy] = levyTotals[levy].Add(amount)
		}
	}

	withheld := make(map[string]string, len(levyTotals))
	for levy, total := range levyTotals {
		withheld[levy] = total.StringFixed(2)
	}

	return PeriodReport{
		ClientID:      clientID.String(),
		PeriodStart:   start.Format("2006-01-02"),
		PeriodEnd:     end.Format("2006-01-02"),
		AuditCount:    len(audits),
		TotalBase:     totalBase.StringFixed(2),
		TotalWithheld: withheld,
		GrandWithheld: grandWithheld.StringFixed(2),
		TotalNet:      totalNet.StringFixed(2),
	}, nil
}

func (s *reportService) GetStats(ctx context.Context, clientID *uuid.UUID) (RetentionStats, error) {
	counts, err := s.auditRepo.CountByStatus(ctx, clientID)
	if err != nil {
		return RetentionStats{}, fmt.Errorf("failed to count payments by status: %w", err)
	}

	stats := RetentionStats{
		Pending: counts[model.PaymentStatusPending],
		Audited: counts[model.PaymentStatusAudited],
		Failed:  counts[model.PaymentStatusFailed],
	}
	for _, c := range counts {
		stats.TotalPayments += c
	}

	total, err := s.auditRepo.SumTotalWithheld(ctx, clientID)
	if err != nil {
		return RetentionStats{}, fmt.Errorf("failed to sum withheld totals: %w", err)
	}
	stats.TotalWithheld = total.StringFixed(2)

	return stats, nil
}
