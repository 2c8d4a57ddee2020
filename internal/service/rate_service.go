package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateRetentionRateRequest struct {
	ActivityCode string            `json:"activity_code" binding:"required"`
	ActivityDesc string            `json:"activity_description"`
	Rates        map[string]string `json:"rates" binding:"required"` // levy name -> percentage string, e.g. {"irrf": "1.5"}
}

type UpdateRetentionRateRequest struct {
	ActivityDesc string            `json:"activity_description"`
	Rates        map[string]string `json:"rates" binding:"required"`
}

type RetentionRateResponse struct {
	ID           string            `json:"id"`
	ActivityCode string            `json:"activity_code"`
	ActivityDesc string            `json:"activity_description"`
	Rates        map[string]string `json:"rates"`
	TotalPct     string            `json:"total_pct"`
	CreatedAt    string            `json:"created_at"`
}

// --- Interface ---

type RateService interface {
	GetRates(ctx context.Context, page, limit int) ([]RetentionRateResponse, int64, error)
	CreateRate(ctx context.Context, req CreateRetentionRateRequest) (RetentionRateResponse, error)
	UpdateRate(ctx context.Context, id string, req UpdateRetentionRateRequest) (RetentionRateResponse, error)
	DeleteRate(ctx context.Context, id string) error
}

type rateService struct {
	rateRepo repository.RetentionRateRepository
}

func NewRateService(rateRepo repository.RetentionRateRepository) RateService {
	return &rateService{rateRepo: rateRepo}
}

// --- Implementation ---

func (s *rateService) GetRates(ctx context.Context, page, limit int) ([]RetentionRateResponse, int64, error) {
	rates, total, err := s.rateRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch retention rates: %w", err)
	}

	res := make([]RetentionRateResponse, 0, len(rates))
	for i := range rates {
		res = append(res, toRateResponse(&rates[i]))
	}
	return res, total, nil
}

func (s *rateService) CreateRate(ctx context.Context, req CreateRetentionRateRequest) (RetentionRateResponse, error) {
	rates, err := parseLevyRates(req.Rates)
	if err != nil {
		return RetentionRateResponse{}, err
	}

	rate := model.RetentionRate{
		ActivityCode: req.ActivityCode,
		ActivityDesc: req.ActivityDesc,
		Rates:        rates,
	}

	if err := s.rateRepo.Create(ctx, &rate); err != nil {
		return RetentionRateResponse{}, fmt.Errorf("failed to create retention rate: %w", err)
	}

	return toRateResponse(&rate), nil
}

func (s *rateService) UpdateRate(ctx context.Context, id string, req UpdateRetentionRateRequest) (RetentionRateResponse, error) {
	rateID, err := uuid.Parse(id)
	if err != nil {
		return RetentionRateResponse{}, fmt.Errorf("invalid retention rate id: %w", err)
	}

	rate, err := s.rateRepo.FindByID(ctx, rateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RetentionRateResponse{}, fmt.Errorf("retention rate not found")
		}
		return RetentionRateResponse{}, fmt.Errorf("failed to fetch retention rate: %w", err)
	}

	rates, err := parseLevyRates(req.Rates)
	if err != nil {
		return RetentionRateResponse{}, err
	}

	rate.Rates = rates
	if req.ActivityDesc != "" {
		rate.ActivityDesc = req.ActivityDesc
	}

	if err := s.rateRepo.Update(ctx, rate); err != nil {
		return RetentionRateResponse{}, fmt.Errorf("failed to update retention rate: %w", err)
	}

	return toRateResponse(rate), nil
}

func (s *rateService) DeleteRate(ctx context.Context, id string) error {
	rateID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid retention rate id: %w", err)
	}

	if _, err := s.rateRepo.FindByID(ctx, rateID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("retention rate not found")
		}
		return fmt.Errorf("failed to fetch retention rate: %w", err)
	}

	return s.rateRepo.Delete(ctx, rateID)
}

// --- Helpers ---

// parseLevyRates validates percentage strings: non-negative, and summing to
// at most 100% so the calculator can never produce a negative net value.
func parseLevyRates(raw map[string]string) (model.LevyMap, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: at least one levy percentage is required", ErrInvalidRateRule)
	}

	rates := make(model.LevyMap, len(raw))
	total := decimal.Zero
	for levy, pctStr := range raw {
		pct, err := decimal.NewFromString(pctStr)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid percentage for levy %q: %v", ErrInvalidRateRule, levy, err)
		}
		if pct.IsNegative() {
			return nil, fmt.Errorf("%w: negative percentage for levy %q", ErrInvalidRateRule, levy)
		}
		rates[levy] = pct
		total = total.Add(pct)
	}

	if total.GreaterThan(oneHundred) {
		return nil, fmt.Errorf("%w: percentages sum to %s%%", ErrInvalidRateRule, total.String())
	}

	return rates, nil
}

func toRateResponse(r *model.RetentionRate) RetentionRateResponse {
	rates := make(map[string]string, len(r.Rates))
	for levy, pct := range r.Rates {
		rates[levy] = pct.String()
	}

	return RetentionRateResponse{
		ID:           r.ID.String(),
		ActivityCode: r.ActivityCode,
		ActivityDesc: r.ActivityDesc,
		Rates:        rates,
		TotalPct:     r.Rates.Total().String(),
		CreatedAt:    r.CreatedAt.Format(time.RFC3339),
	}
}
