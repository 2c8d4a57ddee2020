package service

import (
	"context"
	"errors"
	"fmt"

	"taxaudit/internal/cnpjws"
	"taxaudit/internal/model"
	"taxaudit/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CNPJLookup is the slice of the registry client the directory needs.
// *cnpjws.Client satisfies it; tests substitute a fake.
type CNPJLookup interface {
	Lookup(ctx context.Context, cnpj string) (*cnpjws.CompanyInfo, error)
}

// DirectoryService resolves a CNPJ to a registered supplier, creating the
// record from the public registry on first sight.
type DirectoryService interface {
	ResolveOrCreate(ctx context.Context, cnpj string) (*model.Supplier, error)
}

type directoryService struct {
	supplierRepo repository.SupplierRepository
	lookup       CNPJLookup
	logger       *zap.Logger
}

func NewDirectoryService(supplierRepo repository.SupplierRepository, lookup CNPJLookup, logger *zap.Logger) DirectoryService {
	return &directoryService{supplierRepo: supplierRepo, lookup: lookup, logger: logger}
}

// ResolveOrCreate looks up the supplier by normalized CNPJ, consulting the
// CNPJ registry and persisting a new record on a store miss. Creation is
// idempotent: a concurrent creator of the same CNPJ wins the unique index and
// the loser re-reads, so at most one supplier row exists per CNPJ. The
// directory does not retry failed registry calls — that is the caller's call.
func (s *directoryService) ResolveOrCreate(ctx context.Context, cnpj string) (*model.Supplier, error) {
	normalized := cnpjws.NormalizeCNPJ(cnpj)
	if normalized == "" {
		return nil, fmt.Errorf("%w: empty cnpj", ErrSupplierLookupFailed)
	}

	supplier, err := s.supplierRepo.FindByCNPJ(ctx, normalized)
	if err == nil {
		return supplier, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrSupplierLookupFailed, err)
	}

	info, err := s.lookup.Lookup(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSupplierLookupFailed, err)
	}

	newSupplier := &model.Supplier{
		CNPJ:               info.CNPJ,
		CorporateName:      info.CorporateName,
		TradeName:          info.TradeName,
		ActivityCode:       info.ActivityCode,
		ActivityDesc:       info.ActivityDesc,
		LegalNature:        info.LegalNature,
		Street:             info.Street,
		Number:             info.Number,
		Complement:         info.Complement,
		District:           info.District,
		City:               info.City,
		State:              info.State,
		ZipCode:            info.ZipCode,
		Email:              info.Email,
		Phone:              info.Phone,
		RegistrationStatus: info.RegistrationStatus,
	}

	created, err := s.supplierRepo.CreateIfAbsent(ctx, newSupplier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSupplierLookupFailed, err)
	}
	if !created {
		// Lost the creation race: another request inserted this CNPJ first.
		winner, err := s.supplierRepo.FindByCNPJ(ctx, normalized)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSupplierLookupFailed, err)
		}
		return winner, nil
	}

	s.logger.Info("registered new supplier from CNPJ registry",
		zap.String("cnpj", newSupplier.CNPJ),
		zap.String("corporate_name", newSupplier.CorporateName),
		zap.String("activity_code", newSupplier.ActivityCode))

	return newSupplier, nil
}
