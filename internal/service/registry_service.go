package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taxaudit/internal/model"
	"taxaudit/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Registry services expose the client and supplier directories to the admin
// UI. Suppliers are read-only here — rows are created by the directory, never
// by hand.

// --- DTOs ---

type CreateClientRequest struct {
	Name          string `json:"name" binding:"required"`
	CNPJ          string `json:"cnpj"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email" binding:"omitempty,email"`
	Phone         string `json:"phone"`
}

type ClientResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CNPJ          string `json:"cnpj"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	IsActive      bool   `json:"is_active"`
	CreatedAt     string `json:"created_at"`
}

type SupplierResponse struct {
	ID                 string `json:"id"`
	CNPJ               string `json:"cnpj"`
	CorporateName      string `json:"corporate_name"`
	TradeName          string `json:"trade_name"`
	ActivityCode       string `json:"activity_code"`
	ActivityDesc       string `json:"activity_description"`
	City               string `json:"city"`
	State              string `json:"state"`
	Email              string `json:"email"`
	Phone              string `json:"phone"`
	RegistrationStatus string `json:"registration_status"`
	CreatedAt          string `json:"created_at"`
}

// --- Interfaces ---

type ClientService interface {
	CreateClient(ctx context.Context, req CreateClientRequest) (ClientResponse, error)
	GetClientByID(ctx context.Context, id string) (ClientResponse, error)
	ListClients(ctx context.Context, search string, page, limit int) ([]ClientResponse, int64, error)
}

type SupplierService interface {
	GetSupplierByID(ctx context.Context, id string) (SupplierResponse, error)
	ListSuppliers(ctx context.Context, search string, page, limit int) ([]SupplierResponse, int64, error)
	ResolveSupplier(ctx context.Context, cnpj string) (SupplierResponse, error)
}

type clientService struct {
	clientRepo repository.ClientRepository
}

func NewClientService(clientRepo repository.ClientRepository) ClientService {
	return &clientService{clientRepo: clientRepo}
}

type supplierService struct {
	supplierRepo repository.SupplierRepository
	directory    DirectoryService
}

func NewSupplierService(supplierRepo repository.SupplierRepository, directory DirectoryService) SupplierService {
	return &supplierService{supplierRepo: supplierRepo, directory: directory}
}

// --- Client implementation ---

func (s *clientService) CreateClient(ctx context.Context, req CreateClientRequest) (ClientResponse, error) {
	client := model.Client{
		Name:          req.Name,
		CNPJ:          req.CNPJ,
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		IsActive:      true,
	}

	if err := s.clientRepo.Create(ctx, &client); err != nil {
		return ClientResponse{}, fmt.Errorf("failed to create client: %w", err)
	}

	return toClientResponse(&client), nil
}

func (s *clientService) GetClientByID(ctx context.Context, id string) (ClientResponse, error) {
	clientID, err := uuid.Parse(id)
	if err != nil {
		return ClientResponse{}, fmt.Errorf("invalid client id: %w", err)
	}

	client, err := s.clientRepo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ClientResponse{}, fmt.Errorf("client not found")
		}
		return ClientResponse{}, fmt.Errorf("failed to fetch client: %w", err)
	}

	return toClientResponse(client), nil
}

func (s *clientService) ListClients(ctx context.Context, search string, page, limit int) ([]ClientResponse, int64, error) {
	clients, total, err := s.clientRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch clients: %w", err)
	}

	res := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		res = append(res, toClientResponse(&clients[i]))
	}
	return res, total, nil
}

// --- Supplier implementation ---

func (s *supplierService) GetSupplierByID(ctx context.Context, id string) (SupplierResponse, error) {
	supplierID, err := uuid.Parse(id)
	if err != nil {
		return SupplierResponse{}, fmt.Errorf("invalid supplier id: %w", err)
	}

	supplier, err := s.supplierRepo.FindByID(ctx, supplierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return SupplierResponse{}, fmt.Errorf("supplier not found")
		}
		return SupplierResponse{}, fmt.Errorf("failed to fetch supplier: %w", err)
	}

	return toSupplierResponse(supplier), nil
}

func (s *supplierService) ListSuppliers(ctx context.Context, search string, page, limit int) ([]SupplierResponse, int64, error) {
	suppliers, total, err := s.supplierRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch suppliers: %w", err)
	}

	res := make([]SupplierResponse, 0, len(suppliers))
	for i := range suppliers {
		res = append(res, toSupplierResponse(&suppliers[i]))
	}
	return res, total, nil
}

// ResolveSupplier runs the directory's lookup-or-create for an arbitrary CNPJ
// typed into the admin UI.
func (s *supplierService) ResolveSupplier(ctx context.Context, cnpj string) (SupplierResponse, error) {
	supplier, err := s.directory.ResolveOrCreate(ctx, cnpj)
	if err != nil {
		return SupplierResponse{}, err
	}
	return toSupplierResponse(supplier), nil
}

// --- Helpers ---

func toClientResponse(c *model.Client) ClientResponse {
	return ClientResponse{
		ID:            c.ID.String(),
		Name:          c.Name,
		CNPJ:          c.CNPJ,
		ContactPerson: c.ContactPerson,
		Email:         c.Email,
		Phone:         c.Phone,
		IsActive:      c.IsActive,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
	}
}

func toSupplierResponse(s *model.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:                 s.ID.String(),
		CNPJ:               s.CNPJ,
		CorporateName:      s.CorporateName,
		TradeName:          s.TradeName,
		ActivityCode:       s.ActivityCode,
		ActivityDesc:       s.ActivityDesc,
		City:               s.City,
		State:              s.State,
		Email:              s.Email,
		Phone:              s.Phone,
		RegistrationStatus: s.RegistrationStatus,
		CreatedAt:          s.CreatedAt.Format(time.RFC3339),
	}
}
