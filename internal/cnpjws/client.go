// Package cnpjws wraps the CNPJ.ws public registry API, used to populate
// supplier records the first time an unseen CNPJ shows up in a payment batch.
package cnpjws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const DefaultBaseURL = "https://www.cnpj.ws/api/v1"

// DefaultTimeout bounds a single lookup so a slow registry call fails the
// payment instead of blocking a whole batch.
const DefaultTimeout = 5 * time.Second

// CompanyInfo is the subset of the registry response the audit pipeline needs.
// It decouples internal supplier fields from the upstream schema.
type CompanyInfo struct {
	CNPJ               string
	CorporateName      string
	TradeName          string
	ActivityCode       string
	ActivityDesc       string
	LegalNature        string
	Street             string
	Number             string
	Complement         string
	District           string
	City               string
	State              string
	ZipCode            string
	Email              string
	Phone              string
	RegistrationStatus string
}

// lookupResponse mirrors the CNPJ.ws wire format
type lookupResponse struct {
	CNPJ          string `json:"cnpj"`
	CorporateName string `json:"razao_social"`
	TradeName     string `json:"nome_fantasia"`
	MainActivity  struct {
		Code        string `json:"codigo"`
		Description string `json:"descricao"`
	} `json:"atividade_principal"`
	LegalNature struct {
		Code        string `json:"codigo"`
		Description string `json:"descricao"`
	} `json:"natureza_juridica"`
	Address struct {
		Street     string `json:"logradouro"`
		Number     string `json:"numero"`
		Complement string `json:"complemento"`
		ZipCode    string `json:"cep"`
		District   string `json:"bairro"`
		City       string `json:"municipio"`
		State      string `json:"uf"`
	} `json:"endereco"`
	Email  string `json:"email"`
	Phone  string `json:"telefone"`
	Status string `json:"situacao"`
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NormalizeCNPJ strips formatting characters, keeping digits only
func NormalizeCNPJ(cnpj string) string {
	var b strings.Builder
	for _, r := range cnpj {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Lookup fetches registry data for a CNPJ. The CNPJ is normalized to digits
// before the request.
func (c *Client) Lookup(ctx context.Context, cnpj string) (*CompanyInfo, error) {
	normalized := NormalizeCNPJ(cnpj)
	if normalized == "" {
		return nil, fmt.Errorf("cnpj is empty after normalization")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cnpj/"+normalized, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cnpj lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cnpj lookup returned status %d", resp.StatusCode)
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode cnpj lookup response: %w", err)
	}

	info := mapCompanyInfo(payload)
	if info.CNPJ == "" {
		info.CNPJ = normalized
	}
	if info.CorporateName == "" {
		return nil, fmt.Errorf("cnpj lookup response missing corporate name")
	}

	return info, nil
}

// mapCompanyInfo translates the external schema into internal fields
func mapCompanyInfo(payload lookupResponse) *CompanyInfo {
	return &CompanyInfo{
		CNPJ:               NormalizeCNPJ(payload.CNPJ),
		CorporateName:      payload.CorporateName,
		TradeName:          payload.TradeName,
		ActivityCode:       payload.MainActivity.Code,
		ActivityDesc:       payload.MainActivity.Description,
		LegalNature:        payload.LegalNature.Description,
		Street:             payload.Address.Street,
		Number:             payload.Address.Number,
		Complement:         payload.Address.Complement,
		District:           payload.Address.District,
		City:               payload.Address.City,
		State:              payload.Address.State,
		ZipCode:            payload.Address.ZipCode,
		Email:              payload.Email,
		Phone:              payload.Phone,
		RegistrationStatus: payload.Status,
	}
}
