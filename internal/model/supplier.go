package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegistrationStatus values reported by the CNPJ registry
const (
	RegistrationActive    = "ATIVA"
	RegistrationSuspended = "SUSPENSA"
	RegistrationClosed    = "BAIXADA"
)

// Supplier is a payee company, keyed by its CNPJ (digits only).
// Created lazily the first time a payment references an unseen CNPJ.
type Supplier struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CNPJ               string         `gorm:"type:varchar(14);not null;uniqueIndex" json:"cnpj"`
	CorporateName      string         `gorm:"type:varchar(255);not null" json:"corporate_name"`
	TradeName          string         `gorm:"type:varchar(255)" json:"trade_name"`
	ActivityCode       string         `gorm:"type:varchar(20);index" json:"activity_code"` // primary economic activity (CNAE)
	ActivityDesc       string         `gorm:"type:text" json:"activity_description"`
	LegalNature        string         `gorm:"type:varchar(255)" json:"legal_nature"`
	Street             string         `gorm:"type:varchar(255)" json:"street"`
	Number             string         `gorm:"type:varchar(20)" json:"number"`
	Complement         string         `gorm:"type:varchar(100)" json:"complement"`
	District           string         `gorm:"type:varchar(100)" json:"district"`
	City               string         `gorm:"type:varchar(100)" json:"city"`
	State              string         `gorm:"type:varchar(2)" json:"state"`
	ZipCode            string         `gorm:"type:varchar(10)" json:"zip_code"`
	Email              string         `gorm:"type:varchar(255)" json:"email"`
	Phone              string         `gorm:"type:varchar(50)" json:"phone"`
	RegistrationStatus string         `gorm:"type:varchar(20)" json:"registration_status"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns the ID application-side so inserts work the same on
// postgres and the sqlite driver used in tests.
func (s *Supplier) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
