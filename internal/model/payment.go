package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus enum constants
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusAudited = "AUDITED"
	PaymentStatusFailed  = "FAILED"
)

// Payment is one payment a client made to a supplier, imported for auditing.
// It transitions PENDING -> AUDITED when a RetentionAudit is recorded.
type Payment struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"client_id"`
	Client      *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	SupplierID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier    *Supplier       `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	PaymentDate time.Time       `gorm:"type:date;not null;index" json:"payment_date"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	DocumentRef string          `gorm:"type:varchar(100)" json:"document_ref"` // invoice / nota fiscal number
	Status      string          `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
