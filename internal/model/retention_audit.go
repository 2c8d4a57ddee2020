package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AuditStatus enum constants
const (
	AuditStatusCompleted = "COMPLETED"
)

// RetentionAudit records the withholding decomposition computed for one
// payment. At most one audit exists per payment (unique index on PaymentID).
// Audits are immutable once created — corrections require a compensating record.
type RetentionAudit struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"payment_id"`
	Payment       *Payment        `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
	SupplierID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Supplier      *Supplier       `gorm:"foreignKey:SupplierID" json:"supplier,omitempty"`
	RateID        uuid.UUID       `gorm:"type:uuid;not null" json:"rate_id"`
	Rate          *RetentionRate  `gorm:"foreignKey:RateID" json:"rate,omitempty"`
	BaseAmount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"base_amount"`
	Withheld      LevyMap         `gorm:"type:jsonb;not null" json:"withheld"` // levy name -> withheld amount
	TotalWithheld decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_withheld"`
	NetValue      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"net_value"`
	Status        string          `gorm:"type:varchar(20);not null" json:"status"`
	Notes         string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}

func (a *RetentionAudit) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
