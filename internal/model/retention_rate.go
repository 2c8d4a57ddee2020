package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Common levy names. The set is data-driven — a rate rule may define any
// subset of these (or additional ones defined by regulation).
const (
	LevyIRRF   = "irrf"
	LevyPIS    = "pis"
	LevyCOFINS = "cofins"
	LevyCSLL   = "csll"
	LevyINSS   = "inss"
	LevyISS    = "iss"
)

// LevyMap maps a levy name to a decimal value. On a RetentionRate the values
// are percentages (0-100); on a RetentionAudit they are withheld amounts.
// Stored as a JSON column.
type LevyMap map[string]decimal.Decimal

// Value implements driver.Valuer
func (m LevyMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (m *LevyMap) Scan(value interface{}) error {
	if value == nil {
		*m = LevyMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for LevyMap", value)
	}
	return json.Unmarshal(data, m)
}

// Total returns the sum of all values in the map
func (m LevyMap) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range m {
		total = total.Add(v)
	}
	return total
}

// RetentionRate is reference data: the withholding percentages applicable to
// suppliers with a given economic activity code. Never mutated by the audit
// pipeline itself.
type RetentionRate struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ActivityCode string    `gorm:"type:varchar(20);not null;uniqueIndex" json:"activity_code"`
	ActivityDesc string    `gorm:"type:text" json:"activity_description"`
	Rates        LevyMap   `gorm:"type:jsonb;not null" json:"rates"` // levy name -> percentage
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *RetentionRate) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
