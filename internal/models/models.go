package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a registered account. The password hash is never serialized.
type User struct {
	ID           uuid.UUID `json:"id" db:"id" gorm:"type:uuid;primaryKey"`
	Username     string    `json:"username" db:"username" gorm:"uniqueIndex;not null"`
	Email        string    `json:"email" db:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" db:"password_hash" gorm:"not null"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	IsActive     bool      `json:"is_active" db:"is_active" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// BeforeCreate assigns an ID when the caller has not set one.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Operands is the ordered list of inputs to a calculation, persisted as a
// JSON array (TEXT in sqlite, JSONB in postgres).
type Operands []float64

// Value implements driver.Valuer. It returns the JSON text as a string so
// that lib/pq sends it as a jsonb literal rather than bytea.
func (o Operands) Value() (driver.Value, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (o *Operands) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return fmt.Errorf("operands: cannot scan %T", src)
	}
}

// Calculation is one stored arithmetic operation owned by a user. The result
// column always holds the fold of the operands under the kind as of the last
// write; callers recompute it before every create and update.
type Calculation struct {
	ID        uuid.UUID `json:"id" db:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"user_id" db:"user_id" gorm:"type:uuid;not null;index"`
	Kind      string    `json:"kind" db:"kind" gorm:"not null;index"`
	Operands  Operands  `json:"operands" db:"operands" gorm:"type:text;not null"`
	Result    float64   `json:"result" db:"result" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BeforeCreate assigns an ID when the caller has not set one.
func (c *Calculation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
