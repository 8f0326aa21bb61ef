package model

import (
	"time"

	"github.com/google/uuid"
)

// Category maps a merchant-facing product category to its default HS6
// classification, used when a quote request carries no explicit code.
type Category struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Key        string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"key"`
	Name       string    `gorm:"type:varchar(100);not null" json:"name"`
	DefaultHS6 string    `gorm:"column:default_hs6;type:varchar(6);not null" json:"default_hs6"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
