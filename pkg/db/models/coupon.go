package models

import (
	"time"

	"github.com/google/uuid"
)

// Coupon is a percentage discount code. Codes are stored upper-cased
// and matched case-insensitively at apply time.
type Coupon struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code            string     `gorm:"column:code;not null;uniqueIndex"`
	Description     *string    `gorm:"column:description"`
	DiscountPercent int        `gorm:"column:discount_percent;not null"`
	MinOrderCents   *int       `gorm:"column:min_order_cents"`
	MaxUses         *int       `gorm:"column:max_uses"`
	UsedCount       int        `gorm:"column:used_count;not null;default:0"`
	StartsAt        *time.Time `gorm:"column:starts_at"`
	ExpiresAt       *time.Time `gorm:"column:expires_at"`
	IsActive        bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
