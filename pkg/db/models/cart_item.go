package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/pkg/enums"
	"github.com/trendora/trendora-backend/pkg/types"
)

// CartItem persists a product-level snapshot tied to a CartRecord.
// Lines are rendered in created_at order so settled mutations never
// reshuffle the cart.
type CartItem struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID            uuid.UUID              `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID         uuid.UUID              `gorm:"column:product_id;type:uuid;not null"`
	Size              *string                `gorm:"column:size"`
	Color             *string                `gorm:"column:color"`
	Quantity          int                    `gorm:"column:quantity;not null"`
	UnitPriceCents    int                    `gorm:"column:unit_price_cents;not null"`
	DiscountPercent   int                    `gorm:"column:discount_percent;not null;default:0"`
	LineSubtotalCents int                    `gorm:"column:line_subtotal_cents;not null"`
	Status            enums.CartLineStatus   `gorm:"column:status;type:cart_line_status;not null;default:'ok'"`
	Warnings          types.CartItemWarnings `gorm:"column:warnings;type:jsonb;serializer:json"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
