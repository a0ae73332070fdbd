package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is a priced line snapshot taken from the cart at checkout.
type OrderItem struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name            string    `gorm:"column:name;not null"`
	ImageURL        *string   `gorm:"column:image_url"`
	Size            *string   `gorm:"column:size"`
	Color           *string   `gorm:"column:color"`
	Quantity        int       `gorm:"column:quantity;not null"`
	UnitPriceCents  int       `gorm:"column:unit_price_cents;not null"`
	DiscountPercent int       `gorm:"column:discount_percent;not null;default:0"`
	LineTotalCents  int       `gorm:"column:line_total_cents;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
