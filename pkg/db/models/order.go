package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/pkg/enums"
	"github.com/trendora/trendora-backend/pkg/types"
)

// Order is the committed result of a checkout. Pricing columns are
// snapshots; catalog edits after placement never change them.
type Order struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	OrderNumber         int64                 `gorm:"column:order_number;not null;uniqueIndex"`
	Status              enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'PENDING'"`
	PaymentMethod       enums.PaymentMethod   `gorm:"column:payment_method;type:payment_method;not null"`
	SubtotalCents       int                   `gorm:"column:subtotal_cents;not null"`
	ItemDiscountCents   int                   `gorm:"column:item_discount_cents;not null;default:0"`
	CouponCode          *string               `gorm:"column:coupon_code"`
	CouponDiscountCents int                   `gorm:"column:coupon_discount_cents;not null;default:0"`
	TotalCents          int                   `gorm:"column:total_cents;not null"`
	ShippingAddress     types.AddressSnapshot `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	Items               []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaymentIntent       *PaymentIntent        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CanceledAt          *time.Time            `gorm:"column:canceled_at"`
	DeliveredAt         *time.Time            `gorm:"column:delivered_at"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
