package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/pkg/enums"
)

// PaymentIntent tracks payment progress for an order. For card orders
// StripeIntentID links the row to the processor; settlement only moves
// off PENDING when the webhook confirms it.
type PaymentIntent struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Method         enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status         enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'PENDING'"`
	AmountCents    int                 `gorm:"column:amount_cents;not null"`
	Currency       string              `gorm:"column:currency;not null;default:'usd'"`
	StripeIntentID *string             `gorm:"column:stripe_intent_id;uniqueIndex"`
	FailureReason  *string             `gorm:"column:failure_reason"`
	SucceededAt    *time.Time          `gorm:"column:succeeded_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
