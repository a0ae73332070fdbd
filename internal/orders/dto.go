package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	"github.com/trendora/trendora-backend/pkg/types"
)

// UpdateStatusRequest carries the admin's target order status.
type UpdateStatusRequest struct {
	Status enums.OrderStatus `json:"status" validate:"required"`
}

// ListParams filters a shopper's own order history.
type ListParams struct {
	Status *enums.OrderStatus
	Page   int
	Limit  int
}

// AdminListParams filters the admin order listing.
type AdminListParams struct {
	Status *enums.OrderStatus
	UserID *uuid.UUID
	Page   int
	Limit  int
}

// ItemDTO is one priced line on an order.
type ItemDTO struct {
	ID              uuid.UUID `json:"id"`
	ProductID       uuid.UUID `json:"productId"`
	Name            string    `json:"name"`
	ImageURL        *string   `json:"imageUrl,omitempty"`
	Size            *string   `json:"size,omitempty"`
	Color           *string   `json:"color,omitempty"`
	Quantity        int       `json:"quantity"`
	UnitPriceCents  int       `json:"unitPriceCents"`
	DiscountPercent int       `json:"discountPercent"`
	LineTotalCents  int       `json:"lineTotalCents"`
}

// PaymentDTO reports the payment state attached to an order.
type PaymentDTO struct {
	Method         enums.PaymentMethod `json:"method"`
	Status         enums.PaymentStatus `json:"status"`
	AmountCents    int                 `json:"amountCents"`
	Currency       string              `json:"currency"`
	StripeIntentID *string             `json:"stripeIntentId,omitempty"`
	FailureReason  *string             `json:"failureReason,omitempty"`
	SucceededAt    *time.Time          `json:"succeededAt,omitempty"`
}

// OrderDTO is the full order view shared by the storefront and admin.
type OrderDTO struct {
	ID                  uuid.UUID             `json:"id"`
	UserID              uuid.UUID             `json:"userId"`
	OrderNumber         int64                 `json:"orderNumber"`
	Status              enums.OrderStatus     `json:"status"`
	PaymentMethod       enums.PaymentMethod   `json:"paymentMethod"`
	SubtotalCents       int                   `json:"subtotalCents"`
	ItemDiscountCents   int                   `json:"itemDiscountCents"`
	CouponCode          *string               `json:"couponCode,omitempty"`
	CouponDiscountCents int                   `json:"couponDiscountCents"`
	TotalCents          int                   `json:"totalCents"`
	ShippingAddress     types.AddressSnapshot `json:"shippingAddress"`
	Items               []ItemDTO             `json:"items"`
	Payment             *PaymentDTO           `json:"payment,omitempty"`
	CanceledAt          *time.Time            `json:"canceledAt,omitempty"`
	DeliveredAt         *time.Time            `json:"deliveredAt,omitempty"`
	CreatedAt           time.Time             `json:"createdAt"`
}

// ToDTO maps an order row plus its loaded associations.
func ToDTO(order *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                  order.ID,
		UserID:              order.UserID,
		OrderNumber:         order.OrderNumber,
		Status:              order.Status,
		PaymentMethod:       order.PaymentMethod,
		SubtotalCents:       order.SubtotalCents,
		ItemDiscountCents:   order.ItemDiscountCents,
		CouponCode:          order.CouponCode,
		CouponDiscountCents: order.CouponDiscountCents,
		TotalCents:          order.TotalCents,
		ShippingAddress:     order.ShippingAddress,
		CanceledAt:          order.CanceledAt,
		DeliveredAt:         order.DeliveredAt,
		CreatedAt:           order.CreatedAt,
	}
	dto.Items = make([]ItemDTO, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		dto.Items = append(dto.Items, ItemDTO{
			ID:              item.ID,
			ProductID:       item.ProductID,
			Name:            item.Name,
			ImageURL:        item.ImageURL,
			Size:            item.Size,
			Color:           item.Color,
			Quantity:        item.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
			DiscountPercent: item.DiscountPercent,
			LineTotalCents:  item.LineTotalCents,
		})
	}
	if order.PaymentIntent != nil {
		dto.Payment = &PaymentDTO{
			Method:         order.PaymentIntent.Method,
			Status:         order.PaymentIntent.Status,
			AmountCents:    order.PaymentIntent.AmountCents,
			Currency:       order.PaymentIntent.Currency,
			StripeIntentID: order.PaymentIntent.StripeIntentID,
			FailureReason:  order.PaymentIntent.FailureReason,
			SucceededAt:    order.PaymentIntent.SucceededAt,
		}
	}
	return dto
}
