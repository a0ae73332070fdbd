package checkout

import (
	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/internal/orders"
	"github.com/trendora/trendora-backend/pkg/enums"
)

// PlaceOrderRequest captures the checkout payload. AddressID is
// optional; the default shipping address is used when it is omitted.
type PlaceOrderRequest struct {
	PaymentMethod enums.PaymentMethod `json:"paymentMethod" validate:"required"`
	AddressID     *uuid.UUID          `json:"addressId"`
}

// ResultDTO is the outcome of a successful checkout. ClientSecret is
// present only for card orders; the storefront uses it to confirm the
// payment with the processor.
type ResultDTO struct {
	Order        orders.OrderDTO `json:"order"`
	ClientSecret *string         `json:"clientSecret,omitempty"`
}
