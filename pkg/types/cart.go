package types

import "github.com/trendora/trendora-backend/pkg/enums"

// CartItemWarning is attached to a cart line when settlement had to
// adjust the requested quantity.
type CartItemWarning struct {
	Type              enums.CartWarningType `json:"type"`
	Message           string                `json:"message"`
	RequestedQuantity int                   `json:"requestedQuantity"`
	CommittedQuantity int                   `json:"committedQuantity"`
}

// CartItemWarnings is stored as a jsonb column on cart lines.
type CartItemWarnings []CartItemWarning
