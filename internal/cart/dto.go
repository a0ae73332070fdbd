package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	"github.com/trendora/trendora-backend/pkg/types"
)

// AddItemRequest captures the payload for adding a product to the cart.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Size      *string   `json:"size" validate:"omitempty,max=16"`
	Color     *string   `json:"color" validate:"omitempty,max=40"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// UpdateQuantityRequest carries the desired quantity for a cart line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// ItemDTO is the public representation of one cart line.
type ItemDTO struct {
	ID                uuid.UUID              `json:"id"`
	ProductID         uuid.UUID              `json:"productId"`
	Name              string                 `json:"name"`
	ImageURL          *string                `json:"imageUrl,omitempty"`
	Size              *string                `json:"size,omitempty"`
	Color             *string                `json:"color,omitempty"`
	Quantity          int                    `json:"quantity"`
	UnitPriceCents    int                    `json:"unitPriceCents"`
	DiscountPercent   int                    `json:"discountPercent"`
	LineSubtotalCents int                    `json:"lineSubtotalCents"`
	Status            enums.CartLineStatus   `json:"status"`
	Warnings          types.CartItemWarnings `json:"warnings,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
}

// AppliedCouponDTO describes the coupon currently applied to the cart.
type AppliedCouponDTO struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discountPercent"`
}

// CartDTO is the full cart view returned to the storefront.
type CartDTO struct {
	Items         []ItemDTO         `json:"items"`
	Totals        Totals            `json:"totals"`
	AppliedCoupon *AppliedCouponDTO `json:"appliedCoupon,omitempty"`
}

func itemDTO(item *models.CartItem, product *models.Product) ItemDTO {
	dto := ItemDTO{
		ID:                item.ID,
		ProductID:         item.ProductID,
		Size:              item.Size,
		Color:             item.Color,
		Quantity:          item.Quantity,
		UnitPriceCents:    item.UnitPriceCents,
		DiscountPercent:   item.DiscountPercent,
		LineSubtotalCents: item.LineSubtotalCents,
		Status:            item.Status,
		Warnings:          item.Warnings,
		CreatedAt:         item.CreatedAt,
	}
	if product != nil {
		dto.Name = product.Name
		if len(product.Images) > 0 {
			dto.ImageURL = &product.Images[0].URL
		}
	}
	return dto
}
