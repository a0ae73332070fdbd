package coupons

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/pkg/db/models"
)

// ApplyCouponRequest carries the code the shopper wants on their cart.
type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,min=2,max=40"`
}

// CreateCouponRequest is the admin payload for a new coupon.
type CreateCouponRequest struct {
	Code            string     `json:"code" validate:"required,min=2,max=40"`
	Description     *string    `json:"description" validate:"omitempty,max=300"`
	DiscountPercent int        `json:"discountPercent" validate:"required,gt=0,lte=100"`
	MinOrderCents   *int       `json:"minOrderCents" validate:"omitempty,gte=0"`
	MaxUses         *int       `json:"maxUses" validate:"omitempty,gt=0"`
	StartsAt        *time.Time `json:"startsAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	IsActive        *bool      `json:"isActive"`
}

// UpdateCouponRequest is the admin payload for editing a coupon. The
// code itself is immutable once issued.
type UpdateCouponRequest struct {
	Description     *string    `json:"description" validate:"omitempty,max=300"`
	DiscountPercent *int       `json:"discountPercent" validate:"omitempty,gt=0,lte=100"`
	MinOrderCents   *int       `json:"minOrderCents" validate:"omitempty,gte=0"`
	MaxUses         *int       `json:"maxUses" validate:"omitempty,gt=0"`
	StartsAt        *time.Time `json:"startsAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	IsActive        *bool      `json:"isActive"`
}

// ListParams filters the admin coupon listing.
type ListParams struct {
	ActiveOnly bool
	Page       int
	Limit      int
}

// CouponDTO is the admin view of a coupon.
type CouponDTO struct {
	ID              uuid.UUID  `json:"id"`
	Code            string     `json:"code"`
	Description     *string    `json:"description,omitempty"`
	DiscountPercent int        `json:"discountPercent"`
	MinOrderCents   *int       `json:"minOrderCents,omitempty"`
	MaxUses         *int       `json:"maxUses,omitempty"`
	UsedCount       int        `json:"usedCount"`
	StartsAt        *time.Time `json:"startsAt,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// AppliedDTO is the shopper-facing view of the coupon on their cart.
type AppliedDTO struct {
	Code            string `json:"code"`
	DiscountPercent int    `json:"discountPercent"`
}

// NormalizeCode canonicalizes a coupon code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func couponDTO(coupon *models.Coupon) CouponDTO {
	return CouponDTO{
		ID:              coupon.ID,
		Code:            coupon.Code,
		Description:     coupon.Description,
		DiscountPercent: coupon.DiscountPercent,
		MinOrderCents:   coupon.MinOrderCents,
		MaxUses:         coupon.MaxUses,
		UsedCount:       coupon.UsedCount,
		StartsAt:        coupon.StartsAt,
		ExpiresAt:       coupon.ExpiresAt,
		IsActive:        coupon.IsActive,
		CreatedAt:       coupon.CreatedAt,
		UpdatedAt:       coupon.UpdatedAt,
	}
}
