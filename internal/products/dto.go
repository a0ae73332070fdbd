package products

import (
	"time"

	"github.com/google/uuid"

	"github.com/trendora/trendora-backend/internal/pricing"
	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	"github.com/trendora/trendora-backend/pkg/pagination"
)

// ImageDTO is the public representation of a product image.
type ImageDTO struct {
	ID       uuid.UUID `json:"id"`
	URL      string    `json:"url"`
	Position int       `json:"position"`
}

// ProductDTO is the public representation of a catalog listing.
type ProductDTO struct {
	ID                   uuid.UUID           `json:"id"`
	Name                 string              `json:"name"`
	Description          string              `json:"description"`
	Category             string              `json:"category"`
	Gender               enums.ProductGender `json:"gender"`
	PriceCents           int                 `json:"priceCents"`
	DiscountPercent      int                 `json:"discountPercent"`
	DiscountedPriceCents int                 `json:"discountedPriceCents"`
	Stock                int                 `json:"stock"`
	Sizes                []string            `json:"sizes"`
	Colors               []string            `json:"colors"`
	Rating               float64             `json:"rating"`
	RatingCount          int                 `json:"ratingCount"`
	IsActive             bool                `json:"isActive"`
	Images               []ImageDTO          `json:"images"`
	CreatedAt            time.Time           `json:"createdAt"`
}

// ToDTO maps the persistence model onto the public shape.
func ToDTO(product *models.Product) *ProductDTO {
	if product == nil {
		return nil
	}
	images := make([]ImageDTO, 0, len(product.Images))
	for _, img := range product.Images {
		images = append(images, ImageDTO{
			ID:       img.ID,
			URL:      img.URL,
			Position: img.Position,
		})
	}
	return &ProductDTO{
		ID:                   product.ID,
		Name:                 product.Name,
		Description:          product.Description,
		Category:             product.Category,
		Gender:               product.Gender,
		PriceCents:           product.PriceCents,
		DiscountPercent:      product.DiscountPercent,
		DiscountedPriceCents: pricing.DiscountedUnitCents(product.PriceCents, product.DiscountPercent),
		Stock:                product.Stock,
		Sizes:                product.Sizes,
		Colors:               product.Colors,
		Rating:               product.Rating,
		RatingCount:          product.RatingCount,
		IsActive:             product.IsActive,
		Images:               images,
		CreatedAt:            product.CreatedAt,
	}
}

// ListParams captures the server-side filter, sort, and page inputs.
type ListParams struct {
	Query         string
	Category      string
	Gender        *enums.ProductGender
	Sizes         []string
	MinPriceCents *int
	MaxPriceCents *int
	InStockOnly   bool
	IncludeHidden bool
	Sort          enums.ProductSort
	SortDesc      bool
	Page          pagination.Params
}

// ListResult is a page of products plus its metadata.
type ListResult struct {
	Products []ProductDTO    `json:"products"`
	Meta     pagination.Meta `json:"meta"`
}

// ImageUpload carries one multipart image received by the admin API.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CreateProductRequest captures the admin create payload.
type CreateProductRequest struct {
	Name            string              `json:"name" validate:"required,max=200"`
	Description     string              `json:"description" validate:"max=5000"`
	Category        string              `json:"category" validate:"required,max=80"`
	Gender          enums.ProductGender `json:"gender" validate:"required"`
	PriceCents      int                 `json:"priceCents" validate:"required,gt=0"`
	DiscountPercent int                 `json:"discountPercent" validate:"gte=0,lte=100"`
	Stock           int                 `json:"stock" validate:"gte=0"`
	Sizes           []string            `json:"sizes" validate:"dive,max=16"`
	Colors          []string            `json:"colors" validate:"dive,max=40"`
	IsActive        *bool               `json:"isActive"`
}

// UpdateProductRequest captures the admin update payload. Image handling
// is explicit: RetainedImageIDs keeps existing rows, DeletedImageIDs
// removes them, and new uploads are appended after the retained set.
type UpdateProductRequest struct {
	Name             *string              `json:"name" validate:"omitempty,max=200"`
	Description      *string              `json:"description" validate:"omitempty,max=5000"`
	Category         *string              `json:"category" validate:"omitempty,max=80"`
	Gender           *enums.ProductGender `json:"gender"`
	PriceCents       *int                 `json:"priceCents" validate:"omitempty,gt=0"`
	DiscountPercent  *int                 `json:"discountPercent" validate:"omitempty,gte=0,lte=100"`
	Stock            *int                 `json:"stock" validate:"omitempty,gte=0"`
	Sizes            []string             `json:"sizes" validate:"dive,max=16"`
	Colors           []string             `json:"colors" validate:"dive,max=40"`
	IsActive         *bool                `json:"isActive"`
	RetainedImageIDs []uuid.UUID          `json:"retainedImageIds"`
	DeletedImageIDs  []uuid.UUID          `json:"deletedImageIds"`
}
