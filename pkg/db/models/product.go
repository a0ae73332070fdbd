package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/trendora/trendora-backend/pkg/enums"
)

// Product represents a catalog listing.
type Product struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string              `gorm:"column:name;not null"`
	Description     string              `gorm:"column:description;not null;default:''"`
	Category        string              `gorm:"column:category;not null;index"`
	Gender          enums.ProductGender `gorm:"column:gender;type:product_gender;not null;default:'unisex'"`
	PriceCents      int                 `gorm:"column:price_cents;not null"`
	DiscountPercent int                 `gorm:"column:discount_percent;not null;default:0"`
	Stock           int                 `gorm:"column:stock;not null;default:0"`
	Sizes           pq.StringArray      `gorm:"column:sizes;type:text[];not null;default:ARRAY[]::text[]"`
	Colors          pq.StringArray      `gorm:"column:colors;type:text[];not null;default:ARRAY[]::text[]"`
	Rating          float64             `gorm:"column:rating;type:numeric(3,2);not null;default:0"`
	RatingCount     int                 `gorm:"column:rating_count;not null;default:0"`
	IsActive        bool                `gorm:"column:is_active;not null;default:true"`
	Images          []ProductImage      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
