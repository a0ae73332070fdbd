package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductImage is a stored catalog image. ObjectKey addresses the blob
// in the media bucket; URL is the public serving location.
type ProductImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	URL       string    `gorm:"column:url;not null"`
	ObjectKey string    `gorm:"column:object_key;not null"`
	Position  int       `gorm:"column:position;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
