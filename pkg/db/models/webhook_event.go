package models

import "time"

// WebhookEvent records a processed Stripe event ID. The unique primary
// key makes redelivered events no-ops.
type WebhookEvent struct {
	ID          string    `gorm:"column:id;primaryKey"`
	EventType   string    `gorm:"column:event_type;not null"`
	ProcessedAt time.Time `gorm:"column:processed_at;autoCreateTime"`
}
