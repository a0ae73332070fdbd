package stripewebhook

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trendora/trendora-backend/pkg/db/models"
)

// Repository records processed webhook deliveries.
type Repository struct{}

// NewRepository constructs the webhook event repo.
func NewRepository() *Repository {
	return &Repository{}
}

// MarkProcessed inserts the event ID, reporting whether an earlier
// delivery already claimed it. The insert rides the handler's
// transaction, so a rollback releases the ID for the next retry.
func (r *Repository) MarkProcessed(tx *gorm.DB, eventID, eventType string) (bool, error) {
	row := models.WebhookEvent{ID: eventID, EventType: eventType}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 0, nil
}
