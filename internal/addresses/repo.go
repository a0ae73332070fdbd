package addresses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/db/models"
)

// Repository exposes address persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an addresses repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListByUser returns the user's addresses, default first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Address, error) {
	var rows []models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC, created_at ASC").
		Find(&rows).Error
	return rows, err
}

// FindByID loads an address owned by the given user.
func (r *Repository) FindByID(ctx context.Context, userID, id uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		First(&address, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// FindDefault loads the user's default address if one exists.
func (r *Repository) FindDefault(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		First(&address, "user_id = ? AND is_default = TRUE", userID).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// Create inserts an address.
func (r *Repository) Create(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

// Save persists the address row.
func (r *Repository) Save(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Save(address).Error
}

// Delete removes an address owned by the user.
func (r *Repository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.Address{}, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearDefault unsets is_default on every address the user owns.
func (r *Repository) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("user_id = ? AND is_default = TRUE", userID).
		UpdateColumn("is_default", false).Error
}

// SetDefault marks the given address as the user's default.
func (r *Repository) SetDefault(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumn("is_default", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByUser returns how many addresses the user has saved.
func (r *Repository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Address{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}
