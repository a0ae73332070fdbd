package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	"github.com/trendora/trendora-backend/pkg/types"
)

// Repository exposes cart persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// GetOrCreateByUser loads the user's cart, creating an empty one on
// first use. Items come back in created_at order so settled mutations
// never reshuffle the cart.
func (r *Repository) GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	var record models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&record, "user_id = ?", userID).Error
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	record = models.CartRecord{UserID: userID}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, err
	}
	record.Items = []models.CartItem{}
	return &record, nil
}

// FindItem loads a cart line by ID, scoped to the given cart.
func (r *Repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		First(&item, "id = ? AND cart_id = ?", itemID, cartID).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByID loads a cart line by ID alone, for settlement where the
// owning cart is not yet known.
func (r *Repository) FindItemByID(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", itemID).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindLine locates an existing line for the same product variant.
func (r *Repository) FindLine(ctx context.Context, cartID, productID uuid.UUID, size, color *string) (*models.CartItem, error) {
	query := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID)
	query = whereNullable(query, "size", size)
	query = whereNullable(query, "color", color)

	var item models.CartItem
	if err := query.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func whereNullable(query *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return query.Where(column + " IS NULL")
	}
	return query.Where(column+" = ?", *value)
}

// CreateItem inserts a cart line.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// SaveItem persists a cart line.
func (r *Repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// MarkProcessing flags a line while a mutation awaits settlement.
func (r *Repository) MarkProcessing(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		UpdateColumn("status", enums.CartLineStatusProcessing).Error
}

// SettleItem commits the final quantity, subtotal, warnings, and status.
func (r *Repository) SettleItem(ctx context.Context, itemID uuid.UUID, quantity, lineSubtotalCents int, warnings types.CartItemWarnings) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{
			"quantity":            quantity,
			"line_subtotal_cents": lineSubtotalCents,
			"warnings":            warnings,
			"status":              enums.CartLineStatusOK,
		}).Error
}

// DeleteItem removes a cart line.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Delete(&models.CartItem{}, "id = ? AND cart_id = ?", itemID, cartID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearItems empties the cart.
func (r *Repository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&models.CartItem{}, "cart_id = ?", cartID).Error
}

// OtherLinesQuantity sums the quantity other lines in the cart hold for
// the same product, used to compute per-line available stock.
func (r *Repository) OtherLinesQuantity(ctx context.Context, cartID, productID, excludeItemID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ? AND id <> ?", cartID, productID, excludeItemID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	return int(total), err
}
