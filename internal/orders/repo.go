package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/pagination"
)

// Repository exposes order persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an order repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func withAssociations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("PaymentIntent")
}

// Create inserts an order with its items and payment intent.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID loads an order with its associations.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := withAssociations(r.db.WithContext(ctx)).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUser loads an order only when it belongs to the user.
func (r *Repository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := withAssociations(r.db.WithContext(ctx)).
		First(&order, "id = ? AND user_id = ?", id, userID).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row for a status transition.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByStripeIntentID resolves an order from its processor intent.
func (r *Repository) FindByStripeIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		First(&intent, "stripe_intent_id = ?", intentID).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, intent.OrderID)
}

// ListByUser returns a page of the user's orders, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID, params ListParams, page pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := withAssociations(query).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListAll returns a filtered page of every order, newest first.
func (r *Repository) ListAll(ctx context.Context, params AdminListParams, page pagination.Params) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := withAssociations(query).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus persists a status transition with its side-effect columns.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdatePayment persists payment intent changes for an order.
func (r *Repository) UpdatePayment(ctx context.Context, orderID uuid.UUID, fields map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("order_id = ?", orderID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// NextOrderNumber reserves the next value from the order number sequence.
func (r *Repository) NextOrderNumber(ctx context.Context) (int64, error) {
	var number int64
	err := r.db.WithContext(ctx).
		Raw("SELECT nextval('order_number_seq')").
		Scan(&number).Error
	return number, err
}
