package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	"github.com/trendora/trendora-backend/pkg/pagination"
)

// Repository exposes product persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a products repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// List returns a filtered, sorted page of products plus the total count.
func (r *Repository) List(ctx context.Context, params ListParams) ([]models.Product, int64, error) {
	page := pagination.Normalize(params.Page)

	query := r.db.WithContext(ctx).Model(&models.Product{})
	query = applyFilters(query, params)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Product
	err := query.
		Order(orderClause(params.Sort, params.SortDesc)).
		Offset(page.Offset()).
		Limit(page.Limit).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Find(&rows).Error
	return rows, total, err
}

func applyFilters(query *gorm.DB, params ListParams) *gorm.DB {
	if !params.IncludeHidden {
		query = query.Where("is_active = TRUE")
	}
	if params.Query != "" {
		like := "%" + params.Query + "%"
		query = query.Where("name ILIKE ? OR description ILIKE ?", like, like)
	}
	if params.Category != "" {
		query = query.Where("category = ?", params.Category)
	}
	if params.Gender != nil {
		query = query.Where("gender = ?", *params.Gender)
	}
	if len(params.Sizes) > 0 {
		query = query.Where("sizes && ?", pq.StringArray(params.Sizes))
	}
	if params.MinPriceCents != nil {
		query = query.Where("price_cents >= ?", *params.MinPriceCents)
	}
	if params.MaxPriceCents != nil {
		query = query.Where("price_cents <= ?", *params.MaxPriceCents)
	}
	if params.InStockOnly {
		query = query.Where("stock > 0")
	}
	return query
}

func orderClause(sort enums.ProductSort, desc bool) string {
	column := "created_at"
	if sort.IsValid() {
		column = string(sort)
	}
	direction := "ASC"
	if desc || column == "created_at" && !sort.IsValid() {
		direction = "DESC"
	}
	return fmt.Sprintf("%s %s, id ASC", column, direction)
}

// FindByID loads a product with its images.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDsForUpdate loads products by ID with a row lock, for checkout.
func (r *Repository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Find(&rows).Error
	return rows, err
}

// Create inserts a product and its image rows.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// Save persists the product row. Image rows are managed separately.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(product).Error
}

// Delete removes a product; image rows cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddImages appends image rows to a product.
func (r *Repository) AddImages(ctx context.Context, images []models.ProductImage) error {
	if len(images) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&images).Error
}

// DeleteImages removes the given image rows from a product.
func (r *Repository) DeleteImages(ctx context.Context, productID uuid.UUID, imageIDs []uuid.UUID) ([]models.ProductImage, error) {
	if len(imageIDs) == 0 {
		return nil, nil
	}
	var rows []models.ProductImage
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND id IN ?", productID, imageIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND id IN ?", productID, imageIDs).
		Delete(&models.ProductImage{}).Error
	return rows, err
}

// AdjustStock decrements stock by the given quantity, guarded so the
// row never goes negative. Returns gorm.ErrRecordNotFound when the
// guard fails.
func (r *Repository) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", productID, delta).
		UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
