package products

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/db/models"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/pagination"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Service defines the catalog behavior needed by the controllers.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	Create(ctx context.Context, req CreateProductRequest, images []ImageUpload) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest, images []ImageUpload) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type repository interface {
	List(ctx context.Context, params ListParams) ([]models.Product, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Save(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	AddImages(ctx context.Context, images []models.ProductImage) error
	DeleteImages(ctx context.Context, productID uuid.UUID, imageIDs []uuid.UUID) ([]models.ProductImage, error)
}

type objectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	repo      repository
	store     objectStore
	logg      *logger.Logger
	maxImages int
}

// ServiceParams bundles the dependencies required to build a products service.
type ServiceParams struct {
	Repo                repository
	Store               objectStore
	Logger              *logger.Logger
	MaxImagesPerProduct int
}

// NewService constructs a products service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("products repository is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	maxImages := params.MaxImagesPerProduct
	if maxImages <= 0 {
		maxImages = 8
	}
	return &service{
		repo:      params.Repo,
		store:     params.Store,
		logg:      params.Logger,
		maxImages: maxImages,
	}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	rows, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}

	dtos := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *ToDTO(&rows[i]))
	}
	return &ListResult{
		Products: dtos,
		Meta:     pagination.BuildMeta(params.Page, total),
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return ToDTO(product), nil
}

func (s *service) Create(ctx context.Context, req CreateProductRequest, images []ImageUpload) (*ProductDTO, error) {
	if !req.Gender.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid gender")
	}
	if len(images) > s.maxImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d images allowed", s.maxImages))
	}

	product := &models.Product{
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		Category:        strings.TrimSpace(req.Category),
		Gender:          req.Gender,
		PriceCents:      req.PriceCents,
		DiscountPercent: req.DiscountPercent,
		Stock:           req.Stock,
		Sizes:           req.Sizes,
		Colors:          req.Colors,
		IsActive:        true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}

	if err := s.attachImages(ctx, product, images, 0); err != nil {
		return nil, err
	}
	return s.Get(ctx, product.ID)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, req UpdateProductRequest, images []ImageUpload) (*ProductDTO, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	applyUpdates(product, req)
	if !product.Gender.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid gender")
	}

	retained := len(product.Images) - len(req.DeletedImageIDs)
	if retained < 0 {
		retained = 0
	}
	if retained+len(images) > s.maxImages {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d images allowed", s.maxImages))
	}

	if err := s.repo.Save(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}

	if len(req.DeletedImageIDs) > 0 {
		removed, err := s.repo.DeleteImages(ctx, product.ID, req.DeletedImageIDs)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete images")
		}
		for _, img := range removed {
			if err := s.store.Delete(ctx, img.ObjectKey); err != nil && s.logg != nil {
				s.logg.Warn(ctx, "orphaned media object "+img.ObjectKey)
			}
		}
	}

	if err := s.attachImages(ctx, product, images, nextPosition(product.Images, req.DeletedImageIDs)); err != nil {
		return nil, err
	}
	return s.Get(ctx, product.ID)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
	}

	for _, img := range product.Images {
		if err := s.store.Delete(ctx, img.ObjectKey); err != nil && s.logg != nil {
			s.logg.Warn(ctx, "orphaned media object "+img.ObjectKey)
		}
	}
	return nil
}

func (s *service) attachImages(ctx context.Context, product *models.Product, images []ImageUpload, startPosition int) error {
	if len(images) == 0 {
		return nil
	}

	rows := make([]models.ProductImage, 0, len(images))
	for i, upload := range images {
		ext, ok := allowedImageTypes[normalizeContentType(upload.ContentType)]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported image type %q", upload.ContentType))
		}
		key := fmt.Sprintf("products/%s/%s%s", product.ID, uuid.NewString(), ext)
		url, err := s.store.Upload(ctx, key, upload.ContentType, upload.Data)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload image")
		}
		rows = append(rows, models.ProductImage{
			ProductID: product.ID,
			URL:       url,
			ObjectKey: key,
			Position:  startPosition + i,
		})
	}

	if err := s.repo.AddImages(ctx, rows); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist images")
	}
	return nil
}

func applyUpdates(product *models.Product, req UpdateProductRequest) {
	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		product.Category = strings.TrimSpace(*req.Category)
	}
	if req.Gender != nil {
		product.Gender = *req.Gender
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	if req.DiscountPercent != nil {
		product.DiscountPercent = *req.DiscountPercent
	}
	if req.Stock != nil {
		product.Stock = *req.Stock
	}
	if req.Sizes != nil {
		product.Sizes = req.Sizes
	}
	if req.Colors != nil {
		product.Colors = req.Colors
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
}

func nextPosition(existing []models.ProductImage, deleted []uuid.UUID) int {
	removed := make(map[uuid.UUID]bool, len(deleted))
	for _, id := range deleted {
		removed[id] = true
	}
	max := -1
	for _, img := range existing {
		if removed[img.ID] {
			continue
		}
		if img.Position > max {
			max = img.Position
		}
	}
	return max + 1
}

func normalizeContentType(value string) string {
	parsed, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(value))
	}
	return parsed
}

