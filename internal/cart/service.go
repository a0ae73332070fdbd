package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/config"
	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/types"
)

// Service defines the cart behavior needed by the controllers.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type repository interface {
	GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	FindItemByID(ctx context.Context, itemID uuid.UUID) (*models.CartItem, error)
	FindLine(ctx context.Context, cartID, productID uuid.UUID, size, color *string) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	MarkProcessing(ctx context.Context, itemID uuid.UUID) error
	SettleItem(ctx context.Context, itemID uuid.UUID, quantity, lineSubtotalCents int, warnings types.CartItemWarnings) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
	OtherLinesQuantity(ctx context.Context, cartID, productID, excludeItemID uuid.UUID) (int, error)
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type couponResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, subtotalCents int) (code string, percent int, err error)
}

type mutationScheduler interface {
	Schedule(lineID uuid.UUID, quantity int)
	Cancel(lineID uuid.UUID)
	Pending(lineID uuid.UUID) bool
}

type service struct {
	repo      repository
	products  productLoader
	coupons   couponResolver
	scheduler mutationScheduler
	logg      *logger.Logger
}

// ServiceParams bundles the dependencies required to build a cart service.
type ServiceParams struct {
	Repo     repository
	Products productLoader
	Coupons  couponResolver
	Config   config.CartConfig
	Logger   *logger.Logger
	// Scheduler overrides the default debounce scheduler, for tests.
	Scheduler mutationScheduler
}

// NewService constructs a cart service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader is required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon resolver is required")
	}

	svc := &service{
		repo:     params.Repo,
		products: params.Products,
		coupons:  params.Coupons,
		logg:     params.Logger,
	}
	if params.Scheduler != nil {
		svc.scheduler = params.Scheduler
	} else {
		svc.scheduler = NewScheduler(params.Config.MutationQuietWindow, params.Config.SettleTimeout, svc.settleMutation)
	}
	return svc, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	record, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return s.buildDTO(ctx, userID, record)
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*CartDTO, error) {
	record, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err := validateVariant(product, req.Size, req.Color); err != nil {
		return nil, err
	}

	// Adding the same variant again folds into the existing line. The
	// combined quantity clamps to stock like any other add.
	if existing, err := s.repo.FindLine(ctx, record.ID, req.ProductID, req.Size, req.Color); err == nil {
		available, aerr := s.availableStock(ctx, record.ID, product, existing.ID)
		if aerr != nil {
			return nil, aerr
		}
		target, _ := clampQuantity(existing.Quantity+req.Quantity, available)
		if target <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product out of stock")
		}
		return s.UpdateQuantity(ctx, userID, existing.ID, target)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find cart line")
	}

	available, err := s.availableStock(ctx, record.ID, product, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if available <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product out of stock")
	}

	quantity, warnings := clampQuantity(req.Quantity, available)
	item := &models.CartItem{
		CartID:            record.ID,
		ProductID:         product.ID,
		Size:              req.Size,
		Color:             req.Color,
		Quantity:          quantity,
		UnitPriceCents:    product.PriceCents,
		DiscountPercent:   product.DiscountPercent,
		LineSubtotalCents: LineSubtotalCents(product.PriceCents, product.DiscountPercent, quantity),
		Status:            enums.CartLineStatusOK,
		Warnings:          warnings,
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}

	return s.Get(ctx, userID)
}

func (s *service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	record, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	item, err := s.repo.FindItem(ctx, record.ID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}

	// A quantity beyond what is known to be available is rejected with
	// the confirmed maximum; clamping at settle time only covers stock
	// that changes while the mutation pends.
	product, err := s.products.FindByID(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	available, err := s.availableStock(ctx, record.ID, product, itemID)
	if err != nil {
		return nil, err
	}
	if quantity > available {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quantity exceeds available stock").
			WithDetails(map[string]any{
				"requestedQuantity": quantity,
				"availableStock":    available,
			})
	}

	// The line shows as processing until the quiet window elapses and
	// the last requested quantity settles.
	if err := s.repo.MarkProcessing(ctx, itemID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark cart item")
	}
	s.scheduler.Schedule(itemID, quantity)

	return s.Get(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error) {
	record, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}

	// Removal wins over any in-flight quantity edit.
	s.scheduler.Cancel(itemID)

	if err := s.repo.DeleteItem(ctx, record.ID, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}

	return s.Get(ctx, userID)
}

// Flush settles every pending quantity mutation immediately. Called
// during shutdown so debounced writes are not lost.
func (s *service) Flush() {
	if flusher, ok := s.scheduler.(interface{ Flush() }); ok {
		flusher.Flush()
	}
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	record, err := s.repo.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	for i := range record.Items {
		s.scheduler.Cancel(record.Items[i].ID)
	}
	if err := s.repo.ClearItems(ctx, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// settleMutation commits the last requested quantity for a line once
// its quiet window elapses. The quantity is clamped to the stock left
// over after every other line holding the same product.
func (s *service) settleMutation(ctx context.Context, lineID uuid.UUID, quantity int) {
	item, err := s.repo.FindItemByID(ctx, lineID)
	if err != nil {
		// Removed mid-window; nothing to settle.
		return
	}

	product, err := s.products.FindByID(ctx, item.ProductID)
	if err != nil {
		s.logSettleError(ctx, lineID, err)
		return
	}

	available, err := s.availableStock(ctx, item.CartID, product, lineID)
	if err != nil {
		s.logSettleError(ctx, lineID, err)
		return
	}

	committed, warnings := clampQuantity(quantity, available)
	if committed <= 0 {
		if err := s.repo.DeleteItem(ctx, item.CartID, lineID); err != nil {
			s.logSettleError(ctx, lineID, err)
		}
		return
	}

	subtotal := LineSubtotalCents(item.UnitPriceCents, item.DiscountPercent, committed)
	if err := s.repo.SettleItem(ctx, lineID, committed, subtotal, warnings); err != nil {
		s.logSettleError(ctx, lineID, err)
	}
}

func (s *service) availableStock(ctx context.Context, cartID uuid.UUID, product *models.Product, excludeItemID uuid.UUID) (int, error) {
	held, err := s.repo.OtherLinesQuantity(ctx, cartID, product.ID, excludeItemID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum cart lines")
	}
	return product.Stock - held, nil
}

func (s *service) buildDTO(ctx context.Context, userID uuid.UUID, record *models.CartRecord) (*CartDTO, error) {
	items := make([]ItemDTO, 0, len(record.Items))
	for i := range record.Items {
		item := &record.Items[i]
		product, err := s.products.FindByID(ctx, item.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
		}
		items = append(items, itemDTO(item, product))
	}

	totals := ComputeTotals(record.Items, 0)

	dto := &CartDTO{Items: items, Totals: totals}
	code, percent, err := s.coupons.Resolve(ctx, userID, totals.SubtotalCents)
	if err != nil {
		return nil, err
	}
	if code != "" {
		dto.AppliedCoupon = &AppliedCouponDTO{Code: code, DiscountPercent: percent}
		dto.Totals = ComputeTotals(record.Items, percent)
	}
	return dto, nil
}

func (s *service) logSettleError(ctx context.Context, lineID uuid.UUID, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Error(s.logg.WithField(ctx, "cart_item_id", lineID.String()), "settle cart mutation", err)
}

func validateVariant(product *models.Product, size, color *string) error {
	if size != nil && len(product.Sizes) > 0 && !contains(product.Sizes, *size) {
		return pkgerrors.New(pkgerrors.CodeValidation, "size not offered for this product")
	}
	if color != nil && len(product.Colors) > 0 && !contains(product.Colors, *color) {
		return pkgerrors.New(pkgerrors.CodeValidation, "color not offered for this product")
	}
	return nil
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func clampQuantity(requested, available int) (int, types.CartItemWarnings) {
	if requested <= available {
		return requested, nil
	}
	if available < 0 {
		available = 0
	}
	return available, types.CartItemWarnings{{
		Type:              enums.CartWarningQuantityClamped,
		Message:           fmt.Sprintf("only %d in stock", available),
		RequestedQuantity: requested,
		CommittedQuantity: available,
	}}
}
