package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/internal/addresses"
	"github.com/trendora/trendora-backend/internal/cart"
	"github.com/trendora/trendora-backend/internal/coupons"
	"github.com/trendora/trendora-backend/internal/orders"
	"github.com/trendora/trendora-backend/internal/products"
	"github.com/trendora/trendora-backend/pkg/config"
	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/outbox"
)

// Service turns a cart into a committed order.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, req PlaceOrderRequest) (*ResultDTO, error)
}

type cartReader interface {
	GetOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
}

type cartClearer interface {
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type productCatalog interface {
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) error
}

type orderWriter interface {
	Create(ctx context.Context, order *models.Order) error
	NextOrderNumber(ctx context.Context) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdatePayment(ctx context.Context, orderID uuid.UUID, fields map[string]any) error
}

type orderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdatePayment(ctx context.Context, orderID uuid.UUID, fields map[string]any) error
}

type addressLoader interface {
	FindByID(ctx context.Context, userID, id uuid.UUID) (*models.Address, error)
	FindDefault(ctx context.Context, userID uuid.UUID) (*models.Address, error)
}

type couponResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, subtotalCents int) (string, int, error)
}

type couponRedeemer interface {
	IncrementUsage(ctx context.Context, code string) error
}

type appliedCoupons interface {
	Clear(ctx context.Context, userID string) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	cart       cartReader
	ordersRepo orderReader
	addresses  addressLoader
	coupons    couponResolver
	applied    appliedCoupons
	intents    PaymentIntentClient
	outbox     eventEmitter
	tx         txRunner
	logg       *logger.Logger
	currency   string

	txOrders   func(tx *gorm.DB) orderWriter
	txProducts func(tx *gorm.DB) productCatalog
	txCart     func(tx *gorm.DB) cartClearer
	txCoupons  func(tx *gorm.DB) couponRedeemer
}

// ServiceParams bundles the dependencies required to build a checkout service.
type ServiceParams struct {
	Cart      cartReader
	Orders    orderReader
	Addresses addressLoader
	Coupons   couponResolver
	Applied   appliedCoupons
	Tx        txRunner
	Outbox    eventEmitter
	Config    config.CheckoutConfig
	Logger    *logger.Logger
	// Intents creates processor payment intents for card orders.
	// Required unless every order is cash on delivery.
	Intents PaymentIntentClient
	// Tx-bound repository factories, overridable for tests.
	TxOrders   func(tx *gorm.DB) orderWriter
	TxProducts func(tx *gorm.DB) productCatalog
	TxCart     func(tx *gorm.DB) cartClearer
	TxCoupons  func(tx *gorm.DB) couponRedeemer
}

// NewService constructs a checkout service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Cart == nil {
		return nil, fmt.Errorf("cart reader is required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address loader is required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon resolver is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}

	currency := params.Config.Currency
	if currency == "" {
		currency = "usd"
	}

	svc := &service{
		cart:       params.Cart,
		ordersRepo: params.Orders,
		addresses:  params.Addresses,
		coupons:    params.Coupons,
		applied:    params.Applied,
		intents:    params.Intents,
		outbox:     params.Outbox,
		tx:         params.Tx,
		logg:       params.Logger,
		currency:   currency,
		txOrders:   params.TxOrders,
		txProducts: params.TxProducts,
		txCart:     params.TxCart,
		txCoupons:  params.TxCoupons,
	}
	if svc.txOrders == nil {
		svc.txOrders = func(tx *gorm.DB) orderWriter { return orders.NewRepository(tx) }
	}
	if svc.txProducts == nil {
		svc.txProducts = func(tx *gorm.DB) productCatalog { return products.NewRepository(tx) }
	}
	if svc.txCart == nil {
		svc.txCart = func(tx *gorm.DB) cartClearer { return cart.NewRepository(tx) }
	}
	if svc.txCoupons == nil {
		svc.txCoupons = func(tx *gorm.DB) couponRedeemer { return coupons.NewRepository(tx) }
	}
	return svc, nil
}

// PlaceOrder snapshots the cart into an order, reserving stock inside a
// single transaction. Card orders additionally get a processor payment
// intent after commit; its settlement arrives later via webhook.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, req PlaceOrderRequest) (*ResultDTO, error) {
	if !req.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", req.PaymentMethod))
	}
	if req.PaymentMethod == enums.PaymentMethodCreditCard && s.intents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not available")
	}

	record, err := s.cart.GetOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}
	for i := range record.Items {
		if record.Items[i].Status == enums.CartLineStatusProcessing {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart has unsettled quantity updates")
		}
	}

	address, err := s.resolveAddress(ctx, userID, req.AddressID)
	if err != nil {
		return nil, err
	}

	baseline := cart.ComputeTotals(record.Items, 0)
	couponCode, couponPercent, err := s.coupons.Resolve(ctx, userID, baseline.SubtotalCents)
	if err != nil {
		return nil, err
	}
	totals := cart.ComputeTotals(record.Items, couponPercent)

	order := s.buildOrder(userID, req.PaymentMethod, record, address, couponCode, totals)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalog := s.txProducts(tx)
		if err := s.reserveStock(ctx, catalog, record.Items); err != nil {
			return err
		}

		ordersTx := s.txOrders(tx)
		number, err := ordersTx.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "allocate order number")
		}
		order.OrderNumber = number

		if err := ordersTx.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}

		if couponCode != "" {
			if err := s.txCoupons(tx).IncrementUsage(ctx, couponCode); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeStateConflict, "coupon is no longer available")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "redeem coupon")
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventCouponRedeemed,
				AggregateType: enums.AggregateCoupon,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
				Data: map[string]any{
					"code":          couponCode,
					"orderId":       order.ID,
					"discountCents": totals.CouponDiscountCents,
				},
			}); err != nil {
				return err
			}
		}

		if err := s.txCart(tx).ClearItems(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
			Data: map[string]any{
				"orderId":       order.ID,
				"orderNumber":   order.OrderNumber,
				"paymentMethod": order.PaymentMethod,
				"totalCents":    order.TotalCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.clearAppliedCoupon(ctx, userID, couponCode)

	var clientSecret *string
	if req.PaymentMethod == enums.PaymentMethodCreditCard {
		clientSecret, err = s.attachPaymentIntent(ctx, order)
		if err != nil {
			return nil, err
		}
	}

	placed, err := s.ordersRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load placed order")
	}
	return &ResultDTO{Order: orders.ToDTO(placed), ClientSecret: clientSecret}, nil
}

func (s *service) resolveAddress(ctx context.Context, userID uuid.UUID, addressID *uuid.UUID) (*models.Address, error) {
	if addressID != nil {
		address, err := s.addresses.FindByID(ctx, userID, *addressID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
		}
		return address, nil
	}

	address, err := s.addresses.FindDefault(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no shipping address on file")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load default address")
	}
	return address, nil
}

// reserveStock locks the cart's products and decrements their stock.
// Lines that no longer fit are reported together so the storefront can
// show every conflict at once.
func (s *service) reserveStock(ctx context.Context, catalog productCatalog, items []models.CartItem) error {
	ids := make([]uuid.UUID, 0, len(items))
	seen := map[uuid.UUID]bool{}
	for i := range items {
		if !seen[items[i].ProductID] {
			seen[items[i].ProductID] = true
			ids = append(ids, items[i].ProductID)
		}
	}

	rows, err := catalog.FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	demand := map[uuid.UUID]int{}
	for i := range items {
		demand[items[i].ProductID] += items[i].Quantity
	}

	var conflicts []map[string]any
	for _, id := range ids {
		product, ok := byID[id]
		if !ok || !product.IsActive {
			conflicts = append(conflicts, map[string]any{
				"productId": id,
				"reason":    "unavailable",
			})
			continue
		}
		if product.Stock < demand[id] {
			conflicts = append(conflicts, map[string]any{
				"productId":         id,
				"reason":            "insufficient_stock",
				"requestedQuantity": demand[id],
				"availableStock":    product.Stock,
			})
		}
	}
	if len(conflicts) > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "some items are no longer available").
			WithDetails(map[string]any{"items": conflicts})
	}

	for _, id := range ids {
		if err := catalog.AdjustStock(ctx, id, -demand[id]); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve stock")
		}
	}
	return nil
}

func (s *service) buildOrder(userID uuid.UUID, method enums.PaymentMethod, record *models.CartRecord, address *models.Address, couponCode string, totals cart.Totals) *models.Order {
	order := &models.Order{
		ID:                  uuid.New(),
		UserID:              userID,
		Status:              enums.OrderStatusPending,
		PaymentMethod:       method,
		SubtotalCents:       totals.SubtotalCents,
		ItemDiscountCents:   totals.ItemDiscountCents,
		CouponDiscountCents: totals.CouponDiscountCents,
		TotalCents:          totals.FinalTotalCents,
		ShippingAddress:     addresses.Snapshot(address),
	}
	if couponCode != "" {
		order.CouponCode = &couponCode
	}

	order.Items = make([]models.OrderItem, 0, len(record.Items))
	for i := range record.Items {
		line := &record.Items[i]
		order.Items = append(order.Items, models.OrderItem{
			OrderID:         order.ID,
			ProductID:       line.ProductID,
			Size:            line.Size,
			Color:           line.Color,
			Quantity:        line.Quantity,
			UnitPriceCents:  line.UnitPriceCents,
			DiscountPercent: line.DiscountPercent,
			LineTotalCents:  line.LineSubtotalCents,
		})
	}

	order.PaymentIntent = &models.PaymentIntent{
		OrderID:     order.ID,
		Method:      method,
		Status:      enums.PaymentStatusPending,
		AmountCents: totals.FinalTotalCents,
		Currency:    s.currency,
	}
	return order
}

// attachPaymentIntent creates the processor intent after commit. A
// processor failure voids the freshly placed order so its stock is not
// stranded.
func (s *service) attachPaymentIntent(ctx context.Context, order *models.Order) (*string, error) {
	metadata := map[string]string{
		"order_id":     order.ID.String(),
		"order_number": fmt.Sprintf("%d", order.OrderNumber),
	}
	intent, err := s.intents.Create(ctx, int64(order.TotalCents), s.currency, metadata)
	if err != nil {
		s.voidOrder(ctx, order)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	fields := map[string]any{"stripe_intent_id": intent.ID}
	if err := s.ordersRepo.UpdatePayment(ctx, order.ID, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link payment intent")
	}
	return &intent.ClientSecret, nil
}

// voidOrder compensates for a failed payment intent: the order is
// canceled and its reserved stock returned.
func (s *service) voidOrder(ctx context.Context, order *models.Order) {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		catalog := s.txProducts(tx)
		for i := range order.Items {
			item := &order.Items[i]
			if err := catalog.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		ordersTx := s.txOrders(tx)
		if err := ordersTx.UpdateStatus(ctx, order.ID, map[string]any{
			"status":      enums.OrderStatusCanceled,
			"canceled_at": time.Now(),
		}); err != nil {
			return err
		}
		if err := ordersTx.UpdatePayment(ctx, order.ID, map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": "payment intent creation failed",
		}); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: map[string]any{
				"orderId": order.ID,
				"reason":  "payment_intent_failed",
			},
		})
	})
	if err != nil && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		s.logg.Error(logCtx, "void order after payment failure", err)
	}
}

func (s *service) clearAppliedCoupon(ctx context.Context, userID uuid.UUID, couponCode string) {
	if s.applied == nil || couponCode == "" {
		return
	}
	if err := s.applied.Clear(ctx, userID.String()); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "clear applied coupon", err)
	}
}
