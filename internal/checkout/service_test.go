package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/config"
	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/outbox"
)

type stubCartReader struct {
	record *models.CartRecord
}

func (s *stubCartReader) GetOrCreateByUser(_ context.Context, _ uuid.UUID) (*models.CartRecord, error) {
	copied := *s.record
	copied.Items = append([]models.CartItem(nil), s.record.Items...)
	return &copied, nil
}

type stubCartClearer struct {
	cleared []uuid.UUID
}

func (s *stubCartClearer) ClearItems(_ context.Context, cartID uuid.UUID) error {
	s.cleared = append(s.cleared, cartID)
	return nil
}

type stubCatalog struct {
	products    map[uuid.UUID]*models.Product
	adjustments map[uuid.UUID]int
}

func (s *stubCatalog) FindByIDsForUpdate(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			rows = append(rows, *product)
		}
	}
	return rows, nil
}

func (s *stubCatalog) AdjustStock(_ context.Context, productID uuid.UUID, delta int) error {
	product, ok := s.products[productID]
	if !ok || product.Stock+delta < 0 {
		return gorm.ErrRecordNotFound
	}
	product.Stock += delta
	s.adjustments[productID] += delta
	return nil
}

type stubOrderStore struct {
	orders     map[uuid.UUID]*models.Order
	nextNumber int64
}

func newStubOrderStore() *stubOrderStore {
	return &stubOrderStore{orders: map[uuid.UUID]*models.Order{}, nextNumber: 1000}
}

func (s *stubOrderStore) Create(_ context.Context, order *models.Order) error {
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *stubOrderStore) NextOrderNumber(_ context.Context) (int64, error) {
	s.nextNumber++
	return s.nextNumber, nil
}

func (s *stubOrderStore) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrderStore) UpdateStatus(_ context.Context, id uuid.UUID, fields map[string]any) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := fields["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	return nil
}

func (s *stubOrderStore) UpdatePayment(_ context.Context, orderID uuid.UUID, fields map[string]any) error {
	order, ok := s.orders[orderID]
	if !ok || order.PaymentIntent == nil {
		return gorm.ErrRecordNotFound
	}
	if intentID, ok := fields["stripe_intent_id"].(string); ok {
		order.PaymentIntent.StripeIntentID = &intentID
	}
	if status, ok := fields["status"].(enums.PaymentStatus); ok {
		order.PaymentIntent.Status = status
	}
	if reason, ok := fields["failure_reason"].(string); ok {
		order.PaymentIntent.FailureReason = &reason
	}
	return nil
}

type stubAddresses struct {
	byID       map[uuid.UUID]*models.Address
	defaultFor map[uuid.UUID]*models.Address
}

func (s *stubAddresses) FindByID(_ context.Context, userID, id uuid.UUID) (*models.Address, error) {
	address, ok := s.byID[id]
	if !ok || address.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return address, nil
}

func (s *stubAddresses) FindDefault(_ context.Context, userID uuid.UUID) (*models.Address, error) {
	address, ok := s.defaultFor[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return address, nil
}

type stubResolver struct {
	code    string
	percent int
}

func (s *stubResolver) Resolve(_ context.Context, _ uuid.UUID, _ int) (string, int, error) {
	return s.code, s.percent, nil
}

type stubRedeemer struct {
	redeemed  []string
	exhausted bool
}

func (s *stubRedeemer) IncrementUsage(_ context.Context, code string) error {
	if s.exhausted {
		return gorm.ErrRecordNotFound
	}
	s.redeemed = append(s.redeemed, code)
	return nil
}

type stubApplied struct {
	cleared []string
}

func (s *stubApplied) Clear(_ context.Context, userID string) error {
	s.cleared = append(s.cleared, userID)
	return nil
}

type stubIntents struct {
	created []int64
	fail    bool
}

func (s *stubIntents) Create(_ context.Context, amountCents int64, _ string, _ map[string]string) (*CreatedIntent, error) {
	if s.fail {
		return nil, fmt.Errorf("processor unavailable")
	}
	s.created = append(s.created, amountCents)
	return &CreatedIntent{ID: "pi_test_123", ClientSecret: "pi_test_123_secret"}, nil
}

func (s *stubIntents) Cancel(_ context.Context, _ string) error {
	return nil
}

type stubEmitter struct {
	events []outbox.DomainEvent
}

func (s *stubEmitter) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubTx struct{}

func (stubTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type checkoutFixture struct {
	svc       Service
	cartStub  *stubCartReader
	clearer   *stubCartClearer
	catalog   *stubCatalog
	store     *stubOrderStore
	addresses *stubAddresses
	resolver  *stubResolver
	redeemer  *stubRedeemer
	applied   *stubApplied
	intents   *stubIntents
	emitter   *stubEmitter
	userID    uuid.UUID
	productID uuid.UUID
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()

	userID := uuid.New()
	productID := uuid.New()
	cartID := uuid.New()

	fixture := &checkoutFixture{
		cartStub: &stubCartReader{record: &models.CartRecord{
			ID:     cartID,
			UserID: userID,
			Items: []models.CartItem{{
				ID:                uuid.New(),
				CartID:            cartID,
				ProductID:         productID,
				Quantity:          2,
				UnitPriceCents:    10000,
				DiscountPercent:   10,
				LineSubtotalCents: 18000,
				Status:            enums.CartLineStatusOK,
			}},
		}},
		clearer: &stubCartClearer{},
		catalog: &stubCatalog{
			products: map[uuid.UUID]*models.Product{
				productID: {ID: productID, Name: "Linen Shirt", Stock: 5, IsActive: true, PriceCents: 10000, DiscountPercent: 10},
			},
			adjustments: map[uuid.UUID]int{},
		},
		store:     newStubOrderStore(),
		addresses: &stubAddresses{byID: map[uuid.UUID]*models.Address{}, defaultFor: map[uuid.UUID]*models.Address{}},
		resolver:  &stubResolver{},
		redeemer:  &stubRedeemer{},
		applied:   &stubApplied{},
		intents:   &stubIntents{},
		emitter:   &stubEmitter{},
		userID:    userID,
		productID: productID,
	}
	fixture.addresses.defaultFor[userID] = &models.Address{
		ID: uuid.New(), UserID: userID, FullName: "Dana Ortiz",
		Line1: "12 Shore Rd", City: "Austin", State: "TX", PostalCode: "78701", Country: "US",
	}

	svc, err := NewService(ServiceParams{
		Cart:       fixture.cartStub,
		Orders:     fixture.store,
		Addresses:  fixture.addresses,
		Coupons:    fixture.resolver,
		Applied:    fixture.applied,
		Tx:         stubTx{},
		Outbox:     fixture.emitter,
		Intents:    fixture.intents,
		Config:     config.CheckoutConfig{Currency: "usd"},
		TxOrders:   func(_ *gorm.DB) orderWriter { return fixture.store },
		TxProducts: func(_ *gorm.DB) productCatalog { return fixture.catalog },
		TxCart:     func(_ *gorm.DB) cartClearer { return fixture.clearer },
		TxCoupons:  func(_ *gorm.DB) couponRedeemer { return fixture.redeemer },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func TestPlaceOrderCashOnDelivery(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)

	result, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	order := result.Order
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected PENDING, got %s", order.Status)
	}
	if order.SubtotalCents != 18000 || order.TotalCents != 18000 {
		t.Fatalf("unexpected totals: subtotal %d total %d", order.SubtotalCents, order.TotalCents)
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %+v", order.Payment)
	}
	if result.ClientSecret != nil {
		t.Fatal("expected no client secret for cash on delivery")
	}
	if len(fixture.intents.created) != 0 {
		t.Fatal("expected no processor intent for cash on delivery")
	}
	if got := fixture.catalog.adjustments[fixture.productID]; got != -2 {
		t.Fatalf("expected stock reserved by 2, got %d", got)
	}
	if len(fixture.clearer.cleared) != 1 {
		t.Fatal("expected cart cleared")
	}
	if len(fixture.emitter.events) != 1 || fixture.emitter.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("expected order_created event, got %+v", fixture.emitter.events)
	}
	if order.ShippingAddress.FullName != "Dana Ortiz" {
		t.Fatalf("expected default address snapshot, got %+v", order.ShippingAddress)
	}
}

func TestPlaceOrderCardReturnsClientSecret(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)

	result, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCreditCard,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	if result.ClientSecret == nil || *result.ClientSecret != "pi_test_123_secret" {
		t.Fatalf("expected client secret, got %v", result.ClientSecret)
	}
	if result.Order.Payment == nil || result.Order.Payment.StripeIntentID == nil {
		t.Fatal("expected stripe intent linked to payment")
	}
	if len(fixture.intents.created) != 1 || fixture.intents.created[0] != 18000 {
		t.Fatalf("expected intent for 18000, got %v", fixture.intents.created)
	}
}

func TestPlaceOrderCardProcessorFailureVoidsOrder(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)
	fixture.intents.fail = true

	_, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCreditCard,
	})
	assertCode(t, err, pkgerrors.CodeDependency)

	if got := fixture.catalog.adjustments[fixture.productID]; got != 0 {
		t.Fatalf("expected reserved stock returned, got net %d", got)
	}
	for _, order := range fixture.store.orders {
		if order.Status != enums.OrderStatusCanceled {
			t.Fatalf("expected order voided, got %s", order.Status)
		}
		if order.PaymentIntent.Status != enums.PaymentStatusFailed {
			t.Fatalf("expected payment failed, got %s", order.PaymentIntent.Status)
		}
	}
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)
	fixture.cartStub.record.Items = nil

	_, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestPlaceOrderRejectsUnsettledCart(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)
	fixture.cartStub.record.Items[0].Status = enums.CartLineStatusProcessing

	_, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestPlaceOrderWithoutAddress(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)
	delete(fixture.addresses.defaultFor, fixture.userID)

	_, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestPlaceOrderUnknownAddress(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)
	unknown := uuid.New()

	_, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
		AddressID:     &unknown,
	})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)
	fixture.catalog.products[fixture.productID].Stock = 1

	_, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)

	if len(fixture.store.orders) != 0 {
		t.Fatal("expected no order created")
	}
	if got := fixture.catalog.adjustments[fixture.productID]; got != 0 {
		t.Fatalf("expected no stock adjusted, got %d", got)
	}
	if len(fixture.clearer.cleared) != 0 {
		t.Fatal("expected cart untouched")
	}
}

func TestPlaceOrderAppliesCoupon(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)
	fixture.resolver.code = "SAVE20"
	fixture.resolver.percent = 20

	result, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	order := result.Order
	if order.CouponCode == nil || *order.CouponCode != "SAVE20" {
		t.Fatalf("expected coupon recorded, got %v", order.CouponCode)
	}
	if order.CouponDiscountCents != 3600 || order.TotalCents != 14400 {
		t.Fatalf("unexpected discount math: coupon %d total %d", order.CouponDiscountCents, order.TotalCents)
	}
	if len(fixture.redeemer.redeemed) != 1 || fixture.redeemer.redeemed[0] != "SAVE20" {
		t.Fatalf("expected coupon redeemed, got %v", fixture.redeemer.redeemed)
	}
	if len(fixture.applied.cleared) != 1 {
		t.Fatal("expected applied coupon slot cleared")
	}

	var types []enums.OutboxEventType
	for _, event := range fixture.emitter.events {
		types = append(types, event.EventType)
	}
	if len(types) != 2 {
		t.Fatalf("expected coupon_redeemed and order_created events, got %v", types)
	}
}

func TestPlaceOrderCouponExhaustedMidCheckout(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)
	fixture.resolver.code = "SAVE20"
	fixture.resolver.percent = 20
	fixture.redeemer.exhausted = true

	_, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethodCashOnDelivery,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestPlaceOrderInvalidPaymentMethod(t *testing.T) {
	t.Parallel()

	fixture := newCheckoutFixture(t)

	_, err := fixture.svc.PlaceOrder(context.Background(), fixture.userID, PlaceOrderRequest{
		PaymentMethod: enums.PaymentMethod("WIRE"),
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code())
	}
}
