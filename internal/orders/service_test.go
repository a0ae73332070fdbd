package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/outbox"
	"github.com/trendora/trendora-backend/pkg/pagination"
)

type stubOrderRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newStubOrderRepo() *stubOrderRepo {
	return &stubOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func cloneOrder(order *models.Order) *models.Order {
	copied := *order
	copied.Items = append([]models.OrderItem(nil), order.Items...)
	if order.PaymentIntent != nil {
		intent := *order.PaymentIntent
		copied.PaymentIntent = &intent
	}
	return &copied
}

func (r *stubOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneOrder(order), nil
}

func (r *stubOrderRepo) FindByIDForUser(_ context.Context, id, userID uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok || order.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneOrder(order), nil
}

func (r *stubOrderRepo) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneOrder(order), nil
}

func (r *stubOrderRepo) ListByUser(_ context.Context, userID uuid.UUID, params ListParams, _ pagination.Params) ([]models.Order, int64, error) {
	var out []models.Order
	for _, order := range r.orders {
		if order.UserID != userID {
			continue
		}
		if params.Status != nil && order.Status != *params.Status {
			continue
		}
		out = append(out, *cloneOrder(order))
	}
	return out, int64(len(out)), nil
}

func (r *stubOrderRepo) ListAll(_ context.Context, params AdminListParams, _ pagination.Params) ([]models.Order, int64, error) {
	var out []models.Order
	for _, order := range r.orders {
		if params.Status != nil && order.Status != *params.Status {
			continue
		}
		if params.UserID != nil && order.UserID != *params.UserID {
			continue
		}
		out = append(out, *cloneOrder(order))
	}
	return out, int64(len(out)), nil
}

func (r *stubOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, fields map[string]any) error {
	order, ok := r.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if status, ok := fields["status"].(enums.OrderStatus); ok {
		order.Status = status
	}
	if canceledAt, ok := fields["canceled_at"].(time.Time); ok {
		order.CanceledAt = &canceledAt
	}
	if deliveredAt, ok := fields["delivered_at"].(time.Time); ok {
		order.DeliveredAt = &deliveredAt
	}
	return nil
}

func (r *stubOrderRepo) UpdatePayment(_ context.Context, orderID uuid.UUID, fields map[string]any) error {
	order, ok := r.orders[orderID]
	if !ok || order.PaymentIntent == nil {
		return gorm.ErrRecordNotFound
	}
	if status, ok := fields["status"].(enums.PaymentStatus); ok {
		order.PaymentIntent.Status = status
	}
	if reason, ok := fields["failure_reason"].(string); ok {
		order.PaymentIntent.FailureReason = &reason
	}
	if succeededAt, ok := fields["succeeded_at"].(time.Time); ok {
		order.PaymentIntent.SucceededAt = &succeededAt
	}
	return nil
}

type stubStock struct {
	adjustments map[uuid.UUID]int
}

func (s *stubStock) AdjustStock(_ context.Context, productID uuid.UUID, delta int) error {
	s.adjustments[productID] += delta
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

type stubCanceler struct {
	canceled []string
}

func (s *stubCanceler) Cancel(_ context.Context, intentID string) error {
	s.canceled = append(s.canceled, intentID)
	return nil
}

type orderFixture struct {
	svc      Service
	repo     *stubOrderRepo
	stock    *stubStock
	emitter  *stubEmitter
	canceler *stubCanceler
	now      time.Time
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	fixture := &orderFixture{
		repo:     newStubOrderRepo(),
		stock:    &stubStock{adjustments: map[uuid.UUID]int{}},
		emitter:  &stubEmitter{},
		canceler: &stubCanceler{},
		now:      time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}

	svc, err := NewService(ServiceParams{
		Repo:    fixture.repo,
		Tx:      stubTx{},
		Outbox:  fixture.emitter,
		Intents: fixture.canceler,
		TxRepo:  func(_ *gorm.DB) repository { return fixture.repo },
		TxStock: func(_ *gorm.DB) stockAdjuster { return fixture.stock },
		Now:     func() time.Time { return fixture.now },
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	fixture.svc = svc
	return fixture
}

func (f *orderFixture) seedOrder(status enums.OrderStatus, method enums.PaymentMethod) *models.Order {
	productID := uuid.New()
	intentID := "pi_test_123"
	order := &models.Order{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		OrderNumber:   1001,
		Status:        status,
		PaymentMethod: method,
		TotalCents:    14400,
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: productID, Name: "Linen Shirt", Quantity: 2, UnitPriceCents: 10000, LineTotalCents: 18000},
		},
		PaymentIntent: &models.PaymentIntent{
			ID:          uuid.New(),
			Method:      method,
			Status:      enums.PaymentStatusPending,
			AmountCents: 14400,
			Currency:    "usd",
		},
	}
	if method == enums.PaymentMethodCreditCard {
		order.PaymentIntent.StripeIntentID = &intentID
	}
	f.repo.orders[order.ID] = order
	return order
}

func TestCancelPendingOrderRestoresStock(t *testing.T) {
	t.Parallel()

	fixture := newOrderFixture(t)
	order := fixture.seedOrder(enums.OrderStatusPending, enums.PaymentMethodCreditCard)
	productID := order.Items[0].ProductID

	dto, err := fixture.svc.Cancel(context.Background(), order.UserID, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if dto.Status != enums.OrderStatusCanceled {
		t.Fatalf("expected CANCELED, got %s", dto.Status)
	}
	if dto.CanceledAt == nil {
		t.Fatal("expected canceledAt set")
	}
	if got := fixture.stock.adjustments[productID]; got != 2 {
		t.Fatalf("expected stock restored by 2, got %d", got)
	}
	if dto.Payment == nil || dto.Payment.Status != enums.PaymentStatusFailed {
		t.Fatalf("expected payment voided, got %+v", dto.Payment)
	}
	if len(fixture.canceler.canceled) != 1 || fixture.canceler.canceled[0] != "pi_test_123" {
		t.Fatalf("expected processor intent canceled, got %v", fixture.canceler.canceled)
	}
	if len(fixture.emitter.events) != 1 || fixture.emitter.events[0].EventType != enums.EventOrderCanceled {
		t.Fatalf("expected order_canceled event, got %+v", fixture.emitter.events)
	}
}

func TestCancelRejectsStartedFulfillment(t *testing.T) {
	t.Parallel()

	fixture := newOrderFixture(t)
	order := fixture.seedOrder(enums.OrderStatusProcessing, enums.PaymentMethodCashOnDelivery)

	_, err := fixture.svc.Cancel(context.Background(), order.UserID, order.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancelForeignOrderNotFound(t *testing.T) {
	t.Parallel()

	fixture := newOrderFixture(t)
	order := fixture.seedOrder(enums.OrderStatusPending, enums.PaymentMethodCashOnDelivery)

	_, err := fixture.svc.Cancel(context.Background(), uuid.New(), order.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpdateStatusForwardTransition(t *testing.T) {
	t.Parallel()

	fixture := newOrderFixture(t)
	order := fixture.seedOrder(enums.OrderStatusPending, enums.PaymentMethodCashOnDelivery)

	dto, err := fixture.svc.UpdateStatus(context.Background(), uuid.New(), order.ID, UpdateStatusRequest{
		Status: enums.OrderStatusProcessing,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}

	if dto.Status != enums.OrderStatusProcessing {
		t.Fatalf("expected PROCESSING, got %s", dto.Status)
	}
	if len(fixture.emitter.events) != 1 || fixture.emitter.events[0].EventType != enums.EventOrderStatusChanged {
		t.Fatalf("expected order_status_changed event, got %+v", fixture.emitter.events)
	}
}

func TestUpdateStatusRejectsSkippedStep(t *testing.T) {
	t.Parallel()

	fixture := newOrderFixture(t)
	order := fixture.seedOrder(enums.OrderStatusPending, enums.PaymentMethodCashOnDelivery)

	_, err := fixture.svc.UpdateStatus(context.Background(), uuid.New(), order.ID, UpdateStatusRequest{
		Status: enums.OrderStatusShipped,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestUpdateStatusRejectsLeavingTerminalState(t *testing.T) {
	t.Parallel()

	fixture := newOrderFixture(t)
	order := fixture.seedOrder(enums.OrderStatusDelivered, enums.PaymentMethodCashOnDelivery)

	_, err := fixture.svc.UpdateStatus(context.Background(), uuid.New(), order.ID, UpdateStatusRequest{
		Status: enums.OrderStatusCanceled,
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestUpdateStatusDeliveredSettlesCashOnDelivery(t *testing.T) {
	t.Parallel()

	fixture := newOrderFixture(t)
	order := fixture.seedOrder(enums.OrderStatusShipped, enums.PaymentMethodCashOnDelivery)

	dto, err := fixture.svc.UpdateStatus(context.Background(), uuid.New(), order.ID, UpdateStatusRequest{
		Status: enums.OrderStatusDelivered,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}

	if dto.DeliveredAt == nil {
		t.Fatal("expected deliveredAt set")
	}
	if dto.Payment == nil || dto.Payment.Status != enums.PaymentStatusSuccess {
		t.Fatalf("expected payment settled, got %+v", dto.Payment)
	}
	if dto.Payment.SucceededAt == nil {
		t.Fatal("expected succeededAt set")
	}
}

func TestUpdateStatusCancelRestoresStock(t *testing.T) {
	t.Parallel()

	fixture := newOrderFixture(t)
	order := fixture.seedOrder(enums.OrderStatusProcessing, enums.PaymentMethodCreditCard)
	productID := order.Items[0].ProductID

	dto, err := fixture.svc.UpdateStatus(context.Background(), uuid.New(), order.ID, UpdateStatusRequest{
		Status: enums.OrderStatusCanceled,
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}

	if dto.Status != enums.OrderStatusCanceled {
		t.Fatalf("expected CANCELED, got %s", dto.Status)
	}
	if got := fixture.stock.adjustments[productID]; got != 2 {
		t.Fatalf("expected stock restored by 2, got %d", got)
	}
	if len(fixture.canceler.canceled) != 1 {
		t.Fatalf("expected processor intent canceled, got %v", fixture.canceler.canceled)
	}
}

func TestGetScopedToOwner(t *testing.T) {
	t.Parallel()

	fixture := newOrderFixture(t)
	order := fixture.seedOrder(enums.OrderStatusPending, enums.PaymentMethodCashOnDelivery)

	if _, err := fixture.svc.Get(context.Background(), order.UserID, order.ID); err != nil {
		t.Fatalf("get own order: %v", err)
	}
	_, err := fixture.svc.Get(context.Background(), uuid.New(), order.ID)
	assertCode(t, err, pkgerrors.CodeNotFound)
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
