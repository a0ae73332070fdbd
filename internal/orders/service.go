package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/internal/products"
	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/outbox"
	"github.com/trendora/trendora-backend/pkg/pagination"
)

// Service covers order history, cancellation, and admin fulfillment.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, params ListParams) ([]OrderDTO, pagination.Meta, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)

	AdminList(ctx context.Context, params AdminListParams) ([]OrderDTO, pagination.Meta, error)
	AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, req UpdateStatusRequest) (*OrderDTO, error)
}

type repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params ListParams, page pagination.Params) ([]models.Order, int64, error)
	ListAll(ctx context.Context, params AdminListParams, page pagination.Params) ([]models.Order, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdatePayment(ctx context.Context, orderID uuid.UUID, fields map[string]any) error
}

type stockAdjuster interface {
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type intentCanceler interface {
	Cancel(ctx context.Context, intentID string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo    repository
	txRepo  func(tx *gorm.DB) repository
	txStock func(tx *gorm.DB) stockAdjuster
	tx      txRunner
	outbox  eventEmitter
	intents intentCanceler
	logg    *logger.Logger
	now     func() time.Time
}

// ServiceParams bundles the dependencies required to build an order service.
type ServiceParams struct {
	Repo   repository
	Tx     txRunner
	Outbox eventEmitter
	Logger *logger.Logger
	// Intents cancels processor payment intents when an order is
	// canceled before settlement. Optional.
	Intents intentCanceler
	// TxRepo and TxStock rebind persistence to a transaction. They
	// default to the concrete repositories and exist for tests.
	TxRepo  func(tx *gorm.DB) repository
	TxStock func(tx *gorm.DB) stockAdjuster
	Now     func() time.Time
}

// NewService constructs an order service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository is required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter is required")
	}

	svc := &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		intents: params.Intents,
		logg:    params.Logger,
		txRepo:  params.TxRepo,
		txStock: params.TxStock,
		now:     params.Now,
	}
	if svc.txRepo == nil {
		svc.txRepo = func(tx *gorm.DB) repository { return NewRepository(tx) }
	}
	if svc.txStock == nil {
		svc.txStock = func(tx *gorm.DB) stockAdjuster { return products.NewRepository(tx) }
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params ListParams) ([]OrderDTO, pagination.Meta, error) {
	page := pagination.Normalize(pagination.Params{Page: params.Page, Limit: params.Limit})
	rows, total, err := s.repo.ListByUser(ctx, userID, params, page)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return toDTOs(rows), pagination.BuildMeta(page, total), nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	dto := ToDTO(order)
	return &dto, nil
}

// Cancel voids a pending order, restoring the stock it reserved. Orders
// that have started fulfillment can no longer be canceled by the shopper.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	if _, err := s.repo.FindByIDForUser(ctx, orderID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	var stripeIntentID *string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.txRepo(tx)
		locked, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock order")
		}
		if locked.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be canceled")
		}

		full, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order items")
		}
		if err := s.cancelLocked(ctx, repo, s.txStock(tx), full); err != nil {
			return err
		}
		if full.PaymentIntent != nil {
			stripeIntentID = full.PaymentIntent.StripeIntentID
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: userID, Role: string(enums.UserRoleCustomer)},
			Data: map[string]any{
				"orderId":     orderID,
				"orderNumber": full.OrderNumber,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.cancelProcessorIntent(ctx, orderID, stripeIntentID)

	return s.Get(ctx, userID, orderID)
}

func (s *service) AdminList(ctx context.Context, params AdminListParams) ([]OrderDTO, pagination.Meta, error) {
	page := pagination.Normalize(pagination.Params{Page: params.Page, Limit: params.Limit})
	rows, total, err := s.repo.ListAll(ctx, params, page)
	if err != nil {
		return nil, pagination.Meta{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return toDTOs(rows), pagination.BuildMeta(page, total), nil
}

func (s *service) AdminGet(ctx context.Context, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	dto := ToDTO(order)
	return &dto, nil
}

// UpdateStatus moves an order through fulfillment. Transitions follow
// the forward chain PENDING -> PROCESSING -> SHIPPED -> DELIVERED, with
// CANCELED reachable from any non-terminal state.
func (s *service) UpdateStatus(ctx context.Context, actorID, orderID uuid.UUID, req UpdateStatusRequest) (*OrderDTO, error) {
	if !req.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", req.Status))
	}

	var stripeIntentID *string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.txRepo(tx)
		locked, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock order")
		}
		if !locked.Status.CanTransitionTo(req.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", locked.Status, req.Status)).
				WithDetails(map[string]any{
					"currentStatus":   locked.Status,
					"requestedStatus": req.Status,
				})
		}

		full, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order items")
		}

		switch req.Status {
		case enums.OrderStatusCanceled:
			if err := s.cancelLocked(ctx, repo, s.txStock(tx), full); err != nil {
				return err
			}
			if full.PaymentIntent != nil {
				stripeIntentID = full.PaymentIntent.StripeIntentID
			}
		case enums.OrderStatusDelivered:
			if err := s.markDelivered(ctx, repo, full); err != nil {
				return err
			}
		default:
			fields := map[string]any{"status": req.Status}
			if err := repo.UpdateStatus(ctx, orderID, fields); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: string(enums.UserRoleAdmin)},
			Data: map[string]any{
				"orderId":    orderID,
				"fromStatus": locked.Status,
				"toStatus":   req.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if req.Status == enums.OrderStatusCanceled {
		s.cancelProcessorIntent(ctx, orderID, stripeIntentID)
	}

	return s.AdminGet(ctx, orderID)
}

// cancelLocked restores reserved stock and writes the canceled state.
// Callers must hold the row lock and have verified the transition.
func (s *service) cancelLocked(ctx context.Context, repo repository, stock stockAdjuster, order *models.Order) error {
	for i := range order.Items {
		item := &order.Items[i]
		if err := stock.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
		}
	}

	now := s.now()
	fields := map[string]any{
		"status":      enums.OrderStatusCanceled,
		"canceled_at": now,
	}
	if err := repo.UpdateStatus(ctx, order.ID, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
	}

	if order.PaymentIntent != nil && order.PaymentIntent.Status == enums.PaymentStatusPending {
		payment := map[string]any{
			"status":         enums.PaymentStatusFailed,
			"failure_reason": "order canceled",
		}
		if err := repo.UpdatePayment(ctx, order.ID, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "void payment")
		}
	}
	return nil
}

// markDelivered stamps delivery and settles cash-on-delivery payments,
// which have no processor webhook to confirm them.
func (s *service) markDelivered(ctx context.Context, repo repository, order *models.Order) error {
	now := s.now()
	fields := map[string]any{
		"status":       enums.OrderStatusDelivered,
		"delivered_at": now,
	}
	if err := repo.UpdateStatus(ctx, order.ID, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}

	if order.PaymentIntent != nil &&
		order.PaymentIntent.Method == enums.PaymentMethodCashOnDelivery &&
		order.PaymentIntent.Status == enums.PaymentStatusPending {
		payment := map[string]any{
			"status":       enums.PaymentStatusSuccess,
			"succeeded_at": now,
		}
		if err := repo.UpdatePayment(ctx, order.ID, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle payment")
		}
	}
	return nil
}

func (s *service) cancelProcessorIntent(ctx context.Context, orderID uuid.UUID, intentID *string) {
	if s.intents == nil || intentID == nil {
		return
	}
	if err := s.intents.Cancel(ctx, *intentID); err != nil && s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, orderID.String())
		s.logg.Error(logCtx, "cancel processor payment intent", err)
	}
}

func toDTOs(rows []models.Order) []OrderDTO {
	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, ToDTO(&rows[i]))
	}
	return dtos
}
