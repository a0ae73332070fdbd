package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/trendora/trendora-backend/internal/orders"
	"github.com/trendora/trendora-backend/pkg/db/models"
	"github.com/trendora/trendora-backend/pkg/enums"
	pkgerrors "github.com/trendora/trendora-backend/pkg/errors"
	"github.com/trendora/trendora-backend/pkg/logger"
	"github.com/trendora/trendora-backend/pkg/outbox"
)

type orderStore interface {
	FindByStripeIntentID(ctx context.Context, intentID string) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, fields map[string]any) error
	UpdatePayment(ctx context.Context, orderID uuid.UUID, fields map[string]any) error
}

type webhookRecorder interface {
	MarkProcessed(tx *gorm.DB, eventID, eventType string) (bool, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams bundles the dependencies for the payment webhook handler.
type ServiceParams struct {
	Events            webhookRecorder
	Outbox            eventEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
	// TxOrders rebinds order persistence to the handler transaction.
	// Defaults to the concrete repository; overridable for tests.
	TxOrders func(tx *gorm.DB) orderStore
	Now      func() time.Time
}

// Service settles card payments from Stripe's payment_intent events.
type Service struct {
	events   webhookRecorder
	outbox   eventEmitter
	txRunner txRunner
	logg     *logger.Logger
	txOrders func(tx *gorm.DB) orderStore
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook event recorder required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}

	svc := &Service{
		events:   params.Events,
		outbox:   params.Outbox,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
		txOrders: params.TxOrders,
		now:      params.Now,
	}
	if svc.txOrders == nil {
		svc.txOrders = func(tx *gorm.DB) orderStore { return orders.NewRepository(tx) }
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// HandleEvent dispatches a verified Stripe event. Event types outside
// the payment intent lifecycle are acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
		}
		return s.settlePayment(ctx, event, &intent)
	default:
		return nil
	}
}

func (s *Service) settlePayment(ctx context.Context, event *stripe.Event, intent *stripe.PaymentIntent) error {
	succeeded := event.Type == stripe.EventTypePaymentIntentSucceeded

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		already, err := s.events.MarkProcessed(tx, event.ID, string(event.Type))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record webhook event")
		}
		if already {
			return nil
		}

		repo := s.txOrders(tx)
		order, err := repo.FindByStripeIntentID(ctx, intent.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// An intent this platform never issued. Acknowledge so
				// Stripe stops redelivering it.
				if s.logg != nil {
					s.logg.Warn(s.logg.WithField(ctx, "stripe_intent_id", intent.ID), "payment event for unknown intent")
				}
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve order for intent")
		}

		if _, err := repo.FindByIDForUpdate(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock order")
		}

		target := enums.PaymentStatusSuccess
		if !succeeded {
			target = enums.PaymentStatusFailed
		}
		if order.PaymentIntent == nil || !order.PaymentIntent.Status.CanTransitionTo(target) {
			return nil
		}

		now := s.now()
		if succeeded {
			if err := repo.UpdatePayment(ctx, order.ID, map[string]any{
				"status":       enums.PaymentStatusSuccess,
				"succeeded_at": now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle payment")
			}
			if order.Status == enums.OrderStatusPending {
				if err := repo.UpdateStatus(ctx, order.ID, map[string]any{
					"status": enums.OrderStatusProcessing,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "advance order")
				}
			}
		} else {
			fields := map[string]any{"status": enums.PaymentStatusFailed}
			if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
				fields["failure_reason"] = intent.LastPaymentError.Msg
			}
			if err := repo.UpdatePayment(ctx, order.ID, fields); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment failure")
			}
		}

		eventType := enums.EventPaymentSucceeded
		if !succeeded {
			eventType = enums.EventPaymentFailed
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: map[string]any{
				"orderId":        order.ID,
				"stripeIntentId": intent.ID,
				"amountCents":    order.PaymentIntent.AmountCents,
			},
		})
	})
}
