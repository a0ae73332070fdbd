package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregateCart   OutboxAggregateType = "cart"
	AggregateCoupon OutboxAggregateType = "coupon"
)

var aggregateTypeSet = map[OutboxAggregateType]struct{}{
	AggregateOrder:  {},
	AggregateCart:   {},
	AggregateCoupon: {},
}

// IsValid reports whether the value matches the aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	_, ok := aggregateTypeSet[a]
	return ok
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order_created"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventOrderCanceled      OutboxEventType = "order_canceled"
	EventPaymentSucceeded   OutboxEventType = "payment_succeeded"
	EventPaymentFailed      OutboxEventType = "payment_failed"
	EventCouponRedeemed     OutboxEventType = "coupon_redeemed"
)

var outboxEventTypeSet = map[OutboxEventType]struct{}{
	EventOrderCreated:       {},
	EventOrderStatusChanged: {},
	EventOrderCanceled:      {},
	EventPaymentSucceeded:   {},
	EventPaymentFailed:      {},
	EventCouponRedeemed:     {},
}

// IsValid reports whether the value matches the event_type enum.
func (e OutboxEventType) IsValid() bool {
	_, ok := outboxEventTypeSet[e]
	return ok
}
