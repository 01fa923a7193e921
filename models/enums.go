package models

// RecordStatus is the reconciliation state of a payment record.
// Transitions only move forward (Pending -> Processed -> Assigned -> Sent);
// Error is reachable from any state.
type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "Pending"
	RecordStatusProcessed RecordStatus = "Processed"
	RecordStatusAssigned  RecordStatus = "Assigned"
	RecordStatusSent      RecordStatus = "Sent"
	RecordStatusError     RecordStatus = "Error"
)

// MatchMethod identifies which matching rule produced a candidate.
// The first three are the only values persisted on a record; the
// order-pass methods appear on audit rows only.
type MatchMethod string

const (
	MatchMethodTaxId    MatchMethod = "tax_id_match"
	MatchMethodAmount   MatchMethod = "amount_match"
	MatchMethodProvider MatchMethod = "provider_match"

	MatchMethodExactAmountAndProvider     MatchMethod = "exact_amount_and_provider_match"
	MatchMethodToleranceAmountAndProvider MatchMethod = "tolerance_amount_and_provider_match"
)

type OrderStatus string

const (
	OrderStatusAwaitingPayment OrderStatus = "AwaitingPayment"
	OrderStatusSent            OrderStatus = "Sent"
	OrderStatusPaid            OrderStatus = "Paid"
	OrderStatusClosed          OrderStatus = "Closed"
	OrderStatusCancelled       OrderStatus = "Cancelled"
)

// OpenOrderStatuses is the subset of order states eligible for payment matching.
func OpenOrderStatuses() []OrderStatus {
	return []OrderStatus{OrderStatusAwaitingPayment, OrderStatusSent}
}

type AttemptTargetKind string

const (
	AttemptTargetProvider AttemptTargetKind = "provider"
	AttemptTargetOrder    AttemptTargetKind = "order"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "Started"
	IdempotencyStatusSucceeded IdempotencyStatus = "Succeeded"
	IdempotencyStatusFailed    IdempotencyStatus = "Failed"
)
