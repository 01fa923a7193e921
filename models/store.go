package models

import "context"

// Store adapts the package-level persistence functions to the collaborator
// interfaces the workflow package consumes. It carries no state; every call
// goes through the shared gorm DB.
type Store struct{}

func (Store) GetRecord(ctx context.Context, id string) (*PaymentRecord, error) {
	return GetPaymentRecord(ctx, id)
}

func (Store) UpdateRecord(ctx context.Context, id string, fields map[string]interface{}) error {
	return UpdatePaymentRecord(ctx, id, fields)
}

func (Store) InsertAssignmentAttempts(ctx context.Context, rows []AssignmentAttempt) error {
	return InsertAssignmentAttempts(ctx, rows)
}

func (Store) ListProviders(ctx context.Context, ownerId string) ([]Provider, error) {
	return ListProviders(ctx, ownerId)
}

func (Store) ListOpenOrders(ctx context.Context, ownerId string, providerIds []int) ([]Order, error) {
	return ListOpenOrders(ctx, ownerId, providerIds)
}

func (Store) GetOwner(ctx context.Context, id string) (*Owner, error) {
	return GetOwnerById(ctx, id)
}
