package models

import (
	"context"
	"time"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
	"github.com/shopspring/decimal"
)

// Order is an open purchase order in the owner's ledger.
// Read-only input to matching.
type Order struct {
	ID         int             `gorm:"primary_key" json:"id"`
	OwnerId    string          `gorm:"index;not null;size:36" json:"owner_id"`
	ProviderId int             `gorm:"index;not null" json:"provider_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Currency   string          `gorm:"size:3;not null;default:'ARS'" json:"currency"`
	Status     OrderStatus     `gorm:"type:enum('AwaitingPayment','Sent','Paid','Closed','Cancelled');not null;default:'AwaitingPayment'" json:"status"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListOpenOrders returns orders in the open status subset. When providerIds is
// empty, all of the owner's open orders are returned (the provider matcher uses
// this for its recency and amount heuristics).
func ListOpenOrders(ctx context.Context, ownerId string, providerIds []int) ([]Order, error) {
	db := config.GetDB()
	var orders []Order
	dbCtx := db.WithContext(ctx).
		Where("owner_id = ? AND status IN ?", ownerId, OpenOrderStatuses()).
		Order("created_at DESC")
	if len(providerIds) > 0 {
		dbCtx = dbCtx.Where("provider_id IN ?", providerIds)
	}
	if err := dbCtx.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
