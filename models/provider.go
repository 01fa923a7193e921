package models

import (
	"context"
	"time"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
)

// Provider is a counterparty (supplier) in the owner's registry.
// Read-only input to matching; the registry is maintained elsewhere.
type Provider struct {
	ID        int       `gorm:"primary_key" json:"id"`
	OwnerId   string    `gorm:"index;not null;size:36" json:"owner_id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	TaxId     string    `gorm:"size:20" json:"tax_id"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Email     string    `gorm:"size:100" json:"email"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func ListProviders(ctx context.Context, ownerId string) ([]Provider, error) {
	db := config.GetDB()
	var providers []Provider
	if err := db.WithContext(ctx).
		Where("owner_id = ? AND is_active = 1", ownerId).
		Order("id").
		Find(&providers).Error; err != nil {
		return nil, err
	}
	return providers, nil
}
