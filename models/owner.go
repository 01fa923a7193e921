package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/utils"
	"gorm.io/gorm"
)

// Owner is the tenant: the business whose inbox receives supplier receipts.
// Its tax-id is what disambiguates the counterparty on a tax invoice, which
// names both the issuer and the buyer.
type Owner struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	TaxId     string    `gorm:"size:20" json:"tax_id"`
	Phone     string    `gorm:"size:20" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetOwnerById fetches an owner, redis-cached. Owners change rarely; the cache
// TTL keeps stale tax-ids bounded.
func GetOwnerById(ctx context.Context, id string) (*Owner, error) {
	if id == "" {
		return nil, errors.New("owner id is required")
	}

	var owner Owner
	redisKey := "owner:" + id
	exists, err := config.GetRedisObject(redisKey, &owner)
	if err != nil {
		return nil, err
	}
	if exists {
		return &owner, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", id).First(&owner).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, fmt.Errorf("failed to fetch owner: %w", err)
	}
	if err := config.SetRedisObject(redisKey, &owner, 10*time.Minute); err != nil {
		return nil, err
	}
	return &owner, nil
}
