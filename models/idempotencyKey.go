package models

import "time"

// IdempotencyKey makes push-message processing safe under at-least-once
// delivery. One row per (owner, handler, message).
type IdempotencyKey struct {
	ID          int               `gorm:"primary_key" json:"id"`
	OwnerId     string            `gorm:"size:36;not null;uniqueIndex:idx_idem_owner_handler_msg" json:"owner_id"`
	HandlerName string            `gorm:"size:64;not null;uniqueIndex:idx_idem_owner_handler_msg" json:"handler_name"`
	MessageId   string            `gorm:"size:128;not null;uniqueIndex:idx_idem_owner_handler_msg" json:"message_id"`
	Status      IdempotencyStatus `gorm:"type:enum('Started','Succeeded','Failed');not null;default:'Started'" json:"status"`
	LastError   *string           `gorm:"type:text" json:"last_error"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
