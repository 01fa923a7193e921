package models

import (
	"context"
	"errors"
	"time"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentRecord is a payment receipt (or invoice-derived record) sent in by a
// supplier over the messaging channel. It is mutated exclusively by the
// reconciliation pipeline.
type PaymentRecord struct {
	ID                   string            `gorm:"primaryKey;size:36" json:"id"`
	OwnerId              string            `gorm:"index;not null;size:36" json:"owner_id"`
	Amount               *decimal.Decimal  `gorm:"type:decimal(20,4)" json:"amount"`
	Currency             string            `gorm:"size:3;not null;default:'ARS'" json:"currency"`
	ReceiptNumber        string            `gorm:"size:255" json:"receipt_number"`
	ExtractedFields      map[string]string `gorm:"serializer:json" json:"extracted_fields"`
	Status               RecordStatus      `gorm:"type:enum('Pending','Processed','Assigned','Sent','Error');not null;default:'Pending'" json:"status"`
	AssignedProviderId   *int              `json:"assigned_provider_id"`
	AssignedOrderId      *int              `json:"assigned_order_id"`
	AssignmentConfidence *float64          `json:"assignment_confidence"`
	AssignmentMethod     *MatchMethod      `gorm:"size:40" json:"assignment_method"`
	ProcessingError      string            `gorm:"type:text" json:"processing_error"`
	FileUrl              string            `gorm:"size:512" json:"file_url"`
	SenderPhone          string            `gorm:"size:20" json:"sender_phone"`
	CreatedAt            time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func CreatePaymentRecord(ctx context.Context, record *PaymentRecord) error {
	if record.OwnerId == "" {
		return errors.New("owner id is required")
	}
	if record.Status == "" {
		record.Status = RecordStatusPending
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(record).Error
}

func GetPaymentRecord(ctx context.Context, id string) (*PaymentRecord, error) {
	db := config.GetDB()
	var record PaymentRecord
	if err := db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// UpdatePaymentRecord applies the assignment decision as a single logical write.
// Callers pass the full field set so a re-run overwrites the previous decision.
func UpdatePaymentRecord(ctx context.Context, id string, fields map[string]interface{}) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&PaymentRecord{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// MarkRecordSent transitions Assigned -> Sent after the messaging service
// confirms delivery. Any other source state is rejected (no backward moves).
func MarkRecordSent(ctx context.Context, ownerId, recordId string) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&PaymentRecord{}).
		Where("id = ? AND owner_id = ? AND status = ?", recordId, ownerId, RecordStatusAssigned).
		Update("status", RecordStatusSent)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("record is not in Assigned state")
	}
	return nil
}

func ListPaymentRecordsByStatus(ctx context.Context, ownerId string, statuses []RecordStatus, limit int) ([]PaymentRecord, error) {
	db := config.GetDB()
	var records []PaymentRecord
	dbCtx := db.WithContext(ctx).Where("status IN ?", statuses).Order("created_at")
	if ownerId != "" {
		dbCtx = dbCtx.Where("owner_id = ?", ownerId)
	}
	if limit > 0 {
		dbCtx = dbCtx.Limit(limit)
	}
	if err := dbCtx.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
