package workflow

import (
	"context"
	"errors"
	"os"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/utils"
)

// AssignedNotification is the payload the messaging service consumes when a
// record reaches Assigned. SenderPhone is E.164-normalized when possible so
// the channel can reply to the supplier directly.
type AssignedNotification struct {
	OwnerId       string   `json:"owner_id"`
	RecordId      string   `json:"record_id"`
	ProviderId    *int     `json:"provider_id"`
	OrderId       *int     `json:"order_id"`
	Confidence    *float64 `json:"confidence"`
	Method        string   `json:"method"`
	SenderPhone   string   `json:"sender_phone,omitempty"`
	CorrelationId string   `json:"correlation_id,omitempty"`
}

// PubSubNotifier publishes assignment notifications to the topic named by
// NOTIFY_TOPIC. Delivery to the supplier is the messaging service's job.
type PubSubNotifier struct{}

func (PubSubNotifier) NotifyAssigned(ctx context.Context, record *models.PaymentRecord) error {
	topic := os.Getenv("NOTIFY_TOPIC")
	if topic == "" {
		return errors.New("NOTIFY_TOPIC is required")
	}

	msg := AssignedNotification{
		OwnerId:    record.OwnerId,
		RecordId:   record.ID,
		ProviderId: record.AssignedProviderId,
		OrderId:    record.AssignedOrderId,
		Confidence: record.AssignmentConfidence,
	}
	if record.AssignmentMethod != nil {
		msg.Method = string(*record.AssignmentMethod)
	}
	if record.SenderPhone != "" {
		if phone, err := utils.FormatPhoneNumberE164(record.SenderPhone, utils.CountryCode); err == nil {
			msg.SenderPhone = phone
		} else {
			msg.SenderPhone = record.SenderPhone
		}
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		msg.CorrelationId = correlationId
	}

	_, err := config.PublishToTopic(ctx, topic, msg)
	return err
}
