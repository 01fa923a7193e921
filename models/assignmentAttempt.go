package models

import (
	"context"
	"time"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
)

// AssignmentAttempt is an audit row recording one candidate considered by the
// pipeline. Attempts only ever accumulate; re-running a record appends a new
// batch rather than rewriting history.
type AssignmentAttempt struct {
	ID         int               `gorm:"primary_key" json:"id"`
	OwnerId    string            `gorm:"index;not null;size:36" json:"owner_id"`
	RecordId   string            `gorm:"index;not null;size:36" json:"record_id"`
	TargetKind AttemptTargetKind `gorm:"type:enum('provider','order');not null" json:"target_kind"`
	TargetId   int               `gorm:"not null" json:"target_id"`
	Method     MatchMethod       `gorm:"size:40;not null" json:"method"`
	Confidence float64           `gorm:"not null" json:"confidence"`
	Details    map[string]string `gorm:"serializer:json" json:"details"`
	Success    bool              `gorm:"not null" json:"success"`
	CreatedAt  time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// InsertAssignmentAttempts persists one audit batch. An empty batch is a valid
// outcome (no candidates) and is a no-op write.
func InsertAssignmentAttempts(ctx context.Context, rows []AssignmentAttempt) error {
	if len(rows) == 0 {
		return nil
	}
	db := config.GetDB()
	return db.WithContext(ctx).Create(&rows).Error
}

func ListAssignmentAttempts(ctx context.Context, ownerId, recordId string) ([]AssignmentAttempt, error) {
	db := config.GetDB()
	var rows []AssignmentAttempt
	if err := db.WithContext(ctx).
		Where("owner_id = ? AND record_id = ?", ownerId, recordId).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
