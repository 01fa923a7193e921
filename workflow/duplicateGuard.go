package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
)

// DuplicateGuard flags receipts that look like re-sends of something already
// processed: same owner, counterparty tax-id and amount within the TTL window.
// It never blocks a run, only marks the record for human review.
type DuplicateGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDuplicateGuard(rdb *redis.Client, ttl time.Duration) *DuplicateGuard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DuplicateGuard{rdb: rdb, ttl: ttl}
}

// SeenRecently reports whether an equivalent receipt passed through within the
// TTL window, and stamps the current one either way. Records without a
// counterparty tax-id or amount are never considered duplicates.
func (g *DuplicateGuard) SeenRecently(ctx context.Context, record *models.PaymentRecord) (bool, error) {
	if g == nil || g.rdb == nil {
		return false, nil
	}
	key := g.key(record)
	if key == "" {
		return false, nil
	}

	// SetNX both checks and claims the slot; the stored value is the record
	// id for debugging, never read back programmatically.
	created, err := g.rdb.SetNX(ctx, key, record.ID, g.ttl).Result()
	if err != nil {
		return false, err
	}
	if created {
		return false, nil
	}
	// The slot exists. It may be this same record being re-run, which is not
	// a duplicate.
	previous, err := g.rdb.Get(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return previous != record.ID, nil
}

func (g *DuplicateGuard) key(record *models.PaymentRecord) string {
	taxId := ""
	if record.ExtractedFields != nil {
		taxId = record.ExtractedFields["counterparty_tax_id"]
	}
	if taxId == "" || record.Amount == nil {
		return ""
	}
	sum := sha256.Sum256([]byte(record.OwnerId + "|" + taxId + "|" + record.Amount.String()))
	return "receipt_dedup:" + hex.EncodeToString(sum[:16])
}
