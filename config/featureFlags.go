package config

import (
	"os"
	"strings"
)

// NotifyOnAssignment enables publishing a downstream notification when a record
// reaches Assigned. Delivery itself is handled by the messaging service.
//
// Set via env:
// - NOTIFY_ON_ASSIGNMENT=true
func NotifyOnAssignment() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_ON_ASSIGNMENT")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// DuplicateReceiptGuard enables the redis-backed recently-seen receipt check.
// When a receipt with the same counterparty tax-id + amount was processed within
// the TTL window, the record is flagged (not rejected) for human review.
//
// Set via env:
// - DUPLICATE_RECEIPT_GUARD=true
func DuplicateReceiptGuard() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DUPLICATE_RECEIPT_GUARD")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
