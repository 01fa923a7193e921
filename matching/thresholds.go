package matching

import (
	"time"

	"github.com/shopspring/decimal"
)

// Thresholds is the single configuration table for every confidence cutoff and
// amount tolerance used by the matchers and the assignment resolver. The values
// are business-agreed; adjust them here or nowhere.
//
// The provider pass and the order pass deliberately carry different amount
// tolerances (1 vs 2 currency units). Do not unify them.
type Thresholds struct {
	// Provider pass.
	TaxIdConfidence         float64
	NameConfidence          float64
	RecentOrderConfidence   float64
	AmountExactConfidence   float64
	AmountFloorConfidence   float64
	ProviderAmountTolerance decimal.Decimal
	RecentOrderWindow       time.Duration

	// Order pass.
	OrderExactConfidence float64
	OrderFloorConfidence float64
	OrderAmountTolerance decimal.Decimal

	// Resolver gate and audit.
	TaxIdGate          float64
	GeneralGate        float64
	GateMargin         float64
	AuditSuccessCutoff float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		TaxIdConfidence:         1.0,
		NameConfidence:          0.6,
		RecentOrderConfidence:   0.5,
		AmountExactConfidence:   0.9,
		AmountFloorConfidence:   0.8,
		ProviderAmountTolerance: decimal.NewFromInt(1),
		RecentOrderWindow:       30 * 24 * time.Hour,

		OrderExactConfidence: 0.9,
		OrderFloorConfidence: 0.7,
		OrderAmountTolerance: decimal.NewFromInt(2),

		TaxIdGate:          0.95,
		GeneralGate:        0.92,
		GateMargin:         0.2,
		AuditSuccessCutoff: 0.7,
	}
}
