package matching

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
)

func TestOrderMatcher_NoProviderMeansNoOrder(t *testing.T) {
	m := NewOrderMatcher(DefaultThresholds())
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(15000), Status: models.OrderStatusAwaitingPayment},
	}
	rec := recordWithText("", amountPtr(15000))

	if got := m.Match(rec, nil, orders); got != nil {
		t.Fatalf("expected nil without provider candidates, got %+v", got)
	}
}

func TestOrderMatcher_ExactAmountInheritsTaxIdConfidence(t *testing.T) {
	m := NewOrderMatcher(DefaultThresholds())
	providerMatches := []Candidate{
		{TargetId: 1, Confidence: 1.0, Method: models.MatchMethodTaxId},
	}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(15000), Status: models.OrderStatusAwaitingPayment},
	}
	rec := recordWithText("", amountPtr(15000))

	got := m.Match(rec, providerMatches, orders)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].TargetId != 10 || got[0].Confidence != 1.0 || got[0].Method != models.MatchMethodExactAmountAndProvider {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
}

func TestOrderMatcher_ExactAmountWithoutTaxIdUsesBase(t *testing.T) {
	m := NewOrderMatcher(DefaultThresholds())
	providerMatches := []Candidate{
		{TargetId: 1, Confidence: 0.6, Method: models.MatchMethodProvider},
	}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(15000), Status: models.OrderStatusAwaitingPayment},
	}
	rec := recordWithText("", amountPtr(15000))

	got := m.Match(rec, providerMatches, orders)
	if len(got) != 1 || got[0].Confidence != 0.9 {
		t.Fatalf("expected base confidence 0.9, got %+v", got)
	}
}

func TestOrderMatcher_ToleranceBoundary(t *testing.T) {
	m := NewOrderMatcher(DefaultThresholds())
	providerMatches := []Candidate{
		{TargetId: 1, Confidence: 0.6, Method: models.MatchMethodProvider},
	}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(15002), Status: models.OrderStatusAwaitingPayment},    // diff 2: eligible
		{ID: 11, ProviderId: 1, Amount: decimal.NewFromFloat(15002.01), Status: models.OrderStatusAwaitingPayment}, // diff 2.01: not
	}
	rec := recordWithText("", amountPtr(15000))

	got := m.Match(rec, providerMatches, orders)
	if len(got) != 1 {
		t.Fatalf("expected only the diff-2 order, got %d: %+v", len(got), got)
	}
	if got[0].TargetId != 10 || got[0].Method != models.MatchMethodToleranceAmountAndProvider {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
	want := 0.9 - (2.0/15000.0)*0.1
	if !almostEqual(got[0].Confidence, want) {
		t.Fatalf("confidence = %v, want %v", got[0].Confidence, want)
	}
}

func TestOrderMatcher_ConfidenceFloor(t *testing.T) {
	m := NewOrderMatcher(DefaultThresholds())
	providerMatches := []Candidate{
		{TargetId: 1, Confidence: 0.6, Method: models.MatchMethodProvider},
	}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromFloat(2.5), Status: models.OrderStatusAwaitingPayment},
	}
	// diff 2 against amount 0.5 decays far below 0.7 without the floor
	rec := recordWithText("", amountPtr(0.5))

	got := m.Match(rec, providerMatches, orders)
	if len(got) != 1 || got[0].Confidence != 0.7 {
		t.Fatalf("expected floor confidence 0.7, got %+v", got)
	}
}

func TestOrderMatcher_SkipsClosedOrders(t *testing.T) {
	m := NewOrderMatcher(DefaultThresholds())
	providerMatches := []Candidate{
		{TargetId: 1, Confidence: 1.0, Method: models.MatchMethodTaxId},
	}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(15000), Status: models.OrderStatusPaid},
	}
	rec := recordWithText("", amountPtr(15000))

	if got := m.Match(rec, providerMatches, orders); len(got) != 0 {
		t.Fatalf("expected no candidates for a closed order, got %+v", got)
	}
}

func TestOrderMatcher_SortsExactAboveTolerance(t *testing.T) {
	m := NewOrderMatcher(DefaultThresholds())
	providerMatches := []Candidate{
		{TargetId: 1, Confidence: 0.6, Method: models.MatchMethodProvider},
	}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(15001), Status: models.OrderStatusAwaitingPayment},
		{ID: 11, ProviderId: 1, Amount: decimal.NewFromInt(15000), Status: models.OrderStatusAwaitingPayment},
	}
	rec := recordWithText("", amountPtr(15000))

	got := m.Match(rec, providerMatches, orders)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].TargetId != 11 || got[1].TargetId != 10 {
		t.Fatalf("expected the exact match first, got %+v", got)
	}
}
