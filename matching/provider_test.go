package matching

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
)

func amountPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func recordWithText(text string, amount *decimal.Decimal) *models.PaymentRecord {
	return &models.PaymentRecord{
		ID:              "rec-1",
		OwnerId:         "owner-1",
		Amount:          amount,
		ExtractedFields: map[string]string{"raw_text": text},
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestProviderMatcher_TaxIdBeatsEverything(t *testing.T) {
	m := NewProviderMatcher(DefaultThresholds())
	providers := []models.Provider{
		{ID: 1, Name: "ACME SRL", TaxId: "30712345671"},
		{ID: 2, Name: "Ferreteria Norte"}, // name also present in text
	}
	rec := recordWithText("pago Ferreteria Norte CUIT: 30-71234567-1", amountPtr(15000))

	got := m.Match(rec, providers, nil, testNow)
	if len(got) != 1 {
		t.Fatalf("expected only the tax-id candidate, got %d: %+v", len(got), got)
	}
	if got[0].TargetId != 1 || got[0].Method != models.MatchMethodTaxId || got[0].Confidence != 1.0 {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
}

func TestProviderMatcher_TaxIdFromRecognizerMetadata(t *testing.T) {
	m := NewProviderMatcher(DefaultThresholds())
	providers := []models.Provider{{ID: 1, Name: "ACME SRL", TaxId: "30712345671"}}
	rec := &models.PaymentRecord{
		ID:      "rec-1",
		OwnerId: "owner-1",
		ExtractedFields: map[string]string{
			"raw_text":            "sin identificadores en el cuerpo",
			"ocr_supplier_tax_id": "30-71234567-1",
		},
	}

	got := m.Match(rec, providers, nil, testNow)
	if len(got) != 1 || got[0].Method != models.MatchMethodTaxId || got[0].Confidence != 1.0 {
		t.Fatalf("expected a tax-id candidate from recognizer metadata, got %+v", got)
	}
}

func TestProviderMatcher_NameSubstring(t *testing.T) {
	m := NewProviderMatcher(DefaultThresholds())
	providers := []models.Provider{
		{ID: 1, Name: "ACME SRL"},
		{ID: 2, Name: "Otro Proveedor"},
	}
	rec := recordWithText("transferencia a acme srl por materiales", nil)

	got := m.Match(rec, providers, nil, testNow)
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].TargetId != 1 || got[0].Method != models.MatchMethodProvider || got[0].Confidence != 0.6 {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
}

func TestProviderMatcher_AmountExactAndToleranceBoundary(t *testing.T) {
	m := NewProviderMatcher(DefaultThresholds())
	providers := []models.Provider{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(15000), Status: models.OrderStatusAwaitingPayment},
		{ID: 11, ProviderId: 2, Amount: decimal.NewFromInt(15001), Status: models.OrderStatusAwaitingPayment}, // diff exactly 1: still eligible
		{ID: 12, ProviderId: 3, Amount: decimal.NewFromFloat(15001.5), Status: models.OrderStatusAwaitingPayment},
	}
	rec := recordWithText("", amountPtr(15000))

	got := m.Match(rec, providers, orders, testNow)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates (diff 0 and diff 1), got %d: %+v", len(got), got)
	}
	if got[0].TargetId != 1 || got[0].Confidence != 0.9 || got[0].Method != models.MatchMethodAmount {
		t.Fatalf("exact candidate wrong: %+v", got[0])
	}
	wantNear := 0.9 - 1.0/15000.0
	if got[1].TargetId != 2 || !almostEqual(got[1].Confidence, wantNear) {
		t.Fatalf("near candidate wrong, want conf %v: %+v", wantNear, got[1])
	}
}

func TestProviderMatcher_AmountConfidenceFloor(t *testing.T) {
	m := NewProviderMatcher(DefaultThresholds())
	providers := []models.Provider{{ID: 1, Name: "A"}}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(6), Status: models.OrderStatusSent},
	}
	// diff 1 on a tiny amount would decay below 0.8 without the floor
	rec := recordWithText("", amountPtr(5))

	got := m.Match(rec, providers, orders, testNow)
	if len(got) != 1 || got[0].Confidence != 0.8 {
		t.Fatalf("expected floor confidence 0.8, got %+v", got)
	}
}

func TestProviderMatcher_RecentOrderOnlyWhenNothingElse(t *testing.T) {
	m := NewProviderMatcher(DefaultThresholds())
	providers := []models.Provider{{ID: 1, Name: "Quimica Delta"}, {ID: 2, Name: "Viveros Oeste"}}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(500), Status: models.OrderStatusAwaitingPayment, CreatedAt: testNow.AddDate(0, 0, -10)},
		{ID: 11, ProviderId: 2, Amount: decimal.NewFromInt(600), Status: models.OrderStatusAwaitingPayment, CreatedAt: testNow.AddDate(0, 0, -40)},
	}
	rec := recordWithText("sin texto util", nil)

	got := m.Match(rec, providers, orders, testNow)
	if len(got) != 1 {
		t.Fatalf("expected 1 recency candidate, got %d: %+v", len(got), got)
	}
	if got[0].TargetId != 1 || got[0].Confidence != 0.5 || got[0].Method != models.MatchMethodProvider {
		t.Fatalf("unexpected candidate: %+v", got[0])
	}
}

func TestProviderMatcher_DedupKeepsHighestConfidence(t *testing.T) {
	m := NewProviderMatcher(DefaultThresholds())
	providers := []models.Provider{{ID: 1, Name: "ACME SRL"}}
	orders := []models.Order{
		{ID: 10, ProviderId: 1, Amount: decimal.NewFromInt(15000), Status: models.OrderStatusAwaitingPayment},
	}
	// matches by name (0.6) and by exact amount (0.9); one candidate survives
	rec := recordWithText("pago a ACME SRL", amountPtr(15000))

	got := m.Match(rec, providers, orders, testNow)
	if len(got) != 1 {
		t.Fatalf("expected deduped single candidate, got %d: %+v", len(got), got)
	}
	if got[0].Confidence != 0.9 || got[0].Method != models.MatchMethodAmount {
		t.Fatalf("expected the amount match to win, got %+v", got[0])
	}
}
