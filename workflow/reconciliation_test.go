package workflow

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/utils"
)

// NOTE: These tests are intentionally DB-free. They validate the pipeline
// semantics against in-memory collaborators; full MySQL + Pub/Sub integration
// tests belong in an environment that can run both.

type fakeStore struct {
	records    map[string]*models.PaymentRecord
	updates    []map[string]interface{}
	attempts   [][]models.AssignmentAttempt
	failUpdate int // fail the next N UpdateRecord calls
}

func (s *fakeStore) GetRecord(ctx context.Context, id string) (*models.PaymentRecord, error) {
	r, ok := s.records[id]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	return r, nil
}

func (s *fakeStore) UpdateRecord(ctx context.Context, id string, fields map[string]interface{}) error {
	if s.failUpdate > 0 {
		s.failUpdate--
		return errors.New("write refused")
	}
	s.updates = append(s.updates, fields)
	return nil
}

func (s *fakeStore) InsertAssignmentAttempts(ctx context.Context, rows []models.AssignmentAttempt) error {
	s.attempts = append(s.attempts, rows)
	return nil
}

type fakeProviders struct{ providers []models.Provider }

func (f *fakeProviders) ListProviders(ctx context.Context, ownerId string) ([]models.Provider, error) {
	return f.providers, nil
}

type fakeOrders struct{ orders []models.Order }

func (f *fakeOrders) ListOpenOrders(ctx context.Context, ownerId string, providerIds []int) ([]models.Order, error) {
	return f.orders, nil
}

type fakeOwners struct{ owner *models.Owner }

func (f *fakeOwners) GetOwner(ctx context.Context, id string) (*models.Owner, error) {
	if f.owner == nil {
		return nil, utils.ErrorRecordNotFound
	}
	return f.owner, nil
}

type fakeNotifier struct{ notified []string }

func (f *fakeNotifier) NotifyAssigned(ctx context.Context, record *models.PaymentRecord) error {
	f.notified = append(f.notified, record.ID)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
}

func amount(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func newTestPipeline(store *fakeStore, providers []models.Provider, orders []models.Order, notifier Notifier) *Pipeline {
	return NewPipeline(PipelineDeps{
		Records:   store,
		Providers: &fakeProviders{providers: providers},
		Orders:    &fakeOrders{orders: orders},
		Owners:    &fakeOwners{owner: &models.Owner{ID: "owner-1", Name: "Mi Negocio", TaxId: "20123456786"}},
		Notifier:  notifier,
		Now:       fixedNow,
	})
}

func TestPipeline_EndToEndAssignedViaTaxId(t *testing.T) {
	t.Setenv("NOTIFY_ON_ASSIGNMENT", "false")

	rawText := strings.Join([]string{
		"Razón Social: ACME SRL",
		"FACTURA B 0002-00004411",
		"Domicilio: Av. Belgrano 950",
		"CUIT: 30-12345678-1",
	}, "\n")
	record := &models.PaymentRecord{
		ID:              "rec-1",
		OwnerId:         "owner-1",
		Amount:          amount(15000),
		Status:          models.RecordStatusPending,
		ExtractedFields: map[string]string{"raw_text": rawText},
	}
	store := &fakeStore{records: map[string]*models.PaymentRecord{"rec-1": record}}
	providers := []models.Provider{{ID: 7, OwnerId: "owner-1", Name: "ACME SRL", TaxId: "30123456781"}}
	orders := []models.Order{{ID: 42, OwnerId: "owner-1", ProviderId: 7, Amount: decimal.NewFromInt(15000), Status: models.OrderStatusAwaitingPayment}}

	p := newTestPipeline(store, providers, orders, nil)
	got, err := p.Run(context.Background(), "rec-1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Status != models.RecordStatusAssigned {
		t.Fatalf("status = %s, want Assigned", got.Status)
	}
	if got.AssignedProviderId == nil || *got.AssignedProviderId != 7 {
		t.Errorf("assigned provider = %+v", got.AssignedProviderId)
	}
	if got.AssignedOrderId == nil || *got.AssignedOrderId != 42 {
		t.Errorf("assigned order = %+v", got.AssignedOrderId)
	}
	if got.AssignmentConfidence == nil || *got.AssignmentConfidence != 1.0 {
		t.Errorf("confidence = %+v, want 1.0", got.AssignmentConfidence)
	}
	if got.AssignmentMethod == nil || *got.AssignmentMethod != models.MatchMethodTaxId {
		t.Errorf("method = %+v, want tax_id_match", got.AssignmentMethod)
	}
	if got.ExtractedFields["counterparty_tax_id"] != "30123456781" {
		t.Errorf("counterparty_tax_id = %q", got.ExtractedFields["counterparty_tax_id"])
	}
	if got.ExtractedFields["counterparty_name"] != "ACME SRL" {
		t.Errorf("counterparty_name = %q", got.ExtractedFields["counterparty_name"])
	}

	if len(store.attempts) != 1 {
		t.Fatalf("expected 1 audit batch, got %d", len(store.attempts))
	}
	batch := store.attempts[0]
	if len(batch) != 2 {
		t.Fatalf("expected provider + order attempts, got %d", len(batch))
	}
	for _, a := range batch {
		if !a.Success {
			t.Errorf("attempt %+v should be marked successful", a)
		}
	}
}

func TestPipeline_EndToEndNoMatch(t *testing.T) {
	record := &models.PaymentRecord{
		ID:              "rec-2",
		OwnerId:         "owner-1",
		Amount:          amount(999999),
		Status:          models.RecordStatusPending,
		ExtractedFields: map[string]string{"raw_text": "transferencia recibida"},
	}
	store := &fakeStore{records: map[string]*models.PaymentRecord{"rec-2": record}}

	p := newTestPipeline(store, []models.Provider{{ID: 7, Name: "Quimica Delta"}}, nil, nil)
	got, err := p.Run(context.Background(), "rec-2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got.Status != models.RecordStatusProcessed {
		t.Fatalf("status = %s, want Processed", got.Status)
	}
	if got.AssignedProviderId != nil || got.AssignedOrderId != nil || got.AssignmentConfidence != nil || got.AssignmentMethod != nil {
		t.Fatalf("no assignment fields may be set: %+v", got)
	}
	// The empty audit batch must still be persisted.
	if len(store.attempts) != 1 || len(store.attempts[0]) != 0 {
		t.Fatalf("expected one empty audit batch, got %+v", store.attempts)
	}
}

func TestPipeline_RerunIsIdempotent(t *testing.T) {
	rawText := "pago CUIT: 30-12345678-1"
	record := &models.PaymentRecord{
		ID:              "rec-3",
		OwnerId:         "owner-1",
		Amount:          amount(500),
		ExtractedFields: map[string]string{"raw_text": rawText},
	}
	store := &fakeStore{records: map[string]*models.PaymentRecord{"rec-3": record}}
	providers := []models.Provider{{ID: 7, Name: "ACME SRL", TaxId: "30123456781"}}
	orders := []models.Order{{ID: 42, ProviderId: 7, Amount: decimal.NewFromInt(500), Status: models.OrderStatusAwaitingPayment}}

	p := newTestPipeline(store, providers, orders, nil)
	if _, err := p.Run(context.Background(), "rec-3"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := p.Run(context.Background(), "rec-3"); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(store.updates) != 2 {
		t.Fatalf("expected 2 record updates, got %d", len(store.updates))
	}
	if !reflect.DeepEqual(assignmentFields(store.updates[0]), assignmentFields(store.updates[1])) {
		t.Fatalf("re-run changed the decision:\nfirst:  %+v\nsecond: %+v", store.updates[0], store.updates[1])
	}
	// The audit trail accumulates, one batch per run.
	if len(store.attempts) != 2 {
		t.Fatalf("expected 2 audit batches, got %d", len(store.attempts))
	}
}

func assignmentFields(update map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, k := range []string{"status", "assigned_provider_id", "assigned_order_id", "assignment_confidence", "assignment_method"} {
		v := update[k]
		// compare pointed-to values, not pointer identity
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Ptr && !rv.IsNil() {
			v = rv.Elem().Interface()
		}
		out[k] = v
	}
	return out
}

func TestPipeline_PersistenceFailureMarksError(t *testing.T) {
	record := &models.PaymentRecord{
		ID:              "rec-4",
		OwnerId:         "owner-1",
		Amount:          amount(100),
		ExtractedFields: map[string]string{"raw_text": "sin datos"},
	}
	store := &fakeStore{
		records:    map[string]*models.PaymentRecord{"rec-4": record},
		failUpdate: 1,
	}

	p := newTestPipeline(store, nil, nil, nil)
	if _, err := p.Run(context.Background(), "rec-4"); err == nil {
		t.Fatal("expected the persistence failure to surface")
	}

	// The compensating write marks the record Error with a reason.
	if len(store.updates) != 1 {
		t.Fatalf("expected the error write, got %d updates", len(store.updates))
	}
	last := store.updates[0]
	if last["status"] != models.RecordStatusError {
		t.Fatalf("status = %v, want Error", last["status"])
	}
	if last["processing_error"] == "" {
		t.Fatal("processing_error must carry the cause")
	}
}

func TestPipeline_NotifierCalledOnAssignment(t *testing.T) {
	t.Setenv("NOTIFY_ON_ASSIGNMENT", "true")

	record := &models.PaymentRecord{
		ID:              "rec-5",
		OwnerId:         "owner-1",
		Amount:          amount(500),
		ExtractedFields: map[string]string{"raw_text": "pago CUIT: 30-12345678-1"},
	}
	store := &fakeStore{records: map[string]*models.PaymentRecord{"rec-5": record}}
	providers := []models.Provider{{ID: 7, Name: "ACME SRL", TaxId: "30123456781"}}
	orders := []models.Order{{ID: 42, ProviderId: 7, Amount: decimal.NewFromInt(500), Status: models.OrderStatusAwaitingPayment}}
	notifier := &fakeNotifier{}

	p := newTestPipeline(store, providers, orders, notifier)
	if _, err := p.Run(context.Background(), "rec-5"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(notifier.notified, []string{"rec-5"}) {
		t.Fatalf("notified = %+v", notifier.notified)
	}
}
