package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/extraction"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/matching"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/ocr"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/utils"
)

// Collaborator interfaces. Production wiring uses models.Store and the
// pubsub-backed notifier; tests swap in fakes.

type RecordStore interface {
	GetRecord(ctx context.Context, id string) (*models.PaymentRecord, error)
	UpdateRecord(ctx context.Context, id string, fields map[string]interface{}) error
	InsertAssignmentAttempts(ctx context.Context, rows []models.AssignmentAttempt) error
}

type ProviderRegistry interface {
	ListProviders(ctx context.Context, ownerId string) ([]models.Provider, error)
}

type OrderRegistry interface {
	ListOpenOrders(ctx context.Context, ownerId string, providerIds []int) ([]models.Order, error)
}

type OwnerRegistry interface {
	GetOwner(ctx context.Context, id string) (*models.Owner, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, data []byte, contentType string) (ocr.Result, error)
}

type Notifier interface {
	NotifyAssigned(ctx context.Context, record *models.PaymentRecord) error
}

// PipelineDeps wires the pipeline's collaborators. Records, Providers, Orders
// and Owners are required; Recognizer only for RunDocument; Notifier and Guard
// are optional.
type PipelineDeps struct {
	Records    RecordStore
	Providers  ProviderRegistry
	Orders     OrderRegistry
	Owners     OwnerRegistry
	Recognizer Recognizer
	Notifier   Notifier
	Guard      *DuplicateGuard
	Logger     *logrus.Logger
	Thresholds matching.Thresholds
	Now        func() time.Time
}

// Pipeline reconciles one payment record per invocation: extract counterparty
// identity from the record text, match providers and open orders, resolve, and
// persist the decision plus an audit batch. Safe to run concurrently across
// different records; re-running the same record overwrites the previous
// decision and appends to the audit trail.
type Pipeline struct {
	deps      PipelineDeps
	providers *matching.ProviderMatcher
	orders    *matching.OrderMatcher
	resolver  *Resolver
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = config.GetLogger()
	}
	if deps.Thresholds.TaxIdGate == 0 {
		deps.Thresholds = matching.DefaultThresholds()
	}
	return &Pipeline{
		deps:      deps,
		providers: matching.NewProviderMatcher(deps.Thresholds),
		orders:    matching.NewOrderMatcher(deps.Thresholds),
		resolver:  NewResolver(deps.Thresholds),
	}
}

// Run reconciles a record from its already-persisted extracted fields.
func (p *Pipeline) Run(ctx context.Context, recordId string) (*models.PaymentRecord, error) {
	record, err := p.deps.Records.GetRecord(ctx, recordId)
	if err != nil {
		config.LogError(p.deps.Logger, "reconciliationWorkflow.go", "Run", "Fetching payment record", recordId, err)
		return nil, err
	}
	return p.process(ctx, record)
}

// RunDocument recognizes the document bytes first, persists the recognized
// text onto the record, then reconciles. A recognizer failure propagates to
// the caller, who owns the retry policy.
func (p *Pipeline) RunDocument(ctx context.Context, recordId string, data []byte, contentType string) (*models.PaymentRecord, error) {
	if p.deps.Recognizer == nil {
		return nil, errors.New("no recognizer configured")
	}
	record, err := p.deps.Records.GetRecord(ctx, recordId)
	if err != nil {
		config.LogError(p.deps.Logger, "reconciliationWorkflow.go", "RunDocument", "Fetching payment record", recordId, err)
		return nil, err
	}

	result, err := p.deps.Recognizer.Recognize(ctx, data, contentType)
	if err != nil {
		config.LogError(p.deps.Logger, "reconciliationWorkflow.go", "RunDocument", "Recognizing document", recordId, err)
		return nil, err
	}
	if record.ExtractedFields == nil {
		record.ExtractedFields = map[string]string{}
	}
	record.ExtractedFields["raw_text"] = result.Text
	for k, v := range result.Metadata {
		record.ExtractedFields["ocr_"+k] = v
	}
	return p.process(ctx, record)
}

func (p *Pipeline) process(ctx context.Context, record *models.PaymentRecord) (*models.PaymentRecord, error) {
	now := p.deps.Now()
	if record.ExtractedFields == nil {
		record.ExtractedFields = map[string]string{}
	}

	p.extractCounterparty(ctx, record)

	if p.deps.Guard != nil && config.DuplicateReceiptGuard() {
		if seen, err := p.deps.Guard.SeenRecently(ctx, record); err != nil {
			config.LogError(p.deps.Logger, "reconciliationWorkflow.go", "process", "Duplicate guard lookup", record.ID, err)
		} else if seen {
			record.ExtractedFields["possible_duplicate"] = "true"
		}
	}

	providers, err := p.deps.Providers.ListProviders(ctx, record.OwnerId)
	if err != nil {
		config.LogError(p.deps.Logger, "reconciliationWorkflow.go", "process", "Listing providers", record.ID, err)
		return nil, err
	}
	openOrders, err := p.deps.Orders.ListOpenOrders(ctx, record.OwnerId, nil)
	if err != nil {
		config.LogError(p.deps.Logger, "reconciliationWorkflow.go", "process", "Listing open orders", record.ID, err)
		return nil, err
	}

	providerMatches := p.providers.Match(record, providers, openOrders, now)
	orderMatches := p.orders.Match(record, providerMatches, openOrders)
	resolution := p.resolver.Resolve(providerMatches, orderMatches)

	// The audit batch is written on every run, empty candidate sets included.
	attempts := buildAttempts(record, providerMatches, orderMatches, p.deps.Thresholds.AuditSuccessCutoff)
	if err := p.deps.Records.InsertAssignmentAttempts(ctx, attempts); err != nil {
		p.markError(ctx, record.ID, err)
		return nil, err
	}

	fields := map[string]interface{}{
		"status":                resolution.Status,
		"assigned_provider_id":  resolution.ProviderId,
		"assigned_order_id":     resolution.OrderId,
		"assignment_confidence": resolution.Confidence,
		"assignment_method":     resolution.Method,
		"processing_error":      "",
		"extracted_fields":      record.ExtractedFields,
	}
	if err := p.deps.Records.UpdateRecord(ctx, record.ID, fields); err != nil {
		p.markError(ctx, record.ID, err)
		return nil, err
	}

	record.Status = resolution.Status
	record.AssignedProviderId = resolution.ProviderId
	record.AssignedOrderId = resolution.OrderId
	record.AssignmentConfidence = resolution.Confidence
	record.AssignmentMethod = resolution.Method
	record.ProcessingError = ""

	if record.Status == models.RecordStatusAssigned && p.deps.Notifier != nil && config.NotifyOnAssignment() {
		if err := p.deps.Notifier.NotifyAssigned(ctx, record); err != nil {
			// Delivery is best-effort; the assignment itself already stuck.
			config.LogError(p.deps.Logger, "reconciliationWorkflow.go", "process", "Notifying assignment", record.ID, err)
		}
	}
	return record, nil
}

// extractCounterparty runs party extraction over the record text and stamps
// the chosen counterparty onto extracted_fields. Extraction never fails the
// pipeline; an empty text simply yields no parties.
func (p *Pipeline) extractCounterparty(ctx context.Context, record *models.PaymentRecord) {
	rawText := record.ExtractedFields["raw_text"]
	if rawText == "" {
		return
	}

	ownerTaxId := ""
	if p.deps.Owners != nil {
		owner, err := p.deps.Owners.GetOwner(ctx, record.OwnerId)
		switch {
		case err == nil:
			ownerTaxId = owner.TaxId
		case errors.Is(err, utils.ErrorRecordNotFound):
			// No owner row: the chooser falls back to the first party.
		default:
			config.LogError(p.deps.Logger, "reconciliationWorkflow.go", "extractCounterparty", "Fetching owner", record.OwnerId, err)
		}
	}

	parties := extraction.ExtractParties(rawText)
	counterparty := extraction.ChooseCounterparty(parties, ownerTaxId)
	if counterparty == nil {
		return
	}
	record.ExtractedFields["counterparty_tax_id"] = counterparty.TaxId
	if counterparty.LegalName != "" {
		record.ExtractedFields["counterparty_name"] = counterparty.LegalName
	}
	if counterparty.Address != "" {
		record.ExtractedFields["counterparty_address"] = counterparty.Address
	}
}

func (p *Pipeline) markError(ctx context.Context, recordId string, cause error) {
	fields := map[string]interface{}{
		"status":           models.RecordStatusError,
		"processing_error": cause.Error(),
	}
	if err := p.deps.Records.UpdateRecord(ctx, recordId, fields); err != nil {
		config.LogError(p.deps.Logger, "reconciliationWorkflow.go", "markError", "Marking record Error", recordId, err)
	}
}

func buildAttempts(record *models.PaymentRecord, providerMatches, orderMatches []matching.Candidate, successCutoff float64) []models.AssignmentAttempt {
	attempts := make([]models.AssignmentAttempt, 0, len(providerMatches)+len(orderMatches))
	add := func(kind models.AttemptTargetKind, c matching.Candidate) {
		attempts = append(attempts, models.AssignmentAttempt{
			OwnerId:    record.OwnerId,
			RecordId:   record.ID,
			TargetKind: kind,
			TargetId:   c.TargetId,
			Method:     c.Method,
			Confidence: c.Confidence,
			Details:    c.Details,
			Success:    c.Confidence > successCutoff,
		})
	}
	for _, c := range providerMatches {
		add(models.AttemptTargetProvider, c)
	}
	for _, c := range orderMatches {
		add(models.AttemptTargetOrder, c)
	}
	return attempts
}
