package matching

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/extraction"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
)

// ProviderMatcher scores registry providers against a payment record.
// Pure over its inputs; the pipeline supplies the registry and the owner's
// open orders (the recency and amount rules need the full open-order set).
type ProviderMatcher struct {
	cfg Thresholds
}

func NewProviderMatcher(cfg Thresholds) *ProviderMatcher {
	return &ProviderMatcher{cfg: cfg}
}

// Match runs the provider rules in priority order. A tax-id equality hit
// short-circuits every other rule; the name, recency and amount rules
// otherwise accumulate and are deduplicated per provider.
func (m *ProviderMatcher) Match(record *models.PaymentRecord, providers []models.Provider, openOrders []models.Order, now time.Time) []Candidate {
	text := recordSearchText(record)

	if out := m.taxIdMatches(text, providers); len(out) > 0 {
		return finalizeCandidates(out)
	}

	out := m.nameMatches(text, providers)
	if len(out) == 0 {
		out = m.recentOrderMatches(providers, openOrders, now)
	}
	out = append(out, m.amountMatches(record, providers, openOrders)...)
	return finalizeCandidates(out)
}

// recordSearchText is the free text the textual rules run against: the receipt
// number, whatever extraction left on the record, and any recognizer metadata
// (stored under ocr_-prefixed keys, appended in key order for determinism).
func recordSearchText(record *models.PaymentRecord) string {
	parts := []string{record.ReceiptNumber}
	if record.ExtractedFields != nil {
		parts = append(parts,
			record.ExtractedFields["raw_text"],
			record.ExtractedFields["counterparty_tax_id"],
			record.ExtractedFields["counterparty_name"],
		)
		var metaKeys []string
		for k := range record.ExtractedFields {
			if strings.HasPrefix(k, "ocr_") {
				metaKeys = append(metaKeys, k)
			}
		}
		sort.Strings(metaKeys)
		for _, k := range metaKeys {
			parts = append(parts, record.ExtractedFields[k])
		}
	}
	return strings.Join(parts, "\n")
}

func (m *ProviderMatcher) taxIdMatches(text string, providers []models.Provider) []Candidate {
	ids := extraction.FindTaxIds(text)
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	var out []Candidate
	for _, p := range providers {
		taxId := extraction.NormalizeTaxId(p.TaxId)
		if taxId == "" || !seen[taxId] {
			continue
		}
		out = append(out, Candidate{
			TargetId:   p.ID,
			Confidence: m.cfg.TaxIdConfidence,
			Method:     models.MatchMethodTaxId,
			Details:    map[string]string{"provider_tax_id": taxId},
		})
	}
	return out
}

func (m *ProviderMatcher) nameMatches(text string, providers []models.Provider) []Candidate {
	upper := strings.ToUpper(text)
	var out []Candidate
	for _, p := range providers {
		name := strings.TrimSpace(p.Name)
		if name == "" || !strings.Contains(upper, strings.ToUpper(name)) {
			continue
		}
		out = append(out, Candidate{
			TargetId:   p.ID,
			Confidence: m.cfg.NameConfidence,
			Method:     models.MatchMethodProvider,
			Details:    map[string]string{"matched_name": name},
		})
	}
	return out
}

// recentOrderMatches surfaces providers with fresh open orders when no textual
// rule produced anything. Weak evidence, scored accordingly.
func (m *ProviderMatcher) recentOrderMatches(providers []models.Provider, openOrders []models.Order, now time.Time) []Candidate {
	cutoff := now.Add(-m.cfg.RecentOrderWindow)
	known := providerIdSet(providers)
	taken := make(map[int]bool)
	var out []Candidate
	for _, o := range openOrders {
		if !known[o.ProviderId] || taken[o.ProviderId] || o.CreatedAt.Before(cutoff) {
			continue
		}
		taken[o.ProviderId] = true
		out = append(out, Candidate{
			TargetId:   o.ProviderId,
			Confidence: m.cfg.RecentOrderConfidence,
			Method:     models.MatchMethodProvider,
			Details:    map[string]string{"recent_order_id": strconv.Itoa(o.ID)},
		})
	}
	return out
}

// amountMatches scores each provider by the closest of its open orders. An
// exact amount gets the full score; a difference within the tolerance decays
// proportionally down to the floor.
func (m *ProviderMatcher) amountMatches(record *models.PaymentRecord, providers []models.Provider, openOrders []models.Order) []Candidate {
	if record.Amount == nil || record.Amount.Sign() <= 0 {
		return nil
	}
	known := providerIdSet(providers)
	closest := make(map[int]decimal.Decimal)
	for _, o := range openOrders {
		if !known[o.ProviderId] {
			continue
		}
		diff := o.Amount.Sub(*record.Amount).Abs()
		if cur, ok := closest[o.ProviderId]; !ok || diff.LessThan(cur) {
			closest[o.ProviderId] = diff
		}
	}

	amountF, _ := record.Amount.Float64()
	var out []Candidate
	for providerId, diff := range closest {
		if diff.GreaterThan(m.cfg.ProviderAmountTolerance) {
			continue
		}
		conf := m.cfg.AmountExactConfidence
		if !diff.IsZero() {
			diffF, _ := diff.Float64()
			conf = m.cfg.AmountExactConfidence - diffF/amountF
			if conf < m.cfg.AmountFloorConfidence {
				conf = m.cfg.AmountFloorConfidence
			}
		}
		out = append(out, Candidate{
			TargetId:   providerId,
			Confidence: conf,
			Method:     models.MatchMethodAmount,
			Details:    map[string]string{"amount_difference": diff.String()},
		})
	}
	return out
}

func providerIdSet(providers []models.Provider) map[int]bool {
	set := make(map[int]bool, len(providers))
	for _, p := range providers {
		set[p.ID] = true
	}
	return set
}
