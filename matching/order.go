package matching

import (
	"strconv"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
)

// OrderMatcher scores open orders against a record, constrained by the
// provider pass. An order is never matched without an identified provider.
type OrderMatcher struct {
	cfg Thresholds
}

func NewOrderMatcher(cfg Thresholds) *OrderMatcher {
	return &OrderMatcher{cfg: cfg}
}

// Match returns scored orders whose provider is among the provider candidates
// and whose amount lands within the order tolerance. Empty provider candidates
// mean an empty result, unconditionally.
func (m *OrderMatcher) Match(record *models.PaymentRecord, providerMatches []Candidate, orders []models.Order) []Candidate {
	if len(providerMatches) == 0 || record.Amount == nil {
		return nil
	}
	byProvider := make(map[int]Candidate, len(providerMatches))
	for _, c := range providerMatches {
		if cur, ok := byProvider[c.TargetId]; !ok || outranks(c, cur) {
			byProvider[c.TargetId] = c
		}
	}
	open := make(map[models.OrderStatus]bool)
	for _, s := range models.OpenOrderStatuses() {
		open[s] = true
	}

	amountF, _ := record.Amount.Float64()
	var out []Candidate
	for _, o := range orders {
		pc, ok := byProvider[o.ProviderId]
		if !ok || !open[o.Status] {
			continue
		}
		diff := o.Amount.Sub(*record.Amount).Abs()
		if diff.GreaterThan(m.cfg.OrderAmountTolerance) {
			continue
		}

		// An exact amount inherits a full-strength tax-id provider score;
		// anything else starts from the order-pass base.
		base := m.cfg.OrderExactConfidence
		if pc.Method == models.MatchMethodTaxId && pc.Confidence >= m.cfg.TaxIdConfidence {
			base = pc.Confidence
		}

		c := Candidate{
			TargetId: o.ID,
			Details: map[string]string{
				"provider_id":       strconv.Itoa(o.ProviderId),
				"amount_difference": diff.String(),
			},
		}
		if diff.IsZero() {
			c.Confidence = base
			c.Method = models.MatchMethodExactAmountAndProvider
		} else {
			conf := base
			if amountF > 0 {
				diffF, _ := diff.Float64()
				conf = base - (diffF/amountF)*0.1
			}
			if conf < m.cfg.OrderFloorConfidence {
				conf = m.cfg.OrderFloorConfidence
			}
			c.Confidence = conf
			c.Method = models.MatchMethodToleranceAmountAndProvider
		}
		out = append(out, c)
	}
	return finalizeCandidates(out)
}
