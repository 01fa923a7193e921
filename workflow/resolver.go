package workflow

import (
	"strconv"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/matching"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
)

// Resolution is the outcome the resolver commits onto a record: the target
// status plus the assignment fields. Nil pointers clear the corresponding
// columns so a re-run fully overwrites the previous decision.
type Resolution struct {
	Status     models.RecordStatus
	ProviderId *int
	OrderId    *int
	Confidence *float64
	Method     *models.MatchMethod
}

// Resolver applies the reliability gate and commits a (provider, order) pair,
// a partial outcome, or nothing.
type Resolver struct {
	cfg matching.Thresholds
}

func NewResolver(cfg matching.Thresholds) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve turns the two candidate lists into a committed decision. Both lists
// arrive deduplicated and sorted best-first.
func (r *Resolver) Resolve(providerMatches, orderMatches []matching.Candidate) Resolution {
	res := Resolution{Status: models.RecordStatusProcessed}

	if len(orderMatches) > 0 {
		best := orderMatches[0]
		providerId, _ := strconv.Atoi(best.Details["provider_id"])
		candidate := candidateForProvider(providerMatches, providerId)

		if candidate == nil {
			// The order's provider comes from the ledger row itself, not
			// from textual evidence. Still a committed assignment.
			method := models.MatchMethodAmount
			res.Status = models.RecordStatusAssigned
			res.ProviderId = &providerId
			res.OrderId = intPtr(best.TargetId)
			res.Confidence = floatPtr(best.Confidence)
			res.Method = &method
			return res
		}

		if r.gatePasses(*candidate, alternativeTo(providerMatches, candidate.TargetId)) {
			conf := candidate.Confidence
			if best.Confidence < conf {
				conf = best.Confidence
			}
			res.Status = models.RecordStatusAssigned
			res.ProviderId = intPtr(candidate.TargetId)
			res.OrderId = intPtr(best.TargetId)
			res.Confidence = &conf
			res.Method = &candidate.Method
			return res
		}

		// Gate failed: stay Processed but keep the best-known fields for
		// human review.
		res.Confidence = floatPtr(candidate.Confidence)
		res.Method = &candidate.Method
		return res
	}

	if len(providerMatches) > 0 {
		best := providerMatches[0]
		res.Confidence = floatPtr(best.Confidence)
		res.Method = &best.Method
		if r.gatePasses(best, alternativeTo(providerMatches, best.TargetId)) {
			// Provider-only outcome: no order, no Assigned status, but the
			// reliable provider id is committed.
			res.ProviderId = intPtr(best.TargetId)
		}
		return res
	}

	return res
}

// gatePasses is the reliability gate. Tax-id candidates answer only to the
// tax-id cutoff; everything else needs the general cutoff plus a clear margin
// over the runner-up.
func (r *Resolver) gatePasses(c matching.Candidate, alternative *matching.Candidate) bool {
	if c.Method == models.MatchMethodTaxId {
		return c.Confidence >= r.cfg.TaxIdGate
	}
	if c.Confidence < r.cfg.GeneralGate {
		return false
	}
	return alternative == nil || c.Confidence-alternative.Confidence >= r.cfg.GateMargin
}

func candidateForProvider(candidates []matching.Candidate, providerId int) *matching.Candidate {
	for i := range candidates {
		if candidates[i].TargetId == providerId {
			return &candidates[i]
		}
	}
	return nil
}

// alternativeTo returns the strongest candidate for a different provider.
func alternativeTo(candidates []matching.Candidate, providerId int) *matching.Candidate {
	for i := range candidates {
		if candidates[i].TargetId != providerId {
			return &candidates[i]
		}
	}
	return nil
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
