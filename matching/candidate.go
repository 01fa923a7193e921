package matching

import (
	"sort"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
)

// Candidate is one scored match against a target (provider or order).
// Transient per pipeline run; the full set is persisted as audit rows.
type Candidate struct {
	TargetId   int
	Confidence float64
	Method     models.MatchMethod
	Details    map[string]string
}

func methodPriority(m models.MatchMethod) int {
	switch m {
	case models.MatchMethodTaxId:
		return 3
	case models.MatchMethodAmount,
		models.MatchMethodExactAmountAndProvider,
		models.MatchMethodToleranceAmountAndProvider:
		return 2
	default:
		return 1
	}
}

// outranks is the dedup rule: keep the higher confidence, then the stronger method.
func outranks(a, b Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return methodPriority(a.Method) > methodPriority(b.Method)
}

// finalizeCandidates deduplicates by target id (highest occurrence wins) and
// orders by method priority, then confidence, then target id so the output is
// deterministic regardless of input order.
func finalizeCandidates(in []Candidate) []Candidate {
	if len(in) == 0 {
		return nil
	}
	bestById := make(map[int]Candidate, len(in))
	for _, c := range in {
		if cur, ok := bestById[c.TargetId]; !ok || outranks(c, cur) {
			bestById[c.TargetId] = c
		}
	}
	out := make([]Candidate, 0, len(bestById))
	for _, c := range bestById {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if pa, pb := methodPriority(a.Method), methodPriority(b.Method); pa != pb {
			return pa > pb
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.TargetId < b.TargetId
	})
	return out
}
