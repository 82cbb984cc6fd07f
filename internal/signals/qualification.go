package signals

import (
	"strconv"

	"github.com/voicelane/callcore/internal/session"
)

// Tier is the routing decision for a lead.
type Tier string

const (
	TierSalesReady Tier = "sales_ready"
	TierNurture    Tier = "nurture"
	TierSelfServe  Tier = "self_serve"
)

// Qualification thresholds.
const (
	salesReadyTeamSize  = 5
	salesReadyVolume    = 100
	nurtureTeamSizeMin  = 2
	complexIndustryTeam = 3
)

// enterpriseIntegrations are the integration mentions that alone mark a lead
// sales-ready: CRM systems, API usage, and embedded document workflows.
var enterpriseIntegrations = map[string]bool{
	"salesforce": true,
	"hubspot":    true,
	"crm":        true,
	"api":        true,
	"embedded":   true,
}

// complexIndustries pair with even a small team to indicate enterprise needs.
var complexIndustries = map[string]bool{
	"healthcare": true,
	"finance":    true,
	"legal":      true,
}

// Classify derives the lead tier from the accumulated signals. It is pure:
// same store contents, same answer, no matter when or how often it runs.
// Absence of evidence is not evidence of ineligibility, so an empty store
// classifies as self-serve rather than a rejection.
func Classify(store *session.SignalStore) Tier {
	teamSize := latestInt(store, SignalTeamSize)
	volume := latestInt(store, SignalMonthlyVolume)
	enterprise := hasEnterpriseIntegration(store)

	if teamSize >= salesReadyTeamSize {
		return TierSalesReady
	}
	if volume >= salesReadyVolume {
		return TierSalesReady
	}
	if enterprise {
		return TierSalesReady
	}

	// A decision maker with an urgent need is sales-ready even below the
	// headcount and volume thresholds.
	if latestValue(store, SignalBudgetAuthority) == "decision_maker" &&
		latestValue(store, SignalUrgency) == "high" {
		return TierSalesReady
	}

	// Regulated industries hit enterprise requirements at smaller team sizes.
	if complexIndustries[latestValue(store, SignalIndustry)] && teamSize >= complexIndustryTeam {
		return TierSalesReady
	}

	if teamSize >= nurtureTeamSizeMin && teamSize < salesReadyTeamSize && !enterprise {
		return TierNurture
	}

	return TierSelfServe
}

func latestValue(store *session.SignalStore, name string) string {
	sig, ok := store.Latest(name)
	if !ok {
		return ""
	}
	return sig.Value
}

func latestInt(store *session.SignalStore, name string) int {
	sig, ok := store.Latest(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(sig.Value)
	if err != nil {
		return 0
	}
	return n
}

func hasEnterpriseIntegration(store *session.SignalStore) bool {
	for _, sig := range store.All(SignalIntegration) {
		if enterpriseIntegrations[sig.Value] {
			return true
		}
	}
	return false
}
