package services

import (
	"sort"
	"strings"

	"agora/contexts/assembly-governance/motion-voting/domain/entities"
)

// Coverage returns the giver member ids holding an active grant matching the
// requested scope (exact motion scope, or full scope which always applies).
func Coverage(grants []entities.ProxyGrant, scope string) map[string]entities.ProxyGrant {
	covered := make(map[string]entities.ProxyGrant)
	for _, grant := range grants {
		if !grant.Active() || !grant.Covers(scope) {
			continue
		}
		giver := strings.TrimSpace(grant.GiverMemberID)
		if giver == "" {
			continue
		}
		// Motion-scoped grants win over full-scope ones for the same giver.
		if existing, ok := covered[giver]; ok && existing.Scope != entities.ProxyScopeFull {
			continue
		}
		covered[giver] = grant
	}
	return covered
}

// MissingCoverage lists absent members with no applicable proxy grant; a
// non-empty result blocks opening the next motion.
func MissingCoverage(absentIDs []string, coverage map[string]entities.ProxyGrant) []string {
	missing := make([]string, 0)
	for _, memberID := range absentIDs {
		memberID = strings.TrimSpace(memberID)
		if memberID == "" {
			continue
		}
		if _, ok := coverage[memberID]; !ok {
			missing = append(missing, memberID)
		}
	}
	sort.Strings(missing)
	return missing
}

// CombinedWeight resolves a proxy caster's effective ballot weight: the
// delegate's own voting power plus the powers of every giver it covers for
// the scope. Recomputing from the same grants and attendance always yields
// the same weight.
func CombinedWeight(
	delegateID string,
	records []entities.AttendanceRecord,
	coverage map[string]entities.ProxyGrant,
) float64 {
	powers := make(map[string]float64, len(records))
	for _, record := range records {
		powers[strings.TrimSpace(record.MemberID)] = record.VotingPower
	}

	weight := powers[strings.TrimSpace(delegateID)]
	givers := make([]string, 0, len(coverage))
	for giver, grant := range coverage {
		if strings.TrimSpace(grant.ReceiverMemberID) == strings.TrimSpace(delegateID) {
			givers = append(givers, giver)
		}
	}
	sort.Strings(givers)
	for _, giver := range givers {
		weight += powers[giver]
	}
	return weight
}
