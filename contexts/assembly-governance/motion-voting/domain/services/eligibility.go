package services

import (
	"sort"
	"strings"

	"agora/contexts/assembly-governance/motion-voting/domain/entities"
)

// DefaultQuorumThreshold applies when no quorum policy resolves.
const DefaultQuorumThreshold = 0.5

// ComputeEligibility derives the present/absent split and quorum verdict for
// a meeting from its attendance rows. Members on the roster with no row count
// as absent. When no attendance rows exist at all the full roster is used as
// a fallback eligible set and the result is flagged accordingly.
func ComputeEligibility(
	records []entities.AttendanceRecord,
	roster []string,
	quorumThreshold float64,
) entities.Eligibility {
	if quorumThreshold <= 0 {
		quorumThreshold = DefaultQuorumThreshold
	}

	result := entities.Eligibility{}
	seen := make(map[string]bool, len(records))
	for _, record := range records {
		memberID := strings.TrimSpace(record.MemberID)
		if memberID == "" || seen[memberID] {
			continue
		}
		seen[memberID] = true
		result.TotalCount++
		result.TotalWeight += record.VotingPower
		if record.Mode.CountsPresent() {
			result.PresentCount++
			result.PresentWeight += record.VotingPower
			result.PresentMemberIDs = append(result.PresentMemberIDs, memberID)
		} else {
			result.AbsentMemberIDs = append(result.AbsentMemberIDs, memberID)
		}
	}

	for _, memberID := range roster {
		memberID = strings.TrimSpace(memberID)
		if memberID == "" || seen[memberID] {
			continue
		}
		seen[memberID] = true
		result.TotalCount++
		result.AbsentMemberIDs = append(result.AbsentMemberIDs, memberID)
	}

	if len(records) == 0 && len(roster) > 0 {
		result.Fallback = true
	}

	sort.Strings(result.PresentMemberIDs)
	sort.Strings(result.AbsentMemberIDs)

	if result.TotalCount > 0 {
		result.QuorumRatio = float64(result.PresentCount) / float64(result.TotalCount)
	}
	// Present-but-zero never satisfies quorum; the ratio boundary is inclusive.
	result.QuorumOk = result.PresentCount > 0 && result.QuorumRatio >= quorumThreshold
	return result
}
