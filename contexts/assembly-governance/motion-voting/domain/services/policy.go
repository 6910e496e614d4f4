package services

import (
	"strings"

	"agora/contexts/assembly-governance/motion-voting/domain/entities"
)

// ResolvePolicyID cascades motion value, then meeting value, then tenant
// default, short-circuiting on the first present value.
func ResolvePolicyID(motionValue, meetingValue, tenantDefault string) string {
	for _, candidate := range []string{motionValue, meetingValue, tenantDefault} {
		if strings.TrimSpace(candidate) != "" {
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}

// ApplyDecision computes a motion outcome from a tally under the resolved
// vote policy. Quorum failure dominates every other outcome.
func ApplyDecision(tally entities.Tally, policy entities.VotePolicy, quorumOk bool) entities.MotionDecision {
	if !quorumOk {
		return entities.DecisionNoQuorum
	}

	threshold := policy.MajorityThreshold
	if threshold <= 0 {
		threshold = 0.5
	}

	basis := tally.ExpressedWeight()
	if policy.MajorityBasis == entities.BasisPresent {
		basis = tally.TotalWeight()
	}
	if basis == 0 {
		return entities.DecisionTie
	}

	ratio := tally.For.Weight / basis
	switch {
	case ratio > threshold:
		return entities.DecisionApproved
	case ratio == threshold:
		return entities.DecisionTie
	default:
		return entities.DecisionRejected
	}
}
