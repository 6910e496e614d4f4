package entities

import (
	"strings"
	"time"
)

type TallySource string

const (
	TallySourceElectronic TallySource = "electronic"
	TallySourceManual     TallySource = "manual"
	TallySourceNone       TallySource = "none"
)

// OfficialResult is the frozen authoritative outcome of a motion, written by
// consolidation (or by close) and never mutated after meeting validation.
type OfficialResult struct {
	MotionID       string
	Source         TallySource
	Tally          Tally
	Decision       MotionDecision
	ConsolidatedAt time.Time
}

// ManualTally is the degraded-mode count entered by an operator when
// electronic tallying is unavailable.
type ManualTally struct {
	MotionID      string
	Total         int
	For           int
	Against       int
	Abstain       int
	Justification string
	RecordedBy    string
	RecordedAt    time.Time
}

// Consistent checks the strict arithmetic contract: positive total,
// non-negative parts none exceeding the total, and parts summing to the total
// exactly. Inconsistent counts are rejected, never auto-corrected.
func (m ManualTally) Consistent() bool {
	if m.Total <= 0 {
		return false
	}
	if m.For < 0 || m.Against < 0 || m.Abstain < 0 {
		return false
	}
	if m.For > m.Total || m.Against > m.Total || m.Abstain > m.Total {
		return false
	}
	return m.For+m.Against+m.Abstain == m.Total
}

// AsTally converts the manual counts into tally buckets. Manual counts carry
// no per-member weighting, so weight mirrors count.
func (m ManualTally) AsTally() Tally {
	return Tally{
		For:     TallyBucket{Count: m.For, Weight: float64(m.For)},
		Against: TallyBucket{Count: m.Against, Weight: float64(m.Against)},
		Abstain: TallyBucket{Count: m.Abstain, Weight: float64(m.Abstain)},
	}
}

func (m ManualTally) HasJustification() bool {
	return strings.TrimSpace(m.Justification) != ""
}
