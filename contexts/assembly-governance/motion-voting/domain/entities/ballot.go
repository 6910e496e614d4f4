package entities

import (
	"strings"
	"time"
)

type BallotValue string

const (
	ValueFor       BallotValue = "for"
	ValueAgainst   BallotValue = "against"
	ValueAbstain   BallotValue = "abstain"
	ValueNoOpinion BallotValue = "no_opinion"
)

type BallotSource string

const (
	SourceToken  BallotSource = "token"
	SourceManual BallotSource = "manual"
	SourceProxy  BallotSource = "proxy"
)

// ballotValueAliases maps accepted input spellings (including regional
// synonyms) to canonical choices. Anything absent from the table is rejected.
var ballotValueAliases = map[string]BallotValue{
	"for":        ValueFor,
	"yes":        ValueFor,
	"aye":        ValueFor,
	"pour":       ValueFor,
	"oui":        ValueFor,
	"against":    ValueAgainst,
	"no":         ValueAgainst,
	"nay":        ValueAgainst,
	"contre":     ValueAgainst,
	"non":        ValueAgainst,
	"abstain":    ValueAbstain,
	"abstention": ValueAbstain,
	"no_opinion": ValueNoOpinion,
	"no-opinion": ValueNoOpinion,
	"nspp":       ValueNoOpinion,
	"sans_avis":  ValueNoOpinion,
}

// ParseBallotValue resolves a raw choice through the alias table.
func ParseBallotValue(raw string) (BallotValue, bool) {
	value, ok := ballotValueAliases[strings.ToLower(strings.TrimSpace(raw))]
	return value, ok
}

func (v BallotValue) Valid() bool {
	switch v {
	case ValueFor, ValueAgainst, ValueAbstain, ValueNoOpinion:
		return true
	default:
		return false
	}
}

func (s BallotSource) Valid() bool {
	switch s {
	case SourceToken, SourceManual, SourceProxy:
		return true
	default:
		return false
	}
}

// Ballot is one member's cast vote on one motion. At most one ballot exists
// per (motion, member); the storage layer enforces that as a uniqueness
// constraint and violations surface as duplicate anomalies.
type Ballot struct {
	BallotID            string
	MotionID            string
	MemberID            string
	Value               BallotValue
	Weight              float64
	Source              BallotSource
	IsProxyVote         bool
	ProxySourceMemberID string
	CastAt              time.Time
}

type TallyBucket struct {
	Count  int
	Weight float64
}

// Tally is the per-choice accumulation over a motion's ballots.
type Tally struct {
	For       TallyBucket
	Against   TallyBucket
	Abstain   TallyBucket
	NoOpinion TallyBucket
}

// Add accumulates one ballot into the matching bucket. Unknown choice values
// return false and are not summed anywhere.
func (t *Tally) Add(value BallotValue, weight float64) bool {
	switch value {
	case ValueFor:
		t.For.Count++
		t.For.Weight += weight
	case ValueAgainst:
		t.Against.Count++
		t.Against.Weight += weight
	case ValueAbstain:
		t.Abstain.Count++
		t.Abstain.Weight += weight
	case ValueNoOpinion:
		t.NoOpinion.Count++
		t.NoOpinion.Weight += weight
	default:
		return false
	}
	return true
}

func (t Tally) TotalCount() int {
	return t.For.Count + t.Against.Count + t.Abstain.Count + t.NoOpinion.Count
}

func (t Tally) TotalWeight() float64 {
	return t.For.Weight + t.Against.Weight + t.Abstain.Weight + t.NoOpinion.Weight
}

// ExpressedWeight is the weight that counts toward a majority decision.
func (t Tally) ExpressedWeight() float64 {
	return t.For.Weight + t.Against.Weight
}
