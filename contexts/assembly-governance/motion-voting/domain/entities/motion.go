package entities

import "time"

type MotionDecision string

const (
	DecisionApproved MotionDecision = "approved"
	DecisionRejected MotionDecision = "rejected"
	DecisionNoQuorum MotionDecision = "no_quorum"
	DecisionTie      MotionDecision = "tie"
)

// Motion is one agenda item voted during a meeting. OpenedAt/ClosedAt are
// monotonic: ClosedAt is only ever set on a motion that has OpenedAt.
type Motion struct {
	MotionID       string
	MeetingID      string
	Title          string
	Description    string
	Position       int
	VotePolicyID   string
	QuorumPolicyID string
	OpenedAt       *time.Time
	ClosedAt       *time.Time
	Decision       MotionDecision
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (m Motion) IsOpen() bool {
	return m.OpenedAt != nil && m.ClosedAt == nil
}

func (m Motion) WasOpened() bool {
	return m.OpenedAt != nil
}

func (m Motion) IsClosed() bool {
	return m.ClosedAt != nil
}

// OpenAge reports how long the motion has been open at the given instant.
func (m Motion) OpenAge(now time.Time) time.Duration {
	if !m.IsOpen() {
		return 0
	}
	return now.UTC().Sub(m.OpenedAt.UTC())
}

const (
	MaxMotionTitleLength       = 255
	MaxMotionDescriptionLength = 4000
)
