package entities

import (
	"strings"
	"time"
)

// ProxyScopeFull marks a delegation that applies to every motion of the
// meeting; any other scope value is a specific motion id.
const ProxyScopeFull = "full"

// ProxyGrant transfers an absent giver's vote to a present receiver. A nil
// receiver (empty string) means the grant was revoked. A giver holds at most
// one active grant per scope.
type ProxyGrant struct {
	GrantID          string
	MeetingID        string
	GiverMemberID    string
	ReceiverMemberID string
	Scope            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (g ProxyGrant) Active() bool {
	return strings.TrimSpace(g.ReceiverMemberID) != ""
}

// Covers reports whether the grant applies to the requested scope. Full-scope
// grants always apply; motion-scoped grants require an exact match.
func (g ProxyGrant) Covers(scope string) bool {
	if g.Scope == ProxyScopeFull {
		return true
	}
	return g.Scope == strings.TrimSpace(scope)
}
