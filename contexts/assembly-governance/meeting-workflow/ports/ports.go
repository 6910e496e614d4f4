package ports

import (
	"context"
	"time"

	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
)

type MeetingRepository interface {
	SaveMeeting(ctx context.Context, meeting entities.Meeting) error
	GetMeeting(ctx context.Context, meetingID string) (entities.Meeting, error)
	ListMeetings(ctx context.Context) ([]entities.Meeting, error)
}

// MotionStatusReader is the read-only view of the voting service this
// workflow consults when computing transition issues.
type MotionStatusReader interface {
	OpenMotionCount(ctx context.Context, meetingID string) (int, error)
}

// EligibilityReader exposes the voting service's quorum picture. Fallback
// marks an eligible set reconstructed from the full roster, which blocking
// checks never trust.
type EligibilityReader interface {
	QuorumStatus(ctx context.Context, meetingID string) (quorumOk bool, fallback bool, err error)
}

// Consolidator runs the voting service's official-result consolidation on
// behalf of the workflow's consolidate operation.
type Consolidator interface {
	Consolidate(ctx context.Context, meetingID string) (consolidated int, err error)
	Readiness(ctx context.Context, meetingID string) (ready bool, issues []string, err error)
}

// DemoResetter wipes a meeting's voting data (motions, ballots, tokens,
// grants, attendance) during a demo reset.
type DemoResetter interface {
	ResetMeetingData(ctx context.Context, meetingID string) error
}

type AuditLog interface {
	Record(ctx context.Context, eventName string, resourceID string, data map[string]any) error
}

// Broadcaster is best-effort; implementations never fail the state change.
type Broadcaster interface {
	MeetingStatusChanged(ctx context.Context, meetingID, fromStatus, toStatus string)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
