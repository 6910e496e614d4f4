package ports

import (
	"context"
	"time"

	"agora/contexts/assembly-governance/motion-voting/domain/entities"
)

type MotionRepository interface {
	SaveMotion(ctx context.Context, motion entities.Motion) error
	GetMotion(ctx context.Context, motionID string) (entities.Motion, error)
	ListMotionsByMeeting(ctx context.Context, meetingID string) ([]entities.Motion, error)
	GetOpenMotion(ctx context.Context, meetingID string) (entities.Motion, bool, error)
	// MarkOpened persists the open transition atomically. The storage layer
	// enforces single-open-motion-per-meeting (partial unique index on
	// meeting_id where closed_at is null) and returns ErrAnotherMotionOpen
	// when a concurrent open wins.
	MarkOpened(ctx context.Context, motion entities.Motion) error
	// MarkClosed persists the close transition, decision included. The close
	// command commits it through CloseCommitter so the official-result freeze
	// and token revocation land in the same transaction.
	MarkClosed(ctx context.Context, motion entities.Motion) error
}

// CastWrite is the write set a finished cast commits atomically: the ballot
// insert plus the optional token consumption. TokenHash is empty when the
// cast is not token-backed.
type CastWrite struct {
	Ballot    entities.Ballot
	TokenHash string
	UsedAt    time.Time
}

// CastCommitter persists a CastWrite in a single transaction. A losing
// duplicate insert must leave the token unconsumed.
type CastCommitter interface {
	CommitCast(ctx context.Context, write CastWrite) error
}

// CloseWrite is the close-transition write set: the closed motion row, the
// frozen official result, and the revocation timestamp for outstanding
// tokens.
type CloseWrite struct {
	Motion    entities.Motion
	Result    entities.OfficialResult
	RevokedAt time.Time
}

// CloseCommitter persists a CloseWrite in a single transaction and reports
// how many tokens the revocation caught.
type CloseCommitter interface {
	CommitClose(ctx context.Context, write CloseWrite) (int, error)
}

type BallotRepository interface {
	// InsertBallot fails with ErrDuplicateBallot when a ballot already exists
	// for the (motion, member) pair; the second concurrent writer observes
	// the storage-level unique violation mapped to that error.
	InsertBallot(ctx context.Context, ballot entities.Ballot) error
	GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error)
	GetBallotByCaster(ctx context.Context, motionID string, memberID string) (entities.Ballot, bool, error)
	ListBallotsByMotion(ctx context.Context, motionID string) ([]entities.Ballot, error)
	// ListAllBallotsByMotion includes rows violating the uniqueness
	// constraint, so the anomaly detector can report rather than mask them.
	ListAllBallotsByMotion(ctx context.Context, motionID string) ([]entities.Ballot, error)
}

type AttendanceRepository interface {
	SaveAttendance(ctx context.Context, record entities.AttendanceRecord) error
	ListAttendanceByMeeting(ctx context.Context, meetingID string) ([]entities.AttendanceRecord, error)
	// ListActiveMemberIDs returns the tenant's full member roster, used as
	// the fallback eligible set when no attendance was recorded.
	ListActiveMemberIDs(ctx context.Context) ([]string, error)
}

type ProxyRepository interface {
	SaveGrant(ctx context.Context, grant entities.ProxyGrant) error
	GetGrantByGiverScope(ctx context.Context, meetingID, giverMemberID, scope string) (entities.ProxyGrant, bool, error)
	ListGrantsByMeeting(ctx context.Context, meetingID string) ([]entities.ProxyGrant, error)
}

// VoteTokenStore is the token service boundary. Consumption and revocation
// are also reachable through the committers, which run them inside the cast
// and close transactions.
type VoteTokenStore interface {
	IssueToken(ctx context.Context, token entities.VoteToken) error
	GetToken(ctx context.Context, tokenHash string) (entities.VoteToken, error)
	// MarkTokenUsed consumes the token exactly once; a second consume fails
	// with ErrTokenConsumed.
	MarkTokenUsed(ctx context.Context, tokenHash string, usedAt time.Time) error
	RevokeTokensForMotion(ctx context.Context, motionID string, revokedAt time.Time) (int, error)
	ListTokensByMotion(ctx context.Context, motionID string) ([]entities.VoteToken, error)
}

type ManualTallyStore interface {
	SaveManualTally(ctx context.Context, tally entities.ManualTally) error
	GetManualTally(ctx context.Context, motionID string) (entities.ManualTally, bool, error)
}

type OfficialResultStore interface {
	SaveOfficialResult(ctx context.Context, result entities.OfficialResult) error
	GetOfficialResult(ctx context.Context, motionID string) (entities.OfficialResult, bool, error)
}

// MeetingProjection is the read-only meeting view this service consumes; the
// meeting-workflow service owns the row.
type MeetingProjection struct {
	MeetingID      string
	Status         string
	PresidentName  string
	VotePolicyID   string
	QuorumPolicyID string
	ValidatedAt    *time.Time
}

type MeetingReader interface {
	GetMeeting(ctx context.Context, meetingID string) (MeetingProjection, error)
}

type PolicyProvider interface {
	ListVotePolicies(ctx context.Context) ([]entities.VotePolicy, error)
	ListQuorumPolicies(ctx context.Context) ([]entities.QuorumPolicy, error)
	GetVotePolicy(ctx context.Context, policyID string) (entities.VotePolicy, bool, error)
	GetQuorumPolicy(ctx context.Context, policyID string) (entities.QuorumPolicy, bool, error)
	// TenantDefaults returns the tenant-level fallback policy ids.
	TenantDefaults(ctx context.Context) (votePolicyID string, quorumPolicyID string, err error)
}

// AuditLog records are fire-and-forget: failures are logged by callers and
// never roll back the business transaction.
type AuditLog interface {
	Record(ctx context.Context, eventName string, resourceID string, data map[string]any) error
}

// Broadcaster pushes real-time notifications to observers; implementations
// are best-effort and must never fail the underlying state change.
type Broadcaster interface {
	MotionOpened(ctx context.Context, meetingID, motionID string)
	MotionClosed(ctx context.Context, meetingID, motionID string, decision string)
	MotionUpdated(ctx context.Context, meetingID, motionID string)
	ManualTallyRecorded(ctx context.Context, meetingID, motionID string)
}

type Notifier interface {
	DegradedTallyUsed(ctx context.Context, meetingID, motionID, recordedBy, justification string) error
}

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	BallotID    string
	ExpiresAt   time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string, now time.Time) (IdempotencyRecord, bool, error)
	Put(ctx context.Context, record IdempotencyRecord) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
