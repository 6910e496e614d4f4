package errors

import "errors"

// Validation failures (caller-fixable).
var (
	ErrInvalidMotionInput     = errors.New("invalid motion input")
	ErrInvalidVote            = errors.New("invalid vote value")
	ErrInvalidBallotSource    = errors.New("invalid ballot source")
	ErrInvalidProxyInput      = errors.New("invalid proxy grant input")
	ErrInvalidAttendanceInput = errors.New("invalid attendance input")
	ErrJustificationRequired  = errors.New("manual tally justification is required")
	ErrSelfProxyForbidden     = errors.New("a member cannot hold their own proxy")
)

// State conflicts (caller's view of state is stale).
var (
	ErrMotionNotOpen       = errors.New("motion is not open")
	ErrMotionAlreadyOpened = errors.New("motion was already opened")
	ErrMotionAlreadyClosed = errors.New("motion is already closed")
	ErrAnotherMotionOpen   = errors.New("another motion is currently open for this meeting")
	ErrMeetingNotVotable   = errors.New("meeting status does not permit voting")
	ErrCloseBlocked        = errors.New("motion close is blocked")
)

// Invariant violations (data-integrity; surfaced, never auto-corrected).
var (
	ErrDuplicateBallot          = errors.New("a ballot already exists for this motion and member")
	ErrManualTallyInconsistent  = errors.New("manual tally counts are arithmetically inconsistent")
	ErrElectronicBallotsPresent = errors.New("motion already has electronic ballots")
	ErrIneligibleVoter          = errors.New("member is not eligible to vote on this motion")
)

// Token failures.
var (
	ErrTokenNotFound = errors.New("vote token not found")
	ErrTokenMismatch = errors.New("vote token is bound to a different motion or member")
	ErrTokenConsumed = errors.New("vote token was already consumed")
	ErrTokenRevoked  = errors.New("vote token was revoked")
)

// Lookup and replay failures.
var (
	ErrMotionNotFound      = errors.New("motion not found")
	ErrMeetingNotFound     = errors.New("meeting not found")
	ErrBallotNotFound      = errors.New("ballot not found")
	ErrProxyGrantNotFound  = errors.New("proxy grant not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
