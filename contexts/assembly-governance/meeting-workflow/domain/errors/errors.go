package errors

import "errors"

// Validation failures (caller-fixable).
var (
	ErrInvalidMeetingInput       = errors.New("invalid meeting input")
	ErrInvalidStatus             = errors.New("unknown meeting status")
	ErrResetConfirmationMismatch = errors.New("reset confirmation token does not match")
)

// State conflicts (caller's view of state is stale).
var (
	ErrAlreadyInStatus        = errors.New("meeting is already in the requested status")
	ErrMeetingArchived        = errors.New("meeting is archived and immutable")
	ErrMeetingValidated       = errors.New("meeting was validated and cannot be reset")
	ErrTransitionNotAllowed   = errors.New("transition is not allowed from the current status")
	ErrNoLaunchPath           = errors.New("no launch path exists from the current status")
	ErrConsolidationForbidden = errors.New("meeting status does not permit consolidation")
)

// Policy gates.
var (
	ErrTransitionBlocked         = errors.New("transition is blocked by workflow issues")
	ErrForceRequiresElevatedRole = errors.New("forced transition requires an elevated role")
)

// Lookup failures.
var ErrMeetingNotFound = errors.New("meeting not found")
