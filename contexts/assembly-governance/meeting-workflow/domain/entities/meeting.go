package entities

import (
	"strings"
	"time"
)

type MeetingStatus string

const (
	StatusDraft     MeetingStatus = "draft"
	StatusScheduled MeetingStatus = "scheduled"
	StatusFrozen    MeetingStatus = "frozen"
	StatusLive      MeetingStatus = "live"
	StatusPaused    MeetingStatus = "paused"
	StatusClosed    MeetingStatus = "closed"
	StatusValidated MeetingStatus = "validated"
	StatusArchived  MeetingStatus = "archived"
)

func (s MeetingStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusFrozen, StatusLive,
		StatusPaused, StatusClosed, StatusValidated, StatusArchived:
		return true
	default:
		return false
	}
}

type MeetingType string

const (
	TypeOrdinary      MeetingType = "ordinary"
	TypeExtraordinary MeetingType = "extraordinary"
	TypeBoard         MeetingType = "board"
)

func (t MeetingType) Valid() bool {
	switch t {
	case TypeOrdinary, TypeExtraordinary, TypeBoard:
		return true
	default:
		return false
	}
}

// Actor identifies who requested a transition, for the *_by side-effect
// fields and the forced-override privilege check.
type Actor struct {
	UserID string
	Name   string
	Role   string
}

const RoleAdmin = "admin"

func (a Actor) Elevated() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), RoleAdmin)
}

// Meeting is the aggregate owned by the workflow state machine. Status and
// the transition timestamps are only ever written through ApplyTransition;
// metadata fields may be edited directly until the meeting is archived.
type Meeting struct {
	MeetingID     string
	Title         string
	MeetingType   MeetingType
	Status        MeetingStatus
	PresidentName string
	ScheduledAt   *time.Time

	// Meeting-level defaults in the policy cascade; motions without an
	// explicit policy inherit these before the tenant defaults apply.
	VotePolicyID   string
	QuorumPolicyID string

	StartedAt   *time.Time
	FrozenAt    *time.Time
	PausedAt    *time.Time
	EndedAt     *time.Time
	ValidatedAt *time.Time
	ArchivedAt  *time.Time

	FrozenBy          string
	PausedBy          string
	ClosedBy          string
	ValidatedBy       string
	ValidatedByUserID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (m Meeting) Archived() bool {
	return m.Status == StatusArchived
}

func (m Meeting) EverValidated() bool {
	return m.ValidatedAt != nil
}

// transitionTable is the single dispatch point for the workflow: it maps
// (current, target) to the side effects applied atomically with the status
// change. A pair absent from the table is not a legal transition. Archived
// has no row, which makes it absorbing by construction.
var transitionTable = map[MeetingStatus]map[MeetingStatus]func(*Meeting, Actor, time.Time){
	StatusDraft: {
		StatusScheduled: applySchedule,
		StatusArchived:  applyArchive,
	},
	StatusScheduled: {
		StatusFrozen:   applyFreeze,
		StatusArchived: applyArchive,
	},
	StatusFrozen: {
		StatusLive:      applyGoLive,
		StatusScheduled: applyUnfreeze,
		StatusArchived:  applyArchive,
	},
	StatusLive: {
		StatusPaused:   applyPause,
		StatusClosed:   applyClose,
		StatusArchived: applyArchive,
	},
	StatusPaused: {
		StatusLive:     applyGoLive,
		StatusClosed:   applyClose,
		StatusArchived: applyArchive,
	},
	StatusClosed: {
		StatusValidated: applyValidate,
		StatusArchived:  applyArchive,
	},
	StatusValidated: {
		StatusArchived: applyArchive,
	},
}

// launchPaths are the fast-forward routes to live, keyed by starting status.
var launchPaths = map[MeetingStatus][]MeetingStatus{
	StatusDraft:     {StatusScheduled, StatusFrozen, StatusLive},
	StatusScheduled: {StatusFrozen, StatusLive},
	StatusFrozen:    {StatusLive},
}

// LaunchPath returns the ordered intermediate statuses launch must walk to
// reach live from the given status, or false when no path exists.
func LaunchPath(from MeetingStatus) ([]MeetingStatus, bool) {
	path, ok := launchPaths[from]
	return path, ok
}

// TransitionAllowed reports whether the table holds a (current, target) rule.
func (m Meeting) TransitionAllowed(target MeetingStatus) bool {
	targets, ok := transitionTable[m.Status]
	if !ok {
		return false
	}
	_, ok = targets[target]
	return ok
}

// ApplyTransition mutates the meeting in place: status plus the target's side
// effects. The caller is responsible for the no-op, archived, and issue-gate
// checks; this only refuses pairs the table does not know.
func (m *Meeting) ApplyTransition(target MeetingStatus, actor Actor, now time.Time) bool {
	targets, ok := transitionTable[m.Status]
	if !ok {
		return false
	}
	apply, ok := targets[target]
	if !ok {
		return false
	}
	apply(m, actor, now)
	m.Status = target
	m.UpdatedAt = now.UTC()
	return true
}

func applySchedule(m *Meeting, _ Actor, now time.Time) {
	if m.ScheduledAt == nil {
		scheduledAt := now.UTC()
		m.ScheduledAt = &scheduledAt
	}
}

func applyFreeze(m *Meeting, actor Actor, now time.Time) {
	frozenAt := now.UTC()
	m.FrozenAt = &frozenAt
	m.FrozenBy = strings.TrimSpace(actor.UserID)
}

func applyUnfreeze(m *Meeting, _ Actor, _ time.Time) {
	m.FrozenAt = nil
	m.FrozenBy = ""
}

func applyGoLive(m *Meeting, _ Actor, now time.Time) {
	if m.StartedAt == nil {
		startedAt := now.UTC()
		m.StartedAt = &startedAt
	}
	m.PausedAt = nil
	m.PausedBy = ""
	// A meeting cannot be live while still scheduled for later.
	if m.ScheduledAt != nil && m.ScheduledAt.UTC().After(now.UTC()) {
		scheduledAt := now.UTC()
		m.ScheduledAt = &scheduledAt
	}
}

func applyPause(m *Meeting, actor Actor, now time.Time) {
	pausedAt := now.UTC()
	m.PausedAt = &pausedAt
	m.PausedBy = strings.TrimSpace(actor.UserID)
}

func applyClose(m *Meeting, actor Actor, now time.Time) {
	if m.EndedAt == nil {
		endedAt := now.UTC()
		m.EndedAt = &endedAt
	}
	m.ClosedBy = strings.TrimSpace(actor.UserID)
}

func applyValidate(m *Meeting, actor Actor, now time.Time) {
	if m.ValidatedAt != nil {
		return
	}
	validatedAt := now.UTC()
	m.ValidatedAt = &validatedAt
	m.ValidatedBy = strings.TrimSpace(actor.Name)
	m.ValidatedByUserID = strings.TrimSpace(actor.UserID)
}

func applyArchive(m *Meeting, _ Actor, now time.Time) {
	if m.ArchivedAt == nil {
		archivedAt := now.UTC()
		m.ArchivedAt = &archivedAt
	}
}

const MaxMeetingTitleLength = 255
