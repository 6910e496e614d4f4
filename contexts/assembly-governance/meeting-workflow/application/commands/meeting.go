package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/meeting-workflow/application"
	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
	"agora/contexts/assembly-governance/meeting-workflow/ports"
)

type CreateMeetingCommand struct {
	Title          string
	MeetingType    string
	PresidentName  string
	ScheduledAt    *time.Time
	VotePolicyID   string
	QuorumPolicyID string
}

type UpdateMeetingCommand struct {
	MeetingID      string
	Title          string
	PresidentName  string
	ScheduledAt    *time.Time
	VotePolicyID   string
	QuorumPolicyID string
}

// WorkflowUseCase owns the meeting aggregate: creation, metadata edits, and
// every guarded status transition.
type WorkflowUseCase struct {
	Meetings      ports.MeetingRepository
	Motions       ports.MotionStatusReader
	Eligibility   ports.EligibilityReader
	Consolidation ports.Consolidator
	Resetter      ports.DemoResetter
	Audit         ports.AuditLog
	Broadcast     ports.Broadcaster
	Clock         ports.Clock
	IDGen         ports.IDGenerator
	Logger        *slog.Logger
}

func (uc WorkflowUseCase) Create(ctx context.Context, cmd CreateMeetingCommand) (entities.Meeting, error) {
	logger := application.ResolveLogger(uc.Logger)

	title := strings.TrimSpace(cmd.Title)
	if title == "" || len(title) > entities.MaxMeetingTitleLength {
		return entities.Meeting{}, domainerrors.ErrInvalidMeetingInput
	}
	meetingType := entities.MeetingType(strings.ToLower(strings.TrimSpace(cmd.MeetingType)))
	if meetingType == "" {
		meetingType = entities.TypeOrdinary
	}
	if !meetingType.Valid() {
		return entities.Meeting{}, domainerrors.ErrInvalidMeetingInput
	}

	now := uc.now()
	meetingID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Meeting{}, err
	}
	meeting := entities.Meeting{
		MeetingID:      meetingID,
		Title:          title,
		MeetingType:    meetingType,
		Status:         entities.StatusDraft,
		PresidentName:  strings.TrimSpace(cmd.PresidentName),
		ScheduledAt:    normalizeOptionalTime(cmd.ScheduledAt),
		VotePolicyID:   strings.TrimSpace(cmd.VotePolicyID),
		QuorumPolicyID: strings.TrimSpace(cmd.QuorumPolicyID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.Meetings.SaveMeeting(ctx, meeting); err != nil {
		return entities.Meeting{}, err
	}

	recordAudit(ctx, uc.Audit, logger, "meeting.created", meetingID, map[string]any{
		"title":        title,
		"meeting_type": string(meetingType),
	})
	logger.Info("meeting created",
		"event", "workflow_meeting_created",
		"module", "assembly-governance/meeting-workflow",
		"layer", "application",
		"meeting_id", meetingID,
		"meeting_type", string(meetingType),
	)
	return meeting, nil
}

// UpdateMetadata edits the fields unrelated to status. Archived meetings are
// immutable in every respect.
func (uc WorkflowUseCase) UpdateMetadata(ctx context.Context, cmd UpdateMeetingCommand) (entities.Meeting, error) {
	logger := application.ResolveLogger(uc.Logger)

	meetingID := strings.TrimSpace(cmd.MeetingID)
	if meetingID == "" {
		return entities.Meeting{}, domainerrors.ErrMeetingNotFound
	}
	meeting, err := uc.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return entities.Meeting{}, err
	}
	if meeting.Archived() {
		return entities.Meeting{}, domainerrors.ErrMeetingArchived
	}

	if title := strings.TrimSpace(cmd.Title); title != "" {
		if len(title) > entities.MaxMeetingTitleLength {
			return entities.Meeting{}, domainerrors.ErrInvalidMeetingInput
		}
		meeting.Title = title
	}
	if president := strings.TrimSpace(cmd.PresidentName); president != "" {
		meeting.PresidentName = president
	}
	if cmd.ScheduledAt != nil {
		meeting.ScheduledAt = normalizeOptionalTime(cmd.ScheduledAt)
	}
	if votePolicyID := strings.TrimSpace(cmd.VotePolicyID); votePolicyID != "" {
		meeting.VotePolicyID = votePolicyID
	}
	if quorumPolicyID := strings.TrimSpace(cmd.QuorumPolicyID); quorumPolicyID != "" {
		meeting.QuorumPolicyID = quorumPolicyID
	}
	meeting.UpdatedAt = uc.now()
	if err := uc.Meetings.SaveMeeting(ctx, meeting); err != nil {
		return entities.Meeting{}, err
	}

	recordAudit(ctx, uc.Audit, logger, "meeting.updated", meetingID, map[string]any{
		"title":     meeting.Title,
		"president": meeting.PresidentName,
	})
	return meeting, nil
}

func (uc WorkflowUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

// recordAudit is best-effort: audit failure surfaces as a warning and never
// rolls back the business operation.
func recordAudit(
	ctx context.Context,
	audit ports.AuditLog,
	logger *slog.Logger,
	eventName string,
	resourceID string,
	data map[string]any,
) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, eventName, resourceID, data); err != nil {
		logger.Warn("audit record failed",
			"event", "workflow_audit_record_failed",
			"module", "assembly-governance/meeting-workflow",
			"layer", "application",
			"audit_event", eventName,
			"resource_id", resourceID,
			"error", err.Error(),
		)
	}
}
