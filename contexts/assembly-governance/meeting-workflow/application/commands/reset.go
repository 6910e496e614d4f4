package commands

import (
	"context"
	"strings"

	application "agora/contexts/assembly-governance/meeting-workflow/application"
	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
)

type ResetDemoCommand struct {
	MeetingID    string
	Confirmation string
	Actor        entities.Actor
}

// ResetDemo wipes a demo meeting's voting data and returns the meeting to
// draft. The confirmation must equal the meeting id exactly (case-sensitive,
// no surrounding whitespace tolerated), and a meeting that was ever
// validated is never reset.
func (uc WorkflowUseCase) ResetDemo(ctx context.Context, cmd ResetDemoCommand) (entities.Meeting, error) {
	logger := application.ResolveLogger(uc.Logger)

	meetingID := strings.TrimSpace(cmd.MeetingID)
	if meetingID == "" {
		return entities.Meeting{}, domainerrors.ErrMeetingNotFound
	}
	if cmd.Confirmation != meetingID {
		return entities.Meeting{}, domainerrors.ErrResetConfirmationMismatch
	}

	meeting, err := uc.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return entities.Meeting{}, err
	}
	if meeting.EverValidated() {
		return entities.Meeting{}, domainerrors.ErrMeetingValidated
	}

	if uc.Resetter != nil {
		if err := uc.Resetter.ResetMeetingData(ctx, meetingID); err != nil {
			return entities.Meeting{}, err
		}
	}

	now := uc.now()
	fromStatus := meeting.Status
	meeting.Status = entities.StatusDraft
	meeting.StartedAt = nil
	meeting.FrozenAt = nil
	meeting.PausedAt = nil
	meeting.EndedAt = nil
	meeting.ArchivedAt = nil
	meeting.FrozenBy = ""
	meeting.PausedBy = ""
	meeting.ClosedBy = ""
	meeting.UpdatedAt = now
	if err := uc.Meetings.SaveMeeting(ctx, meeting); err != nil {
		return entities.Meeting{}, err
	}

	recordAudit(ctx, uc.Audit, logger, "meeting.demo_reset", meetingID, map[string]any{
		"from":     string(fromStatus),
		"actor_id": cmd.Actor.UserID,
	})
	if uc.Broadcast != nil {
		uc.Broadcast.MeetingStatusChanged(ctx, meetingID, string(fromStatus), string(entities.StatusDraft))
	}

	logger.Info("demo meeting reset",
		"event", "workflow_demo_reset",
		"module", "assembly-governance/meeting-workflow",
		"layer", "application",
		"meeting_id", meetingID,
		"from", string(fromStatus),
		"actor_id", cmd.Actor.UserID,
	)
	return meeting, nil
}
