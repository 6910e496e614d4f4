package commands

import (
	"context"
	"strings"

	application "agora/contexts/assembly-governance/meeting-workflow/application"
	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
)

type ConsolidateCommand struct {
	MeetingID string
	Actor     entities.Actor
}

type ConsolidateResult struct {
	Consolidated int
}

// Consolidate triggers official-result consolidation for a meeting. Only
// closed and validated meetings qualify: live meetings still accept ballots
// and draft meetings have nothing to consolidate.
func (uc WorkflowUseCase) Consolidate(ctx context.Context, cmd ConsolidateCommand) (ConsolidateResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	meetingID := strings.TrimSpace(cmd.MeetingID)
	if meetingID == "" {
		return ConsolidateResult{}, domainerrors.ErrMeetingNotFound
	}
	meeting, err := uc.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return ConsolidateResult{}, err
	}
	if meeting.Status != entities.StatusClosed && meeting.Status != entities.StatusValidated {
		return ConsolidateResult{}, domainerrors.ErrConsolidationForbidden
	}

	consolidated := 0
	if uc.Consolidation != nil {
		consolidated, err = uc.Consolidation.Consolidate(ctx, meetingID)
		if err != nil {
			return ConsolidateResult{}, err
		}
	}

	recordAudit(ctx, uc.Audit, logger, "meeting.consolidation_run", meetingID, map[string]any{
		"status":       string(meeting.Status),
		"consolidated": consolidated,
		"actor_id":     cmd.Actor.UserID,
	})
	logger.Info("consolidation run",
		"event", "workflow_consolidation_run",
		"module", "assembly-governance/meeting-workflow",
		"layer", "application",
		"meeting_id", meetingID,
		"status", string(meeting.Status),
		"consolidated", consolidated,
	)
	return ConsolidateResult{Consolidated: consolidated}, nil
}
