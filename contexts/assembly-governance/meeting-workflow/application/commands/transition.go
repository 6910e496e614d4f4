package commands

import (
	"context"
	"fmt"
	"strings"

	application "agora/contexts/assembly-governance/meeting-workflow/application"
	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
)

type TransitionCommand struct {
	MeetingID string
	Target    string
	Actor     entities.Actor
	Force     bool
}

type TransitionResult struct {
	Meeting  entities.Meeting
	Warnings []string
	Forced   bool
}

// Transition moves a meeting to the target status through the guarded state
// machine: no-op transitions are rejected, archived is absorbing, and
// blocking issues stop the transition unless an elevated actor forces it.
func (uc WorkflowUseCase) Transition(ctx context.Context, cmd TransitionCommand) (TransitionResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	meetingID := strings.TrimSpace(cmd.MeetingID)
	if meetingID == "" {
		return TransitionResult{}, domainerrors.ErrMeetingNotFound
	}
	target := entities.MeetingStatus(strings.ToLower(strings.TrimSpace(cmd.Target)))
	if !target.Valid() {
		return TransitionResult{}, domainerrors.ErrInvalidStatus
	}

	// A forced request from a non-privileged caller is rejected outright,
	// never silently downgraded to an unforced attempt.
	if cmd.Force && !cmd.Actor.Elevated() {
		return TransitionResult{}, domainerrors.ErrForceRequiresElevatedRole
	}

	meeting, err := uc.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return TransitionResult{}, err
	}
	if meeting.Status == target {
		return TransitionResult{}, domainerrors.ErrAlreadyInStatus
	}
	if meeting.Archived() {
		return TransitionResult{}, domainerrors.ErrMeetingArchived
	}
	if !meeting.TransitionAllowed(target) {
		return TransitionResult{}, domainerrors.ErrTransitionNotAllowed
	}

	issues, warnings, err := uc.TransitionIssues(ctx, meeting, target)
	if err != nil {
		return TransitionResult{}, err
	}
	if len(issues) > 0 && !cmd.Force {
		return TransitionResult{}, fmt.Errorf("%w: %s",
			domainerrors.ErrTransitionBlocked, strings.Join(issues, "; "))
	}

	fromStatus := meeting.Status
	now := uc.now()
	if !meeting.ApplyTransition(target, cmd.Actor, now) {
		return TransitionResult{}, domainerrors.ErrTransitionNotAllowed
	}
	if err := uc.Meetings.SaveMeeting(ctx, meeting); err != nil {
		return TransitionResult{}, err
	}

	forced := cmd.Force && len(issues) > 0
	recordAudit(ctx, uc.Audit, logger, "meeting.status_changed", meetingID, map[string]any{
		"from":     string(fromStatus),
		"to":       string(target),
		"forced":   forced,
		"actor_id": cmd.Actor.UserID,
	})
	if uc.Broadcast != nil {
		uc.Broadcast.MeetingStatusChanged(ctx, meetingID, string(fromStatus), string(target))
	}

	logger.Info("meeting status changed",
		"event", "workflow_status_changed",
		"module", "assembly-governance/meeting-workflow",
		"layer", "application",
		"meeting_id", meetingID,
		"from", string(fromStatus),
		"to", string(target),
		"forced", forced,
		"actor_id", cmd.Actor.UserID,
	)
	return TransitionResult{Meeting: meeting, Warnings: warnings, Forced: forced}, nil
}

// TransitionIssues computes the blocking issues and advisory warnings for
// moving the meeting to the target status. Issues block unforced
// transitions; warnings never do.
func (uc WorkflowUseCase) TransitionIssues(
	ctx context.Context,
	meeting entities.Meeting,
	target entities.MeetingStatus,
) ([]string, []string, error) {
	issues := make([]string, 0, 2)
	warnings := make([]string, 0, 2)

	switch target {
	case entities.StatusFrozen, entities.StatusLive:
		if strings.TrimSpace(meeting.PresidentName) == "" {
			issues = append(issues, "president name is missing")
		}
	}

	if target == entities.StatusLive && uc.Eligibility != nil {
		quorumOk, fallback, err := uc.Eligibility.QuorumStatus(ctx, meeting.MeetingID)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case fallback:
			warnings = append(warnings, "eligibility fell back to the full member roster")
		case !quorumOk:
			issues = append(issues, "quorum is not reached")
		}
	}

	switch target {
	case entities.StatusClosed, entities.StatusValidated, entities.StatusArchived:
		if uc.Motions != nil {
			openCount, err := uc.Motions.OpenMotionCount(ctx, meeting.MeetingID)
			if err != nil {
				return nil, nil, err
			}
			if openCount > 0 {
				issues = append(issues, fmt.Sprintf("%d motion(s) still open", openCount))
			}
		}
	}

	if target == entities.StatusValidated && uc.Consolidation != nil {
		ready, readinessIssues, err := uc.Consolidation.Readiness(ctx, meeting.MeetingID)
		if err != nil {
			return nil, nil, err
		}
		if !ready {
			issues = append(issues, readinessIssues...)
		}
	}

	return issues, warnings, nil
}
