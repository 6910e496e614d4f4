package commands

import (
	"context"
	"fmt"
	"strings"

	application "agora/contexts/assembly-governance/meeting-workflow/application"
	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
)

type LaunchCommand struct {
	MeetingID string
	Actor     entities.Actor
	Force     bool
}

type LaunchResult struct {
	Meeting  entities.Meeting
	Visited  []entities.MeetingStatus
	Warnings []string
	Forced   bool
}

// Launch fast-forwards the meeting through the minimal ordered path to live.
// Issues are aggregated across every intermediate step before anything is
// applied: one blocking issue anywhere in the path blocks the whole launch.
func (uc WorkflowUseCase) Launch(ctx context.Context, cmd LaunchCommand) (LaunchResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	meetingID := strings.TrimSpace(cmd.MeetingID)
	if meetingID == "" {
		return LaunchResult{}, domainerrors.ErrMeetingNotFound
	}
	if cmd.Force && !cmd.Actor.Elevated() {
		return LaunchResult{}, domainerrors.ErrForceRequiresElevatedRole
	}

	meeting, err := uc.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return LaunchResult{}, err
	}
	path, ok := entities.LaunchPath(meeting.Status)
	if !ok {
		return LaunchResult{}, domainerrors.ErrNoLaunchPath
	}

	// First pass: collect issues over the whole path on a scratch copy so a
	// late step's blocker is known before the first step commits.
	issues := make([]string, 0)
	warnings := make([]string, 0)
	probe := meeting
	for _, step := range path {
		stepIssues, stepWarnings, err := uc.TransitionIssues(ctx, probe, step)
		if err != nil {
			return LaunchResult{}, err
		}
		issues = append(issues, stepIssues...)
		warnings = append(warnings, stepWarnings...)
		probe.Status = step
	}
	if len(issues) > 0 && !cmd.Force {
		return LaunchResult{}, fmt.Errorf("%w: %s",
			domainerrors.ErrTransitionBlocked, strings.Join(dedupe(issues), "; "))
	}

	fromStatus := meeting.Status
	now := uc.now()
	for _, step := range path {
		if !meeting.ApplyTransition(step, cmd.Actor, now) {
			return LaunchResult{}, domainerrors.ErrTransitionNotAllowed
		}
	}
	if err := uc.Meetings.SaveMeeting(ctx, meeting); err != nil {
		return LaunchResult{}, err
	}

	forced := cmd.Force && len(issues) > 0
	recordAudit(ctx, uc.Audit, logger, "meeting.launched", meetingID, map[string]any{
		"from":     string(fromStatus),
		"visited":  statusStrings(path),
		"forced":   forced,
		"actor_id": cmd.Actor.UserID,
	})
	if uc.Broadcast != nil {
		previous := fromStatus
		for _, step := range path {
			uc.Broadcast.MeetingStatusChanged(ctx, meetingID, string(previous), string(step))
			previous = step
		}
	}

	logger.Info("meeting launched",
		"event", "workflow_meeting_launched",
		"module", "assembly-governance/meeting-workflow",
		"layer", "application",
		"meeting_id", meetingID,
		"from", string(fromStatus),
		"visited", statusStrings(path),
		"forced", forced,
	)
	return LaunchResult{
		Meeting:  meeting,
		Visited:  path,
		Warnings: dedupe(warnings),
		Forced:   forced,
	}, nil
}

func statusStrings(statuses []entities.MeetingStatus) []string {
	items := make([]string, 0, len(statuses))
	for _, status := range statuses {
		items = append(items, string(status))
	}
	return items
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	items := make([]string, 0, len(values))
	for _, value := range values {
		if seen[value] {
			continue
		}
		seen[value] = true
		items = append(items, value)
	}
	return items
}
