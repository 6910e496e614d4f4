package queries

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"agora/contexts/assembly-governance/meeting-workflow/application/commands"
	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
	"agora/contexts/assembly-governance/meeting-workflow/ports"
)

// TransitionPreview reports what a transition attempt would run into without
// changing anything.
type TransitionPreview struct {
	Allowed  bool
	Issues   []string
	Warnings []string
}

// LaunchPreview reports the fast-forward path from the current status and
// the issues aggregated over it.
type LaunchPreview struct {
	Path     []entities.MeetingStatus
	Issues   []string
	Warnings []string
}

type ReadinessReport struct {
	Ready  bool
	Issues []string
}

// WorkflowQueryUseCase answers read-only questions about meetings and their
// pending transitions. It reuses the command side's issue computation so a
// preview and the real transition can never disagree.
type WorkflowQueryUseCase struct {
	Meetings      ports.MeetingRepository
	Workflow      commands.WorkflowUseCase
	Consolidation ports.Consolidator
	Logger        *slog.Logger
}

func (uc WorkflowQueryUseCase) GetMeeting(ctx context.Context, meetingID string) (entities.Meeting, error) {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return entities.Meeting{}, domainerrors.ErrMeetingNotFound
	}
	return uc.Meetings.GetMeeting(ctx, meetingID)
}

func (uc WorkflowQueryUseCase) ListMeetings(ctx context.Context) ([]entities.Meeting, error) {
	meetings, err := uc.Meetings.ListMeetings(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(meetings, func(i, j int) bool {
		if meetings[i].CreatedAt.Equal(meetings[j].CreatedAt) {
			return meetings[i].MeetingID < meetings[j].MeetingID
		}
		return meetings[i].CreatedAt.Before(meetings[j].CreatedAt)
	})
	return meetings, nil
}

// PreviewTransition evaluates the guards and issue checks for a target
// status without applying anything.
func (uc WorkflowQueryUseCase) PreviewTransition(
	ctx context.Context,
	meetingID string,
	targetStatus string,
) (TransitionPreview, error) {
	meeting, err := uc.GetMeeting(ctx, meetingID)
	if err != nil {
		return TransitionPreview{}, err
	}
	target := entities.MeetingStatus(strings.ToLower(strings.TrimSpace(targetStatus)))
	if !target.Valid() {
		return TransitionPreview{}, domainerrors.ErrInvalidStatus
	}
	if meeting.Status == target || meeting.Archived() || !meeting.TransitionAllowed(target) {
		return TransitionPreview{Allowed: false}, nil
	}

	issues, warnings, err := uc.Workflow.TransitionIssues(ctx, meeting, target)
	if err != nil {
		return TransitionPreview{}, err
	}
	return TransitionPreview{
		Allowed:  len(issues) == 0,
		Issues:   issues,
		Warnings: warnings,
	}, nil
}

// PreviewLaunch aggregates issues over the whole fast-forward path, the same
// way an actual launch would before committing.
func (uc WorkflowQueryUseCase) PreviewLaunch(ctx context.Context, meetingID string) (LaunchPreview, error) {
	meeting, err := uc.GetMeeting(ctx, meetingID)
	if err != nil {
		return LaunchPreview{}, err
	}
	path, ok := entities.LaunchPath(meeting.Status)
	if !ok {
		return LaunchPreview{}, domainerrors.ErrNoLaunchPath
	}

	issues := make([]string, 0)
	warnings := make([]string, 0)
	probe := meeting
	for _, step := range path {
		stepIssues, stepWarnings, err := uc.Workflow.TransitionIssues(ctx, probe, step)
		if err != nil {
			return LaunchPreview{}, err
		}
		issues = append(issues, stepIssues...)
		warnings = append(warnings, stepWarnings...)
		probe.Status = step
	}
	return LaunchPreview{
		Path:     path,
		Issues:   dedupeStrings(issues),
		Warnings: dedupeStrings(warnings),
	}, nil
}

// Readiness reports whether the voting side considers the meeting ready for
// validation. The meeting must exist, but any status may ask.
func (uc WorkflowQueryUseCase) Readiness(ctx context.Context, meetingID string) (ReadinessReport, error) {
	if _, err := uc.GetMeeting(ctx, meetingID); err != nil {
		return ReadinessReport{}, err
	}
	if uc.Consolidation == nil {
		return ReadinessReport{Ready: true, Issues: []string{}}, nil
	}
	ready, issues, err := uc.Consolidation.Readiness(ctx, strings.TrimSpace(meetingID))
	if err != nil {
		return ReadinessReport{}, err
	}
	if issues == nil {
		issues = []string{}
	}
	return ReadinessReport{Ready: ready, Issues: issues}, nil
}

func dedupeStrings(values []string) []string {
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
