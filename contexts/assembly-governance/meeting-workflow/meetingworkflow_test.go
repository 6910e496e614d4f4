package meetingworkflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	meetingworkflow "agora/contexts/assembly-governance/meeting-workflow"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
	httptransport "agora/contexts/assembly-governance/meeting-workflow/transport/http"
)

var (
	admin  = httptransport.ActorPayload{UserID: "admin-1", Name: "Admin One", Role: "admin"}
	member = httptransport.ActorPayload{UserID: "member-1", Name: "Member One", Role: "member"}
)

func newMeeting(t *testing.T, module meetingworkflow.Module, president string) string {
	t.Helper()
	resp, err := module.Handler.CreateMeetingHandler(context.Background(), httptransport.CreateMeetingRequest{
		Title:         "General assembly",
		PresidentName: president,
	})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	return resp.MeetingID
}

func transition(t *testing.T, module meetingworkflow.Module, meetingID, target string) httptransport.TransitionResponse {
	t.Helper()
	resp, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: target,
		Actor:  admin,
	})
	if err != nil {
		t.Fatalf("transition to %s: %v", target, err)
	}
	return resp
}

func TestCreateMeetingDefaults(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	resp, err := module.Handler.CreateMeetingHandler(context.Background(), httptransport.CreateMeetingRequest{
		Title: "Quarterly board review",
	})
	if err != nil {
		t.Fatalf("create meeting: %v", err)
	}
	if resp.Status != "draft" || resp.MeetingType != "ordinary" {
		t.Fatalf("unexpected defaults %+v", resp)
	}

	if _, err := module.Handler.CreateMeetingHandler(context.Background(), httptransport.CreateMeetingRequest{
		Title:       "Bad type",
		MeetingType: "plenary",
	}); !errors.Is(err, domainerrors.ErrInvalidMeetingInput) {
		t.Fatalf("expected ErrInvalidMeetingInput for unknown type, got %v", err)
	}
	if _, err := module.Handler.CreateMeetingHandler(context.Background(), httptransport.CreateMeetingRequest{}); !errors.Is(err, domainerrors.ErrInvalidMeetingInput) {
		t.Fatalf("expected ErrInvalidMeetingInput for empty title, got %v", err)
	}
}

func TestTransitionChainSideEffects(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "A. Durand")

	transition(t, module, meetingID, "scheduled")
	meeting, err := module.Store.GetMeeting(context.Background(), meetingID)
	if err != nil {
		t.Fatalf("get meeting: %v", err)
	}
	if meeting.ScheduledAt == nil {
		t.Fatalf("schedule must stamp ScheduledAt")
	}

	transition(t, module, meetingID, "frozen")
	meeting, _ = module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.FrozenAt == nil || meeting.FrozenBy != "admin-1" {
		t.Fatalf("freeze must stamp FrozenAt and FrozenBy, got %+v", meeting)
	}

	transition(t, module, meetingID, "live")
	meeting, _ = module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.StartedAt == nil {
		t.Fatalf("go-live must stamp StartedAt")
	}
	startedAt := *meeting.StartedAt

	transition(t, module, meetingID, "paused")
	meeting, _ = module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.PausedAt == nil || meeting.PausedBy != "admin-1" {
		t.Fatalf("pause must stamp PausedAt and PausedBy, got %+v", meeting)
	}

	// Resuming clears the pause marks but never rewrites StartedAt.
	transition(t, module, meetingID, "live")
	meeting, _ = module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.PausedAt != nil || meeting.PausedBy != "" {
		t.Fatalf("resume must clear pause marks, got %+v", meeting)
	}
	if !meeting.StartedAt.Equal(startedAt) {
		t.Fatalf("StartedAt must be set once: %v then %v", startedAt, meeting.StartedAt)
	}

	transition(t, module, meetingID, "closed")
	meeting, _ = module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.EndedAt == nil || meeting.ClosedBy != "admin-1" {
		t.Fatalf("close must stamp EndedAt and ClosedBy, got %+v", meeting)
	}

	transition(t, module, meetingID, "validated")
	meeting, _ = module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.ValidatedAt == nil || meeting.ValidatedBy != "Admin One" || meeting.ValidatedByUserID != "admin-1" {
		t.Fatalf("validate must stamp the validation marks, got %+v", meeting)
	}

	transition(t, module, meetingID, "archived")
	meeting, _ = module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.ArchivedAt == nil || meeting.Status != "archived" {
		t.Fatalf("archive must stamp ArchivedAt, got %+v", meeting)
	}
}

func TestTransitionNoOpRejected(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "A. Durand")

	_, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: "draft",
		Actor:  admin,
	})
	if !errors.Is(err, domainerrors.ErrAlreadyInStatus) {
		t.Fatalf("expected ErrAlreadyInStatus, got %v", err)
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "A. Durand")

	for _, target := range []string{"live", "paused", "closed", "validated"} {
		_, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
			Target: target,
			Actor:  admin,
		})
		if !errors.Is(err, domainerrors.ErrTransitionNotAllowed) {
			t.Fatalf("draft->%s: expected ErrTransitionNotAllowed, got %v", target, err)
		}
	}

	_, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: "nonsense",
		Actor:  admin,
	})
	if !errors.Is(err, domainerrors.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestArchivedMeetingIsImmutable(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "A. Durand")
	transition(t, module, meetingID, "archived")

	for _, target := range []string{"draft", "scheduled", "frozen", "live", "paused", "closed", "validated"} {
		_, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
			Target: target,
			Actor:  admin,
		})
		if !errors.Is(err, domainerrors.ErrMeetingArchived) {
			t.Fatalf("archived->%s: expected ErrMeetingArchived, got %v", target, err)
		}
	}

	_, err := module.Handler.UpdateMeetingHandler(context.Background(), meetingID, httptransport.UpdateMeetingRequest{
		Title: "New title",
	})
	if !errors.Is(err, domainerrors.ErrMeetingArchived) {
		t.Fatalf("expected ErrMeetingArchived on metadata edit, got %v", err)
	}
}

func TestUnfreezeClearsFreezeMarks(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "A. Durand")
	transition(t, module, meetingID, "scheduled")
	transition(t, module, meetingID, "frozen")
	transition(t, module, meetingID, "scheduled")

	meeting, err := module.Store.GetMeeting(context.Background(), meetingID)
	if err != nil {
		t.Fatalf("get meeting: %v", err)
	}
	if meeting.FrozenAt != nil || meeting.FrozenBy != "" {
		t.Fatalf("unfreeze must clear the freeze marks, got %+v", meeting)
	}
}

func TestForceRequiresElevatedRole(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)

	// The privilege check runs before anything is loaded.
	_, err := module.Handler.TransitionHandler(context.Background(), "no-such-meeting", httptransport.TransitionRequest{
		Target: "scheduled",
		Force:  true,
		Actor:  member,
	})
	if !errors.Is(err, domainerrors.ErrForceRequiresElevatedRole) {
		t.Fatalf("expected ErrForceRequiresElevatedRole, got %v", err)
	}

	_, err = module.Handler.LaunchHandler(context.Background(), "no-such-meeting", httptransport.LaunchRequest{
		Force: true,
		Actor: member,
	})
	if !errors.Is(err, domainerrors.ErrForceRequiresElevatedRole) {
		t.Fatalf("expected ErrForceRequiresElevatedRole on launch, got %v", err)
	}
}

func TestTransitionBlockedWithoutPresident(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "")
	transition(t, module, meetingID, "scheduled")

	_, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: "frozen",
		Actor:  admin,
	})
	if !errors.Is(err, domainerrors.ErrTransitionBlocked) {
		t.Fatalf("expected ErrTransitionBlocked, got %v", err)
	}
	if !strings.Contains(err.Error(), "president name is missing") {
		t.Fatalf("blocking error must name the issue, got %v", err)
	}

	forced, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: "frozen",
		Force:  true,
		Actor:  admin,
	})
	if err != nil {
		t.Fatalf("forced transition: %v", err)
	}
	if !forced.Forced || forced.Meeting.Status != "frozen" {
		t.Fatalf("expected forced freeze, got %+v", forced)
	}
}

func TestLaunchFastForward(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "A. Durand")

	launched, err := module.Handler.LaunchHandler(context.Background(), meetingID, httptransport.LaunchRequest{Actor: admin})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	want := []string{"scheduled", "frozen", "live"}
	if len(launched.Visited) != len(want) {
		t.Fatalf("expected visited %v, got %v", want, launched.Visited)
	}
	for i, status := range want {
		if launched.Visited[i] != status {
			t.Fatalf("expected visited %v, got %v", want, launched.Visited)
		}
	}
	if launched.Meeting.Status != "live" {
		t.Fatalf("expected live after launch, got %q", launched.Meeting.Status)
	}

	meeting, _ := module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.ScheduledAt == nil || meeting.StartedAt == nil {
		t.Fatalf("launch must stamp the intermediate timestamps, got %+v", meeting)
	}

	if _, err := module.Handler.LaunchHandler(context.Background(), meetingID, httptransport.LaunchRequest{Actor: admin}); !errors.Is(err, domainerrors.ErrNoLaunchPath) {
		t.Fatalf("expected ErrNoLaunchPath from live, got %v", err)
	}

	// From scheduled the path is shorter: only the remaining steps are walked.
	scheduledID := newMeeting(t, module, "A. Durand")
	transition(t, module, scheduledID, "scheduled")
	launched, err = module.Handler.LaunchHandler(context.Background(), scheduledID, httptransport.LaunchRequest{Actor: admin})
	if err != nil {
		t.Fatalf("launch from scheduled: %v", err)
	}
	if len(launched.Visited) != 2 || launched.Visited[0] != "frozen" || launched.Visited[1] != "live" {
		t.Fatalf("expected visited [frozen live], got %v", launched.Visited)
	}
}

func TestLaunchAggregatesIssuesAcrossPath(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "")

	_, err := module.Handler.LaunchHandler(context.Background(), meetingID, httptransport.LaunchRequest{Actor: admin})
	if !errors.Is(err, domainerrors.ErrTransitionBlocked) {
		t.Fatalf("expected ErrTransitionBlocked, got %v", err)
	}
	if !strings.Contains(err.Error(), "president name is missing") {
		t.Fatalf("aggregated error must name the issue, got %v", err)
	}
	// The same issue surfaces on two path steps but is reported once.
	if strings.Count(err.Error(), "president name is missing") != 1 {
		t.Fatalf("expected deduplicated issues, got %v", err)
	}

	forced, err := module.Handler.LaunchHandler(context.Background(), meetingID, httptransport.LaunchRequest{
		Force: true,
		Actor: admin,
	})
	if err != nil {
		t.Fatalf("forced launch: %v", err)
	}
	if !forced.Forced || forced.Meeting.Status != "live" {
		t.Fatalf("expected forced launch to live, got %+v", forced)
	}
}

func TestPreviewTransitionMatchesGuards(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "")

	preview, err := module.Handler.PreviewTransitionHandler(context.Background(), meetingID, "scheduled")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !preview.Allowed {
		t.Fatalf("draft->scheduled should be allowed, got %+v", preview)
	}

	// No-op and illegal targets preview as disallowed without erroring.
	preview, err = module.Handler.PreviewTransitionHandler(context.Background(), meetingID, "draft")
	if err != nil || preview.Allowed {
		t.Fatalf("no-op preview must be disallowed, got %+v err %v", preview, err)
	}
	preview, err = module.Handler.PreviewTransitionHandler(context.Background(), meetingID, "live")
	if err != nil || preview.Allowed {
		t.Fatalf("illegal preview must be disallowed, got %+v err %v", preview, err)
	}

	transition(t, module, meetingID, "scheduled")
	preview, err = module.Handler.PreviewTransitionHandler(context.Background(), meetingID, "frozen")
	if err != nil {
		t.Fatalf("preview frozen: %v", err)
	}
	if preview.Allowed || len(preview.Issues) == 0 {
		t.Fatalf("missing president must surface as a preview issue, got %+v", preview)
	}

	// The preview changed nothing.
	meeting, _ := module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.Status != "scheduled" {
		t.Fatalf("preview must not mutate the meeting, got %q", meeting.Status)
	}
}

func TestPreviewLaunchReportsPathAndIssues(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "")

	preview, err := module.Handler.PreviewLaunchHandler(context.Background(), meetingID)
	if err != nil {
		t.Fatalf("preview launch: %v", err)
	}
	want := []string{"scheduled", "frozen", "live"}
	if len(preview.Path) != len(want) {
		t.Fatalf("expected path %v, got %v", want, preview.Path)
	}
	if len(preview.Issues) != 1 || preview.Issues[0] != "president name is missing" {
		t.Fatalf("expected a single deduplicated issue, got %v", preview.Issues)
	}
}

func TestConsolidateGate(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "A. Durand")
	transition(t, module, meetingID, "scheduled")
	transition(t, module, meetingID, "frozen")
	transition(t, module, meetingID, "live")

	_, err := module.Handler.ConsolidateHandler(context.Background(), meetingID, admin)
	if !errors.Is(err, domainerrors.ErrConsolidationForbidden) {
		t.Fatalf("expected ErrConsolidationForbidden while live, got %v", err)
	}

	transition(t, module, meetingID, "closed")
	if _, err := module.Handler.ConsolidateHandler(context.Background(), meetingID, admin); err != nil {
		t.Fatalf("consolidate closed meeting: %v", err)
	}

	transition(t, module, meetingID, "validated")
	if _, err := module.Handler.ConsolidateHandler(context.Background(), meetingID, admin); err != nil {
		t.Fatalf("consolidate validated meeting: %v", err)
	}
}

func TestResetDemoConfirmation(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "A. Durand")
	transition(t, module, meetingID, "scheduled")
	transition(t, module, meetingID, "frozen")
	transition(t, module, meetingID, "live")
	transition(t, module, meetingID, "closed")

	_, err := module.Handler.ResetDemoHandler(context.Background(), meetingID, httptransport.ResetDemoRequest{
		Confirmation: "wrong",
		Actor:        admin,
	})
	if !errors.Is(err, domainerrors.ErrResetConfirmationMismatch) {
		t.Fatalf("expected ErrResetConfirmationMismatch, got %v", err)
	}

	// The confirmation is case-sensitive.
	_, err = module.Handler.ResetDemoHandler(context.Background(), meetingID, httptransport.ResetDemoRequest{
		Confirmation: strings.ToUpper(meetingID),
		Actor:        admin,
	})
	if !errors.Is(err, domainerrors.ErrResetConfirmationMismatch) {
		t.Fatalf("expected case-sensitive mismatch, got %v", err)
	}

	reset, err := module.Handler.ResetDemoHandler(context.Background(), meetingID, httptransport.ResetDemoRequest{
		Confirmation: meetingID,
		Actor:        admin,
	})
	if err != nil {
		t.Fatalf("reset demo: %v", err)
	}
	if reset.Status != "draft" {
		t.Fatalf("expected draft after reset, got %q", reset.Status)
	}
	meeting, _ := module.Store.GetMeeting(context.Background(), meetingID)
	if meeting.StartedAt != nil || meeting.EndedAt != nil || meeting.ClosedBy != "" {
		t.Fatalf("reset must clear lifecycle marks, got %+v", meeting)
	}
}

func TestResetDemoRefusesValidatedMeeting(t *testing.T) {
	module := meetingworkflow.NewInMemoryModule(nil, nil)
	meetingID := newMeeting(t, module, "A. Durand")
	transition(t, module, meetingID, "scheduled")
	transition(t, module, meetingID, "frozen")
	transition(t, module, meetingID, "live")
	transition(t, module, meetingID, "closed")
	transition(t, module, meetingID, "validated")

	_, err := module.Handler.ResetDemoHandler(context.Background(), meetingID, httptransport.ResetDemoRequest{
		Confirmation: meetingID,
		Actor:        admin,
	})
	if !errors.Is(err, domainerrors.ErrMeetingValidated) {
		t.Fatalf("expected ErrMeetingValidated, got %v", err)
	}
}
