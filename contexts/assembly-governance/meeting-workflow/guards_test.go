package meetingworkflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	meetingworkflow "agora/contexts/assembly-governance/meeting-workflow"
	"agora/contexts/assembly-governance/meeting-workflow/adapters/memory"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
	httptransport "agora/contexts/assembly-governance/meeting-workflow/transport/http"
)

type stubMotionReader struct {
	openCount int
}

func (s stubMotionReader) OpenMotionCount(context.Context, string) (int, error) {
	return s.openCount, nil
}

type stubEligibilityReader struct {
	quorumOk bool
	fallback bool
}

func (s stubEligibilityReader) QuorumStatus(context.Context, string) (bool, bool, error) {
	return s.quorumOk, s.fallback, nil
}

type stubConsolidator struct {
	ready        bool
	issues       []string
	consolidated int
	runs         int
}

func (s *stubConsolidator) Consolidate(context.Context, string) (int, error) {
	s.runs++
	return s.consolidated, nil
}

func (s *stubConsolidator) Readiness(context.Context, string) (bool, []string, error) {
	return s.ready, s.issues, nil
}

func newGuardedModule(motions stubMotionReader, eligibility stubEligibilityReader, consolidation *stubConsolidator) meetingworkflow.Module {
	store := memory.NewStore(nil)
	module := meetingworkflow.NewModule(meetingworkflow.Dependencies{
		Meetings:      store,
		Motions:       motions,
		Eligibility:   eligibility,
		Consolidation: consolidation,
		Clock:         store,
		IDGen:         store,
	})
	module.Store = store
	return module
}

func TestGoLiveBlockedWithoutQuorum(t *testing.T) {
	module := newGuardedModule(stubMotionReader{}, stubEligibilityReader{quorumOk: false}, &stubConsolidator{ready: true})
	meetingID := newMeeting(t, module, "A. Durand")
	transition(t, module, meetingID, "scheduled")
	transition(t, module, meetingID, "frozen")

	_, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: "live",
		Actor:  admin,
	})
	if !errors.Is(err, domainerrors.ErrTransitionBlocked) {
		t.Fatalf("expected ErrTransitionBlocked, got %v", err)
	}
	if !strings.Contains(err.Error(), "quorum is not reached") {
		t.Fatalf("blocking error must name the quorum issue, got %v", err)
	}
}

func TestGoLiveWarnsOnRosterFallback(t *testing.T) {
	module := newGuardedModule(stubMotionReader{}, stubEligibilityReader{quorumOk: false, fallback: true}, &stubConsolidator{ready: true})
	meetingID := newMeeting(t, module, "A. Durand")
	transition(t, module, meetingID, "scheduled")
	transition(t, module, meetingID, "frozen")

	// A roster fallback is advisory: it warns but does not block.
	resp, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: "live",
		Actor:  admin,
	})
	if err != nil {
		t.Fatalf("go live with fallback eligibility: %v", err)
	}
	if len(resp.Warnings) != 1 || !strings.Contains(resp.Warnings[0], "roster") {
		t.Fatalf("expected a roster fallback warning, got %v", resp.Warnings)
	}
	if resp.Forced {
		t.Fatalf("a warned transition is not a forced one")
	}
}

func TestCloseBlockedByOpenMotion(t *testing.T) {
	module := newGuardedModule(stubMotionReader{openCount: 1}, stubEligibilityReader{quorumOk: true}, &stubConsolidator{ready: true})
	meetingID := newMeeting(t, module, "A. Durand")
	transition(t, module, meetingID, "scheduled")
	transition(t, module, meetingID, "frozen")
	transition(t, module, meetingID, "live")

	_, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: "closed",
		Actor:  admin,
	})
	if !errors.Is(err, domainerrors.ErrTransitionBlocked) {
		t.Fatalf("expected ErrTransitionBlocked, got %v", err)
	}
	if !strings.Contains(err.Error(), "motion(s) still open") {
		t.Fatalf("blocking error must name the open motion, got %v", err)
	}

	forced, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: "closed",
		Force:  true,
		Actor:  admin,
	})
	if err != nil {
		t.Fatalf("forced close: %v", err)
	}
	if !forced.Forced {
		t.Fatalf("expected forced close to be flagged")
	}
}

func TestValidateBlockedByReadinessIssues(t *testing.T) {
	consolidation := &stubConsolidator{
		ready:  false,
		issues: []string{"motion m-1 has no exploitable result"},
	}
	module := newGuardedModule(stubMotionReader{}, stubEligibilityReader{quorumOk: true}, consolidation)
	meetingID := newMeeting(t, module, "A. Durand")
	transition(t, module, meetingID, "scheduled")
	transition(t, module, meetingID, "frozen")
	transition(t, module, meetingID, "live")
	transition(t, module, meetingID, "closed")

	_, err := module.Handler.TransitionHandler(context.Background(), meetingID, httptransport.TransitionRequest{
		Target: "validated",
		Actor:  admin,
	})
	if !errors.Is(err, domainerrors.ErrTransitionBlocked) {
		t.Fatalf("expected ErrTransitionBlocked, got %v", err)
	}
	if !strings.Contains(err.Error(), "no exploitable result") {
		t.Fatalf("blocking error must carry the readiness issue, got %v", err)
	}

	report, err := module.Handler.ReadinessHandler(context.Background(), meetingID)
	if err != nil {
		t.Fatalf("readiness: %v", err)
	}
	if report.Ready || len(report.Issues) != 1 {
		t.Fatalf("unexpected readiness report %+v", report)
	}

	consolidation.ready = true
	consolidation.issues = nil
	transition(t, module, meetingID, "validated")

	result, err := module.Handler.ConsolidateHandler(context.Background(), meetingID, admin)
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if consolidation.runs != 1 || result.Consolidated != consolidation.consolidated {
		t.Fatalf("expected one consolidation run, got %d", consolidation.runs)
	}
}
