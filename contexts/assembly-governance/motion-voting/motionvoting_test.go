package motionvoting_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	motionvoting "agora/contexts/assembly-governance/motion-voting"
	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	domainerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	"agora/contexts/assembly-governance/motion-voting/ports"
	httptransport "agora/contexts/assembly-governance/motion-voting/transport/http"
)

func newLiveMeetingModule(t *testing.T) motionvoting.Module {
	t.Helper()
	module := motionvoting.NewInMemoryModule(nil, nil)
	module.Store.SetMeeting(ports.MeetingProjection{
		MeetingID:     "meeting-1",
		Status:        "live",
		PresidentName: "A. Durand",
	})
	return module
}

func createMotion(t *testing.T, module motionvoting.Module, title string, position int) string {
	t.Helper()
	resp, err := module.Handler.CreateMotionHandler(context.Background(), httptransport.CreateMotionRequest{
		MeetingID: "meeting-1",
		Title:     title,
		Position:  position,
	})
	if err != nil {
		t.Fatalf("create motion %q: %v", title, err)
	}
	return resp.MotionID
}

func recordAttendance(t *testing.T, module motionvoting.Module, memberID, mode string, power float64) {
	t.Helper()
	_, err := module.Handler.RecordAttendanceHandler(context.Background(), "meeting-1", httptransport.RecordAttendanceRequest{
		MemberID:    memberID,
		Mode:        mode,
		VotingPower: &power,
	})
	if err != nil {
		t.Fatalf("record attendance for %s: %v", memberID, err)
	}
}

func TestOpenMotionIssuesTokensToPresentMembers(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	recordAttendance(t, module, "bob", "remote", 1)
	recordAttendance(t, module, "carol", "absent", 1)

	motionID := createMotion(t, module, "Approve annual budget", 1)
	opened, err := module.Handler.OpenMotionHandler(context.Background(), motionID)
	if err != nil {
		t.Fatalf("open motion: %v", err)
	}
	if opened.Motion.Status != "open" {
		t.Fatalf("expected status open, got %q", opened.Motion.Status)
	}
	if len(opened.Tokens) != 2 {
		t.Fatalf("expected 2 tokens for present members, got %d", len(opened.Tokens))
	}
	for _, token := range opened.Tokens {
		if token.MemberID == "carol" {
			t.Fatalf("absent member must not receive a token")
		}
		if token.Token == "" {
			t.Fatalf("issued token must carry a raw value")
		}
	}
}

func TestSingleOpenMotionPerMeeting(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)

	first := createMotion(t, module, "First resolution", 1)
	second := createMotion(t, module, "Second resolution", 2)

	if _, err := module.Handler.OpenMotionHandler(context.Background(), first); err != nil {
		t.Fatalf("open first motion: %v", err)
	}
	if _, err := module.Handler.OpenMotionHandler(context.Background(), second); !errors.Is(err, domainerrors.ErrAnotherMotionOpen) {
		t.Fatalf("expected ErrAnotherMotionOpen, got %v", err)
	}

	if _, err := module.Handler.CloseMotionHandler(context.Background(), first); err != nil {
		t.Fatalf("close first motion: %v", err)
	}
	if _, err := module.Handler.OpenMotionHandler(context.Background(), first); !errors.Is(err, domainerrors.ErrMotionAlreadyOpened) {
		t.Fatalf("expected ErrMotionAlreadyOpened on reopen, got %v", err)
	}
	if _, err := module.Handler.OpenMotionHandler(context.Background(), second); err != nil {
		t.Fatalf("open second motion after close: %v", err)
	}
}

func TestCastBallotDuplicateRejected(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	motionID := createMotion(t, module, "Replace the elevator", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}

	cast, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "alice",
		Value:    "for",
		Source:   "token",
	})
	if err != nil {
		t.Fatalf("first cast: %v", err)
	}
	if cast.Value != "for" || cast.Weight != 1 {
		t.Fatalf("unexpected ballot %+v", cast)
	}

	_, err = module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "alice",
		Value:    "against",
		Source:   "token",
	})
	if !errors.Is(err, domainerrors.ErrDuplicateBallot) {
		t.Fatalf("expected ErrDuplicateBallot, got %v", err)
	}
}

func TestCastBallotIdempotencyReplay(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	motionID := createMotion(t, module, "Renew maintenance contract", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}

	request := httptransport.CastBallotRequest{MemberID: "alice", Value: "for", Source: "token"}
	first, err := module.Handler.CastBallotHandler(context.Background(), motionID, "key-1", request)
	if err != nil {
		t.Fatalf("first cast: %v", err)
	}
	if first.Replayed {
		t.Fatalf("first cast must not be a replay")
	}

	replay, err := module.Handler.CastBallotHandler(context.Background(), motionID, "key-1", request)
	if err != nil {
		t.Fatalf("replay cast: %v", err)
	}
	if !replay.Replayed || replay.BallotID != first.BallotID {
		t.Fatalf("expected replay of ballot %s, got %+v", first.BallotID, replay)
	}

	_, err = module.Handler.CastBallotHandler(context.Background(), motionID, "key-1", httptransport.CastBallotRequest{
		MemberID: "alice",
		Value:    "against",
		Source:   "token",
	})
	if !errors.Is(err, domainerrors.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict for reused key, got %v", err)
	}
}

func TestCastBallotTokenBinding(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	recordAttendance(t, module, "bob", "present", 1)

	first := createMotion(t, module, "First vote", 1)
	opened, err := module.Handler.OpenMotionHandler(context.Background(), first)
	if err != nil {
		t.Fatalf("open motion: %v", err)
	}
	var aliceToken string
	for _, token := range opened.Tokens {
		if token.MemberID == "alice" {
			aliceToken = token.Token
		}
	}
	if aliceToken == "" {
		t.Fatalf("no token issued for alice")
	}

	// A token names its member; casting it under another identity must fail.
	_, err = module.Handler.CastBallotHandler(context.Background(), first, "", httptransport.CastBallotRequest{
		MemberID: "bob",
		Value:    "for",
		Token:    aliceToken,
	})
	if !errors.Is(err, domainerrors.ErrTokenMismatch) {
		t.Fatalf("expected ErrTokenMismatch, got %v", err)
	}

	cast, err := module.Handler.CastBallotHandler(context.Background(), first, "", httptransport.CastBallotRequest{
		Value: "for",
		Token: aliceToken,
	})
	if err != nil {
		t.Fatalf("token cast: %v", err)
	}
	if cast.MemberID != "alice" || cast.Source != "token" {
		t.Fatalf("expected token cast bound to alice, got %+v", cast)
	}

	_, err = module.Handler.CastBallotHandler(context.Background(), first, "", httptransport.CastBallotRequest{
		Value: "against",
		Token: aliceToken,
	})
	if !errors.Is(err, domainerrors.ErrTokenConsumed) {
		t.Fatalf("expected ErrTokenConsumed on reuse, got %v", err)
	}
}

func TestCastCommitLeavesTokenOnDuplicate(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	motionID := createMotion(t, module, "Insurance renewal", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}
	if _, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "alice",
		Value:    "for",
		Source:   "token",
	}); err != nil {
		t.Fatalf("first cast: %v", err)
	}

	tokens, err := module.Store.ListTokensByMotion(context.Background(), motionID)
	if err != nil || len(tokens) != 1 {
		t.Fatalf("expected one issued token, got %d (%v)", len(tokens), err)
	}

	// The ballot slot is already taken, so the commit must fail as a whole
	// and leave the token active.
	now := time.Now().UTC()
	err = module.Store.CommitCast(context.Background(), ports.CastWrite{
		Ballot: entities.Ballot{
			BallotID: "late-duplicate",
			MotionID: motionID,
			MemberID: "alice",
			Value:    entities.ValueFor,
			Weight:   1,
			Source:   entities.SourceToken,
			CastAt:   now,
		},
		TokenHash: tokens[0].TokenHash,
		UsedAt:    now,
	})
	if !errors.Is(err, domainerrors.ErrDuplicateBallot) {
		t.Fatalf("expected ErrDuplicateBallot, got %v", err)
	}

	tokens, err = module.Store.ListTokensByMotion(context.Background(), motionID)
	if err != nil {
		t.Fatalf("list tokens: %v", err)
	}
	if tokens[0].Status != entities.TokenStatusActive {
		t.Fatalf("a failed cast commit must not consume the token, got status %q", tokens[0].Status)
	}
}

func TestCastBallotValueAliases(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	recordAttendance(t, module, "bob", "present", 1)
	recordAttendance(t, module, "carol", "present", 1)
	motionID := createMotion(t, module, "Facade renovation", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}

	cases := map[string]string{
		"pour":   "for",
		"contre": "against",
		"nspp":   "no_opinion",
	}
	members := []string{"alice", "bob", "carol"}
	i := 0
	for raw, want := range cases {
		cast, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
			MemberID: members[i],
			Value:    raw,
			Source:   "token",
		})
		if err != nil {
			t.Fatalf("cast %q: %v", raw, err)
		}
		if cast.Value != want {
			t.Fatalf("alias %q: expected %q, got %q", raw, want, cast.Value)
		}
		i++
	}

	_, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "alice",
		Value:    "maybe",
		Source:   "token",
	})
	if !errors.Is(err, domainerrors.ErrInvalidVote) {
		t.Fatalf("expected ErrInvalidVote for unknown value, got %v", err)
	}
}

func TestCastBallotPresenceGate(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	recordAttendance(t, module, "dave", "absent", 1)
	motionID := createMotion(t, module, "Garden budget", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}

	_, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "dave",
		Value:    "for",
		Source:   "token",
	})
	if !errors.Is(err, domainerrors.ErrIneligibleVoter) {
		t.Fatalf("expected ErrIneligibleVoter for absent member, got %v", err)
	}
}

func TestCloseMotionTallyAndTokenRevocation(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	recordAttendance(t, module, "bob", "present", 1)
	recordAttendance(t, module, "carol", "present", 1)
	motionID := createMotion(t, module, "Approve accounts", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}

	for member, value := range map[string]string{"alice": "for", "bob": "for"} {
		if _, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
			MemberID: member,
			Value:    value,
			Source:   "token",
		}); err != nil {
			t.Fatalf("cast for %s: %v", member, err)
		}
	}

	closed, err := module.Handler.CloseMotionHandler(context.Background(), motionID)
	if err != nil {
		t.Fatalf("close motion: %v", err)
	}
	if closed.Tally.For.Count != 2 || closed.Tally.For.Weight != 2 {
		t.Fatalf("unexpected for bucket %+v", closed.Tally.For)
	}
	if closed.Decision != "approved" {
		t.Fatalf("expected approved, got %q", closed.Decision)
	}
	if closed.TallySource != "electronic" {
		t.Fatalf("expected electronic source, got %q", closed.TallySource)
	}
	// Three tokens were minted, none consumed (casts went by member id), so
	// all three are revoked at close.
	if closed.TokensRevoked != 3 {
		t.Fatalf("expected 3 revoked tokens, got %d", closed.TokensRevoked)
	}

	_, err = module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "carol",
		Value:    "for",
		Source:   "token",
	})
	if !errors.Is(err, domainerrors.ErrMotionNotOpen) {
		t.Fatalf("expected ErrMotionNotOpen after close, got %v", err)
	}
	if _, err := module.Handler.CloseMotionHandler(context.Background(), motionID); !errors.Is(err, domainerrors.ErrMotionAlreadyClosed) {
		t.Fatalf("expected ErrMotionAlreadyClosed, got %v", err)
	}
}

func TestFullVoteRound(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	recordAttendance(t, module, "bob", "present", 1)
	recordAttendance(t, module, "carol", "remote", 1)
	motionID := createMotion(t, module, "Change the syndic", 1)

	opened, err := module.Handler.OpenMotionHandler(context.Background(), motionID)
	if err != nil {
		t.Fatalf("open motion: %v", err)
	}
	tokens := make(map[string]string, len(opened.Tokens))
	for _, token := range opened.Tokens {
		tokens[token.MemberID] = token.Token
	}

	for member, value := range map[string]string{"alice": "for", "bob": "against", "carol": "abstain"} {
		if _, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
			Value: value,
			Token: tokens[member],
		}); err != nil {
			t.Fatalf("token cast for %s: %v", member, err)
		}
	}

	closed, err := module.Handler.CloseMotionHandler(context.Background(), motionID)
	if err != nil {
		t.Fatalf("close motion: %v", err)
	}
	if closed.Tally.For.Count != 1 || closed.Tally.Against.Count != 1 || closed.Tally.Abstain.Count != 1 || closed.Tally.NoOpinion.Count != 0 {
		t.Fatalf("unexpected tally %+v", closed.Tally)
	}
	// 1 for out of 2 expressed sits exactly on the majority threshold.
	if closed.Decision != "tie" {
		t.Fatalf("expected tie, got %q", closed.Decision)
	}
	// Every token was consumed during the vote, nothing left to revoke.
	if closed.TokensRevoked != 0 {
		t.Fatalf("expected no tokens left to revoke, got %d", closed.TokensRevoked)
	}
	if closed.Motion.ClosedAt == "" {
		t.Fatalf("closed motion must carry its close timestamp")
	}

	// The closed tally is frozen: repeated reads agree with the close response.
	for i := 0; i < 2; i++ {
		tally, err := module.Handler.TallyHandler(context.Background(), motionID)
		if err != nil {
			t.Fatalf("tally read %d: %v", i, err)
		}
		if tally.Tally != closed.Tally {
			t.Fatalf("tally read %d diverged: %+v vs %+v", i, tally.Tally, closed.Tally)
		}
	}
}

func TestCloseMotionManualFallback(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	motionID := createMotion(t, module, "Roof repairs", 1)

	if _, err := module.Handler.SetManualTallyHandler(context.Background(), motionID, "operator-1", httptransport.ManualTallyRequest{
		Total:         100,
		For:           60,
		Against:       30,
		Abstain:       10,
		Justification: "electronic voting unavailable in the annex room",
	}); err != nil {
		t.Fatalf("set manual tally: %v", err)
	}

	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}
	closed, err := module.Handler.CloseMotionHandler(context.Background(), motionID)
	if err != nil {
		t.Fatalf("close motion: %v", err)
	}
	if closed.TallySource != "manual" {
		t.Fatalf("expected manual fallback source, got %q", closed.TallySource)
	}
	if closed.Decision != "approved" {
		t.Fatalf("expected approved from manual counts, got %q", closed.Decision)
	}
}

func TestManualTallyValidation(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	motionID := createMotion(t, module, "Heating system", 1)

	_, err := module.Handler.SetManualTallyHandler(context.Background(), motionID, "operator-1", httptransport.ManualTallyRequest{
		Total: 100, For: 60, Against: 30, Abstain: 5,
		Justification: "paper count",
	})
	if !errors.Is(err, domainerrors.ErrManualTallyInconsistent) {
		t.Fatalf("expected ErrManualTallyInconsistent, got %v", err)
	}

	_, err = module.Handler.SetManualTallyHandler(context.Background(), motionID, "operator-1", httptransport.ManualTallyRequest{
		Justification: "paper count",
	})
	if !errors.Is(err, domainerrors.ErrManualTallyInconsistent) {
		t.Fatalf("expected all-zero counts to be inconsistent, got %v", err)
	}

	_, err = module.Handler.SetManualTallyHandler(context.Background(), motionID, "operator-1", httptransport.ManualTallyRequest{
		Total: 10, For: 6, Against: 3, Abstain: 1,
	})
	if !errors.Is(err, domainerrors.ErrJustificationRequired) {
		t.Fatalf("expected ErrJustificationRequired, got %v", err)
	}

	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}
	if _, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "alice",
		Value:    "for",
		Source:   "token",
	}); err != nil {
		t.Fatalf("cast ballot: %v", err)
	}
	_, err = module.Handler.SetManualTallyHandler(context.Background(), motionID, "operator-1", httptransport.ManualTallyRequest{
		Total: 10, For: 6, Against: 3, Abstain: 1,
		Justification: "paper count",
	})
	if !errors.Is(err, domainerrors.ErrElectronicBallotsPresent) {
		t.Fatalf("expected ErrElectronicBallotsPresent, got %v", err)
	}
}

func TestQuorumBoundary(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	recordAttendance(t, module, "bob", "remote", 1)
	recordAttendance(t, module, "carol", "absent", 1)
	recordAttendance(t, module, "dave", "absent", 1)

	// 2 present of 4: the 0.5 threshold is inclusive.
	report, err := module.Handler.EligibilityHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !report.QuorumOk || report.QuorumRatio != 0.5 {
		t.Fatalf("expected quorum at exactly 0.5, got %+v", report)
	}

	module = newLiveMeetingModule(t)
	recordAttendance(t, module, "carol", "absent", 1)
	recordAttendance(t, module, "dave", "absent", 1)
	report, err = module.Handler.EligibilityHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if report.QuorumOk {
		t.Fatalf("zero present members must never reach quorum: %+v", report)
	}

	// No attendance rows at all: the roster fallback is flagged.
	module = newLiveMeetingModule(t)
	module.Store.SetRoster([]string{"alice", "bob"})
	report, err = module.Handler.EligibilityHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !report.Fallback || report.QuorumOk {
		t.Fatalf("expected roster fallback without quorum, got %+v", report)
	}
}

func TestZeroVotingPowerAttendee(t *testing.T) {
	module := newLiveMeetingModule(t)

	zero := 0.0
	resp, err := module.Handler.RecordAttendanceHandler(context.Background(), "meeting-1", httptransport.RecordAttendanceRequest{
		MemberID:    "alice",
		Mode:        "present",
		VotingPower: &zero,
	})
	if err != nil {
		t.Fatalf("record zero-power attendance: %v", err)
	}
	if resp.VotingPower != 0 {
		t.Fatalf("explicit zero voting power must be kept, got %v", resp.VotingPower)
	}

	// An omitted field still defaults to 1.
	resp, err = module.Handler.RecordAttendanceHandler(context.Background(), "meeting-1", httptransport.RecordAttendanceRequest{
		MemberID: "bob",
		Mode:     "present",
	})
	if err != nil {
		t.Fatalf("record attendance without power: %v", err)
	}
	if resp.VotingPower != 1 {
		t.Fatalf("omitted voting power must default to 1, got %v", resp.VotingPower)
	}

	negative := -1.0
	_, err = module.Handler.RecordAttendanceHandler(context.Background(), "meeting-1", httptransport.RecordAttendanceRequest{
		MemberID:    "carol",
		Mode:        "present",
		VotingPower: &negative,
	})
	if !errors.Is(err, domainerrors.ErrInvalidAttendanceInput) {
		t.Fatalf("expected ErrInvalidAttendanceInput for negative power, got %v", err)
	}

	// A zero-power attendee still counts toward presence and casts weight 0.
	report, err := module.Handler.EligibilityHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("eligibility: %v", err)
	}
	if !report.QuorumOk {
		t.Fatalf("zero-power attendee must count toward quorum presence: %+v", report)
	}

	motionID := createMotion(t, module, "Caretaker contract", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}
	cast, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "alice",
		Value:    "for",
		Source:   "token",
	})
	if err != nil {
		t.Fatalf("zero-power cast: %v", err)
	}
	if cast.Weight != 0 {
		t.Fatalf("expected weight 0 for zero-power member, got %v", cast.Weight)
	}
}

func TestProxyCoverageAndCombinedWeight(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 2)
	recordAttendance(t, module, "bob", "absent", 3)
	recordAttendance(t, module, "carol", "absent", 1)

	grant, err := module.Handler.UpsertProxyHandler(context.Background(), "meeting-1", httptransport.UpsertProxyRequest{
		GiverMemberID:    "bob",
		ReceiverMemberID: "alice",
		Scope:            "full",
	})
	if err != nil {
		t.Fatalf("upsert proxy: %v", err)
	}
	// Re-upserting the same delegation is idempotent.
	again, err := module.Handler.UpsertProxyHandler(context.Background(), "meeting-1", httptransport.UpsertProxyRequest{
		GiverMemberID:    "bob",
		ReceiverMemberID: "alice",
		Scope:            "full",
	})
	if err != nil {
		t.Fatalf("re-upsert proxy: %v", err)
	}
	if again.GrantID != grant.GrantID {
		t.Fatalf("expected the same grant on re-upsert, got %s and %s", grant.GrantID, again.GrantID)
	}

	coverage, err := module.Handler.ProxyCoverageHandler(context.Background(), "meeting-1", "full")
	if err != nil {
		t.Fatalf("proxy coverage: %v", err)
	}
	if coverage.Covered["bob"] != "alice" {
		t.Fatalf("expected bob covered by alice, got %+v", coverage.Covered)
	}
	if len(coverage.Missing) != 1 || coverage.Missing[0] != "carol" {
		t.Fatalf("expected carol uncovered, got %v", coverage.Missing)
	}

	motionID := createMotion(t, module, "Budget amendment", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}
	cast, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "alice",
		Value:    "for",
		Source:   "proxy",
	})
	if err != nil {
		t.Fatalf("proxy cast: %v", err)
	}
	if cast.Weight != 5 {
		t.Fatalf("expected combined weight 5 (own 2 + bob 3), got %v", cast.Weight)
	}
	if !cast.IsProxyVote {
		t.Fatalf("expected proxy cast to be flagged")
	}

	if err := module.Handler.RevokeProxyHandler(context.Background(), "meeting-1", "bob", "full"); err != nil {
		t.Fatalf("revoke proxy: %v", err)
	}
	coverage, err = module.Handler.ProxyCoverageHandler(context.Background(), "meeting-1", "full")
	if err != nil {
		t.Fatalf("proxy coverage after revoke: %v", err)
	}
	if len(coverage.Covered) != 0 || len(coverage.Missing) != 2 {
		t.Fatalf("expected no coverage after revoke, got %+v", coverage)
	}
}

func TestSelfProxyRejected(t *testing.T) {
	module := newLiveMeetingModule(t)
	_, err := module.Handler.UpsertProxyHandler(context.Background(), "meeting-1", httptransport.UpsertProxyRequest{
		GiverMemberID:    "alice",
		ReceiverMemberID: "alice",
		Scope:            "full",
	})
	if !errors.Is(err, domainerrors.ErrSelfProxyForbidden) {
		t.Fatalf("expected ErrSelfProxyForbidden, got %v", err)
	}
}

func TestConsolidationIsIdempotent(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)
	recordAttendance(t, module, "bob", "present", 1)

	voted := createMotion(t, module, "Voted motion", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), voted); err != nil {
		t.Fatalf("open voted motion: %v", err)
	}
	for _, member := range []string{"alice", "bob"} {
		if _, err := module.Handler.CastBallotHandler(context.Background(), voted, "", httptransport.CastBallotRequest{
			MemberID: member,
			Value:    "for",
			Source:   "token",
		}); err != nil {
			t.Fatalf("cast for %s: %v", member, err)
		}
	}
	if _, err := module.Handler.CloseMotionHandler(context.Background(), voted); err != nil {
		t.Fatalf("close voted motion: %v", err)
	}

	empty := createMotion(t, module, "Empty motion", 2)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), empty); err != nil {
		t.Fatalf("open empty motion: %v", err)
	}
	if _, err := module.Handler.CloseMotionHandler(context.Background(), empty); err != nil {
		t.Fatalf("close empty motion: %v", err)
	}

	first, err := module.Handler.ConsolidateHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if first.Consolidated != 1 {
		t.Fatalf("expected 1 consolidated motion, got %d", first.Consolidated)
	}
	if len(first.NoResult) != 1 || first.NoResult[0] != empty {
		t.Fatalf("expected %s without exploitable result, got %v", empty, first.NoResult)
	}
	if first.SourceByMotion[voted] != "electronic" || first.SourceByMotion[empty] != "none" {
		t.Fatalf("unexpected sources %+v", first.SourceByMotion)
	}

	second, err := module.Handler.ConsolidateHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("re-consolidate: %v", err)
	}
	if second.Consolidated != first.Consolidated || len(second.NoResult) != len(first.NoResult) {
		t.Fatalf("re-run diverged: first %+v second %+v", first, second)
	}

	tally, err := module.Handler.TallyHandler(context.Background(), voted)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if tally.Source != "electronic" || tally.Tally.For.Count != 2 {
		t.Fatalf("unexpected official tally %+v", tally)
	}
}

func TestReadyCheckFlagsRosterFallback(t *testing.T) {
	module := newLiveMeetingModule(t)
	module.Store.SetRoster([]string{"alice", "bob"})

	report, err := module.Handler.ReadyCheckHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("ready check: %v", err)
	}
	if report.Ready {
		t.Fatalf("a roster-fallback eligibility must never be ready: %+v", report)
	}
	found := false
	for _, issue := range report.Issues {
		if issue == "eligible voters fell back to the full member roster" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected roster fallback issue, got %v", report.Issues)
	}
}

func TestReadyCheckFlagsOpenMotionAndMissingResult(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)

	open := createMotion(t, module, "Still open", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), open); err != nil {
		t.Fatalf("open motion: %v", err)
	}
	report, err := module.Handler.ReadyCheckHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("ready check: %v", err)
	}
	if report.Ready || len(report.Issues) == 0 {
		t.Fatalf("an open motion must block readiness: %+v", report)
	}

	if _, err := module.Handler.CloseMotionHandler(context.Background(), open); err != nil {
		t.Fatalf("close motion: %v", err)
	}
	// Closed with neither ballots nor a manual tally: still not exploitable.
	report, err = module.Handler.ReadyCheckHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("ready check: %v", err)
	}
	if report.Ready {
		t.Fatalf("a motion without exploitable result must block readiness: %+v", report)
	}
}

func TestDetectAnomalies(t *testing.T) {
	module := newLiveMeetingModule(t)
	for i := 0; i < 35; i++ {
		recordAttendance(t, module, fmt.Sprintf("m-%02d", i), "present", 1)
	}
	motionID := createMotion(t, module, "Large assembly motion", 1)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), motionID); err != nil {
		t.Fatalf("open motion: %v", err)
	}
	if _, err := module.Handler.CastBallotHandler(context.Background(), motionID, "", httptransport.CastBallotRequest{
		MemberID: "m-00",
		Value:    "for",
		Source:   "token",
	}); err != nil {
		t.Fatalf("cast ballot: %v", err)
	}

	now := time.Now().UTC()
	// Out-of-band rows the uniqueness constraint never saw.
	module.Store.SetBallot(entities.Ballot{
		BallotID: "dup-1",
		MotionID: motionID,
		MemberID: "m-00",
		Value:    entities.ValueFor,
		Weight:   1,
		Source:   entities.SourceManual,
		CastAt:   now,
	})
	module.Store.SetBallot(entities.Ballot{
		BallotID: "ghost-1",
		MotionID: motionID,
		MemberID: "ghost",
		Value:    entities.BallotValue("maybe"),
		Weight:   1,
		Source:   entities.SourceManual,
		CastAt:   now,
	})

	report, err := module.Handler.AnomaliesHandler(context.Background(), "meeting-1", motionID)
	if err != nil {
		t.Fatalf("detect anomalies: %v", err)
	}
	kinds := make(map[string]int)
	for _, anomaly := range report.Anomalies {
		kinds[anomaly.Kind]++
	}
	if kinds["duplicate_ballot"] != 1 {
		t.Fatalf("expected one duplicate anomaly, got %+v", kinds)
	}
	if kinds["invalid_value"] != 1 || kinds["ineligible_voter"] != 1 {
		t.Fatalf("expected ghost row flagged twice, got %+v", kinds)
	}
	if report.MissingTotal != 34 {
		t.Fatalf("expected 34 missing voters, got %d", report.MissingTotal)
	}
	if len(report.MissingSample) != 30 {
		t.Fatalf("missing sample must cap at 30 names, got %d", len(report.MissingSample))
	}
	if report.Stats["ballots_total"] != 3 {
		t.Fatalf("expected 3 stored ballots, got %d", report.Stats["ballots_total"])
	}
	if report.Stats["tokens_used"] != 0 || report.Stats["tokens_active_unused"] != 35 {
		t.Fatalf("unexpected token stats %+v", report.Stats)
	}
}

func TestPolicyCascadeOnOpen(t *testing.T) {
	module := motionvoting.NewInMemoryModule(nil, nil)
	module.Store.SetVotePolicy(entities.VotePolicy{
		PolicyID:          "vote-meeting",
		Name:              "meeting default",
		MajorityThreshold: 0.5,
		MajorityBasis:     entities.BasisExpressed,
	})
	module.Store.SetVotePolicy(entities.VotePolicy{
		PolicyID:          "vote-tenant",
		Name:              "tenant default",
		MajorityThreshold: 0.5,
		MajorityBasis:     entities.BasisExpressed,
	})
	module.Store.SetQuorumPolicy(entities.QuorumPolicy{PolicyID: "quorum-tenant", Name: "tenant quorum", Threshold: 0.5})
	module.Store.SetTenantDefaults("vote-tenant", "quorum-tenant")
	module.Store.SetMeeting(ports.MeetingProjection{
		MeetingID:     "meeting-1",
		Status:        "live",
		PresidentName: "A. Durand",
		VotePolicyID:  "vote-meeting",
	})
	recordAttendance(t, module, "alice", "present", 1)

	// The motion names no policy: the vote policy comes from the meeting, the
	// quorum policy falls through to the tenant default.
	motionID := createMotion(t, module, "Cascade check", 1)
	opened, err := module.Handler.OpenMotionHandler(context.Background(), motionID)
	if err != nil {
		t.Fatalf("open motion: %v", err)
	}
	if opened.Motion.VotePolicyID != "vote-meeting" {
		t.Fatalf("expected meeting vote policy, got %q", opened.Motion.VotePolicyID)
	}
	if opened.Motion.QuorumPolicyID != "quorum-tenant" {
		t.Fatalf("expected tenant quorum policy, got %q", opened.Motion.QuorumPolicyID)
	}
}

func TestNextMotionBlockers(t *testing.T) {
	module := newLiveMeetingModule(t)
	recordAttendance(t, module, "alice", "present", 1)

	first := createMotion(t, module, "First item", 1)
	second := createMotion(t, module, "Second item", 2)
	if _, err := module.Handler.OpenMotionHandler(context.Background(), first); err != nil {
		t.Fatalf("open motion: %v", err)
	}

	report, err := module.Handler.NextMotionHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("next motion: %v", err)
	}
	if report.CanOpen {
		t.Fatalf("an open motion must block the next one: %+v", report)
	}
	if report.NextMotionID != second {
		t.Fatalf("expected %s as next motion, got %q", second, report.NextMotionID)
	}

	if _, err := module.Handler.CloseMotionHandler(context.Background(), first); err != nil {
		t.Fatalf("close motion: %v", err)
	}
	report, err = module.Handler.NextMotionHandler(context.Background(), "meeting-1")
	if err != nil {
		t.Fatalf("next motion: %v", err)
	}
	if !report.CanOpen || len(report.Blockers) != 0 {
		t.Fatalf("expected clear path after close, got %+v", report)
	}
}

func TestVotingBlockedOnValidatedMeeting(t *testing.T) {
	module := motionvoting.NewInMemoryModule(nil, nil)
	validatedAt := time.Now().UTC()
	module.Store.SetMeeting(ports.MeetingProjection{
		MeetingID:     "meeting-1",
		Status:        "validated",
		PresidentName: "A. Durand",
		ValidatedAt:   &validatedAt,
	})

	_, err := module.Handler.CreateMotionHandler(context.Background(), httptransport.CreateMotionRequest{
		MeetingID: "meeting-1",
		Title:     "Too late",
	})
	if !errors.Is(err, domainerrors.ErrMeetingNotVotable) {
		t.Fatalf("expected ErrMeetingNotVotable, got %v", err)
	}
	_, err = module.Handler.RecordAttendanceHandler(context.Background(), "meeting-1", httptransport.RecordAttendanceRequest{
		MemberID: "alice",
		Mode:     "present",
	})
	if !errors.Is(err, domainerrors.ErrMeetingNotVotable) {
		t.Fatalf("expected ErrMeetingNotVotable for attendance, got %v", err)
	}
}
