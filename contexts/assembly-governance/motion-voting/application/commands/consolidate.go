package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/motion-voting/application"
	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	domainerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	"agora/contexts/assembly-governance/motion-voting/domain/services"
	"agora/contexts/assembly-governance/motion-voting/ports"
)

type ConsolidationReport struct {
	MeetingID      string
	Consolidated   int
	Skipped        int
	NoResult       []string
	SourceByMotion map[string]entities.TallySource
}

type ReadinessReport struct {
	MeetingID string
	Ready     bool
	Issues    []string
}

// ConsolidationUseCase recomputes and freezes official results for every
// motion of a closed meeting. Electronic ballots are authoritative whenever
// any exist; an internally consistent manual tally is the fallback; anything
// else is reported as having no exploitable result, never fabricated.
type ConsolidationUseCase struct {
	Motions         ports.MotionRepository
	Ballots         ports.BallotRepository
	Attendance      ports.AttendanceRepository
	ManualTallies   ports.ManualTallyStore
	Results         ports.OfficialResultStore
	Meetings        ports.MeetingReader
	Policies        ports.PolicyProvider
	Audit           ports.AuditLog
	Clock           ports.Clock
	QuorumThreshold float64
	Logger          *slog.Logger
}

// Run consolidates every motion under the meeting. Re-running with unchanged
// ballots recomputes identical rows; results frozen by meeting validation are
// never overwritten.
func (uc ConsolidationUseCase) Run(ctx context.Context, meetingID string) (ConsolidationReport, error) {
	logger := application.ResolveLogger(uc.Logger)
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return ConsolidationReport{}, domainerrors.ErrMeetingNotFound
	}

	meeting, err := uc.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return ConsolidationReport{}, err
	}
	motions, err := uc.Motions.ListMotionsByMeeting(ctx, meetingID)
	if err != nil {
		return ConsolidationReport{}, err
	}
	eligibility, err := uc.eligibility(ctx, meetingID)
	if err != nil {
		return ConsolidationReport{}, err
	}

	now := uc.now()
	report := ConsolidationReport{
		MeetingID:      meetingID,
		SourceByMotion: make(map[string]entities.TallySource, len(motions)),
	}
	for _, motion := range motions {
		result, exploitable, err := uc.resolveResult(ctx, motion, eligibility, now)
		if err != nil {
			return ConsolidationReport{}, err
		}
		report.SourceByMotion[motion.MotionID] = result.Source
		if !exploitable {
			report.NoResult = append(report.NoResult, motion.MotionID)
			continue
		}
		if meeting.ValidatedAt != nil {
			if _, found, err := uc.Results.GetOfficialResult(ctx, motion.MotionID); err != nil {
				return ConsolidationReport{}, err
			} else if found {
				// Validation froze this result; re-consolidation must not touch it.
				report.Skipped++
				continue
			}
		}
		if err := uc.Results.SaveOfficialResult(ctx, result); err != nil {
			return ConsolidationReport{}, err
		}
		report.Consolidated++
	}

	recordAudit(ctx, uc.Audit, logger, "meeting.consolidated", meetingID, map[string]any{
		"consolidated": report.Consolidated,
		"skipped":      report.Skipped,
		"no_result":    len(report.NoResult),
	})
	logger.Info("meeting consolidated",
		"event", "voting_meeting_consolidated",
		"module", "assembly-governance/motion-voting",
		"layer", "application",
		"meeting_id", meetingID,
		"consolidated", report.Consolidated,
		"skipped", report.Skipped,
		"no_result", len(report.NoResult),
	)
	return report, nil
}

// ReadyCheck evaluates whether a meeting's data is sound enough to
// consolidate and validate.
func (uc ConsolidationUseCase) ReadyCheck(ctx context.Context, meetingID string) (ReadinessReport, error) {
	meetingID = strings.TrimSpace(meetingID)
	if meetingID == "" {
		return ReadinessReport{}, domainerrors.ErrMeetingNotFound
	}

	meeting, err := uc.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return ReadinessReport{}, err
	}
	report := ReadinessReport{MeetingID: meetingID}
	if strings.TrimSpace(meeting.PresidentName) == "" {
		report.Issues = append(report.Issues, "president name is missing")
	}

	eligibility, err := uc.eligibility(ctx, meetingID)
	if err != nil {
		return ReadinessReport{}, err
	}
	// An eligible set reconstructed from the full roster is never trusted for
	// an official consolidation.
	if eligibility.Fallback {
		report.Issues = append(report.Issues, "eligible voters fell back to the full member roster")
	}
	eligible := make(map[string]bool, len(eligibility.PresentMemberIDs))
	for _, memberID := range eligibility.PresentMemberIDs {
		eligible[memberID] = true
	}

	motions, err := uc.Motions.ListMotionsByMeeting(ctx, meetingID)
	if err != nil {
		return ReadinessReport{}, err
	}
	for _, motion := range motions {
		if motion.IsOpen() {
			report.Issues = append(report.Issues, fmt.Sprintf("motion %s is still open", motion.MotionID))
			continue
		}
		ballots, err := uc.Ballots.ListBallotsByMotion(ctx, motion.MotionID)
		if err != nil {
			return ReadinessReport{}, err
		}
		for _, ballot := range ballots {
			if ballot.Source != entities.SourceManual && !eligible[ballot.MemberID] {
				report.Issues = append(report.Issues, fmt.Sprintf(
					"motion %s holds a ballot from ineligible member %s", motion.MotionID, ballot.MemberID))
			}
		}
		if len(ballots) > 0 {
			continue
		}
		manual, found, err := uc.ManualTallies.GetManualTally(ctx, motion.MotionID)
		if err != nil {
			return ReadinessReport{}, err
		}
		if found && !manual.Consistent() {
			report.Issues = append(report.Issues, fmt.Sprintf(
				"motion %s has an inconsistent manual tally", motion.MotionID))
			continue
		}
		if !found && motion.WasOpened() {
			report.Issues = append(report.Issues, fmt.Sprintf(
				"motion %s has no exploitable result", motion.MotionID))
		}
	}

	report.Ready = len(report.Issues) == 0
	return report, nil
}

// resolveResult picks the authoritative tally source for one motion.
func (uc ConsolidationUseCase) resolveResult(
	ctx context.Context,
	motion entities.Motion,
	eligibility entities.Eligibility,
	now time.Time,
) (entities.OfficialResult, bool, error) {
	result := entities.OfficialResult{
		MotionID:       motion.MotionID,
		ConsolidatedAt: now,
	}

	ballots, err := uc.Ballots.ListBallotsByMotion(ctx, motion.MotionID)
	if err != nil {
		return entities.OfficialResult{}, false, err
	}
	votePolicy := uc.resolveVotePolicy(ctx, motion.VotePolicyID)
	quorumOk := eligibility.QuorumOk && !eligibility.Fallback

	if len(ballots) > 0 {
		var tally entities.Tally
		for _, ballot := range ballots {
			tally.Add(ballot.Value, ballot.Weight)
		}
		result.Source = entities.TallySourceElectronic
		result.Tally = tally
		result.Decision = uc.decisionFor(motion, tally, votePolicy, quorumOk)
		return result, true, nil
	}

	manual, found, err := uc.ManualTallies.GetManualTally(ctx, motion.MotionID)
	if err != nil {
		return entities.OfficialResult{}, false, err
	}
	if found && manual.Consistent() {
		result.Source = entities.TallySourceManual
		result.Tally = manual.AsTally()
		result.Decision = uc.decisionFor(motion, result.Tally, votePolicy, quorumOk)
		return result, true, nil
	}

	result.Source = entities.TallySourceNone
	return result, false, nil
}

// decisionFor keeps the decision recorded at close when present, so
// consolidation is deterministic against later attendance edits.
func (uc ConsolidationUseCase) decisionFor(
	motion entities.Motion,
	tally entities.Tally,
	policy entities.VotePolicy,
	quorumOk bool,
) entities.MotionDecision {
	if motion.Decision != "" {
		return motion.Decision
	}
	return services.ApplyDecision(tally, policy, quorumOk)
}

func (uc ConsolidationUseCase) resolveVotePolicy(ctx context.Context, policyID string) entities.VotePolicy {
	if strings.TrimSpace(policyID) != "" {
		if policy, found, err := uc.Policies.GetVotePolicy(ctx, policyID); err == nil && found {
			return policy
		}
	}
	return entities.VotePolicy{
		PolicyID:          policyID,
		Name:              "simple-majority",
		MajorityThreshold: 0.5,
		MajorityBasis:     entities.BasisExpressed,
	}
}

func (uc ConsolidationUseCase) eligibility(ctx context.Context, meetingID string) (entities.Eligibility, error) {
	records, err := uc.Attendance.ListAttendanceByMeeting(ctx, meetingID)
	if err != nil {
		return entities.Eligibility{}, err
	}
	roster, err := uc.Attendance.ListActiveMemberIDs(ctx)
	if err != nil {
		return entities.Eligibility{}, err
	}
	return services.ComputeEligibility(records, roster, uc.QuorumThreshold), nil
}

func (uc ConsolidationUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
