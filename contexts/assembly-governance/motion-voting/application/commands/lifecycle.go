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

// statuses in which a meeting no longer permits voting operations.
var nonVotableMeetingStatuses = map[string]bool{
	"validated": true,
	"archived":  true,
}

type CreateMotionCommand struct {
	MeetingID      string
	Title          string
	Description    string
	Position       int
	VotePolicyID   string
	QuorumPolicyID string
}

// IssuedToken pairs a member with the raw single-use credential minted for
// them at motion open. The raw value is returned once and only its hash is
// stored.
type IssuedToken struct {
	MemberID string
	Token    string
}

type OpenMotionResult struct {
	Motion entities.Motion
	Tokens []IssuedToken
}

type CloseMotionResult struct {
	Motion   entities.Motion
	Tally    entities.Tally
	Decision entities.MotionDecision
	Result   entities.OfficialResult
	Revoked  int
}

// MotionUseCase owns the per-motion lifecycle: not_opened -> open -> closed,
// with single-open-motion enforcement, policy cascade resolution, token
// issuance/revocation, and the official-result freeze at close.
type MotionUseCase struct {
	Motions          ports.MotionRepository
	Ballots          ports.BallotRepository
	Attendance       ports.AttendanceRepository
	Proxies          ports.ProxyRepository
	Tokens           ports.VoteTokenStore
	Closes           ports.CloseCommitter
	Meetings         ports.MeetingReader
	Policies         ports.PolicyProvider
	ManualTallies    ports.ManualTallyStore
	Audit            ports.AuditLog
	Broadcast        ports.Broadcaster
	Notify           ports.Notifier
	Clock            ports.Clock
	IDGen            ports.IDGenerator
	MinOpenDuration  time.Duration
	MinParticipation float64
	TokenTTL         time.Duration
	QuorumThreshold  float64
	Logger           *slog.Logger
}

func (uc MotionUseCase) Create(ctx context.Context, cmd CreateMotionCommand) (entities.Motion, error) {
	meetingID := strings.TrimSpace(cmd.MeetingID)
	title := strings.TrimSpace(cmd.Title)
	if meetingID == "" || title == "" ||
		len(title) > entities.MaxMotionTitleLength ||
		len(cmd.Description) > entities.MaxMotionDescriptionLength {
		return entities.Motion{}, domainerrors.ErrInvalidMotionInput
	}

	meeting, err := uc.Meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		return entities.Motion{}, err
	}
	if nonVotableMeetingStatuses[meeting.Status] {
		return entities.Motion{}, domainerrors.ErrMeetingNotVotable
	}

	now := uc.now()
	motionID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return entities.Motion{}, err
	}
	motion := entities.Motion{
		MotionID:       motionID,
		MeetingID:      meetingID,
		Title:          title,
		Description:    strings.TrimSpace(cmd.Description),
		Position:       cmd.Position,
		VotePolicyID:   strings.TrimSpace(cmd.VotePolicyID),
		QuorumPolicyID: strings.TrimSpace(cmd.QuorumPolicyID),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.Motions.SaveMotion(ctx, motion); err != nil {
		return entities.Motion{}, err
	}
	recordAudit(ctx, uc.Audit, application.ResolveLogger(uc.Logger), "motion.created", motionID, map[string]any{
		"meeting_id": meetingID,
		"title":      title,
	})
	return motion, nil
}

// Open transitions a motion to the open state. A motion can be opened once;
// at most one motion per meeting is open at any time, enforced both here and
// by the storage constraint behind MarkOpened.
func (uc MotionUseCase) Open(ctx context.Context, motionID string) (OpenMotionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	motionID = strings.TrimSpace(motionID)
	if motionID == "" {
		return OpenMotionResult{}, domainerrors.ErrInvalidMotionInput
	}

	motion, err := uc.Motions.GetMotion(ctx, motionID)
	if err != nil {
		return OpenMotionResult{}, err
	}
	if motion.WasOpened() {
		return OpenMotionResult{}, domainerrors.ErrMotionAlreadyOpened
	}

	meeting, err := uc.Meetings.GetMeeting(ctx, motion.MeetingID)
	if err != nil {
		return OpenMotionResult{}, err
	}
	if nonVotableMeetingStatuses[meeting.Status] {
		return OpenMotionResult{}, domainerrors.ErrMeetingNotVotable
	}

	if _, found, err := uc.Motions.GetOpenMotion(ctx, motion.MeetingID); err != nil {
		return OpenMotionResult{}, err
	} else if found {
		return OpenMotionResult{}, domainerrors.ErrAnotherMotionOpen
	}

	tenantVote, tenantQuorum, err := uc.Policies.TenantDefaults(ctx)
	if err != nil {
		return OpenMotionResult{}, err
	}
	motion.VotePolicyID = services.ResolvePolicyID(motion.VotePolicyID, meeting.VotePolicyID, tenantVote)
	motion.QuorumPolicyID = services.ResolvePolicyID(motion.QuorumPolicyID, meeting.QuorumPolicyID, tenantQuorum)

	now := uc.now()
	openedAt := now
	motion.OpenedAt = &openedAt
	motion.UpdatedAt = now
	if err := uc.Motions.MarkOpened(ctx, motion); err != nil {
		return OpenMotionResult{}, err
	}

	tokens, err := uc.issueTokens(ctx, motion, now)
	if err != nil {
		return OpenMotionResult{}, err
	}

	recordAudit(ctx, uc.Audit, logger, "motion.opened", motionID, map[string]any{
		"meeting_id":       motion.MeetingID,
		"vote_policy_id":   motion.VotePolicyID,
		"quorum_policy_id": motion.QuorumPolicyID,
		"tokens_issued":    len(tokens),
	})
	if uc.Broadcast != nil {
		uc.Broadcast.MotionOpened(ctx, motion.MeetingID, motionID)
	}

	logger.Info("motion opened",
		"event", "voting_motion_opened",
		"module", "assembly-governance/motion-voting",
		"layer", "application",
		"motion_id", motionID,
		"meeting_id", motion.MeetingID,
		"vote_policy_id", motion.VotePolicyID,
		"quorum_policy_id", motion.QuorumPolicyID,
		"tokens_issued", len(tokens),
	)
	return OpenMotionResult{Motion: motion, Tokens: tokens}, nil
}

// Close finishes voting on an open motion: computes the tally, applies the
// resolved policies for the decision, revokes outstanding tokens so late
// electronic casts are impossible, and freezes the official result.
func (uc MotionUseCase) Close(ctx context.Context, motionID string) (CloseMotionResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	motionID = strings.TrimSpace(motionID)
	if motionID == "" {
		return CloseMotionResult{}, domainerrors.ErrInvalidMotionInput
	}

	motion, err := uc.Motions.GetMotion(ctx, motionID)
	if err != nil {
		return CloseMotionResult{}, err
	}
	if motion.IsClosed() {
		return CloseMotionResult{}, domainerrors.ErrMotionAlreadyClosed
	}
	if !motion.IsOpen() {
		return CloseMotionResult{}, domainerrors.ErrMotionNotOpen
	}

	now := uc.now()
	blockers, err := uc.CloseBlockers(ctx, motion, now)
	if err != nil {
		return CloseMotionResult{}, err
	}
	if len(blockers) > 0 {
		return CloseMotionResult{}, fmt.Errorf("%w: %s",
			domainerrors.ErrCloseBlocked, strings.Join(blockers, "; "))
	}

	ballots, err := uc.Ballots.ListBallotsByMotion(ctx, motionID)
	if err != nil {
		return CloseMotionResult{}, err
	}
	var tally entities.Tally
	for _, ballot := range ballots {
		tally.Add(ballot.Value, ballot.Weight)
	}

	eligibility, err := uc.eligibility(ctx, motion)
	if err != nil {
		return CloseMotionResult{}, err
	}
	votePolicy := uc.resolveVotePolicy(ctx, motion.VotePolicyID)
	decision := services.ApplyDecision(tally, votePolicy, eligibility.QuorumOk)

	result := entities.OfficialResult{
		MotionID:       motionID,
		Source:         entities.TallySourceElectronic,
		Tally:          tally,
		Decision:       decision,
		ConsolidatedAt: now,
	}
	if len(ballots) == 0 {
		if manual, found, err := uc.ManualTallies.GetManualTally(ctx, motionID); err != nil {
			return CloseMotionResult{}, err
		} else if found && manual.Consistent() {
			result.Source = entities.TallySourceManual
			result.Tally = manual.AsTally()
			result.Decision = services.ApplyDecision(result.Tally, votePolicy, eligibility.QuorumOk)
			decision = result.Decision
		} else {
			result.Source = entities.TallySourceNone
		}
	}
	closedAt := now
	motion.ClosedAt = &closedAt
	motion.Decision = decision
	motion.UpdatedAt = now
	// Revocation, result freeze, and the close mark commit together; a failed
	// close leaves the motion open with its tokens intact.
	revoked, err := uc.Closes.CommitClose(ctx, ports.CloseWrite{
		Motion:    motion,
		Result:    result,
		RevokedAt: now,
	})
	if err != nil {
		return CloseMotionResult{}, err
	}

	recordAudit(ctx, uc.Audit, logger, "motion.closed", motionID, map[string]any{
		"meeting_id":     motion.MeetingID,
		"decision":       string(decision),
		"ballots_total":  len(ballots),
		"tokens_revoked": revoked,
		"tally_source":   string(result.Source),
	})
	if uc.Broadcast != nil {
		uc.Broadcast.MotionClosed(ctx, motion.MeetingID, motionID, string(decision))
	}

	logger.Info("motion closed",
		"event", "voting_motion_closed",
		"module", "assembly-governance/motion-voting",
		"layer", "application",
		"motion_id", motionID,
		"meeting_id", motion.MeetingID,
		"decision", string(decision),
		"ballots_total", len(ballots),
		"tokens_revoked", revoked,
	)
	return CloseMotionResult{
		Motion:   motion,
		Tally:    tally,
		Decision: decision,
		Result:   result,
		Revoked:  revoked,
	}, nil
}

// CloseBlockers evaluates the configured minimum-open-duration and minimum
// participation policies. Both must be absent for a close to proceed.
func (uc MotionUseCase) CloseBlockers(
	ctx context.Context,
	motion entities.Motion,
	now time.Time,
) ([]string, error) {
	blockers := make([]string, 0, 2)
	if uc.MinOpenDuration > 0 && motion.OpenAge(now) < uc.MinOpenDuration {
		blockers = append(blockers, fmt.Sprintf(
			"motion has been open %s, minimum is %s",
			motion.OpenAge(now).Truncate(time.Second), uc.MinOpenDuration))
	}
	if uc.MinParticipation > 0 {
		ballots, err := uc.Ballots.ListBallotsByMotion(ctx, motion.MotionID)
		if err != nil {
			return nil, err
		}
		eligibility, err := uc.eligibility(ctx, motion)
		if err != nil {
			return nil, err
		}
		grants, err := uc.Proxies.ListGrantsByMeeting(ctx, motion.MeetingID)
		if err != nil {
			return nil, err
		}
		coverage := services.Coverage(grants, motion.MotionID)
		potential := eligibility.PresentCount + len(coverage)
		if potential > 0 {
			ratio := float64(len(ballots)) / float64(potential)
			if ratio < uc.MinParticipation {
				blockers = append(blockers, fmt.Sprintf(
					"participation %.2f below minimum %.2f", ratio, uc.MinParticipation))
			}
		}
	}
	return blockers, nil
}

func (uc MotionUseCase) eligibility(ctx context.Context, motion entities.Motion) (entities.Eligibility, error) {
	records, err := uc.Attendance.ListAttendanceByMeeting(ctx, motion.MeetingID)
	if err != nil {
		return entities.Eligibility{}, err
	}
	roster, err := uc.Attendance.ListActiveMemberIDs(ctx)
	if err != nil {
		return entities.Eligibility{}, err
	}
	threshold := uc.QuorumThreshold
	if policy, found, err := uc.Policies.GetQuorumPolicy(ctx, motion.QuorumPolicyID); err != nil {
		return entities.Eligibility{}, err
	} else if found {
		threshold = policy.Threshold
	}
	return services.ComputeEligibility(records, roster, threshold), nil
}

// resolveVotePolicy falls back to a plain expressed-majority policy when the
// configured policy id cannot be resolved.
func (uc MotionUseCase) resolveVotePolicy(ctx context.Context, policyID string) entities.VotePolicy {
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

// issueTokens mints one single-use credential per present member. Raw values
// are returned to the caller for distribution; only hashes are stored.
func (uc MotionUseCase) issueTokens(
	ctx context.Context,
	motion entities.Motion,
	now time.Time,
) ([]IssuedToken, error) {
	records, err := uc.Attendance.ListAttendanceByMeeting(ctx, motion.MeetingID)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if uc.TokenTTL > 0 {
		expiry := now.Add(uc.TokenTTL)
		expiresAt = &expiry
	}

	issued := make([]IssuedToken, 0, len(records))
	for _, record := range records {
		if !record.Mode.CountsPresent() {
			continue
		}
		raw, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return nil, err
		}
		token := entities.VoteToken{
			TokenHash: hashToken(raw),
			MotionID:  motion.MotionID,
			MemberID:  strings.TrimSpace(record.MemberID),
			Status:    entities.TokenStatusActive,
			IssuedAt:  now,
			ExpiresAt: expiresAt,
		}
		if err := uc.Tokens.IssueToken(ctx, token); err != nil {
			return nil, err
		}
		issued = append(issued, IssuedToken{MemberID: token.MemberID, Token: raw})
	}
	return issued, nil
}

func (uc MotionUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
