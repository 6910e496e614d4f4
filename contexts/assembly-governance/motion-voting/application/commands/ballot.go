package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/motion-voting/application"
	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	domainerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	"agora/contexts/assembly-governance/motion-voting/domain/services"
	"agora/contexts/assembly-governance/motion-voting/ports"
)

// CastBallotCommand is the write-model input for ballot casting. Token is the
// raw single-use credential when the cast is electronic; MemberID may be left
// empty in that case and is taken from the token binding.
type CastBallotCommand struct {
	MotionID            string
	MemberID            string
	Value               string
	Source              string
	Token               string
	ProxySourceMemberID string
	IdempotencyKey      string
}

// CastBallotResult returns the stored ballot plus a replay marker the
// transport layer maps to API semantics.
type CastBallotResult struct {
	Ballot   entities.Ballot
	Replayed bool
}

// BallotUseCase orchestrates ballot casting: at-most-once per (motion, member),
// idempotency-key replay, token binding/consumption, and proxy weight
// resolution.
type BallotUseCase struct {
	Motions        ports.MotionRepository
	Ballots        ports.BallotRepository
	Attendance     ports.AttendanceRepository
	Proxies        ports.ProxyRepository
	Tokens         ports.VoteTokenStore
	Casts          ports.CastCommitter
	Meetings       ports.MeetingReader
	Idempotency    ports.IdempotencyStore
	Audit          ports.AuditLog
	Broadcast      ports.Broadcaster
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Cast validates, resolves weight, and persists one ballot. All input checks
// run before any repository access so infrastructure failures cannot mask
// validation failures.
func (uc BallotUseCase) Cast(ctx context.Context, cmd CastBallotCommand) (CastBallotResult, error) {
	logger := application.ResolveLogger(uc.Logger)

	motionID := strings.TrimSpace(cmd.MotionID)
	memberID := strings.TrimSpace(cmd.MemberID)
	token := strings.TrimSpace(cmd.Token)
	if motionID == "" || (memberID == "" && token == "") {
		return CastBallotResult{}, domainerrors.ErrInvalidMotionInput
	}
	value, ok := entities.ParseBallotValue(cmd.Value)
	if !ok {
		logger.Warn("ballot value rejected",
			"event", "voting_cast_invalid_value",
			"module", "assembly-governance/motion-voting",
			"layer", "application",
			"motion_id", motionID,
			"member_id", memberID,
		)
		return CastBallotResult{}, domainerrors.ErrInvalidVote
	}
	source := entities.BallotSource(strings.ToLower(strings.TrimSpace(cmd.Source)))
	if token != "" {
		source = entities.SourceToken
	}
	if !source.Valid() {
		return CastBallotResult{}, domainerrors.ErrInvalidBallotSource
	}

	now := uc.now()
	requestHash := hashCastCommand(cmd)
	idempotencyKey := strings.TrimSpace(cmd.IdempotencyKey)
	if idempotencyKey != "" {
		record, found, err := uc.Idempotency.Get(ctx, idempotencyKey, now)
		if err != nil {
			return CastBallotResult{}, err
		}
		if found {
			if record.RequestHash != requestHash {
				return CastBallotResult{}, domainerrors.ErrIdempotencyConflict
			}
			ballot, err := uc.Ballots.GetBallot(ctx, record.BallotID)
			if err != nil {
				return CastBallotResult{}, err
			}
			logger.Info("ballot cast replayed",
				"event", "voting_cast_replayed",
				"module", "assembly-governance/motion-voting",
				"layer", "application",
				"ballot_id", ballot.BallotID,
				"motion_id", motionID,
			)
			return CastBallotResult{Ballot: ballot, Replayed: true}, nil
		}
	}

	motion, err := uc.Motions.GetMotion(ctx, motionID)
	if err != nil {
		return CastBallotResult{}, err
	}
	if !motion.IsOpen() {
		return CastBallotResult{}, domainerrors.ErrMotionNotOpen
	}

	var consumedTokenHash string
	if token != "" {
		tokenHash := hashToken(token)
		bound, err := uc.Tokens.GetToken(ctx, tokenHash)
		if err != nil {
			return CastBallotResult{}, err
		}
		// Binding check: motion always, member only when the request names one.
		if bound.MotionID != motionID || (memberID != "" && bound.MemberID != memberID) {
			return CastBallotResult{}, domainerrors.ErrTokenMismatch
		}
		if bound.Status == entities.TokenStatusUsed {
			return CastBallotResult{}, domainerrors.ErrTokenConsumed
		}
		if !bound.Usable(now) {
			return CastBallotResult{}, domainerrors.ErrTokenRevoked
		}
		if memberID == "" {
			memberID = bound.MemberID
		}
		consumedTokenHash = tokenHash
	}

	if existing, found, err := uc.Ballots.GetBallotByCaster(ctx, motionID, memberID); err != nil {
		return CastBallotResult{}, err
	} else if found {
		logger.Warn("duplicate ballot rejected",
			"event", "voting_cast_duplicate",
			"module", "assembly-governance/motion-voting",
			"layer", "application",
			"motion_id", motionID,
			"member_id", memberID,
			"existing_ballot_id", existing.BallotID,
		)
		return CastBallotResult{}, domainerrors.ErrDuplicateBallot
	}

	records, err := uc.Attendance.ListAttendanceByMeeting(ctx, motion.MeetingID)
	if err != nil {
		return CastBallotResult{}, err
	}
	weight, err := uc.resolveWeight(ctx, motion, memberID, source, records)
	if err != nil {
		return CastBallotResult{}, err
	}

	ballotID, err := uc.IDGen.NewID(ctx)
	if err != nil {
		return CastBallotResult{}, err
	}
	ballot := entities.Ballot{
		BallotID:            ballotID,
		MotionID:            motionID,
		MemberID:            memberID,
		Value:               value,
		Weight:              weight,
		Source:              source,
		IsProxyVote:         source == entities.SourceProxy,
		ProxySourceMemberID: strings.TrimSpace(cmd.ProxySourceMemberID),
		CastAt:              now,
	}
	// One transaction: a duplicate insert must not leave the token spent.
	if err := uc.Casts.CommitCast(ctx, ports.CastWrite{
		Ballot:    ballot,
		TokenHash: consumedTokenHash,
		UsedAt:    now,
	}); err != nil {
		return CastBallotResult{}, err
	}
	if idempotencyKey != "" {
		if err := uc.Idempotency.Put(ctx, ports.IdempotencyRecord{
			Key:         idempotencyKey,
			RequestHash: requestHash,
			BallotID:    ballot.BallotID,
			ExpiresAt:   now.Add(uc.resolveIdempotencyTTL()),
		}); err != nil {
			return CastBallotResult{}, err
		}
	}

	recordAudit(ctx, uc.Audit, logger, "ballot.cast", ballot.BallotID, map[string]any{
		"motion_id": motionID,
		"member_id": memberID,
		"value":     string(value),
		"source":    string(source),
		"weight":    weight,
	})
	if uc.Broadcast != nil {
		uc.Broadcast.MotionUpdated(ctx, motion.MeetingID, motionID)
	}

	logger.Info("ballot cast",
		"event", "voting_cast_recorded",
		"module", "assembly-governance/motion-voting",
		"layer", "application",
		"ballot_id", ballot.BallotID,
		"motion_id", motionID,
		"member_id", memberID,
		"value", string(value),
		"source", string(source),
		"weight", weight,
	)
	return CastBallotResult{Ballot: ballot}, nil
}

// resolveWeight derives the caster's voting power from attendance, combining
// covered proxy givers' powers for proxy casts. Non-manual casts require the
// caster to count as present.
func (uc BallotUseCase) resolveWeight(
	ctx context.Context,
	motion entities.Motion,
	memberID string,
	source entities.BallotSource,
	records []entities.AttendanceRecord,
) (float64, error) {
	var own float64
	present := false
	for _, record := range records {
		if strings.TrimSpace(record.MemberID) == memberID {
			own = record.VotingPower
			present = record.Mode.CountsPresent()
			break
		}
	}
	// Manual entries are operator-recorded and bypass the presence gate;
	// anomaly detection reports any ineligible rows they produce.
	if !present && source != entities.SourceManual {
		return 0, domainerrors.ErrIneligibleVoter
	}
	if source != entities.SourceProxy {
		return own, nil
	}

	grants, err := uc.Proxies.ListGrantsByMeeting(ctx, motion.MeetingID)
	if err != nil {
		return 0, err
	}
	coverage := services.Coverage(grants, motion.MotionID)
	return services.CombinedWeight(memberID, records, coverage), nil
}

func (uc BallotUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}

func (uc BallotUseCase) resolveIdempotencyTTL() time.Duration {
	if uc.IdempotencyTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return uc.IdempotencyTTL
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}

func hashCastCommand(cmd CastBallotCommand) string {
	payload := map[string]string{
		"motion_id": strings.TrimSpace(cmd.MotionID),
		"member_id": strings.TrimSpace(cmd.MemberID),
		"value":     strings.ToLower(strings.TrimSpace(cmd.Value)),
		"source":    strings.ToLower(strings.TrimSpace(cmd.Source)),
		"token":     hashTokenIfSet(cmd.Token),
		"op":        "cast_ballot",
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashTokenIfSet(token string) string {
	if strings.TrimSpace(token) == "" {
		return ""
	}
	return hashToken(token)
}

// recordAudit is best-effort: audit failure surfaces as a warning and never
// rolls back the business operation.
func recordAudit(
	ctx context.Context,
	audit ports.AuditLog,
	logger *slog.Logger,
	eventName string,
	resourceID string,
	data map[string]any,
) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, eventName, resourceID, data); err != nil {
		logger.Warn("audit record failed",
			"event", "voting_audit_record_failed",
			"module", "assembly-governance/motion-voting",
			"layer", "application",
			"audit_event", eventName,
			"resource_id", resourceID,
			"error", err.Error(),
		)
	}
}
