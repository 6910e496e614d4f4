package commands

import (
	"context"
	"strings"

	application "agora/contexts/assembly-governance/motion-voting/application"
	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	domainerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
)

type SetManualTallyCommand struct {
	MotionID      string
	Total         int
	For           int
	Against       int
	Abstain       int
	Justification string
	RecordedBy    string
}

// SetManualTally records a degraded-mode count when electronic tallying is
// impossible. The counts must be strictly consistent and a justification is
// mandatory since this path bypasses the electronic audit trail. A motion
// that already holds electronic ballots rejects the manual count: manual data
// may only substitute for missing electronic data, never overwrite it.
func (uc MotionUseCase) SetManualTally(ctx context.Context, cmd SetManualTallyCommand) (entities.ManualTally, error) {
	logger := application.ResolveLogger(uc.Logger)

	motionID := strings.TrimSpace(cmd.MotionID)
	if motionID == "" {
		return entities.ManualTally{}, domainerrors.ErrInvalidMotionInput
	}
	if strings.TrimSpace(cmd.Justification) == "" {
		return entities.ManualTally{}, domainerrors.ErrJustificationRequired
	}
	tally := entities.ManualTally{
		MotionID:      motionID,
		Total:         cmd.Total,
		For:           cmd.For,
		Against:       cmd.Against,
		Abstain:       cmd.Abstain,
		Justification: strings.TrimSpace(cmd.Justification),
		RecordedBy:    strings.TrimSpace(cmd.RecordedBy),
	}
	if !tally.Consistent() {
		logger.Warn("manual tally rejected",
			"event", "voting_manual_tally_inconsistent",
			"module", "assembly-governance/motion-voting",
			"layer", "application",
			"motion_id", motionID,
			"total", cmd.Total,
			"for", cmd.For,
			"against", cmd.Against,
			"abstain", cmd.Abstain,
		)
		return entities.ManualTally{}, domainerrors.ErrManualTallyInconsistent
	}

	motion, err := uc.Motions.GetMotion(ctx, motionID)
	if err != nil {
		return entities.ManualTally{}, err
	}
	ballots, err := uc.Ballots.ListBallotsByMotion(ctx, motionID)
	if err != nil {
		return entities.ManualTally{}, err
	}
	if len(ballots) > 0 {
		return entities.ManualTally{}, domainerrors.ErrElectronicBallotsPresent
	}

	tally.RecordedAt = uc.now()
	if err := uc.ManualTallies.SaveManualTally(ctx, tally); err != nil {
		return entities.ManualTally{}, err
	}

	recordAudit(ctx, uc.Audit, logger, "motion.manual_tally_recorded", motionID, map[string]any{
		"meeting_id":    motion.MeetingID,
		"total":         tally.Total,
		"for":           tally.For,
		"against":       tally.Against,
		"abstain":       tally.Abstain,
		"recorded_by":   tally.RecordedBy,
		"justification": tally.Justification,
	})
	if uc.Notify != nil {
		if err := uc.Notify.DegradedTallyUsed(ctx, motion.MeetingID, motionID, tally.RecordedBy, tally.Justification); err != nil {
			logger.Warn("degraded tally notification failed",
				"event", "voting_manual_tally_notify_failed",
				"module", "assembly-governance/motion-voting",
				"layer", "application",
				"motion_id", motionID,
				"error", err.Error(),
			)
		}
	}
	if uc.Broadcast != nil {
		uc.Broadcast.ManualTallyRecorded(ctx, motion.MeetingID, motionID)
	}

	logger.Info("manual tally recorded",
		"event", "voting_manual_tally_recorded",
		"module", "assembly-governance/motion-voting",
		"layer", "application",
		"motion_id", motionID,
		"meeting_id", motion.MeetingID,
		"total", tally.Total,
		"recorded_by", tally.RecordedBy,
	)
	return tally, nil
}
