package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	domainerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	"agora/contexts/assembly-governance/motion-voting/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the postgres adapter for every storage port of the service.
// All rows are scoped by tenant; the scope is fixed at construction so no
// query can cross tenants.
type Repository struct {
	db       *gorm.DB
	tenantID string
	logger   *slog.Logger
}

func NewRepository(db *gorm.DB, tenantID string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:       db,
		tenantID: strings.TrimSpace(tenantID),
		logger:   logger,
	}
}

func (r *Repository) SaveMotion(ctx context.Context, motion entities.Motion) error {
	row := motionModelFromEntity(motion, r.tenantID)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"title":            row.Title,
			"description":      row.Description,
			"position":         row.Position,
			"vote_policy_id":   row.VotePolicyID,
			"quorum_policy_id": row.QuorumPolicyID,
			"updated_at":       row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("voting_repo_save_motion_failed", create.Error,
			"motion_id", row.ID, "meeting_id", row.MeetingID)
	}
	return nil
}

func (r *Repository) GetMotion(ctx context.Context, motionID string) (entities.Motion, error) {
	var row motionModel
	err := r.tenantScope(ctx).
		Where("id = ?", strings.TrimSpace(motionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Motion{}, domainerrors.ErrMotionNotFound
		}
		return entities.Motion{}, r.logError("voting_repo_get_motion_failed", err,
			"motion_id", strings.TrimSpace(motionID))
	}
	return row.toEntity(), nil
}

func (r *Repository) ListMotionsByMeeting(ctx context.Context, meetingID string) ([]entities.Motion, error) {
	var rows []motionModel
	if err := r.tenantScope(ctx).
		Where("meeting_id = ?", strings.TrimSpace(meetingID)).
		Order("position ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_motions_failed", err,
			"meeting_id", strings.TrimSpace(meetingID))
	}
	items := make([]entities.Motion, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetOpenMotion(ctx context.Context, meetingID string) (entities.Motion, bool, error) {
	var row motionModel
	err := r.tenantScope(ctx).
		Where("meeting_id = ?", strings.TrimSpace(meetingID)).
		Where("opened_at IS NOT NULL AND closed_at IS NULL").
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Motion{}, false, nil
		}
		return entities.Motion{}, false, r.logError("voting_repo_get_open_motion_failed", err,
			"meeting_id", strings.TrimSpace(meetingID))
	}
	return row.toEntity(), true, nil
}

// MarkOpened persists the open transition. A partial unique index on
// (tenant_id, meeting_id) WHERE opened_at IS NOT NULL AND closed_at IS NULL
// makes the single-open-motion invariant hold under concurrency; the loser
// of a race observes the unique violation.
func (r *Repository) MarkOpened(ctx context.Context, motion entities.Motion) error {
	row := motionModelFromEntity(motion, r.tenantID)
	err := r.tenantScope(ctx).
		Model(&motionModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"opened_at":        row.OpenedAt,
			"vote_policy_id":   row.VotePolicyID,
			"quorum_policy_id": row.QuorumPolicyID,
			"updated_at":       row.UpdatedAt,
		}).Error
	if err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrAnotherMotionOpen
		}
		return r.logError("voting_repo_mark_opened_failed", err,
			"motion_id", row.ID, "meeting_id", row.MeetingID)
	}
	return nil
}

func (r *Repository) MarkClosed(ctx context.Context, motion entities.Motion) error {
	row := motionModelFromEntity(motion, r.tenantID)
	err := r.tenantScope(ctx).
		Model(&motionModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"closed_at":  row.ClosedAt,
			"decision":   row.Decision,
			"updated_at": row.UpdatedAt,
		}).Error
	if err != nil {
		return r.logError("voting_repo_mark_closed_failed", err,
			"motion_id", row.ID, "meeting_id", row.MeetingID)
	}
	return nil
}

func (r *Repository) InsertBallot(ctx context.Context, ballot entities.Ballot) error {
	row := ballotModelFromEntity(ballot, r.tenantID)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateBallot
		}
		return r.logError("voting_repo_insert_ballot_failed", err,
			"ballot_id", row.ID, "motion_id", row.MotionID, "member_id", row.MemberID)
	}
	return nil
}

func (r *Repository) GetBallot(ctx context.Context, ballotID string) (entities.Ballot, error) {
	var row ballotModel
	err := r.tenantScope(ctx).
		Where("id = ?", strings.TrimSpace(ballotID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, domainerrors.ErrBallotNotFound
		}
		return entities.Ballot{}, r.logError("voting_repo_get_ballot_failed", err,
			"ballot_id", strings.TrimSpace(ballotID))
	}
	return row.toEntity(), nil
}

func (r *Repository) GetBallotByCaster(
	ctx context.Context,
	motionID string,
	memberID string,
) (entities.Ballot, bool, error) {
	var row ballotModel
	err := r.tenantScope(ctx).
		Where("motion_id = ?", strings.TrimSpace(motionID)).
		Where("member_id = ?", strings.TrimSpace(memberID)).
		Where("quarantined = ?", false).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Ballot{}, false, nil
		}
		return entities.Ballot{}, false, r.logError("voting_repo_get_ballot_by_caster_failed", err,
			"motion_id", strings.TrimSpace(motionID), "member_id", strings.TrimSpace(memberID))
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListBallotsByMotion(ctx context.Context, motionID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.tenantScope(ctx).
		Where("motion_id = ?", strings.TrimSpace(motionID)).
		Where("quarantined = ?", false).
		Order("cast_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_ballots_failed", err,
			"motion_id", strings.TrimSpace(motionID))
	}
	return toBallotEntities(rows), nil
}

// ListAllBallotsByMotion includes quarantined rows, the ones that reached
// storage outside the guarded insert path, so anomaly detection can report
// them instead of silently counting around them.
func (r *Repository) ListAllBallotsByMotion(ctx context.Context, motionID string) ([]entities.Ballot, error) {
	var rows []ballotModel
	if err := r.tenantScope(ctx).
		Where("motion_id = ?", strings.TrimSpace(motionID)).
		Order("cast_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_all_ballots_failed", err,
			"motion_id", strings.TrimSpace(motionID))
	}
	return toBallotEntities(rows), nil
}

func (r *Repository) SaveAttendance(ctx context.Context, record entities.AttendanceRecord) error {
	row := attendanceModel{
		TenantID:    r.tenantID,
		MeetingID:   strings.TrimSpace(record.MeetingID),
		MemberID:    strings.TrimSpace(record.MemberID),
		Mode:        string(record.Mode),
		VotingPower: record.VotingPower,
		UpdatedAt:   record.UpdatedAt.UTC(),
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"}, {Name: "meeting_id"}, {Name: "member_id"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"mode":         row.Mode,
			"voting_power": row.VotingPower,
			"updated_at":   row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("voting_repo_save_attendance_failed", create.Error,
			"meeting_id", row.MeetingID, "member_id", row.MemberID)
	}
	return nil
}

func (r *Repository) ListAttendanceByMeeting(ctx context.Context, meetingID string) ([]entities.AttendanceRecord, error) {
	var rows []attendanceModel
	if err := r.tenantScope(ctx).
		Where("meeting_id = ?", strings.TrimSpace(meetingID)).
		Order("member_id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_attendance_failed", err,
			"meeting_id", strings.TrimSpace(meetingID))
	}
	items := make([]entities.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, entities.AttendanceRecord{
			MeetingID:   row.MeetingID,
			MemberID:    row.MemberID,
			Mode:        entities.AttendanceMode(row.Mode),
			VotingPower: row.VotingPower,
			UpdatedAt:   row.UpdatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) ListActiveMemberIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.tenantScope(ctx).
		Model(&memberModel{}).
		Where("active = ?", true).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, r.logError("voting_repo_list_active_members_failed", err)
	}
	return ids, nil
}

func (r *Repository) SaveGrant(ctx context.Context, grant entities.ProxyGrant) error {
	row := proxyGrantModel{
		ID:               strings.TrimSpace(grant.GrantID),
		TenantID:         r.tenantID,
		MeetingID:        strings.TrimSpace(grant.MeetingID),
		GiverMemberID:    strings.TrimSpace(grant.GiverMemberID),
		ReceiverMemberID: strings.TrimSpace(grant.ReceiverMemberID),
		Scope:            strings.TrimSpace(grant.Scope),
		CreatedAt:        grant.CreatedAt.UTC(),
		UpdatedAt:        grant.UpdatedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"receiver_member_id": row.ReceiverMemberID,
			"updated_at":         row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("voting_repo_save_grant_failed", create.Error,
			"grant_id", row.ID, "meeting_id", row.MeetingID)
	}
	return nil
}

func (r *Repository) GetGrantByGiverScope(
	ctx context.Context,
	meetingID, giverMemberID, scope string,
) (entities.ProxyGrant, bool, error) {
	var row proxyGrantModel
	err := r.tenantScope(ctx).
		Where("meeting_id = ?", strings.TrimSpace(meetingID)).
		Where("giver_member_id = ?", strings.TrimSpace(giverMemberID)).
		Where("scope = ?", strings.TrimSpace(scope)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ProxyGrant{}, false, nil
		}
		return entities.ProxyGrant{}, false, r.logError("voting_repo_get_grant_failed", err,
			"meeting_id", strings.TrimSpace(meetingID), "giver", strings.TrimSpace(giverMemberID))
	}
	return row.toEntity(), true, nil
}

func (r *Repository) ListGrantsByMeeting(ctx context.Context, meetingID string) ([]entities.ProxyGrant, error) {
	var rows []proxyGrantModel
	if err := r.tenantScope(ctx).
		Where("meeting_id = ?", strings.TrimSpace(meetingID)).
		Order("giver_member_id ASC, scope ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_grants_failed", err,
			"meeting_id", strings.TrimSpace(meetingID))
	}
	items := make([]entities.ProxyGrant, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) IssueToken(ctx context.Context, token entities.VoteToken) error {
	row := voteTokenModel{
		TokenHash: strings.TrimSpace(token.TokenHash),
		TenantID:  r.tenantID,
		MotionID:  strings.TrimSpace(token.MotionID),
		MemberID:  strings.TrimSpace(token.MemberID),
		Status:    string(token.Status),
		IssuedAt:  token.IssuedAt.UTC(),
		ExpiresAt: normalizeOptionalTime(token.ExpiresAt),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return r.logError("voting_repo_issue_token_failed", err,
			"motion_id", row.MotionID, "member_id", row.MemberID)
	}
	return nil
}

func (r *Repository) GetToken(ctx context.Context, tokenHash string) (entities.VoteToken, error) {
	var row voteTokenModel
	err := r.tenantScope(ctx).
		Where("token_hash = ?", strings.TrimSpace(tokenHash)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoteToken{}, domainerrors.ErrTokenNotFound
		}
		return entities.VoteToken{}, r.logError("voting_repo_get_token_failed", err)
	}
	return row.toEntity(), nil
}

// MarkTokenUsed consumes the token with a guarded update so two concurrent
// casts cannot both spend it; the loser re-reads the row to name the reason.
func (r *Repository) MarkTokenUsed(ctx context.Context, tokenHash string, usedAt time.Time) error {
	result := r.tenantScope(ctx).
		Model(&voteTokenModel{}).
		Where("token_hash = ?", strings.TrimSpace(tokenHash)).
		Where("status = ?", string(entities.TokenStatusActive)).
		Updates(map[string]any{
			"status":  string(entities.TokenStatusUsed),
			"used_at": usedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("voting_repo_mark_token_used_failed", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var row voteTokenModel
	err := r.tenantScope(ctx).
		Where("token_hash = ?", strings.TrimSpace(tokenHash)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domainerrors.ErrTokenNotFound
		}
		return r.logError("voting_repo_mark_token_used_load_failed", err)
	}
	if row.Status == string(entities.TokenStatusUsed) {
		return domainerrors.ErrTokenConsumed
	}
	return domainerrors.ErrTokenRevoked
}

func (r *Repository) RevokeTokensForMotion(ctx context.Context, motionID string, revokedAt time.Time) (int, error) {
	result := r.tenantScope(ctx).
		Model(&voteTokenModel{}).
		Where("motion_id = ?", strings.TrimSpace(motionID)).
		Where("status = ?", string(entities.TokenStatusActive)).
		Updates(map[string]any{
			"status":     string(entities.TokenStatusRevoked),
			"revoked_at": revokedAt.UTC(),
		})
	if result.Error != nil {
		return 0, r.logError("voting_repo_revoke_tokens_failed", result.Error,
			"motion_id", strings.TrimSpace(motionID))
	}
	return int(result.RowsAffected), nil
}

func (r *Repository) ListTokensByMotion(ctx context.Context, motionID string) ([]entities.VoteToken, error) {
	var rows []voteTokenModel
	if err := r.tenantScope(ctx).
		Where("motion_id = ?", strings.TrimSpace(motionID)).
		Order("token_hash ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_tokens_failed", err,
			"motion_id", strings.TrimSpace(motionID))
	}
	items := make([]entities.VoteToken, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) SaveManualTally(ctx context.Context, tally entities.ManualTally) error {
	row := manualTallyModel{
		MotionID:      strings.TrimSpace(tally.MotionID),
		TenantID:      r.tenantID,
		Total:         tally.Total,
		ForCount:      tally.For,
		AgainstCount:  tally.Against,
		AbstainCount:  tally.Abstain,
		Justification: strings.TrimSpace(tally.Justification),
		RecordedBy:    strings.TrimSpace(tally.RecordedBy),
		RecordedAt:    tally.RecordedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "motion_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total":         row.Total,
			"for_count":     row.ForCount,
			"against_count": row.AgainstCount,
			"abstain_count": row.AbstainCount,
			"justification": row.Justification,
			"recorded_by":   row.RecordedBy,
			"recorded_at":   row.RecordedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("voting_repo_save_manual_tally_failed", create.Error,
			"motion_id", row.MotionID)
	}
	return nil
}

func (r *Repository) GetManualTally(ctx context.Context, motionID string) (entities.ManualTally, bool, error) {
	var row manualTallyModel
	err := r.tenantScope(ctx).
		Where("motion_id = ?", strings.TrimSpace(motionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ManualTally{}, false, nil
		}
		return entities.ManualTally{}, false, r.logError("voting_repo_get_manual_tally_failed", err,
			"motion_id", strings.TrimSpace(motionID))
	}
	return entities.ManualTally{
		MotionID:      row.MotionID,
		Total:         row.Total,
		For:           row.ForCount,
		Against:       row.AgainstCount,
		Abstain:       row.AbstainCount,
		Justification: row.Justification,
		RecordedBy:    row.RecordedBy,
		RecordedAt:    row.RecordedAt.UTC(),
	}, true, nil
}

func (r *Repository) SaveOfficialResult(ctx context.Context, result entities.OfficialResult) error {
	row := officialResultModel{
		MotionID:        strings.TrimSpace(result.MotionID),
		TenantID:        r.tenantID,
		Source:          string(result.Source),
		Decision:        string(result.Decision),
		ForCount:        result.Tally.For.Count,
		ForWeight:       result.Tally.For.Weight,
		AgainstCount:    result.Tally.Against.Count,
		AgainstWeight:   result.Tally.Against.Weight,
		AbstainCount:    result.Tally.Abstain.Count,
		AbstainWeight:   result.Tally.Abstain.Weight,
		NoOpinionCount:  result.Tally.NoOpinion.Count,
		NoOpinionWeight: result.Tally.NoOpinion.Weight,
		ConsolidatedAt:  result.ConsolidatedAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "motion_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"source":            row.Source,
			"decision":          row.Decision,
			"for_count":         row.ForCount,
			"for_weight":        row.ForWeight,
			"against_count":     row.AgainstCount,
			"against_weight":    row.AgainstWeight,
			"abstain_count":     row.AbstainCount,
			"abstain_weight":    row.AbstainWeight,
			"no_opinion_count":  row.NoOpinionCount,
			"no_opinion_weight": row.NoOpinionWeight,
			"consolidated_at":   row.ConsolidatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("voting_repo_save_official_result_failed", create.Error,
			"motion_id", row.MotionID)
	}
	return nil
}

func (r *Repository) GetOfficialResult(ctx context.Context, motionID string) (entities.OfficialResult, bool, error) {
	var row officialResultModel
	err := r.tenantScope(ctx).
		Where("motion_id = ?", strings.TrimSpace(motionID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.OfficialResult{}, false, nil
		}
		return entities.OfficialResult{}, false, r.logError("voting_repo_get_official_result_failed", err,
			"motion_id", strings.TrimSpace(motionID))
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetMeeting(ctx context.Context, meetingID string) (ports.MeetingProjection, error) {
	var row meetingProjectionModel
	err := r.tenantScope(ctx).
		Where("id = ?", strings.TrimSpace(meetingID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.MeetingProjection{}, domainerrors.ErrMeetingNotFound
		}
		return ports.MeetingProjection{}, r.logError("voting_repo_get_meeting_failed", err,
			"meeting_id", strings.TrimSpace(meetingID))
	}
	return ports.MeetingProjection{
		MeetingID:      row.ID,
		Status:         row.Status,
		PresidentName:  row.PresidentName,
		VotePolicyID:   row.VotePolicyID,
		QuorumPolicyID: row.QuorumPolicyID,
		ValidatedAt:    normalizeOptionalTime(row.ValidatedAt),
	}, nil
}

func (r *Repository) ListVotePolicies(ctx context.Context) ([]entities.VotePolicy, error) {
	var rows []votePolicyModel
	if err := r.tenantScope(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_vote_policies_failed", err)
	}
	items := make([]entities.VotePolicy, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListQuorumPolicies(ctx context.Context) ([]entities.QuorumPolicy, error) {
	var rows []quorumPolicyModel
	if err := r.tenantScope(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("voting_repo_list_quorum_policies_failed", err)
	}
	items := make([]entities.QuorumPolicy, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) GetVotePolicy(ctx context.Context, policyID string) (entities.VotePolicy, bool, error) {
	var row votePolicyModel
	err := r.tenantScope(ctx).
		Where("id = ?", strings.TrimSpace(policyID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VotePolicy{}, false, nil
		}
		return entities.VotePolicy{}, false, r.logError("voting_repo_get_vote_policy_failed", err,
			"policy_id", strings.TrimSpace(policyID))
	}
	return row.toEntity(), true, nil
}

func (r *Repository) GetQuorumPolicy(ctx context.Context, policyID string) (entities.QuorumPolicy, bool, error) {
	var row quorumPolicyModel
	err := r.tenantScope(ctx).
		Where("id = ?", strings.TrimSpace(policyID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.QuorumPolicy{}, false, nil
		}
		return entities.QuorumPolicy{}, false, r.logError("voting_repo_get_quorum_policy_failed", err,
			"policy_id", strings.TrimSpace(policyID))
	}
	return row.toEntity(), true, nil
}

func (r *Repository) TenantDefaults(ctx context.Context) (string, string, error) {
	var row tenantSettingsModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", r.tenantID).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil
		}
		return "", "", r.logError("voting_repo_tenant_defaults_failed", err)
	}
	return row.DefaultVotePolicyID, row.DefaultQuorumPolicyID, nil
}

func (r *Repository) Get(ctx context.Context, key string, now time.Time) (ports.IdempotencyRecord, bool, error) {
	var row idempotencyModel
	err := r.db.WithContext(ctx).
		Where("key = ?", strings.TrimSpace(key)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.IdempotencyRecord{}, false, nil
		}
		return ports.IdempotencyRecord{}, false, r.logError("voting_repo_idempotency_get_failed", err,
			"idempotency_key", strings.TrimSpace(key))
	}
	if !row.ExpiresAt.IsZero() && now.UTC().After(row.ExpiresAt.UTC()) {
		if err := r.db.WithContext(ctx).
			Where("key = ?", strings.TrimSpace(key)).
			Delete(&idempotencyModel{}).Error; err != nil {
			return ports.IdempotencyRecord{}, false, r.logError("voting_repo_idempotency_expire_failed", err,
				"idempotency_key", strings.TrimSpace(key))
		}
		return ports.IdempotencyRecord{}, false, nil
	}
	return ports.IdempotencyRecord{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		BallotID:    row.BallotID,
		ExpiresAt:   row.ExpiresAt.UTC(),
	}, true, nil
}

func (r *Repository) Put(ctx context.Context, record ports.IdempotencyRecord) error {
	row := idempotencyModel{
		Key:         strings.TrimSpace(record.Key),
		RequestHash: strings.TrimSpace(record.RequestHash),
		BallotID:    strings.TrimSpace(record.BallotID),
		ExpiresAt:   record.ExpiresAt.UTC(),
	}
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return r.logError("voting_repo_idempotency_put_failed", create.Error, "idempotency_key", row.Key)
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("key = ?", row.Key).
		First(&existing).Error; err != nil {
		return r.logError("voting_repo_idempotency_load_existing_failed", err, "idempotency_key", row.Key)
	}
	if existing.RequestHash != row.RequestHash || existing.BallotID != row.BallotID {
		return domainerrors.ErrIdempotencyConflict
	}
	return nil
}

// CommitCast consumes the token and inserts the ballot in one transaction; a
// unique violation on the insert rolls the token consumption back.
func (r *Repository) CommitCast(ctx context.Context, write ports.CastWrite) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.withTx(tx)
		if strings.TrimSpace(write.TokenHash) != "" {
			if err := repo.MarkTokenUsed(ctx, write.TokenHash, write.UsedAt); err != nil {
				return err
			}
		}
		return repo.InsertBallot(ctx, write.Ballot)
	})
}

// CommitClose revokes outstanding tokens, freezes the official result, and
// marks the motion closed in one transaction.
func (r *Repository) CommitClose(ctx context.Context, write ports.CloseWrite) (int, error) {
	var revoked int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := r.withTx(tx)
		count, err := repo.RevokeTokensForMotion(ctx, write.Motion.MotionID, write.RevokedAt)
		if err != nil {
			return err
		}
		revoked = count
		if err := repo.SaveOfficialResult(ctx, write.Result); err != nil {
			return err
		}
		return repo.MarkClosed(ctx, write.Motion)
	})
	if err != nil {
		return 0, err
	}
	return revoked, nil
}

// ResetMeetingData wipes every row the service holds for a meeting. The
// meeting-workflow demo reset calls this through its resetter port; rows in
// other meetings are untouched.
func (r *Repository) ResetMeetingData(ctx context.Context, meetingID string) error {
	meetingID = strings.TrimSpace(meetingID)
	motionIDs := r.db.WithContext(ctx).
		Model(&motionModel{}).
		Select("id").
		Where("tenant_id = ? AND meeting_id = ?", r.tenantID, meetingID)

	byMotion := []any{&ballotModel{}, &voteTokenModel{}, &manualTallyModel{}, &officialResultModel{}}
	for _, model := range byMotion {
		if err := r.tenantScope(ctx).
			Where("motion_id IN (?)", motionIDs).
			Delete(model).Error; err != nil {
			return r.logError("voting_repo_reset_meeting_failed", err, "meeting_id", meetingID)
		}
	}
	byMeeting := []any{&attendanceModel{}, &proxyGrantModel{}, &motionModel{}}
	for _, model := range byMeeting {
		if err := r.tenantScope(ctx).
			Where("meeting_id = ?", meetingID).
			Delete(model).Error; err != nil {
			return r.logError("voting_repo_reset_meeting_failed", err, "meeting_id", meetingID)
		}
	}
	return nil
}

func (r *Repository) tenantScope(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("tenant_id = ?", r.tenantID)
}

func (r *Repository) withTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, tenantID: r.tenantID, logger: r.logger}
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "assembly-governance/motion-voting",
		"layer", "adapter",
		"tenant_id", r.tenantID,
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("voting repository operation failed", fields...)
	return err
}

type motionModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	TenantID       string     `gorm:"column:tenant_id"`
	MeetingID      string     `gorm:"column:meeting_id"`
	Title          string     `gorm:"column:title"`
	Description    string     `gorm:"column:description"`
	Position       int        `gorm:"column:position"`
	VotePolicyID   string     `gorm:"column:vote_policy_id"`
	QuorumPolicyID string     `gorm:"column:quorum_policy_id"`
	OpenedAt       *time.Time `gorm:"column:opened_at"`
	ClosedAt       *time.Time `gorm:"column:closed_at"`
	Decision       string     `gorm:"column:decision"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (motionModel) TableName() string {
	return "motions"
}

func motionModelFromEntity(motion entities.Motion, tenantID string) motionModel {
	row := motionModel{
		ID:             strings.TrimSpace(motion.MotionID),
		TenantID:       tenantID,
		MeetingID:      strings.TrimSpace(motion.MeetingID),
		Title:          strings.TrimSpace(motion.Title),
		Description:    motion.Description,
		Position:       motion.Position,
		VotePolicyID:   strings.TrimSpace(motion.VotePolicyID),
		QuorumPolicyID: strings.TrimSpace(motion.QuorumPolicyID),
		OpenedAt:       normalizeOptionalTime(motion.OpenedAt),
		ClosedAt:       normalizeOptionalTime(motion.ClosedAt),
		Decision:       string(motion.Decision),
		CreatedAt:      motion.CreatedAt.UTC(),
		UpdatedAt:      motion.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m motionModel) toEntity() entities.Motion {
	return entities.Motion{
		MotionID:       m.ID,
		MeetingID:      m.MeetingID,
		Title:          m.Title,
		Description:    m.Description,
		Position:       m.Position,
		VotePolicyID:   m.VotePolicyID,
		QuorumPolicyID: m.QuorumPolicyID,
		OpenedAt:       normalizeOptionalTime(m.OpenedAt),
		ClosedAt:       normalizeOptionalTime(m.ClosedAt),
		Decision:       entities.MotionDecision(m.Decision),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type ballotModel struct {
	ID                  string    `gorm:"column:id;primaryKey"`
	TenantID            string    `gorm:"column:tenant_id"`
	MotionID            string    `gorm:"column:motion_id"`
	MemberID            string    `gorm:"column:member_id"`
	Value               string    `gorm:"column:value"`
	Weight              float64   `gorm:"column:weight"`
	Source              string    `gorm:"column:source"`
	IsProxyVote         bool      `gorm:"column:is_proxy_vote"`
	ProxySourceMemberID string    `gorm:"column:proxy_source_member_id"`
	Quarantined         bool      `gorm:"column:quarantined"`
	CastAt              time.Time `gorm:"column:cast_at"`
}

func (ballotModel) TableName() string {
	return "ballots"
}

func ballotModelFromEntity(ballot entities.Ballot, tenantID string) ballotModel {
	row := ballotModel{
		ID:                  strings.TrimSpace(ballot.BallotID),
		TenantID:            tenantID,
		MotionID:            strings.TrimSpace(ballot.MotionID),
		MemberID:            strings.TrimSpace(ballot.MemberID),
		Value:               string(ballot.Value),
		Weight:              ballot.Weight,
		Source:              string(ballot.Source),
		IsProxyVote:         ballot.IsProxyVote,
		ProxySourceMemberID: strings.TrimSpace(ballot.ProxySourceMemberID),
		CastAt:              ballot.CastAt.UTC(),
	}
	if row.CastAt.IsZero() {
		row.CastAt = time.Now().UTC()
	}
	return row
}

func (m ballotModel) toEntity() entities.Ballot {
	return entities.Ballot{
		BallotID:            m.ID,
		MotionID:            m.MotionID,
		MemberID:            m.MemberID,
		Value:               entities.BallotValue(m.Value),
		Weight:              m.Weight,
		Source:              entities.BallotSource(m.Source),
		IsProxyVote:         m.IsProxyVote,
		ProxySourceMemberID: m.ProxySourceMemberID,
		CastAt:              m.CastAt.UTC(),
	}
}

type attendanceModel struct {
	TenantID    string    `gorm:"column:tenant_id;primaryKey"`
	MeetingID   string    `gorm:"column:meeting_id;primaryKey"`
	MemberID    string    `gorm:"column:member_id;primaryKey"`
	Mode        string    `gorm:"column:mode"`
	VotingPower float64   `gorm:"column:voting_power"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (attendanceModel) TableName() string {
	return "attendance_records"
}

type proxyGrantModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	TenantID         string    `gorm:"column:tenant_id"`
	MeetingID        string    `gorm:"column:meeting_id"`
	GiverMemberID    string    `gorm:"column:giver_member_id"`
	ReceiverMemberID string    `gorm:"column:receiver_member_id"`
	Scope            string    `gorm:"column:scope"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (proxyGrantModel) TableName() string {
	return "proxy_grants"
}

func (m proxyGrantModel) toEntity() entities.ProxyGrant {
	return entities.ProxyGrant{
		GrantID:          m.ID,
		MeetingID:        m.MeetingID,
		GiverMemberID:    m.GiverMemberID,
		ReceiverMemberID: m.ReceiverMemberID,
		Scope:            m.Scope,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

type voteTokenModel struct {
	TokenHash string     `gorm:"column:token_hash;primaryKey"`
	TenantID  string     `gorm:"column:tenant_id"`
	MotionID  string     `gorm:"column:motion_id"`
	MemberID  string     `gorm:"column:member_id"`
	Status    string     `gorm:"column:status"`
	IssuedAt  time.Time  `gorm:"column:issued_at"`
	ExpiresAt *time.Time `gorm:"column:expires_at"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	RevokedAt *time.Time `gorm:"column:revoked_at"`
}

func (voteTokenModel) TableName() string {
	return "vote_tokens"
}

func (m voteTokenModel) toEntity() entities.VoteToken {
	return entities.VoteToken{
		TokenHash: m.TokenHash,
		MotionID:  m.MotionID,
		MemberID:  m.MemberID,
		Status:    entities.TokenStatus(m.Status),
		IssuedAt:  m.IssuedAt.UTC(),
		ExpiresAt: normalizeOptionalTime(m.ExpiresAt),
		UsedAt:    normalizeOptionalTime(m.UsedAt),
	}
}

type manualTallyModel struct {
	MotionID      string    `gorm:"column:motion_id;primaryKey"`
	TenantID      string    `gorm:"column:tenant_id"`
	Total         int       `gorm:"column:total"`
	ForCount      int       `gorm:"column:for_count"`
	AgainstCount  int       `gorm:"column:against_count"`
	AbstainCount  int       `gorm:"column:abstain_count"`
	Justification string    `gorm:"column:justification"`
	RecordedBy    string    `gorm:"column:recorded_by"`
	RecordedAt    time.Time `gorm:"column:recorded_at"`
}

func (manualTallyModel) TableName() string {
	return "manual_tallies"
}

type officialResultModel struct {
	MotionID        string    `gorm:"column:motion_id;primaryKey"`
	TenantID        string    `gorm:"column:tenant_id"`
	Source          string    `gorm:"column:source"`
	Decision        string    `gorm:"column:decision"`
	ForCount        int       `gorm:"column:for_count"`
	ForWeight       float64   `gorm:"column:for_weight"`
	AgainstCount    int       `gorm:"column:against_count"`
	AgainstWeight   float64   `gorm:"column:against_weight"`
	AbstainCount    int       `gorm:"column:abstain_count"`
	AbstainWeight   float64   `gorm:"column:abstain_weight"`
	NoOpinionCount  int       `gorm:"column:no_opinion_count"`
	NoOpinionWeight float64   `gorm:"column:no_opinion_weight"`
	ConsolidatedAt  time.Time `gorm:"column:consolidated_at"`
}

func (officialResultModel) TableName() string {
	return "official_results"
}

func (m officialResultModel) toEntity() entities.OfficialResult {
	return entities.OfficialResult{
		MotionID: m.MotionID,
		Source:   entities.TallySource(m.Source),
		Tally: entities.Tally{
			For:       entities.TallyBucket{Count: m.ForCount, Weight: m.ForWeight},
			Against:   entities.TallyBucket{Count: m.AgainstCount, Weight: m.AgainstWeight},
			Abstain:   entities.TallyBucket{Count: m.AbstainCount, Weight: m.AbstainWeight},
			NoOpinion: entities.TallyBucket{Count: m.NoOpinionCount, Weight: m.NoOpinionWeight},
		},
		Decision:       entities.MotionDecision(m.Decision),
		ConsolidatedAt: m.ConsolidatedAt.UTC(),
	}
}

type meetingProjectionModel struct {
	ID             string     `gorm:"column:id;primaryKey"`
	TenantID       string     `gorm:"column:tenant_id"`
	Status         string     `gorm:"column:status"`
	PresidentName  string     `gorm:"column:president_name"`
	VotePolicyID   string     `gorm:"column:vote_policy_id"`
	QuorumPolicyID string     `gorm:"column:quorum_policy_id"`
	ValidatedAt    *time.Time `gorm:"column:validated_at"`
}

func (meetingProjectionModel) TableName() string {
	return "meetings"
}

type votePolicyModel struct {
	ID                string  `gorm:"column:id;primaryKey"`
	TenantID          string  `gorm:"column:tenant_id"`
	Name              string  `gorm:"column:name"`
	MajorityThreshold float64 `gorm:"column:majority_threshold"`
	MajorityBasis     string  `gorm:"column:majority_basis"`
}

func (votePolicyModel) TableName() string {
	return "vote_policies"
}

func (m votePolicyModel) toEntity() entities.VotePolicy {
	return entities.VotePolicy{
		PolicyID:          m.ID,
		Name:              m.Name,
		MajorityThreshold: m.MajorityThreshold,
		MajorityBasis:     entities.MajorityBasis(m.MajorityBasis),
	}
}

type quorumPolicyModel struct {
	ID        string  `gorm:"column:id;primaryKey"`
	TenantID  string  `gorm:"column:tenant_id"`
	Name      string  `gorm:"column:name"`
	Threshold float64 `gorm:"column:threshold"`
}

func (quorumPolicyModel) TableName() string {
	return "quorum_policies"
}

func (m quorumPolicyModel) toEntity() entities.QuorumPolicy {
	return entities.QuorumPolicy{
		PolicyID:  m.ID,
		Name:      m.Name,
		Threshold: m.Threshold,
	}
}

type tenantSettingsModel struct {
	TenantID              string `gorm:"column:tenant_id;primaryKey"`
	DefaultVotePolicyID   string `gorm:"column:default_vote_policy_id"`
	DefaultQuorumPolicyID string `gorm:"column:default_quorum_policy_id"`
}

func (tenantSettingsModel) TableName() string {
	return "tenant_settings"
}

type memberModel struct {
	ID       string `gorm:"column:id;primaryKey"`
	TenantID string `gorm:"column:tenant_id"`
	Active   bool   `gorm:"column:active"`
}

func (memberModel) TableName() string {
	return "members"
}

type idempotencyModel struct {
	Key         string    `gorm:"column:key;primaryKey"`
	RequestHash string    `gorm:"column:request_hash"`
	BallotID    string    `gorm:"column:ballot_id"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string {
	return "motion_voting_idempotency"
}

func toBallotEntities(rows []ballotModel) []entities.Ballot {
	items := make([]entities.Ballot, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.MotionRepository = (*Repository)(nil)
var _ ports.BallotRepository = (*Repository)(nil)
var _ ports.AttendanceRepository = (*Repository)(nil)
var _ ports.ProxyRepository = (*Repository)(nil)
var _ ports.VoteTokenStore = (*Repository)(nil)
var _ ports.CastCommitter = (*Repository)(nil)
var _ ports.CloseCommitter = (*Repository)(nil)
var _ ports.ManualTallyStore = (*Repository)(nil)
var _ ports.OfficialResultStore = (*Repository)(nil)
var _ ports.MeetingReader = (*Repository)(nil)
var _ ports.PolicyProvider = (*Repository)(nil)
var _ ports.IdempotencyStore = (*Repository)(nil)
