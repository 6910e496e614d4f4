// Package postgresadapter persists meetings through gorm.
package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"agora/contexts/assembly-governance/meeting-workflow/domain/entities"
	domainerrors "agora/contexts/assembly-governance/meeting-workflow/domain/errors"
	"agora/contexts/assembly-governance/meeting-workflow/ports"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the postgres adapter for the meeting repository port. Rows
// are scoped by tenant; the scope is fixed at construction so no query can
// cross tenants.
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

func (r *Repository) SaveMeeting(ctx context.Context, meeting entities.Meeting) error {
	row := meetingModelFromEntity(meeting, r.tenantID)
	create := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"title":                row.Title,
			"meeting_type":         row.MeetingType,
			"status":               row.Status,
			"president_name":       row.PresidentName,
			"vote_policy_id":       row.VotePolicyID,
			"quorum_policy_id":     row.QuorumPolicyID,
			"scheduled_at":         row.ScheduledAt,
			"started_at":           row.StartedAt,
			"frozen_at":            row.FrozenAt,
			"paused_at":            row.PausedAt,
			"ended_at":             row.EndedAt,
			"validated_at":         row.ValidatedAt,
			"archived_at":          row.ArchivedAt,
			"frozen_by":            row.FrozenBy,
			"paused_by":            row.PausedBy,
			"closed_by":            row.ClosedBy,
			"validated_by":         row.ValidatedBy,
			"validated_by_user_id": row.ValidatedByUserID,
			"updated_at":           row.UpdatedAt,
		}),
	}).Create(&row)
	if create.Error != nil {
		return r.logError("workflow_repo_save_meeting_failed", create.Error,
			"meeting_id", row.ID)
	}
	return nil
}

func (r *Repository) GetMeeting(ctx context.Context, meetingID string) (entities.Meeting, error) {
	var row meetingModel
	err := r.tenantScope(ctx).
		Where("id = ?", strings.TrimSpace(meetingID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Meeting{}, domainerrors.ErrMeetingNotFound
		}
		return entities.Meeting{}, r.logError("workflow_repo_get_meeting_failed", err,
			"meeting_id", strings.TrimSpace(meetingID))
	}
	return row.toEntity(), nil
}

func (r *Repository) ListMeetings(ctx context.Context) ([]entities.Meeting, error) {
	var rows []meetingModel
	if err := r.tenantScope(ctx).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("workflow_repo_list_meetings_failed", err)
	}
	items := make([]entities.Meeting, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) tenantScope(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Where("tenant_id = ?", r.tenantID)
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "assembly-governance/meeting-workflow",
		"layer", "adapter",
		"tenant_id", r.tenantID,
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("workflow repository operation failed", fields...)
	return err
}

type meetingModel struct {
	ID                string     `gorm:"column:id;primaryKey"`
	TenantID          string     `gorm:"column:tenant_id"`
	Title             string     `gorm:"column:title"`
	MeetingType       string     `gorm:"column:meeting_type"`
	Status            string     `gorm:"column:status"`
	PresidentName     string     `gorm:"column:president_name"`
	VotePolicyID      string     `gorm:"column:vote_policy_id"`
	QuorumPolicyID    string     `gorm:"column:quorum_policy_id"`
	ScheduledAt       *time.Time `gorm:"column:scheduled_at"`
	StartedAt         *time.Time `gorm:"column:started_at"`
	FrozenAt          *time.Time `gorm:"column:frozen_at"`
	PausedAt          *time.Time `gorm:"column:paused_at"`
	EndedAt           *time.Time `gorm:"column:ended_at"`
	ValidatedAt       *time.Time `gorm:"column:validated_at"`
	ArchivedAt        *time.Time `gorm:"column:archived_at"`
	FrozenBy          string     `gorm:"column:frozen_by"`
	PausedBy          string     `gorm:"column:paused_by"`
	ClosedBy          string     `gorm:"column:closed_by"`
	ValidatedBy       string     `gorm:"column:validated_by"`
	ValidatedByUserID string     `gorm:"column:validated_by_user_id"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at"`
}

func (meetingModel) TableName() string {
	return "meetings"
}

func meetingModelFromEntity(meeting entities.Meeting, tenantID string) meetingModel {
	row := meetingModel{
		ID:                strings.TrimSpace(meeting.MeetingID),
		TenantID:          tenantID,
		Title:             strings.TrimSpace(meeting.Title),
		MeetingType:       string(meeting.MeetingType),
		Status:            string(meeting.Status),
		PresidentName:     strings.TrimSpace(meeting.PresidentName),
		VotePolicyID:      strings.TrimSpace(meeting.VotePolicyID),
		QuorumPolicyID:    strings.TrimSpace(meeting.QuorumPolicyID),
		ScheduledAt:       normalizeOptionalTime(meeting.ScheduledAt),
		StartedAt:         normalizeOptionalTime(meeting.StartedAt),
		FrozenAt:          normalizeOptionalTime(meeting.FrozenAt),
		PausedAt:          normalizeOptionalTime(meeting.PausedAt),
		EndedAt:           normalizeOptionalTime(meeting.EndedAt),
		ValidatedAt:       normalizeOptionalTime(meeting.ValidatedAt),
		ArchivedAt:        normalizeOptionalTime(meeting.ArchivedAt),
		FrozenBy:          meeting.FrozenBy,
		PausedBy:          meeting.PausedBy,
		ClosedBy:          meeting.ClosedBy,
		ValidatedBy:       meeting.ValidatedBy,
		ValidatedByUserID: meeting.ValidatedByUserID,
		CreatedAt:         meeting.CreatedAt.UTC(),
		UpdatedAt:         meeting.UpdatedAt.UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = row.CreatedAt
	}
	return row
}

func (m meetingModel) toEntity() entities.Meeting {
	return entities.Meeting{
		MeetingID:         m.ID,
		Title:             m.Title,
		MeetingType:       entities.MeetingType(m.MeetingType),
		Status:            entities.MeetingStatus(m.Status),
		PresidentName:     m.PresidentName,
		VotePolicyID:      m.VotePolicyID,
		QuorumPolicyID:    m.QuorumPolicyID,
		ScheduledAt:       normalizeOptionalTime(m.ScheduledAt),
		StartedAt:         normalizeOptionalTime(m.StartedAt),
		FrozenAt:          normalizeOptionalTime(m.FrozenAt),
		PausedAt:          normalizeOptionalTime(m.PausedAt),
		EndedAt:           normalizeOptionalTime(m.EndedAt),
		ValidatedAt:       normalizeOptionalTime(m.ValidatedAt),
		ArchivedAt:        normalizeOptionalTime(m.ArchivedAt),
		FrozenBy:          m.FrozenBy,
		PausedBy:          m.PausedBy,
		ClosedBy:          m.ClosedBy,
		ValidatedBy:       m.ValidatedBy,
		ValidatedByUserID: m.ValidatedByUserID,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	timestamp := value.UTC()
	return &timestamp
}

var _ ports.MeetingRepository = (*Repository)(nil)
