package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type entryModel struct {
	ID          string     `gorm:"column:id;primaryKey"`
	EventName   string     `gorm:"column:event_name"`
	ResourceID  string     `gorm:"column:resource_id"`
	Data        string     `gorm:"column:data"`
	Status      string     `gorm:"column:status"`
	RecordedAt  time.Time  `gorm:"column:recorded_at"`
	PublishedAt *time.Time `gorm:"column:published_at"`
}

func (entryModel) TableName() string {
	return "audit_entries"
}

// PostgresJournal persists audit entries in the audit_entries table. The API
// process appends through the Recorder and the relay worker drains pending
// rows from the same table.
type PostgresJournal struct {
	db *gorm.DB
}

func NewPostgresJournal(db *gorm.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (j *PostgresJournal) Append(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return err
	}
	row := entryModel{
		ID:         entry.EntryID,
		EventName:  entry.EventName,
		ResourceID: entry.ResourceID,
		Data:       string(data),
		Status:     entry.Status,
		RecordedAt: entry.RecordedAt.UTC(),
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Status == "" {
		row.Status = StatusPending
	}
	return j.db.WithContext(ctx).Create(&row).Error
}

func (j *PostgresJournal) ListPending(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []entryModel
	if err := j.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("recorded_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	items := make([]Entry, 0, len(rows))
	for _, row := range rows {
		var data map[string]any
		if row.Data != "" {
			if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
				return nil, err
			}
		}
		items = append(items, Entry{
			EntryID:    row.ID,
			EventName:  row.EventName,
			ResourceID: row.ResourceID,
			Data:       data,
			Status:     row.Status,
			RecordedAt: row.RecordedAt.UTC(),
		})
	}
	return items, nil
}

func (j *PostgresJournal) MarkPublished(ctx context.Context, entryID string, publishedAt time.Time) error {
	ts := publishedAt.UTC()
	return j.db.WithContext(ctx).
		Model(&entryModel{}).
		Where("id = ?", entryID).
		Updates(map[string]any{
			"status":       StatusPublished,
			"published_at": &ts,
		}).Error
}

var _ Journal = (*PostgresJournal)(nil)
