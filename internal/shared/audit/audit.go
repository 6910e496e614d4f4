package audit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusPublished = "published"
)

// Entry is one audit journal row, written in the same flow as the state
// change it describes and relayed to the event sink by a worker.
type Entry struct {
	EntryID    string
	EventName  string
	ResourceID string
	Data       map[string]any
	Status     string
	RecordedAt time.Time
}

// Journal persists audit entries until a relay publishes them.
type Journal interface {
	Append(ctx context.Context, entry Entry) error
	ListPending(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, entryID string, publishedAt time.Time) error
}

// Recorder implements the services' audit ports on top of a Journal.
type Recorder struct {
	Journal Journal
	Clock   func() time.Time
}

func (r Recorder) Record(ctx context.Context, eventName string, resourceID string, data map[string]any) error {
	now := time.Now().UTC()
	if r.Clock != nil {
		now = r.Clock().UTC()
	}
	return r.Journal.Append(ctx, Entry{
		EntryID:    uuid.NewString(),
		EventName:  strings.TrimSpace(eventName),
		ResourceID: strings.TrimSpace(resourceID),
		Data:       data,
		Status:     StatusPending,
		RecordedAt: now,
	})
}

// MemoryJournal is the in-memory Journal used by tests and local runs.
type MemoryJournal struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{entries: make(map[string]Entry)}
}

func (j *MemoryJournal) Append(_ context.Context, entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = StatusPending
	}
	j.entries[entry.EntryID] = entry
	return nil
}

func (j *MemoryJournal) ListPending(_ context.Context, limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	items := make([]Entry, 0, len(j.entries))
	for _, entry := range j.entries {
		if entry.Status != StatusPending {
			continue
		}
		items = append(items, entry)
	}
	sort.Slice(items, func(i, k int) bool {
		if !items[i].RecordedAt.Equal(items[k].RecordedAt) {
			return items[i].RecordedAt.Before(items[k].RecordedAt)
		}
		return items[i].EntryID < items[k].EntryID
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (j *MemoryJournal) MarkPublished(_ context.Context, entryID string, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	entry, ok := j.entries[entryID]
	if !ok {
		return nil
	}
	entry.Status = StatusPublished
	j.entries[entryID] = entry
	return nil
}

// ListAll returns every journal entry ordered by recording time; tests use it
// to assert on the audit trail.
func (j *MemoryJournal) ListAll() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	items := make([]Entry, 0, len(j.entries))
	for _, entry := range j.entries {
		items = append(items, entry)
	}
	sort.Slice(items, func(i, k int) bool {
		if !items[i].RecordedAt.Equal(items[k].RecordedAt) {
			return items[i].RecordedAt.Before(items[k].RecordedAt)
		}
		return items[i].EntryID < items[k].EntryID
	})
	return items
}
