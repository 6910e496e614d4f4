package workers

import (
	"context"
	"log/slog"
	"time"

	application "agora/contexts/assembly-governance/motion-voting/application"
	"agora/internal/shared/audit"
	"agora/internal/shared/events"
)

// EventSink receives relayed audit events; implementations are provided by
// the platform messaging layer.
type EventSink interface {
	Publish(ctx context.Context, envelope events.Envelope) error
}

// AuditRelay publishes pending audit journal entries to the event sink.
type AuditRelay struct {
	Journal   audit.Journal
	Sink      EventSink
	BatchSize int
	Logger    *slog.Logger
}

// RunOnce relays a bounded batch of pending entries, marking each published
// only after the sink accepted it. It stops on the first failure so the retry
// loop can reprocess remaining entries safely.
func (r AuditRelay) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	limit := r.BatchSize
	if limit <= 0 {
		limit = 100
	}

	pending, err := r.Journal.ListPending(ctx, limit)
	if err != nil {
		logger.Error("audit relay list failed",
			"event", "voting_audit_relay_list_failed",
			"module", "assembly-governance/motion-voting",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(pending) == 0 {
		logger.Debug("audit relay found no pending entries",
			"event", "voting_audit_relay_noop",
			"module", "assembly-governance/motion-voting",
			"layer", "worker",
			"batch_size", limit,
		)
		return nil
	}

	now := time.Now().UTC()
	for _, entry := range pending {
		envelope := events.Envelope{
			EventID:        entry.EntryID,
			EventType:      entry.EventName,
			SourceService:  "assembly-governance/motion-voting",
			OccurredAtUTC:  entry.RecordedAt.UTC(),
			EntityType:     "audit_entry",
			EntityID:       entry.ResourceID,
			PayloadVersion: 1,
			Payload:        entry.Data,
		}
		if err := r.Sink.Publish(ctx, envelope); err != nil {
			logger.Error("audit relay publish failed",
				"event", "voting_audit_relay_publish_failed",
				"module", "assembly-governance/motion-voting",
				"layer", "worker",
				"entry_id", entry.EntryID,
				"event_name", entry.EventName,
				"error", err.Error(),
			)
			return err
		}
		if err := r.Journal.MarkPublished(ctx, entry.EntryID, now); err != nil {
			logger.Error("audit relay mark published failed",
				"event", "voting_audit_relay_mark_failed",
				"module", "assembly-governance/motion-voting",
				"layer", "worker",
				"entry_id", entry.EntryID,
				"error", err.Error(),
			)
			return err
		}
	}

	logger.Info("audit relay cycle completed",
		"event", "voting_audit_relay_completed",
		"module", "assembly-governance/motion-voting",
		"layer", "worker",
		"published_count", len(pending),
	)
	return nil
}
