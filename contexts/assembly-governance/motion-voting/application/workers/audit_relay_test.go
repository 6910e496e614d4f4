package workers_test

import (
	"context"
	"testing"

	"agora/contexts/assembly-governance/motion-voting/application/workers"
	"agora/internal/shared/audit"
	"agora/internal/shared/events"
)

type captureSink struct {
	published []events.Envelope
}

func (s *captureSink) Publish(_ context.Context, envelope events.Envelope) error {
	s.published = append(s.published, envelope)
	return nil
}

func TestAuditRelayDrainsRecordedEntries(t *testing.T) {
	journal := audit.NewMemoryJournal()
	recorder := audit.Recorder{Journal: journal}

	if err := recorder.Record(context.Background(), "motion.opened", "motion-1", map[string]any{"meeting_id": "meeting-1"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := recorder.Record(context.Background(), "ballot.cast", "ballot-1", nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	sink := &captureSink{}
	relay := workers.AuditRelay{Journal: journal, Sink: sink, BatchSize: 10}
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("relay run: %v", err)
	}
	if len(sink.published) != 2 {
		t.Fatalf("expected 2 published entries, got %d", len(sink.published))
	}
	seen := make(map[string]string)
	for _, envelope := range sink.published {
		seen[envelope.EventType] = envelope.EntityID
	}
	if seen["motion.opened"] != "motion-1" || seen["ballot.cast"] != "ballot-1" {
		t.Fatalf("unexpected envelopes %+v", seen)
	}

	// Published entries must not be drained a second time.
	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("second relay run: %v", err)
	}
	if len(sink.published) != 2 {
		t.Fatalf("relay re-published drained entries: %d", len(sink.published))
	}
}
