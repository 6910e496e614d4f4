// Package messaging is the in-process event bus behind the broadcaster and
// audit relay ports while runtime wiring is finalized for external brokers.
package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"agora/internal/shared/events"
)

// Bus fans envelopes out to in-process subscribers. It backs both services'
// broadcaster ports and the audit relay sink.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan events.Envelope
	logger      *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string][]chan events.Envelope),
		logger:      logger,
	}
}

func (b *Bus) Publish(ctx context.Context, envelope events.Envelope) error {
	topic := envelope.EventType

	b.mu.RLock()
	subs := append([]chan events.Envelope(nil), b.subscribers[topic]...)
	subs = append(subs, b.subscribers["*"]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub <- envelope:
		default:
			if b.logger != nil {
				b.logger.Warn("dropping event for slow subscriber",
					"event", "bus_publish_drop",
					"module", "internal/platform/messaging",
					"layer", "platform",
					"topic", topic,
					"event_id", envelope.EventID,
				)
			}
		}
	}

	if b.logger != nil {
		b.logger.Info("event published",
			"event", "bus_publish",
			"module", "internal/platform/messaging",
			"layer", "platform",
			"topic", topic,
			"event_id", envelope.EventID,
			"event_type", envelope.EventType,
		)
	}
	return nil
}

// Subscribe registers a handler for a topic; "*" receives everything. The
// handler runs on its own goroutine until the context ends.
func (b *Bus) Subscribe(
	ctx context.Context,
	topic string,
	handler func(context.Context, events.Envelope) error,
) {
	ch := make(chan events.Envelope, 128)

	b.mu.Lock()
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(topic, ch)
				return
			case envelope := <-ch:
				if err := handler(ctx, envelope); err != nil && b.logger != nil {
					b.logger.Error("subscriber handler failed",
						"event", "bus_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"topic", topic,
						"event_id", envelope.EventID,
						"event_type", envelope.EventType,
						"error", err.Error(),
					)
				}
			}
		}
	}()
}

func (b *Bus) removeSubscriber(topic string, target chan events.Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := b.subscribers[topic]
	if len(items) == 0 {
		return
	}
	filtered := make([]chan events.Envelope, 0, len(items))
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers[topic] = filtered
}

func (b *Bus) emit(ctx context.Context, source, eventType, entityType, entityID string, payload map[string]any) {
	_ = b.Publish(ctx, events.Envelope{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		SourceService:  source,
		OccurredAtUTC:  time.Now().UTC(),
		EntityType:     entityType,
		EntityID:       entityID,
		PayloadVersion: 1,
		Payload:        payload,
	})
}

// VotingBroadcaster adapts the bus to the voting service's broadcaster port.
type VotingBroadcaster struct {
	Bus *Bus
}

func (v VotingBroadcaster) MotionOpened(ctx context.Context, meetingID, motionID string) {
	v.Bus.emit(ctx, "assembly-governance/motion-voting", "motion.opened", "motion", motionID,
		map[string]any{"meeting_id": meetingID})
}

func (v VotingBroadcaster) MotionClosed(ctx context.Context, meetingID, motionID string, decision string) {
	v.Bus.emit(ctx, "assembly-governance/motion-voting", "motion.closed", "motion", motionID,
		map[string]any{"meeting_id": meetingID, "decision": decision})
}

func (v VotingBroadcaster) MotionUpdated(ctx context.Context, meetingID, motionID string) {
	v.Bus.emit(ctx, "assembly-governance/motion-voting", "motion.updated", "motion", motionID,
		map[string]any{"meeting_id": meetingID})
}

func (v VotingBroadcaster) ManualTallyRecorded(ctx context.Context, meetingID, motionID string) {
	v.Bus.emit(ctx, "assembly-governance/motion-voting", "motion.manual_tally_recorded", "motion", motionID,
		map[string]any{"meeting_id": meetingID})
}

// WorkflowBroadcaster adapts the bus to the workflow service's broadcaster
// port.
type WorkflowBroadcaster struct {
	Bus *Bus
}

func (w WorkflowBroadcaster) MeetingStatusChanged(ctx context.Context, meetingID, fromStatus, toStatus string) {
	w.Bus.emit(ctx, "assembly-governance/meeting-workflow", "meeting.status_changed", "meeting", meetingID,
		map[string]any{"from": fromStatus, "to": toStatus})
}
