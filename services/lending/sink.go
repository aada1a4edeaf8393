package lending

import (
	"log/slog"

	"github.com/google/uuid"

	"lendcore/core/events"
	"lendcore/core/types"
	"lendcore/observability"
)

const eventIDAttribute = "eventId"

// EventSink is the protocol's terminal emitter. It stamps every event with a
// correlation id, counts it, keeps the most recent ones for queries and
// forwards it downstream.
type EventSink struct {
	recent     *events.Recorder
	downstream events.Emitter
	logger     *slog.Logger
	metrics    *observability.EventMetrics
	newID      func() string
}

// NewEventSink constructs a sink retaining limit events. A nil downstream
// discards forwarded events.
func NewEventSink(limit int, downstream events.Emitter, logger *slog.Logger, metrics *observability.EventMetrics) *EventSink {
	if downstream == nil {
		downstream = events.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventSink{
		recent:     events.NewRecorder(limit),
		downstream: downstream,
		logger:     logger,
		metrics:    metrics,
		newID:      uuid.NewString,
	}
}

type stampedEvent struct {
	evt *types.Event
}

func (s stampedEvent) EventType() string   { return s.evt.Type }
func (s stampedEvent) Event() *types.Event { return s.evt }

// Emit implements events.Emitter.
func (s *EventSink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	rendered := events.Render(evt)
	attrs := make(map[string]string, len(rendered.Attributes)+1)
	for k, v := range rendered.Attributes {
		attrs[k] = v
	}
	attrs[eventIDAttribute] = s.newID()
	stamped := stampedEvent{evt: &types.Event{Type: rendered.Type, Attributes: attrs}}

	s.metrics.RecordEvent(rendered.Type)
	s.logger.Debug("protocol event", slog.String("type", rendered.Type), slog.String(eventIDAttribute, attrs[eventIDAttribute]))
	s.recent.Emit(stamped)
	s.downstream.Emit(stamped)
}

// Recent returns the retained events, oldest first.
func (s *EventSink) Recent() []*types.Event {
	if s == nil {
		return nil
	}
	return s.recent.Events()
}
