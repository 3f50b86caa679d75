package observability

import (
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"giftnet/core/events"
	"giftnet/core/types"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking structured campaign events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "giftnet",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of structured events segmented by event type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// Record increments the emitted-event counter for the supplied event type.
func (m *eventMetrics) Record(eventType string) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// LogEmitter forwards structured events to slog and the event counter. It is
// the emitter the daemon wires into the campaign engine; tests and embedders
// that want silence keep the engine's default no-op emitter instead.
type LogEmitter struct {
	Logger *slog.Logger
}

type payloadEvent interface {
	Event() *types.Event
}

// Emit implements the events.Emitter interface.
func (l LogEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	Events().Record(evt.EventType())
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{slog.String("event", evt.EventType())}
	if payload, ok := evt.(payloadEvent); ok {
		if e := payload.Event(); e != nil {
			for key, value := range e.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	logger.Info("campaign event", args...)
}
