package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/caredesk/scheduling/internal/notifier"
	"github.com/caredesk/scheduling/pkg/metrics"
)

const eventBufferSize = 1024

// EventService decouples lifecycle transitions from event delivery. Publish
// failures are logged and counted but never surface to the caller: a booking
// must not fail because the broker is down. If the buffer fills, events are
// dropped rather than blocking the write path.
type EventService struct {
	notifier notifier.Notifier
	metrics  *metrics.Collector
	log      *zap.Logger
	events   chan notifier.Event
	done     chan struct{}
}

func NewEventService(n notifier.Notifier, m *metrics.Collector, log *zap.Logger) *EventService {
	svc := &EventService{
		notifier: n,
		metrics:  m,
		log:      log,
		events:   make(chan notifier.Event, eventBufferSize),
		done:     make(chan struct{}),
	}
	go svc.worker()
	return svc
}

// PublishAsync enqueues a transition event without blocking.
func (s *EventService) PublishAsync(event notifier.Event) {
	s.metrics.TransitionsTotal.WithLabelValues(string(event.Status)).Inc()
	select {
	case s.events <- event:
	default:
		s.metrics.EventPublishFailures.Inc()
		s.log.Warn("event buffer full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("appointment_id", event.AppointmentID.String()),
		)
	}
}

func (s *EventService) Shutdown() {
	close(s.events)
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.log.Warn("event service shutdown timed out; some events may be lost")
	}
}

func (s *EventService) worker() {
	defer close(s.done)
	for event := range s.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.notifier.Publish(ctx, event); err != nil {
			s.metrics.EventPublishFailures.Inc()
			s.log.Error("failed to publish lifecycle event",
				zap.String("type", string(event.Type)),
				zap.String("appointment_id", event.AppointmentID.String()),
				zap.Error(err),
			)
		} else {
			s.metrics.EventsPublishedTotal.WithLabelValues(string(event.Type)).Inc()
		}
		cancel()
	}
}
