package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"card-sniper/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// At the watchdog's pace this backlog covers hours of a stalled consumer;
// overflow is counted and logged rather than blocking the discovery loop.
const sinkBuffer = 1024

// Sink is the hand-off point between the analysis pipeline and whatever
// announces deals. Producers publish, a single consumer drains and calls
// TaskDone after each delivery so Drain can tell when everything published
// so far has actually gone out.
type Sink struct {
	tracer trace.Tracer
	ch     chan *domain.Notification

	mu      sync.Mutex
	pending int
	dropped int
}

func NewSink(tracer trace.Tracer) *Sink {
	return &Sink{
		tracer: tracer,
		ch:     make(chan *domain.Notification, sinkBuffer),
	}
}

// Publish enqueues a notification, assigning it an event id. The queue is
// bounded; if the consumer has fallen this far behind the event is dropped
// and logged rather than stalling the discovery loop.
func (s *Sink) Publish(n *domain.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	s.mu.Lock()
	s.pending++
	s.mu.Unlock()

	select {
	case s.ch <- n:
	default:
		s.mu.Lock()
		s.pending--
		s.dropped++
		total := s.dropped
		s.mu.Unlock()
		log.Printf("notification sink full, dropping event %s (%s %s), %d dropped so far", n.ID, n.Tier, n.Listing.Name, total)
	}
}

// Dropped reports how many notifications overflowed the queue since startup.
func (s *Sink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Next blocks until a notification is available or the context ends.
func (s *Sink) Next(ctx context.Context) (*domain.Notification, error) {
	select {
	case n := <-s.ch:
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TaskDone marks one delivered notification as handled.
func (s *Sink) TaskDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending > 0 {
		s.pending--
	}
}

// Drain waits until every published notification has been handled.
func (s *Sink) Drain(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "sink.drain")
	defer span.End()

	for {
		s.mu.Lock()
		remaining := s.pending
		s.mu.Unlock()
		if remaining == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
