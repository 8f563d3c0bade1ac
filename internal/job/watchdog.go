package job

import (
	"context"
	"log"
	"sync"
	"time"

	"card-sniper/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const watchdogErrorDelay = 10 * time.Second

type WatchdogFeed interface {
	FetchRecent(ctx context.Context) ([]*domain.RawListing, error)
}

type WatchdogStore interface {
	UpsertNew(ctx context.Context, l *domain.Listing) (bool, error)
	GetAllListingIDs(ctx context.Context) ([]string, error)
}

type Classifier interface {
	Process(ctx context.Context, l *domain.Listing, sendAlert bool) (domain.Tier, error)
}

// Watchdog is the discovery loop: it polls the feed for listings it has not
// seen, persists them, and classifies each new batch concurrently. The
// known-id set is owned by this loop alone; nothing else writes it.
type Watchdog struct {
	tracer    trace.Tracer
	feed      WatchdogFeed
	store     WatchdogStore
	processor Classifier
	pollDelay time.Duration

	known map[string]struct{}
}

func NewWatchdog(tracer trace.Tracer, feed WatchdogFeed, store WatchdogStore, processor Classifier, pollDelay time.Duration) *Watchdog {
	return &Watchdog{
		tracer:    tracer,
		feed:      feed,
		store:     store,
		processor: processor,
		pollDelay: pollDelay,
		known:     make(map[string]struct{}),
	}
}

// Start hydrates the known-id set and polls until ctx is cancelled. A failed
// iteration backs off and the loop resumes; it never terminates on its own.
func (w *Watchdog) Start(ctx context.Context) {
	log.Println("Watchdog starting...")

	if err := w.hydrate(ctx); err != nil {
		log.Printf("watchdog known-id hydration failed: %v", err)
	}

	for {
		delay := w.pollDelay
		if err := w.iterate(ctx); err != nil {
			log.Printf("watchdog iteration error, backing off: %v", err)
			delay = watchdogErrorDelay
		}

		select {
		case <-ctx.Done():
			log.Println("Watchdog stopped")
			return
		case <-time.After(delay):
		}
	}
}

func (w *Watchdog) hydrate(ctx context.Context) error {
	ids, err := w.store.GetAllListingIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		w.known[id] = struct{}{}
	}
	log.Printf("watchdog hydrated %d known listing ids", len(w.known))
	return nil
}

func (w *Watchdog) iterate(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "watchdog.iterate")
	defer span.End()

	raws, err := w.feed.FetchRecent(ctx)
	if err != nil {
		return err
	}

	// The feed is newest-first: the first known id marks the boundary of
	// anything new, so work per poll stays proportional to new items.
	var fresh []*domain.RawListing
	for _, raw := range raws {
		if _, seen := w.known[raw.ListingID]; seen {
			break
		}
		// Marked seen before processing so a failed enrichment cannot
		// cause a duplicate discovery next poll.
		w.known[raw.ListingID] = struct{}{}
		fresh = append(fresh, raw)
	}
	if len(fresh) == 0 {
		return nil
	}
	log.Printf("watchdog discovered %d new listings", len(fresh))

	var wg sync.WaitGroup
	for _, raw := range fresh {
		l := domain.FromRaw(raw)

		inserted, err := w.store.UpsertNew(ctx, l)
		if err != nil {
			log.Printf("storing listing %s failed: %v", l.ListingID, err)
			continue
		}
		if !inserted {
			continue
		}

		wg.Add(1)
		go func(l *domain.Listing) {
			defer wg.Done()
			if _, err := w.processor.Process(ctx, l, true); err != nil {
				log.Printf("classifying listing %s failed, will retry on recheck: %v", l.ListingID, err)
			}
		}(l)
	}
	wg.Wait()

	return nil
}
