package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"card-sniper/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

type stubFeed struct {
	mu    sync.Mutex
	raws  []*domain.RawListing
	err   error
	calls int
}

func (s *stubFeed) FetchRecent(ctx context.Context) ([]*domain.RawListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.raws, s.err
}

type stubWatchdogStore struct {
	mu      sync.Mutex
	ids     []string
	inserts []string
}

func (s *stubWatchdogStore) UpsertNew(ctx context.Context, l *domain.Listing) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, l.ListingID)
	return true, nil
}

func (s *stubWatchdogStore) GetAllListingIDs(ctx context.Context) ([]string, error) {
	return s.ids, nil
}

type stubClassifier struct {
	mu        sync.Mutex
	processed []string
	alerts    []bool
}

func (s *stubClassifier) Process(ctx context.Context, l *domain.Listing, sendAlert bool) (domain.Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = append(s.processed, l.ListingID)
	s.alerts = append(s.alerts, sendAlert)
	return domain.TierGood, nil
}

func (s *stubClassifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

func raw(id string) *domain.RawListing {
	return &domain.RawListing{
		ListingID:      id,
		Name:           "Charizard",
		GradingCompany: domain.CompanyPSA,
		GradingID:      "111",
		TokenMint:      "mint-" + id,
		PriceAmount:    1,
		PriceCurrency:  domain.CurrencySOL,
	}
}

func newTestWatchdog(feed *stubFeed, store *stubWatchdogStore, processor *stubClassifier) *Watchdog {
	return NewWatchdog(testTracer, feed, store, processor, time.Millisecond)
}

func TestWatchdogIterateStopsAtFirstKnownID(t *testing.T) {
	t.Parallel()

	feed := &stubFeed{raws: []*domain.RawListing{raw("3"), raw("2"), raw("1")}}
	store := &stubWatchdogStore{}
	processor := &stubClassifier{}
	w := newTestWatchdog(feed, store, processor)
	w.known["2"] = struct{}{}

	if err := w.iterate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Newest-first feed: scanning must stop at "2", so "1" is never
	// touched even though it is unknown.
	if len(store.inserts) != 1 || store.inserts[0] != "3" {
		t.Fatalf("expected only the newest unseen listing stored, got %v", store.inserts)
	}
	if len(processor.processed) != 1 || processor.processed[0] != "3" {
		t.Fatalf("unexpected processed set: %v", processor.processed)
	}
	if !processor.alerts[0] {
		t.Fatal("watchdog discoveries must alert")
	}
}

func TestWatchdogIterateDedups(t *testing.T) {
	t.Parallel()

	feed := &stubFeed{raws: []*domain.RawListing{raw("1")}}
	store := &stubWatchdogStore{}
	processor := &stubClassifier{}
	w := newTestWatchdog(feed, store, processor)

	for i := 0; i < 3; i++ {
		if err := w.iterate(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(store.inserts) != 1 {
		t.Fatalf("expected a single insert across repeated polls, got %v", store.inserts)
	}
}

func TestWatchdogHydratesKnownIDs(t *testing.T) {
	t.Parallel()

	store := &stubWatchdogStore{ids: []string{"1", "2"}}
	w := newTestWatchdog(&stubFeed{}, store, &stubClassifier{})

	if err := w.hydrate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.known) != 2 {
		t.Fatalf("expected 2 hydrated ids, got %d", len(w.known))
	}
}

func TestWatchdogIterateFanOut(t *testing.T) {
	t.Parallel()

	feed := &stubFeed{raws: []*domain.RawListing{raw("3"), raw("2"), raw("1")}}
	processor := &stubClassifier{}
	w := newTestWatchdog(feed, &stubWatchdogStore{}, processor)

	if err := w.iterate(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// iterate joins its workers, so all siblings are done here.
	if processor.count() != 3 {
		t.Fatalf("expected all 3 siblings classified, got %d", processor.count())
	}
}

func TestWatchdogStartSurvivesFeedErrors(t *testing.T) {
	t.Parallel()

	feed := &stubFeed{err: errors.New("feed down")}
	w := newTestWatchdog(feed, &stubWatchdogStore{}, &stubClassifier{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	eventually(t, func() bool {
		feed.mu.Lock()
		defer feed.mu.Unlock()
		return feed.calls > 0
	})
	cancel()

	select {
	case <-done:
	case <-time.After(11 * time.Second):
		t.Fatal("watchdog did not stop after cancellation")
	}
}
