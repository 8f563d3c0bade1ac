package job

import (
	"context"
	"log"
	"sync"
	"time"

	"card-sniper/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// Ring is the recirculating FIFO of token mints under liveness supervision.
// Duplicates are tolerated; verification is idempotent.
type Ring struct {
	mu    sync.Mutex
	mints []string
}

func NewRing() *Ring {
	return &Ring{}
}

func (r *Ring) Push(mint string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mints = append(r.mints, mint)
}

func (r *Ring) Pop() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.mints) == 0 {
		return "", false
	}
	mint := r.mints[0]
	r.mints = r.mints[1:]
	return mint, true
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mints)
}

type StatusChecker interface {
	CheckStatus(ctx context.Context, mintAddress string) (*domain.RawStatus, error)
}

type ReaperStore interface {
	GetByMint(ctx context.Context, tokenMint string) (*domain.Listing, error)
	MarkUnlisted(ctx context.Context, tokenMint string) error
	UpdatePrice(ctx context.Context, listingID string, price float64) error
	GetActiveWatchable(ctx context.Context) ([]*domain.Listing, error)
}

type Reclassifier interface {
	Reprocess(ctx context.Context, l *domain.Listing, sendAlert bool) (domain.Tier, error)
}

// Reaper cycles the verification ring: one status probe per tick, live mints
// recirculate, dead ones are retired. The fixed delay between probes is the
// pipeline's main backpressure against the marketplace rate limit.
type Reaper struct {
	tracer     trace.Tracer
	market     StatusChecker
	store      ReaperStore
	processor  Reclassifier
	ring       *Ring
	delay      time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

func NewReaper(
	tracer trace.Tracer,
	market StatusChecker,
	store ReaperStore,
	processor Reclassifier,
	ring *Ring,
	delay time.Duration,
	staleAfter time.Duration,
) *Reaper {
	return &Reaper{
		tracer:     tracer,
		market:     market,
		store:      store,
		processor:  processor,
		ring:       ring,
		delay:      delay,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Seed fills the ring with every live listing whose tier still matters.
func (r *Reaper) Seed(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "reaper.seed")
	defer span.End()

	listings, err := r.store.GetActiveWatchable(ctx)
	if err != nil {
		return err
	}
	for _, l := range listings {
		r.ring.Push(l.TokenMint)
	}
	log.Printf("reaper seeded with %d mints", len(listings))
	return nil
}

// Start runs the verification loop until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) {
	log.Println("Reaper starting...")

	for {
		select {
		case <-ctx.Done():
			log.Println("Reaper stopped")
			return
		case <-time.After(r.delay):
		}

		mint, ok := r.ring.Pop()
		if !ok {
			continue
		}
		r.verify(ctx, mint)
	}
}

func (r *Reaper) verify(ctx context.Context, mint string) {
	ctx, span := r.tracer.Start(ctx, "reaper.verify")
	defer span.End()

	status, err := r.market.CheckStatus(ctx, mint)
	if err != nil || !status.Listed() {
		// Not-found, errored, or delisted all mean the same thing here:
		// stop watching and record the delisting.
		if err != nil {
			log.Printf("mint %s status check: %v, retiring", mint, err)
		} else {
			log.Printf("mint %s no longer listed, retiring", mint)
		}
		if err := r.store.MarkUnlisted(ctx, mint); err != nil {
			log.Printf("marking mint %s unlisted failed: %v", mint, err)
		}
		return
	}

	r.refreshIfStale(ctx, mint, status)
	r.ring.Push(mint)
}

// refreshIfStale re-runs classification, alerts on, when the stored analysis
// has aged past the staleness threshold, folding in the price the probe just
// observed.
func (r *Reaper) refreshIfStale(ctx context.Context, mint string, status *domain.RawStatus) {
	l, err := r.store.GetByMint(ctx, mint)
	if err != nil {
		log.Printf("loading mint %s for staleness check failed: %v", mint, err)
		return
	}
	if l.LastAnalyzedAt != nil && r.now().Sub(*l.LastAnalyzedAt) < r.staleAfter {
		return
	}

	if status.Price > 0 && status.Price != l.PriceAmount {
		l.PriceAmount = status.Price
		if err := r.store.UpdatePrice(ctx, l.ListingID, status.Price); err != nil {
			log.Printf("updating price for listing %s failed: %v", l.ListingID, err)
		}
	}

	if _, err := r.processor.Reprocess(ctx, l, true); err != nil {
		log.Printf("stale re-analysis of listing %s failed: %v", l.ListingID, err)
	}
}
