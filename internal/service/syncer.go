package service

import (
	"context"
	"log"
	"time"

	"card-sniper/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type Feed interface {
	FetchRecent(ctx context.Context) ([]*domain.RawListing, error)
	FetchAllPaginated(ctx context.Context) ([]*domain.RawListing, error)
}

type SyncStore interface {
	UpsertNew(ctx context.Context, l *domain.Listing) (bool, error)
	GetAllListingIDs(ctx context.Context) ([]string, error)
	GetActiveMints(ctx context.Context) ([]string, error)
	MarkUnlisted(ctx context.Context, tokenMint string) error
	GetStaleSkipped(ctx context.Context, before time.Time) ([]*domain.Listing, error)
}

type ListingProcessor interface {
	Process(ctx context.Context, l *domain.Listing, sendAlert bool) (domain.Tier, error)
	Reprocess(ctx context.Context, l *domain.Listing, sendAlert bool) (domain.Tier, error)
}

// Syncer handles the batch entry points: the one-shot full marketplace walk
// and the second look at stale skips. Alerts are suppressed on bulk passes
// so a cold start does not flood the announcement channel.
type Syncer struct {
	tracer    trace.Tracer
	feed      Feed
	store     SyncStore
	processor ListingProcessor
}

func NewSyncer(tracer trace.Tracer, feed Feed, store SyncStore, processor ListingProcessor) *Syncer {
	return &Syncer{tracer: tracer, feed: feed, store: store, processor: processor}
}

// FullSync walks the entire matching feed, stores anything unseen and
// classifies it, then retires live listings the feed no longer carries.
// Returns the number of newly stored listings.
func (s *Syncer) FullSync(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "syncer.full-sync")
	defer span.End()

	raws, err := s.feed.FetchAllPaginated(ctx)
	if err != nil {
		return 0, err
	}
	log.Printf("full sync: feed returned %d matching listings", len(raws))

	stored := s.ingest(ctx, raws)

	seen := make(map[string]struct{}, len(raws))
	for _, raw := range raws {
		seen[raw.TokenMint] = struct{}{}
	}
	active, err := s.store.GetActiveMints(ctx)
	if err != nil {
		return stored, err
	}
	retired := 0
	for _, mint := range active {
		if _, ok := seen[mint]; ok {
			continue
		}
		if err := s.store.MarkUnlisted(ctx, mint); err != nil {
			log.Printf("retiring vanished listing %s failed: %v", mint, err)
			continue
		}
		retired++
	}
	if retired > 0 {
		log.Printf("full sync: retired %d listings missing from the feed", retired)
	}
	return stored, nil
}

// PopulateIfEmpty seeds a brand-new store from the recent feed so the
// watchdog has a baseline to dedup against. At most limit listings are taken
// when limit is positive. No-op when data already exists.
func (s *Syncer) PopulateIfEmpty(ctx context.Context, limit int) (int, error) {
	ctx, span := s.tracer.Start(ctx, "syncer.populate-if-empty")
	defer span.End()

	ids, err := s.store.GetAllListingIDs(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		return 0, nil
	}

	raws, err := s.feed.FetchRecent(ctx)
	if err != nil {
		return 0, err
	}
	if limit > 0 && len(raws) > limit {
		raws = raws[:limit]
	}
	log.Printf("initial population: seeding store with %d listings", len(raws))

	return s.ingest(ctx, raws), nil
}

// RecheckSkipped re-runs classification, alerts enabled, on live SKIP
// listings whose analysis predates the cutoff. The market moves; yesterday's
// skip can be today's deal.
func (s *Syncer) RecheckSkipped(ctx context.Context, before time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "syncer.recheck-skipped")
	defer span.End()

	stale, err := s.store.GetStaleSkipped(ctx, before)
	if err != nil {
		return 0, err
	}

	rechecked := 0
	for _, l := range stale {
		if ctx.Err() != nil {
			return rechecked, ctx.Err()
		}
		if _, err := s.processor.Reprocess(ctx, l, true); err != nil {
			log.Printf("recheck of listing %s failed: %v", l.ListingID, err)
			continue
		}
		rechecked++
	}
	return rechecked, nil
}

func (s *Syncer) ingest(ctx context.Context, raws []*domain.RawListing) int {
	stored := 0
	for _, raw := range raws {
		if ctx.Err() != nil {
			return stored
		}

		l := domain.FromRaw(raw)
		inserted, err := s.store.UpsertNew(ctx, l)
		if err != nil {
			log.Printf("storing listing %s failed: %v", l.ListingID, err)
			continue
		}
		if !inserted {
			continue
		}
		stored++

		if _, err := s.processor.Process(ctx, l, false); err != nil {
			log.Printf("classifying listing %s failed, will retry on recheck: %v", l.ListingID, err)
		}
	}
	return stored
}
