package main

import (
	"context"
	"log"
	"time"

	"card-sniper/internal/config"
	"card-sniper/internal/db"
	"card-sniper/internal/job"
	"card-sniper/internal/notify"
	"card-sniper/internal/provider"
	"card-sniper/internal/repository"
	"card-sniper/internal/service"
	"card-sniper/pkg/tracing"

	"github.com/joho/godotenv"
)

var (
	logFatalf          = log.Fatalf
	loadEnvFunc        = godotenv.Load
	loadConfigFunc     = config.Load
	validateConfigFunc = func(cfg *config.Config) error { return cfg.Validate() }
	initPostgresFunc   = db.InitPostgres
	initTracerFunc     = tracing.InitTracer
	fullSyncFunc       = func(s *service.Syncer, ctx context.Context) (int, error) { return s.FullSync(ctx) }
)

// One-shot walk of the whole marketplace feed: store and classify anything
// unseen, then exit once every queued notification has drained.
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()
	if err := validateConfigFunc(cfg); err != nil {
		logFatalf("invalid configuration: %v", err)
	}
	if cfg.DatabaseURL == "" {
		logFatalf("DATABASE_URL is required for a full sync")
	}

	ctx := context.Background()
	initPostgresFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		logFatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	listingRepo := repository.NewListingRepository(db.Pool, tracer)
	if db.Pool != nil {
		if err := listingRepo.RunMigrations(ctx); err != nil {
			logFatalf("failed to run migrations: %v", err)
		}
	}

	market := provider.NewMagicEdenClient(tracer, cfg.CollectionSymbol)
	valuations := provider.NewAltClient(tracer, cfg.AltAuthToken, cfg.AltCookie)
	oracle := provider.NewPriceOracle(tracer)

	sink := notify.NewSink(tracer)
	ring := job.NewRing()
	processor := service.NewProcessor(tracer, valuations, oracle, listingRepo, ring, sink)
	processor.SetFreshWindow(time.Duration(cfg.FreshWindowDays) * 24 * time.Hour)

	// Bulk passes suppress alerts, but anything a prior consumer left
	// queued still deserves a line in the log.
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	go func() {
		for {
			n, err := sink.Next(consumerCtx)
			if err != nil {
				return
			}
			log.Printf("notification %s: %s %s (%s)", n.ID, n.Tier, n.Listing.Name, n.DifferenceStr)
			sink.TaskDone()
		}
	}()

	syncer := service.NewSyncer(tracer, market, listingRepo, processor)
	stored, err := fullSyncFunc(syncer, ctx)
	if err != nil {
		logFatalf("full sync failed: %v", err)
	}

	drainCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := sink.Drain(drainCtx); err != nil {
		log.Printf("notification drain incomplete: %v", err)
	}

	log.Printf("full sync complete, %d new listings stored", stored)
}
