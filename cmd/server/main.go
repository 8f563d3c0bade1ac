package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"card-sniper/internal/bot"
	"card-sniper/internal/cache"
	"card-sniper/internal/config"
	"card-sniper/internal/db"
	"card-sniper/internal/handler"
	"card-sniper/internal/job"
	"card-sniper/internal/notify"
	"card-sniper/internal/provider"
	"card-sniper/internal/repository"
	"card-sniper/internal/service"
	"card-sniper/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "card-sniper/docs"
)

var (
	logFatalf              = log.Fatalf
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	validateConfigFunc     = func(cfg *config.Config) error { return cfg.Validate() }
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newListingRepoFunc     = repository.NewListingRepository
	populateFunc           = func(s *service.Syncer, ctx context.Context, limit int) (int, error) { return s.PopulateIfEmpty(ctx, limit) }
	seedReaperFunc         = func(r *job.Reaper, ctx context.Context) error { return r.Seed(ctx) }
	startWatchdogFunc      = func(w *job.Watchdog, ctx context.Context) { go w.Start(ctx) }
	startReaperFunc        = func(r *job.Reaper, ctx context.Context) { go r.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Card Sniper API
// @version         1.0
// @description     Collectible-card NFT deal discovery service.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()
	if err := validateConfigFunc(cfg); err != nil {
		logFatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repository and run migrations
	listingRepo := newListingRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		if err := listingRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// External clients
	market := provider.NewMagicEdenClient(tracer, cfg.CollectionSymbol)
	valuations := provider.NewAltClient(tracer, cfg.AltAuthToken, cfg.AltCookie)
	oracle := provider.NewPriceOracle(tracer)

	// Pipeline: sink, ring, processor
	sink := notify.NewSink(tracer)
	ring := job.NewRing()
	processor := service.NewProcessor(tracer, valuations, oracle, listingRepo, ring, sink)
	processor.SetFreshWindow(time.Duration(cfg.FreshWindowDays) * 24 * time.Hour)

	syncer := service.NewSyncer(tracer, market, listingRepo, processor)
	listingService := service.NewListingService(tracer, listingRepo, cache.Client, processor)

	// Seed a cold store so the watchdog has a dedup baseline
	if db.Pool != nil {
		if n, err := populateFunc(syncer, ctx, cfg.InitialPopulation); err != nil {
			log.Printf("initial population failed: %v", err)
		} else if n > 0 {
			log.Printf("initial population stored %d listings", n)
		}
	}

	// Background loops
	watchdog := job.NewWatchdog(tracer, market, listingRepo, processor,
		time.Duration(cfg.WatchdogPollMillis)*time.Millisecond)
	reaper := job.NewReaper(tracer, market, listingRepo, processor, ring,
		time.Duration(cfg.ReaperDelayMillis)*time.Millisecond,
		time.Duration(cfg.StaleAfterHours)*time.Hour)

	if db.Pool != nil {
		if err := seedReaperFunc(reaper, ctx); err != nil {
			log.Printf("reaper seeding failed: %v", err)
		}
	}
	startWatchdogFunc(watchdog, ctx)
	startReaperFunc(reaper, ctx)

	// Alert delivery
	startTelegramBotFunc(ctx, cfg.TelegramBotToken, cfg.TelegramChatID, listingService, sink)

	// HTTP surface
	h := handler.New(tracer, listingService, oracle, syncer, cfg.APIKey)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("card-sniper"))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
