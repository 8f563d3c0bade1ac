package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"card-sniper/internal/bot"
	"card-sniper/internal/config"
	"card-sniper/internal/job"
	"card-sniper/internal/service"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func TestMainFailsOnInvalidConfig(t *testing.T) {
	restore := stubServerDeps()
	defer restore()

	validateConfigFunc = func(cfg *config.Config) error { return os.ErrInvalid }

	origFatal := logFatalf
	defer func() { logFatalf = origFatal }()

	fatals := 0
	logFatalf = func(format string, v ...any) {
		fatals++
		panic("fatal")
	}

	func() {
		defer func() { recover() }()
		main()
	}()

	if fatals != 1 {
		t.Fatalf("expected startup to fail fast, got %d fatals", fatals)
	}
}

func stubServerDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origValidate := validateConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origPopulate := populateFunc
	origSeedReaper := seedReaperFunc
	origStartWatchdog := startWatchdogFunc
	origStartReaper := startReaperFunc
	origStartTelegram := startTelegramBotFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			AltAuthToken:       "token",
			AltCookie:          "cookie",
			CollectionSymbol:   "collector_crypt",
			WatchdogPollMillis: 300,
			ReaperDelayMillis:  550,
			StaleAfterHours:    24,
			FreshWindowDays:    7,
		}
	}
	validateConfigFunc = func(cfg *config.Config) error { return nil }
	initPostgresFunc = func(context.Context) {}
	initRedisFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	populateFunc = func(*service.Syncer, context.Context, int) (int, error) { return 0, nil }
	seedReaperFunc = func(*job.Reaper, context.Context) error { return nil }
	startWatchdogFunc = func(*job.Watchdog, context.Context) {}
	startReaperFunc = func(*job.Reaper, context.Context) {}
	startTelegramBotFunc = func(context.Context, string, int64, bot.ListingAPI, bot.NotificationSource) {}
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		validateConfigFunc = origValidate
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		populateFunc = origPopulate
		seedReaperFunc = origSeedReaper
		startWatchdogFunc = origStartWatchdog
		startReaperFunc = origStartReaper
		startTelegramBotFunc = origStartTelegram
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
