package handler

import (
	"context"
	"time"

	"card-sniper/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type ListingDirectory interface {
	GetActive(ctx context.Context, tier domain.Tier, limit int) ([]*domain.Listing, error)
	GetByMint(ctx context.Context, tokenMint string) (*domain.Listing, error)
	Recheck(ctx context.Context, tokenMint string) (*domain.Listing, error)
}

type QuoteProvider interface {
	SolToUSD(ctx context.Context) (float64, error)
	Convert(ctx context.Context, amount float64, currency string) (usd, sol float64, err error)
}

type SyncRunner interface {
	RecheckSkipped(ctx context.Context, before time.Time) (int, error)
}

type Handler struct {
	tracer   trace.Tracer
	listings ListingDirectory
	quotes   QuoteProvider
	syncer   SyncRunner
	apiKey   string
}

func New(tracer trace.Tracer, listings ListingDirectory, quotes QuoteProvider, syncer SyncRunner, apiKey string) *Handler {
	return &Handler{
		tracer:   tracer,
		listings: listings,
		quotes:   quotes,
		syncer:   syncer,
		apiKey:   apiKey,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(h.apiKey))
	api.GET("/listings", h.GetListings)
	api.GET("/listings/:mint", h.GetListing)
	api.POST("/listings/:mint/recheck", h.RecheckListing)
	api.POST("/recheck-skipped", h.TriggerSkipRecheck)
	api.GET("/quote", h.GetQuote)
}
