package service

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"card-sniper/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	confidenceFloor  = 60.0
	autobuyThreshold = -30.0
	goodThreshold    = -20.0
	okThreshold      = -15.0

	// Enrichment younger than this is reused instead of re-fetched.
	defaultFreshWindow = 7 * 24 * time.Hour
)

type ValuationProvider interface {
	GetValuation(ctx context.Context, certID string, gradeNum float64, company string) (*domain.Valuation, error)
}

type PriceConverter interface {
	Convert(ctx context.Context, amount float64, currency string) (usd, sol float64, err error)
}

type EnrichmentStore interface {
	UpdateEnrichment(ctx context.Context, l *domain.Listing) error
}

// VerificationRing receives mints worth periodic liveness checks.
type VerificationRing interface {
	Push(tokenMint string)
}

type AlertSink interface {
	Publish(n *domain.Notification)
}

// Processor turns one listing plus a valuation and an exchange rate into a
// tier, persisting the result and optionally emitting one alert.
type Processor struct {
	tracer      trace.Tracer
	valuations  ValuationProvider
	prices      PriceConverter
	store       EnrichmentStore
	ring        VerificationRing
	sink        AlertSink
	freshWindow time.Duration
	now         func() time.Time
}

func NewProcessor(
	tracer trace.Tracer,
	valuations ValuationProvider,
	prices PriceConverter,
	store EnrichmentStore,
	ring VerificationRing,
	sink AlertSink,
) *Processor {
	return &Processor{
		tracer:      tracer,
		valuations:  valuations,
		prices:      prices,
		store:       store,
		ring:        ring,
		sink:        sink,
		freshWindow: defaultFreshWindow,
		now:         time.Now,
	}
}

// SetFreshWindow overrides how long stored enrichment is reused.
func (p *Processor) SetFreshWindow(d time.Duration) {
	p.freshWindow = d
}

// Process classifies a listing, reusing stored enrichment when it is still
// fresh. A returned error means a transient dependency failure; the tier is
// left unchanged so the next cycle can retry.
func (p *Processor) Process(ctx context.Context, l *domain.Listing, sendAlert bool) (domain.Tier, error) {
	return p.process(ctx, l, sendAlert, false)
}

// Reprocess forces a fresh valuation fetch regardless of enrichment age.
func (p *Processor) Reprocess(ctx context.Context, l *domain.Listing, sendAlert bool) (domain.Tier, error) {
	return p.process(ctx, l, sendAlert, true)
}

func (p *Processor) process(ctx context.Context, l *domain.Listing, sendAlert, force bool) (tier domain.Tier, err error) {
	ctx, span := p.tracer.Start(ctx, "processor.process")
	defer span.End()

	start := p.now()

	// One bad listing must never take down the loop that called us.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("processing listing %s panicked: %v\n%s", l.ListingID, r, debug.Stack())
			p.persistTier(ctx, l, domain.TierError)
			tier, err = domain.TierError, nil
		}
	}()

	var v *domain.Valuation
	if !force && p.enrichmentFresh(l) {
		v = l.CachedValuation()
	} else {
		v, err = p.valuations.GetValuation(ctx, l.GradingID, l.GradeNum, l.GradingCompany)
		if err != nil {
			// Transient. Tier untouched so the listing stays retryable.
			return l.Tier, fmt.Errorf("valuation for listing %s: %w", l.ListingID, err)
		}
		if v == nil {
			// Cert unknown to the valuation platform. Permanent skip,
			// enrichment stays null.
			p.persistTier(ctx, l, domain.TierSkip)
			return domain.TierSkip, nil
		}
		applyValuation(l, v)
	}

	priceUSD, priceSOL, err := p.prices.Convert(ctx, l.PriceAmount, l.PriceCurrency)
	if err != nil {
		return l.Tier, fmt.Errorf("price conversion for listing %s: %w", l.ListingID, err)
	}

	tier, level := classify(priceUSD, v)
	p.persistTier(ctx, l, tier)

	if tier != domain.TierSkip {
		p.ring.Push(l.TokenMint)
	}

	if sendAlert && level != "" {
		diff := diffPercent(priceUSD, v.Value)
		p.sink.Publish(&domain.Notification{
			Listing:       l,
			Valuation:     v,
			Tier:          tier,
			AlertLevel:    level,
			PriceUSD:      priceUSD,
			PriceSOL:      priceSOL,
			DifferenceStr: fmt.Sprintf("%.2f%%", diff),
			Duration:      p.now().Sub(start),
		})
	}

	return tier, nil
}

func (p *Processor) enrichmentFresh(l *domain.Listing) bool {
	return l.Enriched() &&
		l.LastAnalyzedAt != nil &&
		p.now().Sub(*l.LastAnalyzedAt) < p.freshWindow
}

// persistTier writes tier, enrichment and the analysis timestamp as one
// update. A write failure is logged, not returned: the classification itself
// succeeded and will be recomputed identically next cycle.
func (p *Processor) persistTier(ctx context.Context, l *domain.Listing, tier domain.Tier) {
	l.Tier = tier
	now := p.now()
	l.LastAnalyzedAt = &now
	if err := p.store.UpdateEnrichment(ctx, l); err != nil {
		log.Printf("persisting tier %s for listing %s: %v", tier, l.ListingID, err)
	}
}

func applyValuation(l *domain.Listing, v *domain.Valuation) {
	l.AssetID = &v.AssetID
	l.Value = &v.Value
	l.AvgSalePrice = &v.AvgPrice
	l.Supply = &v.Supply
	l.ValueLower = &v.LowerBound
	l.ValueUpper = &v.UpperBound
	l.Confidence = &v.Confidence
}

func diffPercent(priceUSD, value float64) float64 {
	return (priceUSD - value) / value * 100
}

// classify maps price-vs-value divergence onto a tier. The confidence gate
// and the positivity checks come first: a valuation we cannot trust is a
// skip, not a deal.
func classify(priceUSD float64, v *domain.Valuation) (domain.Tier, domain.AlertLevel) {
	if v.Confidence <= confidenceFloor || v.Value <= 0 || priceUSD <= 0 {
		return domain.TierSkip, ""
	}

	diff := diffPercent(priceUSD, v.Value)
	switch {
	case diff <= autobuyThreshold:
		return domain.TierAutobuy, domain.AlertGold
	case diff <= goodThreshold:
		return domain.TierGood, domain.AlertHigh
	case diff <= okThreshold:
		return domain.TierOK, domain.AlertInfo
	default:
		return domain.TierSkip, ""
	}
}
