package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"card-sniper/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	solPriceURL   = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"
	priceCacheTTL = 5 * time.Minute
)

// PriceOracle memoizes the SOL/USD spot rate in a single mutex-guarded slot.
// A refresh failure serves the last good value indefinitely; staleness beats
// unavailability for an exchange rate.
type PriceOracle struct {
	tracer trace.Tracer
	ttl    time.Duration
	now    func() time.Time
	fetch  func(ctx context.Context) (float64, error)

	mu        sync.Mutex
	price     float64
	fetchedAt time.Time
}

func NewPriceOracle(tracer trace.Tracer) *PriceOracle {
	client := &http.Client{Timeout: 10 * time.Second}
	return &PriceOracle{
		tracer: tracer,
		ttl:    priceCacheTTL,
		now:    time.Now,
		fetch: func(ctx context.Context) (float64, error) {
			return fetchSolPrice(ctx, client)
		},
	}
}

// SolToUSD returns the cached rate, refreshing it when the TTL has lapsed.
// The lock covers the whole check-and-refresh sequence so concurrent callers
// cannot trigger duplicate upstream calls.
func (o *PriceOracle) SolToUSD(ctx context.Context) (float64, error) {
	_, span := o.tracer.Start(ctx, "price-oracle.sol-to-usd")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.now().Sub(o.fetchedAt) > o.ttl {
		price, err := o.fetch(ctx)
		if err != nil {
			log.Printf("SOL price refresh failed, serving cached value: %v", err)
		} else {
			o.price = price
			o.fetchedAt = o.now()
		}
	}

	if o.price == 0 {
		return 0, errors.New("no SOL price available")
	}
	return o.price, nil
}

// Convert returns the listing price in both currencies.
func (o *PriceOracle) Convert(ctx context.Context, amount float64, currency string) (usd, sol float64, err error) {
	rate, err := o.SolToUSD(ctx)
	if err != nil {
		return 0, 0, err
	}

	switch strings.ToUpper(currency) {
	case domain.CurrencySOL:
		return amount * rate, amount, nil
	case domain.CurrencyUSDC:
		return amount, amount / rate, nil
	default:
		return 0, 0, fmt.Errorf("unsupported currency %q", currency)
	}
}

func fetchSolPrice(ctx context.Context, client *http.Client) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, solPriceURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("coingecko API error %d: %s", resp.StatusCode, string(body))
	}

	var raw map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, fmt.Errorf("parse SOL price: %w", err)
	}
	price, ok := raw["solana"]["usd"]
	if !ok || price <= 0 {
		return 0, errors.New("SOL price missing from response")
	}
	return price, nil
}
