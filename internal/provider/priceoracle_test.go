package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func testPriceOracle(fetch func(ctx context.Context) (float64, error)) *PriceOracle {
	o := NewPriceOracle(trace.NewNoopTracerProvider().Tracer("test"))
	o.fetch = fetch
	return o
}

func TestSolToUSDCachesWithinTTL(t *testing.T) {
	t.Parallel()

	calls := 0
	oracle := testPriceOracle(func(ctx context.Context) (float64, error) {
		calls++
		return 150, nil
	})

	clock := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	oracle.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		price, err := oracle.SolToUSD(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if price != 150 {
			t.Fatalf("expected 150, got %v", price)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single upstream call within the TTL, got %d", calls)
	}

	clock = clock.Add(priceCacheTTL + time.Second)
	if _, err := oracle.SolToUSD(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected a refresh after the TTL, got %d calls", calls)
	}
}

func TestSolToUSDServesStaleOnFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	oracle := testPriceOracle(func(ctx context.Context) (float64, error) {
		calls++
		if calls > 1 {
			return 0, errors.New("upstream down")
		}
		return 150, nil
	})

	clock := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	oracle.now = func() time.Time { return clock }

	if _, err := oracle.SolToUSD(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock = clock.Add(priceCacheTTL + time.Second)
	price, err := oracle.SolToUSD(context.Background())
	if err != nil {
		t.Fatalf("stale value should be served on refresh failure: %v", err)
	}
	if price != 150 {
		t.Fatalf("expected cached 150, got %v", price)
	}
}

func TestSolToUSDErrorsWhenNeverFetched(t *testing.T) {
	t.Parallel()

	oracle := testPriceOracle(func(ctx context.Context) (float64, error) {
		return 0, errors.New("upstream down")
	})

	if _, err := oracle.SolToUSD(context.Background()); err == nil {
		t.Fatal("expected error when no price was ever fetched")
	}
}

func TestConvert(t *testing.T) {
	t.Parallel()

	oracle := testPriceOracle(func(ctx context.Context) (float64, error) {
		return 200, nil
	})

	usd, sol, err := oracle.Convert(context.Background(), 2, "SOL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usd != 400 || sol != 2 {
		t.Fatalf("SOL conversion wrong: usd=%v sol=%v", usd, sol)
	}

	usd, sol, err = oracle.Convert(context.Background(), 100, "usdc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if usd != 100 || sol != 0.5 {
		t.Fatalf("USDC conversion wrong: usd=%v sol=%v", usd, sol)
	}

	if _, _, err := oracle.Convert(context.Background(), 1, "BTC"); err == nil {
		t.Fatal("expected error for unsupported currency")
	}
}
