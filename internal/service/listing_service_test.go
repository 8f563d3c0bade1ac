package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"card-sniper/internal/domain"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	data   map[string][]byte
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

type mockListingReader struct {
	listings       []*domain.Listing
	byMint         map[string]*domain.Listing
	getActiveCalls int
}

func (m *mockListingReader) GetActive(ctx context.Context, tier domain.Tier, limit int) ([]*domain.Listing, error) {
	m.getActiveCalls++
	return m.listings, nil
}

func (m *mockListingReader) GetByMint(ctx context.Context, tokenMint string) (*domain.Listing, error) {
	l, ok := m.byMint[tokenMint]
	if !ok {
		return nil, errors.New("no rows")
	}
	return l, nil
}

type mockReprocessor struct {
	calls int
	err   error
}

func (m *mockReprocessor) Reprocess(ctx context.Context, l *domain.Listing, sendAlert bool) (domain.Tier, error) {
	m.calls++
	return domain.TierGood, m.err
}

func TestListingService_GetActiveCachesResult(t *testing.T) {
	t.Parallel()

	reader := &mockListingReader{listings: []*domain.Listing{{ListingID: "1", Tier: domain.TierGood}}}
	svc := NewListingService(testTracer, reader, newFakeRedis(), &mockReprocessor{})

	for i := 0; i < 3; i++ {
		got, err := svc.GetActive(context.Background(), domain.TierGood, 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].ListingID != "1" {
			t.Fatalf("unexpected listings: %+v", got)
		}
	}
	if reader.getActiveCalls != 1 {
		t.Fatalf("expected a single store read, got %d", reader.getActiveCalls)
	}
}

func TestListingService_GetActiveRejectsBadTier(t *testing.T) {
	t.Parallel()

	svc := NewListingService(testTracer, &mockListingReader{}, nil, &mockReprocessor{})
	if _, err := svc.GetActive(context.Background(), "LEGENDARY", 50); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestListingService_GetActiveWorksWithoutRedis(t *testing.T) {
	t.Parallel()

	reader := &mockListingReader{listings: []*domain.Listing{{ListingID: "1"}}}
	svc := NewListingService(testTracer, reader, nil, &mockReprocessor{})

	got, err := svc.GetActive(context.Background(), "", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unexpected listings: %+v", got)
	}
}

func TestListingService_RecheckInvalidatesCache(t *testing.T) {
	t.Parallel()

	cache := newFakeRedis()
	reader := &mockListingReader{
		listings: []*domain.Listing{{ListingID: "1", TokenMint: "mint-1"}},
		byMint:   map[string]*domain.Listing{"mint-1": {ListingID: "1", TokenMint: "mint-1"}},
	}
	reprocessor := &mockReprocessor{}
	svc := NewListingService(testTracer, reader, cache, reprocessor)

	if _, err := svc.GetActive(context.Background(), domain.TierGood, defaultListLimit); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cache.data) == 0 {
		t.Fatal("expected warm cache before recheck")
	}

	if _, err := svc.Recheck(context.Background(), "mint-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reprocessor.calls != 1 {
		t.Fatalf("expected one forced reprocess, got %d", reprocessor.calls)
	}
	if len(cache.data) != 0 {
		t.Fatalf("expected cache invalidated, still has %d entries", len(cache.data))
	}
}

func TestListingService_RecheckUnknownMint(t *testing.T) {
	t.Parallel()

	svc := NewListingService(testTracer, &mockListingReader{}, nil, &mockReprocessor{})
	if _, err := svc.Recheck(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown mint")
	}
}
