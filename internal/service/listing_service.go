package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"card-sniper/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const listingCacheTTL = 30 * time.Second

type ListingReader interface {
	GetActive(ctx context.Context, tier domain.Tier, limit int) ([]*domain.Listing, error)
	GetByMint(ctx context.Context, tokenMint string) (*domain.Listing, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type Reprocessor interface {
	Reprocess(ctx context.Context, l *domain.Listing, sendAlert bool) (domain.Tier, error)
}

// ListingService is the read side for the API and bot, with a short Redis
// cache in front of the store. It also exposes on-demand re-analysis.
type ListingService struct {
	tracer    trace.Tracer
	repo      ListingReader
	redis     RedisClient
	processor Reprocessor
}

func NewListingService(tracer trace.Tracer, repo ListingReader, redisClient RedisClient, processor Reprocessor) *ListingService {
	return &ListingService{
		tracer:    tracer,
		repo:      repo,
		redis:     redisClient,
		processor: processor,
	}
}

// GetActive returns live listings, optionally filtered by tier.
// Falls back to the store when the cache is cold.
func (s *ListingService) GetActive(ctx context.Context, tier domain.Tier, limit int) ([]*domain.Listing, error) {
	_, span := s.tracer.Start(ctx, "listing-service.get-active")
	defer span.End()

	if tier != "" && !tier.IsValid() {
		return nil, fmt.Errorf("unsupported tier: %s", tier)
	}

	key := fmt.Sprintf("listings:%s:%d", tier, limit)
	if s.redis != nil {
		cached, err := s.getListingsCache(ctx, key)
		if err != nil {
			log.Printf("redis cache read error: %v", err)
		}
		if cached != nil {
			return cached, nil
		}
	}

	listings, err := s.repo.GetActive(ctx, tier, limit)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.setListingsCache(ctx, key, listings); err != nil {
			log.Printf("redis cache write error: %v", err)
		}
	}
	return listings, nil
}

func (s *ListingService) GetByMint(ctx context.Context, tokenMint string) (*domain.Listing, error) {
	_, span := s.tracer.Start(ctx, "listing-service.get-by-mint")
	defer span.End()

	return s.repo.GetByMint(ctx, tokenMint)
}

// Recheck forces a fresh valuation and classification for one mint,
// with alerts enabled, and drops any cached read results.
func (s *ListingService) Recheck(ctx context.Context, tokenMint string) (*domain.Listing, error) {
	ctx, span := s.tracer.Start(ctx, "listing-service.recheck")
	defer span.End()

	l, err := s.repo.GetByMint(ctx, tokenMint)
	if err != nil {
		return nil, err
	}

	if _, err := s.processor.Reprocess(ctx, l, true); err != nil {
		return nil, err
	}

	if s.redis != nil {
		keys := []string{fmt.Sprintf("listings::%d", defaultListLimit)}
		for _, tier := range []domain.Tier{domain.TierAutobuy, domain.TierGood, domain.TierOK, domain.TierSkip} {
			keys = append(keys, fmt.Sprintf("listings:%s:%d", tier, defaultListLimit))
		}
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			log.Printf("redis cache invalidation error: %v", err)
		}
	}
	return l, nil
}

const defaultListLimit = 50

func (s *ListingService) setListingsCache(ctx context.Context, key string, listings []*domain.Listing) error {
	data, err := json.Marshal(listings)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, listingCacheTTL).Err()
}

func (s *ListingService) getListingsCache(ctx context.Context, key string) ([]*domain.Listing, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var listings []*domain.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}
