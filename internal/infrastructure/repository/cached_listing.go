package repository

import (
	"context"
	"encoding/json"
	"time"

	"landlease/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const listingCachePrefix = "listing:"

// CachedListingRepository serves GetByID from Redis and falls through to Next on a miss.
// Listings are immutable, so only Delete needs to invalidate. Cache failures are logged and
// never fail the call.
type CachedListingRepository struct {
	Next domain.ListingRepository
	Rdb  *redis.Client
	TTL  time.Duration
}

var _ domain.ListingRepository = (*CachedListingRepository)(nil)

func (r *CachedListingRepository) Create(ctx context.Context, l *domain.Listing) (string, error) {
	return r.Next.Create(ctx, l)
}

func (r *CachedListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Listing, error) {
	return r.Next.ListByOwner(ctx, ownerID)
}

func (r *CachedListingRepository) Search(ctx context.Context, c domain.SearchCriteria) ([]domain.Listing, error) {
	return r.Next.Search(ctx, c)
}

func (r *CachedListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	data, err := r.Rdb.Get(ctx, listingCachePrefix+id).Bytes()
	if err == nil {
		var l domain.Listing
		if jsonErr := json.Unmarshal(data, &l); jsonErr == nil {
			return &l, nil
		}
	} else if err != redis.Nil {
		log.Warn().Err(err).Str("listing_id", id).Msg("listing cache read failed")
	}

	l, err := r.Next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(l); err == nil {
		if err := r.Rdb.Set(ctx, listingCachePrefix+id, b, r.ttl()).Err(); err != nil {
			log.Warn().Err(err).Str("listing_id", id).Msg("listing cache write failed")
		}
	}
	return l, nil
}

func (r *CachedListingRepository) Delete(ctx context.Context, id string) error {
	err := r.Next.Delete(ctx, id)
	if delErr := r.Rdb.Del(ctx, listingCachePrefix+id).Err(); delErr != nil {
		log.Warn().Err(delErr).Str("listing_id", id).Msg("listing cache invalidation failed")
	}
	return err
}

func (r *CachedListingRepository) ttl() time.Duration {
	if r.TTL <= 0 {
		return 10 * time.Minute
	}
	return r.TTL
}
