package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shuttle/internal/domain"
)

// CacheStore caches daily trip lookups in Redis.
type CacheStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new CacheStore. A non-positive ttl uses TripCacheTTL.
func NewCacheStore(client *redis.Client, ttl time.Duration) *CacheStore {
	if ttl <= 0 {
		ttl = TripCacheTTL
	}
	return &CacheStore{client: client, ttl: ttl}
}

// TripCacheTTL bounds how stale a dashboard read can be if an invalidation is lost.
const TripCacheTTL = 30 * time.Second

const tripCachePrefix = "cache:trip:"

// CachedTrip is the cached form of a trip. It never carries the token hash.
type CachedTrip struct {
	ID               string    `json:"id"`
	RouteID          string    `json:"route_id"`
	Date             string    `json:"date"`
	Status           string    `json:"status"`
	PlannedCount     int       `json:"planned_count"`
	BoardedCount     int       `json:"boarded_count"`
	DisembarkedCount int       `json:"disembarked_count"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// DailyTripKey returns the cache key of a route's trip on a date.
func DailyTripKey(routeID string, date time.Time) string {
	return tripCachePrefix + routeID + ":" + date.Format(domain.DateLayout)
}

// NewCachedTrip converts a trip into its cached form.
func NewCachedTrip(trip *domain.Trip) *CachedTrip {
	return &CachedTrip{
		ID:               trip.ID,
		RouteID:          trip.RouteID,
		Date:             trip.Date.Format(domain.DateLayout),
		Status:           string(trip.Status),
		PlannedCount:     trip.PlannedCount,
		BoardedCount:     trip.BoardedCount,
		DisembarkedCount: trip.DisembarkedCount,
		StartedAt:        trip.StartedAt,
		FinishedAt:       trip.FinishedAt,
		CreatedAt:        trip.CreatedAt,
	}
}

// Trip converts the cached form back into a domain trip.
func (c *CachedTrip) Trip() (*domain.Trip, error) {
	date, err := domain.ParseDate(c.Date)
	if err != nil {
		return nil, err
	}
	status := domain.TripStatus(c.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("cached trip %s: unknown status %q", c.ID, c.Status)
	}
	return &domain.Trip{
		ID:               c.ID,
		RouteID:          c.RouteID,
		Date:             date,
		Status:           status,
		PlannedCount:     c.PlannedCount,
		BoardedCount:     c.BoardedCount,
		DisembarkedCount: c.DisembarkedCount,
		StartedAt:        c.StartedAt,
		FinishedAt:       c.FinishedAt,
		CreatedAt:        c.CreatedAt,
	}, nil
}

// GetDailyTrip retrieves a route's trip from cache. A miss returns nil, nil.
func (s *CacheStore) GetDailyTrip(ctx context.Context, routeID string, date time.Time) (*domain.Trip, error) {
	data, err := s.client.Get(ctx, DailyTripKey(routeID, date)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached CachedTrip
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return cached.Trip()
}

// SetDailyTrip stores a trip in cache.
func (s *CacheStore) SetDailyTrip(ctx context.Context, trip *domain.Trip) error {
	data, err := json.Marshal(NewCachedTrip(trip))
	if err != nil {
		return err
	}
	return s.client.Set(ctx, DailyTripKey(trip.RouteID, trip.Date), data, s.ttl).Err()
}

// InvalidateDailyTrip removes a route's trip from cache.
func (s *CacheStore) InvalidateDailyTrip(ctx context.Context, routeID string, date time.Time) error {
	return s.client.Del(ctx, DailyTripKey(routeID, date)).Err()
}
