// README: Live driver positions in a Redis GEO set.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetdesk/internal/types"
)

const (
	driverGeoKey = "fleetdesk:drivers:geo"
	heartbeatKey = "fleetdesk:drivers:%s:seen"
	heartbeatTTL = 15 * time.Minute
	radiusUnit   = "km"
)

// Locator indexes positions of on-duty drivers. It holds no ledger state.
type Locator interface {
	Upsert(ctx context.Context, id types.ID, p types.Point) error
	Remove(ctx context.Context, id types.ID) error
	// Within returns driver ids inside radiusKm of p, nearest first.
	Within(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

type RedisLocator struct {
	redis *redis.Client
}

var _ Locator = (*RedisLocator)(nil)

func NewRedisLocator(client *redis.Client) *RedisLocator {
	return &RedisLocator{redis: client}
}

func (l *RedisLocator) Upsert(ctx context.Context, id types.ID, p types.Point) error {
	pipe := l.redis.Pipeline()
	pipe.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	})
	pipe.Set(ctx, seenKey(id), time.Now().UTC().Format(time.RFC3339), heartbeatTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (l *RedisLocator) Remove(ctx context.Context, id types.ID) error {
	pipe := l.redis.Pipeline()
	pipe.ZRem(ctx, driverGeoKey, string(id))
	pipe.Del(ctx, seenKey(id))
	_, err := pipe.Exec(ctx)
	return err
}

// Within skips members whose heartbeat expired; their positions are stale.
func (l *RedisLocator) Within(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	names, err := l.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: radiusUnit,
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []types.ID{}, nil
	}

	pipe := l.redis.Pipeline()
	checks := make([]*redis.IntCmd, len(names))
	for i, n := range names {
		checks[i] = pipe.Exists(ctx, seenKey(types.ID(n)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	ids := make([]types.ID, 0, len(names))
	for i, n := range names {
		if checks[i].Val() > 0 {
			ids = append(ids, types.ID(n))
		}
	}
	return ids, nil
}

func seenKey(id types.ID) string {
	return fmt.Sprintf(heartbeatKey, string(id))
}
