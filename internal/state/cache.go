// Package state is the redis-backed cache for area armed state, device
// display state, and the short armed-transition history that temporal rule
// conditions evaluate against.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/austin-smith/fusion-bridge-sub012/internal/model"
)

const historyRetention = 24 * time.Hour

type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache { return &Cache{rdb: rdb} }

func armedKey(areaID uuid.UUID) string   { return "area:" + areaID.String() + ":armed" }
func historyKey(areaID uuid.UUID) string { return "area:" + areaID.String() + ":armed_history" }

func deviceKey(connectorID, externalID string) string {
	return "device:" + connectorID + ":" + externalID + ":display"
}

// SetAreaArmed records the area's current armed mode and appends a
// transition to the history set consulted by temporal conditions.
func (c *Cache) SetAreaArmed(ctx context.Context, areaID uuid.UUID, mode model.ArmedState) error {
	now := time.Now().UTC()
	member := fmt.Sprintf("%s:%d", mode, now.UnixNano())
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, armedKey(areaID), string(mode), 0)
	pipe.ZAdd(ctx, historyKey(areaID), redis.Z{Score: float64(now.Unix()), Member: member})
	pipe.ZRemRangeByScore(ctx, historyKey(areaID), "0", fmt.Sprintf("%d", now.Add(-historyRetention).Unix()))
	_, err := pipe.Exec(ctx)
	return err
}

// AreaArmed returns the area's current armed mode; ArmedUnknown when the
// area has never been armed or disarmed.
func (c *Cache) AreaArmed(ctx context.Context, areaID uuid.UUID) (model.ArmedState, error) {
	v, err := c.rdb.Get(ctx, armedKey(areaID)).Result()
	if errors.Is(err, redis.Nil) {
		return model.ArmedUnknown, nil
	}
	if err != nil {
		return model.ArmedUnknown, err
	}
	return model.ArmedState(v), nil
}

// ArmedWithin reports whether the area entered an armed mode inside the
// window ending now. The current mode counts: an area armed before the
// window and still armed satisfies the condition.
func (c *Cache) ArmedWithin(ctx context.Context, areaID uuid.UUID, window time.Duration) (bool, error) {
	return c.transitionWithin(ctx, areaID, window, func(m model.ArmedState) bool { return m.Armed() })
}

// DisarmedWithin is the disarm counterpart of ArmedWithin.
func (c *Cache) DisarmedWithin(ctx context.Context, areaID uuid.UUID, window time.Duration) (bool, error) {
	return c.transitionWithin(ctx, areaID, window, func(m model.ArmedState) bool { return m == model.Disarmed })
}

func (c *Cache) transitionWithin(ctx context.Context, areaID uuid.UUID, window time.Duration, match func(model.ArmedState) bool) (bool, error) {
	current, err := c.AreaArmed(ctx, areaID)
	if err != nil {
		return false, err
	}
	if match(current) {
		return true, nil
	}
	min := fmt.Sprintf("%d", time.Now().UTC().Add(-window).Unix())
	members, err := c.rdb.ZRangeByScore(ctx, historyKey(areaID), &redis.ZRangeBy{Min: min, Max: "+inf"}).Result()
	if err != nil {
		return false, err
	}
	for _, m := range members {
		mode := m
		if i := strings.LastIndex(m, ":"); i >= 0 {
			mode = m[:i]
		}
		if match(model.ArmedState(mode)) {
			return true, nil
		}
	}
	return false, nil
}

// SetDeviceState caches the most recent display state for a device.
func (c *Cache) SetDeviceState(ctx context.Context, connectorID, externalID, display string) error {
	return c.rdb.Set(ctx, deviceKey(connectorID, externalID), display, 0).Err()
}

// DeviceState returns the cached display state, empty when unseen.
func (c *Cache) DeviceState(ctx context.Context, connectorID, externalID string) (string, error) {
	v, err := c.rdb.Get(ctx, deviceKey(connectorID, externalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// ClaimMessage marks a vendor message id as processed. Returns false when
// the id was already claimed inside the TTL, which is how redelivered
// MQTT/WebSocket payloads are suppressed after a reconnect.
func (c *Cache) ClaimMessage(ctx context.Context, connectorID, messageID string, ttl time.Duration) (bool, error) {
	key := "msg:" + connectorID + ":" + messageID
	return c.rdb.SetNX(ctx, key, "1", ttl).Result()
}
