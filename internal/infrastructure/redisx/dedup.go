package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupKeyPrefix = "dedup:"

// Deduplicator records handled event ids per consumer so redelivered events are skipped.
type Deduplicator struct {
	client   redis.Cmdable
	consumer string
	ttl      time.Duration
}

func NewDeduplicator(client redis.Cmdable, consumer string, ttl time.Duration) *Deduplicator {
	return &Deduplicator{client: client, consumer: consumer, ttl: ttl}
}

func (d *Deduplicator) key(eventID string) string {
	return dedupKeyPrefix + d.consumer + ":" + eventID
}

// Claim returns false when eventID was already claimed by this consumer.
func (d *Deduplicator) Claim(ctx context.Context, eventID string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(eventID), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", eventID, err)
	}
	return ok, nil
}

// Release forgets a claim so a failed handler can see the event again.
func (d *Deduplicator) Release(ctx context.Context, eventID string) error {
	return d.client.Del(ctx, d.key(eventID)).Err()
}
