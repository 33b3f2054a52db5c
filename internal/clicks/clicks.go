// Package clicks decides whether an inbound hit counts as a trackable click.
// Bots never count; humans count once per (slug, ip, hour). A broken dedup
// store fails open so degraded infrastructure loses dedup accuracy, not
// telemetry.
package clicks

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vrsjns/bearlink-sub000/internal/logger"
)

const dedupWindow = time.Hour

var botPattern = regexp.MustCompile(`(?i)bot|crawl|spider|slurp|bingpreview|facebookexternalhit|whatsapp|telegram|discord|curl|wget|python-requests|headless|lighthouse|pingdom`)

// DedupStore is an atomic set-if-absent with expiry. Ok is false when the
// key was already present.
type DedupStore interface {
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type RedisDedup struct {
	rdb *redis.Client
}

func NewRedisDedup(rdb *redis.Client) *RedisDedup {
	return &RedisDedup{rdb: rdb}
}

func (d *RedisDedup) SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return d.rdb.SetNX(ctx, key, 1, ttl).Result()
}

type Tracker struct {
	store DedupStore
}

func NewTracker(store DedupStore) *Tracker {
	return &Tracker{store: store}
}

// IsBot marks crawler user agents and absent user agents as non-human.
func IsBot(userAgent string) bool {
	return userAgent == "" || botPattern.MatchString(userAgent)
}

// ShouldCount reports whether this hit is a countable click. Bots never
// count. The first hit per (shortID, ip, hour bucket) counts; repeats in the
// same hour are skipped. Dedup store errors count the click anyway.
func (t *Tracker) ShouldCount(ctx context.Context, shortID, ip, userAgent string, now time.Time) bool {
	if IsBot(userAgent) {
		return false
	}
	if t == nil || t.store == nil {
		return true
	}

	key := fmt.Sprintf("dedup:%s:%s:%s", shortID, ip, now.UTC().Format("2006010215"))
	first, err := t.store.SetIfAbsent(ctx, key, dedupWindow)
	if err != nil {
		logger.Log.Warnw("dedup store unavailable, counting click", "key", key, "error", err)
		return true
	}
	return first
}
