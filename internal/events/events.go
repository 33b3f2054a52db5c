// Package events publishes link lifecycle and click events to a message
// broker. Publication is fire-and-forget: a broker failure is logged and
// never fails the originating request.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vrsjns/bearlink-sub000/internal/logger"
	"github.com/vrsjns/bearlink-sub000/internal/models"
)

const (
	TopicCreated = "links.created"
	TopicUpdated = "links.updated"
	TopicDeleted = "links.deleted"
	TopicClicked = "links.clicked"
)

// ClickEvent is the payload published for each counted click.
type ClickEvent struct {
	ShortID   string `json:"shortId"`
	IP        string `json:"ip"`
	Country   string `json:"country,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Referer   string `json:"referer,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.rdb.Publish(ctx, topic, payload).Err()
}

// Emitter is safe to use when nil: every method becomes a no-op, which is
// how a deployment without a broker runs.
type Emitter struct {
	pub Publisher
}

func NewEmitter(pub Publisher) *Emitter {
	if pub == nil {
		return nil
	}
	return &Emitter{pub: pub}
}

// LinkCreated, LinkUpdated and LinkDeleted publish the link record. The
// password hash never reaches the wire: the Link JSON encoding omits it.
func (e *Emitter) LinkCreated(ctx context.Context, link models.Link) { e.emit(ctx, TopicCreated, link) }
func (e *Emitter) LinkUpdated(ctx context.Context, link models.Link) { e.emit(ctx, TopicUpdated, link) }
func (e *Emitter) LinkDeleted(ctx context.Context, link models.Link) { e.emit(ctx, TopicDeleted, link) }

func (e *Emitter) LinkClicked(ctx context.Context, ev ClickEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().Unix()
	}
	e.emit(ctx, TopicClicked, ev)
}

func (e *Emitter) emit(ctx context.Context, topic string, payload interface{}) {
	if e == nil || e.pub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Warnw("event payload marshal failed", "topic", topic, "error", err)
		return
	}
	if err := e.pub.Publish(ctx, topic, data); err != nil {
		logger.Log.Warnw("event publish failed", "topic", topic, "error", err)
	}
}
