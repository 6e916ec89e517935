// Package cache publishes the latest view of every coin to Redis so other
// processes can read it without talking to the engine.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/serp1412/coinfeed/internal/domain"
	"github.com/serp1412/coinfeed/internal/telemetry"
)

const (
	KeyPrefix     = "coinfeed:coin:"
	DefaultTTL    = 2 * time.Minute
	DefaultBuffer = 256
)

// kv is the subset of *redis.Client the publisher needs.
type kv interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Publisher writes coin snapshots from a single background worker.
// Enqueue never blocks the caller; when the queue is full the snapshot is dropped
// and the next change of the same coin supersedes it anyway.
type Publisher struct {
	client kv
	ttl    time.Duration
	queue  chan domain.Coin

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewRedisPublisher connects to Redis and checks it is reachable.
func NewRedisPublisher(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewPublisher(rdb, ttl, DefaultBuffer), nil
}

func NewPublisher(client kv, ttl time.Duration, buffer int) *Publisher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Publisher{
		client: client,
		ttl:    ttl,
		queue:  make(chan domain.Coin, buffer),
	}
}

func Key(id string) string { return KeyPrefix + id }

// Payload is the JSON stored under Key(c.ID).
func Payload(c domain.Coin) ([]byte, error) {
	return json.Marshal(c)
}

// Start launches the write loop. It returns when ctx is done or Close closes
// the queue; whatever is still queued then is written by Close.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-p.queue:
				if !ok {
					return
				}
				p.publish(ctx, c)
			}
		}
	}()
}

func (p *Publisher) publish(ctx context.Context, c domain.Coin) {
	if err := p.write(ctx, c); err != nil {
		telemetry.CachePublishFailed()
		slog.Warn("Cache publish failed", slog.String("id", c.ID), slog.Any("error", err))
	}
}

func (p *Publisher) write(ctx context.Context, c domain.Coin) error {
	b, err := Payload(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.client.Set(ctx, Key(c.ID), b, p.ttl).Err()
}

// Enqueue schedules c for publishing. Safe to call from the engine's update callback.
func (p *Publisher) Enqueue(c domain.Coin) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- c:
	default:
		telemetry.CachePublishFailed()
	}
}

// Close stops accepting snapshots, writes every snapshot still queued and
// closes the client. It flushes even after the Start context was cancelled.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	for c := range p.queue {
		p.publish(context.Background(), c)
	}
	return p.client.Close()
}
