package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

const redisChangeChannel = "navportal:storage"

// Redis keeps values as plain strings and fans out changes over a pub/sub
// channel, so every portal process sharing the instance sees them.
type Redis struct {
	client   *redis.Client
	ctx      context.Context
	cancel   context.CancelFunc
	watchers watchers

	subOnce    sync.Once
	subscribed atomic.Bool
	subDone    chan struct{}
}

func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 3

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Println("[STORAGE] Redis connected")
	return NewRedisClient(client), nil
}

// NewRedisClient wraps an existing client. Close closes the client.
func NewRedisClient(client *redis.Client) *Redis {
	ctx, cancel := context.WithCancel(context.Background())
	return &Redis{
		client:  client,
		ctx:     ctx,
		cancel:  cancel,
		subDone: make(chan struct{}),
	}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.publish(ctx, Change{Key: key})
	return nil
}

func (r *Redis) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	// Delete in batches to stay easy on memory, as with large prefix sweeps.
	const batchSize = 100
	pipe := r.client.Pipeline()
	count := 0
	for _, k := range keys {
		pipe.Del(ctx, k)
		count++
		if count >= batchSize {
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			count = 0
		}
	}
	if count > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
	}

	for _, k := range keys {
		r.publish(ctx, Change{Key: k, Deleted: true})
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	iter := r.client.Scan(ctx, 0, escapeGlob(prefix)+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	return keys, nil
}

// Watch delivers changes received on the shared channel, including the ones
// this process published.
func (r *Redis) Watch(fn func(Change)) func() {
	cancel := r.watchers.add(fn)
	r.subOnce.Do(r.subscribe)
	return cancel
}

func (r *Redis) subscribe() {
	sub := r.client.Subscribe(r.ctx, redisChangeChannel)
	// Wait for the subscription to be confirmed so changes published right
	// after Watch returns are not lost.
	if _, err := sub.Receive(r.ctx); err != nil {
		log.Printf("[STORAGE] redis subscribe error: %v", err)
	}
	ch := sub.Channel()
	r.subscribed.Store(true)

	go func() {
		defer close(r.subDone)
		defer sub.Close()
		for {
			select {
			case <-r.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					log.Printf("[STORAGE] bad change payload: %v", err)
					continue
				}
				r.watchers.emit(c)
			}
		}
	}()
}

func (r *Redis) publish(ctx context.Context, c Change) {
	data, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := r.client.Publish(ctx, redisChangeChannel, data).Err(); err != nil {
		log.Printf("[STORAGE] publish %s: %v", c.Key, err)
	}
}

func (r *Redis) Close() error {
	r.cancel()
	if r.subscribed.Load() {
		<-r.subDone
	}
	return r.client.Close()
}
