package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"tradezone/pkg/config"
	"tradezone/pkg/logger"
)

const redisChannelPrefix = "tradezone."

// RedisRelay publishes each topic on its own channel and pattern-subscribes to all of them.
type RedisRelay struct {
	client *redis.Client
	mu     sync.Mutex
	subs   []*redis.PubSub
}

func NewRedisRelay(cfg config.RedisConfig) (*RedisRelay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisRelay{client: client}, nil
}

func (r *RedisRelay) Publish(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return r.client.Publish(ctx, redisChannelPrefix+env.Topic, data).Err()
}

func (r *RedisRelay) Subscribe(ctx context.Context) (<-chan *Envelope, error) {
	ps := r.client.PSubscribe(ctx, redisChannelPrefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	r.mu.Lock()
	r.subs = append(r.subs, ps)
	r.mu.Unlock()

	out := make(chan *Envelope, subscriberBuffer)
	go r.processMessages(ctx, ps, out)
	return out, nil
}

func (r *RedisRelay) processMessages(ctx context.Context, ps *redis.PubSub, out chan<- *Envelope) {
	defer close(out)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("redis relay: dropping malformed envelope on %s: %v", msg.Channel, err)
				continue
			}

			select {
			case out <- &env:
			case <-ctx.Done():
				return
			default:
				// consumer full, drop
			}
		}
	}
}

func (r *RedisRelay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ps := range r.subs {
		ps.Close()
	}
	r.subs = nil
	return r.client.Close()
}
