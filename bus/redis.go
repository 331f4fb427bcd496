package bus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/encodeous/strand/state"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

// Redis is a Bus backed by redis pub/sub. Topics map one to one to redis channels.
type Redis struct {
	client *redis.Client
	pubsub *redis.PubSub

	mu   sync.Mutex
	subs map[string]Handler

	done chan struct{}
	wg   sync.WaitGroup
}

func DialRedis(ctx context.Context, cfg state.BusCfg) (*Redis, error) {
	var opts *redis.Options
	if strings.Contains(cfg.Address, "://") {
		parsed, err := redis.ParseURL(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("redis: parse address: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: cfg.Address}
	}
	if cfg.Username != "" {
		opts.Username = cfg.Username
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.ClientName = cfg.ClientId

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect to %s: %w", cfg.Address, err)
	}
	r := &Redis{
		client: client,
		pubsub: client.Subscribe(ctx),
		subs:   make(map[string]Handler),
		done:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.receive()
	return r, nil
}

func (r *Redis) receive() {
	defer r.wg.Done()
	ch := r.pubsub.Channel()
	for {
		select {
		case <-r.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.mu.Lock()
			h := r.subs[msg.Channel]
			r.mu.Unlock()
			if h != nil {
				h(msg.Channel, []byte(msg.Payload))
			}
		}
	}
}

func (r *Redis) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := r.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", topic, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, topic string, h Handler) error {
	r.mu.Lock()
	r.subs[topic] = h
	r.mu.Unlock()
	if err := r.pubsub.Subscribe(ctx, topic); err != nil {
		return fmt.Errorf("redis: subscribe %s: %w", topic, err)
	}
	return nil
}

func (r *Redis) Unsubscribe(ctx context.Context, topics ...string) error {
	r.mu.Lock()
	for _, t := range topics {
		delete(r.subs, t)
	}
	r.mu.Unlock()
	if len(topics) == 0 {
		return nil
	}
	if err := r.pubsub.Unsubscribe(ctx, topics...); err != nil {
		return fmt.Errorf("redis: unsubscribe: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	select {
	case <-r.done:
		return nil
	default:
	}
	close(r.done)
	err := r.pubsub.Close()
	r.wg.Wait()
	return multierr.Append(err, r.client.Close())
}
