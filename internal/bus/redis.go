package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/trunov/mediaconv/internal/redisholder"
)

// Redis implements Bus over PUBLISH/SUBSCRIBE.
type Redis struct {
	source redisholder.Source
	// buffer is the per-subscription channel size.
	buffer int
}

func NewRedis(source redisholder.Source) *Redis {
	return &Redis{source: source, buffer: 100}
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := r.source.Get().Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := r.source.Get().Subscribe(ctx, channel)
	// Wait for the subscribe confirmation before handing it out.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", channel, err)
	}

	sub := &redisSubscription{ps: ps, out: make(chan []byte, r.buffer), done: make(chan struct{})}
	go sub.pump(ps.Channel(redis.WithChannelSize(r.buffer)))
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan []byte
	done chan struct{}
	once sync.Once
	err  error
}

func (s *redisSubscription) pump(in <-chan *redis.Message) {
	defer close(s.out)
	for {
		select {
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.out <- []byte(m.Payload):
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan []byte { return s.out }

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}
