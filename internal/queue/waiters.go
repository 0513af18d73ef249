package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trunov/mediaconv/internal/bus"
	"github.com/trunov/mediaconv/internal/codec"
	"github.com/trunov/mediaconv/internal/entities"
)

// Waiters fans results from one shared subscription out to the requests
// waiting on them, keyed by job id. Results nobody waits for are ignored.
type Waiters struct {
	bus     bus.Bus
	codec   codec.Codec
	channel string
	retry   time.Duration
	log     zerolog.Logger

	mu sync.Mutex
	m  map[string][]chan entities.Result

	ready     chan struct{}
	readyOnce sync.Once
}

func NewWaiters(b bus.Bus, c codec.Codec, channel string, logger zerolog.Logger) *Waiters {
	return &Waiters{
		bus:     b,
		codec:   c,
		channel: channel,
		retry:   time.Second,
		log:     logger,
		m:       make(map[string][]chan entities.Result),
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the first results subscription is active.
func (w *Waiters) Ready() <-chan struct{} { return w.ready }

// Run keeps a results subscription open until ctx is done.
func (w *Waiters) Run(ctx context.Context) error {
	for {
		sub, err := w.bus.Subscribe(ctx, w.channel)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error().Err(err).Msg("subscribe to results channel failed")
		} else {
			w.readyOnce.Do(func() { close(w.ready) })
			w.consume(ctx, sub)
			_ = sub.Close()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.retry):
		}
	}
}

func (w *Waiters) consume(ctx context.Context, sub bus.Subscription) {
	msgs := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			res, err := w.codec.DecodeResult(raw)
			if err != nil {
				w.log.Debug().Err(err).Msg("ignoring undecodable result")
				continue
			}
			w.notify(res)
		}
	}
}

// Register must happen before the job is published, or a fast worker's
// result can slip past.
func (w *Waiters) Register(id string) chan entities.Result {
	ch := make(chan entities.Result, 1)
	w.mu.Lock()
	w.m[id] = append(w.m[id], ch)
	w.mu.Unlock()
	return ch
}

func (w *Waiters) notify(res entities.Result) {
	w.mu.Lock()
	waiters := w.m[res.ID]
	delete(w.m, res.ID)
	w.mu.Unlock()
	for _, ch := range waiters {
		select {
		case ch <- res:
		default:
		}
		close(ch)
	}
}

// Unregister drops ch if it has not been notified yet.
func (w *Waiters) Unregister(id string, ch chan entities.Result) {
	w.mu.Lock()
	defer w.mu.Unlock()
	waiters := w.m[id]
	for i, c := range waiters {
		if c == ch {
			w.m[id] = append(waiters[:i], waiters[i+1:]...)
			close(ch)
			break
		}
	}
	if len(w.m[id]) == 0 {
		delete(w.m, id)
	}
}

// Pending is the number of job ids with at least one waiter.
func (w *Waiters) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.m)
}
