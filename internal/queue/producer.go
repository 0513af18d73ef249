package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trunov/mediaconv/internal/bus"
	"github.com/trunov/mediaconv/internal/codec"
	"github.com/trunov/mediaconv/internal/entities"
	"github.com/trunov/mediaconv/internal/metrics"
)

// ErrWaitTimeout means no worker published a result for the job in time.
// The job may still complete later; its result is then discarded.
var ErrWaitTimeout = errors.New("timed out waiting for conversion result")

type Producer struct {
	bus     bus.Bus
	codec   codec.Codec
	channel string
	waiters *Waiters
	metrics *metrics.Metrics
}

func NewProducer(b bus.Bus, c codec.Codec, channel string, waiters *Waiters, m *metrics.Metrics) *Producer {
	return &Producer{bus: b, codec: c, channel: channel, waiters: waiters, metrics: m}
}

// Submit encodes the job and broadcasts it to every worker.
func (p *Producer) Submit(ctx context.Context, job entities.Job) error {
	raw, err := p.codec.EncodeJob(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := p.bus.Publish(ctx, p.channel, raw); err != nil {
		return fmt.Errorf("publish job %s: %w", job.ID, err)
	}
	return nil
}

// Await submits the job and blocks until its result arrives. A zero timeout
// waits as long as ctx allows.
func (p *Producer) Await(ctx context.Context, job entities.Job, timeout time.Duration) (entities.Result, error) {
	ch := p.waiters.Register(job.ID)
	defer p.waiters.Unregister(job.ID, ch)

	if err := p.Submit(ctx, job); err != nil {
		return entities.Result{}, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return entities.Result{}, fmt.Errorf("waiter for job %s closed", job.ID)
		}
		return res, nil
	case <-expired:
		p.metrics.WaitTimedOut()
		return entities.Result{}, fmt.Errorf("job %s after %s: %w", job.ID, timeout, ErrWaitTimeout)
	case <-ctx.Done():
		return entities.Result{}, ctx.Err()
	}
}
