package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"github.com/trunov/mediaconv/internal/bus"
	"github.com/trunov/mediaconv/internal/codec"
	"github.com/trunov/mediaconv/internal/config"
	"github.com/trunov/mediaconv/internal/entities"
	"github.com/trunov/mediaconv/internal/metrics"
	"github.com/trunov/mediaconv/internal/processor"
)

// Locker elects one worker per job id.
type Locker interface {
	Acquire(ctx context.Context, id string) bool
	Release(ctx context.Context, id string)
}

type Converter interface {
	Convert(ctx context.Context, raw []byte, ext string) (processor.Conversion, error)
}

// Deliverer takes async results off the worker's hands. ext is the output
// file extension, empty when the conversion failed.
type Deliverer interface {
	Enqueue(res entities.Result, ext string) error
}

// Outcome is what handle did with one message.
type Outcome int

const (
	Dropped Outcome = iota
	LostRace
	Converted
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Dropped:
		return "dropped"
	case LostRace:
		return "lost_race"
	case Converted:
		return "converted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

type Worker struct {
	bus       bus.Bus
	codec     codec.Codec
	locks     Locker
	conv      Converter
	deliverer Deliverer
	metrics   *metrics.Metrics
	channels  config.BusConfig
	cfg       config.WorkerConfig
	log       zerolog.Logger
}

func NewWorker(b bus.Bus, c codec.Codec, locks Locker, conv Converter, channels config.BusConfig, cfg config.WorkerConfig, logger zerolog.Logger) *Worker {
	return &Worker{
		bus:      b,
		codec:    c,
		locks:    locks,
		conv:     conv,
		channels: channels,
		cfg:      cfg,
		log:      logger,
	}
}

// WithDeliverer hands async results with a callback to d after publishing.
func (w *Worker) WithDeliverer(d Deliverer) *Worker {
	w.deliverer = d
	return w
}

func (w *Worker) WithMetrics(m *metrics.Metrics) *Worker {
	w.metrics = m
	return w
}

// Start consumes the jobs channel until ctx is done. A subscription that
// ends underneath us is re-established after ResubscribeDelay.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info().
		Str("channel", w.channels.JobsChannel).
		Str("codec", w.codec.Name()).
		Msg("worker starting")

	for {
		sub, err := w.bus.Subscribe(ctx, w.channels.JobsChannel)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Error().Err(err).Msg("subscribe to jobs channel failed")
		} else {
			w.loop(ctx, sub)
			_ = sub.Close()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("context canceled, worker stopped")
			return nil
		case <-time.After(w.cfg.ResubscribeDelay):
			w.log.Warn().Msg("jobs subscription ended, resubscribing")
		}
	}
}

func (w *Worker) loop(ctx context.Context, sub bus.Subscription) {
	msgs := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			w.handle(ctx, raw)
		}
	}
}

// handle runs one message through lock, convert, publish and release.
func (w *Worker) handle(ctx context.Context, raw []byte) Outcome {
	w.metrics.Received()

	job, err := w.codec.DecodeJob(raw)
	if err != nil {
		// foreign traffic on a broadcast channel is expected
		w.metrics.Dropped()
		w.log.Debug().Err(err).Msg("dropping undecodable message")
		return Dropped
	}

	if !w.locks.Acquire(ctx, job.ID) {
		w.metrics.LostRace()
		w.log.Debug().Str("job_id", job.ID).Msg("job taken by another worker")
		return LostRace
	}
	defer w.locks.Release(context.WithoutCancel(ctx), job.ID)

	conv, err := w.process(ctx, job)
	res := entities.NewResult(job, conv.Output)
	outcome := Converted
	if err != nil || res.Failed() {
		outcome = Failed
		w.report(job, err)
	}

	w.publish(context.WithoutCancel(ctx), res)

	if job.WantsDelivery() && w.deliverer != nil {
		ext := ""
		if outcome == Converted {
			ext = conv.Kind.OutputExtension()
		}
		if err := w.deliverer.Enqueue(res, ext); err != nil {
			w.log.Warn().Err(err).Str("job_id", job.ID).Msg("callback delivery not queued")
		}
	}
	return outcome
}

// process never panics; any failure comes back as an error with an empty
// Conversion.
func (w *Worker) process(ctx context.Context, job entities.Job) (conv processor.Conversion, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			conv, err = processor.Conversion{}, fmt.Errorf("panic during conversion: %v", r)
		}
		w.metrics.Converted(string(conv.Kind), err == nil && len(conv.Output) > 0, time.Since(start))
	}()

	data, err := job.Data()
	if err != nil {
		return processor.Conversion{}, err
	}
	conv, err = w.conv.Convert(ctx, data, job.Extension)
	if err != nil {
		return processor.Conversion{Attempts: conv.Attempts}, err
	}
	if len(conv.Output) == 0 {
		return conv, errors.New("converter produced empty output")
	}
	return conv, nil
}

func (w *Worker) publish(ctx context.Context, res entities.Result) {
	payload, err := w.codec.EncodeResult(res)
	if err == nil {
		err = w.bus.Publish(ctx, w.channels.ResultsChannel, payload)
	}
	if err != nil {
		w.log.Error().Err(err).Str("job_id", res.ID).Msg("publish result failed")
		sentry.CaptureException(fmt.Errorf("publish result %s: %w", res.ID, err))
		return
	}
	w.metrics.Published()
	w.log.Info().
		Str("job_id", res.ID).
		Int("bytes", len(res.Output)).
		Bool("failed", res.Failed()).
		Msg("result published")
}

func (w *Worker) report(job entities.Job, err error) {
	if err == nil {
		err = errors.New("empty output")
	}
	w.log.Warn().Err(err).
		Str("job_id", job.ID).
		Str("extension", job.Extension).
		Msg("conversion failed")
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("job_id", job.ID)
		scope.SetTag("extension", job.Extension)
		sentry.CaptureException(err)
	})
}
