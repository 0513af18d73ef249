// Package delivery posts async conversion results to the callback URL the
// submitter asked for, optionally archiving the output first.
package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/trunov/mediaconv/internal/config"
	"github.com/trunov/mediaconv/internal/entities"
	"github.com/trunov/mediaconv/internal/metrics"
)

var (
	ErrQueueFull = errors.New("delivery queue is full")
	ErrClosed    = errors.New("deliverer is closed")
)

const (
	HeaderJobID      = "X-Job-Id"
	HeaderStatus     = "X-Conversion-Status"
	HeaderArchiveKey = "X-Archive-Key"
)

type Archive interface {
	Upload(ctx context.Context, key, contentType string, payload []byte) error
}

type task struct {
	res entities.Result
	ext string
}

// permanentError stops the retry loop.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

type Deliverer struct {
	cfg     config.DeliveryConfig
	archive Archive
	client  *http.Client
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan task
	wg     sync.WaitGroup
}

// New builds a Deliverer; archive may be nil. Call Run to start the workers.
func New(cfg config.DeliveryConfig, archive Archive, client *http.Client, m *metrics.Metrics, logger zerolog.Logger) *Deliverer {
	if client == nil {
		client = &http.Client{}
	}
	return &Deliverer{
		cfg:     cfg,
		archive: archive,
		client:  client,
		metrics: m,
		log:     logger,
		queue:   make(chan task, cfg.QueueSize),
	}
}

func (d *Deliverer) Run() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.log.Info().Int("workers", d.cfg.Workers).Bool("archive", d.archive != nil).Msg("delivery pool started")
}

// Close stops accepting work and waits for queued deliveries to finish.
func (d *Deliverer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Enqueue schedules delivery without blocking. ext names the archived
// file's extension and is empty for failed conversions.
func (d *Deliverer) Enqueue(res entities.Result, ext string) error {
	if !res.Origin.WantsDelivery() {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- task{res: res, ext: ext}:
		return nil
	default:
		d.metrics.Delivered("dropped")
		return ErrQueueFull
	}
}

func (d *Deliverer) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.deliver(t)
	}
}

func (d *Deliverer) deliver(t task) {
	logger := d.log.With().Str("job_id", t.res.ID).Logger()

	key := ""
	if d.archive != nil && !t.res.Failed() && t.ext != "" {
		k := d.cfg.ArchivePrefix + t.res.ID + "." + t.ext
		err := d.retry(func(ctx context.Context) error {
			return d.archive.Upload(ctx, k, contentType(t.res.Output), t.res.Output)
		})
		if err != nil {
			logger.Warn().Err(err).Str("key", k).Msg("archive upload failed")
		} else {
			key = k
		}
	}

	err := d.retry(func(ctx context.Context) error {
		return d.post(ctx, t.res, key)
	})
	if err != nil {
		d.metrics.Delivered("failed")
		logger.Error().Err(err).Str("url", t.res.Origin.Callback.URL).Msg("callback delivery failed")
		return
	}
	d.metrics.Delivered("ok")
	logger.Info().Str("url", t.res.Origin.Callback.URL).Msg("callback delivered")
}

func (d *Deliverer) post(ctx context.Context, res entities.Result, archiveKey string) error {
	cb := res.Origin.Callback
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cb.URL, bytes.NewReader(res.Output))
	if err != nil {
		return permanentError{fmt.Errorf("failed to create request: %w", err)}
	}
	for k, v := range cb.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", contentType(res.Output))
	req.Header.Set(HeaderJobID, res.ID)
	status := "ok"
	if res.Failed() {
		status = "failed"
	}
	req.Header.Set(HeaderStatus, status)
	if archiveKey != "" {
		req.Header.Set(HeaderArchiveKey, archiveKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post callback: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	default:
		return permanentError{fmt.Errorf("callback rejected with status %d", resp.StatusCode)}
	}
}

// retry runs fn up to MaxRetries+1 times with exponential backoff, each
// attempt bounded by Timeout.
func (d *Deliverer) retry(fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.Timeout)
		err = fn(ctx)
		cancel()

		var perm permanentError
		if err == nil || errors.As(err, &perm) || attempt > d.cfg.MaxRetries {
			return err
		}
		time.Sleep(d.backoffDelay(attempt))
	}
}

func (d *Deliverer) backoffDelay(attempt int) time.Duration {
	delay := d.cfg.RetryBaseDelay << (attempt - 1)
	jitter := int64(delay) / 10
	if jitter <= 0 {
		return delay
	}
	return delay - time.Duration(jitter/2) + time.Duration(rand.Int63n(jitter))
}

func contentType(b []byte) string {
	if len(b) == 0 {
		return "application/octet-stream"
	}
	return mimetype.Detect(b).String()
}
