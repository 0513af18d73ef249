package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/trunov/mediaconv/internal/bus"
	"github.com/trunov/mediaconv/internal/codec"
	"github.com/trunov/mediaconv/internal/config"
	"github.com/trunov/mediaconv/internal/delivery"
	"github.com/trunov/mediaconv/internal/lock"
	"github.com/trunov/mediaconv/internal/logx"
	"github.com/trunov/mediaconv/internal/metrics"
	"github.com/trunov/mediaconv/internal/processor"
	"github.com/trunov/mediaconv/internal/queue"
	"github.com/trunov/mediaconv/internal/r2"
	"github.com/trunov/mediaconv/internal/redisholder"
	"github.com/trunov/mediaconv/internal/transport/handler"
	"github.com/trunov/mediaconv/internal/transport/router"
	use_case "github.com/trunov/mediaconv/internal/use-case"
)

const shutdownTimeout = 10 * time.Second

type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
	RoleAll    Role = "all"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAPI, RoleWorker, RoleAll:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q (want api, worker or all)", s)
	}
}

func (r Role) api() bool    { return r == RoleAPI || r == RoleAll }
func (r Role) worker() bool { return r == RoleWorker || r == RoleAll }

type App struct {
	HttpServer    *http.Server
	MetricsServer *http.Server

	log       zerolog.Logger
	holder    *redisholder.Holder
	waiters   *queue.Waiters
	worker    *queue.Worker
	deliverer *delivery.Deliverer
}

// New connects to Redis and wires the components the role needs. ctx bounds
// the Redis health loop.
func New(ctx context.Context, cfg *config.Config, role Role, logger zerolog.Logger) (*App, error) {
	holder, err := redisholder.Build(ctx, cfg.Redis, logx.Component(logger, "redis"))
	if err != nil {
		return nil, err
	}

	b := bus.NewRedis(holder)
	c := codec.Get(cfg.Bus.Codec)
	m := metrics.New()

	var archive *r2.S3
	if cfg.R2.Enabled() {
		archive, err = r2.NewStorage(ctx, cfg.R2)
		if err != nil {
			return nil, err
		}
	}

	a := &App{log: logger, holder: holder}

	if role.worker() {
		if err := a.wireWorker(cfg, b, c, m, archive); err != nil {
			return nil, err
		}
	}

	if role.api() {
		a.waiters = queue.NewWaiters(b, c, cfg.Bus.ResultsChannel, logx.Component(logger, "waiters"))
		producer := queue.NewProducer(b, c, cfg.Bus.JobsChannel, a.waiters, m)

		var store use_case.ArchiveStorage
		if archive != nil {
			store = archive
		}
		uc := use_case.New(producer, cfg.Wait.Timeout(), store, cfg.Delivery.ArchivePrefix)

		h := handler.New(uc, cfg, logx.Component(logger, "http"))
		r := router.NewRouter(h, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, m.Handler())
		a.HttpServer = &http.Server{
			Handler:     r,
			Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
			ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		}
	} else if cfg.Server.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		a.MetricsServer = &http.Server{
			Handler: mux,
			Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		}
	}

	return a, nil
}

func (a *App) wireWorker(cfg *config.Config, b bus.Bus, c codec.Codec, m *metrics.Metrics, archive *r2.S3) error {
	fallback, err := processor.ParseKinds(cfg.Worker.FallbackOrder)
	if err != nil {
		return err
	}
	dispatcher := processor.NewDispatcher(
		processor.NewNormalizer(cfg.Image),
		processor.NewTranscoder(cfg.Audio),
		fallback,
	)

	instanceID := cfg.Worker.InstanceID
	if instanceID == "" {
		instanceID = ulid.Make().String()
	}
	locks := lock.NewManager(a.holder, cfg.Lock.Namespace, instanceID, cfg.Lock.TTL(), logx.Component(a.log, "lock"))

	var arch delivery.Archive
	if archive != nil {
		arch = archive
	}
	a.deliverer = delivery.New(cfg.Delivery, arch, nil, m, logx.Component(a.log, "delivery"))

	workerLog := logx.Component(a.log, "worker").With().Str("instance_id", instanceID).Logger()
	a.worker = queue.NewWorker(b, c, locks, dispatcher, cfg.Bus, cfg.Worker, workerLog).
		WithDeliverer(a.deliverer).
		WithMetrics(m)
	return nil
}

// Run blocks until ctx is canceled or a component fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.worker != nil {
		a.deliverer.Run()
		g.Go(func() error { return a.worker.Start(gctx) })
	}

	if a.waiters != nil {
		g.Go(func() error { return a.waiters.Run(gctx) })
	}

	if a.HttpServer != nil {
		// results must be flowing before the first request waits on one
		a.serve(g, gctx, a.HttpServer, a.waiters.Ready())
	}
	if a.MetricsServer != nil {
		a.serve(g, gctx, a.MetricsServer, nil)
	}

	err := g.Wait()
	if a.deliverer != nil {
		a.deliverer.Close()
	}
	_ = a.holder.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) serve(g *errgroup.Group, ctx context.Context, srv *http.Server, ready <-chan struct{}) {
	g.Go(func() error {
		if ready != nil {
			select {
			case <-ready:
			case <-ctx.Done():
				return nil
			}
		}
		a.log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
