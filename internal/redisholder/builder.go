package redisholder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/trunov/mediaconv/internal/config"
)

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Build connects to Redis (cluster first, then single node) and keeps the
// connection healthy until ctx is done.
func Build(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*Holder, error) {
	var cl redis.UniversalClient
	cl, err := newClusterClient(ctx, cfg)
	if err != nil {
		clusterErr := err
		cl, err = newClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create redis client: %w", err)
		}
		logger.Debug().Err(clusterErr).Msg("redis: cluster client failed; using single-node client")
	}

	h := NewHolder(cl)

	go healthLoop(ctx, h, cfg, logger)

	return h, nil
}

func healthLoop(ctx context.Context, h *Holder, cfg config.RedisConfig, logger zerolog.Logger) {
	interval := seconds(cfg.HealthCheckInterval)
	logger.Info().Dur("interval", interval).Msg("redis: health loop started")

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = h.Close()
			logger.Info().Err(ctx.Err()).Msg("redis: health loop stopped")
			return
		case <-t.C:
			checkAndReconnect(ctx, h, cfg, logger)
		}
	}
}

func checkAndReconnect(ctx context.Context, h *Holder, cfg config.RedisConfig, logger zerolog.Logger) {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	err := h.Get().Ping(pingCtx).Err()
	cancel()
	if err == nil {
		return
	}
	logger.Warn().Err(err).Msg("redis: ping failed; attempting reconnect")

	var newCl redis.UniversalClient
	newCl, err = newClusterClient(ctx, cfg)
	if err != nil {
		newCl, err = newClient(ctx, cfg)
	}
	if err != nil {
		logger.Error().Err(err).Msg("redis: reconnect failed")
		return
	}

	if old := h.swap(newCl); old != nil {
		_ = old.Close()
	}
	logger.Info().Msg("redis: reconnected")
}

func newClusterClient(ctx context.Context, cfg config.RedisConfig) (*redis.ClusterClient, error) {
	if len(cfg.Nodes) < 2 {
		return nil, errors.New("cluster mode needs at least two nodes")
	}

	cl := redis.NewClusterClient(&redis.ClusterOptions{
		RouteByLatency: true,
		Password:       cfg.Password,
		Addrs:          cfg.Addrs(),
		DialTimeout:    seconds(cfg.DialTimeout),
		ReadTimeout:    seconds(cfg.ReadTimeout),
		WriteTimeout:   seconds(cfg.WriteTimeout),
		PoolSize:       cfg.PoolSize,
		PoolTimeout:    30 * time.Second,
		MaxRetries:     3,
	})

	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("error pinging redis cluster: %w", err)
	}

	return cl, nil
}

func newClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var stickyErr = errors.New("no nodes defined")

	for _, addr := range cfg.Addrs() {
		cl := redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     cfg.Password,
			DB:           cfg.DatabaseID,
			DialTimeout:  seconds(cfg.DialTimeout),
			ReadTimeout:  seconds(cfg.ReadTimeout),
			WriteTimeout: seconds(cfg.WriteTimeout),
			PoolSize:     cfg.PoolSize,
		})

		if err := cl.Ping(ctx).Err(); err != nil {
			_ = cl.Close()
			stickyErr = fmt.Errorf("error pinging redis server %s: %w", addr, err)
			continue
		}

		return cl, nil
	}

	return nil, stickyErr
}
