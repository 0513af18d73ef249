package use_case

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/trunov/mediaconv/internal/entities"
	"github.com/trunov/mediaconv/internal/r2"
	"github.com/trunov/mediaconv/internal/transport/handler"
)

type Producer interface {
	Submit(ctx context.Context, job entities.Job) error
	Await(ctx context.Context, job entities.Job, timeout time.Duration) (entities.Result, error)
}

type ArchiveStorage interface {
	Download(ctx context.Context, key string) ([]byte, string, error)
}

type useCase struct {
	producer      Producer
	waitTimeout   time.Duration
	archive       ArchiveStorage
	archivePrefix string
}

// New wires the convert flow. archive may be nil when archiving is off.
func New(producer Producer, waitTimeout time.Duration, archive ArchiveStorage, archivePrefix string) *useCase {
	return &useCase{
		producer:      producer,
		waitTimeout:   waitTimeout,
		archive:       archive,
		archivePrefix: archivePrefix,
	}
}

func (c *useCase) Convert(ctx context.Context, params handler.ConvertParams) (entities.Job, *entities.Result, error) {
	var cb *entities.Callback
	if params.WebhookURL != "" {
		cb = &entities.Callback{URL: params.WebhookURL, Headers: params.WebhookHeaders}
	}

	job, err := entities.NewJob(params.Input, params.Extension, entities.ModeFor(params.Async), cb)
	if err != nil {
		return entities.Job{}, nil, err
	}

	if job.Mode == entities.ModeAsync {
		if err := c.producer.Submit(ctx, job); err != nil {
			return job, nil, err
		}
		return job, nil, nil
	}

	res, err := c.producer.Await(ctx, job, c.waitTimeout)
	if err != nil {
		return job, nil, err
	}
	return job, &res, nil
}

// FetchResult loads an archived output by file name, "<id>.<ext>".
func (c *useCase) FetchResult(ctx context.Context, name string) ([]byte, string, error) {
	if c.archive == nil {
		return nil, "", handler.ErrArchiveDisabled
	}
	if name == "" || name != path.Base(name) || !strings.Contains(name, ".") {
		return nil, "", fmt.Errorf("%w: %q", handler.ErrResultNotFound, name)
	}
	body, contentType, err := c.archive.Download(ctx, c.archivePrefix+name)
	if err != nil {
		if errors.Is(err, r2.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: %q", handler.ErrResultNotFound, name)
		}
		return nil, "", err
	}
	return body, contentType, nil
}
