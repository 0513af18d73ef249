package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/trunov/mediaconv/internal/config"
	"github.com/trunov/mediaconv/internal/entities"
	"github.com/trunov/mediaconv/internal/queue"
)

var (
	ErrArchiveDisabled = errors.New("result archive is not configured")
	ErrResultNotFound  = errors.New("result not found")
)

type UseCase interface {
	// Convert submits the job. The result is nil for async requests.
	Convert(ctx context.Context, params ConvertParams) (entities.Job, *entities.Result, error)
	FetchResult(ctx context.Context, name string) ([]byte, string, error)
}

type Handler struct {
	useCase   UseCase
	cfg       *config.Config
	validator *validator.Validate
	log       zerolog.Logger
}

func New(useCase UseCase, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		useCase:   useCase,
		cfg:       cfg,
		validator: validator.New(),
		log:       logger,
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok")
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxRequestBodyMB<<20)

	params, err := h.readParams(r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	if err := h.validator.Struct(params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(validationErrorsToMap(err))
		return
	}

	job, res, err := h.useCase.Convert(r.Context(), params)
	switch {
	case errors.Is(err, entities.ErrInvalidBase64):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, queue.ErrWaitTimeout):
		writeJSONError(w, "timed out waiting for a worker", http.StatusGatewayTimeout)
		return
	case err != nil:
		h.log.Error().Err(err).Str("job_id", job.ID).Msg("convert request failed")
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("X-Job-Id", job.ID)

	if res == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(acceptedResponse{ID: job.ID, Status: "accepted"})
		return
	}

	if res.Failed() {
		writeJSONError(w, "conversion failed", http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", mimetype.Detect(res.Output).String())
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Output)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Output)
}

// readParams accepts either the JSON envelope or a raw octet-stream body with
// the options in the query string.
func (h *Handler) readParams(r *http.Request) (ConvertParams, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/octet-stream") {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return ConvertParams{}, err
		}
		if len(raw) == 0 {
			return ConvertParams{}, errMissingData
		}
		q := r.URL.Query()
		return ConvertParams{
			Input:      entities.RawBytes(raw),
			Extension:  q.Get("extension"),
			Async:      parseBool(q.Get("async_mode")),
			WebhookURL: q.Get("webhook_url"),
		}, nil
	}

	var req convertRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return ConvertParams{}, err
	}
	if req.Data == nil {
		return ConvertParams{}, errMissingData
	}
	params := ConvertParams{
		Input:          entities.Base64Text(*req.Data),
		Extension:      req.Extension,
		Async:          req.AsyncMode,
		WebhookHeaders: req.WebhookHeaders,
	}
	if req.WebhookURL != nil {
		params.WebhookURL = *req.WebhookURL
	}
	return params, nil
}

// FetchResult serves an archived output, e.g. GET /results/<id>.jpg.
func (h *Handler) FetchResult(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, contentType, err := h.useCase.FetchResult(r.Context(), name)
	switch {
	case errors.Is(err, ErrArchiveDisabled):
		writeJSONError(w, err.Error(), http.StatusNotImplemented)
		return
	case errors.Is(err, ErrResultNotFound):
		writeJSONError(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		writeJSONError(w, err.Error(), http.StatusBadGateway)
		return
	}
	if contentType == "" {
		contentType = mimetype.Detect(body).String()
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(body)
}
