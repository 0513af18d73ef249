// Package codec serializes job and result envelopes for the broadcast bus.
package codec

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/trunov/mediaconv/internal/entities"
)

// Codec defines the serialization contract for bus envelopes.
type Codec interface {
	EncodeJob(job entities.Job) ([]byte, error)
	DecodeJob(data []byte) (entities.Job, error)
	EncodeResult(res entities.Result) ([]byte, error)
	DecodeResult(data []byte) (entities.Result, error)

	// Name returns the codec identifier ("msgpack" or "json").
	Name() string
}

const (
	NameMsgpack = "msgpack"
	NameJSON    = "json"
)

// ErrMissingID is returned for envelopes without an identity; there is no
// one to correlate them with.
var ErrMissingID = errors.New("envelope has no id")

// Get returns a codec by name. Defaults to msgpack.
func Get(name string) Codec {
	switch name {
	case NameJSON:
		return JSON{}
	default:
		return Msgpack{}
	}
}

type wireJob struct {
	ID        string             `json:"id" msgpack:"id"`
	Data      any                `json:"data" msgpack:"data"`
	Extension string             `json:"extension" msgpack:"extension"`
	Mode      string             `json:"mode" msgpack:"mode"`
	Callback  *entities.Callback `json:"callback,omitempty" msgpack:"callback,omitempty"`
}

type wireResult struct {
	ID      string  `json:"id" msgpack:"id"`
	Data    []byte  `json:"data" msgpack:"data"`
	Request wireJob `json:"request" msgpack:"request"`
}

func toWireJob(job entities.Job) wireJob {
	return wireJob{
		ID:        job.ID,
		Data:      job.Payload,
		Extension: job.Extension,
		Mode:      string(job.Mode),
		Callback:  job.Callback,
	}
}

func fromWireJob(w wireJob) (entities.Job, error) {
	if w.ID == "" {
		return entities.Job{}, ErrMissingID
	}
	payload, payloadErr := payloadBytes(w.Data)
	mode := entities.ModeSync
	if w.Mode == string(entities.ModeAsync) {
		mode = entities.ModeAsync
	}
	return entities.RestoreJob(w.ID, payload, payloadErr, w.Extension, mode, w.Callback), nil
}

// payloadBytes accepts binary data or base64 text. Anything else is kept as
// a payload error so the job still gets a failure result.
func payloadBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		b, err := base64.StdEncoding.DecodeString(t)
		if err != nil {
			return nil, fmt.Errorf("decode base64 payload: %w", err)
		}
		return b, nil
	default:
		return nil, entities.ErrUnsupportedPayload
	}
}

func toWireResult(res entities.Result) wireResult {
	return wireResult{ID: res.ID, Data: res.Output, Request: toWireJob(res.Origin)}
}

func fromWireResult(w wireResult) (entities.Result, error) {
	if w.ID == "" {
		return entities.Result{}, ErrMissingID
	}
	origin, err := fromWireJob(w.Request)
	if err != nil {
		return entities.Result{}, fmt.Errorf("result origin: %w", err)
	}
	return entities.Result{ID: w.ID, Output: w.Data, Origin: origin}, nil
}
