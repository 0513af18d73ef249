package codec

import (
	"encoding/json"

	"github.com/trunov/mediaconv/internal/entities"
)

// JSON encodes envelopes as JSON; payloads travel as base64 strings.
type JSON struct{}

func (JSON) EncodeJob(job entities.Job) ([]byte, error) {
	return json.Marshal(toWireJob(job))
}

func (JSON) DecodeJob(data []byte) (entities.Job, error) {
	var w wireJob
	if err := json.Unmarshal(data, &w); err != nil {
		return entities.Job{}, err
	}
	return fromWireJob(w)
}

func (JSON) EncodeResult(res entities.Result) ([]byte, error) {
	return json.Marshal(toWireResult(res))
}

func (JSON) DecodeResult(data []byte) (entities.Result, error) {
	var w wireResult
	if err := json.Unmarshal(data, &w); err != nil {
		return entities.Result{}, err
	}
	return fromWireResult(w)
}

func (JSON) Name() string { return NameJSON }
