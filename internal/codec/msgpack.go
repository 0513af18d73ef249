package codec

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/trunov/mediaconv/internal/entities"
)

// Msgpack encodes envelopes as MessagePack; payloads travel as bin.
type Msgpack struct{}

func (Msgpack) EncodeJob(job entities.Job) ([]byte, error) {
	return msgpack.Marshal(toWireJob(job))
}

func (Msgpack) DecodeJob(data []byte) (entities.Job, error) {
	var w wireJob
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return entities.Job{}, err
	}
	return fromWireJob(w)
}

func (Msgpack) EncodeResult(res entities.Result) ([]byte, error) {
	return msgpack.Marshal(toWireResult(res))
}

func (Msgpack) DecodeResult(data []byte) (entities.Result, error) {
	var w wireResult
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return entities.Result{}, err
	}
	return fromWireResult(w)
}

func (Msgpack) Name() string { return NameMsgpack }
