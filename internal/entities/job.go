package entities

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedPayload marks a job whose payload was neither raw bytes
	// nor base64 text.
	ErrUnsupportedPayload = errors.New("unsupported data type; expected bytes or base64 string")
	ErrInvalidBase64      = errors.New("payload is not valid base64")
)

// Mode tells whether the submitter waits for a Result.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

// ModeFor maps the front-end async_mode flag to a Mode.
func ModeFor(async bool) Mode {
	if async {
		return ModeAsync
	}
	return ModeSync
}

// Callback is an opaque out-of-band delivery target. The conversion core only
// carries it around.
type Callback struct {
	URL     string            `json:"url" msgpack:"url"`
	Headers map[string]string `json:"headers,omitempty" msgpack:"headers,omitempty"`
}

type inputKind int

const (
	inputRaw inputKind = iota + 1
	inputBase64
)

// Input is the submitted media in one of its accepted representations.
type Input struct {
	kind inputKind
	raw  []byte
	text string
}

func RawBytes(b []byte) Input { return Input{kind: inputRaw, raw: b} }

func Base64Text(s string) Input { return Input{kind: inputBase64, text: s} }

// Bytes resolves the input to its canonical raw form.
func (in Input) Bytes() ([]byte, error) {
	switch in.kind {
	case inputRaw:
		return in.raw, nil
	case inputBase64:
		b, err := base64.StdEncoding.DecodeString(in.text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBase64, err)
		}
		return b, nil
	default:
		return nil, ErrUnsupportedPayload
	}
}

// Job is the unit of work broadcast on the jobs channel.
type Job struct {
	ID        string
	Payload   []byte
	Extension string
	Mode      Mode
	Callback  *Callback

	// payloadErr is set when a job was decoded off the bus with a payload of
	// an unsupported type.
	payloadErr error
}

// NewJob assigns a fresh identity and resolves the input to raw bytes.
func NewJob(in Input, extension string, mode Mode, cb *Callback) (Job, error) {
	payload, err := in.Bytes()
	if err != nil {
		return Job{}, err
	}
	if mode == "" {
		mode = ModeSync
	}
	return Job{
		ID:        uuid.NewString(),
		Payload:   payload,
		Extension: NormalizeExtension(extension),
		Mode:      mode,
		Callback:  cb,
	}, nil
}

// RestoreJob rebuilds a job received from the bus. payloadErr is non-nil
// when the sender used a payload representation we can not handle.
func RestoreJob(id string, payload []byte, payloadErr error, extension string, mode Mode, cb *Callback) Job {
	return Job{
		ID:         id,
		Payload:    payload,
		Extension:  NormalizeExtension(extension),
		Mode:       mode,
		Callback:   cb,
		payloadErr: payloadErr,
	}
}

// Data returns the raw payload, or the reason it is unusable.
func (j Job) Data() ([]byte, error) {
	if j.payloadErr != nil {
		return nil, j.payloadErr
	}
	return j.Payload, nil
}

// WantsDelivery reports whether the result should go out of band.
func (j Job) WantsDelivery() bool {
	return j.Mode == ModeAsync && j.Callback != nil && j.Callback.URL != ""
}

// NormalizeExtension lower-cases the hint and strips every dot.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(ext), ".", ""))
}
