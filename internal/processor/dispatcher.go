package processor

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// OutputExtension is the extension of what a converter of this kind emits.
func (k Kind) OutputExtension() string {
	if k == KindAudio {
		return "mp3"
	}
	return "jpg"
}

var ErrNoConverter = errors.New("no converter accepted the input")

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "bmp": {}, "gif": {}, "tif": {}, "tiff": {}, "webp": {},
}

var audioExtensions = map[string]struct{}{
	"mp3": {}, "wav": {}, "ogg": {}, "flac": {}, "aac": {}, "m4a": {}, "wma": {},
	"aiff": {}, "oga": {}, "opus": {}, "amr": {}, "mp4": {}, "3gp": {},
}

func IsImageExtension(ext string) bool {
	_, ok := imageExtensions[ext]
	return ok
}

func IsAudioExtension(ext string) bool {
	_, ok := audioExtensions[ext]
	return ok
}

type ImageConverter interface {
	Normalize(raw []byte) ([]byte, error)
}

type AudioConverter interface {
	Transcode(ctx context.Context, raw []byte, hint string) ([]byte, error)
}

// Attempt records one converter tried on an input.
type Attempt struct {
	Kind Kind
	Err  error
}

type Conversion struct {
	Kind     Kind
	Output   []byte
	Attempts []Attempt
}

// Dispatcher picks a converter by extension, and walks the fallback order
// when the extension is unknown.
type Dispatcher struct {
	image    ImageConverter
	audio    AudioConverter
	fallback []Kind
}

func NewDispatcher(image ImageConverter, audio AudioConverter, fallback []Kind) *Dispatcher {
	if len(fallback) == 0 {
		fallback = []Kind{KindImage, KindAudio}
	}
	return &Dispatcher{image: image, audio: audio, fallback: fallback}
}

// ParseKinds validates a configured fallback order.
func ParseKinds(names []string) ([]Kind, error) {
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		switch k := Kind(n); k {
		case KindImage, KindAudio:
			kinds = append(kinds, k)
		default:
			return nil, fmt.Errorf("unknown converter kind %q", n)
		}
	}
	return kinds, nil
}

// Convert runs the converter for ext, ext being already normalized.
func (d *Dispatcher) Convert(ctx context.Context, raw []byte, ext string) (Conversion, error) {
	var plan []Kind
	hint := ""
	switch {
	case IsAudioExtension(ext):
		plan, hint = []Kind{KindAudio}, ext
	case IsImageExtension(ext):
		plan = []Kind{KindImage}
	default:
		plan = d.fallback
	}

	conv := Conversion{Attempts: make([]Attempt, 0, len(plan))}
	for _, kind := range plan {
		out, err := d.probe(ctx, kind, raw, hint)
		conv.Attempts = append(conv.Attempts, Attempt{Kind: kind, Err: err})
		if err == nil {
			conv.Kind, conv.Output = kind, out
			return conv, nil
		}
	}
	return conv, conv.err()
}

func (d *Dispatcher) probe(ctx context.Context, kind Kind, raw []byte, hint string) ([]byte, error) {
	switch kind {
	case KindImage:
		return d.image.Normalize(raw)
	case KindAudio:
		return d.audio.Transcode(ctx, raw, hint)
	default:
		return nil, fmt.Errorf("unknown converter kind %q", kind)
	}
}

func (c Conversion) err() error {
	errs := make([]error, 0, len(c.Attempts))
	for _, a := range c.Attempts {
		errs = append(errs, fmt.Errorf("%s: %w", a.Kind, a.Err))
	}
	return fmt.Errorf("%w: %w", ErrNoConverter, errors.Join(errs...))
}
