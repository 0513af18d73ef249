package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"math"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	libjpeg "github.com/pixiv/go-libjpeg/jpeg"

	"github.com/trunov/mediaconv/internal/config"
)

func init() {
	image.RegisterFormat("webp", "RIFF????WEBPVP8", webp.Decode, webp.DecodeConfig)
}

const jpegQuality = 85

var ErrEmptyInput = errors.New("empty input")

// ImageModifier defines an image modifier
type ImageModifier interface {
	Modify(img image.Image) image.Image
}

// ContainResizer scales an image uniformly so that it fits inside
// Width x Height and touches at least one side. It enlarges as well as
// shrinks.
type ContainResizer struct {
	Width  int
	Height int
}

// Modify to implement ImageModifier interface
func (r ContainResizer) Modify(img image.Image) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 || r.Width <= 0 || r.Height <= 0 {
		return img
	}

	nw, nh := ContainSize(w, h, r.Width, r.Height)
	if nw == w && nh == h {
		return img
	}
	return imaging.Resize(img, nw, nh, imaging.Lanczos)
}

// ContainSize returns the size of a w x h image fit into a boxW x boxH box.
// The shorter side is rounded half to even.
func ContainSize(w, h, boxW, boxH int) (int, int) {
	imRatio := float64(w) / float64(h)
	boxRatio := float64(boxW) / float64(boxH)

	nw, nh := boxW, boxH
	switch {
	case imRatio > boxRatio:
		nh = max(1, int(math.RoundToEven(float64(h)/float64(w)*float64(boxW))))
	case imRatio < boxRatio:
		nw = max(1, int(math.RoundToEven(float64(w)/float64(h)*float64(boxH))))
	}
	return nw, nh
}

// CanvasPadder centers an image on an opaque Width x Height canvas, blending
// it through its own alpha channel.
type CanvasPadder struct {
	Width      int
	Height     int
	Background color.NRGBA
}

func (p CanvasPadder) Modify(img image.Image) image.Image {
	bg := p.Background
	bg.A = 0xff
	canvas := imaging.New(p.Width, p.Height, bg)

	b := img.Bounds()
	x := (p.Width - b.Dx()) / 2
	y := (p.Height - b.Dy()) / 2
	return imaging.Overlay(canvas, img, image.Pt(x, y), 1.0)
}

// LoadImage decodes an image, applies the orientation stored in its
// metadata, converts it to NRGBA and applies the modifiers in order.
func LoadImage(r io.Reader, modifiers ...ImageModifier) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}

	var out image.Image = imaging.Clone(img)
	for _, modifier := range modifiers {
		out = modifier.Modify(out)
	}

	return out, nil
}

// Normalizer turns any decodable image into a fixed-size JPEG.
type Normalizer struct {
	width      int
	height     int
	background color.NRGBA
}

func NewNormalizer(cfg config.ImageConfig) *Normalizer {
	return &Normalizer{
		width:      cfg.TargetWidth,
		height:     cfg.TargetHeight,
		background: cfg.BackgroundColor(),
	}
}

func (n *Normalizer) Normalize(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}

	img, err := LoadImage(bytes.NewReader(raw),
		ContainResizer{Width: n.width, Height: n.height},
		CanvasPadder{Width: n.width, Height: n.height, Background: n.background},
	)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	var buf bytes.Buffer
	err = libjpeg.Encode(&buf, flatten(img), &libjpeg.EncoderOptions{
		Quality:         jpegQuality,
		OptimizeCoding:  true,
		ProgressiveMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// flatten copies an opaque image into an RGBA buffer for the encoder, which
// writes only the color channels.
func flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
