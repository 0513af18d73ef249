package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/trunov/mediaconv/internal/config"
)

// demuxers maps audio extensions to the ffmpeg input format name.
var demuxers = map[string]string{
	"mp3":  "mp3",
	"wav":  "wav",
	"ogg":  "ogg",
	"oga":  "ogg",
	"opus": "ogg",
	"flac": "flac",
	"aac":  "aac",
	"m4a":  "mov",
	"mp4":  "mov",
	"3gp":  "mov",
	"wma":  "asf",
	"aiff": "aiff",
	"amr":  "amr",
}

// Transcoder re-encodes audio to constant bitrate MP3 through ffmpeg.
type Transcoder struct {
	ffmpeg  string
	bitrate string
	timeout time.Duration
}

func NewTranscoder(cfg config.AudioConfig) *Transcoder {
	return &Transcoder{
		ffmpeg:  cfg.FFmpegPath,
		bitrate: cfg.Bitrate,
		timeout: cfg.Timeout(),
	}
}

// Transcode decodes raw using hint as the input format when it names a known
// audio type, and lets ffmpeg probe the input otherwise.
func (t *Transcoder) Transcode(ctx context.Context, raw []byte, hint string) ([]byte, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyInput
	}

	// ffmpeg needs a seekable input for containers with a trailing index.
	src, err := os.CreateTemp("", "mediaconv-*")
	if err != nil {
		return nil, fmt.Errorf("spool audio input: %w", err)
	}
	defer os.Remove(src.Name())
	if _, err := src.Write(raw); err != nil {
		src.Close()
		return nil, fmt.Errorf("spool audio input: %w", err)
	}
	if err := src.Close(); err != nil {
		return nil, fmt.Errorf("spool audio input: %w", err)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctxTimeout, t.ffmpeg, t.args(src.Name(), hint)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg error: %v | %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg produced no output")
	}
	return stdout.Bytes(), nil
}

func (t *Transcoder) args(input, hint string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if f, ok := demuxers[hint]; ok {
		args = append(args, "-f", f)
	}
	return append(args,
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", t.bitrate,
		"-f", "mp3",
		"pipe:1",
	)
}
