package entities

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestNewJobRawBytes(t *testing.T) {
	job, err := NewJob(RawBytes([]byte("abc")), ".PNG", ModeSync, nil)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected generated ID")
	}
	if !bytes.Equal(job.Payload, []byte("abc")) {
		t.Errorf("Payload = %q, want %q", job.Payload, "abc")
	}
	if job.Extension != "png" {
		t.Errorf("Extension = %q, want %q", job.Extension, "png")
	}
	data, err := job.Data()
	if err != nil || !bytes.Equal(data, job.Payload) {
		t.Errorf("Data() = %q, %v", data, err)
	}
}

func TestNewJobBase64(t *testing.T) {
	text := base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0x00})
	job, err := NewJob(Base64Text(text), "jpg", ModeAsync, &Callback{URL: "http://example.com/hook"})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	if !bytes.Equal(job.Payload, []byte{0xff, 0xd8, 0x00}) {
		t.Errorf("Payload = %v", job.Payload)
	}
	if !job.WantsDelivery() {
		t.Error("async job with callback should want delivery")
	}
}

func TestNewJobBadBase64(t *testing.T) {
	if _, err := NewJob(Base64Text("not base64!"), "", ModeSync, nil); !errors.Is(err, ErrInvalidBase64) {
		t.Fatalf("err = %v, want ErrInvalidBase64", err)
	}
}

func TestNewJobZeroInput(t *testing.T) {
	_, err := NewJob(Input{}, "", ModeSync, nil)
	if !errors.Is(err, ErrUnsupportedPayload) {
		t.Fatalf("err = %v, want ErrUnsupportedPayload", err)
	}
}

func TestNewJobUniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		job, err := NewJob(RawBytes(nil), "", "", nil)
		if err != nil {
			t.Fatal(err)
		}
		if seen[job.ID] {
			t.Fatalf("duplicate id %s", job.ID)
		}
		seen[job.ID] = true
		if job.Mode != ModeSync {
			t.Errorf("Mode = %q, want default %q", job.Mode, ModeSync)
		}
	}
}

func TestNormalizeExtension(t *testing.T) {
	tests := map[string]string{
		"":         "",
		".JPG":     "jpg",
		"tar.gz":   "targz",
		" .Mp3 ":   "mp3",
		"webp":     "webp",
		"..ogg...": "ogg",
	}
	for in, want := range tests {
		if got := NormalizeExtension(in); got != want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRestoreJobPayloadError(t *testing.T) {
	job := RestoreJob("id-1", nil, ErrUnsupportedPayload, "png", ModeSync, nil)
	if _, err := job.Data(); !errors.Is(err, ErrUnsupportedPayload) {
		t.Errorf("Data() err = %v, want ErrUnsupportedPayload", err)
	}
}

func TestNewResult(t *testing.T) {
	job, _ := NewJob(RawBytes([]byte("x")), "png", ModeSync, nil)
	res := NewResult(job, []byte("out"))
	if res.ID != job.ID {
		t.Errorf("ID = %q, want %q", res.ID, job.ID)
	}
	if res.Origin.ID != job.ID || res.Origin.Extension != "png" {
		t.Errorf("Origin = %+v", res.Origin)
	}
	if res.Failed() {
		t.Error("non-empty output must not be failed")
	}
	if !NewResult(job, nil).Failed() {
		t.Error("empty output must be failed")
	}
}
