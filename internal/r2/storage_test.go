package r2

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	conf "github.com/trunov/mediaconv/internal/config"
)

// fakeBucket answers path-style PUT and GET object requests.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		b.objects[r.URL.Path] = body
		b.types[r.URL.Path] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := b.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<Error><Code>NoSuchKey</Code></Error>`)
			return
		}
		w.Header().Set("Content-Type", b.types[r.URL.Path])
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorage(t *testing.T) (*S3, *fakeBucket) {
	t.Helper()
	bucket := &fakeBucket{objects: make(map[string][]byte), types: make(map[string]string)}
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)

	s, err := NewStorage(context.Background(), conf.R2Config{
		BucketName:  "media",
		AccessKeyID: "key",
		SecretKey:   "secret",
		Endpoint:    srv.URL,
	})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return s, bucket
}

func TestUploadDownload(t *testing.T) {
	s, bucket := newTestStorage(t)
	ctx := context.Background()

	if err := s.Upload(ctx, "results/job-1.jpg", "image/jpeg", []byte("jpeg bytes")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got := string(bucket.objects["/media/results/job-1.jpg"]); got != "jpeg bytes" {
		t.Errorf("stored %q", got)
	}

	body, ct, err := s.Download(ctx, "results/job-1.jpg")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(body) != "jpeg bytes" || ct != "image/jpeg" {
		t.Errorf("Download = %q, %q", body, ct)
	}
}

func TestDownloadMissing(t *testing.T) {
	s, _ := newTestStorage(t)
	if _, _, err := s.Download(context.Background(), "results/nope.mp3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
