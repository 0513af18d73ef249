package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/trunov/mediaconv/internal/config"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"api", "worker", "all"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q): %v", s, err)
		}
	}
	if _, err := ParseRole("scheduler"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func testConfig(t *testing.T, redisAddr string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	if err := cfg.Read(""); err != nil {
		t.Fatalf("Read: %v", err)
	}
	cfg.Redis.Addr = redisAddr
	cfg.Auth.Token = "tok"
	cfg.Server.Port = 0
	cfg.Server.MetricsPort = 0
	cfg.Image.TargetWidth, cfg.Image.TargetHeight = 64, 48
	cfg.Wait.TimeoutSeconds = 10
	return cfg
}

func pngPayload(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRoleWiring(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api, err := New(ctx, testConfig(t, mr.Addr()), RoleAPI, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if api.HttpServer == nil || api.worker != nil || api.MetricsServer != nil {
		t.Errorf("api role wiring: http=%v worker=%v metrics=%v", api.HttpServer != nil, api.worker != nil, api.MetricsServer != nil)
	}

	cfg := testConfig(t, mr.Addr())
	cfg.Server.MetricsPort = 9999
	worker, err := New(ctx, cfg, RoleWorker, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if worker.HttpServer != nil || worker.worker == nil || worker.MetricsServer == nil {
		t.Errorf("worker role wiring: http=%v worker=%v metrics=%v", worker.HttpServer != nil, worker.worker != nil, worker.MetricsServer != nil)
	}
}

func TestConvertEndToEnd(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t, mr.Addr())
	a, err := New(ctx, cfg, RoleAll, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for mr.PubSubNumSub(cfg.Bus.JobsChannel)[cfg.Bus.JobsChannel] < 1 {
		if time.Now().After(deadline) {
			t.Fatal("worker never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}
	<-a.waiters.Ready()

	body := fmt.Sprintf(`{"data": %q, "extension": "png"}`, pngPayload(t))
	req := httptest.NewRequest(http.MethodPost, "/convert", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer tok")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.HttpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	img, err := jpeg.Decode(rec.Body)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("output %dx%d, want 64x48", b.Dx(), b.Dy())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil after cancel", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
