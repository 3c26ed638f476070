package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.TrackURL == "" || cfg.EventsURL == "" || cfg.UploadURL == "" {
		t.Fatalf("expected default endpoint urls")
	}
	if cfg.UploadInterval != 60*time.Second {
		t.Fatalf("expected 60s upload interval, got %v", cfg.UploadInterval)
	}
	if !cfg.AssumeGranted {
		t.Fatalf("expected permissions assumed granted by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("TRACK_URL", "http://localhost:9999/track")
	t.Setenv("UPLOAD_INTERVAL", "30s")
	t.Setenv("UPLOAD_TOKEN", "tok")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.TrackURL != "http://localhost:9999/track" {
		t.Fatalf("expected override track url")
	}
	if cfg.UploadInterval != 30*time.Second {
		t.Fatalf("expected override interval, got %v", cfg.UploadInterval)
	}
	if cfg.UploadToken != "tok" {
		t.Fatalf("expected override token")
	}
}
