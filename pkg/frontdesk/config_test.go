package frontdesk

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "environment: production\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "production" {
		t.Fatalf("expected production, got %q", cfg.Environment)
	}
	if cfg.VAD.RMSThreshold != 500 || cfg.VAD.SpeechFrames != 10 || cfg.VAD.SilenceReset != 5 {
		t.Fatalf("unexpected vad defaults: %+v", cfg.VAD)
	}
	if cfg.Audio.RingCapacity != 100 {
		t.Fatalf("expected ring capacity 100, got %d", cfg.Audio.RingCapacity)
	}
	if cfg.Sessions.IdleTTLMS != 120000 {
		t.Fatalf("expected idle ttl 120000, got %d", cfg.Sessions.IdleTTLMS)
	}
	if cfg.Transport.Provider != "twilio" || cfg.Responder.Provider != "static" {
		t.Fatalf("unexpected providers: %+v / %+v", cfg.Transport, cfg.Responder)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
vad:
  rms_threshold: 750
  speech_frames: 15
transport:
  provider: twilio
  settings:
    server_addr: ":9000"
    auth_token: "secret"
responder:
  provider: gemini
  settings:
    api_key: "key"
    model: "gemini-2.5-flash"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.VAD.RMSThreshold != 750 || cfg.VAD.SpeechFrames != 15 {
		t.Fatalf("overrides not applied: %+v", cfg.VAD)
	}
	if cfg.VAD.SilenceReset != 5 {
		t.Fatalf("expected default silence reset, got %d", cfg.VAD.SilenceReset)
	}
	if cfg.Transport.Settings["server_addr"] != ":9000" {
		t.Fatalf("transport settings not decoded: %+v", cfg.Transport.Settings)
	}
	if cfg.Responder.Provider != "gemini" {
		t.Fatalf("expected gemini responder, got %q", cfg.Responder.Provider)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config")
	}
}
