package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cache.Capacity != 1024 {
		t.Errorf("unexpected default cache capacity %d", cfg.Cache.Capacity)
	}
	if cfg.Retention.Thresholds.Boost != 0.80 {
		t.Errorf("unexpected default boost threshold %v", cfg.Retention.Thresholds.Boost)
	}
	if cfg.Heartbeat.Schedule != "@every 10m" {
		t.Errorf("unexpected default heartbeat %q", cfg.Heartbeat.Schedule)
	}
}

func TestLoad_OverridesKeepUnnamedDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	content := []byte(`
storage:
  path: /tmp/recall.db
cache:
  capacity: 64
memory:
  volatile_capacity: 8
heartbeat:
  schedule: "@every 1m"
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Path != "/tmp/recall.db" {
		t.Errorf("storage path not applied: %q", cfg.Storage.Path)
	}
	if cfg.Cache.Capacity != 64 || cfg.Memory.VolatileCapacity != 8 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Heartbeat.Schedule != "@every 1m" {
		t.Errorf("heartbeat override not applied: %q", cfg.Heartbeat.Schedule)
	}
	// Untouched sections keep their defaults.
	if cfg.Memory.PromoteImportance != 6 {
		t.Errorf("unnamed memory defaults lost: %+v", cfg.Memory)
	}
	if cfg.Window.CompactionThreshold != 0.80 {
		t.Errorf("unnamed window defaults lost: %+v", cfg.Window)
	}
}

func TestLoad_BadFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("storage: [not a map"), 0o644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
