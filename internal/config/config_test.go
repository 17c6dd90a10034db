package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"DATABASE_URL", "POSTGRES_HOST", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "POSTGRES_PORT",
		"ROLLCALL_CAMERA", "ROLLCALL_THRESHOLD", "ROLLCALL_MIN_NEIGHBORS", "ROLLCALL_MIN_SHARPNESS",
		"ROLLCALL_DATASET", "ROLLCALL_MODEL", "ROLLCALL_MAPPING", "ROLLCALL_CASCADE", "WEB_HOST", "WEB_PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Recognition.Threshold != 65 {
		t.Errorf("expected default threshold 65, got %v", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.HistorySize != 5 || cfg.Recognition.ConsensusFrames != 3 {
		t.Errorf("unexpected voting defaults: %+v", cfg.Recognition)
	}
}

func TestLoadYAMLThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "rollcall.yaml")
	content := []byte(`
recognition:
  threshold: 55
  min_neighbors: 7
paths:
  dataset: /srv/faces
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ROLLCALL_MIN_NEIGHBORS", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Recognition.Threshold != 55 {
		t.Errorf("expected threshold from YAML (55), got %v", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.MinNeighbors != 9 {
		t.Errorf("expected env override for min neighbors (9), got %d", cfg.Recognition.MinNeighbors)
	}
	if cfg.Paths.Dataset != "/srv/faces" {
		t.Errorf("expected dataset from YAML, got %q", cfg.Paths.Dataset)
	}
	// Untouched keys keep their defaults
	if cfg.Recognition.HistorySize != 5 {
		t.Errorf("expected default history size, got %d", cfg.Recognition.HistorySize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestDatabaseURL(t *testing.T) {
	clearEnv(t)

	if got := databaseURL(""); got != "postgres://localhost:5432/rollcall" {
		t.Errorf("unexpected fallback URL: %s", got)
	}
	if got := databaseURL("postgres://cfg/db"); got != "postgres://cfg/db" {
		t.Errorf("expected configured URL, got %s", got)
	}

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "att")
	if got := databaseURL(""); got != "postgres://u:p@db:5432/att" {
		t.Errorf("unexpected URL from POSTGRES_*: %s", got)
	}

	t.Setenv("DATABASE_URL", "postgres://explicit/db")
	if got := databaseURL(""); got != "postgres://explicit/db" {
		t.Errorf("DATABASE_URL should win, got %s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RecognitionConfig)
	}{
		{"threshold above range", func(r *RecognitionConfig) { r.Threshold = 101 }},
		{"threshold below range", func(r *RecognitionConfig) { r.Threshold = -1 }},
		{"history smaller than window", func(r *RecognitionConfig) { r.HistorySize = 2 }},
		{"empty brightness band", func(r *RecognitionConfig) { r.MinBrightness = 200 }},
		{"scale factor", func(r *RecognitionConfig) { r.ScaleFactor = 1.0 }},
		{"zero step", func(r *RecognitionConfig) { r.ThresholdStep = 0 }},
		{"face sizes", func(r *RecognitionConfig) { r.MinFaceSize = 400 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg.Recognition)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
