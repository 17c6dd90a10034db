package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is everything the CLI needs. Defaults come from Default, then an optional YAML file,
// then environment variables, then command-line flags (applied by the cmd package).
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Paths       PathsConfig       `yaml:"paths"`
	Web         WebConfig         `yaml:"web"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RecognitionConfig holds the tunables of the recognition pipeline.
// Threshold is only the starting value; the operator can move it while the loop runs.
type RecognitionConfig struct {
	Camera          int     `yaml:"camera"`
	Threshold       float64 `yaml:"threshold"`      // LBPH distance, lower is stricter
	ThresholdStep   float64 `yaml:"threshold_step"` // change per +/- keypress
	MinNeighbors    int     `yaml:"min_neighbors"`
	ScaleFactor     float64 `yaml:"scale_factor"`
	MinFaceSize     int     `yaml:"min_face_size"`
	MaxFaceSize     int     `yaml:"max_face_size"`
	FaceSize        int     `yaml:"face_size"` // normalized crop edge
	HistorySize     int     `yaml:"history_size"`
	ConsensusFrames int     `yaml:"consensus_frames"`
	MinSharpness    float64 `yaml:"min_sharpness"`
	MinBrightness   float64 `yaml:"min_brightness"`
	MaxBrightness   float64 `yaml:"max_brightness"`
	ShowWindow      bool    `yaml:"show_window"`
}

type PathsConfig struct {
	Dataset string `yaml:"dataset"`
	Model   string `yaml:"model"`
	Mapping string `yaml:"mapping"`
	Cascade string `yaml:"cascade"`
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// MinThreshold and MaxThreshold bound the runtime-adjustable threshold.
const (
	MinThreshold = 0.0
	MaxThreshold = 100.0
)

// Default returns the configuration the recognizer ships with.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{URL: ""},
		Recognition: RecognitionConfig{
			Camera:          0,
			Threshold:       65,
			ThresholdStep:   5,
			MinNeighbors:    5,
			ScaleFactor:     1.1,
			MinFaceSize:     60,
			MaxFaceSize:     300,
			FaceSize:        200,
			HistorySize:     5,
			ConsensusFrames: 3,
			MinSharpness:    100,
			MinBrightness:   50,
			MaxBrightness:   200,
			ShowWindow:      true,
		},
		Paths: PathsConfig{
			Dataset: "dataset",
			Model:   "face_model.yml",
			Mapping: "id_mapping.json",
			Cascade: "haarcascade_frontalface_default.xml",
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when path is empty)
// and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.URL = databaseURL(c.Database.URL)

	r := &c.Recognition
	r.Camera = envInt("ROLLCALL_CAMERA", r.Camera)
	r.Threshold = envFloat("ROLLCALL_THRESHOLD", r.Threshold)
	r.MinNeighbors = envInt("ROLLCALL_MIN_NEIGHBORS", r.MinNeighbors)
	r.MinSharpness = envFloat("ROLLCALL_MIN_SHARPNESS", r.MinSharpness)

	c.Paths.Dataset = envString("ROLLCALL_DATASET", c.Paths.Dataset)
	c.Paths.Model = envString("ROLLCALL_MODEL", c.Paths.Model)
	c.Paths.Mapping = envString("ROLLCALL_MAPPING", c.Paths.Mapping)
	c.Paths.Cascade = envString("ROLLCALL_CASCADE", c.Paths.Cascade)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
}

// databaseURL prefers DATABASE_URL, then builds one from POSTGRES_* variables,
// then falls back to the configured value or a local default.
func databaseURL(configured string) string {
	if u := os.Getenv("DATABASE_URL"); u != "" {
		return u
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	if configured != "" {
		return configured
	}
	return "postgres://localhost:5432/rollcall"
}

// Validate checks that the recognition settings are usable.
func (c *Config) Validate() error {
	r := c.Recognition
	var errs []error
	if r.Threshold < MinThreshold || r.Threshold > MaxThreshold {
		errs = append(errs, fmt.Errorf("threshold must be between %.0f and %.0f, got %.1f", MinThreshold, MaxThreshold, r.Threshold))
	}
	if r.ThresholdStep <= 0 {
		errs = append(errs, fmt.Errorf("threshold step must be positive, got %.1f", r.ThresholdStep))
	}
	if r.ConsensusFrames < 1 {
		errs = append(errs, fmt.Errorf("consensus frames must be >= 1, got %d", r.ConsensusFrames))
	}
	if r.HistorySize < r.ConsensusFrames {
		errs = append(errs, fmt.Errorf("history size (%d) must be at least consensus frames (%d)", r.HistorySize, r.ConsensusFrames))
	}
	if r.MinBrightness >= r.MaxBrightness {
		errs = append(errs, fmt.Errorf("brightness band is empty: %.1f-%.1f", r.MinBrightness, r.MaxBrightness))
	}
	if r.ScaleFactor <= 1.0 {
		errs = append(errs, fmt.Errorf("scale factor must be > 1.0, got %.2f", r.ScaleFactor))
	}
	if r.FaceSize < 1 {
		errs = append(errs, fmt.Errorf("face size must be positive, got %d", r.FaceSize))
	}
	if r.MaxFaceSize > 0 && r.MinFaceSize > r.MaxFaceSize {
		errs = append(errs, fmt.Errorf("min face size (%d) exceeds max face size (%d)", r.MinFaceSize, r.MaxFaceSize))
	}
	return errors.Join(errs...)
}

// envInt reads an environment variable as an integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}
