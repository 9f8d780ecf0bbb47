package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Storage  StorageConfig  `yaml:"storage"`
	Labeler  LabelerConfig  `yaml:"labeler"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
	// RateLimit is requests per minute per client; 0 disables limiting.
	RateLimit int `yaml:"rate_limit"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

// StorageConfig points at an S3-compatible bucket for dataset exports.
// An empty Endpoint disables uploads.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

type LabelerConfig struct {
	Workers         int `yaml:"workers"`
	StatsIntervalMs int `yaml:"stats_interval_ms"`
}

// ScoringConfig overrides the engine constants. Zero values and nil pointers keep
// the profile default.
type ScoringConfig struct {
	Profile              string                 `yaml:"profile"`
	Grid                 GridConfig             `yaml:"grid"`
	RayStride            int                    `yaml:"ray_stride"`
	Bounds               BoundsConfig           `yaml:"bounds"`
	Weights              map[string]float64     `yaml:"weights"`
	Materials            map[string]float64     `yaml:"materials"`
	DefaultMaterialScore *float64               `yaml:"default_material_score"`
	Frequencies          map[string]float64     `yaml:"frequencies"`
	DefaultFrequency     *float64               `yaml:"default_frequency"`
	Checklist            []ChecklistEntryConfig `yaml:"checklist"`

	// Each adjacency pair is two module type names, e.g. [FOOD, SOCIAL].
	AdjacencyPairs    [][2]string `yaml:"adjacency_pairs"`
	NoisyTypes        []string    `yaml:"noisy_types"`
	Workstations      []string    `yaml:"workstations"`
	SlotOrder         []string    `yaml:"slot_order"`
	FreeTilesGoal     int         `yaml:"free_tiles_goal"`
	ZonificationReach float64     `yaml:"zonification_reach"`
	PrivacyReach      float64     `yaml:"privacy_reach"`
	RayReach          float64     `yaml:"ray_reach"`
}

type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type RangeConfig struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type BoundsConfig struct {
	Mass *RangeConfig `yaml:"mass"`
	// WeightedMass is the mass domain used by the weighted variant.
	WeightedMass *RangeConfig `yaml:"weighted_mass"`
	LogVolume    *RangeConfig `yaml:"log_volume"`
	PerCrew      *RangeConfig `yaml:"per_crew"`
	Radiation    *RangeConfig `yaml:"radiation"`
	Permanence   *RangeConfig `yaml:"permanence"`
}

// ChecklistEntryConfig whitelists the presence combination where exactly the
// Missing categories are absent.
type ChecklistEntryConfig struct {
	Missing []string `yaml:"missing"`
	Score   float64  `yaml:"score"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Enabled reports whether dataset uploads are configured.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.Labeler.StatsIntervalMs) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			RateLimit:   600,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Storage: StorageConfig{
			Bucket: "habitat-datasets",
			Region: "us-east-1",
		},
		Labeler: LabelerConfig{
			Workers:         4,
			StatsIntervalMs: 60000,
		},
		Scoring: ScoringConfig{
			Profile: "default",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HABITAT_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("HABITAT_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("HABITAT_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("HABITAT_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("HABITAT_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("HABITAT_STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("HABITAT_STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("HABITAT_STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("HABITAT_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("HABITAT_LABELER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Labeler.Workers = n
		}
	}
	if v := os.Getenv("HABITAT_STATS_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Labeler.StatsIntervalMs = n
		}
	}
	if v := os.Getenv("HABITAT_SCORING_PROFILE"); v != "" {
		cfg.Scoring.Profile = v
	}
	if v := os.Getenv("HABITAT_RAY_STRIDE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scoring.RayStride = n
		}
	}
	if v := os.Getenv("HABITAT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// NewLogger builds the process logger from the logging section.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(l.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
