package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultPort           = ":8080"
	DefaultStageInterval  = 1400 * time.Millisecond
	DefaultRunwayKeyEnv   = "RUNWAY_API_KEY"
	DefaultRunwayEndpoint = "https://api.dev.runwayml.com"
	DefaultRunwayModel    = "gen4_turbo"
	DefaultRunwayVersion  = "2024-11-06"
	DefaultRunwayTimeout  = 5 * time.Minute
	DefaultPollInterval   = 3 * time.Second
	DefaultConcurrency    = 5
	DefaultBucket         = "image-to-video"
	DefaultMockLatency    = 1200 * time.Millisecond
	DefaultConfigPath     = "config/config.yaml"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Worker struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"worker"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Runway   RunwayConfig   `yaml:"runway"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// RunwayConfig holds the real provider settings. The API key itself is never
// stored here; APIKeyEnv names the environment variable read on every call.
type RunwayConfig struct {
	APIKeyEnv    string        `yaml:"api_key_env"`
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIVersion   string        `yaml:"api_version"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type PipelineConfig struct {
	StageInterval time.Duration `yaml:"stage_interval"`
	MockLatency   time.Duration `yaml:"mock_latency"`
}

// Load reads a YAML config file. A missing file is an error; an empty file and
// omitted fields take their defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := &Config{}
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config with every field at its default, for commands that
// run without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = DefaultConcurrency
	}
	if c.MinIO.Bucket == "" {
		c.MinIO.Bucket = DefaultBucket
	}
	if c.Runway.APIKeyEnv == "" {
		c.Runway.APIKeyEnv = DefaultRunwayKeyEnv
	}
	if c.Runway.Endpoint == "" {
		c.Runway.Endpoint = DefaultRunwayEndpoint
	}
	if c.Runway.Model == "" {
		c.Runway.Model = DefaultRunwayModel
	}
	if c.Runway.APIVersion == "" {
		c.Runway.APIVersion = DefaultRunwayVersion
	}
	if c.Runway.Timeout <= 0 {
		c.Runway.Timeout = DefaultRunwayTimeout
	}
	if c.Runway.PollInterval <= 0 {
		c.Runway.PollInterval = DefaultPollInterval
	}
	if c.Pipeline.StageInterval <= 0 {
		c.Pipeline.StageInterval = DefaultStageInterval
	}
	if c.Pipeline.MockLatency <= 0 {
		c.Pipeline.MockLatency = DefaultMockLatency
	}
}

// RunwayKey returns the provider credential from the environment. It is read
// on every call so the real/fallback decision follows the live environment.
func (c *Config) RunwayKey() string {
	return os.Getenv(c.Runway.APIKeyEnv)
}
