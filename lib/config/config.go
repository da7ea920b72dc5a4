package config

import (
	"cmp"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultRegistryCacheTTLSeconds = 600
	defaultFlushIntervalSeconds    = 10
	defaultBufferRows              = 10_000

	flushIntervalSecondsStart = 1
	flushIntervalSecondsEnd   = 6 * 60 * 60
)

type Sentry struct {
	DSN string `yaml:"dsn"`
}

type Registry struct {
	// Path selects the backend by scheme: s3://bucket/key, gs://bucket/key, or a
	// local file path.
	Path string `yaml:"path"`
	// CacheTTLSeconds controls registry cache staleness; 0 caches forever and
	// RefreshRegistry becomes the only way to update the cache.
	CacheTTLSeconds int `yaml:"cacheTTLSeconds"`

	// S3 settings, only read for s3:// paths.
	S3Region string `yaml:"s3Region,omitempty"`
	// RoleARN, when set, is assumed before touching the registry object.
	RoleARN string `yaml:"roleARN,omitempty"`

	// PathToCredentials is optional for gs:// paths if GOOGLE_APPLICATION_CREDENTIALS is set.
	PathToCredentials string `yaml:"pathToCredentials,omitempty"`
}

type FeatureServer struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// JWTSecret enables bearer-token auth when non-empty.
	JWTSecret string `yaml:"jwtSecret,omitempty"`
	// RequestsPerSecond rate limits each client address; 0 disables limiting.
	RequestsPerSecond float64 `yaml:"requestsPerSecond,omitempty"`
}

type Config struct {
	Project  string   `yaml:"project"`
	Provider string   `yaml:"provider"`
	Registry Registry `yaml:"registry"`

	OnlineStore  OnlineStore  `yaml:"onlineStore"`
	OfflineStore OfflineStore `yaml:"offlineStore"`

	Stream        *Stream       `yaml:"stream,omitempty"`
	FeatureServer FeatureServer `yaml:"featureServer"`

	Reporting struct {
		Sentry *Sentry `yaml:"sentry"`
	} `yaml:"reporting"`

	Telemetry struct {
		Metrics struct {
			Provider string         `yaml:"provider"`
			Settings map[string]any `yaml:"settings,omitempty"`
		} `yaml:"metrics"`
	} `yaml:"telemetry"`
}

func readFileToConfig(pathToConfig string) (*Config, error) {
	file, err := os.Open(pathToConfig)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var config Config
	if err = yaml.Unmarshal(bytes, &config); err != nil {
		return nil, err
	}

	config.Provider = cmp.Or(config.Provider, "local")
	if config.Registry.CacheTTLSeconds == 0 {
		config.Registry.CacheTTLSeconds = defaultRegistryCacheTTLSeconds
	}

	if config.OnlineStore.Type == "" {
		config.OnlineStore.Type = OnlineStoreMemory
	}

	if config.OfflineStore.Type == "" {
		config.OfflineStore.Type = OfflineStoreFile
	}

	if config.Stream != nil {
		config.Stream.FlushIntervalSeconds = cmp.Or(config.Stream.FlushIntervalSeconds, defaultFlushIntervalSeconds)
		config.Stream.BufferRows = cmp.Or(config.Stream.BufferRows, uint(defaultBufferRows))
	}

	config.FeatureServer.Host = cmp.Or(config.FeatureServer.Host, "127.0.0.1")
	if config.FeatureServer.Port == 0 {
		config.FeatureServer.Port = 6566
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	if c.Project == "" {
		return fmt.Errorf("config is invalid, project is empty")
	}

	if c.Provider != "local" {
		return fmt.Errorf("config is invalid, unsupported provider: %q", c.Provider)
	}

	if c.Registry.Path == "" {
		return fmt.Errorf("config is invalid, registry path is empty")
	}

	if err := c.OnlineStore.Validate(); err != nil {
		return fmt.Errorf("config is invalid, online store: %w", err)
	}

	if err := c.OfflineStore.Validate(); err != nil {
		return fmt.Errorf("config is invalid, offline store: %w", err)
	}

	if c.Stream != nil {
		if err := c.Stream.Validate(); err != nil {
			return fmt.Errorf("config is invalid, stream: %w", err)
		}

		if c.Stream.FlushIntervalSeconds < flushIntervalSecondsStart || c.Stream.FlushIntervalSeconds > flushIntervalSecondsEnd {
			return fmt.Errorf("config is invalid, flush interval is outside of our range, seconds: %v, expected start: %v, end: %v",
				c.Stream.FlushIntervalSeconds, flushIntervalSecondsStart, flushIntervalSecondsEnd)
		}
	}

	return nil
}
