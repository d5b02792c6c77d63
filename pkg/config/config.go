// Package config loads the vaarweggraph settings from defaults, an optional
// .env file, an optional YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnv names the variable holding the YAML config path.
const FileEnv = "VAARWEG_CONFIG"

type Config struct {
	Neo4j    Neo4jConfig   `yaml:"neo4j"`
	Source   SourceConfig  `yaml:"source"`
	Output   OutputConfig  `yaml:"output"`
	Metrics  MetricsConfig `yaml:"metrics"`
	NATS     NATSConfig    `yaml:"nats"`
	Schedule string        `yaml:"schedule"`
	LogLevel string        `yaml:"log_level" validate:"oneof=debug info warn error"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri" validate:"required,uri"`
	User     string `yaml:"user"`
	Password string `yaml:"password" validate:"required_with=User"`
	Database string `yaml:"database"`
	Truncate bool   `yaml:"truncate"`
	// Spatial builds the R-tree layers; it needs the neo4j-spatial plugin.
	Spatial bool `yaml:"spatial"`
}

type SourceConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"required,url"`
	PageSize          int           `yaml:"page_size" validate:"min=1,max=1000"`
	MaxPages          int           `yaml:"max_pages" validate:"min=1"`
	Timeout           time.Duration `yaml:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" validate:"gte=0"`
	// ObjectTypes is a comma separated list; empty fetches every type.
	ObjectTypes string `yaml:"object_types"`
}

type OutputConfig struct {
	Dir         string `yaml:"dir" validate:"required"`
	Export      bool   `yaml:"export"`
	Cache       bool   `yaml:"cache"`
	CachePath   string `yaml:"cache_path" validate:"required_if=Cache true"`
	WarningsLog string `yaml:"warnings_log"`
}

type MetricsConfig struct {
	// Port 0 disables the metrics server.
	Port int `yaml:"port" validate:"min=0,max=65535"`
}

type NATSConfig struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Subject string `yaml:"subject" validate:"required_with=URL"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			Truncate: true,
			Spatial:  true,
		},
		Source: SourceConfig{
			BaseURL:  "https://www.vaarweginformatie.nl/wfswms/dataservice/1.3",
			PageSize: 100,
			MaxPages: 1000,
			Timeout:  5 * time.Second,
		},
		Output: OutputConfig{
			Dir:         "output",
			Export:      true,
			Cache:       true,
			CachePath:   "output/dataset.cache",
			WarningsLog: "warnings.log",
		},
		NATS:     NATSConfig{Subject: "vaarweg.graph.loaded"},
		LogLevel: "info",
	}
}

// Load builds a Config. path overrides the VAARWEG_CONFIG variable; a
// missing .env file is not an error, a missing YAML file is.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: .env not loaded", "error", err)
	}
	cfg := Default()

	if path == "" {
		path = os.Getenv(FileEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Neo4j.URI = getEnv("NEO4J_URI", c.Neo4j.URI)
	c.Neo4j.User = getEnv("NEO4J_USER", c.Neo4j.User)
	c.Neo4j.Password = getEnv("NEO4J_PASSWORD", c.Neo4j.Password)
	c.Neo4j.Database = getEnv("NEO4J_DATABASE", c.Neo4j.Database)
	c.Neo4j.Truncate = getEnvAsBool("VAARWEG_TRUNCATE", c.Neo4j.Truncate)
	c.Neo4j.Spatial = getEnvAsBool("VAARWEG_SPATIAL", c.Neo4j.Spatial)

	c.Source.BaseURL = getEnv("VAARWEG_BASE_URL", c.Source.BaseURL)
	c.Source.PageSize = getEnvAsInt("VAARWEG_PAGE_SIZE", c.Source.PageSize)
	c.Source.MaxPages = getEnvAsInt("VAARWEG_MAX_PAGES", c.Source.MaxPages)
	c.Source.Timeout = getEnvAsDuration("VAARWEG_TIMEOUT", c.Source.Timeout)
	c.Source.RequestsPerSecond = getEnvAsFloat("VAARWEG_RPS", c.Source.RequestsPerSecond)
	c.Source.ObjectTypes = getEnv("VAARWEG_OBJECT_TYPES", c.Source.ObjectTypes)

	c.Output.Dir = getEnv("VAARWEG_OUTPUT_DIR", c.Output.Dir)
	c.Output.Export = getEnvAsBool("VAARWEG_EXPORT", c.Output.Export)
	c.Output.Cache = getEnvAsBool("VAARWEG_CACHE", c.Output.Cache)
	c.Output.CachePath = getEnv("VAARWEG_CACHE_PATH", c.Output.CachePath)
	c.Output.WarningsLog = getEnv("VAARWEG_WARNINGS_LOG", c.Output.WarningsLog)

	c.Metrics.Port = getEnvAsInt("METRICS_PORT", c.Metrics.Port)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.NATS.Subject = getEnv("VAARWEG_NATS_SUBJECT", c.NATS.Subject)
	c.Schedule = getEnv("VAARWEG_SCHEDULE", c.Schedule)
	c.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", c.LogLevel))
}

var validate = validator.New()

// Validate checks the struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("config: invalid integer, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("config: invalid number, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		slog.Warn("config: invalid boolean, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		slog.Warn("config: invalid duration, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}
