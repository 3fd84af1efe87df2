package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"fleet-ai-gateway/internal/models"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Host           string        `env:"HOST" envDefault:"0.0.0.0"`
	Port           int           `env:"PORT" envDefault:"8000"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3001,http://localhost:5173"`
	UploadDir      string        `env:"UPLOAD_DIR" envDefault:"temp"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"33554432"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`

	ModelServerURL    string        `env:"MODEL_SERVER_URL" envDefault:"http://localhost:8500"`
	ModelsFile        string        `env:"MODELS_FILE"`
	ModelLoadAttempts uint          `env:"MODEL_LOAD_ATTEMPTS" envDefault:"3"`
	ModelLoadDelay    time.Duration `env:"MODEL_LOAD_DELAY" envDefault:"500ms"`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	TraceStdout bool   `env:"TRACE_STDOUT" envDefault:"false"`
}

func LoadConfig() (*Config, error) {
	return parse(env.Options{})
}

// LoadConfigFrom parses the config from the given variables instead of the
// process environment.
func LoadConfigFrom(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.ModelServerURL == "" {
		return fmt.Errorf("MODEL_SERVER_URL must not be empty")
	}
	if c.MaxUploadBytes < 0 {
		return fmt.Errorf("invalid MAX_UPLOAD_BYTES %d", c.MaxUploadBytes)
	}
	if c.ModelLoadAttempts == 0 {
		c.ModelLoadAttempts = 1
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		return fmt.Errorf("invalid LOG_FORMAT '%s': must be text or json", c.LogFormat)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type modelsFile struct {
	Models map[string]struct {
		URL          string `yaml:"url"`
		LoadAttempts uint   `yaml:"load_attempts"`
	} `yaml:"models"`
}

// ModelConfigs returns the remote config of every capability. Entries in
// MODELS_FILE override the defaults derived from MODEL_SERVER_URL.
func (c *Config) ModelConfigs() (map[models.Capability]models.RemoteConfig, error) {
	configs := make(map[models.Capability]models.RemoteConfig, len(models.LoadOrder))
	for _, capability := range models.LoadOrder {
		configs[capability] = models.RemoteConfig{
			BaseURL:      strings.TrimRight(c.ModelServerURL, "/") + "/" + string(capability),
			LoadAttempts: c.ModelLoadAttempts,
			LoadDelay:    c.ModelLoadDelay,
		}
	}

	if c.ModelsFile == "" {
		return configs, nil
	}

	data, err := os.ReadFile(c.ModelsFile)
	if err != nil {
		return nil, fmt.Errorf("error reading models file '%s': %w", c.ModelsFile, err)
	}

	var file modelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing models file '%s': %w", c.ModelsFile, err)
	}

	for name, override := range file.Models {
		capability := models.Capability(name)
		cfg, ok := configs[capability]
		if !ok {
			return nil, fmt.Errorf("unknown model '%s' in models file '%s'", name, c.ModelsFile)
		}
		if override.URL != "" {
			cfg.BaseURL = override.URL
		}
		if override.LoadAttempts > 0 {
			cfg.LoadAttempts = override.LoadAttempts
		}
		configs[capability] = cfg
	}

	return configs, nil
}
