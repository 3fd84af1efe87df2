package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fleet-ai-gateway/internal/config"
	"fleet-ai-gateway/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.LoadConfigFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, []string{"http://localhost:3001", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Equal(t, "temp", cfg.UploadDir)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.EqualValues(t, 3, cfg.ModelLoadAttempts)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestOverrides(t *testing.T) {
	cfg, err := config.LoadConfigFrom(map[string]string{
		"PORT":            "9100",
		"ALLOWED_ORIGINS": "https://fleet.example.com",
		"REQUEST_TIMEOUT": "5s",
		"LOG_LEVEL":       "debug",
		"LOG_FORMAT":      "json",
	})
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9100", cfg.Addr())
	assert.Equal(t, []string{"https://fleet.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestInvalidConfig(t *testing.T) {
	_, err := config.LoadConfigFrom(map[string]string{"PORT": "70000"})
	assert.Error(t, err)

	_, err = config.LoadConfigFrom(map[string]string{"LOG_FORMAT": "xml"})
	assert.Error(t, err)

	_, err = config.LoadConfigFrom(map[string]string{"PORT": "abc"})
	assert.Error(t, err)
}

func TestModelConfigsDefaults(t *testing.T) {
	cfg, err := config.LoadConfigFrom(map[string]string{"MODEL_SERVER_URL": "http://models:8500/"})
	require.NoError(t, err)

	configs, err := cfg.ModelConfigs()
	require.NoError(t, err)
	require.Len(t, configs, len(models.LoadOrder))

	assert.Equal(t, "http://models:8500/maintenance", configs[models.Maintenance].BaseURL)
	assert.Equal(t, "http://models:8500/vision", configs[models.Vision].BaseURL)
	assert.EqualValues(t, 3, configs[models.Chat].LoadAttempts)
}

func TestModelConfigsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  vision:
    url: http://vision-gpu:9000
    load_attempts: 10
  chat:
    url: http://chat:9001
`), 0600))

	cfg, err := config.LoadConfigFrom(map[string]string{"MODELS_FILE": path})
	require.NoError(t, err)

	configs, err := cfg.ModelConfigs()
	require.NoError(t, err)

	assert.Equal(t, "http://vision-gpu:9000", configs[models.Vision].BaseURL)
	assert.EqualValues(t, 10, configs[models.Vision].LoadAttempts)
	assert.Equal(t, "http://chat:9001", configs[models.Chat].BaseURL)
	assert.EqualValues(t, 3, configs[models.Chat].LoadAttempts)
	assert.Equal(t, "http://localhost:8500/pricing", configs[models.Pricing].BaseURL)
}

func TestModelConfigsUnknownModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  weather:\n    url: http://x\n"), 0600))

	cfg, err := config.LoadConfigFrom(map[string]string{"MODELS_FILE": path})
	require.NoError(t, err)

	_, err = cfg.ModelConfigs()
	assert.ErrorContains(t, err, "unknown model 'weather'")
}
