package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(ConfigEnv, "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, []string{"webp"}, cfg.Transform.Enabled)
	assert.True(t, cfg.Transform.ConvertOnUpload)
	assert.True(t, cfg.Transform.ConvertInQueue)
	assert.Equal(t, 75, cfg.Encoder.WebP.Quality)
	assert.Equal(t, 80, cfg.Encoder.WebP.FilterStrength)
	assert.Equal(t, "cwebp", cfg.Encoder.CWebPPath)
	assert.Equal(t, "local", cfg.Repository.Backend)
	assert.Equal(t, 2, cfg.Repository.HashLevels)
	assert.Equal(t, "/srv/images", cfg.Repository.Local.Public)
	assert.Equal(t, "/var/lib/webp/queue.db", cfg.Queue.Path)
	assert.Equal(t, 2*time.Second, cfg.Queue.PollInterval)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.True(t, cfg.Server.MetricsEnabled)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, 0.7, cfg.Memory.HighWaterMark)
	assert.Equal(t, 5*time.Second, cfg.Memory.CheckInterval)
	assert.Equal(t, "/images", cfg.Hooks.Public)
	assert.Equal(t, "/images/thumb", cfg.Hooks.Thumb)
}

func TestLoadConfigFile(t *testing.T) {
	p := writeConfig(t, `
transform:
  enabled: [webp, avif]
  thumb_sizes: [120, 240]
  convert_on_upload: false
encoder:
  webp:
    quality: 82
repository:
  backend: s3
  s3:
    bucket: images
queue:
  poll_interval: 500ms
server:
  port: "8081"
`)

	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"webp", "avif"}, cfg.Transform.Enabled)
	assert.Equal(t, []int{120, 240}, cfg.Transform.ThumbSizes)
	assert.False(t, cfg.Transform.ConvertOnUpload)
	assert.True(t, cfg.Transform.ConvertOnTransform, "unset keys keep their defaults")
	assert.Equal(t, 82, cfg.Encoder.WebP.Quality)
	assert.Equal(t, "s3", cfg.Repository.Backend)
	assert.Equal(t, "images", cfg.Repository.S3.Bucket)
	assert.Equal(t, "us-east-1", cfg.Repository.S3.Region)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.PollInterval)
	assert.Equal(t, "8081", cfg.Server.Port)
}

func TestLoadConfigEnvironment(t *testing.T) {
	p := writeConfig(t, "server:\n  port: \"8081\"\n")
	t.Setenv("WEBP_SERVER_PORT", "9000")
	t.Setenv("WEBP_TRANSFORM_ENABLED", "avif")
	t.Setenv("WEBP_ENCODER_AVIF_SPEED", "3")
	t.Setenv("WEBP_REPOSITORY_S3_SECRET_KEY", "secret")
	t.Setenv("WEBP_WATCH_ENABLED", "true")

	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"avif"}, cfg.Transform.Enabled)
	assert.Equal(t, 3, cfg.Encoder.AVIF.Speed)
	assert.Equal(t, "secret", cfg.Repository.S3.SecretKey)
	assert.True(t, cfg.Watch.Enabled)
}

func TestLoadConfigFromEnvPath(t *testing.T) {
	p := writeConfig(t, "queue:\n  workers: 3\n")
	t.Setenv(ConfigEnv, p)

	loader := NewLoader("")
	assert.Equal(t, p, loader.Path())

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Queue.Workers)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"quality out of range", "encoder:\n  webp:\n    quality: 120\n"},
		{"unknown backend", "repository:\n  backend: ftp\n"},
		{"negative thumb size", "transform:\n  thumb_sizes: [-1]\n"},
		{"critical below high water", "memory:\n  high_water_mark: 0.9\n  critical_water_mark: 0.5\n"},
		{"non numeric port", "server:\n  port: http\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}

func TestWatchReloads(t *testing.T) {
	p := writeConfig(t, "encoder:\n  webp:\n    quality: 70\n")
	loader := NewLoader(p)
	_, err := loader.Load()
	require.NoError(t, err)

	changed := make(chan *Config, 4)
	loader.Watch(func(cfg *Config) { changed <- cfg })

	require.NoError(t, os.WriteFile(p, []byte("encoder:\n  webp:\n    quality: 90\n"), 0o644))

	select {
	case cfg := <-changed:
		assert.Equal(t, 90, cfg.Encoder.WebP.Quality)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after the config file changed")
	}
}

func TestWatchWithoutFile(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	loader := NewLoader("")
	// Should return without starting a watcher
	loader.Watch(func(*Config) { t.Error("unexpected reload") })
}
