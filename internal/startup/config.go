package startup

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"webp-renditions/internal/encoder"
	"webp-renditions/internal/filerepo"
	"webp-renditions/internal/hooks"
	"webp-renditions/internal/logging"
	"webp-renditions/internal/memory"
	"webp-renditions/internal/transform"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WEBP_SERVER_PORT.
const EnvPrefix = "WEBP"

// ConfigEnv names the config file when no path is given.
const ConfigEnv = "WEBP_CONFIG"

// QueueConfig configures the job queue and its runner.
type QueueConfig struct {
	Path string `mapstructure:"path" yaml:"path" default:"/var/lib/webp/queue.db" validate:"required"`
	// Workers is the runner pool size; 0 picks one per CPU.
	Workers      int           `mapstructure:"workers" yaml:"workers" default:"0" validate:"min=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval" default:"2s"`
	// Retention is how long finished jobs are kept.
	Retention time.Duration `mapstructure:"retention" yaml:"retention" default:"168h"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Port            string `mapstructure:"port" yaml:"port" default:"8080" validate:"required,numeric"`
	MetricsPort     string `mapstructure:"metrics_port" yaml:"metrics_port" default:"9090" validate:"required,numeric"`
	MetricsEnabled  bool   `mapstructure:"metrics_enabled" yaml:"metrics_enabled" default:"true"`
	LogHealthChecks bool   `mapstructure:"log_health_checks" yaml:"log_health_checks" default:"false"`
}

// WatchConfig toggles the upload watcher.
type WatchConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" default:"false"`
}

// Config holds all application configuration
type Config struct {
	Transform  transform.Config `mapstructure:"transform" yaml:"transform"`
	Encoder    encoder.Settings `mapstructure:"encoder" yaml:"encoder"`
	Repository filerepo.Config  `mapstructure:"repository" yaml:"repository"`
	Queue      QueueConfig      `mapstructure:"queue" yaml:"queue"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Watch      WatchConfig      `mapstructure:"watch" yaml:"watch"`
	Memory     memory.Config    `mapstructure:"memory" yaml:"memory"`
	Hooks      hooks.URLConfig  `mapstructure:"hooks" yaml:"hooks"`
}

// Loader reads Config from an optional file and the environment.
type Loader struct {
	v    *viper.Viper
	path string

	mu        sync.Mutex
	watchOnce sync.Once
}

// NewLoader creates a loader for path. An empty path falls back to
// $WEBP_CONFIG, and without either only defaults and environment apply.
func NewLoader(path string) *Loader {
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return &Loader{v: v, path: path}
}

// Path returns the config file in use, or "" when there is none.
func (l *Loader) Path() string { return l.path }

// LoadConfig loads and validates the configuration.
func LoadConfig(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Load reads the file (when configured), applies environment overrides on
// top of the struct tag defaults and validates the result.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	base := &Config{}
	if err := defaults.Set(base); err != nil {
		return nil, fmt.Errorf("failed to set config defaults: %w", err)
	}
	// AutomaticEnv only consults keys viper already knows about
	registerDefaults(l.v, "", reflect.ValueOf(base).Elem())

	if l.path != "" {
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", l.path, err)
		}
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its validate tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// registerDefaults walks the mapstructure tags of v and records every leaf
// value as a viper default.
func registerDefaults(vp *viper.Viper, prefix string, v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("mapstructure")
		if key == "" || key == "-" || !field.IsExported() {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			registerDefaults(vp, key, fv)
			continue
		}
		vp.SetDefault(key, fv.Interface())
	}
}

// Watch reloads the config file when it changes and passes every valid
// result to onChange. Invalid edits are logged and ignored. Without a
// config file Watch does nothing.
func (l *Loader) Watch(onChange func(*Config)) {
	if l.path == "" {
		logging.Debug("No config file, configuration reload disabled")
		return
	}

	l.watchOnce.Do(func() {
		l.v.OnConfigChange(func(e fsnotify.Event) {
			l.mu.Lock()
			cfg, err := l.decode()
			l.mu.Unlock()
			if err != nil {
				logging.Warn("Ignoring config change in %s: %v", e.Name, err)
				return
			}
			logging.Info("Configuration reloaded from %s", e.Name)
			onChange(cfg)
		})
		l.v.WatchConfig()
		logging.Info("Watching %s for configuration changes", l.path)
	})
}
