package goSession

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines a public type used by goSession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Session       SessionConfig       `yaml:"session"`
	Startup       StartupConfig       `yaml:"startup"`
	Routes        RoutesConfig        `yaml:"routes"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Storage       StorageConfig       `yaml:"storage"`
	API           APIConfig           `yaml:"api"`

	// Logger receives structured logs. Nil discards them.
	Logger *slog.Logger `yaml:"-"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the background expiration check.
type SessionConfig struct {
	// CheckInterval is the period of the background expiration check.
	CheckInterval time.Duration `yaml:"check_interval"`
	// DisableBackgroundCheck turns the periodic check off entirely.
	DisableBackgroundCheck bool `yaml:"disable_background_check"`
}

// StartupConfig controls Restore.
type StartupConfig struct {
	// SplashRoutes lists entry routes on which Restore waits SplashDelay
	// before reading the store.
	SplashRoutes []string      `yaml:"splash_routes"`
	SplashDelay  time.Duration `yaml:"splash_delay"`
}

// RoutesConfig feeds the route guard policy.
type RoutesConfig struct {
	LoginRoute        string `yaml:"login_route"`
	UnauthorizedRoute string `yaml:"unauthorized_route"`
	// AllowMissingRole lets a user without a role through role-gated routes.
	AllowMissingRole bool `yaml:"allow_missing_role"`
}

// NotificationsConfig controls how notifications reach the sink.
type NotificationsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Async relays notifications through a buffered goroutine instead of
	// calling the sink inline.
	Async      bool `yaml:"async"`
	BufferSize int  `yaml:"buffer_size"`
	DropIfFull bool `yaml:"drop_if_full"`
	// DisplayFor is how long a notification stays on display; 0 keeps it
	// until dismissed.
	DisplayFor time.Duration `yaml:"display_for"`
}

// MetricsConfig defines a public type used by goSession APIs.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// Storage drivers accepted by StorageConfig.Driver.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// StorageConfig selects the persisted session store used when the Builder
// is not given one explicitly.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	// Path is the file or database path for the file and sqlite drivers.
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	RedisPrefix string `yaml:"redis_prefix"`
	// RedisTTL expires the persisted record; zero keeps it until cleared.
	RedisTTL time.Duration `yaml:"redis_ttl"`
}

// APIConfig configures the REST client the Builder creates when no
// Backend is supplied.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			CheckInterval: 60 * time.Second,
		},
		Startup: StartupConfig{
			SplashRoutes: []string{"/"},
			SplashDelay:  0,
		},
		Routes: RoutesConfig{
			LoginRoute:        "/",
			UnauthorizedRoute: "/unauthorized",
		},
		Notifications: NotificationsConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
			DisplayFor: 5 * time.Second,
		},
		Storage: StorageConfig{
			Driver:      StorageMemory,
			RedisPrefix: "gosession",
		},
		API: APIConfig{
			Timeout: 10 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Startup.SplashRoutes = slices.Clone(cfg.Startup.SplashRoutes)
	return out
}

/*
====================================
FILE LOADING
====================================
*/

// ConfigEnvVar names the environment variable the CLI reads a config path from.
const ConfigEnvVar = "GOSESSION_CONFIG"

// LoadConfigFile reads a YAML config file on top of the defaults and
// validates the result. Durations are Go duration strings ("60s").
// Unknown keys are rejected.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	cfg := defaultConfig()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !c.Session.DisableBackgroundCheck && c.Session.CheckInterval <= 0 {
		return errors.New("Session CheckInterval must be > 0")
	}
	if c.Startup.SplashDelay < 0 {
		return errors.New("Startup SplashDelay must be >= 0")
	}

	if !strings.HasPrefix(c.Routes.LoginRoute, "/") {
		return errors.New("Routes LoginRoute must start with /")
	}
	if !strings.HasPrefix(c.Routes.UnauthorizedRoute, "/") {
		return errors.New("Routes UnauthorizedRoute must start with /")
	}

	if c.Notifications.DisplayFor < 0 {
		return errors.New("Notifications DisplayFor must be >= 0")
	}
	if c.Notifications.Async && c.Notifications.BufferSize <= 0 {
		return errors.New("Notifications BufferSize must be > 0 when Async is true")
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StorageFile, StorageSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("Storage Path is required for driver %q", c.Storage.Driver)
		}
	case StorageRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return errors.New("Storage RedisAddr is required for driver \"redis\"")
		}
		if c.Storage.RedisTTL < 0 {
			return errors.New("Storage RedisTTL must be >= 0")
		}
	default:
		return fmt.Errorf("unsupported Storage Driver %q", c.Storage.Driver)
	}

	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("API BaseURL %q must be an absolute http(s) URL", c.API.BaseURL)
		}
	}

	return nil
}
