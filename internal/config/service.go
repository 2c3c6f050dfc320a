package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/vzahanych/view-guard-meta/portal/internal/logger"
)

// DotEnvFile is loaded into the process environment before overrides are applied, if present.
var DotEnvFile = ".env"

// Service provides configuration management with environment variable support
type Service struct {
	config     *Config
	configPath string
	logger     *logger.Logger
	mu         sync.RWMutex
	watchers   []ConfigWatcher
}

// ConfigWatcher is called when configuration changes
type ConfigWatcher func(ctx context.Context, oldConfig, newConfig *Config) error

// NewService creates a new configuration service
func NewService(configPath string, log *logger.Logger) (*Service, error) {
	cfg, err := Resolve(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial configuration: %w", err)
	}

	return &Service{
		config:     cfg,
		configPath: configPath,
		logger:     log,
		watchers:   make([]ConfigWatcher, 0),
	}, nil
}

// Resolve loads the file at configPath, applies .env and environment overrides and validates the result.
func Resolve(configPath string) (*Config, error) {
	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ResolveOptional is Resolve for callers that can run without a file.
// A missing file yields defaults plus environment overrides.
func ResolveOptional(configPath string) (*Config, error) {
	if configPath != "" {
		return Resolve(configPath)
	}
	path := getDefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return Resolve(path)
	}

	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}
	cfg := Default()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv does not override variables that are already set.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// SetLogger replaces the logger used by Reload, typically once the
// logger has been built from the loaded configuration.
func (s *Service) SetLogger(log *logger.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = log
}

// Get returns the current configuration (thread-safe)
func (s *Service) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Reload reloads the configuration from file
func (s *Service) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldConfig := s.config

	newConfig, err := Resolve(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	s.config = newConfig

	for _, watcher := range s.watchers {
		if err := watcher(ctx, oldConfig, newConfig); err != nil {
			s.logger.Error("Config watcher error", "error", err)
		}
	}

	s.logger.Info("Configuration reloaded", "path", s.configPath)
	return nil
}

// Watch registers a configuration change watcher
func (s *Service) Watch(watcher ConfigWatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, watcher)
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) {
	// Backend
	if val := os.Getenv("PORTAL_BACKEND_BASE_URL"); val != "" {
		cfg.Backend.BaseURL = val
	}
	if val := os.Getenv("PORTAL_BACKEND_PRIVATE_BASE_URL"); val != "" {
		cfg.Backend.PrivateBaseURL = val
	}
	if val := os.Getenv("PORTAL_BACKEND_PRIVATE_USERNAME"); val != "" {
		cfg.Backend.PrivateUsername = val
	}
	if val := os.Getenv("PORTAL_BACKEND_PRIVATE_PASSWORD"); val != "" {
		cfg.Backend.PrivatePassword = val
	}
	cfg.Backend.Timeout = GetEnvDuration("PORTAL_BACKEND_TIMEOUT", cfg.Backend.Timeout)

	cfg.Aggregate.MaxConcurrency = GetEnvInt("PORTAL_AGGREGATE_MAX_CONCURRENCY", cfg.Aggregate.MaxConcurrency)

	// Web
	cfg.Web.Enabled = GetEnvBool("PORTAL_WEB_ENABLED", cfg.Web.Enabled)
	cfg.Web.Host = GetEnvWithDefault("PORTAL_WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = GetEnvInt("PORTAL_WEB_PORT", cfg.Web.Port)
	if val := os.Getenv("PORTAL_WEB_ALLOWED_ORIGINS"); val != "" {
		origins := strings.Split(val, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.Web.AllowedOrigins = origins
	}

	// Live updates
	cfg.Live.Enabled = GetEnvBool("PORTAL_LIVE_ENABLED", cfg.Live.Enabled)
	cfg.Live.PollInterval = GetEnvDuration("PORTAL_LIVE_POLL_INTERVAL", cfg.Live.PollInterval)
	cfg.Live.EventLimit = GetEnvInt("PORTAL_LIVE_EVENT_LIMIT", cfg.Live.EventLimit)
	cfg.Live.Within = GetEnvDuration("PORTAL_LIVE_WITHIN", cfg.Live.Within)
	cfg.Live.MQTT.Broker = GetEnvWithDefault("PORTAL_MQTT_BROKER", cfg.Live.MQTT.Broker)
	cfg.Live.MQTT.ClientID = GetEnvWithDefault("PORTAL_MQTT_CLIENT_ID", cfg.Live.MQTT.ClientID)
	cfg.Live.MQTT.Username = GetEnvWithDefault("PORTAL_MQTT_USERNAME", cfg.Live.MQTT.Username)
	cfg.Live.MQTT.Password = GetEnvWithDefault("PORTAL_MQTT_PASSWORD", cfg.Live.MQTT.Password)
	cfg.Live.MQTT.Topic = GetEnvWithDefault("PORTAL_MQTT_TOPIC", cfg.Live.MQTT.Topic)

	cfg.PTZ.Step = GetEnvInt("PORTAL_PTZ_STEP", cfg.PTZ.Step)
	cfg.Health.Port = GetEnvInt("PORTAL_HEALTH_PORT", cfg.Health.Port)

	// Log settings
	cfg.Log.Level = GetEnvWithDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = GetEnvWithDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Output = GetEnvWithDefault("LOG_OUTPUT", cfg.Log.Output)
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable
func GetEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable
func GetEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return defaultValue
	}
	return result
}

// GetEnvDuration gets a duration environment variable
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(val); err == nil {
		return duration
	}
	return defaultValue
}
