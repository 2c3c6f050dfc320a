package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the portal configuration
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Web       WebConfig       `yaml:"web"`
	Live      LiveConfig      `yaml:"live"`
	PTZ       PTZConfig       `yaml:"ptz"`
	Health    HealthConfig    `yaml:"health"`
	Log       LogConfig       `yaml:"log,omitempty"`
}

// BackendConfig describes the camera management backend
type BackendConfig struct {
	BaseURL string `yaml:"base_url"`
	// PrivateBaseURL serves the OpenGate camera settings endpoint. Empty means BaseURL.
	PrivateBaseURL  string        `yaml:"private_base_url"`
	PrivateUsername string        `yaml:"private_username"`
	PrivatePassword string        `yaml:"private_password"` // never logged
	Timeout         time.Duration `yaml:"timeout"`
	UserAgent       string        `yaml:"user_agent"`
}

// AggregateConfig tunes the view aggregation fan-out
type AggregateConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// WebConfig contains view API server configuration
type WebConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LiveConfig contains live update channel configuration
type LiveConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	EventLimit   int           `yaml:"event_limit"`
	Within       time.Duration `yaml:"within"`
	MQTT         MQTTConfig    `yaml:"mqtt"`
}

// MQTTConfig contains the OpenGate event broker settings. An empty broker disables the subscriber.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// PTZConfig contains remote control settings
type PTZConfig struct {
	Step int `yaml:"step"`
}

// HealthConfig contains health endpoint configuration. Port 0 disables the server.
type HealthConfig struct {
	Port int `yaml:"port"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = getDefaultConfigPath()
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	// Fields absent from the file keep these values.
	cfg := Config{Web: WebConfig{Enabled: true}}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// Default returns a configuration populated only with defaults
func Default() *Config {
	cfg := &Config{Web: WebConfig{Enabled: true}}
	cfg.setDefaults()
	return cfg
}

// getDefaultConfigPath returns the default configuration file path
func getDefaultConfigPath() string {
	paths := []string{
		"./config/config.dev.yaml",
		"./config/config.yaml",
		"../config/config.dev.yaml",
		"../config/config.yaml",
		"/etc/camera-portal/config.yaml",
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return paths[1]
}

// setDefaults sets default values for configuration
func (c *Config) setDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:8080"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 10 * time.Second
	}
	if c.Backend.UserAgent == "" {
		c.Backend.UserAgent = "camera-portal"
	}

	if c.Aggregate.MaxConcurrency == 0 {
		c.Aggregate.MaxConcurrency = 8
	}

	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 3000
	}
	if len(c.Web.AllowedOrigins) == 0 {
		c.Web.AllowedOrigins = []string{"*"}
	}

	if c.Live.PollInterval == 0 {
		c.Live.PollInterval = 5 * time.Second
	}
	if c.Live.EventLimit == 0 {
		c.Live.EventLimit = 10
	}
	if c.Live.MQTT.ClientID == "" {
		c.Live.MQTT.ClientID = "camera-portal"
	}
	if c.Live.MQTT.Topic == "" {
		c.Live.MQTT.Topic = "opengate/events"
	}

	if c.PTZ.Step == 0 {
		c.PTZ.Step = 10
	}
}
