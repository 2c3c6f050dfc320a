package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate validates the configuration with detailed error messages
func (c *Config) Validate() error {
	var errors []string

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		errors = append(errors, fmt.Sprintf("invalid log.level: %s (must be: debug, info, warn, error, fatal)", c.Log.Level))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errors = append(errors, fmt.Sprintf("invalid log.format: %s (must be: text or json)", c.Log.Format))
	}

	if c.Backend.BaseURL == "" {
		errors = append(errors, "backend.base_url is required")
	} else if err := validateHTTPURL(c.Backend.BaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("backend.base_url %v", err))
	}
	if c.Backend.PrivateBaseURL != "" {
		if err := validateHTTPURL(c.Backend.PrivateBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("backend.private_base_url %v", err))
		}
	}
	if (c.Backend.PrivateUsername == "") != (c.Backend.PrivatePassword == "") {
		errors = append(errors, "backend.private_username and backend.private_password must be set together")
	}
	if c.Backend.Timeout <= 0 {
		errors = append(errors, fmt.Sprintf("backend.timeout must be > 0, got: %v", c.Backend.Timeout))
	}

	if c.Aggregate.MaxConcurrency <= 0 {
		errors = append(errors, fmt.Sprintf("aggregate.max_concurrency must be > 0, got: %d", c.Aggregate.MaxConcurrency))
	}

	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		errors = append(errors, fmt.Sprintf("web.port must be between 1 and 65535, got: %d", c.Web.Port))
	}

	if c.Live.Enabled {
		if c.Live.PollInterval <= 0 {
			errors = append(errors, fmt.Sprintf("live.poll_interval must be > 0, got: %v", c.Live.PollInterval))
		}
		if c.Live.EventLimit < 0 {
			errors = append(errors, fmt.Sprintf("live.event_limit must be >= 0, got: %d", c.Live.EventLimit))
		}
		if c.Live.Within < 0 {
			errors = append(errors, fmt.Sprintf("live.within must be >= 0, got: %v", c.Live.Within))
		}
	}
	if c.Live.MQTT.Broker != "" {
		u, err := url.Parse(c.Live.MQTT.Broker)
		if err != nil || u.Host == "" {
			errors = append(errors, fmt.Sprintf("live.mqtt.broker is not a valid URL: %s", c.Live.MQTT.Broker))
		} else {
			switch u.Scheme {
			case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
			default:
				errors = append(errors, fmt.Sprintf("live.mqtt.broker has unsupported scheme: %s", u.Scheme))
			}
		}
		if c.Live.MQTT.Topic == "" {
			errors = append(errors, "live.mqtt.topic is required when a broker is configured")
		}
	}

	if c.PTZ.Step <= 0 || c.PTZ.Step > 360 {
		errors = append(errors, fmt.Sprintf("ptz.step must be between 1 and 360, got: %d", c.PTZ.Step))
	}

	if c.Health.Port < 0 || c.Health.Port > 65535 {
		errors = append(errors, fmt.Sprintf("health.port must be between 0 and 65535, got: %d", c.Health.Port))
	}
	if c.Health.Port != 0 && c.Web.Enabled && c.Health.Port == c.Web.Port {
		errors = append(errors, fmt.Sprintf("health.port (%d) conflicts with web.port", c.Health.Port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("is missing a host: %s", raw)
	}
	return nil
}
