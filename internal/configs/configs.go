/*
Package configs is responsible for loading and parsing the client's configuration settings.

Defaults are overlaid first by an optional YAML file and then by operating system
environment variables. The result describes the chat server address, the reconnect
policy, the optional local control API, and log output.
*/
package configs

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig contains all configuration parameters required for the client to run.
type AppConfig struct {
	// General Settings
	Environment string `yaml:"environment"`

	// Connection Settings
	ServerURL            string        `yaml:"server_url"`
	DialTimeout          time.Duration `yaml:"dial_timeout"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`

	// Session Settings
	AutoLoginAfterRegister bool `yaml:"auto_login_after_register"`
	EchoOutgoing           bool `yaml:"echo_outgoing"`

	// Control API Settings
	ControlPort    int      `yaml:"control_port"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// Log Settings
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
}

// DefaultConfig returns an AppConfig pointing at a local server with a one-second,
// five-attempt reconnect policy.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Environment:            "development",
		ServerURL:              "ws://127.0.0.1:8080",
		DialTimeout:            5 * time.Second,
		ReconnectDelay:         time.Second,
		MaxReconnectAttempts:   5,
		AutoLoginAfterRegister: true,
		EchoOutgoing:           false,
		ControlPort:            0,
		AllowedOrigins:         []string{},
		LogMaxSizeMB:           10,
		LogMaxBackups:          3,
		LogMaxAgeDays:          7,
	}
}

// IsDevelopment reports whether the client runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads the configuration from environment variables over the defaults.
func LoadConfig() (*AppConfig, error) {
	return LoadConfigFile("")
}

// LoadConfigFile reads an optional YAML file over the defaults, then applies
// environment variables on top. A missing file is not an error.
func LoadConfigFile(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("invalid config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides cfg with every recognized environment variable that is set.
func applyEnv(cfg *AppConfig) error {
	// --- General Settings ---
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	// --- Connection Settings ---
	if v := os.Getenv("SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}

	if err := envDuration("DIAL_TIMEOUT", &cfg.DialTimeout); err != nil {
		return err
	}
	if err := envDuration("RECONNECT_DELAY", &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := envInt("MAX_RECONNECT_ATTEMPTS", &cfg.MaxReconnectAttempts); err != nil {
		return err
	}

	// --- Session Settings ---
	if err := envBool("AUTO_LOGIN_AFTER_REGISTER", &cfg.AutoLoginAfterRegister); err != nil {
		return err
	}
	if err := envBool("ECHO_OUTGOING", &cfg.EchoOutgoing); err != nil {
		return err
	}

	// --- Control API Settings ---
	if err := envInt("CONTROL_PORT", &cfg.ControlPort); err != nil {
		return err
	}

	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		cfg.AllowedOrigins = []string{}
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	// --- Log Settings ---
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if err := envInt("LOG_MAX_SIZE_MB", &cfg.LogMaxSizeMB); err != nil {
		return err
	}
	if err := envInt("LOG_MAX_BACKUPS", &cfg.LogMaxBackups); err != nil {
		return err
	}
	if err := envInt("LOG_MAX_AGE_DAYS", &cfg.LogMaxAgeDays); err != nil {
		return err
	}

	return nil
}

// Validate checks ranges and formats of the loaded values.
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid SERVER_URL %q: %w", c.ServerURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("SERVER_URL %q must use the ws or wss scheme", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("SERVER_URL %q has no host", c.ServerURL)
	}

	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive, got %s", c.ReconnectDelay)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("DIAL_TIMEOUT must be positive, got %s", c.DialTimeout)
	}

	if c.MaxReconnectAttempts < 1 || c.MaxReconnectAttempts > 100 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS %d is outside the allowed range (1-100)", c.MaxReconnectAttempts)
	}

	if c.ControlPort != 0 && (c.ControlPort < 1024 || c.ControlPort > 65535) {
		return fmt.Errorf("control port %d is outside the recommended range (%d-%d) to avoid privileged ports", c.ControlPort, 1024, 65535)
	}

	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	*dst = d
	return nil
}
