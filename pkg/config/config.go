// Package config loads and saves the application configuration.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dimchansky/utfbom"
	"gopkg.in/yaml.v3"

	"github.com/guardianone/adsb-traffic/pkg/receiver"
	"github.com/guardianone/adsb-traffic/pkg/tracking"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the complete application configuration.
// Files ending in .yaml or .yml are YAML; anything else is JSON.
type Config struct {
	Receiver ReceiverConfig `json:"receiver" yaml:"receiver"`
	Alerts   AlertsConfig   `json:"alerts" yaml:"alerts"`
	Ownship  OwnshipConfig  `json:"ownship" yaml:"ownship"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Recorder RecorderConfig `json:"recorder" yaml:"recorder"`
	Registry RegistryConfig `json:"registry" yaml:"registry"`
}

// ReceiverConfig contains GDL90 receiver connection settings.
type ReceiverConfig struct {
	// Host is the receiver IP address (default: "192.168.10.1")
	// Use "0.0.0.0" to accept datagrams from any source
	Host string `json:"host" yaml:"host"`

	// Port is the UDP port the receiver sends to (default: 4000)
	Port int `json:"port" yaml:"port"`

	// StaleAfterSeconds is how long an aircraft is kept without a new report
	StaleAfterSeconds int `json:"stale_after_seconds" yaml:"stale_after_seconds"`

	// AutoReconnect makes commands reopen the session with backoff after a failure
	AutoReconnect bool `json:"auto_reconnect" yaml:"auto_reconnect"`

	// ReconnectMaxDelaySeconds caps the backoff between reconnect attempts
	ReconnectMaxDelaySeconds int `json:"reconnect_max_delay_seconds" yaml:"reconnect_max_delay_seconds"`
}

// StaleAfter returns the staleness window as a duration.
func (r ReceiverConfig) StaleAfter() time.Duration {
	return time.Duration(r.StaleAfterSeconds) * time.Second
}

// ToReceiver builds receiver settings. Dialer and clock are left at their
// defaults.
func (r ReceiverConfig) ToReceiver(alerts AlertsConfig) receiver.Config {
	return receiver.Config{
		Host:       r.Host,
		Port:       r.Port,
		StaleAfter: r.StaleAfter(),
		Thresholds: alerts.Thresholds(),
	}
}

// AlertsConfig contains proximity alert settings.
type AlertsConfig struct {
	// HorizontalNM is the horizontal alert radius in nautical miles
	HorizontalNM float64 `json:"horizontal_nm" yaml:"horizontal_nm"`

	// VerticalFt is the vertical alert band in feet above and below ownship
	VerticalFt float64 `json:"vertical_ft" yaml:"vertical_ft"`

	// PredictionSeconds is the trajectory prediction horizon
	PredictionSeconds float64 `json:"prediction_seconds" yaml:"prediction_seconds"`

	// Sound enables the audible alert signal
	Sound bool `json:"sound" yaml:"sound"`

	// MinSignalIntervalSeconds limits how often the alert signal plays
	MinSignalIntervalSeconds float64 `json:"min_signal_interval_seconds" yaml:"min_signal_interval_seconds"`
}

// Thresholds returns the proximity thresholds.
func (a AlertsConfig) Thresholds() tracking.AlertThresholds {
	return tracking.AlertThresholds{
		HorizontalNM: a.HorizontalNM,
		VerticalFt:   a.VerticalFt,
	}
}

// OwnshipConfig is a fixed ownship position for ground use and testing.
// Flight software supplies ownship per evaluation instead.
type OwnshipConfig struct {
	Latitude   float64 `json:"latitude" yaml:"latitude"`
	Longitude  float64 `json:"longitude" yaml:"longitude"`
	AltitudeFt float64 `json:"altitude_ft" yaml:"altitude_ft"`
}

// Position returns the configured ownship.
func (o OwnshipConfig) Position() tracking.Ownship {
	return tracking.Ownship{
		Latitude:   o.Latitude,
		Longitude:  o.Longitude,
		AltitudeFt: o.AltitudeFt,
	}
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" yaml:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" yaml:"host"`

	// AllowedOrigins lists CORS origins for browser clients
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// PushIntervalSeconds is how often WebSocket clients receive a snapshot
	PushIntervalSeconds int `json:"push_interval_seconds" yaml:"push_interval_seconds"`

	// TLSEnabled determines if HTTPS should be used
	TLSEnabled bool `json:"tls_enabled" yaml:"tls_enabled"`

	// TLSCertFile is the path to the TLS certificate
	TLSCertFile string `json:"tls_cert_file" yaml:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS private key
	TLSKeyFile string `json:"tls_key_file" yaml:"tls_key_file"`

	// HistoryEnabled serves recorded sightings from the database
	HistoryEnabled bool `json:"history_enabled" yaml:"history_enabled"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Driver is the database driver (only postgres is supported)
	Driver string `json:"driver" yaml:"driver"`

	// Host is the database server hostname
	Host string `json:"host" yaml:"host"`

	// Port is the database server port
	Port int `json:"port" yaml:"port"`

	// Database is the database name
	Database string `json:"database" yaml:"database"`

	// Username for database authentication
	Username string `json:"username" yaml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password" yaml:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" yaml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`
}

// RecorderConfig controls the traffic sighting recorder.
type RecorderConfig struct {
	// IntervalSeconds is how often the live table is written to the database
	IntervalSeconds int `json:"interval_seconds" yaml:"interval_seconds"`

	// RetentionHours is how long sightings are kept
	RetentionHours int `json:"retention_hours" yaml:"retention_hours"`

	// CleanupIntervalMinutes is how often old sightings are deleted
	CleanupIntervalMinutes int `json:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`
}

// RegistryConfig points at an FAA releasable aircraft database used to show
// registrations next to live traffic.
type RegistryConfig struct {
	// Path is MASTER.txt, MASTER.txt.zst or ReleasableAircraft.zip; empty disables lookups
	Path string `json:"path" yaml:"path"`
}

// Load reads configuration from a JSON or YAML file.
// If the file doesn't exist, returns a default configuration.
// Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Editors on Windows like to prepend a byte order mark.
	data, err := io.ReadAll(utfbom.SkipOnly(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a file, as YAML or JSON by extension.
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Receiver: ReceiverConfig{
			Host:                     receiver.DefaultHost,
			Port:                     receiver.DefaultPort,
			StaleAfterSeconds:        60,
			AutoReconnect:            false,
			ReconnectMaxDelaySeconds: 30,
		},
		Alerts: AlertsConfig{
			HorizontalNM:             tracking.DefaultHorizontalNM,
			VerticalFt:               tracking.DefaultVerticalFt,
			PredictionSeconds:        tracking.DefaultPredictionSeconds,
			Sound:                    true,
			MinSignalIntervalSeconds: 5,
		},
		Server: ServerConfig{
			Port:                "8080",
			Host:                "0.0.0.0",
			AllowedOrigins:      []string{"*"},
			PushIntervalSeconds: 1,
		},
		Database: DatabaseConfig{
			Driver:       "postgres",
			Host:         "localhost",
			Port:         5432,
			Database:     "adsbtraffic",
			Username:     "adsbtraffic",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Recorder: RecorderConfig{
			IntervalSeconds:        5,
			RetentionHours:         24,
			CleanupIntervalMinutes: 15,
		},
	}
}

// Validate checks value ranges. Errors wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string

	if c.Receiver.Port <= 0 || c.Receiver.Port > 65535 {
		problems = append(problems, fmt.Sprintf("receiver.port %d out of range", c.Receiver.Port))
	}
	if c.Receiver.StaleAfterSeconds <= 0 {
		problems = append(problems, "receiver.stale_after_seconds must be positive")
	}
	if c.Alerts.HorizontalNM <= 0 {
		problems = append(problems, "alerts.horizontal_nm must be positive")
	}
	if c.Alerts.VerticalFt <= 0 {
		problems = append(problems, "alerts.vertical_ft must be positive")
	}
	if c.Ownship.Latitude < -90 || c.Ownship.Latitude > 90 {
		problems = append(problems, fmt.Sprintf("ownship.latitude %f out of range", c.Ownship.Latitude))
	}
	if c.Ownship.Longitude < -180 || c.Ownship.Longitude > 180 {
		problems = append(problems, fmt.Sprintf("ownship.longitude %f out of range", c.Ownship.Longitude))
	}
	if c.Recorder.IntervalSeconds <= 0 || c.Recorder.CleanupIntervalMinutes <= 0 {
		problems = append(problems, "recorder intervals must be positive")
	}
	if c.Recorder.RetentionHours <= 0 {
		problems = append(problems, "recorder.retention_hours must be positive")
	}
	if c.Database.Driver != "" && c.Database.Driver != "postgres" {
		problems = append(problems, fmt.Sprintf("database.driver %q not supported", c.Database.Driver))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if host := os.Getenv("ADSB_TRAFFIC_RECEIVER_HOST"); host != "" {
		c.Receiver.Host = host
	}
	if port := os.Getenv("ADSB_TRAFFIC_RECEIVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Receiver.Port = p
		}
	}
	if port := os.Getenv("ADSB_TRAFFIC_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbHost := os.Getenv("ADSB_TRAFFIC_DB_HOST"); dbHost != "" {
		c.Database.Host = dbHost
	}
	if dbPassword := os.Getenv("ADSB_TRAFFIC_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
}
