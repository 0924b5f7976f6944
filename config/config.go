// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package config loads the agent's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the MQTT agent binary.
type Config struct {
	Broker    BrokerConfig    `yaml:"broker"`
	Client    ClientConfig    `yaml:"client"`
	Agent     AgentConfig     `yaml:"agent"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Log       LogConfig       `yaml:"log"`
}

// BrokerConfig holds broker endpoint settings.
type BrokerConfig struct {
	Address     string        `yaml:"address"`      // host:port for TCP, full URL for websocket
	Websocket   bool          `yaml:"websocket"`    // use MQTT over websocket
	DialTimeout time.Duration `yaml:"dial_timeout"`

	TLSEnabled  bool   `yaml:"tls_enabled"`
	TLSCertFile string `yaml:"tls_cert_file"`
	TLSKeyFile  string `yaml:"tls_key_file"`
	TLSCAFile   string `yaml:"tls_ca_file"`
}

// ClientConfig holds MQTT client identity and session settings.
type ClientConfig struct {
	ID           string        `yaml:"id"` // generated when empty
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	KeepAlive    time.Duration `yaml:"keep_alive"`
	CleanSession bool          `yaml:"clean_session"`

	WillTopic   string `yaml:"will_topic"`
	WillPayload string `yaml:"will_payload"`
	WillQoS     byte   `yaml:"will_qos"`
	WillRetain  bool   `yaml:"will_retain"`
}

// AgentConfig holds command-dispatch sizing.
type AgentConfig struct {
	QueueSize          int           `yaml:"queue_size"`
	PoolSize           int           `yaml:"pool_size"`
	MaxOutstandingAcks int           `yaml:"max_outstanding_acks"`
	EventQueueWait     time.Duration `yaml:"event_queue_wait"`
	MetricsEnabled     bool          `yaml:"metrics_enabled"`
}

// RateLimitConfig bounds outbound publish rates per topic.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate"`  // publishes per second per topic
	Burst   int     `yaml:"burst"` // burst allowance
}

// ReconnectConfig holds session re-establishment policy.
type ReconnectConfig struct {
	BackoffMin         time.Duration `yaml:"backoff_min"`
	BackoffMax         time.Duration `yaml:"backoff_max"`
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures"`
	BreakerCooldown    time.Duration `yaml:"breaker_cooldown"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Address:     "localhost:1883",
			DialTimeout: 10 * time.Second,
		},
		Client: ClientConfig{
			KeepAlive:    60 * time.Second,
			CleanSession: true,
		},
		Agent: AgentConfig{
			QueueSize:          64,
			PoolSize:           64,
			MaxOutstandingAcks: 32,
			EventQueueWait:     time.Second,
		},
		RateLimit: RateLimitConfig{
			Rate:  100,
			Burst: 20,
		},
		Reconnect: ReconnectConfig{
			BackoffMin:         time.Second,
			BackoffMax:         2 * time.Minute,
			BreakerMaxFailures: 5,
			BreakerCooldown:    30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file, applying defaults for missing fields.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if cfg.Client.ID == "" {
		cfg.Client.ID = "mqtt-agent-" + uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Broker.Address == "" {
		return fmt.Errorf("broker address cannot be empty")
	}
	if c.Client.WillQoS > 2 {
		return fmt.Errorf("will QoS must be 0, 1, or 2")
	}
	if c.Client.KeepAlive < 0 {
		return fmt.Errorf("keep alive cannot be negative")
	}
	if c.RateLimit.Enabled && c.RateLimit.Rate <= 0 {
		return fmt.Errorf("rate limit rate must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	return nil
}
