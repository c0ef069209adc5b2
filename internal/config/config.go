// Package config loads the control plane's runtime configuration from
// environment variables, with an optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// QoS mirrors the delivery guarantee levels the mesh bridge can request
// from the broker.
type QoS string

const (
	QoSAtMostOnce  QoS = "at-most-once"
	QoSAtLeastOnce QoS = "at-least-once"
	QoSExactlyOnce QoS = "exactly-once"
)

func (q QoS) Valid() bool {
	switch q {
	case QoSAtMostOnce, QoSAtLeastOnce, QoSExactlyOnce:
		return true
	default:
		return false
	}
}

// Config holds every environment-derived setting the process needs at
// startup. Fields without an envDefault are required; Load fails (and
// main exits) if any of those are missing.
type Config struct {
	BrokerURL      string        `env:"MESH_BROKER_URL,required"`
	BrokerUsername string        `env:"MESH_BROKER_USERNAME" envDefault:""`
	BrokerPassword string        `env:"MESH_BROKER_PASSWORD" envDefault:""`
	BrokerKeepAlive time.Duration `env:"MESH_BROKER_KEEPALIVE" envDefault:"30s"`
	BrokerQoS      QoS           `env:"MESH_BROKER_QOS" envDefault:"at-least-once"`
	BrokerInTopic  string        `env:"MESH_BROKER_IN_TOPIC,required"`
	BrokerOutTopic string        `env:"MESH_BROKER_OUT_TOPIC,required"`

	OutboundQueueCapacity int `env:"MESH_OUTBOUND_QUEUE_CAPACITY" envDefault:"256"`
	BusCapacity           int `env:"MESH_BUS_CAPACITY" envDefault:"256"`

	ServerAddr string `env:"MESH_SERVER_ADDR" envDefault:":8080"`

	GetSettingsTimeout time.Duration `env:"MESH_GET_SETTINGS_TIMEOUT_S" envDefault:"5s"`
	SignalDataTimeout  time.Duration `env:"MESH_SIGNAL_DATA_TIMEOUT_S" envDefault:"10s"`
	RouteCostWeight    float64       `env:"MESH_ROUTE_COST_WEIGHT" envDefault:"1.0"`
	RouteHopsWeight    float64       `env:"MESH_ROUTE_HOPS_WEIGHT" envDefault:"0.25"`

	TelemetryCacheCapacity int `env:"MESH_TELEMETRY_CACHE_CAPACITY" envDefault:"500"`

	LogLevel  string `env:"MESH_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"MESH_LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from the environment, optionally seeded by a
// .env file in the working directory. Priority: real env vars > .env
// file > struct defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// No .env file is fine; we run from real environment variables
		// in production (containers).
		_ = err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks invariants Load cannot express via struct tags alone.
func (c *Config) Validate() error {
	if !c.BrokerQoS.Valid() {
		return fmt.Errorf("MESH_BROKER_QOS must be one of at-most-once, at-least-once, exactly-once (got %q)", c.BrokerQoS)
	}
	if c.OutboundQueueCapacity <= 0 {
		return fmt.Errorf("MESH_OUTBOUND_QUEUE_CAPACITY must be > 0")
	}
	if c.BusCapacity <= 0 {
		return fmt.Errorf("MESH_BUS_CAPACITY must be > 0")
	}
	if c.TelemetryCacheCapacity <= 0 {
		return fmt.Errorf("MESH_TELEMETRY_CACHE_CAPACITY must be > 0")
	}
	if c.RouteCostWeight < 0 || c.RouteHopsWeight < 0 {
		return fmt.Errorf("route weights must be non-negative")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("MESH_LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("MESH_LOG_FORMAT must be one of json, console (got %q)", c.LogFormat)
	}
	return nil
}
