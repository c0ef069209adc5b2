package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		BrokerURL:              "nats://localhost:4222",
		BrokerInTopic:          "mesh.in",
		BrokerOutTopic:         "mesh.out",
		BrokerQoS:              QoSAtLeastOnce,
		OutboundQueueCapacity:  256,
		BusCapacity:            256,
		TelemetryCacheCapacity: 500,
		RouteCostWeight:        1.0,
		RouteHopsWeight:        0.25,
		LogLevel:               "info",
		LogFormat:              "json",
	}
}

func TestConfig_ValidateAcceptsWellFormedConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestConfig_ValidateRejectsUnknownQoS(t *testing.T) {
	cfg := validConfig()
	cfg.BrokerQoS = "whenever"
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsNonPositiveCapacities(t *testing.T) {
	cfg := validConfig()
	cfg.BusCapacity = 0
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsNegativeWeights(t *testing.T) {
	cfg := validConfig()
	cfg.RouteHopsWeight = -0.1
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	require.Error(t, cfg.Validate())
}

func TestQoS_Valid(t *testing.T) {
	require.True(t, QoSAtMostOnce.Valid())
	require.True(t, QoSAtLeastOnce.Valid())
	require.True(t, QoSExactlyOnce.Valid())
	require.False(t, QoS("sometimes").Valid())
}
