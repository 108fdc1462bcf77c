package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/speedrun-hq/speedrun-go/pkg/logger"
)

// Config holds the service configuration loaded from environment variables
type Config struct {
	TopologyFile       string
	MetricsPort        string
	MetricsAPIKey      string
	GatewayWorkers     int
	GatewayMaxAttempts int
	SwapFeeBps         int64
	RedisAddr          string
	AMQPURL            string
	CircuitBreaker     CircuitBreakerConfig
	LoggerConfig       LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	gatewayWorkers, err := GetEnvGatewayWorkers()
	if err != nil {
		return nil, err
	}

	maxAttempts, err := GetEnvGatewayMaxAttempts()
	if err != nil {
		return nil, err
	}

	swapFeeBps, err := GetEnvSwapFeeBps()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	return &Config{
		TopologyFile:       GetEnvTopologyFile(),
		MetricsPort:        metricsPort,
		MetricsAPIKey:      GetEnvMetricsAPIKey(),
		GatewayWorkers:     gatewayWorkers,
		GatewayMaxAttempts: maxAttempts,
		SwapFeeBps:         swapFeeBps,
		RedisAddr:          GetEnvRedisAddr(),
		AMQPURL:            GetEnvAMQPURL(),
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}, nil
}
