package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/speedrun-hq/speedrun-go/pkg/logger"
)

const (
	// DefaultTopologyFile is the default path of the topology config
	DefaultTopologyFile = "topology.yaml"

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultGatewayWorkers defines the default number of gateway delivery workers
	DefaultGatewayWorkers = 5

	// DefaultGatewayMaxAttempts defines how many deliveries are attempted
	// before a message is parked
	DefaultGatewayMaxAttempts = 5

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker in seconds
	DefaultCircuitBreakerWindow = 5

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker in seconds
	DefaultCircuitBreakerReset = 15

	// DefaultSwapFeeBps defines the venue fee used by the built-in rate executor
	DefaultSwapFeeBps = 10
)

// GetEnvTopologyFile returns the topology config path from environment variables
func GetEnvTopologyFile() string {
	if path := os.Getenv("TOPOLOGY_FILE"); path != "" {
		return path
	}
	return DefaultTopologyFile
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		return DefaultMetricsPort, nil
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s", port)
	}
	return port, nil
}

// GetEnvGatewayWorkers returns the gateway worker count from environment variables
func GetEnvGatewayWorkers() (int, error) {
	return getEnvPositiveInt("GATEWAY_WORKERS", DefaultGatewayWorkers)
}

// GetEnvGatewayMaxAttempts returns the delivery attempt cap from environment variables
func GetEnvGatewayMaxAttempts() (int, error) {
	return getEnvPositiveInt("GATEWAY_MAX_ATTEMPTS", DefaultGatewayMaxAttempts)
}

// GetEnvSwapFeeBps returns the rate executor fee from environment variables
func GetEnvSwapFeeBps() (int64, error) {
	raw := os.Getenv("SWAP_FEE_BPS")
	if raw == "" {
		return DefaultSwapFeeBps, nil
	}
	fee, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || fee < 0 || fee >= 10000 {
		return 0, fmt.Errorf("invalid SWAP_FEE_BPS value: %s", raw)
	}
	return fee, nil
}

// GetEnvRedisAddr returns the redis address from environment variables.
// Empty means intent records stay in memory.
func GetEnvRedisAddr() string {
	return os.Getenv("REDIS_ADDR")
}

// GetEnvAMQPURL returns the broker URL from environment variables.
// Empty means the in-process gateway is used.
func GetEnvAMQPURL() string {
	return os.Getenv("AMQP_URL")
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled
func GetEnvCircuitBreakerEnabled() (bool, error) {
	raw := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if raw == "" {
		return DefaultCircuitBreakerEnabled, nil
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s", raw)
	}
	return enabled, nil
}

// GetEnvCircuitBreakerThreshold returns the failure threshold
func GetEnvCircuitBreakerThreshold() (int, error) {
	return getEnvPositiveInt("CIRCUIT_BREAKER_THRESHOLD", DefaultCircuitBreakerThreshold)
}

// GetEnvCircuitBreakerWindow returns the failure window
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	seconds, err := getEnvPositiveInt("CIRCUIT_BREAKER_WINDOW", DefaultCircuitBreakerWindow)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// GetEnvCircuitBreakerReset returns the reset timeout
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	seconds, err := getEnvPositiveInt("CIRCUIT_BREAKER_RESET", DefaultCircuitBreakerReset)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}

// GetEnvLogLevel returns the configured log level
func GetEnvLogLevel() (logger.Level, error) {
	raw := os.Getenv("LOG_LEVEL")
	switch raw {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL value: %s", raw)
	}
}

// GetEnvLogColoring returns whether log coloring is enabled
func GetEnvLogColoring() (bool, error) {
	raw := os.Getenv("LOG_COLORING")
	if raw == "" {
		return true, nil
	}
	coloring, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid LOG_COLORING value: %s", raw)
	}
	return coloring, nil
}

// GetEnvMetricsAPIKey returns the API key protecting the metrics endpoint
func GetEnvMetricsAPIKey() string {
	return os.Getenv("METRICS_API_KEY")
}

func getEnvPositiveInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid %s value: %s", name, raw)
	}
	return value, nil
}
