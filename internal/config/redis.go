// Package config provides typed, validated, environment-driven
// configuration for every subsystem of the render service, following the
// pattern established by the retained Redis configuration loader: typed
// fields, bounds-checked parsing, and a single DSN override.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig holds connection and worker-pool configuration for the
// KV cache and queue transport, both of which share the same Redis
// instance (cache operations and asynq both speak the Redis protocol).
type RedisConfig struct {
	Host            string
	Port            int
	Password        string
	DB              int
	Workers         int
	RetryInterval   time.Duration
	MaxRetries      int
	RetentionPeriod time.Duration
	QueuePriorities map[string]int
}

const (
	defaultHost          = "localhost"
	defaultPort          = 6379
	defaultDB            = 0
	defaultWorkers       = 10
	defaultRetryInterval = 5 * time.Second
	defaultMaxRetries    = 3
	defaultRetention     = 7 * 24 * time.Hour
	minPort              = 1
	maxPort              = 65535
	minDB                = 0
	maxDB                = 15
	minWorkers           = 1
	maxWorkers           = 100
)

// DefaultQueuePriorities gives the merge queue precedence over batch
// work so a job that's ready to finalize isn't stuck behind fresh
// batch enqueues.
var DefaultQueuePriorities = map[string]int{
	"merge": 6,
	"batch": 3,
}

// NewRedisConfig loads Redis configuration from the environment.
func NewRedisConfig() (*RedisConfig, error) {
	cfg := &RedisConfig{
		Host:            getEnvOrDefault("REDIS_HOST", defaultHost),
		Password:        os.Getenv("REDIS_PASSWORD"),
		QueuePriorities: make(map[string]int),
	}

	for queue, priority := range DefaultQueuePriorities {
		cfg.QueuePriorities[queue] = priority
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		parsed, err := url.Parse(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}

		if host := parsed.Hostname(); host != "" {
			cfg.Host = host
		}
		if port := parsed.Port(); port != "" {
			p, err := strconv.Atoi(port)
			if err != nil {
				return nil, fmt.Errorf("invalid port in REDIS_URL: %w", err)
			}
			cfg.Port = p
		} else {
			cfg.Port = defaultPort
		}
		if password, ok := parsed.User.Password(); ok {
			cfg.Password = password
		}
		if path := strings.TrimPrefix(parsed.Path, "/"); path != "" {
			db, err := strconv.Atoi(path)
			if err != nil {
				return nil, fmt.Errorf("invalid database number in REDIS_URL: %w", err)
			}
			cfg.DB = db
		}
	} else {
		port, err := validateRange("REDIS_PORT", strconv.Itoa(defaultPort), minPort, maxPort)
		if err != nil {
			return nil, fmt.Errorf("invalid port: %w", err)
		}
		cfg.Port = port

		db, err := validateRange("REDIS_DB", strconv.Itoa(defaultDB), minDB, maxDB)
		if err != nil {
			return nil, fmt.Errorf("invalid DB: %w", err)
		}
		cfg.DB = db
	}

	workers, err := validateRange("REDIS_WORKERS", strconv.Itoa(defaultWorkers), minWorkers, maxWorkers)
	if err != nil {
		return nil, fmt.Errorf("invalid workers: %w", err)
	}
	cfg.Workers = workers

	interval, err := validateDuration("REDIS_RETRY_INTERVAL", defaultRetryInterval, time.Second, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid retry interval: %w", err)
	}
	cfg.RetryInterval = interval

	retries, err := validateRange("REDIS_MAX_RETRIES", strconv.Itoa(defaultMaxRetries), 1, 10)
	if err != nil {
		return nil, fmt.Errorf("invalid max retries: %w", err)
	}
	cfg.MaxRetries = retries

	days, err := validateRange("REDIS_RETENTION_DAYS", "7", 1, 365)
	if err != nil {
		return nil, fmt.Errorf("invalid retention days: %w", err)
	}
	cfg.RetentionPeriod = time.Duration(days) * 24 * time.Hour

	return cfg, nil
}

// Addr returns the formatted host:port Redis address.
func (c *RedisConfig) Addr() string {
	host := c.Host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

func validateRange(envKey, defaultValue string, min, max int) (int, error) {
	raw := getEnvOrDefault(envKey, defaultValue)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", envKey, err)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s must be between %d and %d", envKey, min, max)
	}
	return v, nil
}

func validateDuration(envKey string, defaultValue, min, max time.Duration) (time.Duration, error) {
	raw := getEnvOrDefault(envKey, defaultValue.String())
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s invalid duration: %w", envKey, err)
	}
	if d < min || d > max {
		return 0, fmt.Errorf("%s must be between %v and %v", envKey, min, max)
	}
	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
