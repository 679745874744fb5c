package testcontainers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// defaultRedisPort is the port the container exposes Redis on.
	defaultRedisPort = "6379"
)

// RedisConfig holds the connection parameters a running
// RedisContainer exposes, in the same shape internal/config.RedisConfig
// expects so kvcache.New and queue.NewClient can be pointed at it
// directly in tests.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

// RedisContainer is a disposable Redis instance backing both the
// render lock / quota scripts (internal/kvcache) and the asynq queue
// transport (internal/queue) under test.
type RedisContainer struct {
	testcontainers.Container
	Host     string
	Port     int
	Password string
}

// NewRedisContainer starts an unauthenticated Redis container and
// waits for it to accept connections.
func NewRedisContainer(ctx context.Context) (*RedisContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:latest",
		ExposedPorts: []string{defaultRedisPort + "/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start redis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("get container host: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, defaultRedisPort)
	if err != nil {
		return nil, fmt.Errorf("get container port: %w", err)
	}

	port, err := strconv.Atoi(mappedPort.Port())
	if err != nil {
		return nil, fmt.Errorf("parse port: %w", err)
	}

	return &RedisContainer{
		Container: container,
		Host:      host,
		Port:      port,
		Password:  "", // no auth on the test container
	}, nil
}

// GetAddress returns the container's address in host:port form, the
// same shape config.RedisConfig.Addr() produces in production.
func (c *RedisContainer) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
