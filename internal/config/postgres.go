package config

import (
	"fmt"
	"os"
)

// PostgresConfig holds connection configuration for the durable
// metadata store (PrintJob, DocumentAccess, Document repositories).
type PostgresConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	SSLMode     string
	dsnOverride string
}

// NewPostgresConfig loads Postgres configuration from the environment,
// preferring a single DATABASE_URL DSN when present.
func NewPostgresConfig() (*PostgresConfig, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return &PostgresConfig{dsnOverride: dsn}, nil
	}

	cfg := &PostgresConfig{
		Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
		User:     getEnvOrDefault("POSTGRES_USER", "vectorprint"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Database: getEnvOrDefault("POSTGRES_DB", "vectorprint"),
		SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}
	port, err := validateRange("POSTGRES_PORT", "5432", minPort, maxPort)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres port: %w", err)
	}
	cfg.Port = port
	return cfg, nil
}

// DSN returns a libpq-style connection string for pgx/v5/stdlib.
func (c *PostgresConfig) DSN() string {
	if c.dsnOverride != "" {
		return c.dsnOverride
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}
