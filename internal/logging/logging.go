// Package logging builds the structured zap logger used by the domain
// packages (scheduler, quota, layout, reaper). Transport adapters keep
// their own plain log.Printf texture and do not depend on this package.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	Level       string // debug, info, warn, error
	Encoding    string // json, console
	Development bool
}

// NewConfigFromEnv reads LOG_LEVEL, LOG_ENCODING, LOG_DEVELOPMENT.
func NewConfigFromEnv() Config {
	cfg := Config{
		Level:    "info",
		Encoding: "json",
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Level = v
	}
	if v := os.Getenv("LOG_ENCODING"); v != "" {
		cfg.Encoding = v
	}
	if v := os.Getenv("LOG_DEVELOPMENT"); v == "1" || v == "true" {
		cfg.Development = true
	}
	return cfg
}

// New builds a *zap.Logger from Config, to be injected into constructors
// the way the retained database layer accepts one rather than reading a
// package-level global.
func New(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.Set(cfg.Level); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Development,
		Encoding:         cfg.Encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
