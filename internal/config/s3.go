package config

import (
	"fmt"
	"os"
)

// S3Config holds blob-store configuration for source PDFs/SVGs and
// rendered final PDFs.
type S3Config struct {
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	Endpoint         string // non-empty for S3-compatible local/dev endpoints
	FinalPrefix      string
	SourcePrefix     string
	PresignTTLSecond int
}

// NewS3Config loads blob-store configuration from the environment.
func NewS3Config() (*S3Config, error) {
	cfg := &S3Config{
		Region:          getEnvOrDefault("S3_REGION", "us-east-1"),
		Bucket:          os.Getenv("S3_BUCKET"),
		AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		Endpoint:        os.Getenv("S3_ENDPOINT"),
		FinalPrefix:     getEnvOrDefault("S3_FINAL_PREFIX", "documents/final/"),
		SourcePrefix:    getEnvOrDefault("S3_SOURCE_PREFIX", "documents/source/"),
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}
	ttl, err := validateRange("S3_PRESIGN_TTL_SECONDS", "900", 60, 86400)
	if err != nil {
		return nil, fmt.Errorf("invalid presign ttl: %w", err)
	}
	cfg.PresignTTLSecond = ttl
	return cfg, nil
}
