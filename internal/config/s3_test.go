package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3ConfigRequiresBucket(t *testing.T) {
	os.Unsetenv("S3_BUCKET")

	_, err := NewS3Config()
	assert.Error(t, err)
}

func TestNewS3ConfigDefaults(t *testing.T) {
	os.Setenv("S3_BUCKET", "vectorprint-artifacts")
	defer os.Unsetenv("S3_BUCKET")

	cfg, err := NewS3Config()
	require.NoError(t, err)
	assert.Equal(t, "vectorprint-artifacts", cfg.Bucket)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "documents/final/", cfg.FinalPrefix)
	assert.Equal(t, "documents/source/", cfg.SourcePrefix)
	assert.Equal(t, 900, cfg.PresignTTLSecond)
}

func TestNewS3ConfigInvalidPresignTTL(t *testing.T) {
	os.Setenv("S3_BUCKET", "vectorprint-artifacts")
	os.Setenv("S3_PRESIGN_TTL_SECONDS", "10")
	defer os.Unsetenv("S3_BUCKET")
	defer os.Unsetenv("S3_PRESIGN_TTL_SECONDS")

	_, err := NewS3Config()
	assert.Error(t, err)
}
