package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndIs(t *testing.T) {
	err := New(KindLimit, "quota exhausted")
	require.Error(t, err)
	assert.True(t, Is(err, KindLimit))
	assert.False(t, Is(err, KindRevoked))
	assert.Equal(t, KindLimit, KindOf(err))
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(KindCacheUnavailable, "redis down", cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "redis down")
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestKindOfUntaggedError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, Is(fmt.Errorf("plain"), KindLimit))
}
