package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFinalAttemptWithNoRetryInfoDefaultsToFinal(t *testing.T) {
	assert.True(t, isFinalAttempt(context.Background()))
}

func TestTaskIDReturnsEmptyWhenAbsent(t *testing.T) {
	assert.Equal(t, "", taskID(context.Background()))
}
