package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/soundseasons/internal/support/exception"
)

func TestNewPipelineError(t *testing.T) {
	originalErr := errors.New("db connection refused")
	pe := exception.New("warehouse", "failed to connect", originalErr, true)

	assert.Equal(t, "warehouse", pe.Module)
	assert.Equal(t, "failed to connect", pe.Message)
	assert.Equal(t, originalErr, pe.Unwrap())
	assert.True(t, pe.Retryable())
	assert.Contains(t, pe.Error(), "[warehouse] failed to connect: db connection refused")
	assert.NotEmpty(t, pe.StackTrace)
}

func TestNewf(t *testing.T) {
	pe := exception.Newf("stats_engine", "unknown chart feature: '%s'", "mood")

	assert.False(t, pe.Retryable())
	assert.Nil(t, pe.Unwrap())
	assert.Contains(t, pe.Error(), "[stats_engine] unknown chart feature: 'mood'")
}

func TestIsRetryable(t *testing.T) {
	// A PipelineError's flag takes precedence over message matching.
	retryable := exception.New("charts_source", "request failed", errors.New("boom"), true)
	assert.True(t, exception.IsRetryable(retryable))

	fatal := exception.New("config", "invalid configuration", errors.New("timeout in message"), false)
	assert.False(t, exception.IsRetryable(fatal))

	// Plain errors fall back to transient failure patterns.
	assert.True(t, exception.IsRetryable(errors.New("dial tcp: i/o timeout")))
	assert.True(t, exception.IsRetryable(errors.New("connection refused")))
	assert.False(t, exception.IsRetryable(errors.New("permission denied")))
	assert.False(t, exception.IsRetryable(nil))

	// The flag survives wrapping.
	wrapped := fmt.Errorf("stage failed: %w", retryable)
	assert.True(t, exception.IsRetryable(wrapped))
}

func TestIsSourceUnavailable(t *testing.T) {
	pe := exception.New("weather_source", "retries exhausted",
		errors.Join(exception.ErrSourceUnavailable, errors.New("status 503")), false)
	assert.True(t, exception.IsSourceUnavailable(pe))

	deeplyWrapped := fmt.Errorf("run failed: %w", pe)
	assert.True(t, exception.IsSourceUnavailable(deeplyWrapped))

	assert.False(t, exception.IsSourceUnavailable(errors.New("status 503")))
	assert.False(t, exception.IsSourceUnavailable(nil))
}
