package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("valid statement task", func(t *testing.T) {
		tk, err := New("snowflake_create_table", ExecuteStatement{SQL: "SELECT 1"}, DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, "snowflake_create_table", tk.Name())
		assert.Equal(t, KindStatement, tk.Action().Kind())
		assert.Equal(t, "snowflake_create_table(sql)", tk.String())
	})

	t.Run("valid fetch task", func(t *testing.T) {
		tk, err := New("newsapi_data_to_gcs", InvokeFetch{}, DefaultPolicy())
		require.NoError(t, err)
		assert.Equal(t, KindFetch, tk.Action().Kind())
	})

	t.Run("error cases", func(t *testing.T) {
		_, err := New("  ", InvokeFetch{}, DefaultPolicy())
		assert.ErrorContains(t, err, "task name is required")

		_, err = New("a", nil, DefaultPolicy())
		assert.ErrorContains(t, err, "action is required")

		_, err = New("a", ExecuteStatement{SQL: "  "}, DefaultPolicy())
		assert.ErrorContains(t, err, "non-empty SQL")

		_, err = New("a", InvokeFetch{}, Policy{Retries: -1})
		assert.ErrorContains(t, err, "retries must not be negative")
	})
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 0, p.Retries)
	assert.Equal(t, 5*time.Minute, p.RetryDelay)
	assert.False(t, p.EmailOnFailure)
	assert.False(t, p.EmailOnRetry)
	assert.Equal(t, 1, p.MaxAttempts())
}

func TestPolicyIsCopied(t *testing.T) {
	tk, err := New("a", InvokeFetch{}, DefaultPolicy())
	require.NoError(t, err)

	p := tk.Policy()
	p.Retries = 7
	assert.Equal(t, 0, tk.Policy().Retries)
}

func TestNewRunID(t *testing.T) {
	ld := time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "scheduled__2024-12-28T00:00:00Z", NewRunID(RunScheduled, ld))
	assert.Equal(t, "manual__2024-12-28T00:00:00Z", NewRunID(RunManual, ld))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusSkipped.Terminal())
}
