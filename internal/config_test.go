package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal("INFO", config.LogLevel)
	req.Equal("sqlite", config.StoreBackend)
	req.Equal("data/ingest.db", config.StorePath())
	req.Equal(1000, config.QueueCapacity)
	req.Equal(2*time.Second, config.ReconcileInterval())
	req.Equal(50, config.SummaryMaxChars)

	policy := config.RetryPolicy()
	req.Equal(time.Second, policy.BaseDelay)
	req.Equal(5, policy.MaxAttempts)
	req.Equal(0.5, policy.Jitter)
}

func TestLoadConfig_Overrides(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("STORE_BACKEND", "badger")
	t.Setenv("TIME_UNIT", "100ms")
	t.Setenv("RECONCILE_EVERY", "3")

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal("data/badger", config.StorePath())
	req.Equal(300*time.Millisecond, config.ReconcileInterval())
}

func TestLoadConfig_Invalid(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())

	t.Setenv("STORE_BACKEND", "postgres")
	_, err := LoadConfig()
	req.Error(err)

	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SESSION_ID", "a:b")
	_, err = LoadConfig()
	req.Error(err)
}
