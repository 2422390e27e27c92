package assay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, 5*time.Minute, config.StageTimeout(StageDimensions))
	require.Equal(t, 3, config.RetryBudget(ErrorTypeTransient))
	require.Equal(t, 2, config.RetryBudget(ErrorTypeAI))
	require.Equal(t, 1, config.RetryBudget(ErrorTypeTimeout))
	require.Zero(t, config.RetryBudget(ErrorTypeFatal))
	require.Equal(t, 24*time.Hour, config.CheckpointTTL)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
stage_timeouts:
  verdict: 90s
retry_budgets:
  transient: 5
retry_base_wait: 250ms
checkpoint_ttl: 48h
`), 0644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, config.StageTimeout(StageVerdict))
	require.Equal(t, 5, config.RetryBudget(ErrorTypeTransient))
	// Unset values keep defaults
	require.Equal(t, 2*time.Minute, config.StageTimeout(StageScreening))
	require.Equal(t, 250*time.Millisecond, config.RetryBaseWait)
	require.Equal(t, 48*time.Hour, config.CheckpointTTL)
}

func TestLoadConfigRejectsBadDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry_base_wait: soon\n"), 0644))
	_, err := LoadConfig(path)
	require.Error(t, err)
}
