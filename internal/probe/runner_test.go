// internal/probe/runner_test.go
package probe

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/chatprobe-cli/internal/config"
	"github.com/xkilldash9x/chatprobe-cli/internal/dataset"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	t.Cleanup(dataset.ResetCacheForTest)

	cfg := config.NewDefaultConfig()
	cfg.Target.Dataset = filepath.Join("..", "..", "data", "queries.json")

	runner, err := NewRunner(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return runner
}

func TestNewRunner(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := newTestRunner(t)
	assert.NotNil(t, runner.ds)
	assert.NotNil(t, runner.limiter)
	assert.Empty(t, runner.results)
}

func TestNewRunnerRejectsMissingDataset(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Target.Dataset = filepath.Join(t.TempDir(), "missing.json")

	_, err := NewRunner(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestNewRunnerDefaultsMessageInterval(t *testing.T) {
	t.Cleanup(dataset.ResetCacheForTest)

	cfg := config.NewDefaultConfig()
	cfg.Target.Dataset = filepath.Join("..", "..", "data", "queries.json")
	cfg.Probe.MessageInterval = 0

	runner, err := NewRunner(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	// One message every two seconds.
	assert.InDelta(t, 0.5, float64(runner.limiter.Limit()), 0.001)
}

func TestLanguagesFallBackToDataset(t *testing.T) {
	runner := newTestRunner(t)

	runner.cfg.Probe.Languages = nil
	assert.Equal(t, []string{"arabic", "english"}, runner.languages())

	runner.cfg.Probe.Languages = []string{"english"}
	assert.Equal(t, []string{"english"}, runner.languages())
}

func TestSkipRecordsResult(t *testing.T) {
	runner := newTestRunner(t)
	runner.skip("quality/french", "quality", "language not in dataset")

	require.Len(t, runner.results, 1)
	assert.Equal(t, "quality/french", runner.results[0].Name)
	assert.Equal(t, "language not in dataset", runner.results[0].Detail)
}

func TestTruncateForDetail(t *testing.T) {
	short := "short detail"
	assert.Equal(t, short, truncateForDetail(short))

	long := ""
	for len(long) <= 300 {
		long += "x"
	}
	got := truncateForDetail(long)
	assert.Len(t, got, 203)
	assert.Equal(t, "...", got[200:])
}

func TestUnsafePathChars(t *testing.T) {
	assert.Equal(t, "security_sql_injection",
		unsafePathChars.ReplaceAllString("security/sql_injection", "_"))
	assert.Equal(t, "quality_english_valid",
		unsafePathChars.ReplaceAllString("quality/english/valid", "_"))
}
