package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-wasp/runner"
	"github.com/ethereum-optimism/infra/op-wasp/spec"
)

func TestNewFileLoggerValidation(t *testing.T) {
	_, err := NewFileLogger("", "run1")
	require.Error(t, err)

	_, err = NewFileLogger(t.TempDir(), "")
	require.Error(t, err)
}

func TestFileLoggerSplitsPassedAndFailed(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(dir, "run1")
	require.NoError(t, err)

	passing := &runner.UnitResult{
		File:     "math.spec.ts",
		Tests:    2,
		Passed:   2,
		Pass:     true,
		Duration: 50 * time.Millisecond,
	}
	failing := &runner.UnitResult{
		File:   filepath.Join("sub", "strings.spec.ts"),
		Tests:  1,
		Failed: 1,
		Failures: []spec.Failure{{
			Test:     "concatenates",
			Matcher:  "toBe",
			Actual:   "\x1b[31m\"ab\"\x1b[0m",
			Expected: `"abc"`,
		}},
	}

	require.NoError(t, l.Consume(passing))
	require.NoError(t, l.Consume(failing))
	require.NoError(t, l.Complete(&runner.RunResult{RunID: "run1"}))

	passedLog, err := os.ReadFile(filepath.Join(l.LogDir(), "passed", "math.spec.ts.log"))
	require.NoError(t, err)
	assert.Contains(t, string(passedLog), "PASS math.spec.ts")

	failedLog, err := os.ReadFile(filepath.Join(l.LogDir(), "failed", "sub_strings.spec.ts.log"))
	require.NoError(t, err)
	assert.Contains(t, string(failedLog), "FAIL")
	assert.Contains(t, string(failedLog), "concatenates")
	// ANSI escapes are stripped from failure detail.
	assert.NotContains(t, string(failedLog), "\x1b[")

	allLogs, err := os.ReadFile(filepath.Join(l.LogDir(), "all.log"))
	require.NoError(t, err)
	assert.Contains(t, string(allLogs), "math.spec.ts")
	assert.Contains(t, string(allLogs), "strings.spec.ts")
}
