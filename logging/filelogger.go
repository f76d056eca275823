// Package logging persists per-unit diagnostics for a run: one log file per
// executed unit, split into passed/ and failed/ directories, plus a combined
// all.log. Output is sanitized of ANSI escape sequences so the files stay
// readable when compilers or guests emit colored text.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-wasp/runner"
)

// RunDirectoryPrefix is the standardized prefix for run directories.
const RunDirectoryPrefix = "testrun-"

// FileLogger handles writing unit results to files. It implements the
// runner.Reporter interface so it can be fanned in with the other reporters.
type FileLogger struct {
	baseDir   string
	logDir    string
	passedDir string
	failedDir string
	runID     string

	mu      sync.Mutex
	allLogs *os.File
}

// NewFileLogger creates a new FileLogger with the given configuration.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	passedDir := filepath.Join(logDir, "passed")
	failedDir := filepath.Join(logDir, "failed")

	for _, dir := range []string{baseDir, logDir, passedDir, failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	allLogs, err := os.Create(filepath.Join(logDir, "all.log"))
	if err != nil {
		return nil, fmt.Errorf("failed to create combined log file: %w", err)
	}

	return &FileLogger{
		baseDir:   baseDir,
		logDir:    logDir,
		passedDir: passedDir,
		failedDir: failedDir,
		runID:     runID,
		allLogs:   allLogs,
	}, nil
}

// LogDir returns the run's log directory.
func (l *FileLogger) LogDir() string {
	return l.logDir
}

// Consume writes one unit's diagnostics to its own file and appends it to the
// combined log.
func (l *FileLogger) Consume(result *runner.UnitResult) error {
	content := formatUnit(result)

	dir := l.passedDir
	if !result.Pass {
		dir = l.failedDir
	}
	unitFile := filepath.Join(dir, sanitizeFilename(result.File)+".log")
	if err := os.WriteFile(unitFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write unit log %s: %w", unitFile, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.allLogs.WriteString(content + "\n"); err != nil {
		return fmt.Errorf("failed to append to combined log: %w", err)
	}
	return nil
}

// Complete closes the combined log file.
func (l *FileLogger) Complete(result *runner.RunResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.allLogs.Close(); err != nil {
		return fmt.Errorf("failed to close combined log: %w", err)
	}
	return nil
}

func formatUnit(result *runner.UnitResult) string {
	var b strings.Builder
	status := "PASS"
	if !result.Pass {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "=== %s %s (%d tests, %d passed, %d failed, %d skipped) in %s\n",
		status, result.File, result.Tests, result.Passed, result.Failed, result.Skipped, result.Duration)
	for _, failure := range result.Failures {
		fmt.Fprintf(&b, "    %s\n", stripansi.Strip(failure.String()))
	}
	return b.String()
}

// sanitizeFilename flattens a spec file path into a single path element.
func sanitizeFilename(file string) string {
	name := strings.ReplaceAll(file, string(os.PathSeparator), "_")
	return strings.ReplaceAll(name, "..", "_")
}
