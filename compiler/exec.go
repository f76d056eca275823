package compiler

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

var _ Compiler = (*execCompiler)(nil)

// DefaultBinary is the compiler binary invoked when none is configured.
const DefaultBinary = "asc"

// execCompiler shells out to an external compiler binary. The process runs in
// a scratch directory so requested outputs never touch the spec tree; every
// file the compiler produces there is streamed to the write sink instead.
type execCompiler struct {
	binary     string
	log        log.Logger
	cmdBuilder func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewExecCompiler creates a Compiler that invokes an external binary.
func NewExecCompiler(binary string, logger log.Logger) Compiler {
	if binary == "" {
		binary = DefaultBinary
	}
	if logger == nil {
		logger = log.Root()
	}
	return &execCompiler{
		binary:     binary,
		log:        logger,
		cmdBuilder: exec.CommandContext,
	}
}

// Compile runs the compiler on the entry list with the flattened flag tokens.
// A non-zero exit returns the compiler diagnostic as the error; otherwise all
// produced files are handed to sink in path order.
func (c *execCompiler) Compile(ctx context.Context, entries []string, flags []string, sink WriteSink) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	if len(entries) == 0 {
		return fmt.Errorf("no entry files to compile")
	}

	scratch, err := os.MkdirTemp("", "op-wasp-compile-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	// Entries may be relative to the caller's working directory; resolve them
	// before switching the compiler into the scratch directory.
	absEntries := make([]string, 0, len(entries))
	for _, entry := range entries {
		abs, err := filepath.Abs(entry)
		if err != nil {
			return fmt.Errorf("failed to resolve entry path '%s': %w", entry, err)
		}
		absEntries = append(absEntries, abs)
	}

	args := append(absEntries, flags...)
	c.log.Debug("Invoking compiler", "binary", c.binary, "args", strings.Join(args, " "))

	cmd := c.cmdBuilder(ctx, c.binary, args...)
	cmd.Dir = scratch

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		diagnostic := strings.TrimSpace(stderr.String())
		if diagnostic == "" {
			diagnostic = strings.TrimSpace(stdout.String())
		}
		if diagnostic == "" {
			diagnostic = err.Error()
		}
		return fmt.Errorf("compiler failed: %s", diagnostic)
	}

	return c.drainArtifacts(scratch, sink)
}

// drainArtifacts streams every file the compiler wrote into the scratch
// directory to the sink, named relative to the scratch root.
func (c *execCompiler) drainArtifacts(scratch string, sink WriteSink) error {
	return filepath.WalkDir(scratch, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name, err := filepath.Rel(scratch, path)
		if err != nil {
			return fmt.Errorf("failed to relativize artifact path '%s': %w", path, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read artifact '%s': %w", name, err)
		}
		c.log.Debug("Captured compiler artifact", "name", name, "bytes", len(data))
		return sink(name, data)
	})
}
