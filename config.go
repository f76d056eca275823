package wasp

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-wasp/compiler"
	"github.com/ethereum-optimism/infra/op-wasp/flags"
)

// Reporter selections.
const (
	ReporterConsole = "console"
	ReporterText    = "text"
	ReporterAll     = "all"
)

// Config holds the application configuration
type Config struct {
	WorkDir        string // Directory from which include/add patterns expand
	ConfigPath     string // Optional YAML config file, merged over defaults
	CompilerBinary string // Compiler executable building spec units
	Reporter       string // Reporter selection: console, text or all
	LogDir         string // Directory to store per-run unit logs

	Include  []string       // Glob patterns selecting spec files
	Add      []string       // Glob patterns selecting shared helper sources
	Disclude []string       // Regular expressions removing include matches
	Flags    compiler.Flags // Ordered compiler flag mapping

	// Imports are user capability namespaces merged into every unit's
	// capability set. Only settable programmatically; functions do not
	// round-trip through YAML.
	Imports map[string]map[string]any

	Log log.Logger
}

// fileConfig is the YAML shape of the optional config file. Absent fields
// keep their defaults.
type fileConfig struct {
	Include  []string       `yaml:"include"`
	Add      []string       `yaml:"add"`
	Disclude []string       `yaml:"disclude"`
	Flags    compiler.Flags `yaml:"flags"`
	Reporter string         `yaml:"reporter"`
}

// DefaultConfig returns the conventional configuration: spec and helper
// patterns under the assembly test directory and the default flag set, which
// always carries the mandatory binary-output flag.
func DefaultConfig(logger log.Logger) *Config {
	if logger == nil {
		logger = log.Root()
	}
	return &Config{
		WorkDir:        ".",
		CompilerBinary: compiler.DefaultBinary,
		Reporter:       ReporterConsole,
		LogDir:         "logs",
		Include:        []string{"assembly/__tests__/**/*.spec.ts"},
		Add:            []string{"assembly/__tests__/**/*.include.ts"},
		Disclude:       []string{"/node_modules/"},
		Flags:          compiler.DefaultFlags(),
		Log:            logger,
	}
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, logger log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	cfg := DefaultConfig(logger)
	cfg.CompilerBinary = ctx.String(flags.CompilerBinary.Name)
	cfg.Reporter = ctx.String(flags.Reporter.Name)

	workDir, err := filepath.Abs(ctx.String(flags.WorkDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for work directory '%s': %w", ctx.String(flags.WorkDir.Name), err)
	}
	cfg.WorkDir = workDir

	logDir, err := filepath.Abs(ctx.String(flags.LogDir.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", ctx.String(flags.LogDir.Name), err)
	}
	cfg.LogDir = logDir

	if path := ctx.String(flags.ConfigFile.Name); path != "" {
		cfg.ConfigPath = path
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	switch cfg.Reporter {
	case ReporterConsole, ReporterText, ReporterAll:
	default:
		return nil, fmt.Errorf("unknown reporter '%s'", cfg.Reporter)
	}

	return cfg, nil
}

// applyFile merges the YAML config file over the current values. Fields the
// file omits are left alone.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	if fc.Include != nil {
		c.Include = fc.Include
	}
	if fc.Add != nil {
		c.Add = fc.Add
	}
	if fc.Disclude != nil {
		c.Disclude = fc.Disclude
	}
	if fc.Flags != nil {
		c.Flags = fc.Flags
	}
	if fc.Reporter != "" {
		c.Reporter = fc.Reporter
	}
	return nil
}
