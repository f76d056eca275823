package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

const EnvVarPrefix = "OP_WASP"

// prefixEnvVar prefixes the environment variable name with the app prefix.
func prefixEnvVar(name string) []string {
	return []string{EnvVarPrefix + "_" + name}
}

var (
	WorkDir = &cli.StringFlag{
		Name:    "workdir",
		Value:   ".",
		EnvVars: prefixEnvVar("WORKDIR"),
		Usage:   "Directory from which include/add patterns are expanded",
	}
	ConfigFile = &cli.StringFlag{
		Name:    "config",
		Value:   "",
		EnvVars: prefixEnvVar("CONFIG"),
		Usage:   "Path to harness config file (eg. 'wasp.config.yaml')",
	}
	CompilerBinary = &cli.StringFlag{
		Name:    "compiler",
		Value:   "asc",
		EnvVars: prefixEnvVar("COMPILER"),
		Usage:   "Path to the compiler binary used to build spec units",
	}
	Reporter = &cli.StringFlag{
		Name:    "reporter",
		Value:   "console",
		EnvVars: prefixEnvVar("REPORTER"),
		Usage:   "Reporter to use: 'console', 'text' or 'all'",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: prefixEnvVar("LOGDIR"),
		Usage:   "Directory to store per-run unit logs",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	WorkDir,
	ConfigFile,
	CompilerBinary,
	Reporter,
	LogDir,
}

var Flags []cli.Flag

func init() {
	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
