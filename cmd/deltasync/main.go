package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/deltasync/deltasync/internal/cli"
	"github.com/deltasync/deltasync/internal/logging"
)

// version is the deltasync release identifier.
const version = "0.1.0"

// logger is the root logger shared by every subcommand. Debug-level
// output from it is gated by the --log-level flag, resolved in init below.
var logger = logging.RootLogger.Sublogger("deltasync")

func rootMain(command *cobra.Command, arguments []string) {
	if rootConfiguration.version {
		fmt.Println(version)
		return
	}
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "deltasync",
	Short: "deltasync computes and applies rsync-style binary deltas in memory",
	Run:   rootMain,
}

var rootConfiguration struct {
	version  bool
	logLevel string
}

func init() {
	flags := rootCommand.Flags()
	flags.BoolVarP(&rootConfiguration.version, "version", "V", false, "Show version information")
	rootCommand.PersistentFlags().StringVar(&rootConfiguration.logLevel, "log-level", "warn", "Log level (disabled|error|warn|info|debug|trace)")

	cobra.EnableCommandSorting = false
	cobra.OnInitialize(func() {
		level, ok := logging.NameToLevel(rootConfiguration.logLevel)
		if !ok {
			cli.Fatal(errors.Errorf("invalid log level: %s", rootConfiguration.logLevel))
		}
		logging.DebugEnabled = level >= logging.LevelDebug
	})

	rootCommand.AddCommand(
		fingerprintCommand,
		patchCommand,
		applyCommand,
		mergeCommand,
		suggestBlockSizeCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
