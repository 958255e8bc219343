package main

import (
	"fmt"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
)

var LogsCommand = Command(logsE,
	"logs",
	"Show the Clawdbot runtime logs",
	Flags(func(flags *pflag.FlagSet) {
		flags.IntP("tail", "n", 200, "Number of log lines to show")
		flags.BoolP("follow", "f", false, "Keep streaming new log lines")
	}),
)

// logsE streams runtime logs through docker compose
func logsE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	config, err := clawbox.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !clawbox.RuntimeInstalled(config) {
		return fmt.Errorf("runtime is not installed, run 'clawbox run' first")
	}

	tail, _ := cmd.Flags().GetInt("tail")
	follow, _ := cmd.Flags().GetBool("follow")

	return clawbox.RuntimeLogs(config, tail, follow)
}
