package main

import (
	"fmt"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

var StopCommand = Command(stopE,
	"stop",
	"Stop the running Clawdbot runtime",
	Description(`
		Stops the runtime compose stack. Containers and data volumes are kept,
		so 'clawbox run' brings everything back in the same state.
	`),
)

// stopE stops the runtime compose stack
func stopE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	config, err := clawbox.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !clawbox.RuntimeInstalled(config) {
		cmd.Println("Runtime is not installed, nothing to stop.")
		return nil
	}

	if err := clawbox.StopRuntime(config); err != nil {
		return fmt.Errorf("failed to stop runtime: %w", err)
	}

	cmd.Println("Runtime stopped.")
	return nil
}
