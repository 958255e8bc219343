package main

import (
	"fmt"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

var UpdateCommand = Command(updateE,
	"update",
	"Update the Clawdbot runtime to the latest image",
	Description(`
		Refreshes the managed compose stack, pulls the latest runtime image and
		restarts the stack on it. Data volumes and the .env file are untouched.
	`),
)

// updateE pulls the latest runtime image and restarts the stack
func updateE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	config, err := clawbox.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !clawbox.RuntimeInstalled(config) {
		return fmt.Errorf("runtime is not installed, run 'clawbox run' first")
	}

	cmd.Println("Pulling latest runtime image...")
	if err := clawbox.UpdateRuntime(config); err != nil {
		return fmt.Errorf("failed to update runtime: %w", err)
	}

	cmd.Println("Runtime updated and restarted.")
	return nil
}
