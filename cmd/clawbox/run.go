package main

import (
	"fmt"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

var RunCommand = Command(runE,
	"run",
	"Install (if needed) and start the Clawdbot runtime",
	Description(`
		Installs the runtime's docker compose stack into ~/.clawdbot on first
		use, then starts it in the background. The stack publishes the gateway
		on port 18789 and the browser control channel on port 18791 by default;
		both can be changed in ~/.clawdbot/.env or the clawbox configuration.
	`),
)

// runE installs and starts the runtime compose stack
func runE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	config, err := clawbox.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !clawbox.RuntimeInstalled(config) {
		cmd.Printf("Installing runtime into %s...\n", config.RuntimeHome)
	}
	if err := clawbox.InstallRuntime(config); err != nil {
		return fmt.Errorf("failed to install runtime: %w", err)
	}

	cmd.Println("Starting runtime...")
	if err := clawbox.StartRuntime(config); err != nil {
		return fmt.Errorf("failed to start runtime: %w", err)
	}

	cmd.Println("Runtime started.")
	cmd.Printf("Gateway:  http://localhost:%d/canvas/\n", config.GatewayExternalPort)
	cmd.Println("Run 'clawbox logs -f' to watch startup, or 'clawbox doctor' if something looks off.")
	return nil
}
