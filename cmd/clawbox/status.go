package main

import (
	"fmt"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

var StatusCommand = Command(statusE,
	"status",
	"Show the Clawdbot runtime status",
)

// statusE shows the runtime container state
func statusE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	config, err := clawbox.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !clawbox.RuntimeInstalled(config) {
		cmd.Println("Runtime: not installed")
		cmd.Println("Run 'clawbox run' to install and start it.")
		return nil
	}

	container, err := clawbox.FindRuntimeContainer()
	if err != nil {
		return fmt.Errorf("failed to query docker: %w", err)
	}

	if container == nil {
		cmd.Println("Runtime: installed, container not created")
		cmd.Println("Run 'clawbox run' to start it.")
		return nil
	}

	cmd.Printf("Runtime: %s\n", container.State)
	cmd.Printf("  Container: %s (%s)\n", container.Names, shortID(container.ID))
	cmd.Printf("  Image:     %s\n", container.Image)
	cmd.Printf("  Status:    %s\n", container.Status)
	if container.State == "running" {
		cmd.Printf("  Gateway:   http://localhost:%d/canvas/\n", config.GatewayExternalPort)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
