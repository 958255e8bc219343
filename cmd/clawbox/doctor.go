package main

import (
	"fmt"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

var DoctorCommand = Command(doctorE,
	"doctor",
	"Diagnose the environment and recommend the next step",
	Description(`
		Checks each layer the runtime depends on: the docker binary, the docker
		daemon, the installed compose stack, the runtime container and the
		provider configuration. Prints one recommended command to fix the first
		broken layer.
	`),
)

// doctorE runs the environment diagnosis
func doctorE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	config, err := clawbox.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	report := clawbox.RunDoctor(config)
	clawbox.WriteDoctorReport(cmd.OutOrStdout(), report)

	if !report.Healthy() {
		// Non-zero exit so scripts can gate on a healthy environment
		return fmt.Errorf("environment is not healthy")
	}
	return nil
}
