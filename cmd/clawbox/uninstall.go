package main

import (
	"fmt"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
)

var UninstallCommand = Command(uninstallE,
	"uninstall",
	"Remove the Clawdbot runtime",
	Description(`
		Tears down the runtime compose stack.

		Without flags, containers are removed but the data volume and the
		~/.clawdbot/.env file are kept, so a later 'clawbox run' resumes with
		the same state and secrets.

		With --purge, the data volume and managed stack files are removed as
		well. Asks for confirmation before proceeding.
	`),
	Flags(func(flags *pflag.FlagSet) {
		flags.Bool("purge", false, "Also remove the data volume and managed stack files")
		flags.BoolP("yes", "y", false, "Skip the confirmation prompt")
	}),
)

// uninstallE tears down the runtime compose stack
func uninstallE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	config, err := clawbox.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !clawbox.RuntimeInstalled(config) {
		cmd.Println("Runtime is not installed, nothing to remove.")
		return nil
	}

	purge, _ := cmd.Flags().GetBool("purge")
	yes, _ := cmd.Flags().GetBool("yes")

	if purge && !yes {
		answeredYes, _ := AskConfirmation("This will remove the runtime AND its data volume (conversations, credentials). Continue?")
		if !answeredYes {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := clawbox.UninstallRuntime(config, purge); err != nil {
		return fmt.Errorf("failed to uninstall runtime: %w", err)
	}

	if purge {
		cmd.Println("Runtime and data removed.")
	} else {
		cmd.Println("Runtime removed. Data volume kept; use --purge to remove it too.")
	}
	return nil
}
