package main

import (
	"fmt"
	"strings"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
)

var SetupCommand = Command(setupE,
	"setup",
	"Configure a model provider for the runtime",
	Description(`
		Writes the provider selection and API key into the runtime's
		settings.json using a merge, so any keys you added by hand are kept.

		Restart the runtime afterwards ('clawbox stop && clawbox run') so the
		new provider takes effect.
	`),
	Flags(func(flags *pflag.FlagSet) {
		flags.String("provider", "", "Model provider name")
		flags.String("api-key", "", "API key for the provider")
		flags.String("model", "", "Default model (optional, keeps runtime default when empty)")
	}),
)

// setupE writes the provider configuration into settings.json
func setupE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	config, err := clawbox.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	provider, _ := cmd.Flags().GetString("provider")
	apiKey, _ := cmd.Flags().GetString("api-key")
	model, _ := cmd.Flags().GetString("model")

	if provider == "" {
		return fmt.Errorf("--provider is required (known providers: %s)",
			strings.Join(clawbox.KnownProviders(), ", "))
	}
	if apiKey == "" {
		return fmt.Errorf("--api-key is required")
	}

	if err := clawbox.ConfigureProvider(config, provider, apiKey, model); err != nil {
		return fmt.Errorf("failed to configure provider: %w", err)
	}

	cmd.Printf("Configured provider '%s' in %s\n", provider, clawbox.SettingsPath(config))
	cmd.Println("Restart the runtime to apply: clawbox stop && clawbox run")
	return nil
}
