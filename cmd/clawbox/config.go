package main

import (
	"fmt"
	"strconv"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	. "github.com/streamingfast/cli"
)

var ConfigCommand = Command(configE,
	"config [key] [value]",
	"View or edit configuration settings",
	Description(`
		Without arguments, displays the current configuration.
		With a key, displays that setting's value.
		With key and value, sets the configuration option.
	`),
)

// configE views or edits configuration
func configE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	config, err := clawbox.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(args) == 0 {
		// Show all configuration
		cmd.Println("Global configuration:")
		cmd.Printf("  runtime_home: %s\n", config.RuntimeHome)
		cmd.Printf("  data_dir: %s\n", config.DataDir)
		cmd.Printf("  gateway_external_port: %d\n", config.GatewayExternalPort)
		cmd.Printf("  browser_external_port: %d\n", config.BrowserExternalPort)
		cmd.Printf("  strict_self_test: %v\n", config.StrictSelfTest)
		return nil
	}

	key := args[0]

	if len(args) == 1 {
		// Show specific key
		switch key {
		case "runtime_home":
			cmd.Println(config.RuntimeHome)
		case "data_dir":
			cmd.Println(config.DataDir)
		case "gateway_external_port":
			cmd.Println(config.GatewayExternalPort)
		case "browser_external_port":
			cmd.Println(config.BrowserExternalPort)
		case "strict_self_test":
			cmd.Println(config.StrictSelfTest)
		default:
			return fmt.Errorf("unknown config key: %s", key)
		}
		return nil
	}

	// Set value
	value := args[1]
	switch key {
	case "runtime_home":
		config.RuntimeHome = value
	case "gateway_external_port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("gateway_external_port must be a number: %w", err)
		}
		config.GatewayExternalPort = port
	case "browser_external_port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("browser_external_port must be a number: %w", err)
		}
		config.BrowserExternalPort = port
	case "strict_self_test":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("strict_self_test must be true or false: %w", err)
		}
		config.StrictSelfTest = enabled
	default:
		return fmt.Errorf("cannot set config key: %s (read-only or unknown)", key)
	}

	if err := clawbox.SaveConfig(config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}
