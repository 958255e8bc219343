package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/simplifia/clawbox"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	. "github.com/streamingfast/cli"
)

var EntrypointCommand = Command(entrypointE,
	"entrypoint [-- extra runtime args...]",
	"Internal command: container entrypoint (not for direct use)",
	Description(`
		This command is the entrypoint of the runtime container image. It starts
		TCP proxies from the published external ports to the runtime's
		loopback-only listeners, launches the runtime, waits for its gateway to
		answer HTTP, runs a reachability self-test and then supervises the
		runtime process until it exits or the container is stopped.

		Ports are taken from GATEWAY_EXTERNAL_PORT and BROWSER_EXTERNAL_PORT
		(defaults 18789 and 18791); flags override the environment.

		Do not run this command directly on a host - it is invoked automatically
		when the container starts.
	`),
	Flags(func(flags *pflag.FlagSet) {
		flags.Int("gateway-port", 0, "External gateway port (overrides GATEWAY_EXTERNAL_PORT)")
		flags.Int("browser-port", 0, "External browser port (overrides BROWSER_EXTERNAL_PORT)")
		flags.Bool("strict-self-test", false, "Exit with an error when the startup self-test fails")
		flags.String("service-binary", "", "Runtime binary to launch (default: clawdbot)")
	}),
)

// entrypointE runs the container supervisor and exits the process with the
// runtime's exit code.
func entrypointE(cmd *cobra.Command, args []string) error {
	clawbox.SetupLogging()

	gatewayMapping, browserMapping, err := clawbox.MappingsFromEnv()
	if err != nil {
		return err
	}

	if port, _ := cmd.Flags().GetInt("gateway-port"); port != 0 {
		gatewayMapping.External = port
	}
	if port, _ := cmd.Flags().GetInt("browser-port"); port != 0 {
		browserMapping.External = port
	}

	strict, _ := cmd.Flags().GetBool("strict-self-test")
	if !cmd.Flags().Changed("strict-self-test") {
		if config, err := clawbox.LoadConfig(); err == nil {
			strict = config.StrictSelfTest
		}
	}
	serviceBinary, _ := cmd.Flags().GetString("service-binary")

	// SIGTERM/SIGINT cancel the context; the supervisor turns that into a
	// graceful stop of the runtime and the proxies.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	supervisor := clawbox.NewSupervisor(clawbox.SupervisorOptions{
		GatewayMapping: gatewayMapping,
		BrowserMapping: browserMapping,
		ServiceBinary:  serviceBinary,
		ExtraArgs:      args,
		StrictSelfTest: strict,
	})

	code, err := supervisor.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	if code != 0 || err != nil {
		if code == 0 {
			code = 1
		}
		os.Exit(code)
	}
	return nil
}
