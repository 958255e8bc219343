package main

import (
	"fmt"
	"os"

	. "github.com/streamingfast/cli"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

// Version is set via ldflags at build time
var version = "dev"

var zlog, _ = logging.PackageLogger("clawbox", "github.com/simplifia/clawbox/cmd/main")

func init() {
	logging.InstantiateLoggers(logging.WithDefaultLevel(zap.DPanicLevel))
}

func main() {
	Run(
		"clawbox <command>",
		"Installer and container supervisor for the Clawdbot automation runtime",

		ConfigureVersion(version),
		ConfigureViper("CLAWBOX"),

		RunCommand,
		StopCommand,
		StatusCommand,
		LogsCommand,
		UpdateCommand,
		UninstallCommand,
		DoctorCommand,
		SetupCommand,
		ConfigCommand,
		GuideCommand,
		EntrypointCommand,

		OnCommandError(func(err error) {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			zlog.Debug("command error", zap.Error(err))
			os.Exit(1)
		}),
	)
}
