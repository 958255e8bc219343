package clawbox

import (
	"os"

	"github.com/streamingfast/logging"
	"go.uber.org/zap"
)

// SetupLogging configures the shared loggers for CLI commands. Commands are
// quiet by default; set CLAWBOX_DEBUG=1 for verbose output.
func SetupLogging() {
	if os.Getenv("CLAWBOX_DEBUG") != "" {
		logging.InstantiateLoggers(logging.WithDefaultLevel(zap.DebugLevel))
		return
	}
	logging.InstantiateLoggers(logging.WithDefaultLevel(zap.InfoLevel))
}
