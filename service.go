package clawbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultServiceBinary is the runtime binary the entrypoint launches. It must
// be on PATH inside the container image.
const DefaultServiceBinary = "clawdbot"

// serviceStopGrace bounds how long a cancelled runtime process may take to
// exit after SIGTERM before it is force-killed.
const serviceStopGrace = 10 * time.Second

// Environment variables the runtime reads to decide which loopback ports to
// bind. The entrypoint pins them to the fixed internal ports so any values
// leaking in from the container environment cannot move the listeners out
// from under the proxies.
const (
	serviceGatewayPortEnv = "CLAWDBOT_GATEWAY_PORT"
	serviceBrowserPortEnv = "CLAWDBOT_BROWSER_CONTROL_PORT"
)

// ServiceOptions configures how the backing runtime process is launched.
type ServiceOptions struct {
	// Binary is the runtime executable (default: clawdbot)
	Binary string

	// GatewayPort and BrowserPort are the loopback ports the runtime must bind
	GatewayPort int
	BrowserPort int

	// ExtraArgs are appended to the runtime command line
	ExtraArgs []string

	// Stdout/Stderr receive the runtime's output (default: os.Stdout/os.Stderr)
	Stdout io.Writer
	Stderr io.Writer
}

// BuildServiceCommand constructs the runtime command without starting it.
// The child environment is the current environment with the port overrides
// replacing any inherited values.
func BuildServiceCommand(ctx context.Context, opts ServiceOptions) *exec.Cmd {
	binary := opts.Binary
	if binary == "" {
		binary = DefaultServiceBinary
	}

	args := []string{"gateway", "--port", strconv.Itoa(opts.GatewayPort), "--allow-unconfigured"}
	args = append(args, opts.ExtraArgs...)

	cmd := exec.CommandContext(ctx, binary, args...)

	// On context cancellation ask the runtime to stop gracefully first, and
	// only force-kill it if it has not exited within the wait delay.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = serviceStopGrace

	cmd.Env = overrideEnv(os.Environ(),
		serviceGatewayPortEnv+"="+strconv.Itoa(opts.GatewayPort),
		serviceBrowserPortEnv+"="+strconv.Itoa(opts.BrowserPort),
	)

	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	return cmd
}

// LaunchService ensures the runtime's gateway configuration exists, then
// starts the runtime process. The returned command has been started; the
// caller owns waiting on it.
func LaunchService(ctx context.Context, opts ServiceOptions) (*exec.Cmd, error) {
	configPath, err := GatewayConfigPath()
	if err != nil {
		return nil, err
	}
	created, err := EnsureGatewayConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("prepare gateway config: %w", err)
	}
	if created {
		zlog.Info("wrote gateway config", zap.String("path", configPath))
	}

	cmd := BuildServiceCommand(ctx, opts)

	zlog.Info("starting backing service",
		zap.String("binary", cmd.Path),
		zap.Strings("args", cmd.Args[1:]),
		zap.Int("gateway_port", opts.GatewayPort),
		zap.Int("browser_port", opts.BrowserPort))

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Args[0], err)
	}

	return cmd, nil
}

// overrideEnv returns env with the given KEY=value entries replacing any
// existing entries for the same keys.
func overrideEnv(env []string, overrides ...string) []string {
	drop := make(map[string]bool, len(overrides))
	for _, override := range overrides {
		if idx := strings.Index(override, "="); idx > 0 {
			drop[override[:idx]] = true
		}
	}

	out := make([]string, 0, len(env)+len(overrides))
	for _, entry := range env {
		if idx := strings.Index(entry, "="); idx > 0 && drop[entry[:idx]] {
			continue
		}
		out = append(out, entry)
	}
	return append(out, overrides...)
}

// gatewayConfig is the minimal runtime configuration the entrypoint seeds so
// the gateway starts in local mode bound to loopback.
type gatewayConfig struct {
	Gateway struct {
		Mode string `yaml:"mode"`
		Bind string `yaml:"bind"`
	} `yaml:"gateway"`
}

// GatewayConfigPath returns the path of the runtime's gateway configuration
// file (~/.clawdbot/clawdbot.yaml).
func GatewayConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".clawdbot", "clawdbot.yaml"), nil
}

// EnsureGatewayConfig writes the gateway configuration if it does not exist
// yet. An existing file is left untouched so user customizations survive
// container restarts. Returns whether the file was created.
func EnsureGatewayConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		zlog.Debug("gateway config already present, keeping it", zap.String("path", path))
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat gateway config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	var config gatewayConfig
	config.Gateway.Mode = "local"
	config.Gateway.Bind = "loopback"

	data, err := yaml.Marshal(&config)
	if err != nil {
		return false, fmt.Errorf("failed to serialize gateway config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write gateway config: %w", err)
	}

	return true, nil
}
