package clawbox

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// RuntimeContainerName is the container name the compose stack assigns to
// the runtime. Status checks match on it.
const RuntimeContainerName = "simplifia-clawdbot"

// composeFileName and envFileName are the files clawbox manages inside the
// runtime home directory.
const (
	composeFileName = "docker-compose.yml"
	envFileName     = ".env"
)

// InstallRuntime writes the compose stack into the runtime home directory.
// The compose file is always refreshed so updates pick up new definitions;
// the .env file is only seeded when absent because it holds user secrets.
func InstallRuntime(config *Config) error {
	if err := os.MkdirAll(config.RuntimeHome, 0755); err != nil {
		return fmt.Errorf("failed to create runtime directory: %w", err)
	}

	composePath := filepath.Join(config.RuntimeHome, composeFileName)
	if err := os.WriteFile(composePath, []byte(ComposeFile), 0644); err != nil {
		return fmt.Errorf("failed to write compose file: %w", err)
	}
	zlog.Debug("wrote compose file", zap.String("path", composePath))

	envPath := filepath.Join(config.RuntimeHome, envFileName)
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		env := EnvFileTemplate
		env = strings.ReplaceAll(env, "{{GATEWAY_PORT}}", strconv.Itoa(config.GatewayExternalPort))
		env = strings.ReplaceAll(env, "{{BROWSER_PORT}}", strconv.Itoa(config.BrowserExternalPort))
		if err := os.WriteFile(envPath, []byte(env), 0600); err != nil {
			return fmt.Errorf("failed to write env file: %w", err)
		}
		zlog.Info("seeded runtime env file", zap.String("path", envPath))
	} else if err != nil {
		return fmt.Errorf("failed to stat env file: %w", err)
	}

	return nil
}

// RuntimeInstalled reports whether the compose stack has been written to the
// runtime home directory.
func RuntimeInstalled(config *Config) bool {
	_, err := os.Stat(filepath.Join(config.RuntimeHome, composeFileName))
	return err == nil
}

// StartRuntime brings the compose stack up in the background.
func StartRuntime(config *Config) error {
	return runCompose(config, "up", "-d")
}

// StopRuntime stops the compose stack, keeping containers and volumes.
func StopRuntime(config *Config) error {
	return runCompose(config, "stop")
}

// UpdateRuntime pulls the latest runtime image, refreshes the stack files
// and restarts the stack on the new image.
func UpdateRuntime(config *Config) error {
	if err := InstallRuntime(config); err != nil {
		return err
	}
	if err := runCompose(config, "pull"); err != nil {
		return err
	}
	return runCompose(config, "up", "-d")
}

// UninstallRuntime tears the stack down. With purge, the data volume and the
// managed stack files are removed as well; the env file always survives so
// tokens are not lost by accident.
func UninstallRuntime(config *Config, purge bool) error {
	args := []string{"down"}
	if purge {
		args = append(args, "--volumes")
	}
	if err := runCompose(config, args...); err != nil {
		return err
	}

	if purge {
		composePath := filepath.Join(config.RuntimeHome, composeFileName)
		if err := os.Remove(composePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove compose file: %w", err)
		}
	}
	return nil
}

// RuntimeLogs streams the runtime's logs to stdout/stderr. With follow, it
// blocks until interrupted.
func RuntimeLogs(config *Config, tail int, follow bool) error {
	args := []string{"logs", "--tail", strconv.Itoa(tail)}
	if follow {
		args = append(args, "-f")
	}
	return runComposeStreaming(config, args...)
}

// RuntimeContainer mirrors the fields of `docker ps --format '{{json .}}'`
// that status checks care about.
type RuntimeContainer struct {
	ID     string `json:"ID"`
	Names  string `json:"Names"`
	State  string `json:"State"`
	Status string `json:"Status"`
	Image  string `json:"Image"`
}

// FindRuntimeContainer looks up the runtime container, running or not.
// Returns nil when it does not exist.
func FindRuntimeContainer() (*RuntimeContainer, error) {
	cmd := exec.Command("docker", "ps", "-a",
		"--filter", fmt.Sprintf("name=^%s$", RuntimeContainerName),
		"--format", "{{json .}}")

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("docker ps failed: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		var container RuntimeContainer
		if err := json.Unmarshal([]byte(line), &container); err != nil {
			zlog.Debug("failed to parse docker ps line", zap.String("line", line), zap.Error(err))
			continue
		}
		if container.Names == RuntimeContainerName {
			return &container, nil
		}
	}
	return nil, nil
}

// RuntimeRunning reports whether the runtime container is currently running.
func RuntimeRunning() (bool, error) {
	container, err := FindRuntimeContainer()
	if err != nil {
		return false, err
	}
	return container != nil && container.State == "running", nil
}

// runCompose runs a docker compose command in the runtime home directory,
// capturing output so failures carry the compose error text.
func runCompose(config *Config, args ...string) error {
	cmd := composeCommand(config, args...)

	zlog.Debug("running compose command",
		zap.String("dir", config.RuntimeHome),
		zap.Strings("args", cmd.Args))

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker compose %s failed: %w\n%s",
			strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return nil
}

// runComposeStreaming runs a docker compose command wired to the caller's
// terminal, for long-lived output like logs.
func runComposeStreaming(config *Config, args ...string) error {
	cmd := composeCommand(config, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// composeCommand builds a `docker compose` invocation rooted in the runtime
// home, falling back to the legacy docker-compose binary when the plugin
// form is unavailable.
func composeCommand(config *Config, args ...string) *exec.Cmd {
	if _, err := exec.LookPath("docker"); err == nil {
		full := append([]string{"compose"}, args...)
		cmd := exec.Command("docker", full...)
		cmd.Dir = config.RuntimeHome
		return cmd
	}
	cmd := exec.Command("docker-compose", args...)
	cmd.Dir = config.RuntimeHome
	return cmd
}
