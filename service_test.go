package clawbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBuildServiceCommand(t *testing.T) {
	t.Setenv(serviceGatewayPortEnv, "9999")
	t.Setenv(serviceBrowserPortEnv, "8888")

	cmd := BuildServiceCommand(context.Background(), ServiceOptions{
		GatewayPort: 18790,
		BrowserPort: 18792,
		ExtraArgs:   []string{"--verbose"},
	})

	assert.Equal(t, []string{"clawdbot", "gateway", "--port", "18790", "--allow-unconfigured", "--verbose"}, cmd.Args)

	// Inherited port values must be replaced, not duplicated
	gatewayEntries := 0
	browserEntries := 0
	for _, entry := range cmd.Env {
		switch entry {
		case serviceGatewayPortEnv + "=18790":
			gatewayEntries++
		case serviceBrowserPortEnv + "=18792":
			browserEntries++
		case serviceGatewayPortEnv + "=9999", serviceBrowserPortEnv + "=8888":
			t.Errorf("stale environment entry leaked into child env: %s", entry)
		}
	}
	assert.Equal(t, 1, gatewayEntries)
	assert.Equal(t, 1, browserEntries)
}

func TestBuildServiceCommand_CustomBinary(t *testing.T) {
	cmd := BuildServiceCommand(context.Background(), ServiceOptions{
		Binary:      "/usr/local/bin/clawdbot-beta",
		GatewayPort: 18790,
		BrowserPort: 18792,
	})
	assert.Equal(t, "/usr/local/bin/clawdbot-beta", cmd.Args[0])
}

func TestEnsureGatewayConfig_CreatesWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".clawdbot", "clawdbot.yaml")

	created, err := EnsureGatewayConfig(path)
	require.NoError(t, err)
	assert.True(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var config gatewayConfig
	require.NoError(t, yaml.Unmarshal(data, &config))
	assert.Equal(t, "local", config.Gateway.Mode)
	assert.Equal(t, "loopback", config.Gateway.Bind)
}

func TestEnsureGatewayConfig_KeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clawdbot.yaml")

	custom := []byte("gateway:\n  mode: remote\n  bind: all\ncustom_key: kept\n")
	require.NoError(t, os.WriteFile(path, custom, 0644))

	created, err := EnsureGatewayConfig(path)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, custom, data, "existing config must not be rewritten")
}

func TestOverrideEnv(t *testing.T) {
	env := []string{"A=1", "B=2", "C=3"}
	out := overrideEnv(env, "B=override", "D=4")

	assert.Contains(t, out, "A=1")
	assert.Contains(t, out, "C=3")
	assert.Contains(t, out, "B=override")
	assert.Contains(t, out, "D=4")
	assert.NotContains(t, out, "B=2")
}
