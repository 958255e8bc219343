package clawbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorNextStep(t *testing.T) {
	tests := []struct {
		name   string
		report DoctorReport
		want   string
	}{
		{
			name:   "no docker binary",
			report: DoctorReport{},
			want:   "Install Docker",
		},
		{
			name:   "daemon not running",
			report: DoctorReport{DockerInstalled: true},
			want:   "Start the Docker daemon",
		},
		{
			name:   "not installed",
			report: DoctorReport{DockerInstalled: true, DockerRunning: true},
			want:   "install and start the runtime",
		},
		{
			name:   "installed but stopped",
			report: DoctorReport{DockerInstalled: true, DockerRunning: true, Installed: true},
			want:   "start the runtime",
		},
		{
			name:   "running but unconfigured",
			report: DoctorReport{DockerInstalled: true, DockerRunning: true, Installed: true, Running: true},
			want:   "clawbox setup",
		},
		{
			name:   "healthy",
			report: DoctorReport{DockerInstalled: true, DockerRunning: true, Installed: true, Running: true, Configured: true},
			want:   "Everything looks good",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.report.NextStep(), tt.want)
		})
	}
}

func TestDoctorHealthy(t *testing.T) {
	healthy := DoctorReport{DockerInstalled: true, DockerRunning: true, Installed: true, Running: true}
	assert.True(t, healthy.Healthy())

	// Configuration is advisory, not part of health
	assert.True(t, healthy.Healthy())

	stopped := healthy
	stopped.Running = false
	assert.False(t, stopped.Healthy())
}

func TestProviderConfigured(t *testing.T) {
	tempDir := t.TempDir()
	config := &Config{RuntimeHome: tempDir}

	assert.False(t, providerConfigured(config), "no settings file yet")

	require.NoError(t, UpdateSettings(SettingsPath(config), map[string]any{"provider": "anthropic"}))
	assert.True(t, providerConfigured(config))

	require.NoError(t, UpdateSettings(SettingsPath(config), map[string]any{"provider": ""}))
	assert.False(t, providerConfigured(config), "empty provider does not count")
}
