package clawbox

import (
	"os/exec"
	"strconv"
)

// DoctorCheck is one environment check with its outcome.
type DoctorCheck struct {
	Name   string
	OK     bool
	Detail string
}

// DoctorReport is the full environment diagnosis: the individual checks plus
// the raw facts they established, kept so the next-step recommendation can
// reason over them.
type DoctorReport struct {
	Checks []DoctorCheck

	DockerInstalled bool
	DockerRunning   bool
	Installed       bool
	Running         bool
	Configured      bool
}

// Healthy reports whether the runtime is fully operational.
func (r DoctorReport) Healthy() bool {
	return r.DockerInstalled && r.DockerRunning && r.Installed && r.Running
}

// NextStep recommends the single command that unblocks the user, based on
// the first failing layer of the stack.
func (r DoctorReport) NextStep() string {
	switch {
	case !r.DockerInstalled:
		return "Install Docker Desktop or Docker Engine, then re-run 'clawbox doctor'"
	case !r.DockerRunning:
		return "Start the Docker daemon, then re-run 'clawbox doctor'"
	case !r.Installed:
		return "Run 'clawbox run' to install and start the runtime"
	case !r.Running:
		return "Run 'clawbox run' to start the runtime"
	case !r.Configured:
		return "Run 'clawbox setup' to configure a model provider"
	default:
		return "Everything looks good. Open http://localhost:" + gatewayURLPort() + "/canvas/ to get started"
	}
}

// RunDoctor inspects the host environment layer by layer: docker binary,
// docker daemon, runtime installation, runtime container, provider
// configuration. Later layers are only meaningful when earlier ones pass.
func RunDoctor(config *Config) DoctorReport {
	report := DoctorReport{}

	report.DockerInstalled = dockerInstalled()
	report.Checks = append(report.Checks, DoctorCheck{
		Name:   "docker installed",
		OK:     report.DockerInstalled,
		Detail: boolDetail(report.DockerInstalled, "docker binary found on PATH", "docker binary not found"),
	})

	if report.DockerInstalled {
		report.DockerRunning = dockerDaemonRunning()
		report.Checks = append(report.Checks, DoctorCheck{
			Name:   "docker daemon",
			OK:     report.DockerRunning,
			Detail: boolDetail(report.DockerRunning, "daemon is responding", "daemon not responding (is Docker started?)"),
		})
	}

	report.Installed = RuntimeInstalled(config)
	report.Checks = append(report.Checks, DoctorCheck{
		Name:   "runtime installed",
		OK:     report.Installed,
		Detail: boolDetail(report.Installed, "compose stack present in "+config.RuntimeHome, "compose stack not installed"),
	})

	if report.DockerRunning {
		running, err := RuntimeRunning()
		if err != nil {
			report.Checks = append(report.Checks, DoctorCheck{
				Name:   "runtime container",
				Detail: "check failed: " + err.Error(),
			})
		} else {
			report.Running = running
			report.Checks = append(report.Checks, DoctorCheck{
				Name:   "runtime container",
				OK:     running,
				Detail: boolDetail(running, RuntimeContainerName+" is running", RuntimeContainerName+" is not running"),
			})
		}
	}

	report.Configured = providerConfigured(config)
	report.Checks = append(report.Checks, DoctorCheck{
		Name:   "provider configured",
		OK:     report.Configured,
		Detail: boolDetail(report.Configured, "settings.json has a provider", "no provider configured yet"),
	})

	return report
}

func dockerInstalled() bool {
	_, err := exec.LookPath("docker")
	return err == nil
}

func dockerDaemonRunning() bool {
	// `docker info` talks to the daemon; the exit code is all we need.
	return exec.Command("docker", "info").Run() == nil
}

// providerConfigured reports whether settings.json names a model provider.
func providerConfigured(config *Config) bool {
	settings, err := ReadSettings(SettingsPath(config))
	if err != nil {
		return false
	}
	provider, ok := settings["provider"].(string)
	return ok && provider != ""
}

func boolDetail(ok bool, okDetail, failDetail string) string {
	if ok {
		return okDetail
	}
	return failDetail
}

func gatewayURLPort() string {
	config, err := LoadConfig()
	if err != nil {
		return "18789"
	}
	return strconv.Itoa(config.GatewayExternalPort)
}
