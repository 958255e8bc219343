package clawbox

import (
	"fmt"
	"io"
	"net"
	"strconv"

	"charm.land/lipgloss/v2"
)

var (
	reportPassStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	reportFailStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	reportSkipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	reportDimStyle  = lipgloss.NewStyle().Faint(true)
)

// WriteSelfTestReport renders the self-test outcome for the container log.
// Each vantage point gets one line tagged with the exact target probed, so a
// failing line tells the operator which leg of the path is broken.
func WriteSelfTestReport(w io.Writer, internalPort, externalPort int, result SelfTestResult) {
	fmt.Fprintln(w, "Self-test results:")

	writeVantageLine(w, "loopback direct", "127.0.0.1", internalPort, result.Internal)
	writeVantageLine(w, "through proxy", "127.0.0.1", externalPort, result.Proxy)

	if result.Container != nil {
		writeVantageLine(w, "container address", result.ContainerIP, externalPort, *result.Container)
	} else {
		fmt.Fprintf(w, "  %-18s %s\n", "container address",
			reportSkipStyle.Render("skipped (no externally visible address)"))
	}

	fmt.Fprintln(w)
	if result.Passed() {
		fmt.Fprintln(w, reportPassStyle.Render("SELF-TEST PASSED"))
	} else {
		fmt.Fprintln(w, reportFailStyle.Render("SELF-TEST FAILED"))
	}
}

// WriteDoctorReport renders the environment diagnosis with a single
// recommended next step at the end.
func WriteDoctorReport(w io.Writer, report DoctorReport) {
	fmt.Fprintln(w, "Environment checks:")
	for _, check := range report.Checks {
		mark := reportFailStyle.Render("[x]")
		if check.OK {
			mark = reportPassStyle.Render("[ok]")
		}
		fmt.Fprintf(w, "  %s %-20s %s\n", mark, check.Name, reportDimStyle.Render(check.Detail))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Next step: %s\n", report.NextStep())
}

func writeVantageLine(w io.Writer, label, host string, port int, result ProbeResult) {
	target := net.JoinHostPort(host, strconv.Itoa(port))
	status := result.String()
	if result.Reachable {
		status = reportPassStyle.Render(status)
	} else {
		status = reportFailStyle.Render(status)
	}
	fmt.Fprintf(w, "  %-18s %s %s\n", label, reportDimStyle.Render(target), status)
}
