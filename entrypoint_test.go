package clawbox

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freePort reserves and releases an ephemeral port. There is a small reuse
// window, acceptable in tests.
func freePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// testSupervisor builds a supervisor whose runtime launch is replaced by a
// shell command, with fast readiness settings and output captured in buf.
func testSupervisor(t *testing.T, script string, strict bool, buf *bytes.Buffer) *Supervisor {
	t.Helper()

	supervisor := NewSupervisor(SupervisorOptions{
		GatewayMapping: PortMapping{Channel: "gateway", External: freePort(t), Internal: freePort(t)},
		BrowserMapping: PortMapping{Channel: "browser", External: freePort(t), Internal: freePort(t)},
		StrictSelfTest: strict,
		ReadyAttempts:  1,
		ReadyInterval:  10 * time.Millisecond,
		Output:         buf,
	})
	supervisor.launch = func(ctx context.Context, opts ServiceOptions) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, "sh", "-c", script)
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		return cmd, nil
	}
	return supervisor
}

func TestSupervisorPropagatesServiceExitCode(t *testing.T) {
	var buf bytes.Buffer
	supervisor := testSupervisor(t, "exit 7", false, &buf)

	code, err := supervisor.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, code)
	assert.Equal(t, StateStopped, supervisor.State())

	// The self-test ran and reported, even though nothing was listening
	assert.Contains(t, buf.String(), "SELF-TEST FAILED")
}

func TestSupervisorCleanServiceExit(t *testing.T) {
	var buf bytes.Buffer
	supervisor := testSupervisor(t, "exit 0", false, &buf)

	code, err := supervisor.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestSupervisorShutdownOnContextCancel(t *testing.T) {
	var buf bytes.Buffer
	supervisor := testSupervisor(t, "sleep 30", false, &buf)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	code, err := supervisor.Run(ctx)

	// Operator-requested shutdown is a clean exit regardless of how the
	// runtime process died
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, StateStopped, supervisor.State())
	assert.Less(t, time.Since(start), 15*time.Second, "shutdown should not wait for the sleep to finish")
}

func TestSupervisorStrictSelfTestFailure(t *testing.T) {
	var buf bytes.Buffer
	supervisor := testSupervisor(t, "sleep 30", true, &buf)

	code, err := supervisor.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-test failed")
	assert.Equal(t, 1, code)
	assert.Equal(t, StateStopped, supervisor.State())
}

func TestSupervisorBindFailureIsFatal(t *testing.T) {
	occupier, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupier.Close()
	busyPort := occupier.Addr().(*net.TCPAddr).Port

	var buf bytes.Buffer
	supervisor := testSupervisor(t, "sleep 30", false, &buf)
	supervisor.opts.GatewayMapping.External = busyPort

	code, err := supervisor.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, code)
}

func TestSupervisorProxyFailureIsFatal(t *testing.T) {
	var buf bytes.Buffer
	supervisor := testSupervisor(t, "sleep 30", false, &buf)

	// Break the gateway proxy's accept loop right after launch. The buffered
	// failure is picked up once the supervisor reaches its running state.
	inner := supervisor.launch
	supervisor.launch = func(ctx context.Context, opts ServiceOptions) (*exec.Cmd, error) {
		cmd, err := inner(ctx, opts)
		if err == nil {
			supervisor.proxies[0].fatal <- errors.New("accept tcp: too many open files")
		}
		return cmd, err
	}

	start := time.Now()
	code, err := supervisor.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy failed while running")
	assert.Equal(t, 1, code)
	assert.Equal(t, StateStopped, supervisor.State())
	assert.Less(t, time.Since(start), 15*time.Second, "a dead proxy must not leave the runtime hanging")
}

func TestSupervisorSelfTestPassesWithBackend(t *testing.T) {
	// Real HTTP backend standing in for the gateway's loopback listener
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()
	backendPort := backend.Listener.Addr().(*net.TCPAddr).Port

	var buf bytes.Buffer
	supervisor := testSupervisor(t, "sleep 30", false, &buf)
	supervisor.opts.GatewayMapping.Internal = backendPort

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(time.Second)
		cancel()
	}()

	code, err := supervisor.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, buf.String(), "SELF-TEST PASSED")
}

func TestSupervisorStateString(t *testing.T) {
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "ready_timeout", StateReadyTimeout.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Contains(t, SupervisorState(99).String(), "unknown")
}
