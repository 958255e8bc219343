package clawbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// proxyShutdownGrace bounds how long proxies may keep draining connections
// during shutdown.
const proxyShutdownGrace = 5 * time.Second

// SupervisorState tracks where the entrypoint is in its lifecycle. States
// only ever advance; there are no retry loops at this level.
type SupervisorState int

const (
	StateStarting SupervisorState = iota
	StateProxiesUp
	StateServiceStarting
	StateServiceReady
	StateReadyTimeout
	StateSelfTested
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s SupervisorState) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateProxiesUp:
		return "proxies_up"
	case StateServiceStarting:
		return "service_starting"
	case StateServiceReady:
		return "service_ready"
	case StateReadyTimeout:
		return "ready_timeout"
	case StateSelfTested:
		return "self_tested"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SupervisorOptions configures the container entrypoint lifecycle.
type SupervisorOptions struct {
	// GatewayMapping and BrowserMapping are the two proxied channels
	GatewayMapping PortMapping
	BrowserMapping PortMapping

	// ServiceBinary overrides the runtime binary (default: clawdbot)
	ServiceBinary string

	// ExtraArgs are passed through to the runtime command line
	ExtraArgs []string

	// StrictSelfTest aborts the entrypoint when the self-test fails instead
	// of leaving the container up for debugging
	StrictSelfTest bool

	// ReadyAttempts/ReadyInterval bound the readiness wait (defaults: 10 x 2s)
	ReadyAttempts int
	ReadyInterval time.Duration

	// Output receives the self-test report (default: os.Stdout)
	Output io.Writer
}

// Supervisor drives the container entrypoint: start proxies, launch the
// runtime, wait for readiness, self-test, then babysit the runtime process
// until it exits or the context is cancelled.
type Supervisor struct {
	opts    SupervisorOptions
	state   SupervisorState
	proxies []*Proxy
	prober  *Prober
	logger  *zap.Logger

	// launch is swappable in tests
	launch func(ctx context.Context, opts ServiceOptions) (*exec.Cmd, error)
}

func NewSupervisor(opts SupervisorOptions) *Supervisor {
	if opts.ReadyAttempts == 0 {
		opts.ReadyAttempts = DefaultReadyAttempts
	}
	if opts.ReadyInterval == 0 {
		opts.ReadyInterval = DefaultReadyInterval
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Supervisor{
		opts:   opts,
		state:  StateStarting,
		prober: NewProber(),
		logger: zlog.Named("supervisor"),
		launch: LaunchService,
	}
}

// State returns the supervisor's current lifecycle state.
func (s *Supervisor) State() SupervisorState {
	return s.state
}

func (s *Supervisor) setState(state SupervisorState) {
	s.logger.Info("state change",
		zap.Stringer("from", s.state),
		zap.Stringer("to", state))
	s.state = state
}

// Run executes the full entrypoint lifecycle and blocks until the runtime
// exits or ctx is cancelled. The returned exit code follows the runtime's
// own exit code when it stops on its own, and is 0 when the shutdown was
// requested through ctx (an operator stopping the container is not an
// error). A non-nil error always pairs with a non-zero code.
func (s *Supervisor) Run(ctx context.Context) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, mapping := range []PortMapping{s.opts.GatewayMapping, s.opts.BrowserMapping} {
		if err := mapping.Validate(); err != nil {
			return 1, fmt.Errorf("invalid port mapping: %w", err)
		}
	}

	if os.Getenv(GatewayAuthTokenEnv) != "" {
		s.logger.Info("gateway auth token is set, gateway will require authentication")
	} else {
		s.logger.Warn("no gateway auth token set, gateway accepts unauthenticated connections")
	}

	// Proxies come up before the runtime so external ports are never
	// observed open-then-closed during startup. A bind failure is fatal.
	for _, mapping := range []PortMapping{s.opts.GatewayMapping, s.opts.BrowserMapping} {
		proxy := NewProxy(mapping)
		if err := proxy.Start(ctx); err != nil {
			s.shutdownProxies()
			return 1, err
		}
		s.proxies = append(s.proxies, proxy)
	}
	s.setState(StateProxiesUp)

	service, err := s.launch(ctx, ServiceOptions{
		Binary:      s.opts.ServiceBinary,
		GatewayPort: s.opts.GatewayMapping.Internal,
		BrowserPort: s.opts.BrowserMapping.Internal,
		ExtraArgs:   s.opts.ExtraArgs,
	})
	if err != nil {
		s.shutdownProxies()
		return 1, fmt.Errorf("failed to launch backing service: %w", err)
	}
	s.setState(StateServiceStarting)

	serviceDone := make(chan error, 1)
	go func() {
		serviceDone <- service.Wait()
	}()

	if s.prober.WaitReady(ctx, s.opts.GatewayMapping.Internal, s.opts.ReadyAttempts, s.opts.ReadyInterval) {
		s.setState(StateServiceReady)
	} else {
		// Not fatal: the runtime may still be initializing something slow.
		// The self-test below will show the operator what is reachable.
		s.setState(StateReadyTimeout)
	}

	result := s.prober.SelfTest(ctx, s.opts.GatewayMapping.Internal, s.opts.GatewayMapping.External)
	WriteSelfTestReport(s.opts.Output, s.opts.GatewayMapping.Internal, s.opts.GatewayMapping.External, result)
	s.setState(StateSelfTested)

	if !result.Passed() && s.opts.StrictSelfTest {
		s.setState(StateShuttingDown)
		cancel()
		<-serviceDone
		s.shutdownProxies()
		s.setState(StateStopped)
		return 1, fmt.Errorf("self-test failed (internal: %s, proxy: %s)", result.Internal, result.Proxy)
	}

	s.setState(StateRunning)

	// A proxy whose accept loop dies leaves its external port unreachable
	// while the container still looks healthy. Treat it like a crash.
	proxyFailed := make(chan error, len(s.proxies))
	for _, proxy := range s.proxies {
		go func(proxy *Proxy) {
			select {
			case err := <-proxy.Failed():
				proxyFailed <- err
			case <-ctx.Done():
			}
		}(proxy)
	}

	select {
	case <-ctx.Done():
		// Operator-requested shutdown. Context cancellation asks the runtime
		// to terminate (SIGTERM first, then kill after the wait delay).
		s.setState(StateShuttingDown)
		cancel()
		<-serviceDone
		s.shutdownProxies()
		s.setState(StateStopped)
		s.logger.Info("shutdown complete")
		return 0, nil

	case err := <-proxyFailed:
		s.setState(StateShuttingDown)
		cancel()
		<-serviceDone
		s.shutdownProxies()
		s.setState(StateStopped)
		return 1, fmt.Errorf("proxy failed while running: %w", err)

	case waitErr := <-serviceDone:
		// The runtime stopped on its own. Its exit code is the container's
		// exit code, so orchestrators see the real failure.
		s.setState(StateShuttingDown)
		s.shutdownProxies()
		s.setState(StateStopped)

		code := service.ProcessState.ExitCode()
		if code < 0 {
			code = 1
		}
		if waitErr != nil && code != 0 {
			s.logger.Warn("backing service exited with failure",
				zap.Int("exit_code", code),
				zap.Error(waitErr))
			return code, nil
		}
		s.logger.Info("backing service exited", zap.Int("exit_code", code))
		return code, nil
	}
}

func (s *Supervisor) shutdownProxies() {
	for _, proxy := range s.proxies {
		if err := proxy.Shutdown(proxyShutdownGrace); err != nil {
			s.logger.Warn("proxy shutdown incomplete", zap.Error(err))
		}
	}
	s.proxies = nil
}
