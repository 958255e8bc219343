package clawbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	// Paths probed on the gateway. The health endpoint is preferred; older
	// runtime builds without it still answer on the canvas root.
	gatewayHealthPath = "/health"
	gatewayCanvasPath = "/canvas/"

	// DefaultReadyAttempts and DefaultReadyInterval bound the readiness wait
	// to roughly twenty seconds after the runtime starts.
	DefaultReadyAttempts = 10
	DefaultReadyInterval = 2 * time.Second

	probeRequestTimeout = 3 * time.Second
)

// ProbeResult is the outcome of a single HTTP reachability probe. A probe is
// reachable when the target answered with any HTTP response at all: a 401
// from an auth-protected gateway proves the listener is alive just as well
// as a 200 does. Err is set only when no response came back.
type ProbeResult struct {
	Reachable  bool
	StatusCode int
	Err        error
}

func (r ProbeResult) String() string {
	if r.Reachable {
		return fmt.Sprintf("HTTP %d", r.StatusCode)
	}
	if r.Err != nil {
		return fmt.Sprintf("unreachable (%s)", r.Err)
	}
	return "unreachable"
}

// Prober issues short, independent HTTP GET probes against the gateway from
// different vantage points.
type Prober struct {
	client *http.Client
	logger *zap.Logger
}

func NewProber() *Prober {
	return &Prober{
		// Keep-alives are disabled so every probe exercises a fresh TCP
		// connect, which is the thing we are actually testing.
		client: &http.Client{
			Timeout: probeRequestTimeout,
			Transport: &http.Transport{
				DisableKeepAlives: true,
				DialContext: (&net.Dialer{
					Timeout: probeRequestTimeout,
				}).DialContext,
			},
		},
		logger: zlog.Named("probe"),
	}
}

// Probe issues a single GET against http://host:port<path> and reports how
// it went. Probe errors are recorded in the result, never returned.
func (p *Prober) Probe(ctx context.Context, host string, port int, path string) ProbeResult {
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe got no response", zap.String("url", url), zap.Error(err))
		return ProbeResult{Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	p.logger.Debug("probe answered", zap.String("url", url), zap.Int("status", resp.StatusCode))
	return ProbeResult{Reachable: true, StatusCode: resp.StatusCode}
}

// WaitReady polls the gateway's loopback listener until it answers or the
// attempt budget runs out. The interval between attempts is fixed: the
// gateway either comes up within a few seconds or not at all, so backoff
// growth would only delay the verdict. Returns true when the gateway
// answered, false when every attempt failed or ctx was cancelled.
func (p *Prober) WaitReady(ctx context.Context, port int, attempts int, interval time.Duration) bool {
	if attempts < 1 {
		attempts = 1
	}

	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(interval))

	start := time.Now()
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		for _, path := range []string{gatewayHealthPath, gatewayCanvasPath} {
			if result := p.Probe(ctx, "127.0.0.1", port, path); result.Reachable {
				p.logger.Info("gateway is ready",
					zap.Int("port", port),
					zap.Int("attempt", attempt),
					zap.Duration("elapsed", time.Since(start)))
				return nil
			}
		}
		p.logger.Debug("gateway not answering yet",
			zap.Int("port", port),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts))
		return retry.RetryableError(errors.New("gateway not answering"))
	})
	if err != nil {
		p.logger.Warn("gateway did not become ready",
			zap.Int("port", port),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", time.Since(start)))
		return false
	}
	return true
}

// SelfTestResult aggregates reachability checks from the three vantage
// points. Container is nil when no externally visible address could be
// determined, which happens in some container network modes and is not a
// failure by itself.
type SelfTestResult struct {
	Internal ProbeResult
	Proxy    ProbeResult

	ContainerIP string
	Container   *ProbeResult
}

// Passed reports whether the mandatory vantage points both answered. The
// container-address check is advisory: host port publishing is outside the
// container's control, so its failure never fails the self-test.
func (r SelfTestResult) Passed() bool {
	return r.Internal.Reachable && r.Proxy.Reachable
}

// SelfTest verifies the gateway end to end after startup:
//
//   - directly on its loopback listener (is the service up at all?)
//   - through the external proxy port via loopback (is the proxy relaying?)
//   - through the external proxy port via the container's own address, when
//     one can be determined (does the path a remote client takes work?)
func (p *Prober) SelfTest(ctx context.Context, internalPort, externalPort int) SelfTestResult {
	result := SelfTestResult{
		Internal: p.Probe(ctx, "127.0.0.1", internalPort, gatewayCanvasPath),
		Proxy:    p.Probe(ctx, "127.0.0.1", externalPort, gatewayCanvasPath),
	}

	if ip := containerIP(); ip != "" {
		result.ContainerIP = ip
		probe := p.Probe(ctx, ip, externalPort, gatewayCanvasPath)
		result.Container = &probe
	} else {
		p.logger.Debug("no externally visible address found, skipping container vantage")
	}

	return result
}

// containerIP returns the container's first non-loopback IPv4 address, or ""
// when none exists.
func containerIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil || ip.IsLoopback() {
			continue
		}
		return ip.String()
	}
	return ""
}
