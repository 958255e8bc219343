package clawbox

import (
	"fmt"
	"os"
	"strconv"
)

// The gateway binds its listeners to the loopback interface only, on fixed
// ports that are not configurable from outside the container. External
// reachability is provided exclusively by the proxies in front of them.
const (
	InternalGatewayPort = 18790
	InternalBrowserPort = 18792

	DefaultGatewayExternalPort = 18789
	DefaultBrowserExternalPort = 18791
)

// Environment variables understood by the container entrypoint.
const (
	GatewayExternalPortEnv = "GATEWAY_EXTERNAL_PORT"
	BrowserExternalPortEnv = "BROWSER_EXTERNAL_PORT"
	GatewayAuthTokenEnv    = "GATEWAY_AUTH_TOKEN"
)

// PortMapping pairs an externally reachable port with the loopback-only port
// it forwards to. Channel identifies which runtime listener is behind it
// ("gateway" or "browser").
type PortMapping struct {
	Channel  string
	External int
	Internal int
}

func (m PortMapping) String() string {
	return fmt.Sprintf("%s %d->127.0.0.1:%d", m.Channel, m.External, m.Internal)
}

// Validate checks the mapping is usable. The external port must differ from
// the internal one, otherwise the proxy would forward connections to itself.
func (m PortMapping) Validate() error {
	if m.External < 1 || m.External > 65535 {
		return fmt.Errorf("%s: external port %d out of range", m.Channel, m.External)
	}
	if m.Internal < 1 || m.Internal > 65535 {
		return fmt.Errorf("%s: internal port %d out of range", m.Channel, m.Internal)
	}
	if m.External == m.Internal {
		return fmt.Errorf("%s: external port %d equals internal port, proxy would connect to itself", m.Channel, m.External)
	}
	return nil
}

// MappingsFromEnv builds the gateway and browser port mappings from the
// process environment, falling back to the defaults when the corresponding
// variable is unset or empty.
func MappingsFromEnv() (gateway, browser PortMapping, err error) {
	gatewayExternal, err := envPort(GatewayExternalPortEnv, DefaultGatewayExternalPort)
	if err != nil {
		return gateway, browser, err
	}
	browserExternal, err := envPort(BrowserExternalPortEnv, DefaultBrowserExternalPort)
	if err != nil {
		return gateway, browser, err
	}

	gateway = PortMapping{Channel: "gateway", External: gatewayExternal, Internal: InternalGatewayPort}
	browser = PortMapping{Channel: "browser", External: browserExternal, Internal: InternalBrowserPort}

	if err := gateway.Validate(); err != nil {
		return gateway, browser, err
	}
	if err := browser.Validate(); err != nil {
		return gateway, browser, err
	}
	if gateway.External == browser.External {
		return gateway, browser, fmt.Errorf("gateway and browser external ports are both %d", gateway.External)
	}
	// An external port must also stay clear of the other channel's loopback
	// port, otherwise the proxy binds a port the runtime needs for itself and
	// the collision only surfaces when the runtime fails to listen.
	if gateway.External == browser.Internal {
		return gateway, browser, fmt.Errorf("gateway external port %d is reserved for the loopback %s listener", gateway.External, browser.Channel)
	}
	if browser.External == gateway.Internal {
		return gateway, browser, fmt.Errorf("browser external port %d is reserved for the loopback %s listener", browser.External, gateway.Channel)
	}

	return gateway, browser, nil
}

func envPort(name string, defaultValue int) (int, error) {
	value := os.Getenv(name)
	if value == "" {
		return defaultValue, nil
	}
	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return port, nil
}
