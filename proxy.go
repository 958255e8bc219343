package clawbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const proxyDialTimeout = 10 * time.Second

// Proxy relays raw TCP byte streams between an externally reachable listener
// and a loopback-only internal target. It never inspects the bytes it
// forwards, so authenticated and binary protocols pass through unchanged.
type Proxy struct {
	mapping  PortMapping
	bindHost string
	logger   *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool

	fatal chan error
	wg    sync.WaitGroup
}

// NewProxy creates a proxy for the given mapping. The listener binds all
// interfaces so the port is reachable from outside the container.
func NewProxy(mapping PortMapping) *Proxy {
	return &Proxy{
		mapping:  mapping,
		bindHost: "0.0.0.0",
		logger:   zlog.Named(mapping.Channel),
		conns:    make(map[net.Conn]struct{}),
		fatal:    make(chan error, 1),
	}
}

// Start binds the external listener and begins accepting connections. A bind
// failure (typically the port is already in use) is returned immediately and
// is fatal to the caller: a proxy that cannot listen serves no purpose.
// Cancelling ctx closes the listener and all active connections.
func (p *Proxy) Start(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(p.bindHost, strconv.Itoa(p.mapping.External)))
	if err != nil {
		return fmt.Errorf("bind %s external port %d: %w", p.mapping.Channel, p.mapping.External, err)
	}

	p.mu.Lock()
	p.listener = listener
	p.mu.Unlock()

	p.logger.Info("proxy listening",
		zap.String("mapping", p.mapping.String()),
		zap.String("addr", listener.Addr().String()))

	p.wg.Add(1)
	go p.acceptLoop(ctx)

	go func() {
		<-ctx.Done()
		p.closeAll()
	}()

	return nil
}

// Failed delivers the error that killed the accept loop, if any. A proxy
// that stopped because its context was cancelled or Shutdown was called
// never sends on this channel.
func (p *Proxy) Failed() <-chan error {
	return p.fatal
}

// Addr returns the address the external listener is bound to, or nil if the
// proxy has not been started.
func (p *Proxy) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Shutdown closes the listener and all active connections, then waits up to
// grace for the relay goroutines to finish.
func (p *Proxy) Shutdown(grace time.Duration) error {
	p.closeAll()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return fmt.Errorf("%s proxy: connections still draining after %s", p.mapping.Channel, grace)
	}
}

func (p *Proxy) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	if p.listener != nil {
		p.listener.Close()
	}
	for conn := range p.conns {
		conn.Close()
	}
}

func (p *Proxy) acceptLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			// The listener is broken but was not asked to close. The proxy
			// can no longer serve its port, which the supervisor must know.
			p.logger.Error("accept failed, proxy is no longer serving", zap.Error(err))
			p.fatal <- fmt.Errorf("%s proxy accept: %w", p.mapping.Channel, err)
			return
		}

		if !p.track(conn) {
			conn.Close()
			return
		}

		p.wg.Add(1)
		go p.relay(ctx, conn)
	}
}

func (p *Proxy) track(conn net.Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.conns[conn] = struct{}{}
	return true
}

func (p *Proxy) untrack(conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.conns, conn)
}

// relay connects to the internal target and shuttles bytes in both directions
// until either side closes. A dial failure closes the client connection
// immediately so the caller sees a clean connection reset instead of a hang.
func (p *Proxy) relay(ctx context.Context, client net.Conn) {
	defer p.wg.Done()
	defer p.untrack(client)
	defer client.Close()

	target := net.JoinHostPort("127.0.0.1", strconv.Itoa(p.mapping.Internal))
	dialer := net.Dialer{Timeout: proxyDialTimeout}
	upstream, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		p.logger.Debug("internal target unreachable, dropping connection",
			zap.String("target", target),
			zap.Error(err))
		return
	}

	if !p.track(upstream) {
		upstream.Close()
		return
	}
	defer p.untrack(upstream)
	defer upstream.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(upstream, client)
		closeWrite(upstream)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(client, upstream)
		closeWrite(client)
		done <- struct{}{}
	}()

	<-done
	<-done
}

// closeWrite half-closes a TCP connection so the peer sees EOF while its own
// writes can still drain through the other direction.
func closeWrite(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}
}
