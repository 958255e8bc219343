package clawbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startEchoServer runs a TCP server on loopback that echoes everything it
// reads, returning its port and a stop function.
func startEchoServer(t *testing.T) (int, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()

	return listener.Addr().(*net.TCPAddr).Port, func() { listener.Close() }
}

// startTestProxy starts a proxy bound to an ephemeral loopback port in front
// of the given internal port.
func startTestProxy(t *testing.T, ctx context.Context, internalPort int) *Proxy {
	t.Helper()

	proxy := NewProxy(PortMapping{Channel: "gateway", External: 0, Internal: internalPort})
	proxy.bindHost = "127.0.0.1"
	require.NoError(t, proxy.Start(ctx))
	return proxy
}

func TestProxyRoundTrip(t *testing.T) {
	echoPort, stopEcho := startEchoServer(t)
	defer stopEcho()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proxy := startTestProxy(t, ctx, echoPort)
	defer proxy.Shutdown(time.Second)

	conn, err := net.Dial("tcp", proxy.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// Binary payload with NUL and high bytes: the proxy must not mangle it
	payload := []byte("hello\x00\xff\xfe over the proxy")
	_, err = conn.Write(payload)
	require.NoError(t, err)

	received := make([]byte, len(payload))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = io.ReadFull(conn, received)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(payload, received), "payload altered in transit")
}

func TestProxyConcurrentConnections(t *testing.T) {
	echoPort, stopEcho := startEchoServer(t)
	defer stopEcho()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proxy := startTestProxy(t, ctx, echoPort)
	defer proxy.Shutdown(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			conn, err := net.Dial("tcp", proxy.Addr().String())
			if err != nil {
				t.Errorf("conn %d: dial failed: %v", i, err)
				return
			}
			defer conn.Close()

			payload := []byte(fmt.Sprintf("connection %d payload", i))
			if _, err := conn.Write(payload); err != nil {
				t.Errorf("conn %d: write failed: %v", i, err)
				return
			}

			received := make([]byte, len(payload))
			conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, err := io.ReadFull(conn, received); err != nil {
				t.Errorf("conn %d: read failed: %v", i, err)
				return
			}
			if !bytes.Equal(payload, received) {
				t.Errorf("conn %d: got %q, want %q", i, received, payload)
			}
		}(i)
	}
	wg.Wait()
}

func TestProxyTargetDown(t *testing.T) {
	// Reserve a port, then close it so nothing listens there
	reserved, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadPort := reserved.Addr().(*net.TCPAddr).Port
	reserved.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proxy := startTestProxy(t, ctx, deadPort)
	defer proxy.Shutdown(time.Second)

	conn, err := net.Dial("tcp", proxy.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// The proxy must close the connection promptly instead of hanging
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err, "expected EOF or reset when internal target is down")
}

func TestProxyBindFailure(t *testing.T) {
	occupier, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupier.Close()
	busyPort := occupier.Addr().(*net.TCPAddr).Port

	proxy := NewProxy(PortMapping{Channel: "gateway", External: busyPort, Internal: busyPort + 1})
	proxy.bindHost = "127.0.0.1"

	err = proxy.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind gateway external port")
}

func TestProxyShutdownClosesListener(t *testing.T) {
	echoPort, stopEcho := startEchoServer(t)
	defer stopEcho()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proxy := startTestProxy(t, ctx, echoPort)
	addr := proxy.Addr().String()

	require.NoError(t, proxy.Shutdown(time.Second))

	_, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	assert.Error(t, err, "listener should be closed after shutdown")
}

// failingListener returns the same error from every Accept call, the way a
// broken socket would (file descriptor exhaustion, for example).
type failingListener struct {
	err error
}

func (l failingListener) Accept() (net.Conn, error) { return nil, l.err }
func (l failingListener) Close() error              { return nil }
func (l failingListener) Addr() net.Addr            { return &net.TCPAddr{IP: net.IPv4zero} }

func TestProxyFailedReportsAcceptError(t *testing.T) {
	proxy := NewProxy(PortMapping{Channel: "gateway", External: 18789, Internal: 18790})
	proxy.listener = failingListener{err: errors.New("too many open files")}

	proxy.wg.Add(1)
	go proxy.acceptLoop(context.Background())

	select {
	case err := <-proxy.Failed():
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gateway proxy accept")
		assert.Contains(t, err.Error(), "too many open files")
	case <-time.After(2 * time.Second):
		t.Fatal("accept failure was never reported")
	}
}

func TestProxyFailedStaysSilentOnShutdown(t *testing.T) {
	echoPort, stopEcho := startEchoServer(t)
	defer stopEcho()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proxy := startTestProxy(t, ctx, echoPort)
	require.NoError(t, proxy.Shutdown(time.Second))

	select {
	case err := <-proxy.Failed():
		t.Fatalf("shutdown must not look like a failure, got: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestProxyContextCancelClosesListener(t *testing.T) {
	echoPort, stopEcho := startEchoServer(t)
	defer stopEcho()

	ctx, cancel := context.WithCancel(context.Background())
	proxy := startTestProxy(t, ctx, echoPort)
	addr := proxy.Addr().String()

	cancel()

	// Cancellation propagates asynchronously; give it a moment
	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			return true
		}
		conn.Close()
		return false
	}, 2*time.Second, 50*time.Millisecond, "listener should close after context cancellation")
}
