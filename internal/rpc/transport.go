package rpc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridiankv/meridian/internal/infra/idgen"
	"github.com/meridiankv/meridian/internal/telemetry/logger"
)

// TransportConfig tunes a Transport's connection handling.
type TransportConfig struct {
	// Addr is the listen address for this plane.
	Addr string
	// IdleTimeout bounds how long a connection may sit between frames.
	IdleTimeout time.Duration
	// ReadTimeout bounds reading a single frame once its first byte has
	// arrived (slowloris protection).
	ReadTimeout time.Duration
	// WriteTimeout bounds writing a response frame.
	WriteTimeout time.Duration
}

// DefaultTransportConfig returns sane defaults for a plane listener.
func DefaultTransportConfig(addr string) TransportConfig {
	return TransportConfig{
		Addr:         addr,
		IdleTimeout:  5 * time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Transport binds one listening socket to one Channel and serves frames
// from it via a registry. One accept loop spawns one goroutine per
// connection (§4.1); distinct connections run concurrently, one handler
// invocation in flight per connection at a time.
type Transport struct {
	cfg      TransportConfig
	channel  Channel
	registry *Registry

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewTransport creates a Transport bound to channel, dispatching frames
// through registry. Start must be called to begin accepting connections.
func NewTransport(cfg TransportConfig, channel Channel, registry *Registry) *Transport {
	return &Transport{cfg: cfg, channel: channel, registry: registry}
}

// Start binds the listening socket and begins accepting connections in
// the background. A bind failure is fatal for this plane and is returned
// directly, not logged and swallowed.
func (t *Transport) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", t.cfg.Addr)
	if err != nil {
		return err
	}

	t.ln = ln
	t.running.Store(true)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.acceptLoop(ctx)
	}()

	return nil
}

// Shutdown closes the listener, stops accepting new connections, and
// waits for in-flight connection goroutines to drain or ctx to expire.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.running.Store(false)

	var closeErr error
	if t.ln != nil {
		closeErr = t.ln.Close()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) acceptLoop(ctx context.Context) {
	log := logger.FromContext(ctx).With("channel", t.channel.String(), "addr", t.cfg.Addr)
	log.Info("rpc transport listening")

	for {
		conn, err := t.ln.Accept()
		if err != nil {
			if !t.running.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Warn("accept error", "error", err)
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.serveConn(ctx, conn)
		}()
	}
}

func (t *Transport) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	log := logger.FromContext(ctx).With("channel", t.channel.String(), "remote", conn.RemoteAddr())
	br := bufio.NewReader(conn)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(t.cfg.IdleTimeout)); err != nil {
			return
		}
		if _, err := br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Debug("connection idle timeout")
				return
			}
			log.Debug("connection read error", "error", err)
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout)); err != nil {
			return
		}

		req, err := ReadRequest(br)
		if err != nil {
			log.Debug("frame decode error", "error", err)
			return
		}

		reqCtx := logger.WithRequestID(ctx, idgen.New())
		payload, status := t.registry.Dispatch(req)

		if err := conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout)); err != nil {
			return
		}
		resp := Response{Channel: req.Channel, FuncID: req.FuncID, Payload: payload, Status: status}
		if err := WriteResponse(conn, resp); err != nil {
			logger.L(reqCtx).Debug("frame write error", "error", err)
			return
		}
	}
}
