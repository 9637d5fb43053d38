package rpc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Client is a single-connection RPC client. Call is safe for concurrent
// use; concurrent calls serialize over the one connection, matching
// §4.2's "one handler invocation per connection at a time" on the server
// side.
type Client struct {
	mu   sync.Mutex
	addr string
	conn net.Conn
	br   *bufio.Reader
}

// NewClient creates a Client. The connection is established lazily on
// the first Call.
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// Call sends (channel, funcID, payload) and blocks for a response or
// until timeout elapses. On transport error or timeout the call fails
// without retrying; the caller decides whether to retry (§4.2).
func (c *Client) Call(ctx context.Context, channel Channel, funcID uint32, payload []byte, timeout time.Duration) (Status, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		if err := c.dialLocked(); err != nil {
			return 0, nil, fmt.Errorf("rpc: dial %s: %w", c.addr, err)
		}
	}

	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return 0, nil, err
	}

	req := Request{Channel: channel, FuncID: funcID, Payload: payload}
	if err := WriteRequest(c.conn, req); err != nil {
		c.closeLocked()
		return 0, nil, fmt.Errorf("rpc: write request: %w", err)
	}

	resp, err := ReadResponse(c.br)
	if err != nil {
		c.closeLocked()
		return 0, nil, fmt.Errorf("rpc: read response: %w", err)
	}

	return resp.Status, resp.Payload, nil
}

// Close closes the underlying connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) dialLocked() error {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return err
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}
	c.conn = conn
	c.br = bufio.NewReader(conn)
	return nil
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.br = nil
	return err
}
