package ipc

import (
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client talks to a running daemon.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to the daemon socket with a connect timeout.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", socketPath, err)
	}
	return &Client{rpc: jsonrpc.NewClient(conn)}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Ping checks daemon liveness.
func (c *Client) Ping() (PingReply, error) {
	var reply PingReply
	if err := c.rpc.Call(ServiceName+".Ping", &PingArgs{}, &reply); err != nil {
		return PingReply{}, fmt.Errorf("ping daemon: %w", err)
	}
	return reply, nil
}

// Status fetches the daemon snapshot.
func (c *Client) Status() (StatusReply, error) {
	var reply StatusReply
	if err := c.rpc.Call(ServiceName+".Status", &StatusArgs{}, &reply); err != nil {
		return StatusReply{}, fmt.Errorf("query daemon status: %w", err)
	}
	return reply, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown() error {
	var reply ShutdownReply
	if err := c.rpc.Call(ServiceName+".Shutdown", &ShutdownArgs{}, &reply); err != nil {
		return fmt.Errorf("request daemon shutdown: %w", err)
	}
	if !reply.Acknowledged {
		return fmt.Errorf("daemon did not acknowledge shutdown")
	}
	return nil
}
