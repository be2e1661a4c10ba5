// Package netutil provides network utility functions for port checking.
package netutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"
)

// WaitForPort waits for a TCP port to be open on the target host.
// It retries every second until the port is accessible or the timeout is reached.
func WaitForPort(ctx context.Context, host string, port int, timeout time.Duration) error {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Check immediately before waiting for ticker
	if conn, err := net.DialTimeout("tcp", address, 2*time.Second); err == nil {
		_ = conn.Close()
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("timeout waiting for %s", address)
			}
			return ctx.Err()
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", address, 2*time.Second)
			if err == nil {
				_ = conn.Close()
				return nil
			}
		}
	}
}

// ErrPortInUse is returned by PortAvailable when something already listens.
var ErrPortInUse = errors.New("port already in use")

// PortAvailable reports whether a TCP listener can bind port on all
// interfaces. The probe listener is closed before returning.
func PortAvailable(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of range", port)
	}
	ln, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d: %w", port, ErrPortInUse)
		}
		return fmt.Errorf("port %d: %w", port, err)
	}
	return ln.Close()
}
