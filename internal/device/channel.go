// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package device

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/avault-algo/avault/internal/util"
)

// Channel is a low-level framed connection to a signing device. Messages are
// line-delimited JSON in both directions. Implementations are not safe for
// concurrent writers; Transport serializes access.
type Channel interface {
	// Dial establishes the connection. Calling Dial on a previously closed
	// channel reconnects.
	Dial(ctx context.Context) error

	// Close closes the connection.
	Close()

	// SetReadDeadline sets a deadline for read operations.
	SetReadDeadline(d time.Duration)

	// ClearReadDeadline removes any read deadline.
	ClearReadDeadline()

	// WriteJSON sends a JSON message, terminated by newline.
	WriteJSON(v interface{}) error

	// ReadMessage reads one line-delimited JSON message.
	ReadMessage() ([]byte, error)
}

// netChannel implements Channel over a stream socket: a Unix socket for
// wired devices, TCP for wireless ones.
type netChannel struct {
	network string
	address string
	conn    net.Conn
	reader  *bufio.Reader
}

var _ Channel = (*netChannel)(nil)

// NewWiredChannel returns a Channel that connects over a Unix socket.
func NewWiredChannel(socketPath string) Channel {
	return &netChannel{network: "unix", address: socketPath}
}

// NewWirelessChannel returns a Channel that connects over TCP to host:port.
func NewWirelessChannel(hostport string) Channel {
	return &netChannel{network: "tcp", address: hostport}
}

// NewChannel builds the Channel matching a configured device endpoint.
func NewChannel(cfg util.DeviceConfig) (Channel, error) {
	switch cfg.Channel {
	case "wired":
		return NewWiredChannel(cfg.Endpoint), nil
	case "wireless":
		return NewWirelessChannel(cfg.Endpoint), nil
	default:
		return nil, fmt.Errorf("device '%s': unknown channel '%s'", cfg.ID, cfg.Channel)
	}
}

// Dial connects to the device endpoint.
func (c *netChannel) Dial(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, c.network, c.address)
	if err != nil {
		return fmt.Errorf("failed to connect to device at %s: %w", c.address, err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)
	return nil
}

// Close closes the connection.
func (c *netChannel) Close() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// SetReadDeadline sets a deadline for read operations.
func (c *netChannel) SetReadDeadline(d time.Duration) {
	if c.conn != nil {
		_ = c.conn.SetReadDeadline(time.Now().Add(d))
	}
}

// ClearReadDeadline removes any read deadline.
func (c *netChannel) ClearReadDeadline() {
	if c.conn != nil {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
}

// WriteJSON sends a JSON message over the connection.
// Each message is a single line terminated by newline.
func (c *netChannel) WriteJSON(v interface{}) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = c.conn.Write(data)
	return err
}

// ReadMessage reads a line-delimited JSON message from the connection.
func (c *netChannel) ReadMessage() ([]byte, error) {
	if c.reader == nil {
		return nil, ErrNotConnected
	}
	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	// Trim the newline
	if len(line) > 0 && line[len(line)-1] == '\n' {
		line = line[:len(line)-1]
	}
	return line, nil
}
