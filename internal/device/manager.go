// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/avault-algo/avault/internal/protocol"
	"github.com/avault-algo/avault/internal/util"
)

// Manager owns one Transport per configured device, built lazily from
// configuration.
type Manager struct {
	cfg *util.Config

	mu         sync.Mutex
	transports map[string]*Transport
}

// NewManager creates a manager over the configured devices.
func NewManager(cfg *util.Config) *Manager {
	return &Manager{
		cfg:        cfg,
		transports: make(map[string]*Transport),
	}
}

// Transport returns the transport for a configured device id, creating it on
// first use. The transport starts Disconnected; call Connect before use.
func (m *Manager) Transport(deviceID string) (*Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tr, ok := m.transports[deviceID]; ok {
		return tr, nil
	}

	cfg, ok := m.cfg.Device(deviceID)
	if !ok {
		return nil, fmt.Errorf("device '%s' is not configured", deviceID)
	}
	ch, err := NewChannel(cfg)
	if err != nil {
		return nil, err
	}

	tr := NewTransport(deviceID, ch)
	m.transports[deviceID] = tr
	return tr, nil
}

// Sign connects to the device if necessary and requests a signature with the
// configured device timeout.
func (m *Manager) Sign(ctx context.Context, deviceID string, req protocol.SigRequestMessage) (*protocol.SigResponseMessage, error) {
	tr, err := m.Transport(deviceID)
	if err != nil {
		return nil, err
	}
	if err := tr.Connect(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return tr.RequestSignature(ctx, req, m.cfg.DeviceTimeout())
}

// Status describes one configured device for display.
type Status struct {
	ID       string
	Channel  string
	Endpoint string
	State    State
	Firmware string
	LastErr  error
}

// Statuses reports the connection state of every configured device, in
// configuration order.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	statuses := make([]Status, 0, len(m.cfg.Devices))
	for _, d := range m.cfg.Devices {
		s := Status{
			ID:       d.ID,
			Channel:  d.Channel,
			Endpoint: d.Endpoint,
			State:    StateDisconnected,
		}
		if tr, ok := m.transports[d.ID]; ok {
			s.State = tr.GetState()
			s.Firmware = tr.Firmware()
			s.LastErr = tr.LastError()
		}
		statuses = append(statuses, s)
	}
	return statuses
}

// CloseAll disconnects every device transport.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	transports := make([]*Transport, 0, len(m.transports))
	for _, tr := range m.transports {
		transports = append(transports, tr)
	}
	m.mu.Unlock()

	for _, tr := range transports {
		tr.Close()
	}
}
