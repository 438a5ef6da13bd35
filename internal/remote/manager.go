// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package remote

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/avault-algo/avault/internal/util"
)

// Manager hands out one Client per configured remote signing endpoint.
type Manager struct {
	cfg *util.Config

	mu      sync.Mutex
	clients map[string]*Client
}

// NewManager creates a manager over the configured remote signers.
func NewManager(cfg *util.Config) *Manager {
	return &Manager{
		cfg:     cfg,
		clients: make(map[string]*Client),
	}
}

// Client returns the client for the given endpoint id, building it on first
// use.
func (m *Manager) Client(endpointID string) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[endpointID]; ok {
		return client, nil
	}
	cfg, ok := m.cfg.RemoteSigner(endpointID)
	if !ok {
		return nil, fmt.Errorf("remote signer '%s' is not configured", endpointID)
	}
	client := NewClient(cfg)
	m.clients[endpointID] = client
	return client, nil
}

// Sign routes a signing request to the named endpoint.
func (m *Manager) Sign(ctx context.Context, endpointID, address, txnSender string, payload []byte, description string) ([]byte, ed25519.PublicKey, error) {
	client, err := m.Client(endpointID)
	if err != nil {
		return nil, nil, err
	}
	return client.Sign(ctx, address, txnSender, payload, description)
}

// EndpointStatus reports one configured endpoint's reachability.
type EndpointStatus struct {
	ID      string
	URL     string
	Healthy bool
}

// Statuses health-checks every configured endpoint.
func (m *Manager) Statuses(ctx context.Context) []EndpointStatus {
	statuses := make([]EndpointStatus, 0, len(m.cfg.RemoteSigners))
	for _, cfg := range m.cfg.RemoteSigners {
		client, err := m.Client(cfg.ID)
		status := EndpointStatus{ID: cfg.ID, URL: cfg.URL}
		if err == nil {
			status.Healthy = client.Health(ctx)
		}
		statuses = append(statuses, status)
	}
	return statuses
}
