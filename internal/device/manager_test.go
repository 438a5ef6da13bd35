// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package device

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"net"
	"path/filepath"
	"testing"

	"github.com/avault-algo/avault/internal/protocol"
	"github.com/avault-algo/avault/internal/util"
)

func TestManagerTransport(t *testing.T) {
	cfg := &util.Config{
		Devices: []util.DeviceConfig{
			{ID: "ledger-a", Channel: "wired", Endpoint: "/tmp/ledger-a.sock"},
			{ID: "ledger-b", Channel: "wireless", Endpoint: "127.0.0.1:9000"},
		},
		DeviceTimeoutSeconds: 2,
	}
	m := NewManager(cfg)

	tr, err := m.Transport("ledger-a")
	if err != nil {
		t.Fatalf("Transport() error = %v", err)
	}
	if tr.DeviceID() != "ledger-a" {
		t.Errorf("DeviceID() = %q", tr.DeviceID())
	}

	// Same transport instance on repeated lookups.
	again, err := m.Transport("ledger-a")
	if err != nil {
		t.Fatalf("Transport() error = %v", err)
	}
	if again != tr {
		t.Error("Transport() built a second transport for the same device")
	}

	if _, err := m.Transport("nonexistent"); err == nil {
		t.Error("Transport() succeeded for an unconfigured device")
	}
}

func TestManagerStatuses(t *testing.T) {
	cfg := &util.Config{
		Devices: []util.DeviceConfig{
			{ID: "ledger-a", Channel: "wired", Endpoint: "/tmp/ledger-a.sock"},
			{ID: "ledger-b", Channel: "wireless", Endpoint: "127.0.0.1:9000"},
		},
		DeviceTimeoutSeconds: 2,
	}
	m := NewManager(cfg)

	// ledger-b gets a transport built but never connected.
	if _, err := m.Transport("ledger-b"); err != nil {
		t.Fatalf("Transport() error = %v", err)
	}

	statuses := m.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Statuses() returned %d entries, want 2", len(statuses))
	}
	if statuses[0].ID != "ledger-a" || statuses[1].ID != "ledger-b" {
		t.Errorf("Statuses() order = %q, %q, want configuration order", statuses[0].ID, statuses[1].ID)
	}
	for _, s := range statuses {
		if s.State != StateDisconnected {
			t.Errorf("device %s state = %v, want %v", s.ID, s.State, StateDisconnected)
		}
	}
}

func TestManagerSign(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "dev.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	defer ln.Close()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate device key: %v", err)
	}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- serveScriptedDevice(ln, pub, priv)
	}()

	cfg := &util.Config{
		Devices: []util.DeviceConfig{
			{ID: testDeviceID, Channel: "wired", Endpoint: sock},
		},
		DeviceTimeoutSeconds: 2,
	}
	m := NewManager(cfg)
	defer m.CloseAll()

	payload := []byte("unsigned-txn-bytes")
	resp, err := m.Sign(context.Background(), testDeviceID, protocol.SigRequestMessage{
		Address:     testAuthority,
		TxnSender:   testSender,
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Description: "Payment of 1.000000 ALGO",
	})
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}

	sig, err := base64.StdEncoding.DecodeString(resp.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if !ed25519.Verify(pub, payload, sig) {
		t.Error("signature does not verify")
	}
	if err := <-serverErr; err != nil {
		t.Errorf("scripted device error: %v", err)
	}
}

func TestManagerSignUnconfiguredDevice(t *testing.T) {
	m := NewManager(&util.Config{DeviceTimeoutSeconds: 2})
	if _, err := m.Sign(context.Background(), "ghost", protocol.SigRequestMessage{}); err == nil {
		t.Error("Sign() succeeded for an unconfigured device")
	}
}
