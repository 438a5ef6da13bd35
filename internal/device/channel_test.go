// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package device

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/avault-algo/avault/internal/protocol"
	"github.com/avault-algo/avault/internal/util"
)

// serveScriptedDevice accepts one connection, announces itself, approves one
// signature request with a real ed25519 signature over the payload, and
// exits.
func serveScriptedDevice(ln net.Listener, pub ed25519.PublicKey, priv ed25519.PrivateKey) error {
	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()

	writeLine := func(v interface{}) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		data = append(data, '\n')
		_, err = conn.Write(data)
		return err
	}

	err = writeLine(protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MsgTypeHello},
		DeviceID:    testDeviceID,
		PublicKey:   base64.StdEncoding.EncodeToString(pub),
		Firmware:    "avdevice-sim 1.0",
	})
	if err != nil {
		return err
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return err
	}
	var req protocol.SigRequestMessage
	if err := json.Unmarshal(line, &req); err != nil {
		return err
	}
	if req.Type != protocol.MsgTypeSigRequest {
		return fmt.Errorf("expected sig_request, got %q", req.Type)
	}
	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		return err
	}

	return writeLine(protocol.SigResponseMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MsgTypeSigResponse, ID: req.ID},
		Approved:    true,
		Signature:   base64.StdEncoding.EncodeToString(ed25519.Sign(priv, payload)),
		PublicKey:   base64.StdEncoding.EncodeToString(pub),
	})
}

// requestOverChannel drives one full connect-and-sign exchange and verifies
// the returned signature against the device key.
func requestOverChannel(t *testing.T, ch Channel, ln net.Listener) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate device key: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- serveScriptedDevice(ln, pub, priv)
	}()

	tr := NewTransport(testDeviceID, ch)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Close()

	payload := []byte("unsigned-txn-bytes")
	req := protocol.SigRequestMessage{
		Address:     testAuthority,
		TxnSender:   testSender,
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Description: "Payment of 2.500000 ALGO",
	}
	resp, err := tr.RequestSignature(context.Background(), req, 2*time.Second)
	if err != nil {
		t.Fatalf("RequestSignature() error = %v", err)
	}

	sig, err := base64.StdEncoding.DecodeString(resp.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if !ed25519.Verify(pub, payload, sig) {
		t.Error("device signature does not verify against its announced key")
	}
	if err := <-serverErr; err != nil {
		t.Errorf("scripted device error: %v", err)
	}
}

func TestWiredChannelEndToEnd(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "dev.sock")
	ln, err := net.Listen("unix", sock)
	if err != nil {
		t.Fatalf("listen unix: %v", err)
	}
	defer ln.Close()

	requestOverChannel(t, NewWiredChannel(sock), ln)
}

func TestWirelessChannelEndToEnd(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen tcp: %v", err)
	}
	defer ln.Close()

	requestOverChannel(t, NewWirelessChannel(ln.Addr().String()), ln)
}

func TestNewChannel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     util.DeviceConfig
		wantErr bool
	}{
		{"wired", util.DeviceConfig{ID: "a", Channel: "wired", Endpoint: "/tmp/a.sock"}, false},
		{"wireless", util.DeviceConfig{ID: "b", Channel: "wireless", Endpoint: "127.0.0.1:9000"}, false},
		{"unknown channel", util.DeviceConfig{ID: "c", Channel: "bluetooth", Endpoint: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChannel(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewChannel() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDialFailsWhenNothingListens(t *testing.T) {
	ch := NewWiredChannel(filepath.Join(t.TempDir(), "absent.sock"))
	if err := ch.Dial(context.Background()); err == nil {
		t.Error("Dial() succeeded with no listener")
	}
}
