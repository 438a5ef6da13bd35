// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package main

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/avault-algo/avault/internal/protocol"
)

// startServer runs a device server on a loopback TCP listener and returns
// its address and signing key.
func startServer(t *testing.T, approver Approver) (string, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate device key: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := NewServer("dev-test", "fw-test 1.0", priv, approver)
	go srv.Serve(ctx, ln)

	return ln.Addr().String(), priv
}

// wallet plays the wallet side of one device connection.
type wallet struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

// connect dials the device and consumes the hello it must send first.
func connect(t *testing.T, addr string) (*wallet, protocol.HelloMessage) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial device: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	w := &wallet{t: t, conn: conn, r: bufio.NewReader(conn)}
	var hello protocol.HelloMessage
	w.readInto(&hello)
	if hello.Type != protocol.MsgTypeHello {
		t.Fatalf("first message type = %q, want %q", hello.Type, protocol.MsgTypeHello)
	}
	return w, hello
}

func (w *wallet) send(v interface{}) {
	w.t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		w.t.Fatalf("marshal: %v", err)
	}
	if _, err := w.conn.Write(append(data, '\n')); err != nil {
		w.t.Fatalf("write to device: %v", err)
	}
}

func (w *wallet) sendRaw(line string) {
	w.t.Helper()
	if _, err := w.conn.Write([]byte(line + "\n")); err != nil {
		w.t.Fatalf("write to device: %v", err)
	}
}

func (w *wallet) readLine() []byte {
	w.t.Helper()
	w.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := w.r.ReadBytes('\n')
	if err != nil {
		w.t.Fatalf("read from device: %v", err)
	}
	return line
}

func (w *wallet) readInto(v interface{}) {
	w.t.Helper()
	if err := json.Unmarshal(w.readLine(), v); err != nil {
		w.t.Fatalf("unmarshal device message: %v", err)
	}
}

func sigRequest(id string, payload []byte) protocol.SigRequestMessage {
	return protocol.SigRequestMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MsgTypeSigRequest, ID: id},
		Address:     "7777777777777777777777777777777777777777777777777774MSJUVU",
		TxnSender:   "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ",
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Description: "Payment of 1.000000 ALGO",
		Timestamp:   time.Now().Unix(),
	}
}

func TestHelloAnnouncesDeviceKey(t *testing.T) {
	addr, priv := startServer(t, &autoApprover{})
	_, hello := connect(t, addr)

	if hello.DeviceID != "dev-test" {
		t.Errorf("hello device id = %q, want %q", hello.DeviceID, "dev-test")
	}
	if hello.Firmware != "fw-test 1.0" {
		t.Errorf("hello firmware = %q", hello.Firmware)
	}
	pub, err := base64.StdEncoding.DecodeString(hello.PublicKey)
	if err != nil {
		t.Fatalf("hello public key is not base64: %v", err)
	}
	if !ed25519.PublicKey(pub).Equal(priv.Public().(ed25519.PublicKey)) {
		t.Error("hello announced a different key than the server signs with")
	}
}

func TestSigRequestApproved(t *testing.T) {
	addr, priv := startServer(t, &autoApprover{})
	w, _ := connect(t, addr)

	payload := []byte("TXunsigned-transaction-bytes")
	w.send(sigRequest("req-1", payload))

	var resp protocol.SigResponseMessage
	w.readInto(&resp)
	if resp.Type != protocol.MsgTypeSigResponse {
		t.Fatalf("response type = %q, want %q", resp.Type, protocol.MsgTypeSigResponse)
	}
	if resp.ID != "req-1" {
		t.Errorf("response ID = %q, does not echo the request", resp.ID)
	}
	if !resp.Approved {
		t.Fatalf("request not approved: %s", resp.Reason)
	}

	sig, err := base64.StdEncoding.DecodeString(resp.Signature)
	if err != nil {
		t.Fatalf("signature is not base64: %v", err)
	}
	if !ed25519.Verify(priv.Public().(ed25519.PublicKey), payload, sig) {
		t.Error("signature does not verify over the request payload")
	}
	respKey, err := base64.StdEncoding.DecodeString(resp.PublicKey)
	if err != nil {
		t.Fatalf("response public key is not base64: %v", err)
	}
	if !ed25519.PublicKey(respKey).Equal(priv.Public().(ed25519.PublicKey)) {
		t.Error("response carries a different public key than the signer")
	}
}

func TestSigRequestRejected(t *testing.T) {
	addr, _ := startServer(t, &autoApprover{reject: "not today"})
	w, _ := connect(t, addr)

	w.send(sigRequest("req-1", []byte("payload")))

	var resp protocol.SigResponseMessage
	w.readInto(&resp)
	if resp.Approved {
		t.Fatal("rejecting approver approved the request")
	}
	if resp.Reason != "not today" {
		t.Errorf("rejection reason = %q, want %q", resp.Reason, "not today")
	}
	if resp.Signature != "" {
		t.Error("rejection carried a signature")
	}
}

// scriptedApprover blocks its first call until cancellation and approves
// everything after that.
type scriptedApprover struct {
	mu        sync.Mutex
	calls     int
	cancelled chan struct{}
}

func (a *scriptedApprover) Decide(ctx context.Context, _ protocol.SigRequestMessage) (Decision, error) {
	a.mu.Lock()
	a.calls++
	first := a.calls == 1
	a.mu.Unlock()

	if first {
		<-ctx.Done()
		close(a.cancelled)
		return Decision{}, ctx.Err()
	}
	return Decision{Approved: true}, nil
}

func TestCancelWithdrawsPendingRequest(t *testing.T) {
	approver := &scriptedApprover{cancelled: make(chan struct{})}
	addr, _ := startServer(t, approver)
	w, _ := connect(t, addr)

	w.send(sigRequest("req-1", []byte("payload")))
	w.send(protocol.CancelMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MsgTypeCancel, ID: "req-1"},
	})

	select {
	case <-approver.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("cancel never reached the pending prompt")
	}

	// The withdrawn request gets no response; the next request is served.
	w.send(sigRequest("req-2", []byte("payload")))
	var resp protocol.SigResponseMessage
	w.readInto(&resp)
	if resp.ID != "req-2" {
		t.Errorf("response ID = %q, want %q (cancelled request must stay silent)", resp.ID, "req-2")
	}
	if !resp.Approved {
		t.Error("request after a cancellation was not served")
	}
}

// gatedApprover holds every decision until released.
type gatedApprover struct {
	release chan struct{}
}

func (a *gatedApprover) Decide(ctx context.Context, _ protocol.SigRequestMessage) (Decision, error) {
	select {
	case <-a.release:
		return Decision{Approved: true}, nil
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

func TestSecondRequestWhileBusy(t *testing.T) {
	approver := &gatedApprover{release: make(chan struct{})}
	addr, _ := startServer(t, approver)
	w, _ := connect(t, addr)

	w.send(sigRequest("req-1", []byte("payload")))
	w.send(sigRequest("req-2", []byte("payload")))

	var errMsg protocol.ErrorMessage
	w.readInto(&errMsg)
	if errMsg.Type != protocol.MsgTypeError {
		t.Fatalf("second request got %q, want %q", errMsg.Type, protocol.MsgTypeError)
	}
	if errMsg.ID != "req-2" {
		t.Errorf("error ID = %q, want %q", errMsg.ID, "req-2")
	}

	// The first request is undisturbed.
	close(approver.release)
	var resp protocol.SigResponseMessage
	w.readInto(&resp)
	if resp.ID != "req-1" || !resp.Approved {
		t.Errorf("first request resolved as id=%q approved=%v", resp.ID, resp.Approved)
	}
}

func TestMalformedLineIgnored(t *testing.T) {
	addr, _ := startServer(t, &autoApprover{})
	w, _ := connect(t, addr)

	w.sendRaw("this is not json")
	w.send(sigRequest("req-1", []byte("payload")))

	var resp protocol.SigResponseMessage
	w.readInto(&resp)
	if resp.ID != "req-1" || !resp.Approved {
		t.Errorf("request after garbage line resolved as id=%q approved=%v", resp.ID, resp.Approved)
	}
}

func TestAutoApproverDelayHonoursCancel(t *testing.T) {
	a := &autoApprover{delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := a.Decide(ctx, protocol.SigRequestMessage{})
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Decide() returned no error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Decide() kept waiting through cancellation")
	}
}

func TestLoadOrCreateKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")

	first, err := loadOrCreateKey(path)
	if err != nil {
		t.Fatalf("loadOrCreateKey() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("key file mode = %o, want 0600", info.Mode().Perm())
	}

	second, err := loadOrCreateKey(path)
	if err != nil {
		t.Fatalf("second loadOrCreateKey() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("reloading did not return the same key")
	}
}

func TestLoadOrCreateKeyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.key")
	if err := os.WriteFile(path, []byte("not a key\n"), 0600); err != nil {
		t.Fatalf("seed garbage file: %v", err)
	}
	if _, err := loadOrCreateKey(path); err == nil {
		t.Error("loadOrCreateKey() accepted a corrupt key file")
	}
}

func TestDeviceAddressRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := deviceAddress(pub)

	decoded, err := types.DecodeAddress(addr)
	if err != nil {
		t.Fatalf("device address %q does not decode: %v", addr, err)
	}
	if !bytes.Equal(decoded[:], pub) {
		t.Error("decoded address does not match the public key")
	}
}

func TestListenWiredRemovesStaleSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.sock")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("seed stale socket file: %v", err)
	}

	ln, err := listen("wired", path)
	if err != nil {
		t.Fatalf("listen() error = %v", err)
	}
	ln.Close()
}

func TestListenUnknownChannel(t *testing.T) {
	if _, err := listen("carrier-pigeon", "endpoint"); err == nil {
		t.Error("listen() accepted an unknown channel")
	}
}
