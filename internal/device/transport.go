// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package device manages connections to hardware signing devices. Each
// device gets one Transport: a small connection state machine with a single
// reader goroutine that routes responses to in-flight requests by
// correlation id.
package device

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avault-algo/avault/internal/protocol"
	"github.com/avault-algo/avault/internal/util"
)

// State represents the connection state of a device transport
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
	StateAwaitingResponse
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateAwaitingResponse:
		return "awaiting_response"
	default:
		return "unknown"
	}
}

// helloTimeout bounds how long a device may take to announce itself after
// the connection is established.
const helloTimeout = 5 * time.Second

// PendingOperation correlates one in-flight signature request to a device.
// At most one exists per transport.
type PendingOperation struct {
	CorrelationID string
	DeviceID      string
	Request       protocol.SigRequestMessage
	Deadline      time.Time

	result chan opResult
}

type opResult struct {
	resp protocol.SigResponseMessage
	err  error
}

// Transport manages the connection to a single hardware signing device.
// All inbound messages are owned by one reader goroutine; callers block on
// a per-operation channel, never on the socket.
type Transport struct {
	deviceID string
	channel  Channel

	// writeMu serializes writes to the channel (a cancel for a finished
	// request can race a new sig_request).
	writeMu sync.Mutex

	mu        sync.Mutex
	state     State
	lastErr   error
	pending   *PendingOperation
	publicKey ed25519.PublicKey
	firmware  string
	gen       int // connection generation, guards against stale readers
}

// NewTransport creates a transport for the given device over the given
// channel. The transport starts Disconnected; call Connect before use.
func NewTransport(deviceID string, ch Channel) *Transport {
	return &Transport{
		deviceID: deviceID,
		channel:  ch,
		state:    StateDisconnected,
	}
}

// DeviceID returns the configured device identifier.
func (t *Transport) DeviceID() string {
	return t.deviceID
}

// GetState returns the current connection state.
func (t *Transport) GetState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// LastError returns the error that caused the last disconnect, if any.
func (t *Transport) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// DevicePublicKey returns the signing key the device announced in its hello,
// or nil if the transport has never connected.
func (t *Transport) DevicePublicKey() ed25519.PublicKey {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.publicKey == nil {
		return nil
	}
	return append(ed25519.PublicKey(nil), t.publicKey...)
}

// Firmware returns the firmware string from the device's hello message.
func (t *Transport) Firmware() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.firmware
}

// Connect establishes the device connection and performs the hello
// handshake. It is idempotent: if the transport is already connected it
// returns immediately.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	switch t.state {
	case StateReady, StateAwaitingResponse:
		t.mu.Unlock()
		return nil
	case StateConnecting:
		t.mu.Unlock()
		return fmt.Errorf("device '%s': connection already in progress", t.deviceID)
	}
	t.state = StateConnecting
	t.mu.Unlock()

	if err := t.channel.Dial(ctx); err != nil {
		t.setDisconnected(err)
		return err
	}

	hello, err := t.readHello()
	if err != nil {
		t.channel.Close()
		t.setDisconnected(err)
		return err
	}
	if hello.DeviceID != t.deviceID {
		err := fmt.Errorf("device identity mismatch: expected '%s', got '%s'", t.deviceID, hello.DeviceID)
		t.channel.Close()
		t.setDisconnected(err)
		return err
	}
	key, decErr := base64.StdEncoding.DecodeString(hello.PublicKey)
	if decErr != nil || len(key) != ed25519.PublicKeySize {
		err := fmt.Errorf("device '%s' announced an invalid public key", t.deviceID)
		t.channel.Close()
		t.setDisconnected(err)
		return err
	}

	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.publicKey = key
	t.firmware = hello.Firmware
	t.state = StateReady
	t.lastErr = nil
	t.mu.Unlock()

	go t.readLoop(gen)

	util.Debug("device connected", "device", t.deviceID, "firmware", hello.Firmware)
	return nil
}

// readHello waits for the device to announce itself. The hello must be the
// first message on every connection.
func (t *Transport) readHello() (protocol.HelloMessage, error) {
	t.channel.SetReadDeadline(helloTimeout)
	defer t.channel.ClearReadDeadline()

	line, err := t.channel.ReadMessage()
	if err != nil {
		return protocol.HelloMessage{}, fmt.Errorf("failed to receive hello: %w", err)
	}

	var hello protocol.HelloMessage
	if err := json.Unmarshal(line, &hello); err != nil {
		return protocol.HelloMessage{}, fmt.Errorf("failed to parse hello: %w", err)
	}
	if hello.Type != protocol.MsgTypeHello {
		return protocol.HelloMessage{}, fmt.Errorf("expected hello message, got: %s", hello.Type)
	}
	return hello, nil
}

// RequestSignature sends a sig_request to the device and waits for its
// decision. Exactly one request may be outstanding; a concurrent second
// request fails immediately with ErrDeviceBusy. The request resolves with
// the device's response, ErrCancelled if ctx is cancelled, ErrDeviceTimeout
// if the deadline passes, or ErrDeviceDisconnected if the connection drops.
func (t *Transport) RequestSignature(ctx context.Context, req protocol.SigRequestMessage, deadline time.Duration) (*protocol.SigResponseMessage, error) {
	t.mu.Lock()
	switch t.state {
	case StateDisconnected, StateConnecting:
		lastErr := t.lastErr
		t.mu.Unlock()
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotConnected, lastErr)
		}
		return nil, ErrNotConnected
	case StateAwaitingResponse:
		t.mu.Unlock()
		return nil, ErrDeviceBusy
	}

	req.BaseMessage = protocol.BaseMessage{
		Type: protocol.MsgTypeSigRequest,
		ID:   uuid.NewString(),
	}
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().Unix()
	}

	op := &PendingOperation{
		CorrelationID: req.ID,
		DeviceID:      t.deviceID,
		Request:       req,
		Deadline:      time.Now().Add(deadline),
		result:        make(chan opResult, 1),
	}
	t.pending = op
	t.state = StateAwaitingResponse
	t.mu.Unlock()

	if err := t.writeJSON(req); err != nil {
		// The connection is unusable; tear it down. The channel is closed
		// inside the critical section so a Connect racing this teardown
		// cannot have its fresh connection closed under it.
		t.mu.Lock()
		if t.pending == op {
			t.pending = nil
		}
		t.gen++ // orphan the reader
		t.state = StateDisconnected
		t.lastErr = err
		t.channel.Close()
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrDeviceDisconnected, err)
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case res := <-op.result:
		return unpackResult(res)

	case <-ctx.Done():
		if t.takePending(op) {
			t.sendCancel(op.CorrelationID)
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		// The reader resolved the operation before we could withdraw it.
		return unpackResult(<-op.result)

	case <-timer.C:
		if t.takePending(op) {
			t.sendCancel(op.CorrelationID)
			return nil, ErrDeviceTimeout
		}
		return unpackResult(<-op.result)
	}
}

// unpackResult maps a completed operation onto the caller-facing contract:
// an explicit refusal becomes ErrDeviceRejected with the device's reason.
func unpackResult(res opResult) (*protocol.SigResponseMessage, error) {
	if res.err != nil {
		return nil, res.err
	}
	if !res.resp.Approved {
		if res.resp.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrDeviceRejected, res.resp.Reason)
		}
		return nil, ErrDeviceRejected
	}
	resp := res.resp
	return &resp, nil
}

// takePending atomically claims the pending operation if it is still ours.
// Returns false if the reader (or a disconnect) already resolved it.
func (t *Transport) takePending(op *PendingOperation) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != op {
		return false
	}
	t.pending = nil
	if t.state == StateAwaitingResponse {
		t.state = StateReady
	}
	return true
}

// sendCancel tells the device a request is withdrawn so it can clear its
// approval prompt. Best effort: the connection may already be gone.
func (t *Transport) sendCancel(correlationID string) {
	msg := protocol.CancelMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.MsgTypeCancel,
			ID:   correlationID,
		},
	}
	if err := t.writeJSON(msg); err != nil {
		util.Debug("failed to send cancel", "device", t.deviceID, "error", err)
	}
}

func (t *Transport) writeJSON(v interface{}) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.channel.WriteJSON(v)
}

func (t *Transport) setDisconnected(cause error) {
	t.mu.Lock()
	t.state = StateDisconnected
	t.lastErr = cause
	t.mu.Unlock()
}

// readLoop owns all inbound messages for one connection generation. It exits
// when the connection drops, failing any pending operation so callers never
// hang.
func (t *Transport) readLoop(gen int) {
	for {
		line, err := t.channel.ReadMessage()
		if err != nil {
			t.handleDisconnect(gen, err)
			return
		}

		var base protocol.BaseMessage
		if err := json.Unmarshal(line, &base); err != nil {
			util.Debug("ignoring malformed device message", "device", t.deviceID, "error", err)
			continue
		}

		switch base.Type {
		case protocol.MsgTypeSigResponse:
			var resp protocol.SigResponseMessage
			if err := json.Unmarshal(line, &resp); err != nil {
				util.Debug("ignoring malformed sig_response", "device", t.deviceID, "error", err)
				continue
			}
			t.routeResponse(resp)

		case protocol.MsgTypeError:
			var errMsg protocol.ErrorMessage
			if err := json.Unmarshal(line, &errMsg); err != nil {
				continue
			}
			t.routeError(errMsg)

		case protocol.MsgTypeStatus:
			util.Debug("device status", "device", t.deviceID)

		default:
			util.Debug("ignoring device message", "device", t.deviceID, "type", base.Type)
		}
	}
}

// routeResponse delivers a sig_response to the matching pending operation.
// Responses for completed or cancelled correlation ids are dropped.
func (t *Transport) routeResponse(resp protocol.SigResponseMessage) {
	t.mu.Lock()
	op := t.pending
	if op == nil || op.CorrelationID != resp.ID {
		t.mu.Unlock()
		util.Debug("dropping stale device response", "device", t.deviceID, "id", resp.ID)
		return
	}
	t.pending = nil
	t.state = StateReady
	t.mu.Unlock()

	op.result <- opResult{resp: resp}
}

// routeError fails the pending operation when the device reports an error
// for its correlation id.
func (t *Transport) routeError(msg protocol.ErrorMessage) {
	if msg.ID == "" {
		util.Logger.Warn("device reported error", "device", t.deviceID, "error", msg.Error)
		return
	}

	t.mu.Lock()
	op := t.pending
	if op == nil || op.CorrelationID != msg.ID {
		t.mu.Unlock()
		util.Debug("dropping stale device error", "device", t.deviceID, "id", msg.ID)
		return
	}
	t.pending = nil
	t.state = StateReady
	t.mu.Unlock()

	op.result <- opResult{err: fmt.Errorf("device error: %s", msg.Error)}
}

// handleDisconnect tears down one connection generation. A stale reader from
// a previous connection must not clobber a newer one.
func (t *Transport) handleDisconnect(gen int, cause error) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.state = StateDisconnected
	t.lastErr = cause
	op := t.pending
	t.pending = nil
	t.channel.Close()
	t.mu.Unlock()

	if op != nil {
		op.result <- opResult{err: fmt.Errorf("%w: %v", ErrDeviceDisconnected, cause)}
	}
	util.Debug("device disconnected", "device", t.deviceID, "cause", cause)
}

// Close disconnects the transport. A pending operation resolves with
// ErrDeviceDisconnected.
func (t *Transport) Close() {
	t.mu.Lock()
	t.gen++ // orphan the reader so its exit does not clobber state
	t.state = StateDisconnected
	t.lastErr = nil
	op := t.pending
	t.pending = nil
	t.channel.Close()
	t.mu.Unlock()

	if op != nil {
		op.result <- opResult{err: ErrDeviceDisconnected}
	}
}
