// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package main

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/avault-algo/avault/internal/protocol"
)

// Decision is an approver's verdict on one signature request.
type Decision struct {
	Approved bool
	Reason   string
}

// Approver decides signature requests. Decide blocks until a decision is
// made; ctx is cancelled when the wallet withdraws the request or the
// connection drops, and the prompt must resolve then.
type Approver interface {
	Decide(ctx context.Context, req protocol.SigRequestMessage) (Decision, error)
}

// autoApprover answers every request the same way after an optional delay.
// The delay makes wallet-side timeout handling exercisable.
type autoApprover struct {
	delay  time.Duration
	reject string // non-empty: reject with this reason
	notify func(string)
}

func (a *autoApprover) Decide(ctx context.Context, req protocol.SigRequestMessage) (Decision, error) {
	if a.delay > 0 {
		timer := time.NewTimer(a.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		case <-timer.C:
		}
	}
	if a.reject != "" {
		a.event(fmt.Sprintf("rejected %s", summarizeRequest(req)))
		return Decision{Approved: false, Reason: a.reject}, nil
	}
	a.event(fmt.Sprintf("approved %s", summarizeRequest(req)))
	return Decision{Approved: true}, nil
}

func (a *autoApprover) event(text string) {
	if a.notify != nil {
		a.notify(text)
	}
}

// Server accepts wallet connections and speaks the device wire protocol:
// hello on connect, then sig_request/cancel until the peer hangs up.
type Server struct {
	deviceID string
	firmware string
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	approver Approver

	// notify receives connection lifecycle notes for the UI. May be nil.
	notify func(string)
}

// NewServer creates a device server signing with the given key.
func NewServer(deviceID, firmware string, priv ed25519.PrivateKey, approver Approver) *Server {
	return &Server{
		deviceID: deviceID,
		firmware: firmware,
		priv:     priv,
		pub:      priv.Public().(ed25519.PublicKey),
		approver: approver,
	}
}

// Serve accepts connections until ctx is cancelled. Each connection gets
// its own session goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	sess := &session{
		server: s,
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
	sess.run(ctx)
}

func (s *Server) event(text string) {
	if s.notify != nil {
		s.notify(text)
	}
}

// session serves one wallet connection. At most one signature request is in
// flight at a time, matching the transport contract on the wallet side.
type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader

	// writeMu serializes writes: the read loop (errors) and decision
	// goroutines (responses) share the connection.
	writeMu sync.Mutex

	mu        sync.Mutex
	pendingID string
	cancelOp  context.CancelFunc
}

func (c *session) run(ctx context.Context) {
	hello := protocol.HelloMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MsgTypeHello},
		DeviceID:    c.server.deviceID,
		PublicKey:   base64.StdEncoding.EncodeToString(c.server.pub),
		Firmware:    c.server.firmware,
	}
	if err := c.writeJSON(hello); err != nil {
		return
	}
	c.server.event("wallet connected")

	// connCtx resolves any in-flight prompt when the connection drops.
	connCtx, cancelConn := context.WithCancel(ctx)
	defer cancelConn()

	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			c.server.event("wallet disconnected")
			return
		}

		var base protocol.BaseMessage
		if err := json.Unmarshal(line, &base); err != nil {
			continue
		}

		switch base.Type {
		case protocol.MsgTypeSigRequest:
			var req protocol.SigRequestMessage
			if err := json.Unmarshal(line, &req); err != nil {
				continue
			}
			c.startRequest(connCtx, req)

		case protocol.MsgTypeCancel:
			c.cancelRequest(base.ID)
		}
	}
}

// startRequest hands one sig_request to the approver on its own goroutine.
// A request arriving while another is pending is refused as busy.
func (c *session) startRequest(ctx context.Context, req protocol.SigRequestMessage) {
	c.mu.Lock()
	if c.pendingID != "" {
		c.mu.Unlock()
		c.writeError(req.ID, "device busy")
		return
	}
	opCtx, cancel := context.WithCancel(ctx)
	c.pendingID = req.ID
	c.cancelOp = cancel
	c.mu.Unlock()

	go c.decide(opCtx, req)
}

func (c *session) decide(ctx context.Context, req protocol.SigRequestMessage) {
	decision, err := c.server.approver.Decide(ctx, req)

	c.mu.Lock()
	stillPending := c.pendingID == req.ID
	if stillPending {
		c.pendingID = ""
		c.cancelOp = nil
	}
	c.mu.Unlock()

	// Withdrawn requests and dead prompts get no response; the wallet has
	// already moved on.
	if !stillPending || err != nil {
		return
	}

	resp := protocol.SigResponseMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MsgTypeSigResponse, ID: req.ID},
		Approved:    decision.Approved,
		Reason:      decision.Reason,
	}
	if decision.Approved {
		payload, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			c.writeError(req.ID, "malformed payload")
			return
		}
		resp.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(c.server.priv, payload))
		resp.PublicKey = base64.StdEncoding.EncodeToString(c.server.pub)
	}
	_ = c.writeJSON(resp)
}

// cancelRequest withdraws the pending request if the id matches.
func (c *session) cancelRequest(id string) {
	c.mu.Lock()
	if id == "" || c.pendingID != id || c.cancelOp == nil {
		c.mu.Unlock()
		return
	}
	cancel := c.cancelOp
	c.pendingID = ""
	c.cancelOp = nil
	c.mu.Unlock()

	cancel()
}

func (c *session) writeError(id, msg string) {
	_ = c.writeJSON(protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MsgTypeError, ID: id},
		Error:       msg,
	})
}

func (c *session) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = c.conn.Write(data)
	return err
}

// loadOrCreateKey returns the device's ed25519 key, generating and saving
// one on first run. The file holds the base64 seed, owner-readable only.
func loadOrCreateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		seed, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%s does not hold a device key", path)
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(priv.Seed())
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0600); err != nil {
		return nil, err
	}
	return priv, nil
}

// deviceAddress renders the key as the address a wallet registers the
// device's accounts under.
func deviceAddress(pub ed25519.PublicKey) string {
	var addr types.Address
	copy(addr[:], pub)
	return addr.String()
}

// listen binds where the wallet's device transport will dial.
func listen(channel, endpoint string) (net.Listener, error) {
	switch channel {
	case "wired":
		// A socket file left by an unclean shutdown blocks the bind.
		if _, err := os.Stat(endpoint); err == nil {
			_ = os.Remove(endpoint)
		}
		return net.Listen("unix", endpoint)
	case "wireless":
		return net.Listen("tcp", endpoint)
	default:
		return nil, fmt.Errorf("unknown channel %q (want wired or wireless)", channel)
	}
}

func summarizeRequest(req protocol.SigRequestMessage) string {
	desc := strings.TrimSpace(req.Description)
	if i := strings.IndexByte(desc, '\n'); i >= 0 {
		desc = desc[:i]
	}
	if desc == "" {
		desc = "request " + shortID(req.ID)
	}
	return desc
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
