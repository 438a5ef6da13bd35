// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package audit writes the append-only trail of authorization and signing
// decisions: one JSON entry per line, fsynced per write, rotated by size.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventType classifies an audit entry.
type EventType string

const maxLogSize = 10 * 1024 * 1024 // 10 MB

const (
	EventUnlock       EventType = "UNLOCK"
	EventLock         EventType = "LOCK"
	EventAuthFailed   EventType = "AUTH_FAILED"
	EventSignRequest  EventType = "SIGN_REQUEST"
	EventSignApproved EventType = "SIGN_APPROVED"
	EventSignRejected EventType = "SIGN_REJECTED"
	EventSignFailed   EventType = "SIGN_FAILED"
	EventSubmitted    EventType = "SUBMITTED"
	EventConfirmed    EventType = "CONFIRMED"
)

// Entry is a single audit record.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Event     EventType `json:"event"`
	Authority string    `json:"authority,omitempty"`  // signing authority address
	Sender    string    `json:"sender,omitempty"`     // transaction sender (if different)
	Network   string    `json:"network,omitempty"`    // target network id
	TxnType   string    `json:"txn_type,omitempty"`   // pay, axfer, appl, keyreg
	Summary   string    `json:"summary,omitempty"`    // human-readable description
	TxID      string    `json:"txid,omitempty"`       // transaction id (after signing)
	SessionID string    `json:"session_id,omitempty"` // auth session in effect
	Reason    string    `json:"reason,omitempty"`     // rejection/failure reason
	Round     uint64    `json:"round,omitempty"`      // confirmation round
}

// Logger handles append-only audit logging.
type Logger struct {
	file    *os.File
	mu      sync.Mutex
	path    string
	written uint64
}

// NewLogger opens the audit log in append-only mode with owner-only
// permissions, creating it if needed.
func NewLogger(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	var written uint64
	if info, err := file.Stat(); err == nil {
		written = uint64(info.Size())
	}

	return &Logger{file: file, path: path, written: written}, nil
}

// Log writes an audit entry. Failures are reported to stderr rather than
// returned — callers must never abort a signing decision over the trail.
func (a *Logger) Log(entry Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to marshal audit entry: %v\n", err)
		return
	}

	// Rotate if this write would exceed the size limit
	line := append(data, '\n')
	if a.written+uint64(len(line)) > maxLogSize {
		if err := a.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to rotate audit log: %v\n", err)
			// Continue writing to current file
		}
	}

	if _, err := a.file.Write(line); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write audit entry: %v\n", err)
		return
	}
	a.written += uint64(len(line))

	// Sync to disk immediately (important for audit trails)
	_ = a.file.Sync()
}

// rotate archives the current log file and opens a fresh one.
// Must be called with a.mu held.
func (a *Logger) rotate() error {
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	if err := os.Rename(a.path, a.path+".1"); err != nil {
		// Reopen the original path so logging can continue
		a.file, _ = os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		a.written = 0
		return fmt.Errorf("rename log: %w", err)
	}
	file, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open new log: %w", err)
	}
	a.file = file
	a.written = 0
	return nil
}

// Close closes the audit log file.
func (a *Logger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// Helper methods for common events

// LogUnlock logs a successful session unlock.
func (a *Logger) LogUnlock(sessionID, method string) {
	a.Log(Entry{Event: EventUnlock, SessionID: sessionID, Reason: method})
}

// LogLock logs a session lock with the cause (explicit, inactivity, background).
func (a *Logger) LogLock(sessionID, cause string) {
	a.Log(Entry{Event: EventLock, SessionID: sessionID, Reason: cause})
}

// LogAuthFailed logs a failed unlock attempt.
func (a *Logger) LogAuthFailed(method, reason string) {
	a.Log(Entry{Event: EventAuthFailed, Reason: reason, Summary: method})
}

// LogSignRequest logs a request entering the dispatcher.
func (a *Logger) LogSignRequest(authority, sender, network, txnType, summary string) {
	a.Log(Entry{
		Event:     EventSignRequest,
		Authority: authority,
		Sender:    sender,
		Network:   network,
		TxnType:   txnType,
		Summary:   summary,
	})
}

// LogSignApproved logs a completed signature.
func (a *Logger) LogSignApproved(authority, sender, network, txid string) {
	a.Log(Entry{
		Event:     EventSignApproved,
		Authority: authority,
		Sender:    sender,
		Network:   network,
		TxID:      txid,
	})
}

// LogSignRejected logs a rejection by policy, the user, a device, or a
// remote signer.
func (a *Logger) LogSignRejected(authority, sender, network, reason string) {
	a.Log(Entry{
		Event:     EventSignRejected,
		Authority: authority,
		Sender:    sender,
		Network:   network,
		Reason:    reason,
	})
}

// LogSignFailed logs a technical signing failure.
func (a *Logger) LogSignFailed(authority, sender, network, reason string) {
	a.Log(Entry{
		Event:     EventSignFailed,
		Authority: authority,
		Sender:    sender,
		Network:   network,
		Reason:    reason,
	})
}

// LogSubmitted logs a transaction handed to the network.
func (a *Logger) LogSubmitted(txid, network string) {
	a.Log(Entry{Event: EventSubmitted, TxID: txid, Network: network})
}

// LogConfirmed logs a confirmed transaction and its round.
func (a *Logger) LogConfirmed(txid, network string, round uint64) {
	a.Log(Entry{Event: EventConfirmed, TxID: txid, Network: network, Round: round})
}
