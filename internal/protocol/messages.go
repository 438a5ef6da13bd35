// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package protocol defines the message types shared between the wallet and
// its hardware signing devices (wired or wireless).
// This is the single source of truth for the device wire protocol.
package protocol

// Device message type constants
const (
	// MsgTypeHello is sent by a device after accepting a connection
	MsgTypeHello = "hello"

	// Signing message types
	MsgTypeSigRequest  = "sig_request"
	MsgTypeSigResponse = "sig_response"
	MsgTypeCancel      = "cancel"

	// Housekeeping message types
	MsgTypeStatus = "status"
	MsgTypeError  = "error"
)

// BaseMessage is the base structure for all device messages
type BaseMessage struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"` // Unique request ID for correlation
}

// HelloMessage announces a device's identity and signing key. It is the
// first message on every connection.
type HelloMessage struct {
	BaseMessage
	DeviceID  string `json:"device_id"`
	PublicKey string `json:"public_key"` // base64 ed25519 public key
	Firmware  string `json:"firmware,omitempty"`
}

// PolicyViolation represents a dangerous transaction field detected by the policy linter
type PolicyViolation struct {
	Field    string `json:"field"`    // Field name (e.g., "RekeyTo", "CloseRemainderTo")
	Value    string `json:"value"`    // The problematic value
	Severity string `json:"severity"` // "warning" or "critical"
	Message  string `json:"message"`  // Human-readable explanation
}

// SigRequestMessage asks a device to display and sign a transaction
type SigRequestMessage struct {
	BaseMessage
	Address     string            `json:"address"`              // Signing authority address (which key to use)
	TxnSender   string            `json:"txn_sender"`           // Actual transaction sender
	Payload     string            `json:"payload"`              // base64 msgpack-encoded unsigned transaction
	Description string            `json:"description"`          // Human-readable transaction description
	Timestamp   int64             `json:"timestamp"`            // Unix timestamp of request
	Violations  []PolicyViolation `json:"violations,omitempty"` // Policy violations detected
}

// SigResponseMessage carries the device's decision. Its ID must echo the
// request's correlation ID.
type SigResponseMessage struct {
	BaseMessage
	Approved  bool   `json:"approved"`
	Signature string `json:"signature,omitempty"`  // base64 ed25519 signature over the domain-separated payload
	PublicKey string `json:"public_key,omitempty"` // base64 public key that produced the signature
	Reason    string `json:"reason,omitempty"`     // Optional rejection reason
}

// CancelMessage withdraws a pending sig_request with the same ID
type CancelMessage struct {
	BaseMessage
}

// StatusMessage reports device state
type StatusMessage struct {
	BaseMessage
	State     string `json:"state"`                // "ready" or "busy"
	PendingID string `json:"pending_id,omitempty"` // correlation ID being worked on
}

// ErrorMessage is sent for error conditions
type ErrorMessage struct {
	BaseMessage
	Error string `json:"error"`
}
