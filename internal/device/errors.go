// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package device

import "errors"

// Sentinel errors for hardware device interactions.
var (
	// ErrNotConnected is returned when an operation requires a live connection.
	ErrNotConnected = errors.New("device not connected")

	// ErrDeviceBusy is returned when a signature request is already in flight.
	ErrDeviceBusy = errors.New("device busy with another request")

	// ErrDeviceDisconnected is returned when the connection drops while a
	// request is outstanding.
	ErrDeviceDisconnected = errors.New("device disconnected")

	// ErrDeviceTimeout is returned when the device does not answer a request
	// before its deadline.
	ErrDeviceTimeout = errors.New("device did not respond in time")

	// ErrDeviceRejected is returned when the device explicitly refuses to sign.
	ErrDeviceRejected = errors.New("rejected on device")

	// ErrCancelled is returned when the caller withdraws a pending request.
	ErrCancelled = errors.New("signature request cancelled")
)
