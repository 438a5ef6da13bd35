// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package crypto

import (
	"crypto/subtle"
	"runtime"
	"sync"
)

// ZeroBytes securely overwrites a byte slice with zeros
// Uses constant-time operation to prevent compiler optimization
func ZeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	// Use subtle.ConstantTimeCopy to prevent compiler optimization
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
	// Force garbage collection to clear any copies
	runtime.KeepAlive(b)
}

// SecureBytes wraps sensitive bytes (PINs, derived keys) with secure cleanup.
type SecureBytes struct {
	data []byte
	lock sync.RWMutex
}

// NewSecureBytes creates a new SecureBytes from a byte slice.
// The input bytes are copied, so the caller can safely zero the original.
func NewSecureBytes(b []byte) *SecureBytes {
	if b == nil {
		return &SecureBytes{data: nil}
	}
	data := make([]byte, len(b))
	copy(data, b)
	return &SecureBytes{data: data}
}

// WithBytes provides scoped access to the underlying bytes without copies.
// The data is protected by a read lock during the callback execution.
//
// The caller must NOT store or leak the byte slice outside the callback;
// it is only valid during the callback execution.
func (s *SecureBytes) WithBytes(fn func([]byte) error) error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.data == nil {
		return fn(nil)
	}
	return fn(s.data)
}

// Destroy securely zeros the data.
// After calling Destroy, the SecureBytes should not be used.
func (s *SecureBytes) Destroy() {
	s.lock.Lock()
	defer s.lock.Unlock()
	ZeroBytes(s.data)
	s.data = nil
}

// IsEmpty returns true if the data is empty or already destroyed.
func (s *SecureBytes) IsEmpty() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.data) == 0
}
