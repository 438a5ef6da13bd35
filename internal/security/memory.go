// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package security hardens the wallet process against key material leaving
// resident memory.
package security

import (
	"fmt"
	"os"
	"syscall"
)

// LockMemory pins all current and future pages so decrypted keys never
// reach swap. Requires CAP_IPC_LOCK or a generous RLIMIT_MEMLOCK.
func LockMemory() error {
	if err := syscall.Mlockall(syscall.MCL_CURRENT | syscall.MCL_FUTURE); err != nil {
		return fmt.Errorf("mlockall: %w (grant with: sudo setcap cap_ipc_lock+ep %s)", err, os.Args[0])
	}
	return nil
}

// DisableCoreDumps sets the core rlimit to zero so a crash cannot write
// key material to disk.
func DisableCoreDumps() error {
	rlimit := syscall.Rlimit{Cur: 0, Max: 0}
	if err := syscall.Setrlimit(syscall.RLIMIT_CORE, &rlimit); err != nil {
		return fmt.Errorf("disabling core dumps: %w", err)
	}
	return nil
}
