// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package credential

import (
	"context"
	"errors"
)

// Biometric prompt errors
var (
	// ErrBiometricUnavailable indicates no biometric hardware or enrollment
	ErrBiometricUnavailable = errors.New("biometric authentication unavailable")

	// ErrBiometricDenied indicates the user failed or dismissed the prompt
	ErrBiometricDenied = errors.New("biometric authentication denied")
)

// BiometricPrompt abstracts the platform biometric confirmation API.
// Confirm blocks until the user completes or dismisses the prompt, or
// ctx is cancelled. A successful confirmation applies to exactly one
// operation.
type BiometricPrompt interface {
	Confirm(ctx context.Context, reason string) error
}

// NoBiometrics is the prompt used when the platform has no biometric
// support. Every confirmation fails with ErrBiometricUnavailable.
type NoBiometrics struct{}

// Confirm implements BiometricPrompt.
func (NoBiometrics) Confirm(context.Context, string) error {
	return ErrBiometricUnavailable
}

// PromptFunc adapts a function to the BiometricPrompt interface.
type PromptFunc func(ctx context.Context, reason string) error

// Confirm implements BiometricPrompt.
func (f PromptFunc) Confirm(ctx context.Context, reason string) error {
	return f(ctx, reason)
}
