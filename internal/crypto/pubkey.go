// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package crypto

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
)

// ValidatePublicKey checks that pub is a canonical ed25519 public key:
// 32 bytes that decode to a valid point on the curve. Non-canonical field
// encodings are rejected. Applied to imported keys and to public keys
// returned by hardware devices before a signature is trusted.
func ValidatePublicKey(pub []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return fmt.Errorf("public key is not a canonical curve point: %w", err)
	}
	return nil
}

// ValidatePrivateKey checks that priv is a well-formed ed25519 private key
// whose embedded public half is a canonical curve point.
func ValidatePrivateKey(priv []byte) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return ValidatePublicKey(priv[ed25519.PrivateKeySize-ed25519.PublicKeySize:])
}
