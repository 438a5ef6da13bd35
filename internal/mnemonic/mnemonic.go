// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package mnemonic converts between 25-word Algorand mnemonics and ed25519
// signing keys. Algorand mnemonics carry the key itself (no passphrase, no
// derivation path), so import and export are exact inverses.
package mnemonic

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	algomnemonic "github.com/algorand/go-algorand-sdk/v2/mnemonic"
)

// WordCount is the length of an Algorand account mnemonic.
const WordCount = 25

// Import derives the private key and address from a 25-word mnemonic.
// Whitespace between words is normalized; word case is not.
func Import(phrase string) (ed25519.PrivateKey, string, error) {
	words := strings.Fields(strings.ToLower(phrase))
	if len(words) != WordCount {
		return nil, "", fmt.Errorf("mnemonic must be %d words, got %d", WordCount, len(words))
	}

	priv, err := algomnemonic.ToPrivateKey(strings.Join(words, " "))
	if err != nil {
		return nil, "", fmt.Errorf("invalid mnemonic: %w", err)
	}

	account, err := sdkcrypto.AccountFromPrivateKey(priv)
	if err != nil {
		return nil, "", fmt.Errorf("invalid mnemonic key: %w", err)
	}
	return priv, account.Address.String(), nil
}

// Export renders a private key as its 25-word mnemonic.
func Export(priv []byte) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("invalid private key length: expected %d bytes, got %d", ed25519.PrivateKeySize, len(priv))
	}
	return algomnemonic.FromPrivateKey(priv)
}

// Generate creates a fresh account and returns its mnemonic, private key,
// and address.
func Generate() (string, ed25519.PrivateKey, string, error) {
	account := sdkcrypto.GenerateAccount()
	phrase, err := algomnemonic.FromPrivateKey(account.PrivateKey)
	if err != nil {
		return "", nil, "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return phrase, account.PrivateKey, account.Address.String(), nil
}
