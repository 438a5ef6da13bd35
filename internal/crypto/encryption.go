// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package crypto holds the wallet's secret-handling primitives: zeroization,
// PIN key derivation, the AES-GCM envelope used for stored key material, and
// public key validation. It performs no file I/O; the credential store owns
// where envelopes live.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters (OWASP recommended)
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // AES-256

	masterSaltLen = 32

	// checkPlaintext is the known value sealed in the Check field.
	// Decrypting it successfully proves the PIN without storing a PIN hash.
	checkPlaintext = "AVAULT_OK"
)

// DeriveMasterKey derives the credential master key from a PIN and salt.
// Uses Argon2id (memory-hard, GPU-resistant).
// Caller is responsible for zeroing the returned key when done.
func DeriveMasterKey(pin []byte, salt []byte) []byte {
	return argon2.IDKey(pin, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// Envelope stores encrypted content sealed under the master key.
type Envelope struct {
	EnvelopeVersion int    `json:"envelope_version"` // Always 1
	Nonce           string `json:"nonce"`            // Base64-encoded nonce for AES-GCM
	Ciphertext      string `json:"ciphertext"`       // Base64-encoded encrypted data
}

// Seal encrypts plaintext under the master key and returns the JSON envelope.
func Seal(plaintext, masterKey []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	env := Envelope{
		EnvelopeVersion: 1,
		Nonce:           base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:      base64.StdEncoding.EncodeToString(ciphertext),
	}
	return json.MarshalIndent(env, "", "  ")
}

// Open decrypts a JSON envelope under the master key.
func Open(envelopeJSON, masterKey []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(envelopeJSON, &env); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if env.EnvelopeVersion != 1 {
		return nil, fmt.Errorf("envelope_version %d not supported (expected 1)", env.EnvelopeVersion)
	}

	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plaintext, nil
}

// CredentialMetadata holds credential-store-wide encryption metadata:
// the master salt and a sealed check value for PIN verification.
type CredentialMetadata struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`  // Base64-encoded master salt
	Check   string `json:"check"` // Base64-encoded AES-GCM sealed verification value
	Created string `json:"created"`
}

// NewCredentialMetadata creates fresh metadata for the given PIN: a random
// master salt and the sealed check value. Returns the metadata and the
// derived master key. Caller owns zeroing the key.
func NewCredentialMetadata(pin []byte) (*CredentialMetadata, []byte, error) {
	salt := make([]byte, masterSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate master salt: %w", err)
	}

	masterKey := DeriveMasterKey(pin, salt)

	checkCiphertext, err := sealCheckValue(masterKey)
	if err != nil {
		ZeroBytes(masterKey)
		return nil, nil, fmt.Errorf("failed to create check value: %w", err)
	}

	meta := &CredentialMetadata{
		Version: 1,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Check:   base64.StdEncoding.EncodeToString(checkCiphertext),
		Created: time.Now().UTC().Format(time.RFC3339),
	}
	return meta, masterKey, nil
}

// MasterSalt returns the decoded master salt.
func (m *CredentialMetadata) MasterSalt() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.Salt)
}

// VerifyAndDeriveMasterKey verifies the PIN and returns the master key if valid.
// Returns the master key on success, or an error if the PIN is incorrect.
func (m *CredentialMetadata) VerifyAndDeriveMasterKey(pin []byte) ([]byte, error) {
	salt, err := m.MasterSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to decode master salt: %w", err)
	}

	masterKey := DeriveMasterKey(pin, salt)

	checkData, err := base64.StdEncoding.DecodeString(m.Check)
	if err != nil {
		ZeroBytes(masterKey)
		return nil, fmt.Errorf("failed to decode check value: %w", err)
	}

	plaintext, err := openCheckValue(checkData, masterKey)
	if err != nil {
		ZeroBytes(masterKey)
		return nil, fmt.Errorf("incorrect PIN")
	}
	if string(plaintext) != checkPlaintext {
		ZeroBytes(masterKey)
		return nil, fmt.Errorf("incorrect PIN (check mismatch)")
	}

	return masterKey, nil
}

// sealCheckValue encrypts the check plaintext with the master key.
// Returns raw bytes: nonce (12 bytes) + ciphertext + tag (16 bytes)
func sealCheckValue(masterKey []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, []byte(checkPlaintext), nil), nil
}

// openCheckValue decrypts the check value with the master key.
// Input is raw bytes: nonce (12 bytes) + ciphertext + tag (16 bytes)
func openCheckValue(checkData, masterKey []byte) ([]byte, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(checkData) < gcm.NonceSize() {
		return nil, fmt.Errorf("check data too short")
	}

	nonce := checkData[:gcm.NonceSize()]
	ciphertext := checkData[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
