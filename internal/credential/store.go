// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package credential is the wallet's stand-in for platform secure storage:
// an encrypted PIN verifier, per-account encrypted ed25519 key material, and
// the biometric-enabled flag. It exposes verify/derive operations only —
// decrypted key bytes are handed to the caller, who owns zeroing them; the
// store itself never retains plaintext keys.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/avault-algo/avault/internal/crypto"
)

// Common credential store errors
var (
	// ErrNoCredential indicates the store has never been initialized
	ErrNoCredential = errors.New("credential store not initialized")

	// ErrInvalidCredential indicates the supplied PIN is incorrect
	ErrInvalidCredential = errors.New("invalid credential")

	// ErrStoreLocked indicates the store is locked and requires unlock
	ErrStoreLocked = errors.New("credential store is locked")

	// ErrKeyNotFound indicates no key material is stored for the address
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyExists indicates key material already exists for the address
	ErrKeyExists = errors.New("key already exists")
)

const (
	metaFile    = "credentials.json"
	keysSubdir  = "keys"
	keyFileExt  = ".key"
	dirPerm     = 0700
	filePerm    = 0600
)

// metadata is the on-disk credential store header. The embedded
// crypto.CredentialMetadata carries the salt and sealed check value.
type metadata struct {
	crypto.CredentialMetadata
	HasPIN           bool `json:"has_pin"`
	BiometricEnabled bool `json:"biometric_enabled"`
}

// Store is a file-backed credential store. Safe for concurrent use.
// While unlocked it caches the PIN-derived master key; Lock destroys it.
type Store struct {
	dir    string
	prompt BiometricPrompt

	mu        sync.RWMutex
	meta      *metadata
	masterKey *crypto.SecureBytes // nil while locked
}

// Open returns a Store rooted at dir, loading existing metadata if present.
// The store starts locked. A nil prompt means biometrics are unavailable.
func Open(dir string, prompt BiometricPrompt) (*Store, error) {
	s := &Store{dir: dir, prompt: prompt}

	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential metadata: %w", err)
	}

	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse credential metadata: %w", err)
	}
	s.meta = &meta
	return s, nil
}

// Initialized reports whether the store has credential metadata.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta != nil
}

// HasCredential reports whether a non-empty PIN has been configured.
// A wallet without a PIN still has a (empty-PIN) master key so the
// envelope machinery stays uniform.
func (s *Store) HasCredential() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta != nil && s.meta.HasPIN
}

// Unlocked reports whether the master key is currently resident.
func (s *Store) Unlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masterKey != nil && !s.masterKey.IsEmpty()
}

// Initialize creates the credential metadata with the given PIN.
// An empty pin configures the no-PIN wallet. The store is left unlocked.
func (s *Store) Initialize(pin []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta != nil {
		return fmt.Errorf("credential store already initialized")
	}

	meta, masterKey, err := crypto.NewCredentialMetadata(pin)
	if err != nil {
		return fmt.Errorf("failed to create credential metadata: %w", err)
	}

	m := &metadata{
		CredentialMetadata: *meta,
		HasPIN:             len(pin) > 0,
	}
	if err := s.writeMetadataLocked(m); err != nil {
		crypto.ZeroBytes(masterKey)
		return err
	}

	s.meta = m
	s.setMasterKeyLocked(masterKey)
	return nil
}

// Verify checks the PIN against the sealed check value without changing
// lock state. Returns ErrInvalidCredential on mismatch.
func (s *Store) Verify(pin []byte) error {
	s.mu.RLock()
	meta := s.meta
	s.mu.RUnlock()

	if meta == nil {
		return ErrNoCredential
	}
	key, err := meta.VerifyAndDeriveMasterKey(pin)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	crypto.ZeroBytes(key)
	return nil
}

// Unlock verifies the PIN and caches the derived master key until Lock.
func (s *Store) Unlock(pin []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta == nil {
		return ErrNoCredential
	}
	masterKey, err := s.meta.VerifyAndDeriveMasterKey(pin)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	s.setMasterKeyLocked(masterKey)
	return nil
}

// Lock destroys the cached master key. Stored key material stays sealed
// on disk; decryption requires another Unlock.
func (s *Store) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.masterKey != nil {
		s.masterKey.Destroy()
		s.masterKey = nil
	}
}

// ChangePIN re-seals every stored key under a key derived from newPIN.
// The store must hold the current master key (unlocked) and oldPIN must
// verify. Key files are re-sealed to temporary names and swapped in only
// after all succeed.
func (s *Store) ChangePIN(oldPIN, newPIN []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta == nil {
		return ErrNoCredential
	}
	oldKey, err := s.meta.VerifyAndDeriveMasterKey(oldPIN)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	defer crypto.ZeroBytes(oldKey)

	newMeta, newKey, err := crypto.NewCredentialMetadata(newPIN)
	if err != nil {
		return fmt.Errorf("failed to create new credential metadata: %w", err)
	}

	addresses, err := s.listKeyAddressesLocked()
	if err != nil {
		crypto.ZeroBytes(newKey)
		return err
	}

	// Re-seal each key to a .new sibling first.
	staged := make([]string, 0, len(addresses))
	cleanup := func() {
		for _, p := range staged {
			_ = os.Remove(p)
		}
	}
	for _, addr := range addresses {
		path := s.keyPath(addr)
		envelope, err := os.ReadFile(path)
		if err != nil {
			crypto.ZeroBytes(newKey)
			cleanup()
			return fmt.Errorf("failed to read key for %s: %w", addr, err)
		}
		plaintext, err := crypto.Open(envelope, oldKey)
		if err != nil {
			crypto.ZeroBytes(newKey)
			cleanup()
			return fmt.Errorf("failed to decrypt key for %s: %w", addr, err)
		}
		resealed, err := crypto.Seal(plaintext, newKey)
		crypto.ZeroBytes(plaintext)
		if err != nil {
			crypto.ZeroBytes(newKey)
			cleanup()
			return fmt.Errorf("failed to re-seal key for %s: %w", addr, err)
		}
		stagedPath := path + ".new"
		if err := os.WriteFile(stagedPath, resealed, filePerm); err != nil {
			crypto.ZeroBytes(newKey)
			cleanup()
			return fmt.Errorf("failed to stage key for %s: %w", addr, err)
		}
		staged = append(staged, stagedPath)
	}

	// Swap staged files into place, then commit the new metadata.
	for _, addr := range addresses {
		path := s.keyPath(addr)
		if err := os.Rename(path+".new", path); err != nil {
			crypto.ZeroBytes(newKey)
			return fmt.Errorf("failed to swap key for %s: %w", addr, err)
		}
	}

	m := &metadata{
		CredentialMetadata: *newMeta,
		HasPIN:             len(newPIN) > 0,
		BiometricEnabled:   s.meta.BiometricEnabled,
	}
	if err := s.writeMetadataLocked(m); err != nil {
		crypto.ZeroBytes(newKey)
		return err
	}

	s.meta = m
	s.setMasterKeyLocked(newKey)
	return nil
}

// StoreKey seals the private key for the address. Requires unlock.
// The caller keeps ownership of priv and should zero it after the call.
func (s *Store) StoreKey(address string, priv []byte) error {
	if err := crypto.ValidatePrivateKey(priv); err != nil {
		return fmt.Errorf("refusing to store key for %s: %w", address, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta == nil {
		return ErrNoCredential
	}
	if s.masterKey == nil || s.masterKey.IsEmpty() {
		return ErrStoreLocked
	}

	path := s.keyPath(address)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrKeyExists, address)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("failed to create keys directory: %w", err)
	}

	var envelope []byte
	err := s.masterKey.WithBytes(func(mk []byte) error {
		var sealErr error
		envelope, sealErr = crypto.Seal(priv, mk)
		return sealErr
	})
	if err != nil {
		return fmt.Errorf("failed to seal key for %s: %w", address, err)
	}

	if err := os.WriteFile(path, envelope, filePerm); err != nil {
		return fmt.Errorf("failed to write key for %s: %w", address, err)
	}
	return nil
}

// DecryptKey returns the plaintext private key for the address.
// Requires unlock. The caller owns the returned bytes and must zero them
// when done, on every path.
func (s *Store) DecryptKey(ctx context.Context, address string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.meta == nil {
		return nil, ErrNoCredential
	}
	if s.masterKey == nil || s.masterKey.IsEmpty() {
		return nil, ErrStoreLocked
	}

	envelope, err := os.ReadFile(s.keyPath(address))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key for %s: %w", address, err)
	}

	var plaintext []byte
	err = s.masterKey.WithBytes(func(mk []byte) error {
		var openErr error
		plaintext, openErr = crypto.Open(envelope, mk)
		return openErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key for %s: %w", address, err)
	}
	return plaintext, nil
}

// DeleteKey removes stored key material for the address.
func (s *Store) DeleteKey(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.keyPath(address))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, address)
	}
	return err
}

// HasKey reports whether key material is stored for the address.
func (s *Store) HasKey(address string) bool {
	_, err := os.Stat(s.keyPath(address))
	return err == nil
}

// ListKeys returns the addresses with stored key material, sorted.
func (s *Store) ListKeys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listKeyAddressesLocked()
}

// IsBiometricEnabled reports the wallet-wide biometric flag.
func (s *Store) IsBiometricEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta != nil && s.meta.BiometricEnabled
}

// SetBiometricEnabled persists the wallet-wide biometric flag.
func (s *Store) SetBiometricEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta == nil {
		return ErrNoCredential
	}
	m := *s.meta
	m.BiometricEnabled = enabled
	if err := s.writeMetadataLocked(&m); err != nil {
		return err
	}
	s.meta = &m
	return nil
}

// ConfirmBiometric runs the platform biometric prompt. It must be called
// once per signing operation for biometric-gated keys; a prior success
// never carries over.
func (s *Store) ConfirmBiometric(ctx context.Context, reason string) error {
	s.mu.RLock()
	enabled := s.meta != nil && s.meta.BiometricEnabled
	prompt := s.prompt
	s.mu.RUnlock()

	if !enabled || prompt == nil {
		return ErrBiometricUnavailable
	}
	return prompt.Confirm(ctx, reason)
}

func (s *Store) keyPath(address string) string {
	return filepath.Join(s.dir, keysSubdir, address+keyFileExt)
}

func (s *Store) listKeyAddressesLocked() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, keysSubdir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list keys directory: %w", err)
	}

	var addresses []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, keyFileExt) {
			continue
		}
		addresses = append(addresses, strings.TrimSuffix(name, keyFileExt))
	}
	sort.Strings(addresses)
	return addresses, nil
}

// writeMetadataLocked writes metadata via a temp file + rename.
// Must be called with s.mu held.
func (s *Store) writeMetadataLocked(m *metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential metadata: %w", err)
	}
	if err := os.MkdirAll(s.dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	path := filepath.Join(s.dir, metaFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("failed to write credential metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to commit credential metadata: %w", err)
	}
	return nil
}

// setMasterKeyLocked replaces the cached master key, destroying any prior
// one. Takes ownership of key. Must be called with s.mu held.
func (s *Store) setMasterKeyLocked(key []byte) {
	if s.masterKey != nil {
		s.masterKey.Destroy()
	}
	s.masterKey = crypto.NewSecureBytes(key)
	crypto.ZeroBytes(key)
}
