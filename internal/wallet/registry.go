// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

const registryPerm = 0600

// registryFile is the on-disk shape of accounts.yaml.
type registryFile struct {
	Accounts []AccountRecord `yaml:"accounts"`
}

// Registry is the persisted account table. Safe for concurrent use.
// All reads return copies; mutations go through methods and are written
// to disk before they become visible.
type Registry struct {
	path string

	mu       sync.RWMutex
	accounts map[string]*AccountRecord // keyed by address
}

// LoadRegistry opens (or creates) the registry backed by path.
func LoadRegistry(path string) (*Registry, error) {
	r := &Registry{
		path:     path,
		accounts: make(map[string]*AccountRecord),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// reload replaces the in-memory table with the file contents.
func (r *Registry) reload() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read account registry: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse account registry: %w", err)
	}

	accounts := make(map[string]*AccountRecord, len(file.Accounts))
	for i := range file.Accounts {
		rec := file.Accounts[i]
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("invalid account registry entry: %w", err)
		}
		if _, dup := accounts[rec.Address]; dup {
			return fmt.Errorf("duplicate account registry entry for %s", rec.Address)
		}
		accounts[rec.Address] = &rec
	}

	r.mu.Lock()
	r.accounts = accounts
	r.mu.Unlock()
	return nil
}

// saveLocked writes the table via a temp file + rename. Must be called
// with r.mu held.
func (r *Registry) saveLocked() error {
	file := registryFile{Accounts: make([]AccountRecord, 0, len(r.accounts))}
	for _, rec := range r.accounts {
		file.Accounts = append(file.Accounts, *rec)
	}
	sort.Slice(file.Accounts, func(i, j int) bool {
		return file.Accounts[i].Address < file.Accounts[j].Address
	})

	data, err := yaml.Marshal(&file)
	if err != nil {
		return fmt.Errorf("failed to marshal account registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, registryPerm); err != nil {
		return fmt.Errorf("failed to write account registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to commit account registry: %w", err)
	}
	return nil
}

// Add inserts a new record. The record is validated and must not collide
// with an existing address.
func (r *Registry) Add(rec *AccountRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("account missing id")
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[rec.Address]; exists {
		return fmt.Errorf("%w: %s", ErrAddressExists, rec.Address)
	}
	cp := *rec
	r.accounts[rec.Address] = &cp
	if err := r.saveLocked(); err != nil {
		delete(r.accounts, rec.Address)
		return err
	}
	return nil
}

// Get returns a copy of the record for the address.
func (r *Registry) Get(address string) (*AccountRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.accounts[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	cp := *rec
	return &cp, nil
}

// GetByID returns a copy of the record with the given local id.
func (r *Registry) GetByID(id string) (*AccountRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.accounts {
		if rec.ID == id {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: id %s", ErrAccountNotFound, id)
}

// Has reports whether a record exists for the address.
func (r *Registry) Has(address string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.accounts[address]
	return ok
}

// List returns copies of all records, sorted by label then address.
func (r *Registry) List() []AccountRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AccountRecord, 0, len(r.accounts))
	for _, rec := range r.accounts {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// Rename updates the display label.
func (r *Registry) Rename(address, label string) error {
	return r.update(address, func(rec *AccountRecord) error {
		rec.Label = label
		return nil
	})
}

// Delete removes the record. Accounts are never removed implicitly;
// this is the only way out of the table.
func (r *Registry) Delete(address string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	delete(r.accounts, address)
	if err := r.saveLocked(); err != nil {
		r.accounts[address] = rec
		return err
	}
	return nil
}

// UpgradeWatchOnly converts a watch-only record to standard after its
// private key was imported. Any other source kind is rejected.
func (r *Registry) UpgradeWatchOnly(address string) error {
	return r.update(address, func(rec *AccountRecord) error {
		if rec.Kind != KindWatchOnly {
			return fmt.Errorf("%w: %s -> %s", ErrKindTransition, rec.Kind, KindStandard)
		}
		rec.Kind = KindStandard
		return nil
	})
}

// MarkRekeyed records an on-chain authority transfer. Allowed from
// standard (first rekey) or rekeyed (authority moved again).
func (r *Registry) MarkRekeyed(address, authorityAddress string, canSignLocally bool) error {
	return r.update(address, func(rec *AccountRecord) error {
		if rec.Kind != KindStandard && rec.Kind != KindRekeyed {
			return fmt.Errorf("%w: %s -> %s", ErrKindTransition, rec.Kind, KindRekeyed)
		}
		rec.Kind = KindRekeyed
		rec.AuthorityAddress = authorityAddress
		rec.CanSignLocally = canSignLocally
		return rec.Validate()
	})
}

// ClearRekeyed records an authority transfer back to the account itself.
func (r *Registry) ClearRekeyed(address string) error {
	return r.update(address, func(rec *AccountRecord) error {
		if rec.Kind != KindRekeyed {
			return fmt.Errorf("%w: %s -> %s", ErrKindTransition, rec.Kind, KindStandard)
		}
		rec.Kind = KindStandard
		rec.AuthorityAddress = ""
		rec.CanSignLocally = false
		return nil
	})
}

// update applies fn to a copy of the record and commits it if fn succeeds
// and the write lands.
func (r *Registry) update(address string, fn func(*AccountRecord) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	updated := *rec
	if err := fn(&updated); err != nil {
		return err
	}
	if updated.Address != rec.Address {
		return fmt.Errorf("account address is immutable")
	}
	r.accounts[address] = &updated
	if err := r.saveLocked(); err != nil {
		r.accounts[address] = rec
		return err
	}
	return nil
}
