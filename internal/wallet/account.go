// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package wallet holds the account registry: the persisted table of account
// records and their kinds. Records say what an account IS; where its
// signing authority currently lives on chain is the resolver's business.
package wallet

import (
	"errors"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/google/uuid"
)

// Common registry errors
var (
	// ErrAccountNotFound indicates no record exists for the address
	ErrAccountNotFound = errors.New("account not found")

	// ErrAddressExists indicates a record already exists for the address
	ErrAddressExists = errors.New("account address already exists")

	// ErrKindTransition indicates a disallowed account kind change
	ErrKindTransition = errors.New("invalid account kind transition")
)

// Kind classifies how an account's signing authority is exercised.
type Kind string

const (
	// KindStandard is an account whose key lives in the credential store
	KindStandard Kind = "standard"

	// KindWatchOnly is an address tracked without key material
	KindWatchOnly Kind = "watch_only"

	// KindHardwareDevice is an account whose key lives on a signing device
	KindHardwareDevice Kind = "hardware_device"

	// KindRemoteSigner is an account signed by a remote endpoint
	KindRemoteSigner Kind = "remote_signer"

	// KindRekeyed is an account whose authority was transferred on chain
	KindRekeyed Kind = "rekeyed"
)

// Valid reports whether k is a known account kind.
func (k Kind) Valid() bool {
	switch k {
	case KindStandard, KindWatchOnly, KindHardwareDevice, KindRemoteSigner, KindRekeyed:
		return true
	}
	return false
}

// AccountRecord describes one account the wallet tracks. Address is
// immutable once created; Kind changes only via the registry's transition
// methods.
type AccountRecord struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
	Kind    Kind   `yaml:"kind"`
	Label   string `yaml:"label"`

	// DeviceID routes signing for hardware_device accounts.
	DeviceID string `yaml:"device_id,omitempty"`

	// EndpointID routes signing for remote_signer accounts.
	EndpointID string `yaml:"endpoint_id,omitempty"`

	// AuthorityAddress is the locally-cached authority for rekeyed
	// accounts. Advisory only: the chain is the source of truth.
	AuthorityAddress string `yaml:"authority_address,omitempty"`

	// CanSignLocally records whether the wallet also holds the authority
	// account for a rekeyed record.
	CanSignLocally bool `yaml:"can_sign_locally,omitempty"`
}

// NewStandardAccount returns a record for a key held in the credential store.
func NewStandardAccount(address, label string) *AccountRecord {
	return &AccountRecord{ID: uuid.NewString(), Address: address, Kind: KindStandard, Label: label}
}

// NewWatchOnlyAccount returns a record tracked without key material.
func NewWatchOnlyAccount(address, label string) *AccountRecord {
	return &AccountRecord{ID: uuid.NewString(), Address: address, Kind: KindWatchOnly, Label: label}
}

// NewHardwareAccount returns a record signed by the given device.
func NewHardwareAccount(address, label, deviceID string) *AccountRecord {
	return &AccountRecord{ID: uuid.NewString(), Address: address, Kind: KindHardwareDevice, Label: label, DeviceID: deviceID}
}

// NewRemoteAccount returns a record signed by the given remote endpoint.
func NewRemoteAccount(address, label, endpointID string) *AccountRecord {
	return &AccountRecord{ID: uuid.NewString(), Address: address, Kind: KindRemoteSigner, Label: label, EndpointID: endpointID}
}

// Validate checks structural integrity of the record.
func (a *AccountRecord) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("account missing id")
	}
	if _, err := types.DecodeAddress(a.Address); err != nil {
		return fmt.Errorf("invalid account address %q: %w", a.Address, err)
	}
	if !a.Kind.Valid() {
		return fmt.Errorf("unknown account kind %q", a.Kind)
	}
	switch a.Kind {
	case KindHardwareDevice:
		if a.DeviceID == "" {
			return fmt.Errorf("hardware account %s missing device_id", a.Address)
		}
	case KindRemoteSigner:
		if a.EndpointID == "" {
			return fmt.Errorf("remote account %s missing endpoint_id", a.Address)
		}
	case KindRekeyed:
		if _, err := types.DecodeAddress(a.AuthorityAddress); err != nil {
			return fmt.Errorf("rekeyed account %s has invalid authority address: %w", a.Address, err)
		}
	}
	return nil
}

// DisplayName returns the label, or the abbreviated address when unlabeled.
func (a *AccountRecord) DisplayName() string {
	if a.Label != "" {
		return a.Label
	}
	if len(a.Address) <= 12 {
		return a.Address
	}
	return a.Address[:4] + ".." + a.Address[len(a.Address)-4:]
}
