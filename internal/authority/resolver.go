// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package authority decides who signs for an account: it reconciles the
// account's registry record with the chain's current auth-addr and routes
// to a signing backend. The chain is authoritative; locally-cached rekey
// state is advisory only.
package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/avault-algo/avault/internal/wallet"
)

// ErrAuthorityNotHeld indicates the account's signing authority rests with
// an account this wallet cannot act for (the authority is itself rekeyed).
var ErrAuthorityNotHeld = errors.New("signing authority not held")

// Backend enumerates how signing authority is exercised.
type Backend string

const (
	// BackendLocalKey signs in-process with a credential-store key
	BackendLocalKey Backend = "local_key"

	// BackendBiometricKey is a local key gated by a per-operation
	// biometric confirmation
	BackendBiometricKey Backend = "biometric_key"

	// BackendHardwareDevice routes to an external signing device
	BackendHardwareDevice Backend = "hardware_device"

	// BackendRemoteSigner routes to a remote signing endpoint
	BackendRemoteSigner Backend = "remote_signer"

	// BackendUnavailable means the wallet cannot sign for this account
	BackendUnavailable Backend = "unavailable"
)

// AuthoritativeSigner is the result of resolution: the address whose key
// must sign and the backend that exercises it. Produced fresh per signing
// attempt and never cached: delegation is network-scoped and can change
// under the wallet at any time.
type AuthoritativeSigner struct {
	EffectiveAddress string
	Backend          Backend

	// DeviceID is set for BackendHardwareDevice.
	DeviceID string

	// EndpointID is set for BackendRemoteSigner.
	EndpointID string
}

// Available reports whether the signer can actually sign.
func (s AuthoritativeSigner) Available() bool {
	return s.Backend != BackendUnavailable
}

// Source supplies on-chain authority lookups.
type Source interface {
	AuthorityAddress(ctx context.Context, address, network string) (string, error)
}

// Accounts is the registry lookup the resolver needs.
type Accounts interface {
	Get(address string) (*wallet.AccountRecord, error)
}

// Resolver maps an account record to its authoritative signer.
type Resolver struct {
	accounts Accounts
	source   Source

	// biometricEnabled gates local keys behind per-operation biometric
	// confirmation when true.
	biometricEnabled func() bool
}

// NewResolver returns a resolver over the given registry and chain source.
// biometricEnabled may be nil (treated as always false).
func NewResolver(accounts Accounts, source Source, biometricEnabled func() bool) *Resolver {
	if biometricEnabled == nil {
		biometricEnabled = func() bool { return false }
	}
	return &Resolver{accounts: accounts, source: source, biometricEnabled: biometricEnabled}
}

// Resolve determines the authoritative signer for the account on the given
// network. At most two authority queries are performed: one for the account
// itself and, when delegated, one for the authority account. Delegation
// resolves exactly one hop — an authority that is itself rekeyed terminates
// resolution with ErrAuthorityNotHeld rather than recursing.
func (r *Resolver) Resolve(ctx context.Context, rec *wallet.AccountRecord, network string) (AuthoritativeSigner, error) {
	unavailable := AuthoritativeSigner{EffectiveAddress: rec.Address, Backend: BackendUnavailable}

	authAddr, err := r.source.AuthorityAddress(ctx, rec.Address, network)
	if err != nil {
		return unavailable, fmt.Errorf("failed to resolve authority for %s: %w", rec.Address, err)
	}

	// Self-authoritative: backend follows the record's own kind.
	if authAddr == rec.Address {
		return r.selfSigner(rec), nil
	}

	// Delegated: the wallet can act only if it holds the authority account.
	authRec, err := r.accounts.Get(authAddr)
	if err != nil {
		if errors.Is(err, wallet.ErrAccountNotFound) {
			return unavailable, nil
		}
		return unavailable, fmt.Errorf("failed to look up authority account %s: %w", authAddr, err)
	}

	// One hop only: an authority that is itself rekeyed on chain is out of
	// reach for this wallet, and refusing to recurse prevents chains.
	authOfAuth, err := r.source.AuthorityAddress(ctx, authAddr, network)
	if err != nil {
		return unavailable, fmt.Errorf("failed to resolve authority for %s: %w", authAddr, err)
	}
	if authOfAuth != authAddr {
		return unavailable, fmt.Errorf("%w: authority %s for %s is itself rekeyed", ErrAuthorityNotHeld, authAddr, rec.Address)
	}

	signer := r.selfSigner(authRec)
	if !signer.Available() {
		return unavailable, nil
	}
	return signer, nil
}

// selfSigner maps a record that holds its own authority to a backend.
func (r *Resolver) selfSigner(rec *wallet.AccountRecord) AuthoritativeSigner {
	signer := AuthoritativeSigner{EffectiveAddress: rec.Address}

	switch rec.Kind {
	case wallet.KindStandard, wallet.KindRekeyed:
		// A rekeyed record whose chain authority is itself carries stale
		// local state; its key material is still in the credential store.
		if r.biometricEnabled() {
			signer.Backend = BackendBiometricKey
		} else {
			signer.Backend = BackendLocalKey
		}
	case wallet.KindHardwareDevice:
		signer.Backend = BackendHardwareDevice
		signer.DeviceID = rec.DeviceID
	case wallet.KindRemoteSigner:
		signer.Backend = BackendRemoteSigner
		signer.EndpointID = rec.EndpointID
	default:
		signer.Backend = BackendUnavailable
	}
	return signer
}
