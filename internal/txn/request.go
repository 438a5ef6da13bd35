// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package txn builds unsigned transactions from signing requests and renders
// the human-readable summaries shown wherever a holder approves one.
package txn

import (
	"fmt"
	"sync/atomic"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Kind discriminates the transaction kinds a SigningRequest can carry.
type Kind string

const (
	KindPayment         Kind = "payment"
	KindAssetTransfer   Kind = "asset_transfer"
	KindApplicationCall Kind = "application_call"
	KindKeyRegistration Kind = "key_registration"
	KindRekey           Kind = "rekey"
	KindRekeyReverse    Kind = "rekey_reverse"
)

// SigningRequest describes one transaction to authorize and sign. A request
// is immutable once constructed and is consumed exactly once by the
// dispatcher.
// All addresses must be resolved 58-character Algorand addresses.
type SigningRequest struct {
	Kind    Kind
	Sender  string
	Network string

	// Payment and asset transfer
	Receiver string
	Amount   uint64 // microAlgos for payments, base units for assets
	CloseTo  string // close-remainder-to (payment) or asset-close-to (asset transfer)
	Note     string

	// Asset transfer
	AssetID uint64

	// Application call
	AppID   uint64
	AppArgs [][]byte

	// Key registration
	Online        bool
	VoteKey       string // base64 encoded vote key
	SelectionKey  string // base64 encoded selection key
	StateProofKey string // base64 encoded state proof key
	VoteFirst     uint64
	VoteLast      uint64
	KeyDilution   uint64

	// Rekey
	RekeyTarget string // address receiving signing authority

	consumed atomic.Bool
}

// NewPayment creates a payment request in microAlgos.
func NewPayment(network, sender, receiver string, amount uint64) *SigningRequest {
	return &SigningRequest{
		Kind:     KindPayment,
		Network:  network,
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
	}
}

// NewAssetTransfer creates an asset transfer request in base units.
func NewAssetTransfer(network, sender, receiver string, assetID, amount uint64) *SigningRequest {
	return &SigningRequest{
		Kind:     KindAssetTransfer,
		Network:  network,
		Sender:   sender,
		Receiver: receiver,
		AssetID:  assetID,
		Amount:   amount,
	}
}

// NewApplicationCall creates a NoOp application call request.
func NewApplicationCall(network, sender string, appID uint64, args [][]byte) *SigningRequest {
	return &SigningRequest{
		Kind:    KindApplicationCall,
		Network: network,
		Sender:  sender,
		AppID:   appID,
		AppArgs: args,
	}
}

// NewOnlineKeyReg creates a key registration request that brings the account
// online for consensus participation.
func NewOnlineKeyReg(network, sender, voteKey, selectionKey, stateProofKey string, voteFirst, voteLast, keyDilution uint64) *SigningRequest {
	return &SigningRequest{
		Kind:          KindKeyRegistration,
		Network:       network,
		Sender:        sender,
		Online:        true,
		VoteKey:       voteKey,
		SelectionKey:  selectionKey,
		StateProofKey: stateProofKey,
		VoteFirst:     voteFirst,
		VoteLast:      voteLast,
		KeyDilution:   keyDilution,
	}
}

// NewOfflineKeyReg creates a key registration request that takes the account
// offline.
func NewOfflineKeyReg(network, sender string) *SigningRequest {
	return &SigningRequest{
		Kind:    KindKeyRegistration,
		Network: network,
		Sender:  sender,
	}
}

// NewRekey creates a request that moves the account's signing authority to
// newAuthority.
func NewRekey(network, sender, newAuthority string) *SigningRequest {
	return &SigningRequest{
		Kind:        KindRekey,
		Network:     network,
		Sender:      sender,
		RekeyTarget: newAuthority,
	}
}

// NewRekeyReverse creates a request that restores the account's own signing
// authority.
func NewRekeyReverse(network, sender string) *SigningRequest {
	return &SigningRequest{
		Kind:    KindRekeyReverse,
		Network: network,
		Sender:  sender,
	}
}

// Consume marks the request as dispatched. It reports whether this call won
// the request; a request signs at most once, so a second call returns false.
func (r *SigningRequest) Consume() bool {
	return r.consumed.CompareAndSwap(false, true)
}

// Validate checks the kind-specific parameters without touching the network.
func (r *SigningRequest) Validate() error {
	if r.Network == "" {
		return fmt.Errorf("network is required")
	}
	if _, err := types.DecodeAddress(r.Sender); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}

	switch r.Kind {
	case KindPayment:
		if _, err := types.DecodeAddress(r.Receiver); err != nil {
			return fmt.Errorf("invalid receiver address: %w", err)
		}
		if r.CloseTo != "" {
			if _, err := types.DecodeAddress(r.CloseTo); err != nil {
				return fmt.Errorf("invalid close-to address: %w", err)
			}
		}

	case KindAssetTransfer:
		if _, err := types.DecodeAddress(r.Receiver); err != nil {
			return fmt.Errorf("invalid receiver address: %w", err)
		}
		if r.AssetID == 0 {
			return fmt.Errorf("asset id is required")
		}
		if r.CloseTo != "" {
			if _, err := types.DecodeAddress(r.CloseTo); err != nil {
				return fmt.Errorf("invalid close-to address: %w", err)
			}
		}

	case KindApplicationCall:
		if r.AppID == 0 {
			return fmt.Errorf("application id is required")
		}

	case KindKeyRegistration:
		if r.Online {
			if r.VoteKey == "" || r.SelectionKey == "" || r.StateProofKey == "" {
				return fmt.Errorf("online key registration requires: votekey, selkey, sproofkey")
			}
			if r.VoteFirst == 0 || r.VoteLast == 0 {
				return fmt.Errorf("online key registration requires: votefirst and votelast must be > 0")
			}
			if r.VoteLast <= r.VoteFirst {
				return fmt.Errorf("votelast must be greater than votefirst")
			}
		}

	case KindRekey:
		if _, err := types.DecodeAddress(r.RekeyTarget); err != nil {
			return fmt.Errorf("invalid rekey target address: %w", err)
		}
		if r.RekeyTarget == r.Sender {
			return fmt.Errorf("rekey target equals the account; use unrekey to restore self-authority")
		}

	case KindRekeyReverse:
		// No kind-specific parameters.

	default:
		return fmt.Errorf("unknown transaction kind '%s'", r.Kind)
	}

	return nil
}
