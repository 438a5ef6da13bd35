// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package avaultsigner

import (
	"context"
	"crypto/ed25519"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// KeySigner signs with a single in-memory ed25519 key. It refuses requests
// for any other signing authority.
type KeySigner struct {
	// Approve, when set, is consulted before every signature. Return *Denied
	// to refuse the request.
	Approve func(ctx context.Context, req Request) error

	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	address string
}

// NewKeySigner wraps an ed25519 private key.
func NewKeySigner(priv ed25519.PrivateKey) *KeySigner {
	pub := priv.Public().(ed25519.PublicKey)
	var addr types.Address
	copy(addr[:], pub)
	return &KeySigner{
		priv:    priv,
		pub:     pub,
		address: addr.String(),
	}
}

// Address returns the account address of the held key, for registering the
// endpoint with a wallet.
func (s *KeySigner) Address() string {
	return s.address
}

// Sign implements Signer.
func (s *KeySigner) Sign(ctx context.Context, req Request) ([]byte, ed25519.PublicKey, error) {
	if req.Address != "" && req.Address != s.address {
		return nil, nil, &Denied{Reason: "unknown signing authority " + req.Address}
	}
	if s.Approve != nil {
		if err := s.Approve(ctx, req); err != nil {
			return nil, nil, err
		}
	}
	return ed25519.Sign(s.priv, req.Payload), s.pub, nil
}
