// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package txn

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Build maps a signing request onto an unsigned transaction using the given
// network parameters.
func Build(req *SigningRequest, sp types.SuggestedParams) (types.Transaction, error) {
	if err := req.Validate(); err != nil {
		return types.Transaction{}, err
	}

	switch req.Kind {
	case KindPayment:
		txnObj, err := transaction.MakePaymentTxn(
			req.Sender,
			req.Receiver,
			req.Amount,
			[]byte(req.Note),
			req.CloseTo,
			sp,
		)
		if err != nil {
			return types.Transaction{}, fmt.Errorf("failed to create payment transaction: %w", err)
		}
		return txnObj, nil

	case KindAssetTransfer:
		txnObj, err := transaction.MakeAssetTransferTxn(
			req.Sender,
			req.Receiver,
			req.Amount,
			[]byte(req.Note),
			sp,
			req.CloseTo,
			req.AssetID,
		)
		if err != nil {
			return types.Transaction{}, fmt.Errorf("failed to create asset transfer transaction: %w", err)
		}
		return txnObj, nil

	case KindApplicationCall:
		sender, err := types.DecodeAddress(req.Sender)
		if err != nil {
			return types.Transaction{}, fmt.Errorf("invalid sender address: %w", err)
		}
		txnObj, err := transaction.MakeApplicationNoOpTx(
			req.AppID,
			req.AppArgs,
			nil, // accounts
			nil, // foreign apps
			nil, // foreign assets
			sp,
			sender,
			[]byte(req.Note),
			types.Digest{},
			[32]byte{},
			types.Address{},
		)
		if err != nil {
			return types.Transaction{}, fmt.Errorf("failed to create application call transaction: %w", err)
		}
		return txnObj, nil

	case KindKeyRegistration:
		voteKey, selectionKey, stateProofKey := "", "", ""
		voteFirst, voteLast, keyDilution := uint64(0), uint64(0), uint64(0)
		if req.Online {
			voteKey = req.VoteKey
			selectionKey = req.SelectionKey
			stateProofKey = req.StateProofKey
			voteFirst = req.VoteFirst
			voteLast = req.VoteLast
			keyDilution = req.KeyDilution
		}
		txnObj, err := transaction.MakeKeyRegTxnWithStateProofKey(
			req.Sender,
			nil, // note
			sp,
			voteKey,
			selectionKey,
			stateProofKey,
			voteFirst,
			voteLast,
			keyDilution,
			false, // nonpart - never set to true
		)
		if err != nil {
			return types.Transaction{}, fmt.Errorf("failed to create keyreg transaction: %w", err)
		}
		return txnObj, nil

	case KindRekey:
		return buildRekey(req.Sender, req.RekeyTarget, sp)

	case KindRekeyReverse:
		// Rekeying back to the account itself restores self-authority.
		return buildRekey(req.Sender, req.Sender, sp)
	}

	return types.Transaction{}, fmt.Errorf("unknown transaction kind '%s'", req.Kind)
}

// buildRekey creates the zero-amount self-payment that carries a RekeyTo
// field.
func buildRekey(account, target string, sp types.SuggestedParams) (types.Transaction, error) {
	txnObj, err := transaction.MakePaymentTxn(
		account,
		account, // Send to self
		0,       // 0 amount
		nil,     // No note
		"",      // No close remainder to
		sp,
	)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("failed to create rekey transaction: %w", err)
	}

	rekeyAddr, err := types.DecodeAddress(target)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("invalid rekey address: %w", err)
	}
	txnObj.RekeyTo = rekeyAddr

	return txnObj, nil
}
