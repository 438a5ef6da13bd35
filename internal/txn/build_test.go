// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package txn

import (
	"strings"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

func testParams() types.SuggestedParams {
	return types.SuggestedParams{
		Fee:             1000,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     make([]byte, 32),
		FirstRoundValid: 1000,
		LastRoundValid:  2000,
		FlatFee:         true,
	}
}

func TestBuildPayment(t *testing.T) {
	req := NewPayment("testnet", addrX, addrY, 2_500_000)
	req.Note = "rent"

	txn, err := Build(req, testParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if txn.Type != types.PaymentTx {
		t.Errorf("type = %v, want %v", txn.Type, types.PaymentTx)
	}
	if txn.Sender.String() != addrX {
		t.Errorf("sender = %s, want %s", txn.Sender, addrX)
	}
	if txn.Receiver.String() != addrY {
		t.Errorf("receiver = %s, want %s", txn.Receiver, addrY)
	}
	if uint64(txn.Amount) != 2_500_000 {
		t.Errorf("amount = %d, want 2500000", txn.Amount)
	}
	if string(txn.Note) != "rent" {
		t.Errorf("note = %q", txn.Note)
	}
	if !txn.CloseRemainderTo.IsZero() {
		t.Errorf("close-to set unexpectedly: %s", txn.CloseRemainderTo)
	}
}

func TestBuildPaymentWithCloseTo(t *testing.T) {
	req := NewPayment("testnet", addrX, addrY, 0)
	req.CloseTo = addrY

	txn, err := Build(req, testParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if txn.CloseRemainderTo.String() != addrY {
		t.Errorf("close-to = %s, want %s", txn.CloseRemainderTo, addrY)
	}
}

func TestBuildAssetTransfer(t *testing.T) {
	req := NewAssetTransfer("testnet", addrX, addrY, 31566704, 1500)

	txn, err := Build(req, testParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if txn.Type != types.AssetTransferTx {
		t.Errorf("type = %v, want %v", txn.Type, types.AssetTransferTx)
	}
	if txn.XferAsset != 31566704 {
		t.Errorf("asset = %d, want 31566704", txn.XferAsset)
	}
	if txn.AssetAmount != 1500 {
		t.Errorf("asset amount = %d, want 1500", txn.AssetAmount)
	}
	if txn.AssetReceiver.String() != addrY {
		t.Errorf("asset receiver = %s, want %s", txn.AssetReceiver, addrY)
	}
}

func TestBuildApplicationCall(t *testing.T) {
	req := NewApplicationCall("testnet", addrX, 1284326447, [][]byte{[]byte("swap"), []byte("exact_in")})

	txn, err := Build(req, testParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if txn.Type != types.ApplicationCallTx {
		t.Errorf("type = %v, want %v", txn.Type, types.ApplicationCallTx)
	}
	if uint64(txn.ApplicationID) != 1284326447 {
		t.Errorf("app id = %d, want 1284326447", txn.ApplicationID)
	}
	if txn.OnCompletion != types.NoOpOC {
		t.Errorf("on-completion = %v, want NoOp", txn.OnCompletion)
	}
	if len(txn.ApplicationArgs) != 2 || string(txn.ApplicationArgs[0]) != "swap" {
		t.Errorf("app args = %v", txn.ApplicationArgs)
	}
}

func TestBuildKeyReg(t *testing.T) {
	t.Run("online", func(t *testing.T) {
		req := NewOnlineKeyReg("testnet", addrX, b64Key(1, 32), b64Key(2, 32), b64Key(3, 64), 1000, 2000, 10000)

		txn, err := Build(req, testParams())
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if txn.Type != types.KeyRegistrationTx {
			t.Errorf("type = %v, want %v", txn.Type, types.KeyRegistrationTx)
		}
		if txn.VotePK == (types.VotePK{}) {
			t.Error("vote key not set")
		}
		if uint64(txn.VoteFirst) != 1000 || uint64(txn.VoteLast) != 2000 {
			t.Errorf("vote window = [%d, %d], want [1000, 2000]", txn.VoteFirst, txn.VoteLast)
		}
	})

	t.Run("offline", func(t *testing.T) {
		txn, err := Build(NewOfflineKeyReg("testnet", addrX), testParams())
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if txn.Type != types.KeyRegistrationTx {
			t.Errorf("type = %v, want %v", txn.Type, types.KeyRegistrationTx)
		}
		if txn.VotePK != (types.VotePK{}) {
			t.Error("offline keyreg carries a vote key")
		}
		if txn.Nonparticipation {
			t.Error("offline keyreg set nonparticipation")
		}
	})
}

func TestBuildRekey(t *testing.T) {
	txn, err := Build(NewRekey("testnet", addrX, addrY), testParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if txn.Type != types.PaymentTx {
		t.Errorf("type = %v, want %v", txn.Type, types.PaymentTx)
	}
	if txn.Sender != txn.Receiver {
		t.Error("rekey is not a self-payment")
	}
	if txn.Amount != 0 {
		t.Errorf("rekey amount = %d, want 0", txn.Amount)
	}
	if txn.RekeyTo.String() != addrY {
		t.Errorf("rekey-to = %s, want %s", txn.RekeyTo, addrY)
	}
}

func TestBuildRekeyReverse(t *testing.T) {
	txn, err := Build(NewRekeyReverse("testnet", addrX), testParams())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if txn.RekeyTo.String() != addrX {
		t.Errorf("rekey-to = %s, want the account itself", txn.RekeyTo)
	}
	if txn.Sender != txn.Receiver || txn.Amount != 0 {
		t.Error("unrekey is not a zero-amount self-payment")
	}
}

func TestBuildRejectsInvalidRequest(t *testing.T) {
	_, err := Build(NewPayment("testnet", "junk", addrY, 1), testParams())
	if err == nil {
		t.Fatal("Build() accepted an invalid sender")
	}
	if !strings.Contains(err.Error(), "sender") {
		t.Errorf("error does not name the bad field: %v", err)
	}
}
