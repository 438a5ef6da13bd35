// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package algo

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	sdkjson "github.com/algorand/go-algorand-sdk/v2/encoding/json"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

func testPayment(t *testing.T, amount uint64) types.Transaction {
	t.Helper()
	sender, err := types.DecodeAddress("AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAY5HFKQ")
	if err != nil {
		t.Fatalf("DecodeAddress() error = %v", err)
	}
	receiver, err := types.DecodeAddress("7777777777777777777777777777777777777777777777777774MSJUVU")
	if err != nil {
		t.Fatalf("DecodeAddress() error = %v", err)
	}
	return types.Transaction{
		Type: types.PaymentTx,
		Header: types.Header{
			Sender:      sender,
			Fee:         types.MicroAlgos(1000),
			FirstValid:  types.Round(1000),
			LastValid:   types.Round(2000),
			GenesisID:   "testnet-v1.0",
			GenesisHash: types.Digest{1, 2, 3},
		},
		PaymentTxnFields: types.PaymentTxnFields{
			Receiver: receiver,
			Amount:   types.MicroAlgos(amount),
		},
	}
}

func TestDecodeTransaction(t *testing.T) {
	txn := testPayment(t, 100000)
	raw := msgpack.Encode(&txn)

	got, err := DecodeTransaction(raw)
	if err != nil {
		t.Fatalf("DecodeTransaction() error = %v", err)
	}
	if got.Type != types.PaymentTx {
		t.Errorf("decoded type = %s, want %s", got.Type, types.PaymentTx)
	}
	if got.Amount != txn.Amount {
		t.Errorf("decoded amount = %d, want %d", got.Amount, txn.Amount)
	}

	if _, err := DecodeTransaction([]byte("garbage")); err == nil {
		t.Error("DecodeTransaction(garbage) should fail")
	}
}

func TestParseTransactionsJSON(t *testing.T) {
	txn := testPayment(t, 100000)

	t.Run("single object", func(t *testing.T) {
		got, err := ParseTransactions(sdkjson.Encode(&txn))
		if err != nil {
			t.Fatalf("ParseTransactions() error = %v", err)
		}
		if len(got) != 1 || got[0].Amount != txn.Amount {
			t.Errorf("parsed %d txns, first amount %d", len(got), got[0].Amount)
		}
	})

	t.Run("array", func(t *testing.T) {
		second := testPayment(t, 200000)
		got, err := ParseTransactions(sdkjson.Encode([]types.Transaction{txn, second}))
		if err != nil {
			t.Fatalf("ParseTransactions() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("parsed %d txns, want 2", len(got))
		}
		if got[1].Amount != second.Amount {
			t.Errorf("second amount = %d, want %d", got[1].Amount, second.Amount)
		}
	})

	t.Run("empty array", func(t *testing.T) {
		if _, err := ParseTransactions([]byte("[]")); err == nil {
			t.Error("ParseTransactions([]) should fail")
		}
	})
}

func TestParseTransactionsBase64(t *testing.T) {
	txn := testPayment(t, 100000)
	encoded := base64.StdEncoding.EncodeToString(msgpack.Encode(&txn))

	got, err := ParseTransactions([]byte(encoded + "\n"))
	if err != nil {
		t.Fatalf("ParseTransactions() error = %v", err)
	}
	if len(got) != 1 || got[0].Amount != txn.Amount {
		t.Errorf("parsed %d txns, first amount %d", len(got), got[0].Amount)
	}
}

func TestParseTransactionFile(t *testing.T) {
	txn := testPayment(t, 100000)
	path := filepath.Join(t.TempDir(), "txn.json")
	if err := os.WriteFile(path, sdkjson.Encode(&txn), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := ParseTransactionFile(path)
	if err != nil {
		t.Fatalf("ParseTransactionFile() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("parsed %d txns, want 1", len(got))
	}

	if _, err := ParseTransactionFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("ParseTransactionFile(missing) should fail")
	}
}

func TestParseTransactionsEmpty(t *testing.T) {
	if _, err := ParseTransactions([]byte("  \n")); err == nil {
		t.Error("ParseTransactions(blank) should fail")
	}
}
