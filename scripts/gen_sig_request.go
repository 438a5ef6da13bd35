// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

//go:build ignore

// Helper script to generate sig_request lines for driving avdevice by hand.
// Usage: go run scripts/gen_sig_request.go
package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/avault-algo/avault/internal/policy"
	"github.com/avault-algo/avault/internal/protocol"
	avtxn "github.com/avault-algo/avault/internal/txn"
)

func main() {
	sender := crypto.GenerateAccount()
	receiver := crypto.GenerateAccount()

	// In real usage the wallet fills these from the node
	sp := types.SuggestedParams{
		Fee:             1000,
		FirstRoundValid: 1000,
		LastRoundValid:  2000,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     make([]byte, 32),
		FlatFee:         true,
	}
	sp.GenesisHash[0] = 0x01 // Dummy genesis hash

	payment, err := transaction.MakePaymentTxn(
		sender.Address.String(),
		receiver.Address.String(),
		100_000, // 0.1 ALGO
		nil,
		"",
		sp,
	)
	if err != nil {
		panic(err)
	}
	printRequest("Payment request", "manual-1", payment, nil)

	rekey, err := transaction.MakePaymentTxn(
		sender.Address.String(),
		sender.Address.String(),
		0,
		nil,
		"",
		sp,
	)
	if err != nil {
		panic(err)
	}
	rekey.RekeyTo = receiver.Address
	printRequest("Rekey request (carries a policy warning)", "manual-2", rekey, []protocol.PolicyViolation{{
		Field:    "RekeyTo",
		Value:    receiver.Address.String(),
		Severity: policy.SeverityWarning,
		Message:  "This transaction will PERMANENTLY transfer signing authority to another address. You will lose control of this account.",
	}})

	closeOut, err := transaction.MakePaymentTxn(
		sender.Address.String(),
		receiver.Address.String(),
		0,
		nil,
		receiver.Address.String(),
		sp,
	)
	if err != nil {
		panic(err)
	}
	printRequest("Close-out request (carries a critical violation)", "manual-3", closeOut, []protocol.PolicyViolation{{
		Field:    "CloseRemainderTo",
		Value:    receiver.Address.String(),
		Severity: policy.SeverityCritical,
		Message:  "This transaction will close your account and send ALL remaining ALGO to another address.",
	}})

	fmt.Println("=== Example: drive a listening avdevice ===")
	fmt.Println(`avdevice                                                # terminal 1
( cat request.json; sleep 60 ) | nc -U ~/.avdevice/device.sock   # terminal 2

The first line nc prints is the device hello; the sig_response follows
once the request is approved or rejected on the device. Save one of the
JSON lines above as request.json.`)
}

func printRequest(title, id string, txn types.Transaction, violations []protocol.PolicyViolation) {
	payload := append([]byte("TX"), msgpack.Encode(txn)...)
	req := protocol.SigRequestMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.MsgTypeSigRequest, ID: id},
		Address:     txn.Sender.String(),
		TxnSender:   txn.Sender.String(),
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Description: avtxn.Summary(txn),
		Timestamp:   time.Now().Unix(),
		Violations:  violations,
	}
	line, err := json.Marshal(req)
	if err != nil {
		panic(err)
	}
	fmt.Printf("=== %s ===\n%s\n\n", title, line)
}
