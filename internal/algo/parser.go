// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package algo

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	sdkjson "github.com/algorand/go-algorand-sdk/v2/encoding/json"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// DecodeTransaction decodes a single msgpack-encoded unsigned transaction.
// This is the payload format carried to signing devices.
func DecodeTransaction(raw []byte) (types.Transaction, error) {
	var txn types.Transaction
	if err := msgpack.Decode(raw, &txn); err != nil {
		return types.Transaction{}, fmt.Errorf("failed to decode transaction msgpack: %w", err)
	}
	return txn, nil
}

// ParseTransactionFile reads and parses externally-built transactions,
// e.g. the output of `goal clerk send -o`.
func ParseTransactionFile(path string) ([]types.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return ParseTransactions(data)
}

// ParseTransactions auto-detects the encoding (JSON, base64 msgpack, or raw
// msgpack) and parses one transaction or an array of them.
func ParseTransactions(data []byte) ([]types.Transaction, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty input")
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		return parseTransactionJSON([]byte(trimmed))
	}

	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return parseTransactionMsgpack(decoded)
	}

	return parseTransactionMsgpack(data)
}

func parseTransactionJSON(jsonData []byte) ([]types.Transaction, error) {
	var txnArray []types.Transaction
	if err := sdkjson.Decode(jsonData, &txnArray); err == nil {
		if len(txnArray) == 0 {
			return nil, fmt.Errorf("empty transaction array")
		}
		return txnArray, nil
	}

	var txn types.Transaction
	if err := sdkjson.Decode(jsonData, &txn); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: not a valid transaction or transaction array: %w", err)
	}
	return []types.Transaction{txn}, nil
}

func parseTransactionMsgpack(msgpackData []byte) ([]types.Transaction, error) {
	var txn types.Transaction
	if err := msgpack.Decode(msgpackData, &txn); err == nil && txn.Type != "" {
		return []types.Transaction{txn}, nil
	}

	var txnArray []types.Transaction
	if err := msgpack.Decode(msgpackData, &txnArray); err != nil {
		return nil, fmt.Errorf("failed to parse msgpack: not a valid transaction or transaction array: %w", err)
	}
	if len(txnArray) == 0 {
		return nil, fmt.Errorf("empty transaction array")
	}
	return txnArray, nil
}
