// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package algo

import (
	"fmt"
	"strconv"
	"strings"
)

// MicroAlgosPerAlgo is the base-unit scale of the native token.
const MicroAlgosPerAlgo = 1_000_000

// ParseAlgos converts a decimal ALGO amount string to microalgos.
func ParseAlgos(amount string) (uint64, error) {
	return ParseAmount(amount, 6)
}

// ParseAmount converts a decimal token amount string to base units for a
// token with the given number of decimals. String arithmetic throughout;
// float conversion would lose precision above 2^53 base units.
func ParseAmount(amount string, decimals uint64) (uint64, error) {
	if amount == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(amount, "-") {
		return 0, fmt.Errorf("amount cannot be negative")
	}

	parts := strings.Split(amount, ".")
	if len(parts) > 2 {
		return 0, fmt.Errorf("invalid amount format: multiple decimal points")
	}

	integerPart := parts[0]
	fractionalPart := ""
	if len(parts) == 2 {
		fractionalPart = parts[1]
	}
	// ".5" reads as "0.5"
	if integerPart == "" {
		integerPart = "0"
	}

	if uint64(len(fractionalPart)) > decimals {
		return 0, fmt.Errorf("amount has too many decimal places (max %d)", decimals)
	}

	// "1.5" with 6 decimals -> "1" + "500000" -> 1500000
	padding := int(decimals) - len(fractionalPart)
	baseUnitsStr := integerPart + fractionalPart + strings.Repeat("0", padding)

	baseUnitsStr = strings.TrimLeft(baseUnitsStr, "0")
	if baseUnitsStr == "" {
		baseUnitsStr = "0"
	}

	baseUnits, err := strconv.ParseUint(baseUnitsStr, 10, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return 0, fmt.Errorf("amount too large (exceeds uint64 capacity)")
		}
		return 0, fmt.Errorf("invalid amount format: %s", amount)
	}

	return baseUnits, nil
}
