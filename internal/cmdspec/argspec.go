// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package cmdspec describes command arguments for tab completion.
package cmdspec

// ArgType constants for completion argument types
const (
	ArgTypeAddress = "address" // registered account address or label
	ArgTypeKeyword = "keyword" // fixed keyword values
	ArgTypeNumber  = "number"  // numeric value (no completion)
	ArgTypeFile    = "file"    // file path
)

// ArgSpec describes one positional argument's completion behavior.
type ArgSpec struct {
	Type   string   `json:"type,omitempty"`   // One of ArgType* constants
	Values []string `json:"values,omitempty"` // For "keyword": valid values
}
