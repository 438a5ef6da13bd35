// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package command provides the registry the wallet shell's REPL commands
// register into, plus the tokenizer that splits user input into them.
package command

import "github.com/avault-algo/avault/internal/cmdspec"

// Command represents a REPL command with metadata
type Command struct {
	Name        string            // Primary command name
	Aliases     []string          // Alternative names (e.g., "q" for "quit")
	Usage       string            // Usage string: "send <amount> algo from <account> to <receiver>"
	Description string            // One-line description
	LongHelp    string            // Multi-line detailed help (optional)
	Category    string            // "Transaction Commands", "Session Commands", etc.
	Handler     Handler           // Command execution handler
	ArgSpecs    []cmdspec.ArgSpec // Argument completion specs (ordered by position)
}

// Handler is the interface all command handlers implement.
type Handler interface {
	Execute(args []string, ctx *Context) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(args []string, ctx *Context) error

// Execute implements the Handler interface.
func (f HandlerFunc) Execute(args []string, ctx *Context) error {
	return f(args, ctx)
}

// Category constants for organizing commands
const (
	CategoryAccounts    = "Account Commands"
	CategorySession     = "Session Commands"
	CategoryTransaction = "Transaction Commands"
	CategorySigners     = "Signer Commands"
	CategoryInfo        = "Information"
)
