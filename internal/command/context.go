// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package command

// Context carries REPL state into command handlers.
type Context struct {
	Network string
	DataDir string

	// RawArgs is the raw argument string before quote-stripping, for
	// commands that need to preserve their input verbatim.
	RawArgs string

	// State is the shell's own state; handlers defined on it ignore this,
	// standalone handlers type-assert it.
	State any
}
