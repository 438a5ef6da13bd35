// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package repl

import (
	"sort"
	"strings"

	"github.com/avault-algo/avault/internal/cmdspec"
	"github.com/avault-algo/avault/internal/command"
)

// Completer implements readline.AutoComplete over the command registry.
// The first token completes against command names and aliases; later
// tokens complete from the command's declared ArgSpecs, with account
// references supplied by the shell.
type Completer struct {
	Registry *command.Registry

	// Accounts returns completion candidates for address arguments
	// (registered labels and addresses). May be nil.
	Accounts func() []string
}

// Do returns completion suffixes for the partial word at pos.
func (c *Completer) Do(line []rune, pos int) ([][]rune, int) {
	text := string(line[:pos])
	tokens := strings.Fields(text)

	partial := ""
	if len(tokens) > 0 && !strings.HasSuffix(text, " ") && !strings.HasSuffix(text, "\t") {
		partial = tokens[len(tokens)-1]
		tokens = tokens[:len(tokens)-1]
	}

	var candidates []string
	if len(tokens) == 0 {
		candidates = c.commandNames()
	} else {
		cmd, ok := c.Registry.Lookup(strings.ToLower(tokens[0]))
		if !ok {
			return nil, 0
		}
		argIndex := len(tokens) - 1
		if argIndex >= len(cmd.ArgSpecs) {
			return nil, 0
		}
		candidates = c.argCandidates(cmd.ArgSpecs[argIndex])
	}

	return suggest(candidates, partial)
}

func (c *Completer) commandNames() []string {
	var names []string
	for _, cmd := range c.Registry.All() {
		names = append(names, cmd.Name)
		names = append(names, cmd.Aliases...)
	}
	sort.Strings(names)
	return names
}

func (c *Completer) argCandidates(spec cmdspec.ArgSpec) []string {
	switch spec.Type {
	case cmdspec.ArgTypeAddress:
		if c.Accounts == nil {
			return nil
		}
		return c.Accounts()
	case cmdspec.ArgTypeKeyword:
		return spec.Values
	default:
		return nil
	}
}

// suggest returns the tail of every candidate matching partial, the form
// readline expects from an AutoComplete implementation.
func suggest(candidates []string, partial string) ([][]rune, int) {
	lower := strings.ToLower(partial)
	var out [][]rune
	for _, cand := range candidates {
		if len(cand) >= len(partial) && strings.HasPrefix(strings.ToLower(cand), lower) {
			out = append(out, []rune(cand[len(partial):]+" "))
		}
	}
	return out, len(partial)
}
