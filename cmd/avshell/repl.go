// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/avault-algo/avault/cmd/avshell/internal/repl"
	"github.com/avault-algo/avault/internal/command"
	"github.com/avault-algo/avault/internal/version"
)

// startREPL runs the interactive shell until quit or EOF.
func startREPL(s *ShellState) error {
	fmt.Printf("avshell %s\n", version.Version)
	fmt.Printf("Network: %s — type 'help' for commands\n\n", s.network)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            s.prompt(),
		HistoryFile:       filepath.Join(os.Getenv("HOME"), ".avshell_history"),
		HistoryLimit:      1000,
		AutoComplete:      &repl.Completer{Registry: s.registry, Accounts: s.accountCompletions},
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize readline: %v\n", err)
		fmt.Fprintln(os.Stderr, "Falling back to basic mode...")
		return startBasicREPL(s)
	}
	defer rl.Close()

	// Surface background auto-locks between prompts.
	if err := s.session.SubscribeLockState(func(locked bool) {
		if locked {
			fmt.Println("\nSession locked.")
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: lock notifications unavailable: %v\n", err)
	}

	for {
		rl.SetPrompt(s.prompt())
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				fmt.Println("Use 'quit' or 'exit' to leave the shell")
			}
			continue
		} else if err == io.EOF {
			break
		}

		name, args := command.Parse(line)
		if name == "" {
			continue
		}
		if err := s.executeCommand(name, args, line); err != nil {
			if errors.Is(err, errExit) {
				break
			}
			fmt.Printf("Error: %v\n", err)
		}
	}

	fmt.Println("Goodbye!")
	return nil
}

// startBasicREPL is the line-at-a-time fallback for terminals readline
// cannot drive.
func startBasicREPL(s *ShellState) error {
	for {
		line, err := readLine(s.prompt())
		if err != nil {
			break
		}

		name, args := command.Parse(line)
		if name == "" {
			continue
		}
		if err := s.executeCommand(name, args, line); err != nil {
			if errors.Is(err, errExit) {
				break
			}
			fmt.Printf("Error: %v\n", err)
		}
	}
	fmt.Println("Goodbye!")
	return nil
}

// runScriptMode executes commands from a file, one per line, and stops at
// the first failure. Blank lines and #-comments are skipped.
func runScriptMode(s *ShellState, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	for i, raw := range strings.Split(string(data), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fmt.Printf("> %s\n", line)

		name, args := command.Parse(line)
		if name == "" {
			continue
		}
		if err := s.executeCommand(name, args, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			return fmt.Errorf("line %d (%s): %w", i+1, name, err)
		}
	}
	return nil
}
