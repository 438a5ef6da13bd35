// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package repl holds the argument grammars for the wallet shell's
// transaction commands, plus tab completion. Parsing stops at text:
// account references stay unresolved and amounts stay strings, so the
// command handlers own validation against the registry and the chain.
package repl

import (
	"fmt"
	"strconv"
	"strings"
)

// SendParams is a parsed send command.
type SendParams struct {
	Amount  string // raw amount text; converted once the asset is known
	Asset   string // "algo" or a numeric asset ID
	From    string // account reference (address or label)
	To      string // receiver reference (address or label)
	Note    string
	CloseTo string
	Wait    bool // wait for confirmation (default true)
}

// RekeyParams is a parsed rekey or unrekey command.
type RekeyParams struct {
	Account   string
	Authority string // empty for unrekey
	Wait      bool
}

// KeyRegParams is a parsed keyreg command.
type KeyRegParams struct {
	Account       string
	Online        bool
	VoteKey       string
	SelectionKey  string
	StateProofKey string
	VoteFirst     uint64
	VoteLast      uint64
	KeyDilution   uint64
	Wait          bool
}

// ParseSend parses:
//
//	send <amount> <algo|asset-id> from <account> to <receiver> [note=<text>] [close=<addr>] [nowait]
func ParseSend(args []string) (*SendParams, error) {
	usage := fmt.Errorf("usage: send <amount> <algo|asset-id> from <account> to <receiver> [note=<text>] [close=<addr>] [nowait]\n" +
		"example: send 1.5 algo from main to savings")

	if len(args) < 6 {
		return nil, usage
	}
	if findKeyword(args, "from") != 2 || findKeyword(args, "to") != 4 {
		return nil, usage
	}

	params := &SendParams{
		Amount: args[0],
		Asset:  strings.ToLower(args[1]),
		From:   args[3],
		To:     args[5],
		Wait:   true,
	}

	for _, arg := range args[6:] {
		lower := strings.ToLower(arg)
		switch {
		case lower == "nowait":
			params.Wait = false
		case strings.HasPrefix(lower, "note="):
			params.Note = arg[len("note="):]
		case strings.HasPrefix(lower, "close="):
			params.CloseTo = arg[len("close="):]
		default:
			return nil, fmt.Errorf("unrecognized argument: %s", arg)
		}
	}

	return params, nil
}

// ParseRekey parses:
//
//	rekey <account> to <authority> [nowait]
//	unrekey <account> [nowait]
func ParseRekey(args []string, isUnrekey bool) (*RekeyParams, error) {
	if isUnrekey {
		if len(args) < 1 {
			return nil, fmt.Errorf("usage: unrekey <account> [nowait]")
		}
		params := &RekeyParams{Account: args[0], Wait: true}
		if err := parseWaitFlags(args[1:], params); err != nil {
			return nil, err
		}
		return params, nil
	}

	if len(args) < 3 || findKeyword(args, "to") != 1 {
		return nil, fmt.Errorf("usage: rekey <account> to <authority> [nowait]\n" +
			"example: rekey main to cold")
	}
	params := &RekeyParams{Account: args[0], Authority: args[2], Wait: true}
	if err := parseWaitFlags(args[3:], params); err != nil {
		return nil, err
	}
	return params, nil
}

// ParseKeyReg parses:
//
//	keyreg <account> online votekey=<b64> selkey=<b64> sproofkey=<b64> votefirst=<round> votelast=<round> [dilution=<n>] [nowait]
//	keyreg <account> offline [nowait]
func ParseKeyReg(args []string) (*KeyRegParams, error) {
	usage := fmt.Errorf("usage: keyreg <account> online votekey=<b64> selkey=<b64> sproofkey=<b64> votefirst=<round> votelast=<round> [dilution=<n>] [nowait]\n" +
		"       keyreg <account> offline [nowait]")

	if len(args) < 2 {
		return nil, usage
	}

	params := &KeyRegParams{Account: args[0], Wait: true}
	switch strings.ToLower(args[1]) {
	case "online":
		params.Online = true
	case "offline":
	default:
		return nil, usage
	}

	for _, arg := range args[2:] {
		lower := strings.ToLower(arg)
		var err error
		switch {
		case lower == "nowait":
			params.Wait = false
		case !params.Online:
			return nil, fmt.Errorf("unrecognized argument: %s", arg)
		case strings.HasPrefix(lower, "votekey="):
			params.VoteKey = arg[len("votekey="):]
		case strings.HasPrefix(lower, "selkey="):
			params.SelectionKey = arg[len("selkey="):]
		case strings.HasPrefix(lower, "sproofkey="):
			params.StateProofKey = arg[len("sproofkey="):]
		case strings.HasPrefix(lower, "votefirst="):
			params.VoteFirst, err = parseRound("votefirst", arg[len("votefirst="):])
		case strings.HasPrefix(lower, "votelast="):
			params.VoteLast, err = parseRound("votelast", arg[len("votelast="):])
		case strings.HasPrefix(lower, "dilution="):
			params.KeyDilution, err = parseRound("dilution", arg[len("dilution="):])
		default:
			return nil, fmt.Errorf("unrecognized argument: %s", arg)
		}
		if err != nil {
			return nil, err
		}
	}

	if params.Online {
		if params.VoteKey == "" || params.SelectionKey == "" || params.StateProofKey == "" {
			return nil, fmt.Errorf("online keyreg requires votekey=, selkey= and sproofkey=")
		}
		if params.VoteFirst == 0 || params.VoteLast == 0 {
			return nil, fmt.Errorf("online keyreg requires votefirst= and votelast=")
		}
	}

	return params, nil
}

func parseWaitFlags(args []string, params *RekeyParams) error {
	for _, arg := range args {
		if strings.EqualFold(arg, "nowait") {
			params.Wait = false
			continue
		}
		return fmt.Errorf("unrecognized argument: %s", arg)
	}
	return nil
}

func parseRound(name, value string) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, value)
	}
	return n, nil
}

// findKeyword returns the index of the first case-insensitive match of
// keyword in args, or -1.
func findKeyword(args []string, keyword string) int {
	for i, arg := range args {
		if strings.EqualFold(arg, keyword) {
			return i
		}
	}
	return -1
}
