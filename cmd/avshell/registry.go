// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package main

import (
	"fmt"

	"github.com/avault-algo/avault/internal/cmdspec"
	"github.com/avault-algo/avault/internal/command"
)

func mustRegister(registry *command.Registry, cmd *command.Command) {
	if err := registry.Register(cmd); err != nil {
		panic(fmt.Sprintf("failed to register command %s: %v", cmd.Name, err))
	}
}

// buildCommandRegistry declares every shell command and binds it to its
// handler. Registration conflicts are programmer errors, hence the panics.
func (s *ShellState) buildCommandRegistry() *command.Registry {
	registry := command.NewRegistry()

	addressArg := cmdspec.ArgSpec{Type: cmdspec.ArgTypeAddress}

	// Account commands.
	mustRegister(registry, &command.Command{
		Name:        "accounts",
		Aliases:     []string{"ls"},
		Usage:       "accounts",
		Description: "List registered accounts",
		Category:    command.CategoryAccounts,
		Handler:     command.HandlerFunc(s.cmdAccounts),
	})
	mustRegister(registry, &command.Command{
		Name:        "import",
		Usage:       "import [label]",
		Description: "Import an account from its 25-word mnemonic",
		LongHelp: "Prompts for a 25-word mnemonic (never echoed) and stores the key\n" +
			"encrypted in the credential store. The wallet must be unlocked.\n" +
			"Importing the mnemonic of a watch-only account upgrades it in place.",
		Category: command.CategoryAccounts,
		Handler:  command.HandlerFunc(s.cmdImport),
	})
	mustRegister(registry, &command.Command{
		Name:        "generate",
		Usage:       "generate [label]",
		Description: "Create a new account and show its recovery phrase",
		LongHelp: "Generates a fresh ed25519 account, stores the key encrypted in the\n" +
			"credential store, and prints the 25-word recovery phrase exactly once.\n" +
			"The wallet must be unlocked.",
		Category: command.CategoryAccounts,
		Handler:  command.HandlerFunc(s.cmdGenerate),
	})
	mustRegister(registry, &command.Command{
		Name:        "export",
		Usage:       "export <account>",
		Description: "Reveal the recovery phrase of a stored key",
		LongHelp: "Decrypts the account's signing key and prints its 25-word recovery\n" +
			"phrase. Asks for confirmation first: anyone who sees the phrase\n" +
			"controls the account. The wallet must be unlocked.",
		Category: command.CategoryAccounts,
		Handler:  command.HandlerFunc(s.cmdExport),
	})
	mustRegister(registry, &command.Command{
		Name:        "watch",
		Usage:       "watch <address> [label]",
		Description: "Track an address without its key",
		Category:    command.CategoryAccounts,
		Handler:     command.HandlerFunc(s.cmdWatch),
	})
	mustRegister(registry, &command.Command{
		Name:        "hardware",
		Usage:       "hardware <address> device=<id> [label]",
		Description: "Register an account that signs on a hardware device",
		LongHelp: "The device id must match a device entry in the configuration file.\n" +
			"Every signature for the account is approved on that device.",
		Category: command.CategoryAccounts,
		Handler:  command.HandlerFunc(s.cmdHardware),
	})
	mustRegister(registry, &command.Command{
		Name:        "remote",
		Usage:       "remote [<address> endpoint=<id> [label]]",
		Description: "List remote signer endpoints, or register a remote-signer account",
		LongHelp: "With no arguments, shows the health of every configured remote\n" +
			"signing endpoint. With an address and endpoint=<id>, registers an\n" +
			"account whose signatures are produced by that endpoint.",
		Category: command.CategoryAccounts,
		Handler:  command.HandlerFunc(s.cmdRemote),
	})
	mustRegister(registry, &command.Command{
		Name:        "rename",
		Usage:       "rename <account> <new-label>",
		Description: "Relabel a registered account",
		Category:    command.CategoryAccounts,
		Handler:     command.HandlerFunc(s.cmdRename),
		ArgSpecs:    []cmdspec.ArgSpec{addressArg},
	})
	mustRegister(registry, &command.Command{
		Name:        "remove",
		Aliases:     []string{"rm"},
		Usage:       "remove <account>",
		Description: "Remove an account from the registry",
		Category:    command.CategoryAccounts,
		Handler:     command.HandlerFunc(s.cmdRemove),
		ArgSpecs:    []cmdspec.ArgSpec{addressArg},
	})

	// Session commands.
	mustRegister(registry, &command.Command{
		Name:        "unlock",
		Usage:       "unlock [biometric]",
		Description: "Unlock the wallet with the PIN (or biometric)",
		Category:    command.CategorySession,
		Handler:     command.HandlerFunc(s.cmdUnlock),
		ArgSpecs: []cmdspec.ArgSpec{
			{Type: cmdspec.ArgTypeKeyword, Values: []string{"biometric"}},
		},
	})
	mustRegister(registry, &command.Command{
		Name:        "lock",
		Usage:       "lock",
		Description: "Lock the wallet immediately",
		Category:    command.CategorySession,
		Handler:     command.HandlerFunc(s.cmdLock),
	})
	mustRegister(registry, &command.Command{
		Name:        "pin",
		Usage:       "pin set",
		Description: "Set or change the wallet PIN",
		LongHelp: "First use sets the PIN that encrypts every stored key. Later uses\n" +
			"re-wrap the stored keys under a new PIN; the wallet must be unlocked.",
		Category: command.CategorySession,
		Handler:  command.HandlerFunc(s.cmdPin),
		ArgSpecs: []cmdspec.ArgSpec{
			{Type: cmdspec.ArgTypeKeyword, Values: []string{"set"}},
		},
	})
	mustRegister(registry, &command.Command{
		Name:        "biometric",
		Usage:       "biometric on|off",
		Description: "Toggle biometric confirmation for unlock and signing",
		Category:    command.CategorySession,
		Handler:     command.HandlerFunc(s.cmdBiometric),
		ArgSpecs: []cmdspec.ArgSpec{
			{Type: cmdspec.ArgTypeKeyword, Values: []string{"on", "off"}},
		},
	})
	mustRegister(registry, &command.Command{
		Name:        "timeout",
		Usage:       "timeout <minutes|never>",
		Description: "Set the inactivity auto-lock policy",
		Category:    command.CategorySession,
		Handler:     command.HandlerFunc(s.cmdTimeout),
		ArgSpecs: []cmdspec.ArgSpec{
			{Type: cmdspec.ArgTypeKeyword, Values: []string{"never"}},
		},
	})

	// Transaction commands.
	mustRegister(registry, &command.Command{
		Name:        "send",
		Usage:       "send <amount> <algo|asset-id> from <account> to <receiver> [note=<text>] [close=<addr>] [nowait]",
		Description: "Send ALGO or an asset",
		LongHelp: "Amounts are in ALGO for 'algo' and in whole base units for assets.\n" +
			"Sender must be a registered account; the receiver may be a label or\n" +
			"any valid address. The transaction is previewed with policy findings\n" +
			"and signed only after an explicit confirmation.\n\n" +
			"examples:\n" +
			"  send 1.5 algo from main to savings\n" +
			"  send 250 31566704 from main to exchange note=\"invoice 7\" nowait",
		Category: command.CategoryTransaction,
		Handler:  command.HandlerFunc(s.cmdSend),
		ArgSpecs: []cmdspec.ArgSpec{
			{Type: cmdspec.ArgTypeNumber},
			{Type: cmdspec.ArgTypeKeyword, Values: []string{"algo"}},
			{Type: cmdspec.ArgTypeKeyword, Values: []string{"from"}},
			addressArg,
			{Type: cmdspec.ArgTypeKeyword, Values: []string{"to"}},
			addressArg,
		},
	})
	mustRegister(registry, &command.Command{
		Name:        "rekey",
		Usage:       "rekey <account> to <authority> [nowait]",
		Description: "Delegate the account's signing authority",
		LongHelp: "After confirmation on the network, every transaction from the account\n" +
			"must be signed by the new authority. The authority must not itself be\n" +
			"rekeyed. The only way back is an unrekey signed by that authority.",
		Category: command.CategoryTransaction,
		Handler:  command.HandlerFunc(s.cmdRekey),
		ArgSpecs: []cmdspec.ArgSpec{
			addressArg,
			{Type: cmdspec.ArgTypeKeyword, Values: []string{"to"}},
			addressArg,
		},
	})
	mustRegister(registry, &command.Command{
		Name:        "unrekey",
		Usage:       "unrekey <account> [nowait]",
		Description: "Return signing authority to the account's own key",
		LongHelp: "Builds a rekey-to-self transaction. It must be signed by the current\n" +
			"authority, so that signer has to be reachable from this wallet.",
		Category: command.CategoryTransaction,
		Handler:  command.HandlerFunc(s.cmdUnrekey),
		ArgSpecs: []cmdspec.ArgSpec{addressArg},
	})
	mustRegister(registry, &command.Command{
		Name:        "keyreg",
		Usage:       "keyreg <account> online|offline [participation keys...]",
		Description: "Register or retire consensus participation keys",
		LongHelp: "online requires votekey=, selkey= and sproofkey= (base64) plus\n" +
			"votefirst= and votelast= rounds; dilution= defaults to the square\n" +
			"root of the participation window. offline retires the keys.",
		Category: command.CategoryTransaction,
		Handler:  command.HandlerFunc(s.cmdKeyreg),
		ArgSpecs: []cmdspec.ArgSpec{
			addressArg,
			{Type: cmdspec.ArgTypeKeyword, Values: []string{"online", "offline"}},
		},
	})

	// Signer commands.
	mustRegister(registry, &command.Command{
		Name:        "resolve",
		Usage:       "resolve <account>",
		Description: "Show who actually signs for an account",
		LongHelp: "Queries the network for the account's current authority and reports\n" +
			"the signing backend this wallet would use: a stored key, a hardware\n" +
			"device, a remote endpoint, or nothing.",
		Category: command.CategorySigners,
		Handler:  command.HandlerFunc(s.cmdResolve),
		ArgSpecs: []cmdspec.ArgSpec{addressArg},
	})
	mustRegister(registry, &command.Command{
		Name:        "devices",
		Usage:       "devices",
		Description: "Show configured hardware signing devices",
		Category:    command.CategorySigners,
		Handler:     command.HandlerFunc(s.cmdDevices),
	})

	// Information commands.
	mustRegister(registry, &command.Command{
		Name:        "status",
		Aliases:     []string{"st"},
		Usage:       "status",
		Description: "Show session and wallet status",
		Category:    command.CategoryInfo,
		Handler:     command.HandlerFunc(s.cmdStatus),
	})
	mustRegister(registry, &command.Command{
		Name:        "help",
		Aliases:     []string{"h", "?"},
		Usage:       "help [command]",
		Description: "Show available commands",
		Category:    command.CategoryInfo,
		Handler:     command.HandlerFunc(s.cmdHelp),
	})
	mustRegister(registry, &command.Command{
		Name:        "quit",
		Aliases:     []string{"exit", "q"},
		Usage:       "quit",
		Description: "Lock the wallet and leave the shell",
		Category:    command.CategoryInfo,
		Handler:     command.HandlerFunc(s.cmdQuit),
	})

	return registry
}
