// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// avshell is the interactive wallet shell: account registration, session
// lock state, and transaction signing through the authorization pipeline.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/avault-algo/avault/internal/security"
	"github.com/avault-algo/avault/internal/util"
	"github.com/avault-algo/avault/internal/version"
)

var validNetworks = map[string]bool{
	"mainnet": true,
	"testnet": true,
	"betanet": true,
}

func main() {
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	dataDirFlag := flag.String("d", "", "Data directory (default: $AVAULT_DATA or ~/.avault)")
	networkFlag := flag.String("network", "", "Network to operate on (mainnet, testnet, betanet)")
	scriptFlag := flag.String("script", "", "Run commands from a script file and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("avshell %s\n", version.String())
		os.Exit(0)
	}

	if err := run(*dataDirFlag, *networkFlag, *scriptFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dataDirFlag, networkFlag, scriptPath string) error {
	dataDir := util.RequireDataDir(dataDirFlag)
	if err := util.EnsureDataDir(dataDir); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	util.InitLogger()

	// Best-effort process hardening: decrypted keys live in this process.
	if err := security.DisableCoreDumps(); err != nil {
		util.Logger.Warn("could not disable core dumps", "error", err)
	}
	if os.Getenv("AVAULT_NO_MLOCK") == "" {
		if err := security.LockMemory(); err != nil {
			util.Debug("memory not locked; keys may swap to disk", "error", err)
		}
	}

	cfg, err := util.LoadConfig(dataDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	network := cfg.Network
	if networkFlag != "" {
		network = networkFlag
	}
	if network == "" {
		network = "testnet"
	}
	if !validNetworks[network] {
		return fmt.Errorf("unknown network %q (want mainnet, testnet, or betanet)", network)
	}
	if !cfg.IsNetworkAllowed(network) {
		return fmt.Errorf("network %q is not in networks_allowed", network)
	}

	state, err := NewShellState(network, dataDir, &cfg)
	if err != nil {
		return err
	}
	defer state.Close()

	if scriptPath != "" {
		return runScriptMode(state, scriptPath)
	}
	return startREPL(state)
}
