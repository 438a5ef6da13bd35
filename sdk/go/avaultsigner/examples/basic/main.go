// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// basic runs a remote signer from an ed25519 seed file, logging every
// request it signs.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/avault-algo/avault/sdk/go/avaultsigner"
)

func main() {
	seedPath := flag.String("seed", "signer.key", "Path to the base64 ed25519 seed (created if missing)")
	token := flag.String("token", "", "Bearer token wallets must present (required)")
	listen := flag.String("listen", ":9800", "Listen address")
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "Error: -token is required")
		os.Exit(1)
	}

	priv, err := loadOrCreateSeed(*seedPath)
	if err != nil {
		log.Fatal(err)
	}

	signer := avaultsigner.NewKeySigner(priv)
	signer.Approve = func(_ context.Context, req avaultsigner.Request) error {
		if req.TxnSender != req.Address {
			log.Printf("signing for rekeyed sender %s: %s", req.TxnSender, req.Description)
		} else {
			log.Printf("signing: %s", req.Description)
		}
		return nil
	}

	log.Printf("serving signatures for %s on %s", signer.Address(), *listen)
	log.Fatal(http.ListenAndServe(*listen, avaultsigner.NewHandler(*token, signer)))
}

func loadOrCreateSeed(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		seed, decErr := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil || len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("%s does not hold an ed25519 seed", path)
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(priv.Seed())
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0600); err != nil {
		return nil, err
	}
	return priv, nil
}
