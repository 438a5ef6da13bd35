// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

/*
Package avaultsigner implements the server side of the avault remote signer
protocol, so you can run a signing service that avault wallets delegate to.

A remote signer is an HTTP endpoint holding a key on the wallet's behalf.
The wallet POSTs each unsigned transaction to /sign with a bearer token and
expects the ed25519 signature back; GET /health reports reachability.

# Quick Start

	import (
		"log"
		"net/http"

		"github.com/avault-algo/avault/sdk/go/avaultsigner"
	)

	signer := avaultsigner.NewKeySigner(priv)
	log.Printf("serving signatures for %s", signer.Address())

	// Optional: veto requests before they are signed.
	signer.Approve = func(ctx context.Context, req avaultsigner.Request) error {
		log.Printf("signing: %s", req.Description)
		if suspicious(req) {
			return &avaultsigner.Denied{Reason: "outside business hours"}
		}
		return nil
	}

	http.ListenAndServe(":9800", avaultsigner.NewHandler("your-token", signer))

On the wallet side, register the endpoint in config.yaml and the account in
the shell:

	remote_signers:
	  - id: treasury
	    url: http://signer.example.com:9800
	    token: your-token

	avault:testnet> remote <address> endpoint=treasury

# Refusals

Return *Denied from Sign (or the Approve hook) to refuse a request; the
wallet surfaces the reason to the operator. Any other error reads as a
server fault. Wrap ErrUnavailable to tell the wallet to try again later.

# Payloads

Request.Payload is the domain-separated transaction encoding, ready for
ed25519. Sign it exactly as received; do not hash or re-encode it.
*/
package avaultsigner
