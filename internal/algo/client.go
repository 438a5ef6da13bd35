// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package algo is the node access layer: algod client construction plus the
// small set of queries the signing core needs.
package algo

import (
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/avault-algo/avault/internal/util"
)

// Client returns an algod client for the given network using config settings.
// Returns an error if config is nil or algod is not configured for the network.
func Client(network string, config *util.Config) (*algod.Client, error) {
	if config == nil {
		return nil, fmt.Errorf("algod not configured: no config provided")
	}
	algodConfig := config.AlgodFor(network)
	if algodConfig.Server == "" {
		return nil, fmt.Errorf("algod not configured: %s_algod_server is empty in config.yaml", network)
	}
	return algod.MakeClient(algodConfig.Address(), algodConfig.Token)
}

// AuthorityAddress returns the address currently holding signing authority
// for address: the on-chain auth-addr when the account is rekeyed, the
// address itself otherwise.
func AuthorityAddress(ctx context.Context, client *algod.Client, address string) (string, error) {
	acctInfo, err := client.AccountInformation(address).Do(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to query account info for %s: %w", address, err)
	}
	if acctInfo.AuthAddr != "" && acctInfo.AuthAddr != address {
		return acctInfo.AuthAddr, nil
	}
	return address, nil
}

// SuggestedParams fetches current transaction parameters from the node.
func SuggestedParams(ctx context.Context, client *algod.Client) (types.SuggestedParams, error) {
	sp, err := client.SuggestedParams().Do(ctx)
	if err != nil {
		return types.SuggestedParams{}, fmt.Errorf("failed to get suggested params: %w", err)
	}
	return sp, nil
}
