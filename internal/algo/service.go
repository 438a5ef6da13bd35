// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package algo

import (
	"context"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/avault-algo/avault/internal/util"
)

// Service answers the chain queries the wallet needs, caching one algod
// client per network.
type Service struct {
	cfg *util.Config

	mu      sync.Mutex
	clients map[string]*algod.Client
}

// NewService creates a node access service over the configured networks.
func NewService(cfg *util.Config) *Service {
	return &Service{
		cfg:     cfg,
		clients: make(map[string]*algod.Client),
	}
}

func (s *Service) client(network string) (*algod.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[network]; ok {
		return client, nil
	}
	client, err := Client(network, s.cfg)
	if err != nil {
		return nil, err
	}
	s.clients[network] = client
	return client, nil
}

// AuthorityAddress returns the current on-chain signing authority for the
// address on the given network.
func (s *Service) AuthorityAddress(ctx context.Context, address, network string) (string, error) {
	client, err := s.client(network)
	if err != nil {
		return "", err
	}
	return AuthorityAddress(ctx, client, address)
}

// SuggestedParams fetches current transaction parameters for the network.
func (s *Service) SuggestedParams(ctx context.Context, network string) (types.SuggestedParams, error) {
	client, err := s.client(network)
	if err != nil {
		return types.SuggestedParams{}, err
	}
	return SuggestedParams(ctx, client)
}

// SendRawTransaction submits signed transaction bytes to the network and
// returns the node-reported transaction id.
func (s *Service) SendRawTransaction(ctx context.Context, network string, raw []byte) (string, error) {
	client, err := s.client(network)
	if err != nil {
		return "", err
	}
	return client.SendRawTransaction(raw).Do(ctx)
}

// PendingTransaction reports the pool status of a submitted transaction.
func (s *Service) PendingTransaction(ctx context.Context, network, txid string) (models.PendingTransactionInfoResponse, error) {
	client, err := s.client(network)
	if err != nil {
		return models.PendingTransactionInfoResponse{}, err
	}
	result, _, err := client.PendingTransactionInformation(txid).Do(ctx)
	return result, err
}
