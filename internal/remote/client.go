// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package remote implements the HTTP client for remote signing endpoints:
// non-local authorities that hold a key on the wallet's behalf and answer
// signature requests over the network.
package remote

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avault-algo/avault/internal/util"
)

// Sentinel errors for remote signing.
var (
	// ErrRemoteDenied is returned when the remote signer explicitly refuses
	// to sign.
	ErrRemoteDenied = errors.New("signing denied by remote signer")

	// ErrRemoteUnavailable is returned when the remote signer cannot be
	// reached or reports itself unavailable.
	ErrRemoteUnavailable = errors.New("remote signer unavailable")
)

// defaultTimeout bounds one round trip to a remote signer.
const defaultTimeout = 30 * time.Second

// signPayload is the request body for the /sign endpoint.
type signPayload struct {
	Address     string `json:"address"`               // signing authority the remote holds
	TxnSender   string `json:"txn_sender"`            // actual transaction sender
	Payload     string `json:"payload"`               // base64 msgpack-encoded unsigned transaction
	Description string `json:"description,omitempty"` // human-readable transaction description
}

// signResult is the response body for the /sign endpoint.
type signResult struct {
	Signature string `json:"signature"`       // base64 ed25519 signature
	PublicKey string `json:"public_key"`      // base64 key that produced the signature
	Error     string `json:"error,omitempty"` // server-side failure detail
}

// Client talks to one configured remote signing endpoint.
type Client struct {
	endpointID string
	baseURL    string
	token      string
	client     *http.Client
}

// NewClient creates a client for the given remote signer configuration.
func NewClient(cfg util.RemoteSignerConfig) *Client {
	return &Client{
		endpointID: cfg.ID,
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		token:      cfg.Token,
		client:     &http.Client{Timeout: defaultTimeout},
	}
}

// EndpointID returns the configured endpoint identifier.
func (c *Client) EndpointID() string {
	return c.endpointID
}

// Health checks if the remote signer is reachable.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "avault "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == 200
}

// Sign forwards an unsigned transaction to the remote signer and returns the
// signature and the public key that produced it. An explicit refusal maps to
// ErrRemoteDenied; connectivity failures map to ErrRemoteUnavailable.
func (c *Client) Sign(ctx context.Context, address, txnSender string, payload []byte, description string) (signature []byte, publicKey ed25519.PublicKey, err error) {
	body, err := json.Marshal(signPayload{
		Address:     address,
		TxnSender:   txnSender,
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Description: description,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/sign", bytes.NewBuffer(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "avault "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == 401:
		return nil, nil, fmt.Errorf("%w: invalid or missing token", ErrRemoteDenied)
	case resp.StatusCode == 403:
		reason, _ := io.ReadAll(resp.Body)
		if len(reason) > 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrRemoteDenied, strings.TrimSpace(string(reason)))
		}
		return nil, nil, ErrRemoteDenied
	case resp.StatusCode == 503:
		return nil, nil, ErrRemoteUnavailable
	case resp.StatusCode != 200:
		detail, _ := io.ReadAll(resp.Body)
		return nil, nil, fmt.Errorf("remote signer error (%d): %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result signResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return nil, nil, fmt.Errorf("remote signing failed: %s", result.Error)
	}

	sig, err := base64.StdEncoding.DecodeString(result.Signature)
	if err != nil {
		return nil, nil, fmt.Errorf("remote signer returned an invalid signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, nil, fmt.Errorf("remote signer returned a %d-byte signature", len(sig))
	}
	pub, err := base64.StdEncoding.DecodeString(result.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("remote signer returned an invalid public key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("remote signer returned a %d-byte public key", len(pub))
	}

	return sig, ed25519.PublicKey(pub), nil
}
