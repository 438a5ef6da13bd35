// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package avaultsigner

import (
	"context"
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// AuthScheme is the authentication scheme in the Authorization header.
// Per RFC 7235, scheme comparison is case-insensitive.
const AuthScheme = "avault"

// Request is one signing request from a wallet.
type Request struct {
	// Address is the signing authority the wallet believes this endpoint
	// holds. Refuse requests for addresses you do not serve.
	Address string

	// TxnSender is the transaction sender; it differs from Address when the
	// sender account has been rekeyed to this endpoint's key.
	TxnSender string

	// Payload is the byte string to sign, exactly as ed25519 must see it.
	Payload []byte

	// Description is the wallet's human-readable transaction summary.
	Description string
}

// Signer produces signatures for wallet requests.
type Signer interface {
	// Sign returns the signature over req.Payload and the public key that
	// produced it. Return *Denied to refuse; wrap ErrUnavailable for
	// temporary faults.
	Sign(ctx context.Context, req Request) (signature []byte, publicKey ed25519.PublicKey, err error)
}

// signPayload mirrors the wallet's /sign request body.
type signPayload struct {
	Address     string `json:"address"`
	TxnSender   string `json:"txn_sender"`
	Payload     string `json:"payload"`
	Description string `json:"description,omitempty"`
}

// signResult mirrors the wallet's /sign response body.
type signResult struct {
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
	Error     string `json:"error,omitempty"`
}

// NewHandler serves the remote signer protocol: GET /health and POST /sign,
// both behind the bearer token.
func NewHandler(token string, signer Signer) http.Handler {
	h := &handler{token: token, signer: signer}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /sign", h.sign)
	return mux
}

type handler struct {
	token  string
	signer Signer
}

// authenticate validates the "Authorization: avault <token>" header.
func (h *handler) authenticate(r *http.Request) bool {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, AuthScheme) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) == 1
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(r) {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handler) sign(w http.ResponseWriter, r *http.Request) {
	if !h.authenticate(r) {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	var body signPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	payload, err := base64.StdEncoding.DecodeString(body.Payload)
	if err != nil {
		http.Error(w, "payload is not base64", http.StatusBadRequest)
		return
	}

	sig, pub, err := h.signer.Sign(r.Context(), Request{
		Address:     body.Address,
		TxnSender:   body.TxnSender,
		Payload:     payload,
		Description: body.Description,
	})
	if err != nil {
		var denied *Denied
		switch {
		case errors.As(err, &denied):
			http.Error(w, denied.Reason, http.StatusForbidden)
		case errors.Is(err, ErrUnavailable):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(signResult{
		Signature: base64.StdEncoding.EncodeToString(sig),
		PublicKey: base64.StdEncoding.EncodeToString(pub),
	})
}
