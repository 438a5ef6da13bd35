// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package dispatch routes signing requests to the backend that holds the
// account's signing authority and produces submission-ready artifacts.
//
// A dispatch resolves the authority fresh, gates on the session lock state,
// builds and policy-checks the transaction, signs via exactly one backend,
// and returns a SignedArtifact. The dispatcher retains no key material or
// device state across calls.
package dispatch

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	sdkcrypto "github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/avault-algo/avault/internal/audit"
	"github.com/avault-algo/avault/internal/authority"
	"github.com/avault-algo/avault/internal/crypto"
	"github.com/avault-algo/avault/internal/device"
	"github.com/avault-algo/avault/internal/policy"
	"github.com/avault-algo/avault/internal/protocol"
	"github.com/avault-algo/avault/internal/remote"
	"github.com/avault-algo/avault/internal/session"
	avtxn "github.com/avault-algo/avault/internal/txn"
	"github.com/avault-algo/avault/internal/util"
	"github.com/avault-algo/avault/internal/wallet"
)

// SignedArtifact is a signed transaction ready for submission.
type SignedArtifact struct {
	TxID    string
	Raw     []byte // msgpack-encoded SignedTxn
	Network string

	// AuthAddr is set when the signing authority differs from the sender.
	AuthAddr string
}

// Accounts is the registry lookup the dispatcher needs.
type Accounts interface {
	Get(address string) (*wallet.AccountRecord, error)
}

// Resolver yields the authoritative signer for an account on a network.
type Resolver interface {
	Resolve(ctx context.Context, rec *wallet.AccountRecord, network string) (authority.AuthoritativeSigner, error)
}

// Session gates dispatches on lock state and records signing activity.
type Session interface {
	Snapshot() session.AuthSession
	RecordActivity()
}

// Credentials decrypts local signing keys and confirms biometric presence.
type Credentials interface {
	DecryptKey(ctx context.Context, address string) ([]byte, error)
	ConfirmBiometric(ctx context.Context, reason string) error
}

// Policy evaluates built transactions before signing.
type Policy interface {
	Check(ctx context.Context, txn types.Transaction, expected policy.Expectation) ([]protocol.PolicyViolation, error)
}

// Params fetches suggested transaction parameters per network.
type Params interface {
	SuggestedParams(ctx context.Context, network string) (types.SuggestedParams, error)
}

// Devices routes signature requests to hardware devices.
type Devices interface {
	Sign(ctx context.Context, deviceID string, req protocol.SigRequestMessage) (*protocol.SigResponseMessage, error)
}

// Remotes routes signature requests to remote signing endpoints.
type Remotes interface {
	Sign(ctx context.Context, endpointID, address, txnSender string, payload []byte, description string) ([]byte, ed25519.PublicKey, error)
}

// Dispatcher is the unified signing entry point.
type Dispatcher struct {
	accounts Accounts
	resolver Resolver
	session  Session
	creds    Credentials
	policy   Policy
	params   Params
	devices  Devices
	remotes  Remotes
	audit    *audit.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithAccounts sets the account registry.
func WithAccounts(accounts Accounts) Option {
	return func(d *Dispatcher) error {
		d.accounts = accounts
		return nil
	}
}

// WithResolver sets the authority resolver.
func WithResolver(resolver Resolver) Option {
	return func(d *Dispatcher) error {
		d.resolver = resolver
		return nil
	}
}

// WithSession sets the auth session manager.
func WithSession(sess Session) Option {
	return func(d *Dispatcher) error {
		d.session = sess
		return nil
	}
}

// WithCredentials sets the credential store.
func WithCredentials(creds Credentials) Option {
	return func(d *Dispatcher) error {
		d.creds = creds
		return nil
	}
}

// WithPolicy sets the policy engine.
func WithPolicy(p Policy) Option {
	return func(d *Dispatcher) error {
		d.policy = p
		return nil
	}
}

// WithParams sets the suggested-params source.
func WithParams(params Params) Option {
	return func(d *Dispatcher) error {
		d.params = params
		return nil
	}
}

// WithDevices sets the hardware device manager.
func WithDevices(devices Devices) Option {
	return func(d *Dispatcher) error {
		d.devices = devices
		return nil
	}
}

// WithRemotes sets the remote signer manager.
func WithRemotes(remotes Remotes) Option {
	return func(d *Dispatcher) error {
		d.remotes = remotes
		return nil
	}
}

// WithAudit records signing decisions to the audit trail.
func WithAudit(a *audit.Logger) Option {
	return func(d *Dispatcher) error {
		d.audit = a
		return nil
	}
}

// New creates a Dispatcher from the given options.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.accounts == nil || d.resolver == nil || d.session == nil {
		return nil, fmt.Errorf("dispatcher requires accounts, resolver, and session")
	}
	if d.params == nil || d.policy == nil {
		return nil, fmt.Errorf("dispatcher requires params source and policy engine")
	}
	return d, nil
}

// Preview is what an approving surface shows before committing to Dispatch.
type Preview struct {
	Signer     authority.AuthoritativeSigner
	Summary    string
	Violations []protocol.PolicyViolation
}

// Preview resolves, builds, and policy-checks a request without consuming
// it or signing anything. The shell's confirm step runs on this.
func (d *Dispatcher) Preview(ctx context.Context, req *avtxn.SigningRequest) (*Preview, error) {
	signer, _, err := d.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	txn, err := d.build(ctx, req)
	if err != nil {
		return nil, err
	}

	violations, err := d.policy.Check(ctx, txn, policy.ExpectationFor(req))
	if err != nil {
		return nil, err
	}

	return &Preview{
		Signer:     signer,
		Summary:    avtxn.Summary(txn),
		Violations: violations,
	}, nil
}

// Dispatch signs a request via the backend holding its authority.
func (d *Dispatcher) Dispatch(ctx context.Context, req *avtxn.SigningRequest) (*SignedArtifact, error) {
	if req == nil {
		return nil, fmt.Errorf("nil signing request")
	}
	if !req.Consume() {
		return nil, ErrRequestConsumed
	}

	signer, snap, err := d.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if snap.Locked {
		return nil, ErrRequiresUnlock
	}

	txn, err := d.build(ctx, req)
	if err != nil {
		return nil, err
	}
	summary := avtxn.Summary(txn)

	if d.audit != nil {
		d.audit.LogSignRequest(signer.EffectiveAddress, req.Sender, req.Network, string(txn.Type), summary)
	}

	violations, err := d.policy.Check(ctx, txn, policy.ExpectationFor(req))
	if err != nil {
		d.auditOutcome(signer, req, "", err)
		return nil, err
	}
	if policy.HasCritical(violations) {
		err := fmt.Errorf("%w: %s", ErrPolicyRejected, criticalSummary(violations))
		d.auditOutcome(signer, req, "", err)
		return nil, err
	}

	payload := append([]byte("TX"), msgpack.Encode(txn)...)

	var sig []byte
	switch signer.Backend {
	case authority.BackendLocalKey:
		sig, err = d.signLocal(ctx, signer.EffectiveAddress, payload)
	case authority.BackendBiometricKey:
		sig, err = d.signBiometric(ctx, signer.EffectiveAddress, payload)
	case authority.BackendHardwareDevice:
		sig, err = d.signDevice(ctx, signer, req.Sender, payload, summary, violations)
	case authority.BackendRemoteSigner:
		sig, err = d.signRemote(ctx, signer, req.Sender, payload, summary)
	default:
		err = fmt.Errorf("account %s: %w", req.Sender, ErrNoAuthority)
	}
	if err != nil {
		d.auditOutcome(signer, req, "", err)
		return nil, err
	}

	var sigArr types.Signature
	copy(sigArr[:], sig)
	stxn := types.SignedTxn{
		Txn: txn,
		Sig: sigArr,
	}

	artifact := &SignedArtifact{
		TxID:    sdkcrypto.GetTxID(txn),
		Network: req.Network,
	}
	if signer.EffectiveAddress != req.Sender {
		authAddr, err := types.DecodeAddress(signer.EffectiveAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid authority address %s: %w", signer.EffectiveAddress, err)
		}
		stxn.AuthAddr = authAddr
		artifact.AuthAddr = signer.EffectiveAddress
	}
	artifact.Raw = msgpack.Encode(stxn)

	d.auditOutcome(signer, req, artifact.TxID, nil)
	d.session.RecordActivity()

	return artifact, nil
}

// resolve looks up the account and its authoritative signer, snapshotting
// the session at resolution time.
func (d *Dispatcher) resolve(ctx context.Context, req *avtxn.SigningRequest) (authority.AuthoritativeSigner, session.AuthSession, error) {
	var snap session.AuthSession

	rec, err := d.accounts.Get(req.Sender)
	if err != nil {
		return authority.AuthoritativeSigner{}, snap, fmt.Errorf("account %s: %w", req.Sender, err)
	}

	signer, err := d.resolver.Resolve(ctx, rec, req.Network)
	snap = d.session.Snapshot()
	if err != nil {
		return signer, snap, err
	}
	if !signer.Available() {
		return signer, snap, fmt.Errorf("account %s: %w", req.Sender, ErrNoAuthority)
	}
	return signer, snap, nil
}

func (d *Dispatcher) build(ctx context.Context, req *avtxn.SigningRequest) (types.Transaction, error) {
	sp, err := d.params.SuggestedParams(ctx, req.Network)
	if err != nil {
		return types.Transaction{}, err
	}
	return avtxn.Build(req, sp)
}

// signLocal decrypts the key for address, signs, and zeroes the key buffer
// on every path.
func (d *Dispatcher) signLocal(ctx context.Context, address string, payload []byte) ([]byte, error) {
	if d.creds == nil {
		return nil, fmt.Errorf("no credential store configured")
	}

	priv, err := d.creds.DecryptKey(ctx, address)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(priv)

	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("stored key for %s has invalid length %d", util.FormatAddressShort(address), len(priv))
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), payload), nil
}

// signBiometric requires a fresh biometric confirmation per operation, even
// when the session is already unlocked.
func (d *Dispatcher) signBiometric(ctx context.Context, address string, payload []byte) ([]byte, error) {
	if d.creds == nil {
		return nil, fmt.Errorf("no credential store configured")
	}
	reason := fmt.Sprintf("Sign transaction for %s", util.FormatAddressShort(address))
	if err := d.creds.ConfirmBiometric(ctx, reason); err != nil {
		return nil, err
	}
	return d.signLocal(ctx, address, payload)
}

func (d *Dispatcher) signDevice(ctx context.Context, signer authority.AuthoritativeSigner, sender string, payload []byte, summary string, violations []protocol.PolicyViolation) ([]byte, error) {
	if d.devices == nil {
		return nil, fmt.Errorf("no device manager configured")
	}

	resp, err := d.devices.Sign(ctx, signer.DeviceID, protocol.SigRequestMessage{
		Address:     signer.EffectiveAddress,
		TxnSender:   sender,
		Payload:     base64.StdEncoding.EncodeToString(payload),
		Description: summary,
		Violations:  violations,
	})
	if err != nil {
		return nil, err
	}

	sig, err := base64.StdEncoding.DecodeString(resp.Signature)
	if err != nil {
		return nil, fmt.Errorf("device returned malformed signature: %w", err)
	}
	pub, err := base64.StdEncoding.DecodeString(resp.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("device returned malformed public key: %w", err)
	}

	if err := d.verifySignature(signer.EffectiveAddress, pub, payload, sig); err != nil {
		return nil, fmt.Errorf("device %s: %w", signer.DeviceID, err)
	}
	return sig, nil
}

func (d *Dispatcher) signRemote(ctx context.Context, signer authority.AuthoritativeSigner, sender string, payload []byte, summary string) ([]byte, error) {
	if d.remotes == nil {
		return nil, fmt.Errorf("no remote signer clients configured")
	}

	sig, pub, err := d.remotes.Sign(ctx, signer.EndpointID, signer.EffectiveAddress, sender, payload, summary)
	if err != nil {
		return nil, err
	}

	if err := d.verifySignature(signer.EffectiveAddress, pub, payload, sig); err != nil {
		return nil, fmt.Errorf("remote signer %s: %w", signer.EndpointID, err)
	}
	return sig, nil
}

// verifySignature checks that an externally-produced signature is canonical,
// was made by the signing authority's key, and verifies over the payload.
func (d *Dispatcher) verifySignature(effectiveAddress string, pub, payload, sig []byte) error {
	if err := crypto.ValidatePublicKey(pub); err != nil {
		return fmt.Errorf("returned public key rejected: %w", err)
	}

	addr, err := types.DecodeAddress(effectiveAddress)
	if err != nil {
		return fmt.Errorf("invalid authority address %s: %w", effectiveAddress, err)
	}
	if !bytes.Equal(addr[:], pub) {
		return fmt.Errorf("returned key does not match signing authority %s", util.FormatAddressShort(effectiveAddress))
	}

	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("returned signature has invalid length %d", len(sig))
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), payload, sig) {
		return fmt.Errorf("returned signature does not verify")
	}
	return nil
}

// auditOutcome writes the final decision for a dispatch: approved on nil
// error, rejected when a decision-maker declined, failed otherwise.
func (d *Dispatcher) auditOutcome(signer authority.AuthoritativeSigner, req *avtxn.SigningRequest, txid string, err error) {
	if d.audit == nil {
		return
	}
	if err == nil {
		d.audit.LogSignApproved(signer.EffectiveAddress, req.Sender, req.Network, txid)
		return
	}
	if isRejection(err) {
		d.audit.LogSignRejected(signer.EffectiveAddress, req.Sender, req.Network, err.Error())
		return
	}
	d.audit.LogSignFailed(signer.EffectiveAddress, req.Sender, req.Network, err.Error())
}

// isRejection distinguishes decisions (user, device, remote operator,
// policy) from technical failures.
func isRejection(err error) bool {
	return errors.Is(err, ErrPolicyRejected) ||
		errors.Is(err, device.ErrDeviceRejected) ||
		errors.Is(err, device.ErrCancelled) ||
		errors.Is(err, remote.ErrRemoteDenied)
}

func criticalSummary(violations []protocol.PolicyViolation) string {
	var parts []string
	for _, v := range violations {
		if v.Severity == policy.SeverityCritical {
			parts = append(parts, fmt.Sprintf("%s (%s)", v.Message, v.Field))
		}
	}
	return strings.Join(parts, "; ")
}
