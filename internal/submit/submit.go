// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package submit sends signed artifacts to the network and watches for
// confirmation. Transient node failures retry with bounded backoff; a
// rejection by the ledger is terminal and never retried.
package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"

	"github.com/avault-algo/avault/internal/audit"
	"github.com/avault-algo/avault/internal/dispatch"
)

// ErrLedgerRejected marks a submission the node evaluated and refused
// (overspend, stale validity window, logic failure). Retrying cannot help.
var ErrLedgerRejected = errors.New("transaction rejected by ledger")

const (
	// DefaultAttempts bounds retries for transient submission failures.
	DefaultAttempts = 3

	// DefaultBackoffBase is the first retry delay; it doubles per attempt.
	DefaultBackoffBase = 500 * time.Millisecond

	// DefaultPollInterval is the wait between confirmation polls.
	DefaultPollInterval = 3 * time.Second
)

// Status is the outcome of a confirmation wait.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusTimedOut  Status = "timed_out"
)

// ConfirmationResult reports what became of a submitted transaction.
type ConfirmationResult struct {
	Status Status
	Round  uint64 // confirmation round, set when confirmed
	Reason string // pool error, set when rejected
}

// Node is the algod access the submitter needs.
type Node interface {
	SendRawTransaction(ctx context.Context, network string, raw []byte) (string, error)
	PendingTransaction(ctx context.Context, network, txid string) (models.PendingTransactionInfoResponse, error)
}

// Submitter pushes signed transactions to the network and polls for their
// confirmation.
type Submitter struct {
	node     Node
	audit    *audit.Logger
	attempts int
	backoff  time.Duration
	interval time.Duration
}

// Option configures a Submitter.
type Option func(*Submitter) error

// WithAttempts sets the transient-failure retry bound.
func WithAttempts(n int) Option {
	return func(s *Submitter) error {
		if n < 1 {
			return fmt.Errorf("attempts must be at least 1")
		}
		s.attempts = n
		return nil
	}
}

// WithBackoffBase sets the first retry delay.
func WithBackoffBase(d time.Duration) Option {
	return func(s *Submitter) error {
		if d <= 0 {
			return fmt.Errorf("backoff base must be positive")
		}
		s.backoff = d
		return nil
	}
}

// WithPollInterval sets the wait between confirmation polls.
func WithPollInterval(d time.Duration) Option {
	return func(s *Submitter) error {
		if d <= 0 {
			return fmt.Errorf("poll interval must be positive")
		}
		s.interval = d
		return nil
	}
}

// WithAudit records submissions and confirmations to the audit trail.
func WithAudit(a *audit.Logger) Option {
	return func(s *Submitter) error {
		s.audit = a
		return nil
	}
}

// NewSubmitter creates a Submitter over the given node access.
func NewSubmitter(node Node, opts ...Option) (*Submitter, error) {
	if node == nil {
		return nil, fmt.Errorf("submitter requires node access")
	}
	s := &Submitter{
		node:     node,
		attempts: DefaultAttempts,
		backoff:  DefaultBackoffBase,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Submit sends the artifact's raw bytes to its network. Transient failures
// retry with doubling backoff up to the attempt bound; a ledger rejection
// returns ErrLedgerRejected immediately. The returned txid is the one
// computed at signing time.
func (s *Submitter) Submit(ctx context.Context, artifact *dispatch.SignedArtifact) (string, error) {
	if artifact == nil || len(artifact.Raw) == 0 {
		return "", fmt.Errorf("nothing to submit")
	}

	delay := s.backoff
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		_, err := s.node.SendRawTransaction(ctx, artifact.Network, artifact.Raw)
		if err == nil {
			if s.audit != nil {
				s.audit.LogSubmitted(artifact.TxID, artifact.Network)
			}
			return artifact.TxID, nil
		}

		if reason, terminal := rejectionReason(err); terminal {
			return "", fmt.Errorf("%w: %s", ErrLedgerRejected, reason)
		}

		lastErr = err
		if attempt == s.attempts {
			break
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
	}
	return "", fmt.Errorf("submit failed after %d attempts: %w", s.attempts, lastErr)
}

// AwaitConfirmation polls the pending pool until the transaction confirms,
// the pool rejects it, or maxRounds polls pass. Poll errors are tolerated
// (a node blip must not be mistaken for a transaction outcome), but a
// cancelled context aborts the wait.
func (s *Submitter) AwaitConfirmation(ctx context.Context, network, txid string, maxRounds uint64) (ConfirmationResult, error) {
	for round := uint64(0); round < maxRounds; round++ {
		if round > 0 {
			if err := sleepCtx(ctx, s.interval); err != nil {
				return ConfirmationResult{}, err
			}
		}

		pending, err := s.node.PendingTransaction(ctx, network, txid)
		if err != nil {
			if ctx.Err() != nil {
				return ConfirmationResult{}, ctx.Err()
			}
			continue
		}

		if pending.ConfirmedRound != 0 {
			if s.audit != nil {
				s.audit.LogConfirmed(txid, network, pending.ConfirmedRound)
			}
			return ConfirmationResult{Status: StatusConfirmed, Round: pending.ConfirmedRound}, nil
		}
		if pending.PoolError != "" {
			return ConfirmationResult{Status: StatusRejected, Reason: pending.PoolError}, nil
		}
	}
	return ConfirmationResult{Status: StatusTimedOut}, nil
}

// SubmitAndConfirm submits the artifact and waits for its outcome.
func (s *Submitter) SubmitAndConfirm(ctx context.Context, artifact *dispatch.SignedArtifact, maxRounds uint64) (ConfirmationResult, error) {
	txid, err := s.Submit(ctx, artifact)
	if err != nil {
		return ConfirmationResult{}, err
	}
	return s.AwaitConfirmation(ctx, artifact.Network, txid, maxRounds)
}

// rejectionReason extracts the ledger's reason from a node rejection.
// Node responses embed the serialized transaction struct followed by
// "invalid : <reason>"; an error without that marker is treated as
// transient.
func rejectionReason(err error) (string, bool) {
	msg := err.Error()
	idx := strings.LastIndex(msg, "invalid : ")
	if idx == -1 {
		return "", false
	}
	clean := msg[idx+len("invalid : "):]
	clean = strings.TrimSuffix(clean, "\"}")
	clean = strings.TrimSuffix(clean, "\"")
	return clean, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
