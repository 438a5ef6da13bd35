// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package policy evaluates transactions before any signing backend runs.
//
// Two layers apply:
//
//  1. Static checks: dangerous transaction fields (rekey-to, close-to,
//     asset close-to, clawback, excessive fee) are flagged with a severity.
//     A field the signing request itself declared is a warning — the
//     approving surface still shows it, but it does not block. The same
//     field appearing undeclared (a foreign or tampered transaction) is
//     critical and aborts the dispatch.
//
//  2. User rules: an optional rules.js in the data directory, evaluated per
//     transaction, returning additional violations.
//
// Critical violations abort the dispatch with no override. Warnings travel
// with the request to the approving surface and into the audit entry.
package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/avault-algo/avault/internal/protocol"
	avtxn "github.com/avault-algo/avault/internal/txn"
)

// Violation severities.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// DefaultMaxFee is the fee threshold above which a warning is raised.
const DefaultMaxFee = 1_000_000 // 1 ALGO

// DefaultRuleBudget bounds a single rules.js evaluation.
const DefaultRuleBudget = time.Second

// RulesFile is the user rules script looked up in the data directory.
const RulesFile = "rules.js"

// Expectation declares which dangerous fields the signing request asked for
// up front. A declared field downgrades from critical to warning.
type Expectation struct {
	RekeyTo      bool
	CloseTo      bool
	AssetCloseTo bool
}

// ExpectationFor derives the declared dangerous fields from a request.
func ExpectationFor(req *avtxn.SigningRequest) Expectation {
	switch req.Kind {
	case avtxn.KindRekey, avtxn.KindRekeyReverse:
		return Expectation{RekeyTo: true}
	case avtxn.KindPayment:
		return Expectation{CloseTo: req.CloseTo != ""}
	case avtxn.KindAssetTransfer:
		return Expectation{AssetCloseTo: req.CloseTo != ""}
	}
	return Expectation{}
}

// Engine checks transactions against the static rules and, when present,
// the user's rules.js.
type Engine struct {
	maxFee    uint64
	budget    time.Duration
	rulesPath string
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxFee sets the fee warning threshold in microalgos.
func WithMaxFee(microAlgos uint64) Option {
	return func(e *Engine) { e.maxFee = microAlgos }
}

// WithRuleBudget bounds each rules.js evaluation.
func WithRuleBudget(d time.Duration) Option {
	return func(e *Engine) { e.budget = d }
}

// WithRulesPath overrides the rules script location.
func WithRulesPath(path string) Option {
	return func(e *Engine) { e.rulesPath = path }
}

// NewEngine creates a policy engine rooted at the given data directory.
func NewEngine(dataDir string, opts ...Option) *Engine {
	e := &Engine{
		maxFee:    DefaultMaxFee,
		budget:    DefaultRuleBudget,
		rulesPath: filepath.Join(dataDir, RulesFile),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check runs the static checks and the user rules against a transaction.
// The returned violations include warnings; callers decide what blocks via
// HasCritical. A rules.js evaluation failure is an error: a broken policy
// file must not silently let transactions through.
func (e *Engine) Check(ctx context.Context, txn types.Transaction, expected Expectation) ([]protocol.PolicyViolation, error) {
	violations := e.staticChecks(txn, expected)

	ruleViolations, err := e.runRules(ctx, txn)
	if err != nil {
		return nil, err
	}

	return append(violations, ruleViolations...), nil
}

// HasCritical reports whether any violation carries critical severity.
func HasCritical(violations []protocol.PolicyViolation) bool {
	for _, v := range violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func (e *Engine) staticChecks(txn types.Transaction, expected Expectation) []protocol.PolicyViolation {
	var violations []protocol.PolicyViolation

	if !txn.RekeyTo.IsZero() {
		message := "This transaction will PERMANENTLY transfer signing authority to another address. You will lose control of this account."
		if txn.RekeyTo == txn.Sender {
			message = "This transaction restores the account's own signing authority."
		}
		violations = append(violations, protocol.PolicyViolation{
			Field:    "RekeyTo",
			Value:    txn.RekeyTo.String(),
			Severity: severityFor(expected.RekeyTo),
			Message:  message,
		})
	}

	if !txn.CloseRemainderTo.IsZero() {
		violations = append(violations, protocol.PolicyViolation{
			Field:    "CloseRemainderTo",
			Value:    txn.CloseRemainderTo.String(),
			Severity: severityFor(expected.CloseTo),
			Message:  "This transaction will close your account and send ALL remaining ALGO to another address.",
		})
	}

	if !txn.AssetCloseTo.IsZero() {
		violations = append(violations, protocol.PolicyViolation{
			Field:    "AssetCloseTo",
			Value:    txn.AssetCloseTo.String(),
			Severity: severityFor(expected.AssetCloseTo),
			Message:  "This transaction will send your ENTIRE balance of this asset to another address.",
		})
	}

	if !txn.AssetSender.IsZero() && txn.AssetSender != txn.Sender {
		violations = append(violations, protocol.PolicyViolation{
			Field:    "AssetSender",
			Value:    txn.AssetSender.String(),
			Severity: SeverityWarning,
			Message:  "CLAWBACK: This transaction will move funds from another account using your clawback authority.",
		})
	}

	if uint64(txn.Fee) > e.maxFee {
		algoFee := float64(txn.Fee) / 1_000_000
		violations = append(violations, protocol.PolicyViolation{
			Field:    "Fee",
			Value:    fmt.Sprintf("%.6f ALGO", algoFee),
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Transaction fee is unusually high (%.6f ALGO). Normal fees are ~0.001 ALGO.", algoFee),
		})
	}

	return violations
}

func severityFor(declared bool) string {
	if declared {
		return SeverityWarning
	}
	return SeverityCritical
}
