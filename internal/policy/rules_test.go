// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package policy

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeRules(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), RulesFile)
	if err := os.WriteFile(path, []byte(src), 0600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestCheckWithoutRulesFile(t *testing.T) {
	engine := NewEngine(t.TempDir())

	violations, err := engine.Check(context.Background(), paymentTxn(t), Expectation{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("clean payment produced violations: %+v", violations)
	}
}

func TestRulesFlagViolations(t *testing.T) {
	path := writeRules(t, `
		function check(txn) {
			var violations = [];
			if (txn.type === "pay" && txn.amount > 500000) {
				violations.push({
					field: "Amount",
					value: String(txn.amount),
					severity: "critical",
					message: "payments above 0.5 ALGO are blocked",
				});
			}
			if (txn.receiver === "` + addrY + `") {
				violations.push({
					field: "Receiver",
					value: txn.receiver,
					severity: "warning",
					message: "receiver is on the watch list",
				});
			}
			return violations;
		}
	`)
	engine := NewEngine(t.TempDir(), WithRulesPath(path))

	violations, err := engine.Check(context.Background(), paymentTxn(t), Expectation{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("got %d violations, want 2: %+v", len(violations), violations)
	}
	if violations[0].Field != "Amount" || violations[0].Severity != SeverityCritical {
		t.Errorf("first violation = %+v", violations[0])
	}
	if violations[1].Field != "Receiver" || violations[1].Severity != SeverityWarning {
		t.Errorf("second violation = %+v", violations[1])
	}
	if !HasCritical(violations) {
		t.Error("critical rule violation not detected")
	}
}

func TestRulesEmptyResults(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty array", `function check(txn) { return []; }`},
		{"undefined", `function check(txn) {}`},
		{"null", `function check(txn) { return null; }`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(t.TempDir(), WithRulesPath(writeRules(t, tt.src)))
			violations, err := engine.Check(context.Background(), paymentTxn(t), Expectation{})
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if len(violations) != 0 {
				t.Errorf("got violations %+v, want none", violations)
			}
		})
	}
}

func TestRulesSeverityHandling(t *testing.T) {
	t.Run("missing severity defaults to warning", func(t *testing.T) {
		path := writeRules(t, `function check(txn) { return [{field: "Note", value: "x", message: "note set"}]; }`)
		engine := NewEngine(t.TempDir(), WithRulesPath(path))

		violations, err := engine.Check(context.Background(), paymentTxn(t), Expectation{})
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if len(violations) != 1 || violations[0].Severity != SeverityWarning {
			t.Errorf("violations = %+v", violations)
		}
	})

	t.Run("invalid severity is rejected", func(t *testing.T) {
		path := writeRules(t, `function check(txn) { return [{field: "Note", value: "x", severity: "fatal", message: "m"}]; }`)
		engine := NewEngine(t.TempDir(), WithRulesPath(path))

		_, err := engine.Check(context.Background(), paymentTxn(t), Expectation{})
		if err == nil {
			t.Fatal("invalid severity accepted")
		}
		if !strings.Contains(err.Error(), "invalid severity") {
			t.Errorf("error = %v", err)
		}
	})
}

func TestRulesBrokenScript(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"syntax error", `function check(`, "policy rules failed"},
		{"no check function", `var limit = 5;`, "does not define a check"},
		{"check throws", `function check(txn) { throw new Error("boom"); }`, "boom"},
		{"check not callable", `var check = 12;`, "does not define a check"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(t.TempDir(), WithRulesPath(writeRules(t, tt.src)))
			_, err := engine.Check(context.Background(), paymentTxn(t), Expectation{})
			if err == nil {
				t.Fatal("broken rules accepted")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestRulesBudgetInterrupt(t *testing.T) {
	path := writeRules(t, `function check(txn) { while (true) {} }`)
	engine := NewEngine(t.TempDir(), WithRulesPath(path), WithRuleBudget(50*time.Millisecond))

	start := time.Now()
	_, err := engine.Check(context.Background(), paymentTxn(t), Expectation{})
	if err == nil {
		t.Fatal("runaway rule completed")
	}
	if !strings.Contains(err.Error(), "interrupted") {
		t.Errorf("error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("interrupt took %v", elapsed)
	}
}

func TestRulesContextCancelled(t *testing.T) {
	path := writeRules(t, `function check(txn) { while (true) {} }`)
	engine := NewEngine(t.TempDir(), WithRulesPath(path))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := engine.Check(ctx, paymentTxn(t), Expectation{})
	if err == nil {
		t.Fatal("cancelled rule completed")
	}
	if !strings.Contains(err.Error(), "interrupted") {
		t.Errorf("error = %v", err)
	}
}

func TestRulesSeeTransactionFields(t *testing.T) {
	path := writeRules(t, `
		function check(txn) {
			var fields = ["type", "sender", "receiver", "amount", "fee", "genesisId"];
			for (var i = 0; i < fields.length; i++) {
				if (txn[fields[i]] === undefined) {
					return [{field: fields[i], value: "", severity: "critical", message: "field missing"}];
				}
			}
			return [];
		}
	`)
	engine := NewEngine(t.TempDir(), WithRulesPath(path))

	txn := paymentTxn(t)
	txn.GenesisID = "testnet-v1.0"

	violations, err := engine.Check(context.Background(), txn, Expectation{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("rule could not see fields: %+v", violations)
	}
}
