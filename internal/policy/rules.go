// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package policy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/dop251/goja"

	"github.com/avault-algo/avault/internal/protocol"
)

// txnView is the transaction projection handed to rules.js. Field names in
// JavaScript follow the json tags.
type txnView struct {
	Type          string `json:"type"`
	Sender        string `json:"sender"`
	Receiver      string `json:"receiver,omitempty"`
	Amount        uint64 `json:"amount"`
	Fee           uint64 `json:"fee"`
	Note          string `json:"note,omitempty"`
	AssetID       uint64 `json:"assetId,omitempty"`
	AssetAmount   uint64 `json:"assetAmount,omitempty"`
	AssetReceiver string `json:"assetReceiver,omitempty"`
	AppID         uint64 `json:"appId,omitempty"`
	RekeyTo       string `json:"rekeyTo,omitempty"`
	CloseTo       string `json:"closeTo,omitempty"`
	AssetCloseTo  string `json:"assetCloseTo,omitempty"`
	FirstValid    uint64 `json:"firstValid"`
	LastValid     uint64 `json:"lastValid"`
	GenesisID     string `json:"genesisId,omitempty"`
}

// runRules evaluates rules.js against the transaction. The script must
// define check(txn) returning an array of {field, value, severity, message}
// objects; severity is "warning" or "critical" (empty means warning). A
// missing rules file means no user rules.
func (e *Engine) runRules(ctx context.Context, txn types.Transaction) ([]protocol.PolicyViolation, error) {
	src, err := os.ReadFile(e.rulesPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy rules: %w", err)
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	done := make(chan struct{})
	defer close(done)
	timer := time.AfterFunc(e.budget, func() {
		vm.Interrupt("rule budget exceeded")
	})
	defer timer.Stop()
	go func() {
		select {
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	if _, err := vm.RunScript(RulesFile, string(src)); err != nil {
		return nil, ruleError(err)
	}

	checkFn, ok := goja.AssertFunction(vm.Get("check"))
	if !ok {
		return nil, fmt.Errorf("%s does not define a check(txn) function", RulesFile)
	}

	result, err := checkFn(goja.Undefined(), vm.ToValue(viewOf(txn)))
	if err != nil {
		return nil, ruleError(err)
	}
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return nil, nil
	}

	var violations []protocol.PolicyViolation
	if err := vm.ExportTo(result, &violations); err != nil {
		return nil, fmt.Errorf("check() must return a list of violations: %w", err)
	}

	for i := range violations {
		switch violations[i].Severity {
		case SeverityWarning, SeverityCritical:
		case "":
			violations[i].Severity = SeverityWarning
		default:
			return nil, fmt.Errorf("rule violation %q has invalid severity %q", violations[i].Field, violations[i].Severity)
		}
	}

	return violations, nil
}

// ruleError converts Goja failures to clean error messages.
func ruleError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("policy rules interrupted: %v", interrupted.Value())
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return fmt.Errorf("policy rules failed: %s", exception.String())
	}
	return fmt.Errorf("policy rules failed: %w", err)
}

func viewOf(txn types.Transaction) txnView {
	return txnView{
		Type:          string(txn.Type),
		Sender:        txn.Sender.String(),
		Receiver:      addressOrEmpty(txn.Receiver),
		Amount:        uint64(txn.Amount),
		Fee:           uint64(txn.Fee),
		Note:          string(txn.Note),
		AssetID:       uint64(txn.XferAsset),
		AssetAmount:   txn.AssetAmount,
		AssetReceiver: addressOrEmpty(txn.AssetReceiver),
		AppID:         uint64(txn.ApplicationID),
		RekeyTo:       addressOrEmpty(txn.RekeyTo),
		CloseTo:       addressOrEmpty(txn.CloseRemainderTo),
		AssetCloseTo:  addressOrEmpty(txn.AssetCloseTo),
		FirstValid:    uint64(txn.FirstValid),
		LastValid:     uint64(txn.LastValid),
		GenesisID:     txn.GenesisID,
	}
}

func addressOrEmpty(addr types.Address) string {
	if addr.IsZero() {
		return ""
	}
	return addr.String()
}
