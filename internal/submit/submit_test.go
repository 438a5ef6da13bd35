// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"

	"github.com/avault-algo/avault/internal/audit"
	"github.com/avault-algo/avault/internal/dispatch"
)

type pollResult struct {
	info models.PendingTransactionInfoResponse
	err  error
}

// fakeNode scripts send and poll outcomes per call. An exhausted script
// means success for sends and still-pending for polls.
type fakeNode struct {
	sendErrs    []error
	sendCalls   int
	lastNetwork string
	lastRaw     []byte

	polls     []pollResult
	pollCalls int
}

func (f *fakeNode) SendRawTransaction(ctx context.Context, network string, raw []byte) (string, error) {
	f.sendCalls++
	f.lastNetwork = network
	f.lastRaw = raw
	if len(f.sendErrs) == 0 {
		return "", nil
	}
	err := f.sendErrs[0]
	f.sendErrs = f.sendErrs[1:]
	if err != nil {
		return "", err
	}
	return "", nil
}

func (f *fakeNode) PendingTransaction(ctx context.Context, network, txid string) (models.PendingTransactionInfoResponse, error) {
	f.pollCalls++
	if len(f.polls) == 0 {
		return models.PendingTransactionInfoResponse{}, nil
	}
	p := f.polls[0]
	f.polls = f.polls[1:]
	return p.info, p.err
}

func testArtifact() *dispatch.SignedArtifact {
	return &dispatch.SignedArtifact{
		TxID:    "6XDV3KPBGTZKUWMY7B6AUXUJZKMPQORACVJFF2JU5AR2XWKX6MKQ",
		Raw:     []byte{0x82, 0xa3, 0x73, 0x69, 0x67},
		Network: "testnet",
	}
}

func fastSubmitter(t *testing.T, node Node, opts ...Option) *Submitter {
	t.Helper()
	opts = append([]Option{
		WithBackoffBase(time.Millisecond),
		WithPollInterval(time.Millisecond),
	}, opts...)
	s, err := NewSubmitter(node, opts...)
	if err != nil {
		t.Fatalf("NewSubmitter failed: %v", err)
	}
	return s
}

func TestNewSubmitterValidates(t *testing.T) {
	if _, err := NewSubmitter(nil); err == nil {
		t.Error("NewSubmitter(nil) should fail")
	}
	if _, err := NewSubmitter(&fakeNode{}, WithAttempts(0)); err == nil {
		t.Error("WithAttempts(0) should fail")
	}
	if _, err := NewSubmitter(&fakeNode{}, WithBackoffBase(0)); err == nil {
		t.Error("WithBackoffBase(0) should fail")
	}
}

func TestSubmitSuccess(t *testing.T) {
	node := &fakeNode{}
	s := fastSubmitter(t, node)

	artifact := testArtifact()
	txid, err := s.Submit(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if txid != artifact.TxID {
		t.Errorf("txid = %q, want the artifact's %q", txid, artifact.TxID)
	}
	if node.sendCalls != 1 {
		t.Errorf("sendCalls = %d, want 1", node.sendCalls)
	}
	if node.lastNetwork != "testnet" {
		t.Errorf("network = %q, want testnet", node.lastNetwork)
	}
	if !bytes.Equal(node.lastRaw, artifact.Raw) {
		t.Error("node did not receive the artifact's raw bytes")
	}
}

func TestSubmitRetriesTransientFailures(t *testing.T) {
	node := &fakeNode{sendErrs: []error{
		errors.New("connection refused"),
		errors.New("Post \"http://localhost:4001\": EOF"),
		nil,
	}}
	s := fastSubmitter(t, node)

	if _, err := s.Submit(context.Background(), testArtifact()); err != nil {
		t.Fatalf("Submit should succeed on the third attempt: %v", err)
	}
	if node.sendCalls != 3 {
		t.Errorf("sendCalls = %d, want 3", node.sendCalls)
	}
}

func TestSubmitExhaustsAttempts(t *testing.T) {
	node := &fakeNode{sendErrs: []error{
		errors.New("read timeout"),
		errors.New("read timeout"),
		errors.New("read timeout"),
	}}
	s := fastSubmitter(t, node)

	_, err := s.Submit(context.Background(), testArtifact())
	if err == nil || !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("Submit error = %v, want attempt exhaustion", err)
	}
	if !strings.Contains(err.Error(), "read timeout") {
		t.Errorf("error should wrap the last failure, got: %v", err)
	}
	if node.sendCalls != 3 {
		t.Errorf("sendCalls = %d, want 3", node.sendCalls)
	}
}

func TestSubmitLedgerRejectionIsTerminal(t *testing.T) {
	node := &fakeNode{sendErrs: []error{
		fmt.Errorf(`HTTP 400: {"message":"transaction {_struct:{} Sig:[0 0 0] Txn:{Type:pay}} invalid : transaction TXID: overspend"}`),
	}}
	s := fastSubmitter(t, node)

	_, err := s.Submit(context.Background(), testArtifact())
	if !errors.Is(err, ErrLedgerRejected) {
		t.Fatalf("Submit error = %v, want ErrLedgerRejected", err)
	}
	if !strings.Contains(err.Error(), "overspend") {
		t.Errorf("error should carry the node's reason, got: %v", err)
	}
	if node.sendCalls != 1 {
		t.Errorf("sendCalls = %d, want 1 (rejections are never retried)", node.sendCalls)
	}
}

func TestSubmitNothing(t *testing.T) {
	s := fastSubmitter(t, &fakeNode{})

	if _, err := s.Submit(context.Background(), nil); err == nil {
		t.Error("Submit(nil) should fail")
	}
	if _, err := s.Submit(context.Background(), &dispatch.SignedArtifact{Network: "testnet"}); err == nil {
		t.Error("Submit of an empty artifact should fail")
	}
}

func TestSubmitHonorsCancellation(t *testing.T) {
	node := &fakeNode{sendErrs: []error{
		errors.New("connection refused"),
		errors.New("connection refused"),
		nil,
	}}
	s := fastSubmitter(t, node, WithBackoffBase(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Submit(ctx, testArtifact())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Submit error = %v, want context.Canceled", err)
	}
	if node.sendCalls != 1 {
		t.Errorf("sendCalls = %d, want 1 (no retries after cancellation)", node.sendCalls)
	}
}

func TestRejectionReason(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     string
		terminal bool
	}{
		{
			name:     "logic rejection with struct dump",
			err:      fmt.Errorf(`HTTP 400: {"data":{"pc":17},"message":"transaction {_struct:{} Sig:[0 0 0]} invalid : transaction 6XDV3KPBGTZKUWMY7B6AUXUJZKMPQORACVJFF2JU5AR2XWKX6MKQ: rejected by logic err=cannot load arg[1] of 1. Details: pc=17"}`),
			want:     "transaction 6XDV3KPBGTZKUWMY7B6AUXUJZKMPQORACVJFF2JU5AR2XWKX6MKQ: rejected by logic err=cannot load arg[1] of 1. Details: pc=17",
			terminal: true,
		},
		{
			name:     "overspend",
			err:      fmt.Errorf(`HTTP 400: {"message":"transaction {_struct:{}} invalid : transaction TXID: overspend"}`),
			want:     "transaction TXID: overspend",
			terminal: true,
		},
		{
			name:     "stale validity window",
			err:      fmt.Errorf(`HTTP 400: {"message":"transaction {_struct:{}} invalid : txn dead: round 5 outside of 10--1010"}`),
			want:     "txn dead: round 5 outside of 10--1010",
			terminal: true,
		},
		{
			name:     "network error is transient",
			err:      errors.New("connection refused"),
			terminal: false,
		},
		{
			name:     "5xx is transient",
			err:      errors.New("HTTP 503: service unavailable"),
			terminal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, terminal := rejectionReason(tt.err)
			if terminal != tt.terminal {
				t.Fatalf("terminal = %v, want %v", terminal, tt.terminal)
			}
			if terminal && got != tt.want {
				t.Errorf("reason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAwaitConfirmationConfirmed(t *testing.T) {
	node := &fakeNode{polls: []pollResult{
		{info: models.PendingTransactionInfoResponse{}},
		{info: models.PendingTransactionInfoResponse{ConfirmedRound: 1042}},
	}}
	s := fastSubmitter(t, node)

	result, err := s.AwaitConfirmation(context.Background(), "testnet", "TXID", 10)
	if err != nil {
		t.Fatalf("AwaitConfirmation failed: %v", err)
	}
	if result.Status != StatusConfirmed {
		t.Errorf("status = %s, want confirmed", result.Status)
	}
	if result.Round != 1042 {
		t.Errorf("round = %d, want 1042", result.Round)
	}
	if node.pollCalls != 2 {
		t.Errorf("pollCalls = %d, want 2", node.pollCalls)
	}
}

func TestAwaitConfirmationPoolRejection(t *testing.T) {
	node := &fakeNode{polls: []pollResult{
		{info: models.PendingTransactionInfoResponse{PoolError: "transaction already in ledger"}},
	}}
	s := fastSubmitter(t, node)

	result, err := s.AwaitConfirmation(context.Background(), "testnet", "TXID", 10)
	if err != nil {
		t.Fatalf("AwaitConfirmation failed: %v", err)
	}
	if result.Status != StatusRejected {
		t.Errorf("status = %s, want rejected", result.Status)
	}
	if result.Reason != "transaction already in ledger" {
		t.Errorf("reason = %q, want the pool error", result.Reason)
	}
}

func TestAwaitConfirmationTimesOut(t *testing.T) {
	node := &fakeNode{}
	s := fastSubmitter(t, node)

	result, err := s.AwaitConfirmation(context.Background(), "testnet", "TXID", 3)
	if err != nil {
		t.Fatalf("AwaitConfirmation failed: %v", err)
	}
	if result.Status != StatusTimedOut {
		t.Errorf("status = %s, want timed_out", result.Status)
	}
	if node.pollCalls != 3 {
		t.Errorf("pollCalls = %d, want 3", node.pollCalls)
	}
}

func TestAwaitConfirmationToleratesPollErrors(t *testing.T) {
	node := &fakeNode{polls: []pollResult{
		{err: errors.New("connection reset")},
		{info: models.PendingTransactionInfoResponse{ConfirmedRound: 7}},
	}}
	s := fastSubmitter(t, node)

	result, err := s.AwaitConfirmation(context.Background(), "testnet", "TXID", 10)
	if err != nil {
		t.Fatalf("AwaitConfirmation failed: %v", err)
	}
	if result.Status != StatusConfirmed || result.Round != 7 {
		t.Errorf("result = %+v, want confirmed in round 7", result)
	}
}

func TestAwaitConfirmationHonorsCancellation(t *testing.T) {
	node := &fakeNode{}
	s := fastSubmitter(t, node, WithPollInterval(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AwaitConfirmation(ctx, "testnet", "TXID", 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("AwaitConfirmation error = %v, want context.Canceled", err)
	}
}

func TestSubmitAndConfirm(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		node := &fakeNode{polls: []pollResult{
			{info: models.PendingTransactionInfoResponse{ConfirmedRound: 55}},
		}}
		s := fastSubmitter(t, node)

		result, err := s.SubmitAndConfirm(context.Background(), testArtifact(), 10)
		if err != nil {
			t.Fatalf("SubmitAndConfirm failed: %v", err)
		}
		if result.Status != StatusConfirmed || result.Round != 55 {
			t.Errorf("result = %+v, want confirmed in round 55", result)
		}
	})

	t.Run("rejected submission never polls", func(t *testing.T) {
		node := &fakeNode{sendErrs: []error{
			fmt.Errorf(`HTTP 400: {"message":"transaction {} invalid : transaction TXID: overspend"}`),
		}}
		s := fastSubmitter(t, node)

		if _, err := s.SubmitAndConfirm(context.Background(), testArtifact(), 10); !errors.Is(err, ErrLedgerRejected) {
			t.Fatalf("SubmitAndConfirm error = %v, want ErrLedgerRejected", err)
		}
		if node.pollCalls != 0 {
			t.Errorf("pollCalls = %d, want 0", node.pollCalls)
		}
	})
}

func TestSubmitterAuditTrail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	logger, err := audit.NewLogger(path)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	node := &fakeNode{polls: []pollResult{
		{info: models.PendingTransactionInfoResponse{ConfirmedRound: 77}},
	}}
	s := fastSubmitter(t, node, WithAudit(logger))

	artifact := testArtifact()
	if _, err := s.SubmitAndConfirm(context.Background(), artifact, 10); err != nil {
		t.Fatalf("SubmitAndConfirm failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read audit log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(lines))
	}

	var submitted, confirmed audit.Entry
	if err := json.Unmarshal([]byte(lines[0]), &submitted); err != nil {
		t.Fatalf("bad audit line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &confirmed); err != nil {
		t.Fatalf("bad audit line: %v", err)
	}

	if submitted.Event != audit.EventSubmitted || submitted.TxID != artifact.TxID {
		t.Errorf("first entry = %+v, want SUBMITTED for the artifact", submitted)
	}
	if confirmed.Event != audit.EventConfirmed || confirmed.Round != 77 {
		t.Errorf("second entry = %+v, want CONFIRMED in round 77", confirmed)
	}
}
