// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"golang.org/x/term"

	"github.com/avault-algo/avault/cmd/avshell/internal/repl"
	"github.com/avault-algo/avault/internal/algo"
	"github.com/avault-algo/avault/internal/audit"
	"github.com/avault-algo/avault/internal/authority"
	"github.com/avault-algo/avault/internal/command"
	"github.com/avault-algo/avault/internal/credential"
	avcrypto "github.com/avault-algo/avault/internal/crypto"
	"github.com/avault-algo/avault/internal/device"
	"github.com/avault-algo/avault/internal/dispatch"
	"github.com/avault-algo/avault/internal/mnemonic"
	"github.com/avault-algo/avault/internal/policy"
	"github.com/avault-algo/avault/internal/remote"
	"github.com/avault-algo/avault/internal/session"
	"github.com/avault-algo/avault/internal/submit"
	avtxn "github.com/avault-algo/avault/internal/txn"
	"github.com/avault-algo/avault/internal/util"
	"github.com/avault-algo/avault/internal/wallet"
)

// errExit signals a clean shell exit from a command handler.
var errExit = errors.New("exit")

var errLocked = errors.New("the wallet is locked; run 'unlock' first")

// stdin is shared by every interactive read so buffered input survives
// across prompts.
var stdin = bufio.NewReader(os.Stdin)

// ShellState carries the wired wallet subsystems every command handler
// works against.
type ShellState struct {
	network string
	dataDir string
	cfg     *util.Config

	accounts   *wallet.Registry
	store      *credential.Store
	session    *session.Manager
	chain      *algo.Service
	resolver   *authority.Resolver
	devices    *device.Manager
	remotes    *remote.Manager
	policy     *policy.Engine
	auditLog   *audit.Logger
	dispatcher *dispatch.Dispatcher
	submitter  *submit.Submitter

	registry *command.Registry

	stopWatch context.CancelFunc
}

// NewShellState opens the wallet under dataDir and wires the signing
// pipeline together.
func NewShellState(network, dataDir string, cfg *util.Config) (*ShellState, error) {
	s := &ShellState{
		network: network,
		dataDir: dataDir,
		cfg:     cfg,
	}

	auditLog, err := audit.NewLogger(filepath.Join(dataDir, "audit.log"))
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	s.auditLog = auditLog

	store, err := credential.Open(filepath.Join(dataDir, "credentials"), credential.PromptFunc(s.biometricPrompt))
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	s.store = store

	accounts, err := wallet.LoadRegistry(filepath.Join(dataDir, "accounts.yaml"))
	if err != nil {
		return nil, fmt.Errorf("loading account registry: %w", err)
	}
	s.accounts = accounts

	sess, err := session.NewManager(store, filepath.Join(dataDir, "session.yaml"),
		session.WithAudit(auditLog),
		session.WithDefaultTimeout(cfg.SessionTimeoutMinutes),
		session.WithBackgroundGrace(cfg.BackgroundGrace()),
	)
	if err != nil {
		return nil, fmt.Errorf("restoring session state: %w", err)
	}
	s.session = sess

	s.chain = algo.NewService(cfg)
	s.resolver = authority.NewResolver(accounts, s.chain, store.IsBiometricEnabled)
	s.devices = device.NewManager(cfg)
	s.remotes = remote.NewManager(cfg)
	s.policy = policy.NewEngine(dataDir)

	dispatcher, err := dispatch.New(
		dispatch.WithAccounts(accounts),
		dispatch.WithResolver(s.resolver),
		dispatch.WithSession(sess),
		dispatch.WithCredentials(store),
		dispatch.WithPolicy(s.policy),
		dispatch.WithParams(s.chain),
		dispatch.WithDevices(s.devices),
		dispatch.WithRemotes(s.remotes),
		dispatch.WithAudit(auditLog),
	)
	if err != nil {
		return nil, fmt.Errorf("wiring dispatcher: %w", err)
	}
	s.dispatcher = dispatcher

	submitOpts := []submit.Option{submit.WithAudit(auditLog)}
	if cfg.SubmitAttempts > 0 {
		submitOpts = append(submitOpts, submit.WithAttempts(cfg.SubmitAttempts))
	}
	submitter, err := submit.NewSubmitter(s.chain, submitOpts...)
	if err != nil {
		return nil, fmt.Errorf("wiring submitter: %w", err)
	}
	s.submitter = submitter

	// Pick up registry edits made by other processes (or an editor).
	watchCtx, stopWatch := context.WithCancel(context.Background())
	s.stopWatch = stopWatch
	if err := accounts.Watch(watchCtx, func() {
		util.Debug("account registry reloaded from disk")
	}); err != nil {
		util.Logger.Warn("account registry watch unavailable", "error", err)
	}

	s.registry = s.buildCommandRegistry()
	return s, nil
}

// Close locks the session and releases shell resources. Safe to call once.
func (s *ShellState) Close() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.session != nil {
		s.session.Lock()
	}
	if s.auditLog != nil {
		_ = s.auditLog.Close()
	}
}

// executeCommand looks up and runs one parsed command line.
func (s *ShellState) executeCommand(name string, args []string, rawLine string) error {
	cmd, ok := s.registry.Lookup(strings.ToLower(name))
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for a list)", name)
	}
	ctx := &command.Context{
		Network: s.network,
		DataDir: s.dataDir,
		RawArgs: rawLine,
		State:   s,
	}
	return cmd.Handler.Execute(args, ctx)
}

// prompt reflects the network and lock state, e.g. "avault:testnet [locked]> ".
func (s *ShellState) prompt() string {
	state := "locked"
	if !s.session.Snapshot().Locked {
		state = "unlocked"
	}
	return fmt.Sprintf("\033[32mavault:%s\033[0m [%s]> ", s.network, state)
}

// ---- account commands ----

func (s *ShellState) cmdAccounts(_ []string, _ *command.Context) error {
	recs := s.accounts.List()
	if len(recs) == 0 {
		fmt.Println("No accounts registered. Use 'import' or 'watch' to add one.")
		return nil
	}
	fmt.Printf("Accounts (%d):\n", len(recs))
	for _, rec := range recs {
		fmt.Printf("  %s\n", describeAccount(rec))
	}
	return nil
}

func (s *ShellState) cmdImport(args []string, _ *command.Context) error {
	if s.session.Snapshot().Locked {
		return errLocked
	}
	label := strings.Join(args, " ")

	phrase, err := readSecret("25-word mnemonic: ")
	if err != nil {
		return err
	}
	defer avcrypto.ZeroBytes(phrase)

	priv, address, err := mnemonic.Import(string(phrase))
	if err != nil {
		return err
	}
	defer avcrypto.ZeroBytes(priv)

	if existing, err := s.accounts.Get(address); err == nil {
		if existing.Kind != wallet.KindWatchOnly {
			return fmt.Errorf("account %s is already registered", util.FormatAddressShort(address))
		}
		if err := s.store.StoreKey(address, priv); err != nil {
			return err
		}
		if err := s.accounts.UpgradeWatchOnly(address); err != nil {
			return err
		}
		fmt.Printf("Upgraded watch-only account %s — it can now sign.\n", util.FormatAddressShort(address))
		return nil
	}

	if err := s.store.StoreKey(address, priv); err != nil {
		return err
	}
	if err := s.accounts.Add(wallet.NewStandardAccount(address, label)); err != nil {
		return err
	}
	fmt.Printf("Imported %s\n", address)
	return nil
}

func (s *ShellState) cmdGenerate(args []string, _ *command.Context) error {
	if s.session.Snapshot().Locked {
		return errLocked
	}
	label := strings.Join(args, " ")

	phrase, priv, address, err := mnemonic.Generate()
	if err != nil {
		return err
	}
	defer avcrypto.ZeroBytes(priv)

	if err := s.store.StoreKey(address, priv); err != nil {
		return err
	}
	if err := s.accounts.Add(wallet.NewStandardAccount(address, label)); err != nil {
		return err
	}
	fmt.Printf("Created %s\n", address)
	fmt.Println("Recovery phrase — write it down now, it is not shown again:")
	fmt.Printf("  %s\n", phrase)
	return nil
}

func (s *ShellState) cmdExport(args []string, _ *command.Context) error {
	if s.session.Snapshot().Locked {
		return errLocked
	}
	if len(args) < 1 {
		return fmt.Errorf("usage: export <account>")
	}
	rec, err := s.lookupAccount(args[0])
	if err != nil {
		return err
	}
	if !s.store.HasKey(rec.Address) {
		return fmt.Errorf("no signing key stored for %s", util.FormatAddressShort(rec.Address))
	}

	ok, err := s.confirm(fmt.Sprintf("Reveal the recovery phrase for %s? (y/N): ", rec.DisplayName()))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Cancelled.")
		return nil
	}

	priv, err := s.store.DecryptKey(context.Background(), rec.Address)
	if err != nil {
		return err
	}
	defer avcrypto.ZeroBytes(priv)

	phrase, err := mnemonic.Export(priv)
	if err != nil {
		return err
	}
	fmt.Println("Recovery phrase — anyone who sees it controls the account:")
	fmt.Printf("  %s\n", phrase)
	return nil
}

func (s *ShellState) cmdWatch(args []string, _ *command.Context) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: watch <address> [label]")
	}
	address := args[0]
	if _, err := types.DecodeAddress(address); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	label := strings.Join(args[1:], " ")
	if err := s.accounts.Add(wallet.NewWatchOnlyAccount(address, label)); err != nil {
		return err
	}
	fmt.Printf("Watching %s\n", address)
	return nil
}

func (s *ShellState) cmdHardware(args []string, _ *command.Context) error {
	usage := fmt.Errorf("usage: hardware <address> device=<id> [label]")
	if len(args) < 2 {
		return usage
	}
	address := args[0]
	if _, err := types.DecodeAddress(address); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}

	deviceID := ""
	var labelParts []string
	for _, arg := range args[1:] {
		if strings.HasPrefix(strings.ToLower(arg), "device=") {
			deviceID = arg[len("device="):]
		} else {
			labelParts = append(labelParts, arg)
		}
	}
	if deviceID == "" {
		return usage
	}
	if _, ok := s.cfg.Device(deviceID); !ok {
		return fmt.Errorf("device %q is not configured; add it to %s first", deviceID, util.GetConfigPath(s.dataDir))
	}

	if err := s.accounts.Add(wallet.NewHardwareAccount(address, strings.Join(labelParts, " "), deviceID)); err != nil {
		return err
	}
	fmt.Printf("Registered %s (signs on device %s)\n", util.FormatAddressShort(address), deviceID)
	return nil
}

// cmdRemote lists remote signing endpoints when called bare, and registers
// a remote-signer account when given arguments.
func (s *ShellState) cmdRemote(args []string, _ *command.Context) error {
	if len(args) == 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		statuses := s.remotes.Statuses(ctx)
		if len(statuses) == 0 {
			fmt.Println("No remote signing endpoints configured.")
			return nil
		}
		fmt.Println("Remote signing endpoints:")
		for _, st := range statuses {
			health := "unreachable"
			if st.Healthy {
				health = "healthy"
			}
			fmt.Printf("  %-12s %-32s %s\n", st.ID, st.URL, health)
		}
		return nil
	}

	usage := fmt.Errorf("usage: remote [<address> endpoint=<id> [label]]")
	if len(args) < 2 {
		return usage
	}
	address := args[0]
	if _, err := types.DecodeAddress(address); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}

	endpointID := ""
	var labelParts []string
	for _, arg := range args[1:] {
		if strings.HasPrefix(strings.ToLower(arg), "endpoint=") {
			endpointID = arg[len("endpoint="):]
		} else {
			labelParts = append(labelParts, arg)
		}
	}
	if endpointID == "" {
		return usage
	}
	if _, ok := s.cfg.RemoteSigner(endpointID); !ok {
		return fmt.Errorf("remote signer %q is not configured; add it to %s first", endpointID, util.GetConfigPath(s.dataDir))
	}

	if err := s.accounts.Add(wallet.NewRemoteAccount(address, strings.Join(labelParts, " "), endpointID)); err != nil {
		return err
	}
	fmt.Printf("Registered %s (signs via %s)\n", util.FormatAddressShort(address), endpointID)
	return nil
}

func (s *ShellState) cmdRename(args []string, _ *command.Context) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: rename <account> <new-label>")
	}
	rec, err := s.lookupAccount(args[0])
	if err != nil {
		return err
	}
	label := strings.Join(args[1:], " ")
	if err := s.accounts.Rename(rec.Address, label); err != nil {
		return err
	}
	fmt.Printf("Renamed %s to %q\n", util.FormatAddressShort(rec.Address), label)
	return nil
}

func (s *ShellState) cmdRemove(args []string, _ *command.Context) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: remove <account>")
	}
	rec, err := s.lookupAccount(args[0])
	if err != nil {
		return err
	}

	ok, err := s.confirm(fmt.Sprintf("Remove %s from the wallet? (y/N): ", rec.DisplayName()))
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Cancelled.")
		return nil
	}
	if err := s.accounts.Delete(rec.Address); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", util.FormatAddressShort(rec.Address))

	if s.store.HasKey(rec.Address) {
		ok, err := s.confirm("Its signing key is still stored. Delete the key too? (y/N): ")
		if err != nil {
			return err
		}
		if ok {
			if err := s.store.DeleteKey(rec.Address); err != nil {
				return err
			}
			fmt.Println("Key deleted. Without the mnemonic the account cannot be recovered.")
		} else {
			fmt.Println("Key kept. Re-register the account with 'watch' and 'import' to use it again.")
		}
	}
	return nil
}

// ---- session commands ----

func (s *ShellState) cmdUnlock(args []string, _ *command.Context) error {
	if !s.store.Initialized() {
		return fmt.Errorf("no PIN is set; run 'pin set' first")
	}
	if !s.session.Snapshot().Locked {
		fmt.Println("Already unlocked.")
		return nil
	}

	ctx := context.Background()
	if len(args) > 0 && strings.EqualFold(args[0], "biometric") {
		if err := s.session.UnlockWithBiometric(ctx); err != nil {
			return err
		}
	} else {
		pin, err := readSecret("PIN: ")
		if err != nil {
			return err
		}
		err = s.session.Unlock(ctx, pin)
		avcrypto.ZeroBytes(pin)
		if err != nil {
			return err
		}
	}

	snap := s.session.Snapshot()
	if snap.TimeoutMinutes > 0 {
		fmt.Printf("Unlocked. Auto-lock after %d minutes of inactivity.\n", snap.TimeoutMinutes)
	} else {
		fmt.Println("Unlocked. Auto-lock is disabled.")
	}
	return nil
}

func (s *ShellState) cmdLock(_ []string, _ *command.Context) error {
	s.session.Lock()
	fmt.Println("Locked.")
	return nil
}

func (s *ShellState) cmdPin(args []string, _ *command.Context) error {
	if len(args) < 1 || !strings.EqualFold(args[0], "set") {
		return fmt.Errorf("usage: pin set")
	}

	if !s.store.Initialized() {
		newPIN, confirmPIN, err := readNewPIN()
		if err != nil {
			return err
		}
		err = s.store.Initialize(newPIN)
		avcrypto.ZeroBytes(newPIN)
		avcrypto.ZeroBytes(confirmPIN)
		if err != nil {
			return err
		}
		fmt.Println("PIN set. Run 'unlock' to open the wallet.")
		return nil
	}

	current, err := readSecret("Current PIN: ")
	if err != nil {
		return err
	}
	newPIN, confirmPIN, err := readNewPIN()
	if err != nil {
		avcrypto.ZeroBytes(current)
		return err
	}
	err = s.session.SetPIN(current, newPIN)
	avcrypto.ZeroBytes(current)
	avcrypto.ZeroBytes(newPIN)
	avcrypto.ZeroBytes(confirmPIN)
	if err != nil {
		return err
	}
	fmt.Println("PIN changed.")
	return nil
}

func (s *ShellState) cmdBiometric(args []string, _ *command.Context) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: biometric on|off")
	}
	switch strings.ToLower(args[0]) {
	case "on":
		if err := s.session.SetBiometricEnabled(true); err != nil {
			return err
		}
		fmt.Println("Biometric confirmation enabled.")
	case "off":
		if err := s.session.SetBiometricEnabled(false); err != nil {
			return err
		}
		fmt.Println("Biometric confirmation disabled.")
	default:
		return fmt.Errorf("usage: biometric on|off")
	}
	return nil
}

func (s *ShellState) cmdTimeout(args []string, _ *command.Context) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: timeout <minutes|never>")
	}
	minutes := 0
	if !strings.EqualFold(args[0], "never") {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("timeout must be a number of minutes or %q", "never")
		}
		minutes = n
	}
	if err := s.session.SetTimeoutPolicy(minutes); err != nil {
		return err
	}
	if minutes > 0 {
		fmt.Printf("Auto-lock after %d minutes of inactivity.\n", minutes)
	} else {
		fmt.Println("Auto-lock disabled; use 'lock' to lock manually.")
	}
	return nil
}

// ---- transaction commands ----

func (s *ShellState) cmdSend(args []string, _ *command.Context) error {
	params, err := repl.ParseSend(args)
	if err != nil {
		return err
	}
	sender, err := s.lookupAccount(params.From)
	if err != nil {
		return err
	}
	receiver, err := s.resolveAddress(params.To)
	if err != nil {
		return err
	}

	var req *avtxn.SigningRequest
	if params.Asset == "algo" {
		micro, err := algo.ParseAlgos(params.Amount)
		if err != nil {
			return err
		}
		req = avtxn.NewPayment(s.network, sender.Address, receiver, micro)
	} else {
		assetID, err := strconv.ParseUint(params.Asset, 10, 64)
		if err != nil {
			return fmt.Errorf("asset must be %q or a numeric asset id, got %q", "algo", params.Asset)
		}
		amount, err := strconv.ParseUint(params.Amount, 10, 64)
		if err != nil {
			return fmt.Errorf("asset amounts are whole base units, got %q", params.Amount)
		}
		req = avtxn.NewAssetTransfer(s.network, sender.Address, receiver, assetID, amount)
	}
	req.Note = params.Note
	if params.CloseTo != "" {
		closeTo, err := s.resolveAddress(params.CloseTo)
		if err != nil {
			return err
		}
		req.CloseTo = closeTo
	}

	_, err = s.confirmAndSubmit(req, params.Wait)
	return err
}

func (s *ShellState) cmdRekey(args []string, _ *command.Context) error {
	params, err := repl.ParseRekey(args, false)
	if err != nil {
		return err
	}
	account, err := s.lookupAccount(params.Account)
	if err != nil {
		return err
	}
	target, err := s.resolveAddress(params.Authority)
	if err != nil {
		return err
	}
	if target == account.Address {
		return fmt.Errorf("use 'unrekey' to return authority to the account's own key")
	}

	// Refuse chained delegation: the new authority must sign for itself.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	effective, err := s.chain.AuthorityAddress(ctx, target, s.network)
	if err != nil {
		return fmt.Errorf("checking authority %s: %w", util.FormatAddressShort(target), err)
	}
	if effective != target {
		return fmt.Errorf("%s is itself rekeyed to %s; chained delegation is not supported",
			util.FormatAddressShort(target), util.FormatAddressShort(effective))
	}

	req := avtxn.NewRekey(s.network, account.Address, target)
	outcome, err := s.confirmAndSubmit(req, params.Wait)
	if err != nil || outcome == nil {
		return err
	}

	canLocal := s.canSignWith(target)
	if err := s.accounts.MarkRekeyed(account.Address, target, canLocal); err != nil {
		return fmt.Errorf("transaction %s submitted, but recording the rekey locally failed: %w", outcome.TxID, err)
	}
	if canLocal {
		fmt.Printf("%s now signs with %s.\n", account.DisplayName(), util.FormatAddressShort(target))
	} else {
		fmt.Printf("%s now signs with %s. The wallet does not hold that authority, so this account is effectively watch-only here.\n",
			account.DisplayName(), util.FormatAddressShort(target))
	}
	return nil
}

func (s *ShellState) cmdUnrekey(args []string, _ *command.Context) error {
	params, err := repl.ParseRekey(args, true)
	if err != nil {
		return err
	}
	account, err := s.lookupAccount(params.Account)
	if err != nil {
		return err
	}

	req := avtxn.NewRekeyReverse(s.network, account.Address)
	outcome, err := s.confirmAndSubmit(req, params.Wait)
	if err != nil || outcome == nil {
		return err
	}

	if err := s.accounts.ClearRekeyed(account.Address); err != nil {
		return fmt.Errorf("transaction %s submitted, but clearing the local rekey record failed: %w", outcome.TxID, err)
	}
	fmt.Printf("%s signs with its own key again.\n", account.DisplayName())
	return nil
}

func (s *ShellState) cmdKeyreg(args []string, _ *command.Context) error {
	params, err := repl.ParseKeyReg(args)
	if err != nil {
		return err
	}
	account, err := s.lookupAccount(params.Account)
	if err != nil {
		return err
	}

	var req *avtxn.SigningRequest
	if params.Online {
		dilution := params.KeyDilution
		if dilution == 0 {
			// The node's default: square root of the participation window.
			dilution = uint64(math.Sqrt(float64(params.VoteLast - params.VoteFirst)))
		}
		req = avtxn.NewOnlineKeyReg(s.network, account.Address,
			params.VoteKey, params.SelectionKey, params.StateProofKey,
			params.VoteFirst, params.VoteLast, dilution)
	} else {
		req = avtxn.NewOfflineKeyReg(s.network, account.Address)
	}

	_, err = s.confirmAndSubmit(req, params.Wait)
	return err
}

// ---- signer and info commands ----

func (s *ShellState) cmdResolve(args []string, _ *command.Context) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: resolve <account>")
	}
	rec, err := s.lookupAccount(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Account:  %s\n", rec.Address)
	fmt.Printf("Label:    %s\n", rec.DisplayName())
	fmt.Printf("Kind:     %s\n", rec.Kind)
	if rec.AuthorityAddress != "" {
		fmt.Printf("Cached:   authority %s\n", rec.AuthorityAddress)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	signer, err := s.resolver.Resolve(ctx, rec, s.network)
	if err != nil {
		return err
	}
	if signer.EffectiveAddress != rec.Address {
		fmt.Printf("Authority: %s -> %s\n", util.FormatAddressShort(rec.Address), signer.EffectiveAddress)
	} else {
		fmt.Println("Authority: the account signs for itself")
	}
	fmt.Printf("Backend:  %s\n", describeBackend(signer))
	if !signer.Available() {
		fmt.Println("This wallet cannot sign for the account.")
	}
	return nil
}

func (s *ShellState) cmdDevices(_ []string, _ *command.Context) error {
	statuses := s.devices.Statuses()
	if len(statuses) == 0 {
		fmt.Println("No signing devices configured.")
		return nil
	}
	fmt.Println("Signing devices:")
	for _, st := range statuses {
		line := fmt.Sprintf("  %-12s %-8s %-24s %s", st.ID, st.Channel, st.Endpoint, st.State)
		if st.Firmware != "" {
			line += "  fw " + st.Firmware
		}
		if st.LastErr != nil {
			line += fmt.Sprintf("  (%v)", st.LastErr)
		}
		fmt.Println(line)
	}
	return nil
}

func (s *ShellState) cmdStatus(_ []string, _ *command.Context) error {
	snap := s.session.Snapshot()

	fmt.Printf("Network:        %s\n", s.network)
	fmt.Printf("Data directory: %s\n", s.dataDir)
	if snap.Locked {
		fmt.Println("Session:        locked")
	} else {
		fmt.Printf("Session:        unlocked (id %s)\n", snap.SessionID)
	}
	if snap.TimeoutMinutes > 0 {
		fmt.Printf("Auto-lock:      %d minutes\n", snap.TimeoutMinutes)
	} else {
		fmt.Println("Auto-lock:      disabled")
	}
	fmt.Printf("PIN set:        %v\n", s.store.Initialized())
	fmt.Printf("Biometric:      %v\n", snap.BiometricEnabled)
	fmt.Printf("Accounts:       %d\n", len(s.accounts.List()))
	fmt.Printf("Devices:        %d\n", len(s.devices.Statuses()))
	return nil
}

func (s *ShellState) cmdHelp(args []string, _ *command.Context) error {
	if len(args) > 0 {
		cmd, ok := s.registry.Lookup(strings.ToLower(args[0]))
		if !ok {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		command.ShowCommandHelp(cmd)
		return nil
	}
	command.ShowHelp(s.registry, s.network)
	return nil
}

func (s *ShellState) cmdQuit(_ []string, _ *command.Context) error {
	return errExit
}

// ---- signing flow ----

type submitOutcome struct {
	TxID      string
	Confirmed bool
}

// confirmAndSubmit runs the approval flow for one signing request: preview
// with policy findings, explicit operator confirmation, dispatch, submit,
// and (unless nowait) confirmation polling. A nil outcome with nil error
// means the operator declined.
func (s *ShellState) confirmAndSubmit(req *avtxn.SigningRequest, wait bool) (*submitOutcome, error) {
	ctx := context.Background()

	preview, err := s.dispatcher.Preview(ctx, req)
	if err != nil {
		return nil, friendlyDispatchErr(err)
	}

	fmt.Println()
	fmt.Println(preview.Summary)
	blocked := false
	for _, v := range preview.Violations {
		tag := "warning"
		if v.Severity == policy.SeverityCritical {
			tag = "BLOCKED"
			blocked = true
		}
		fmt.Printf("  [%s] %s\n", tag, v.Message)
	}
	if blocked {
		return nil, errors.New("refused by signing policy")
	}
	fmt.Printf("Signs as %s (%s)\n", util.FormatAddressShort(preview.Signer.EffectiveAddress), describeBackend(preview.Signer))

	ok, err := s.confirm("Sign and submit? (y/N): ")
	if err != nil {
		return nil, err
	}
	if !ok {
		fmt.Println("Cancelled.")
		return nil, nil
	}

	artifact, err := s.dispatcher.Dispatch(ctx, req)
	if err != nil {
		return nil, friendlyDispatchErr(err)
	}

	txid, err := s.submitter.Submit(ctx, artifact)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Submitted %s\n", txid)
	outcome := &submitOutcome{TxID: txid}
	if !wait {
		return outcome, nil
	}

	rounds := s.cfg.ConfirmationRounds
	if rounds <= 0 {
		rounds = 4
	}
	fmt.Printf("Waiting up to %d rounds for confirmation...\n", rounds)
	result, err := s.submitter.AwaitConfirmation(ctx, artifact.Network, txid, uint64(rounds))
	if err != nil {
		return outcome, err
	}
	switch result.Status {
	case submit.StatusConfirmed:
		fmt.Printf("Confirmed in round %d.\n", result.Round)
		outcome.Confirmed = true
	case submit.StatusRejected:
		return outcome, fmt.Errorf("rejected by the network: %s", result.Reason)
	default:
		fmt.Printf("Still pending after %d rounds; check later with txid %s.\n", rounds, txid)
	}
	return outcome, nil
}

func friendlyDispatchErr(err error) error {
	if errors.Is(err, dispatch.ErrRequiresUnlock) {
		return errLocked
	}
	return err
}

// ---- helpers ----

// lookupAccount finds a registered account by address or label.
func (s *ShellState) lookupAccount(ref string) (*wallet.AccountRecord, error) {
	if rec, err := s.accounts.Get(ref); err == nil {
		return rec, nil
	}
	for _, rec := range s.accounts.List() {
		if rec.Label != "" && strings.EqualFold(rec.Label, ref) {
			match := rec
			return &match, nil
		}
	}
	return nil, fmt.Errorf("no account matches %q; 'accounts' lists what is registered", ref)
}

// resolveAddress turns a receiver reference into an address: a registered
// account's label or address, or any syntactically valid foreign address.
func (s *ShellState) resolveAddress(ref string) (string, error) {
	if rec, err := s.lookupAccount(ref); err == nil {
		return rec.Address, nil
	}
	if _, err := types.DecodeAddress(ref); err != nil {
		return "", fmt.Errorf("%q is neither a registered account nor a valid address", ref)
	}
	return ref, nil
}

// canSignWith reports whether this wallet can exercise authority for the
// given address, either with a stored key or through a registered
// device/remote account.
func (s *ShellState) canSignWith(address string) bool {
	if s.store.HasKey(address) {
		return true
	}
	rec, err := s.accounts.Get(address)
	if err != nil {
		return false
	}
	return rec.Kind == wallet.KindHardwareDevice || rec.Kind == wallet.KindRemoteSigner
}

// accountCompletions feeds tab completion with registered labels and
// addresses.
func (s *ShellState) accountCompletions() []string {
	var out []string
	for _, rec := range s.accounts.List() {
		if rec.Label != "" {
			out = append(out, rec.Label)
		}
		out = append(out, rec.Address)
	}
	sort.Strings(out)
	return out
}

// biometricPrompt is the CLI stand-in for a platform biometric check: it
// asks the operator to confirm at the terminal.
func (s *ShellState) biometricPrompt(_ context.Context, reason string) error {
	ok, err := s.confirm(fmt.Sprintf("%s — confirm presence (y/N): ", reason))
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("biometric confirmation declined")
	}
	return nil
}

func (s *ShellState) confirm(prompt string) (bool, error) {
	answer, err := readLine(prompt)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo on a terminal and falls back to a plain
// line read when stdin is not one (scripts, tests).
func readSecret(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		return secret, err
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return nil, err
	}
	fmt.Println()
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func readNewPIN() (newPIN, confirmPIN []byte, err error) {
	newPIN, err = readSecret("New PIN: ")
	if err != nil {
		return nil, nil, err
	}
	confirmPIN, err = readSecret("Confirm PIN: ")
	if err != nil {
		avcrypto.ZeroBytes(newPIN)
		return nil, nil, err
	}
	if !bytes.Equal(newPIN, confirmPIN) {
		avcrypto.ZeroBytes(newPIN)
		avcrypto.ZeroBytes(confirmPIN)
		return nil, nil, errors.New("PINs do not match")
	}
	return newPIN, confirmPIN, nil
}

func describeAccount(rec wallet.AccountRecord) string {
	detail := string(rec.Kind)
	switch rec.Kind {
	case wallet.KindStandard:
		detail = "standard"
	case wallet.KindWatchOnly:
		detail = "watch-only"
	case wallet.KindHardwareDevice:
		detail = fmt.Sprintf("hardware device %s", rec.DeviceID)
	case wallet.KindRemoteSigner:
		detail = fmt.Sprintf("remote signer %s", rec.EndpointID)
	case wallet.KindRekeyed:
		scope := "external authority"
		if rec.CanSignLocally {
			scope = "local authority"
		}
		detail = fmt.Sprintf("rekeyed to %s (%s)", util.FormatAddressShort(rec.AuthorityAddress), scope)
	}

	label := rec.Label
	if label == "" {
		label = "-"
	}
	return fmt.Sprintf("%-16s %s  %s", label, rec.Address, detail)
}

func describeBackend(signer authority.AuthoritativeSigner) string {
	switch signer.Backend {
	case authority.BackendLocalKey:
		return "local key"
	case authority.BackendBiometricKey:
		return "local key, biometric confirmation"
	case authority.BackendHardwareDevice:
		return fmt.Sprintf("hardware device %s", signer.DeviceID)
	case authority.BackendRemoteSigner:
		return fmt.Sprintf("remote signer %s", signer.EndpointID)
	default:
		return "unavailable"
	}
}
