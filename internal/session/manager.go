// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// Package session owns the wallet's lock/unlock state machine. Exactly one
// Manager exists per process, created in main and passed explicitly to every
// consumer. All transitions happen under the manager's mutex; collaborators
// observe state through Snapshot and SubscribeLockState, never directly.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/google/uuid"

	"github.com/avault-algo/avault/internal/audit"
	"github.com/avault-algo/avault/internal/credential"
)

const topicLockState = "session:lock_state"

// Defaults, overridable via options and auth.yaml.
const (
	DefaultTimeoutMinutes  = 5
	DefaultBackgroundGrace = 30 * time.Second
)

// AuthSession is a read-only snapshot of the session state.
type AuthSession struct {
	Locked         bool
	Authenticated  bool
	SessionID      string // empty when not authenticated
	LastActivityAt time.Time
	BackgroundedAt time.Time // zero while foregrounded

	// TimeoutMinutes is the inactivity auto-lock policy. 0 = never.
	TimeoutMinutes   int
	BiometricEnabled bool
	HasCredential    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithBackgroundGrace sets how long the session survives backgrounding.
func WithBackgroundGrace(d time.Duration) Option {
	return func(m *Manager) { m.backgroundGrace = d }
}

// WithDefaultTimeout sets the inactivity policy used when auth.yaml is
// absent. 0 disables auto-lock.
func WithDefaultTimeout(minutes int) Option {
	return func(m *Manager) { m.defaultTimeout = minutes }
}

// WithAudit records unlock/lock/auth-failure events to the audit trail.
func WithAudit(a *audit.Logger) Option {
	return func(m *Manager) { m.audit = a }
}

// Manager is the auth session state machine.
type Manager struct {
	store        *credential.Store
	settingsPath string
	bus          evbus.Bus
	audit        *audit.Logger

	backgroundGrace time.Duration
	defaultTimeout  int

	mu             sync.Mutex
	timeoutMinutes int
	locked         bool
	authenticated  bool
	sessionID      string
	lastActivity   time.Time
	backgroundedAt time.Time

	timerMu       sync.Mutex // protects the timers across handlers and callbacks
	activityTimer *time.Timer
	graceTimer    *time.Timer
}

// NewManager builds the session manager over the credential store. The
// initial state is Locked unless no credential has ever been configured —
// a fresh wallet has nothing to protect and starts unlocked.
func NewManager(store *credential.Store, settingsPath string, opts ...Option) (*Manager, error) {
	m := &Manager{
		store:           store,
		settingsPath:    settingsPath,
		bus:             evbus.New(),
		backgroundGrace: DefaultBackgroundGrace,
		defaultTimeout:  DefaultTimeoutMinutes,
	}
	for _, opt := range opts {
		opt(m)
	}

	settings, err := loadSettings(settingsPath, Settings{TimeoutMinutes: m.defaultTimeout})
	if err != nil {
		return nil, err
	}
	m.timeoutMinutes = settings.TimeoutMinutes

	// A wallet that never configured a PIN runs on the empty-PIN master key
	// so the envelope machinery stays uniform.
	if !store.Initialized() {
		if err := store.Initialize(nil); err != nil {
			return nil, fmt.Errorf("failed to initialize credential store: %w", err)
		}
	}

	if store.HasCredential() {
		m.locked = true
	} else if !store.Unlocked() {
		if err := store.Unlock(nil); err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
	}
	return m, nil
}

// Unlock verifies the PIN and transitions to Unlocked with a fresh session
// id. A caller that finds the session already unlocked returns without
// issuing another id. Attempt counting and backoff belong to the caller.
func (m *Manager) Unlock(ctx context.Context, pin []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.locked {
		m.mu.Unlock()
		return nil
	}
	if err := m.store.Unlock(pin); err != nil {
		m.mu.Unlock()
		if m.audit != nil {
			m.audit.LogAuthFailed("pin", err.Error())
		}
		return err
	}
	sessionID := m.completeUnlockLocked()
	m.mu.Unlock()

	if m.audit != nil {
		m.audit.LogUnlock(sessionID, "pin")
	}
	return nil
}

// UnlockWithBiometric transitions to Unlocked after a platform biometric
// confirmation. The PIN-derived master key is only resident within the
// process lifetime; after a restart the first unlock must be the PIN,
// which this reports as ErrBiometricUnavailable.
func (m *Manager) UnlockWithBiometric(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if !m.locked {
		m.mu.Unlock()
		return nil
	}
	if !m.store.Unlocked() {
		m.mu.Unlock()
		return fmt.Errorf("%w: PIN unlock required first", credential.ErrBiometricUnavailable)
	}
	m.mu.Unlock()

	// The prompt blocks on the user; never hold the mutex across it.
	if err := m.store.ConfirmBiometric(ctx, "Unlock wallet"); err != nil {
		if m.audit != nil {
			m.audit.LogAuthFailed("biometric", err.Error())
		}
		return err
	}

	m.mu.Lock()
	if !m.locked {
		m.mu.Unlock()
		return nil
	}
	sessionID := m.completeUnlockLocked()
	m.mu.Unlock()

	if m.audit != nil {
		m.audit.LogUnlock(sessionID, "biometric")
	}
	return nil
}

// completeUnlockLocked transitions to Unlocked: fresh session id, activity
// reset, timer armed, event published. Must be called with m.mu held.
func (m *Manager) completeUnlockLocked() string {
	m.locked = false
	m.authenticated = true
	m.sessionID = uuid.NewString()
	m.lastActivity = time.Now()
	m.backgroundedAt = time.Time{}
	m.armActivityTimer()
	m.bus.Publish(topicLockState, false)
	return m.sessionID
}

// Lock transitions to Locked. No-op when no credential is configured: a
// wallet without a PIN must remain usable.
func (m *Manager) Lock() {
	m.lock("explicit")
}

func (m *Manager) lock(cause string) {
	m.mu.Lock()
	if !m.store.HasCredential() || m.locked {
		m.mu.Unlock()
		return
	}
	sessionID := m.sessionID
	m.locked = true
	m.authenticated = false
	m.sessionID = ""
	m.backgroundedAt = time.Time{}
	m.stopTimers()
	// With biometrics enabled the master key stays resident so a biometric
	// confirmation can reopen the session; otherwise only the PIN can
	// re-derive it.
	if !m.store.IsBiometricEnabled() {
		m.store.Lock()
	}
	m.bus.Publish(topicLockState, true)
	m.mu.Unlock()

	if m.audit != nil {
		m.audit.LogLock(sessionID, cause)
	}
}

// RecordActivity refreshes the inactivity deadline. Never changes lock state.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return
	}
	m.lastActivity = time.Now()
	m.armActivityTimer()
}

// OnBackground starts the grace period. If it elapses while still
// backgrounded, the session locks.
func (m *Manager) OnBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return
	}
	m.backgroundedAt = time.Now()

	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.graceTimer != nil {
		m.graceTimer.Stop()
	}
	m.graceTimer = time.AfterFunc(m.backgroundGrace, m.graceExpired)
}

// OnForeground clears the grace period.
func (m *Manager) OnForeground() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backgroundedAt = time.Time{}

	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
}

func (m *Manager) graceExpired() {
	m.mu.Lock()
	stillBackgrounded := !m.backgroundedAt.IsZero()
	m.mu.Unlock()
	if stillBackgrounded {
		m.lock("background")
	}
}

// armActivityTimer (re)arms the inactivity timer per the current policy.
// Must be called with m.mu held.
func (m *Manager) armActivityTimer() {
	timeout := m.activityTimeout()

	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if timeout <= 0 {
		if m.activityTimer != nil {
			m.activityTimer.Stop()
			m.activityTimer = nil
		}
		return
	}
	if m.activityTimer != nil {
		m.activityTimer.Reset(timeout)
	} else {
		m.activityTimer = time.AfterFunc(timeout, m.activityExpired)
	}
}

func (m *Manager) activityExpired() {
	m.mu.Lock()
	timeout := m.activityTimeout()
	if m.locked || timeout <= 0 {
		m.mu.Unlock()
		return
	}
	// Guard against a stale fire: activity since this timer was scheduled
	// re-arms instead of locking.
	if time.Since(m.lastActivity) < timeout {
		m.armActivityTimer()
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.lock("inactivity")
}

// activityTimeout returns the policy as a duration. Must hold m.mu.
func (m *Manager) activityTimeout() time.Duration {
	return time.Duration(m.timeoutMinutes) * time.Minute
}

// stopTimers halts both timers. Must be called with m.mu held.
func (m *Manager) stopTimers() {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	if m.activityTimer != nil {
		m.activityTimer.Stop()
		m.activityTimer = nil
	}
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
}

// Snapshot returns a read-only copy of the session state.
func (m *Manager) Snapshot() AuthSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return AuthSession{
		Locked:           m.locked,
		Authenticated:    m.authenticated,
		SessionID:        m.sessionID,
		LastActivityAt:   m.lastActivity,
		BackgroundedAt:   m.backgroundedAt,
		TimeoutMinutes:   m.timeoutMinutes,
		BiometricEnabled: m.store.IsBiometricEnabled(),
		HasCredential:    m.store.HasCredential(),
	}
}

// SubscribeLockState registers fn for lock/unlock transitions, letting
// upstream surfaces gate deep links and notification delivery. Callbacks
// run asynchronously and cannot block transitions.
func (m *Manager) SubscribeLockState(fn func(locked bool)) error {
	return m.bus.SubscribeAsync(topicLockState, fn, false)
}

// SetTimeoutPolicy persists the inactivity policy and re-arms the timer.
// 0 disables auto-lock.
func (m *Manager) SetTimeoutPolicy(minutes int) error {
	if minutes < 0 {
		return fmt.Errorf("timeout minutes cannot be negative")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := saveSettings(m.settingsPath, Settings{TimeoutMinutes: minutes}); err != nil {
		return err
	}
	m.timeoutMinutes = minutes
	if !m.locked {
		m.armActivityTimer()
	}
	return nil
}

// SetBiometricEnabled persists the wallet-wide biometric flag. Disabling it
// while locked withdraws the resident master key.
func (m *Manager) SetBiometricEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.SetBiometricEnabled(enabled); err != nil {
		return err
	}
	if !enabled && m.locked {
		m.store.Lock()
	}
	return nil
}

// SetPIN configures or changes the wallet PIN (empty old PIN for a wallet
// that never had one; empty new PIN removes it). The session ends up
// unlocked: the caller just proved the credential.
func (m *Manager) SetPIN(oldPIN, newPIN []byte) error {
	m.mu.Lock()
	if err := m.store.ChangePIN(oldPIN, newPIN); err != nil {
		m.mu.Unlock()
		return err
	}

	var sessionID string
	switch {
	case !m.store.HasCredential():
		// PIN removed: permanently unlocked, nothing to authenticate against.
		wasLocked := m.locked
		m.locked = false
		m.authenticated = false
		m.sessionID = ""
		m.stopTimers()
		if wasLocked {
			m.bus.Publish(topicLockState, false)
		}
	case m.locked || m.sessionID == "":
		sessionID = m.completeUnlockLocked()
	default:
		sessionID = m.sessionID
	}
	m.mu.Unlock()

	if sessionID != "" && m.audit != nil {
		m.audit.LogUnlock(sessionID, "pin_change")
	}
	return nil
}
