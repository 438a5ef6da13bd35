// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DeviceConfig describes one hardware signing device endpoint.
type DeviceConfig struct {
	ID       string `yaml:"id" description:"Stable device identifier referenced by hardware accounts"`
	Channel  string `yaml:"channel" description:"Physical channel: wired (unix socket) or wireless (tcp)" default:"wired"`
	Endpoint string `yaml:"endpoint" description:"Socket path (wired) or host:port (wireless)"`
}

// RemoteSignerConfig describes one remote signing endpoint.
type RemoteSignerConfig struct {
	ID    string `yaml:"id" description:"Stable endpoint identifier referenced by remote-signer accounts"`
	URL   string `yaml:"url" description:"Base URL of the remote signer"`
	Token string `yaml:"token" description:"Bearer token for the remote signer"`
}

// Config holds avault configuration settings
type Config struct {
	Network         string   `yaml:"network" description:"Default network (mainnet, testnet, betanet)" default:"testnet"`
	NetworksAllowed []string `yaml:"networks_allowed" description:"Restrict allowed networks (empty = all)" default:"[]"`

	// Mainnet algod settings
	MainnetAlgodServer string `yaml:"mainnet_algod_server" description:"Mainnet algod server URL"`
	MainnetAlgodPort   int    `yaml:"mainnet_algod_port" description:"Mainnet algod port (if separate from URL)"`
	MainnetAlgodToken  string `yaml:"mainnet_algod_token" description:"Mainnet algod API token"`

	// Testnet algod settings
	TestnetAlgodServer string `yaml:"testnet_algod_server" description:"Testnet algod server URL"`
	TestnetAlgodPort   int    `yaml:"testnet_algod_port" description:"Testnet algod port (if separate from URL)"`
	TestnetAlgodToken  string `yaml:"testnet_algod_token" description:"Testnet algod API token"`

	// Betanet algod settings
	BetanetAlgodServer string `yaml:"betanet_algod_server" description:"Betanet algod server URL"`
	BetanetAlgodPort   int    `yaml:"betanet_algod_port" description:"Betanet algod port (if separate from URL)"`
	BetanetAlgodToken  string `yaml:"betanet_algod_token" description:"Betanet algod API token"`

	// Hardware signing devices
	Devices []DeviceConfig `yaml:"devices" description:"Hardware signing device endpoints"`

	// Remote signers
	RemoteSigners []RemoteSignerConfig `yaml:"remote_signers" description:"Remote signing endpoints"`

	// Session behavior
	SessionTimeoutMinutes  int `yaml:"session_timeout_minutes" description:"Lock after inactivity (0 = never)" default:"5"`
	BackgroundGraceSeconds int `yaml:"background_grace_seconds" description:"Lock after this long in the background" default:"30"`

	// Signing and submission behavior
	DeviceTimeoutSeconds int `yaml:"device_timeout_seconds" description:"Deadline for one hardware signature request" default:"30"`
	SubmitAttempts       int `yaml:"submit_attempts" description:"Max submission attempts on transient errors" default:"3"`
	ConfirmationRounds   int `yaml:"confirmation_rounds" description:"Rounds to wait for confirmation" default:"4"`
}

// DefaultConfig returns the default configuration for runtime use.
// Algod URLs are empty - user must explicitly configure them.
func DefaultConfig() Config {
	return Config{
		Network:                "testnet",
		NetworksAllowed:        []string{}, // Empty = all networks allowed
		SessionTimeoutMinutes:  5,
		BackgroundGraceSeconds: 30,
		DeviceTimeoutSeconds:   30,
		SubmitAttempts:         3,
		ConfirmationRounds:     4,
	}
}

// GetDataDir returns the avault data directory.
// Resolution order: -d flag > AVAULT_DATA env var > ~/.avault
func GetDataDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envDir := os.Getenv("AVAULT_DATA"); envDir != "" {
		return envDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "" // Can't determine default
	}
	return filepath.Join(home, ".avault")
}

// RequireDataDir resolves the data directory from the flag value,
// AVAULT_DATA environment variable, or ~/.avault default. Exits if unresolvable.
func RequireDataDir(flagValue string) string {
	dir := GetDataDir(flagValue)
	if dir == "" {
		fmt.Fprintln(os.Stderr, "Error: Could not determine data directory")
		fmt.Fprintln(os.Stderr, "Use -d <path> or set AVAULT_DATA environment variable")
		os.Exit(1)
	}
	return dir
}

// EnsureDataDir creates the data directory (owner-only) if it does not
// exist. The explicit chmod tightens a pre-existing directory and bypasses
// umask restrictions on a fresh one.
func EnsureDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return os.Chmod(dir, 0700)
}

// GetConfigPath returns the path to the config file in the data directory.
// Returns empty string if dataDir is empty.
func GetConfigPath(dataDir string) string {
	if dataDir == "" {
		return ""
	}
	return filepath.Join(dataDir, "config.yaml")
}

// LoadConfig loads configuration from config.yaml in the data directory.
// If dataDir is empty or the file doesn't exist, returns default config.
// Returns an error if the config is invalid.
func LoadConfig(dataDir string) (Config, error) {
	return LoadConfigFromPath(GetConfigPath(dataDir))
}

// LoadConfigFromPath loads configuration from the specified path.
// If path is empty or the file doesn't exist, returns default config.
func LoadConfigFromPath(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		// Other errors - log but return defaults
		_, _ = fmt.Fprintf(os.Stderr, "Warning: Failed to read config file: %v\n", err)
		return DefaultConfig(), nil
	}

	// Start with defaults, then overlay config file values
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) validate() error {
	validNetworks := map[string]bool{
		"mainnet": true,
		"testnet": true,
		"betanet": true,
	}
	if !validNetworks[c.Network] {
		return fmt.Errorf("invalid network '%s' in config (must be mainnet, testnet, or betanet)", c.Network)
	}

	for _, n := range c.NetworksAllowed {
		if !validNetworks[n] {
			return fmt.Errorf("invalid network '%s' in networks_allowed (must be mainnet, testnet, or betanet)", n)
		}
	}
	if len(c.NetworksAllowed) > 0 && !c.IsNetworkAllowed(c.Network) {
		return fmt.Errorf("network '%s' is not in networks_allowed %v", c.Network, c.NetworksAllowed)
	}

	seenDevices := make(map[string]bool)
	for _, d := range c.Devices {
		if d.ID == "" {
			return fmt.Errorf("device entry missing id")
		}
		if seenDevices[d.ID] {
			return fmt.Errorf("duplicate device id '%s'", d.ID)
		}
		seenDevices[d.ID] = true
		if d.Channel != "wired" && d.Channel != "wireless" {
			return fmt.Errorf("device '%s': channel must be wired or wireless, got '%s'", d.ID, d.Channel)
		}
		if d.Endpoint == "" {
			return fmt.Errorf("device '%s': endpoint is required", d.ID)
		}
	}

	seenSigners := make(map[string]bool)
	for _, r := range c.RemoteSigners {
		if r.ID == "" {
			return fmt.Errorf("remote signer entry missing id")
		}
		if seenSigners[r.ID] {
			return fmt.Errorf("duplicate remote signer id '%s'", r.ID)
		}
		seenSigners[r.ID] = true
		if r.URL == "" {
			return fmt.Errorf("remote signer '%s': url is required", r.ID)
		}
	}

	if c.SessionTimeoutMinutes < 0 {
		return fmt.Errorf("session_timeout_minutes must not be negative")
	}
	if c.BackgroundGraceSeconds <= 0 {
		return fmt.Errorf("background_grace_seconds must be positive")
	}
	if c.DeviceTimeoutSeconds <= 0 {
		return fmt.Errorf("device_timeout_seconds must be positive")
	}
	if c.SubmitAttempts <= 0 {
		return fmt.Errorf("submit_attempts must be positive")
	}
	if c.ConfirmationRounds <= 0 {
		return fmt.Errorf("confirmation_rounds must be positive")
	}

	return nil
}

// IsNetworkAllowed checks if switching to the given network is allowed
func (c *Config) IsNetworkAllowed(network string) bool {
	// If networks_allowed is empty, all networks are allowed
	if len(c.NetworksAllowed) == 0 {
		return true
	}
	for _, n := range c.NetworksAllowed {
		if n == network {
			return true
		}
	}
	return false
}

// Device returns the device config for the given id, if configured.
func (c *Config) Device(id string) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// RemoteSigner returns the remote signer config for the given id, if configured.
func (c *Config) RemoteSigner(id string) (RemoteSignerConfig, bool) {
	for _, r := range c.RemoteSigners {
		if r.ID == id {
			return r, true
		}
	}
	return RemoteSignerConfig{}, false
}

// SessionTimeout returns the inactivity timeout, 0 meaning never.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

// BackgroundGrace returns how long the wallet may stay backgrounded unlocked.
func (c *Config) BackgroundGrace() time.Duration {
	return time.Duration(c.BackgroundGraceSeconds) * time.Second
}

// DeviceTimeout returns the deadline for a single hardware signature request.
func (c *Config) DeviceTimeout() time.Duration {
	return time.Duration(c.DeviceTimeoutSeconds) * time.Second
}

// AlgodConfig holds algod connection settings for a network
type AlgodConfig struct {
	Server string
	Port   int
	Token  string
}

// Address returns the full algod address, including port if specified
func (a *AlgodConfig) Address() string {
	if a.Port > 0 {
		return fmt.Sprintf("%s:%d", a.Server, a.Port)
	}
	return a.Server
}

// AlgodFor returns the algod settings for the given network.
func (c *Config) AlgodFor(network string) AlgodConfig {
	switch network {
	case "mainnet":
		return AlgodConfig{Server: c.MainnetAlgodServer, Port: c.MainnetAlgodPort, Token: c.MainnetAlgodToken}
	case "testnet":
		return AlgodConfig{Server: c.TestnetAlgodServer, Port: c.TestnetAlgodPort, Token: c.TestnetAlgodToken}
	case "betanet":
		return AlgodConfig{Server: c.BetanetAlgodServer, Port: c.BetanetAlgodPort, Token: c.BetanetAlgodToken}
	default:
		return AlgodConfig{}
	}
}
