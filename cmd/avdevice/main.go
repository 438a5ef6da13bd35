// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

// avdevice simulates a hardware signing device for development and
// integration testing. It holds an ed25519 key, listens where the wallet's
// device transport dials, and approves or rejects each signature request,
// interactively in a terminal UI or headlessly with -auto.
package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/avault-algo/avault/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information and exit")
	dirFlag := flag.String("d", "", "Device state directory (default: $AVDEVICE_DATA or ~/.avdevice)")
	idFlag := flag.String("id", "avdevice", "Device identifier announced in hello")
	firmwareFlag := flag.String("firmware", "sim-"+version.Version, "Firmware string announced in hello")
	channelFlag := flag.String("channel", "wired", "Listen channel: wired (unix socket) or wireless (tcp)")
	endpointFlag := flag.String("endpoint", "", "Socket path (wired) or host:port (wireless); default <dir>/device.sock")
	autoFlag := flag.Bool("auto", false, "Decide headlessly instead of showing the approval UI")
	autoDelayFlag := flag.Duration("auto-delay", 0, "Wait this long before each automatic decision")
	autoRejectFlag := flag.String("auto-reject", "", "Reject automatically with this reason instead of approving")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("avdevice %s\n", version.String())
		return
	}

	if err := run(*dirFlag, *idFlag, *firmwareFlag, *channelFlag, *endpointFlag, *autoFlag, *autoDelayFlag, *autoRejectFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dir, id, firmware, channel, endpoint string, auto bool, autoDelay time.Duration, autoReject string) error {
	dir, err := resolveDir(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	priv, err := loadOrCreateKey(filepath.Join(dir, "device.key"))
	if err != nil {
		return err
	}
	address := deviceAddress(priv.Public().(ed25519.PublicKey))

	if endpoint == "" {
		switch channel {
		case "wired":
			endpoint = filepath.Join(dir, "device.sock")
		case "wireless":
			endpoint = "127.0.0.1:9734"
		}
	}

	ln, err := listen(channel, endpoint)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", endpoint, err)
	}
	defer ln.Close()
	if channel == "wired" {
		defer os.Remove(endpoint)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if auto {
		return runHeadless(ctx, ln, id, firmware, address, channel, endpoint, priv, autoDelay, autoReject)
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a terminal; run with -auto for headless operation")
	}
	return runTUI(ctx, ln, id, firmware, address, channel, endpoint, priv)
}

func runHeadless(ctx context.Context, ln net.Listener, id, firmware, address, channel, endpoint string, priv ed25519.PrivateKey, delay time.Duration, reject string) error {
	fmt.Printf("avdevice %s\n", version.String())
	fmt.Printf("Device:    %s\n", id)
	fmt.Printf("Key:       %s\n", address)
	fmt.Printf("Listening: %s (%s)\n", endpoint, channel)

	mode := "approving automatically"
	if reject != "" {
		mode = fmt.Sprintf("rejecting automatically (%q)", reject)
	}
	if delay > 0 {
		mode += fmt.Sprintf(" after %s", delay)
	}
	fmt.Println(mode)

	approver := &autoApprover{
		delay:  delay,
		reject: reject,
		notify: func(text string) { fmt.Println(text) },
	}
	srv := NewServer(id, firmware, priv, approver)
	srv.notify = approver.notify
	return srv.Serve(ctx, ln)
}

func runTUI(ctx context.Context, ln net.Listener, id, firmware, address, channel, endpoint string, priv ed25519.PrivateKey) error {
	p := tea.NewProgram(newModel(id, address, channel, endpoint), tea.WithAltScreen())

	srv := NewServer(id, firmware, priv, &tuiApprover{program: p})
	srv.notify = func(text string) { p.Send(eventMsg{text: text}) }

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := srv.Serve(serveCtx, ln); err != nil {
			p.Send(serverFailedMsg{err: err})
		}
	}()

	// Quit the UI when the process is signalled.
	go func() {
		<-ctx.Done()
		p.Send(tea.Quit())
	}()

	finalModel, err := p.Run()
	cancel()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}

func resolveDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("AVDEVICE_DATA"); env != "" {
		return env, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".avdevice"), nil
}
