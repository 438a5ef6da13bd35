// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/avault-algo/avault/internal/policy"
	"github.com/avault-algo/avault/internal/protocol"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	criticalStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	buttonStyle = lipgloss.NewStyle().
			Padding(0, 2).
			Border(lipgloss.RoundedBorder())

	buttonActiveStyle = buttonStyle.
				BorderForeground(lipgloss.Color("42")).
				Foreground(lipgloss.Color("42"))

	buttonInactiveStyle = buttonStyle.
				BorderForeground(lipgloss.Color("241")).
				Foreground(lipgloss.Color("241"))

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(1, 2)

	viewportStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	approvedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	rejectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// prompt is one signature request awaiting the operator's decision.
type prompt struct {
	req  protocol.SigRequestMessage
	resp chan Decision
}

// Messages from the connection goroutines into the program.
type (
	promptMsg       struct{ p *prompt }
	dismissMsg      struct{ id string } // wallet withdrew the request
	eventMsg        struct{ text string }
	serverFailedMsg struct{ err error }
)

type viewState int

const (
	viewWaiting viewState = iota
	viewApproval
)

type model struct {
	deviceID string
	address  string
	channel  string
	endpoint string

	width  int
	height int

	state   viewState
	pending *prompt
	queue   []*prompt
	focus   int // 0 = approve, 1 = reject
	vp      viewport.Model

	activity []string
	err      error
}

func newModel(deviceID, address, channel, endpoint string) model {
	return model{
		deviceID: deviceID,
		address:  address,
		channel:  channel,
		endpoint: endpoint,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.pending != nil {
			m.initViewport(m.pending.req.Description)
		}
		return m, nil

	case promptMsg:
		if m.pending == nil {
			m.present(msg.p)
		} else {
			m.queue = append(m.queue, msg.p)
			m.note(fmt.Sprintf("queued %s (%d waiting)", summarizeRequest(msg.p.req), len(m.queue)))
		}
		return m, nil

	case dismissMsg:
		m.dismiss(msg.id)
		return m, nil

	case eventMsg:
		m.note(msg.text)
		return m, nil

	case serverFailedMsg:
		m.err = msg.err
		return m, tea.Quit

	case tea.KeyMsg:
		if m.state == viewApproval {
			return m.handleApprovalKeys(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleApprovalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left":
		m.focus = 0
	case "right":
		m.focus = 1
	case "tab":
		m.focus = (m.focus + 1) % 2
	case "enter", " ":
		m.decide(m.focus == 0)
	case "y", "a":
		m.decide(true)
	case "n", "r", "esc":
		m.decide(false)
	case "up", "k":
		m.vp.LineUp(1)
	case "down", "j":
		m.vp.LineDown(1)
	case "pgup":
		m.vp.ViewUp()
	case "pgdown":
		m.vp.ViewDown()
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

// present puts a request on screen. Callers hold the invariant that no
// other prompt is showing.
func (m *model) present(p *prompt) {
	m.pending = p
	m.state = viewApproval
	m.focus = 0
	m.initViewport(p.req.Description)
}

func (m *model) initViewport(content string) {
	w := 72
	if m.width > 0 && m.width-12 < w {
		w = m.width - 12
	}
	if w < 40 {
		w = 40
	}
	h := 10
	if m.height > 0 && m.height-18 < h {
		h = m.height - 18
	}
	if h < 4 {
		h = 4
	}
	m.vp = viewport.New(w, h)
	m.vp.SetContent(content)
}

// decide resolves the pending prompt and advances the queue.
func (m *model) decide(approved bool) {
	if m.pending == nil {
		return
	}
	d := Decision{Approved: approved}
	verdict := approvedStyle.Render("approved")
	if !approved {
		d.Reason = "rejected on device"
		verdict = rejectedStyle.Render("rejected")
	}
	m.pending.resp <- d
	m.note(fmt.Sprintf("%s %s", verdict, summarizeRequest(m.pending.req)))
	m.next()
}

// dismiss drops a withdrawn request, on screen or still queued.
func (m *model) dismiss(id string) {
	if m.pending != nil && m.pending.req.ID == id {
		m.note("request withdrawn by wallet")
		m.next()
		return
	}
	for i, p := range m.queue {
		if p.req.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.note("queued request withdrawn")
			return
		}
	}
}

func (m *model) next() {
	m.pending = nil
	if len(m.queue) > 0 {
		p := m.queue[0]
		m.queue = m.queue[1:]
		m.present(p)
		return
	}
	m.state = viewWaiting
}

func (m *model) note(text string) {
	stamp := time.Now().Format("15:04:05")
	m.activity = append(m.activity, fmt.Sprintf("%s  %s", stamp, text))
	if len(m.activity) > 8 {
		m.activity = m.activity[len(m.activity)-8:]
	}
}

func (m model) View() string {
	if m.state == viewApproval && m.pending != nil {
		return m.renderApproval()
	}
	return m.renderWaiting()
}

func (m model) renderWaiting() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("avdevice " + m.deviceID))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Key:       %s\n", m.address))
	sb.WriteString(fmt.Sprintf("Listening: %s (%s)\n\n", m.endpoint, m.channel))
	sb.WriteString("Waiting for signing requests...\n\n")

	if len(m.activity) > 0 {
		sb.WriteString(subtitleStyle.Render("Recent activity:"))
		sb.WriteString("\n")
		for _, line := range m.activity {
			sb.WriteString("  " + line + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString(helpStyle.Render("q: Quit"))
	return sb.String()
}

func (m model) renderApproval() string {
	req := m.pending.req
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Signing Request"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("Authority: %s\n", req.Address))
	if req.TxnSender != "" && req.TxnSender != req.Address {
		sb.WriteString(fmt.Sprintf("Sender:    %s (rekeyed)\n", req.TxnSender))
	}
	sb.WriteString("\n")
	sb.WriteString("Transaction (↑/↓ to scroll):\n")
	sb.WriteString(viewportStyle.Render(m.vp.View()))
	if m.vp.TotalLineCount() > m.vp.Height {
		sb.WriteString(fmt.Sprintf("\n[%.0f%% - %d lines]", m.vp.ScrollPercent()*100, m.vp.TotalLineCount()))
	}
	sb.WriteString("\n\n")

	for _, v := range req.Violations {
		if v.Severity == policy.SeverityCritical {
			sb.WriteString(criticalStyle.Render("⚠ CRITICAL: " + v.Field))
		} else {
			sb.WriteString(warningStyle.Render("⚠ WARNING: " + v.Field))
		}
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render("   " + v.Message))
		sb.WriteString("\n")
	}
	if len(req.Violations) > 0 {
		sb.WriteString("\n")
	}

	var approveBtn, rejectBtn string
	if m.focus == 0 {
		approveBtn = buttonActiveStyle.Render("> APPROVE")
		rejectBtn = buttonInactiveStyle.Render("  REJECT")
	} else {
		approveBtn = buttonInactiveStyle.Render("  APPROVE")
		rejectBtn = buttonActiveStyle.Render("> REJECT")
	}
	sb.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, approveBtn, "  ", rejectBtn))
	sb.WriteString("\n\n")

	if len(m.queue) > 0 {
		sb.WriteString(subtitleStyle.Render(fmt.Sprintf("%d more request(s) queued", len(m.queue))))
		sb.WriteString("\n")
	}
	sb.WriteString(helpStyle.Render("y/a: Approve | n/r: Reject | ↑↓/jk: Scroll | Tab/←→: Switch | Enter: Confirm"))

	return "\n" + popupStyle.Width(80).Render(sb.String())
}

// tuiApprover routes decisions through the running bubbletea program.
type tuiApprover struct {
	program *tea.Program
}

func (a *tuiApprover) Decide(ctx context.Context, req protocol.SigRequestMessage) (Decision, error) {
	p := &prompt{req: req, resp: make(chan Decision, 1)}
	a.program.Send(promptMsg{p: p})

	select {
	case d := <-p.resp:
		return d, nil
	case <-ctx.Done():
		a.program.Send(dismissMsg{id: req.ID})
		return Decision{}, ctx.Err()
	}
}
