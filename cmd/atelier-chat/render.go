package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"atelier/pkg/protocol"
)

// renderConversation renders the message list. In selection mode the cursor
// row gets a marker and highlight.
func renderConversation(messages []protocol.Message, cursor int, selecting bool, spin string, width int) string {
	theme := DefaultTheme()
	if len(messages) == 0 {
		return lipgloss.NewStyle().Foreground(theme.Muted).Render("no messages yet")
	}

	var b strings.Builder
	for i, msg := range messages {
		marker := "  "
		if selecting && i == cursor {
			marker = lipgloss.NewStyle().Foreground(theme.Accent).Render("> ")
		}
		b.WriteString(marker)
		b.WriteString(renderMessage(msg, theme, spin, width-2))
		if i < len(messages)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderMessage renders one message with its sender prefix.
func renderMessage(msg protocol.Message, theme Theme, spin string, width int) string {
	var prefix string
	var style lipgloss.Style

	switch {
	case msg.Loading:
		prefix = spin + " "
		style = lipgloss.NewStyle().Foreground(theme.Muted)
	case msg.RetryID != "":
		prefix = "! "
		style = lipgloss.NewStyle().Foreground(theme.Error)
	case msg.Sender == protocol.SenderUser:
		prefix = "you: "
		style = lipgloss.NewStyle().Foreground(theme.User)
	default:
		prefix = "atelier: "
		style = lipgloss.NewStyle().Foreground(theme.Assistant)
	}

	text := msg.Text
	if msg.Loading && text == "" {
		text = "working..."
	}
	if width > len(prefix)+8 {
		style = style.Width(width)
	}
	return style.Render(prefix + text)
}

// renderHeader renders the top bar: scope plus delivery mode.
func renderHeader(scope protocol.Scope, live bool, width int) string {
	theme := DefaultTheme()

	delivery := "polling"
	deliveryStyle := lipgloss.NewStyle().Foreground(theme.Muted)
	if live {
		delivery = "live"
		deliveryStyle = lipgloss.NewStyle().Foreground(theme.Assistant)
	}

	left := lipgloss.NewStyle().Bold(true).Foreground(theme.Accent).Render("atelier")
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		left,
		lipgloss.NewStyle().Foreground(theme.Muted).Render(fmt.Sprintf("  %s  ", scope.Key())),
		deliveryStyle.Render(delivery),
	)
}

// renderStatus renders the transient status line, with a spinner while a task
// is in flight.
func renderStatus(status string, processing bool, spin string) string {
	theme := DefaultTheme()
	if processing {
		return lipgloss.NewStyle().Foreground(theme.Accent).Render(spin + " waiting for the assistant...")
	}
	return lipgloss.NewStyle().Foreground(theme.Muted).Render(status)
}

// renderHelp renders the key hints for the active mode.
func renderHelp(m mode) string {
	theme := DefaultTheme()
	style := lipgloss.NewStyle().Foreground(theme.Muted)
	if m == modeSelect {
		return style.Render("up/down: select | enter: revert here (retry if failed) | esc: cancel")
	}
	return style.Render("enter: send | ctrl+r: revert | esc: clear/quit | ctrl+c: quit")
}
