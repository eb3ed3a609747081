package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual styling for the chat client.
type Theme struct {
	User      lipgloss.Color
	Assistant lipgloss.Color
	Error     lipgloss.Color
	Accent    lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default chat theme.
func DefaultTheme() Theme {
	return Theme{
		User:      lipgloss.Color("12"),  // Blue
		Assistant: lipgloss.Color("10"),  // Green
		Error:     lipgloss.Color("9"),   // Red
		Accent:    lipgloss.Color("14"),  // Cyan
		Muted:     lipgloss.Color("240"), // Gray
	}
}
