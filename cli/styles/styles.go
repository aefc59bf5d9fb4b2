// Package styles provides consistent styling for the cartflow CLI.
package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Color palette
var (
	Primary      = lipgloss.Color("#7C3AED")
	PrimaryLight = lipgloss.Color("#A78BFA")
	Secondary    = lipgloss.Color("#06B6D4")

	Success      = lipgloss.Color("#10B981")
	Warning      = lipgloss.Color("#F59E0B")
	WarningLight = lipgloss.Color("#FBBF24")
	Error        = lipgloss.Color("#EF4444")
	Info         = lipgloss.Color("#3B82F6")

	Text      = lipgloss.Color("#F9FAFB")
	TextMuted = lipgloss.Color("#9CA3AF")
	Surface   = lipgloss.Color("#1F2937")
	Border    = lipgloss.Color("#374151")
)

// Text styles
var (
	Bold = lipgloss.NewStyle().
		Bold(true)

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		MarginBottom(1)

	Subtitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryLight)

	Normal = lipgloss.NewStyle().
		Foreground(Text)

	Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Highlight for important values such as IDs and tokens
	Highlight = lipgloss.NewStyle().
			Bold(true).
			Foreground(Secondary)

	Code = lipgloss.NewStyle().
		Foreground(WarningLight).
		Background(Surface).
		Padding(0, 1)
)

// Status styles
var (
	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error)

	InfoStyle = lipgloss.NewStyle().
			Foreground(Info)
)

const (
	IconSuccess = "✓"
	IconError   = "✗"
	IconWarning = "⚠"
	IconInfo    = "ℹ"
	IconArrow   = "→"
	IconCart    = "🛒"
	IconStream  = "⇶"
)

func newRoundedBox(borderColor lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(1, 2)
}

// Box styles for containers
var (
	Box        = newRoundedBox(Border)
	BoxSuccess = newRoundedBox(Success)
	BoxError   = newRoundedBox(Error)
)

// FormatSuccess formats a success message with icon
func FormatSuccess(msg string) string {
	return SuccessStyle.Render(IconSuccess) + " " + Normal.Render(msg)
}

// FormatError formats an error message with icon
func FormatError(msg string) string {
	return ErrorStyle.Render(IconError) + " " + Normal.Render(msg)
}

// FormatWarning formats a warning message with icon
func FormatWarning(msg string) string {
	return WarningStyle.Render(IconWarning) + " " + Normal.Render(msg)
}

// FormatInfo formats an info message with icon
func FormatInfo(msg string) string {
	return InfoStyle.Render(IconInfo) + " " + Normal.Render(msg)
}

// FormatStep formats a step in a process
func FormatStep(step int, total int, msg string) string {
	stepStyle := lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(8)
	return stepStyle.Render(fmt.Sprintf("[%d/%d]", step, total)) + " " + msg
}

// FormatKeyValue formats a key-value pair
func FormatKeyValue(key, value string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(14)
	return keyStyle.Render(key+":") + " " + Highlight.Render(value)
}

// FormatToken renders an ETag the way HTTP clients would send it back.
func FormatToken(token string) string {
	return FormatKeyValue("ETag", token)
}

// StatusBadge returns a styled badge for a cart status.
func StatusBadge(status string) string {
	badge := lipgloss.NewStyle().Padding(0, 1)
	switch status {
	case "Pending":
		return badge.Background(Warning).Foreground(lipgloss.Color("#000000")).Render(status)
	case "Confirmed":
		return badge.Background(Success).Foreground(lipgloss.Color("#000000")).Render(status)
	case "Canceled":
		return badge.Background(Error).Foreground(lipgloss.Color("#FFFFFF")).Render(status)
	default:
		return badge.Background(Surface).Foreground(Text).Render(status)
	}
}

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(Primary).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Foreground(Text).Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Border)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return t.Render()
}

// Banner renders the CLI title line.
func Banner() string {
	return IconCart + " " + lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("cartflow") +
		Muted.Render("  event-sourced shopping carts")
}

// DisableColors disables all colors for terminals that don't support them
func DisableColors() {
	Primary = lipgloss.Color("")
	PrimaryLight = lipgloss.Color("")
	Secondary = lipgloss.Color("")
	Success = lipgloss.Color("")
	Warning = lipgloss.Color("")
	WarningLight = lipgloss.Color("")
	Error = lipgloss.Color("")
	Info = lipgloss.Color("")
	Text = lipgloss.Color("")
	TextMuted = lipgloss.Color("")
	Surface = lipgloss.Color("")
	Border = lipgloss.Color("")
}
