package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"civitdl/pkg/ui"
)

// View renders the dashboard
func (m *Model) View() string {
	if m.width == 0 {
		return m.spinner.View() + " Initializing..."
	}

	left := (m.width - 4) / 2
	if left < 30 {
		left = m.width - 2
	}

	sections := []string{
		logoStyle.Render("civitdl • " + m.username),
		lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.JoinVertical(lipgloss.Left, m.renderStatsPanel(left), m.renderActivePanel(left)),
			" ",
			m.renderLogsPanel(left),
		),
	}

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("q quit • ? help"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN ")
	speed, eta := m.Stats()

	status := m.spinner.View() + " listing"
	switch m.phase {
	case PhaseDownloading:
		status = m.spinner.View() + " downloading"
	case PhaseDone:
		status = successStyle.Render("✓ done")
	}

	rows := []string{
		row("Status:", status),
		row("Elapsed:", statsValueStyle.Render(formatDuration(m.now().Sub(m.sessionStartTime)))),
		row("Pages:", statsValueStyle.Render(fmt.Sprintf("%d", m.pages))),
		row("Images listed:", statsValueStyle.Render(fmt.Sprintf("%d", m.listed))),
	}

	if m.phase != PhaseListing {
		rows = append(rows,
			row("Already on disk:", statsValueStyle.Render(fmt.Sprintf("%d", m.existing))),
			row("Downloaded:", statsValueStyle.Render(fmt.Sprintf("%d/%d (%s)", m.completed, m.queued, ui.FormatBytes(m.totalSize)))),
			row("Speed:", speedStyle.Render(FormatSpeed(speed))),
			row("ETA:", statsValueStyle.Render(formatDuration(eta))),
		)
		if m.skipped > 0 {
			rows = append(rows, row("Skipped:", dimStyle.Render(fmt.Sprintf("%d", m.skipped))))
		}
		if m.failed > 0 {
			rows = append(rows, row("Failed:", errorStyle.Render(fmt.Sprintf("%d", m.failed))))
		}
		rows = append(rows, m.overall.ViewAs(m.Fraction()))
	}

	if m.listErr != nil {
		rows = append(rows, warningStyle.Render("listing stopped early"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n")),
	)
}

func (m *Model) renderActivePanel(width int) string {
	title := titleStyle.Render(fmt.Sprintf(" ACTIVE %d/%d ", len(m.ActiveDownloads()), m.concurrency))

	active := m.ActiveDownloads()
	if len(active) == 0 {
		return panelStyle.Width(width).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, dimStyle.Render("No active downloads")),
		)
	}

	var items []string
	for _, item := range active {
		items = append(items, m.renderDownloadItem(item))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(items, "\n")),
	)
}

func (m *Model) renderDownloadItem(item *DownloadItem) string {
	name := filepath.Base(item.Target)
	if item.Attempts > 1 {
		name += warningStyle.Render(fmt.Sprintf(" (attempt %d)", item.Attempts))
	}

	sizeText := ui.FormatBytes(item.Downloaded)
	var bar string
	if item.Size > 0 {
		fraction := float64(item.Downloaded) / float64(item.Size)
		if fraction > 1 {
			fraction = 1
		}
		sizeText += "/" + ui.FormatBytes(item.Size)
		bar = m.itemBar.ViewAs(fraction)
	}

	info := fmt.Sprintf("%s %s @ %s",
		activeItemStyle.Render(name),
		dimStyle.Render(sizeText),
		speedStyle.Render(FormatSpeed(item.Speed)),
	)
	if bar == "" {
		return info
	}
	return info + "\n" + bar
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 12
	if start < 0 {
		start = 0
	}

	var logs []string
	for _, msg := range m.logMessages[start:] {
		text := msg.Message
		if maxLen := width - 22; maxLen > 3 && len(text) > maxLen {
			text = text[:maxLen-3] + "..."
		}
		timestamp := logTimestampStyle.Render(msg.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(msg.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", msg.Level))
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, text))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = dimStyle.Render("No logs yet...")
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := strings.Join([]string{
		"q/Q, ctrl+c  stop the run and quit",
		"?            toggle this help",
		"ctrl+l       clear the log panel",
		"",
		successStyle.Render("green") + "  completed   " +
			warningStyle.Render("orange") + "  retrying   " +
			errorStyle.Render("red") + "  failed",
	}, "\n")
	return panelStyle.Width(m.width - 2).Render(help)
}

func row(label, value string) string {
	return statsLabelStyle.Render(label) + " " + value
}

// formatDuration formats a duration as mm:ss or hh:mm:ss
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
