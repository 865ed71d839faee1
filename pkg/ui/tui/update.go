package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"civitdl/internal/downloader"
)

// Message types for the TUI

// ListingStartedMsg is sent before the first page is requested
type ListingStartedMsg struct {
	Username string
}

// PageRequestedMsg is sent before each page request
type PageRequestedMsg struct {
	Page int
}

// PageFetchedMsg is sent after each listing page
type PageFetchedMsg struct {
	Page  int
	Items int
	Total int
}

// ListingFinishedMsg is sent when pagination ends
type ListingFinishedMsg struct {
	Username string
	Total    int
	Pages    int
	Err      error
}

// QueuedMsg is sent once the download plan is known
type QueuedMsg struct {
	Queued   int
	Existing int
}

// DownloadStartMsg is sent at the start of every attempt
type DownloadStartMsg struct {
	Job  downloader.DownloadJob
	Size int64
}

// DownloadProgressMsg is sent to update download progress
type DownloadProgressMsg struct {
	ID      string
	Written int64
	Size    int64
}

// DownloadFinishedMsg is sent once per job
type DownloadFinishedMsg struct {
	Result downloader.DownloadResult
}

// RunFinishedMsg is sent when every download has finished
type RunFinishedMsg struct {
	Summary *downloader.Summary
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		barWidth := msg.Width/2 - 12
		if barWidth < 10 {
			barWidth = 10
		}
		m.overall.Width = barWidth
		m.itemBar.Width = barWidth - 10
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		if m.phase == PhaseDone {
			return m, nil
		}
		return m, tickCmd()

	case ListingStartedMsg:
		m.username = msg.Username
		m.phase = PhaseListing
		m.AddLogMessage("INFO", "Listing images for "+msg.Username)
		return m, nil

	case PageRequestedMsg:
		m.AddLogMessage("INFO", fmt.Sprintf("Fetching images (Batch %d)...", msg.Page))
		return m, nil

	case PageFetchedMsg:
		m.pages = msg.Page
		m.listed = msg.Total
		return m, nil

	case ListingFinishedMsg:
		m.pages = msg.Pages
		m.listed = msg.Total
		m.listErr = msg.Err
		switch {
		case msg.Err != nil:
			m.AddLogMessage("ERROR", msg.Err.Error())
		case msg.Total == 0:
			m.AddLogMessage("WARN", fmt.Sprintf("User '%s' found, but they have no public images.", msg.Username))
		default:
			m.AddLogMessage("SUCCESS", fmt.Sprintf("Found a total of %d images for %s.", msg.Total, msg.Username))
		}
		if msg.Total == 0 {
			m.phase = PhaseDone
			return m, tea.Quit
		}
		return m, nil

	case QueuedMsg:
		m.queued = msg.Queued
		m.existing = msg.Existing
		m.phase = PhaseDownloading
		m.downloadStart = m.now()
		m.AddLogMessage("INFO", fmt.Sprintf("Queueing %d new images for download...", msg.Queued))
		return m, nil

	case DownloadStartMsg:
		m.StartDownload(msg.Job, msg.Size)
		return m, nil

	case DownloadProgressMsg:
		m.UpdateDownloadProgress(msg.ID, msg.Written, msg.Size)
		return m, nil

	case DownloadFinishedMsg:
		m.FinishDownload(msg.Result)
		if msg.Result.Status == downloader.StatusFailed {
			m.AddLogMessage("ERROR", fmt.Sprintf("Failed: %s - %v", msg.Result.Job.ID, msg.Result.Error))
		}
		return m, nil

	case RunFinishedMsg:
		m.summary = msg.Summary
		m.phase = PhaseDone
		m.AddLogMessage("SUCCESS", "Download process complete.")
		return m, tea.Quit

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
			m.onQuit = nil
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.logMessages = nil
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
