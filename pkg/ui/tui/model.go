package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"civitdl/internal/downloader"
	"civitdl/pkg/ui"
)

// Phase is the stage the run is in
type Phase int

const (
	PhaseListing Phase = iota
	PhaseDownloading
	PhaseDone
)

// DownloadState represents the state of a download
type DownloadState int

const (
	DownloadActive DownloadState = iota
	DownloadCompleted
	DownloadSkipped
	DownloadFailed
)

// DownloadItem represents a single download
type DownloadItem struct {
	ID         string
	Target     string
	Size       int64
	Downloaded int64
	State      DownloadState
	StartTime  time.Time
	Speed      float64
	Attempts   int
	Error      error
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// Model is the dashboard state. It is only touched from the bubbletea
// event loop.
type Model struct {
	spinner     spinner.Model
	overall     progress.Model
	itemBar     progress.Model
	concurrency int

	username string
	phase    Phase
	pages    int
	listed   int
	listErr  error

	downloads     map[string]*DownloadItem
	downloadOrder []string
	queued        int
	existing      int
	completed     int
	skipped       int
	failed        int
	totalSize     int64
	summary       *downloader.Summary

	sessionStartTime time.Time
	downloadStart    time.Time

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// onQuit is called once when the user quits
	onQuit func()

	now func() time.Time
}

// NewModel creates a new dashboard model
func NewModel(username string, concurrency int) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(accentCyan)

	overall := progress.New(progress.WithDefaultGradient())
	overall.Width = 40
	item := progress.New(progress.WithSolidFill(string(accentGreen)))
	item.Width = 30

	return &Model{
		spinner:          s,
		overall:          overall,
		itemBar:          item,
		concurrency:      concurrency,
		username:         username,
		downloads:        make(map[string]*DownloadItem),
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
		now:              time.Now,
	}
}

// Init initializes the model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// StartDownload marks an attempt as active, resetting its byte count
func (m *Model) StartDownload(job downloader.DownloadJob, size int64) {
	item, ok := m.downloads[job.ID]
	if !ok {
		item = &DownloadItem{ID: job.ID, Target: job.Target}
		m.downloads[job.ID] = item
		m.downloadOrder = append(m.downloadOrder, job.ID)
	}
	item.Size = size
	item.Downloaded = 0
	item.State = DownloadActive
	item.StartTime = m.now()
	item.Attempts++
}

// UpdateDownloadProgress updates the progress of a download
func (m *Model) UpdateDownloadProgress(id string, written, size int64) {
	item, ok := m.downloads[id]
	if !ok {
		return
	}
	item.Downloaded = written
	if size > 0 {
		item.Size = size
	}
	if elapsed := m.now().Sub(item.StartTime).Seconds(); elapsed > 0 {
		item.Speed = float64(written) / elapsed
	}
}

// FinishDownload records a final result
func (m *Model) FinishDownload(result downloader.DownloadResult) {
	id := result.Job.ID
	item, ok := m.downloads[id]
	if !ok {
		item = &DownloadItem{ID: id, Target: result.Job.Target}
		m.downloads[id] = item
		m.downloadOrder = append(m.downloadOrder, id)
	}
	item.Attempts = result.Attempts
	item.Error = result.Error

	switch result.Status {
	case downloader.StatusCompleted:
		item.State = DownloadCompleted
		item.Downloaded = result.Bytes
		m.completed++
		m.totalSize += result.Bytes
	case downloader.StatusSkipped:
		item.State = DownloadSkipped
		m.skipped++
	default:
		item.State = DownloadFailed
		m.failed++
	}
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	color := dimWhite
	switch level {
	case "ERROR":
		color = accentRed
	case "WARN":
		color = accentOrange
	case "SUCCESS":
		color = accentGreen
	case "INFO":
		color = accentCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    m.now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// ActiveDownloads returns the downloads in flight, in start order
func (m *Model) ActiveDownloads() []*DownloadItem {
	var active []*DownloadItem
	for _, id := range m.downloadOrder {
		if item := m.downloads[id]; item != nil && item.State == DownloadActive {
			active = append(active, item)
		}
	}
	return active
}

// Finished returns how many queued jobs have a final result
func (m *Model) Finished() int {
	return m.completed + m.skipped + m.failed
}

// Fraction is the share of queued jobs that are finished
func (m *Model) Fraction() float64 {
	if m.queued == 0 {
		return 0
	}
	f := float64(m.Finished()) / float64(m.queued)
	if f > 1 {
		f = 1
	}
	return f
}

// Stats returns the current aggregate speed and a rough ETA
func (m *Model) Stats() (speed float64, eta time.Duration) {
	for _, item := range m.downloads {
		if item.State == DownloadActive {
			speed += item.Speed
		}
	}

	finished := m.Finished()
	remaining := m.queued - finished
	if finished > 0 && remaining > 0 && !m.downloadStart.IsZero() {
		perItem := m.now().Sub(m.downloadStart) / time.Duration(finished)
		eta = perItem * time.Duration(remaining)
	}
	return speed, eta
}

// FormatSpeed formats speed in bytes per second
func FormatSpeed(bytesPerSecond float64) string {
	return fmt.Sprintf("%s/s", ui.FormatBytes(int64(bytesPerSecond)))
}
