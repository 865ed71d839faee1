package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"civitdl/internal/downloader"
)

const progressInterval = 100 * time.Millisecond

// TUI runs the dashboard and forwards run events to it. Every method is
// safe to call from any goroutine.
type TUI struct {
	program *tea.Program
	model   *Model

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewTUI creates a dashboard for one user. onQuit runs when the user quits
// before the run finishes; pass the run's cancel func.
func NewTUI(username string, concurrency int, onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(username, concurrency)
	model.onQuit = onQuit

	if len(opts) == 0 {
		opts = []tea.ProgramOption{tea.WithAltScreen()}
	}

	return &TUI{
		program:  tea.NewProgram(model, opts...),
		model:    model,
		lastSent: make(map[string]time.Time),
	}
}

// Start runs the event loop until the run finishes or the user quits
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

func (t *TUI) ListingStarted(username string) {
	t.Send(ListingStartedMsg{Username: username})
}

func (t *TUI) PageRequested(page int) {
	t.Send(PageRequestedMsg{Page: page})
}

func (t *TUI) PageFetched(page, items, total int) {
	t.Send(PageFetchedMsg{Page: page, Items: items, Total: total})
}

func (t *TUI) ListingFinished(username string, total, pages int, err error) {
	t.Send(ListingFinishedMsg{Username: username, Total: total, Pages: pages, Err: err})
}

func (t *TUI) DownloadsQueued(queued, existing int) {
	t.Send(QueuedMsg{Queued: queued, Existing: existing})
}

func (t *TUI) DownloadStarted(job downloader.DownloadJob, size int64) {
	t.Send(DownloadStartMsg{Job: job, Size: size})
}

// DownloadProgress forwards at most one update per job every progressInterval
func (t *TUI) DownloadProgress(job downloader.DownloadJob, written, size int64) {
	now := time.Now()

	t.mu.Lock()
	last, seen := t.lastSent[job.ID]
	if seen && now.Sub(last) < progressInterval && written != size {
		t.mu.Unlock()
		return
	}
	t.lastSent[job.ID] = now
	t.mu.Unlock()

	t.Send(DownloadProgressMsg{ID: job.ID, Written: written, Size: size})
}

func (t *TUI) DownloadFinished(result downloader.DownloadResult) {
	t.mu.Lock()
	delete(t.lastSent, result.Job.ID)
	t.mu.Unlock()

	t.Send(DownloadFinishedMsg{Result: result})
}

func (t *TUI) RunFinished(summary *downloader.Summary) {
	t.Send(RunFinishedMsg{Summary: summary})
}

// Log sends a log line to the dashboard
func (t *TUI) Log(level, message string) {
	t.Send(LogMsg{Level: level, Message: message})
}
