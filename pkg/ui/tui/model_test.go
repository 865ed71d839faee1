package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civitdl/internal/downloader"
)

func newTestModel() (*Model, *time.Time) {
	m := NewModel("alice", 5)
	clock := time.Unix(1000, 0)
	m.now = func() time.Time { return clock }
	m.sessionStartTime = clock
	return m, &clock
}

func TestModelDownloadLifecycle(t *testing.T) {
	model, clock := newTestModel()

	model.Update(QueuedMsg{Queued: 2, Existing: 1})
	assert.Equal(t, PhaseDownloading, model.phase)

	job1 := downloader.DownloadJob{ID: "1", Target: "alice/1.png"}
	job2 := downloader.DownloadJob{ID: "2", Target: "alice/2.jpeg"}

	model.Update(DownloadStartMsg{Job: job1, Size: 2048})
	model.Update(DownloadStartMsg{Job: job2, Size: -1})
	require.Len(t, model.ActiveDownloads(), 2)

	*clock = clock.Add(2 * time.Second)
	model.Update(DownloadProgressMsg{ID: "1", Written: 1024, Size: 2048})
	assert.Equal(t, int64(1024), model.downloads["1"].Downloaded)
	assert.InDelta(t, 512.0, model.downloads["1"].Speed, 0.01)

	model.Update(DownloadFinishedMsg{Result: downloader.DownloadResult{Job: job1, Status: downloader.StatusCompleted, Bytes: 2048, Attempts: 1}})
	model.Update(DownloadFinishedMsg{Result: downloader.DownloadResult{Job: job2, Status: downloader.StatusFailed, Attempts: 3, Error: errors.New("timeout")}})

	assert.Empty(t, model.ActiveDownloads())
	assert.Equal(t, 1, model.completed)
	assert.Equal(t, 1, model.failed)
	assert.Equal(t, int64(2048), model.totalSize)
	assert.Equal(t, 1.0, model.Fraction())

	last := model.logMessages[len(model.logMessages)-1]
	assert.Equal(t, "ERROR", last.Level)
	assert.Contains(t, last.Message, "timeout")
}

func TestModelRetryResetsProgress(t *testing.T) {
	model, _ := newTestModel()
	job := downloader.DownloadJob{ID: "9", Target: "alice/9.png"}

	model.StartDownload(job, 100)
	model.UpdateDownloadProgress("9", 60, 100)
	model.StartDownload(job, 100)

	item := model.downloads["9"]
	assert.Equal(t, int64(0), item.Downloaded)
	assert.Equal(t, 2, item.Attempts)
	assert.Len(t, model.downloadOrder, 1)
}

func TestModelListingMessages(t *testing.T) {
	model, _ := newTestModel()

	model.Update(ListingStartedMsg{Username: "alice"})
	model.Update(PageRequestedMsg{Page: 1})
	model.Update(PageFetchedMsg{Page: 1, Items: 100, Total: 100})
	_, cmd := model.Update(ListingFinishedMsg{Username: "alice", Total: 100, Pages: 1})

	assert.Nil(t, cmd)
	assert.Equal(t, 100, model.listed)
	assert.Equal(t, 1, model.pages)
	assert.Equal(t, PhaseListing, model.phase)
}

func TestModelEmptyListingQuits(t *testing.T) {
	model, _ := newTestModel()

	_, cmd := model.Update(ListingFinishedMsg{Username: "ghost", Total: 0, Pages: 1})

	require.NotNil(t, cmd)
	assert.Equal(t, PhaseDone, model.phase)
	assert.Contains(t, model.logMessages[len(model.logMessages)-1].Message, "no public images")
}

func TestModelRunFinishedQuits(t *testing.T) {
	model, _ := newTestModel()
	summary := &downloader.Summary{Completed: 3}

	_, cmd := model.Update(RunFinishedMsg{Summary: summary})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Same(t, summary, model.summary)
}

func TestModelQuitKeyCancelsOnce(t *testing.T) {
	model, _ := newTestModel()
	calls := 0
	model.onQuit = func() { calls++ }

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.Equal(t, 1, calls)
}

func TestModelLogTrimming(t *testing.T) {
	model, _ := newTestModel()
	for i := 0; i < 80; i++ {
		model.AddLogMessage("INFO", "line")
	}
	assert.Len(t, model.logMessages, model.maxLogMessages)

	model.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, model.logMessages)
}

func TestModelStatsETA(t *testing.T) {
	model, clock := newTestModel()
	model.Update(QueuedMsg{Queued: 4})

	*clock = clock.Add(10 * time.Second)
	model.FinishDownload(downloader.DownloadResult{Job: downloader.DownloadJob{ID: "a"}, Status: downloader.StatusCompleted})
	model.FinishDownload(downloader.DownloadResult{Job: downloader.DownloadJob{ID: "b"}, Status: downloader.StatusSkipped})

	_, eta := model.Stats()
	assert.Equal(t, 10*time.Second, eta)
}

func TestModelView(t *testing.T) {
	model, _ := newTestModel()
	assert.Contains(t, model.View(), "Initializing")

	model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model.Update(QueuedMsg{Queued: 1})
	model.Update(DownloadStartMsg{Job: downloader.DownloadJob{ID: "1", Target: "alice/1.png"}, Size: 10})

	view := model.View()
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "1.png")
	assert.True(t, strings.Contains(view, "ACTIVE 1/5"))
}

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		speed    float64
		expected string
	}{
		{1024, "1.0 KB/s"},
		{1024 * 1024, "1.0 MB/s"},
		{512 * 1024, "512.0 KB/s"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, FormatSpeed(test.speed))
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "00:00", formatDuration(-time.Second))
	assert.Equal(t, "01:05", formatDuration(65*time.Second))
	assert.Equal(t, "01:00:01", formatDuration(time.Hour+time.Second))
}
