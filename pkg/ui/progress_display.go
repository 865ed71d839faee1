package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"civitdl/internal/downloader"
)

const progressInterval = 200 * time.Millisecond

// ProgressDisplay prints listing and download progress as plain console
// lines. In verbose mode each file gets its own line instead of the single
// rewritten status line.
type ProgressDisplay struct {
	mu       sync.Mutex
	out      io.Writer
	verbose  bool
	username string

	queued    int
	done      int
	failed    int
	bytes     int64
	active    map[string]int64
	startTime time.Time
	lastLine  time.Time
	lineOpen  bool

	now func() time.Time
}

// NewProgressDisplay creates a display writing to out
func NewProgressDisplay(out io.Writer, verbose bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:     out,
		verbose: verbose,
		active:  make(map[string]int64),
		now:     time.Now,
	}
}

// ListingStarted records the user being listed
func (p *ProgressDisplay) ListingStarted(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.username = username
}

// PageRequested announces the next batch
func (p *ProgressDisplay) PageRequested(page int) {
	p.println(fmt.Sprintf("Fetching images (Batch %d)...", page))
}

// PageFetched prints the running total
func (p *ProgressDisplay) PageFetched(page, items, total int) {
	p.println(fmt.Sprintf("Found %d images so far...", total))
}

// ListingFinished prints how pagination ended
func (p *ProgressDisplay) ListingFinished(username string, total, pages int, err error) {
	if err != nil {
		msg := capitalize(err.Error())
		p.write(func(w io.Writer) {
			fmt.Fprintf(w, "\n%s\n", Red(msg+". Stopping."))
		})
	}
	if total == 0 && err == nil {
		p.println(Yellow(fmt.Sprintf("User '%s' found, but they have no public images.", username)))
	}
	if total > 0 || err != nil {
		p.println(fmt.Sprintf("Found a total of %d images for %s.", total, username))
	}
	if total == 0 {
		p.println("No images to download. Exiting.")
	}
}

// DownloadsQueued prints what is about to be fetched
func (p *ProgressDisplay) DownloadsQueued(queued, existing int) {
	p.mu.Lock()
	p.queued = queued
	p.startTime = p.now()
	p.mu.Unlock()

	if existing > 0 {
		p.println(Dim(fmt.Sprintf("Skipping %d images already on disk.", existing)))
	}
	if queued == 0 {
		p.println(Green("All images are already downloaded."))
		return
	}
	p.println(fmt.Sprintf("\nQueueing %d new images for download...", queued))
}

// DownloadStarted implements downloader.Reporter
func (p *ProgressDisplay) DownloadStarted(job downloader.DownloadJob, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[job.ID] = 0
	p.statusLine(false)
}

// DownloadProgress implements downloader.Reporter
func (p *ProgressDisplay) DownloadProgress(job downloader.DownloadJob, written, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[job.ID] = written
	p.statusLine(false)
}

// DownloadFinished implements downloader.Reporter
func (p *ProgressDisplay) DownloadFinished(result downloader.DownloadResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.active, result.Job.ID)
	p.done++

	switch result.Status {
	case downloader.StatusCompleted:
		p.bytes += result.Bytes
		if p.verbose && !IsQuietMode() {
			p.breakLine()
			fmt.Fprintf(p.out, "%s %s • %s\n", Green("✓"), result.Job.Target, FormatBytes(result.Bytes))
		}
	case downloader.StatusSkipped:
		if p.verbose && !IsQuietMode() {
			p.breakLine()
			fmt.Fprintf(p.out, "%s %s already exists\n", Dim("•"), result.Job.Target)
		}
	case downloader.StatusFailed:
		p.failed++
		p.breakLine()
		fmt.Fprintln(p.out, Red(fmt.Sprintf("Failed to download image %s after %d attempts: %v",
			result.Job.ID, result.Attempts, result.Error)))
	}

	p.statusLine(true)
}

// RunFinished prints the completion summary
func (p *ProgressDisplay) RunFinished(summary *downloader.Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if IsQuietMode() {
		return
	}
	p.breakLine()

	fmt.Fprintf(p.out, "\n%s\n", Green("Download process complete."))
	if summary == nil {
		return
	}

	fmt.Fprintf(p.out, "  %s %d downloaded (%s) in %s\n",
		Dim("•"), summary.Completed, FormatBytes(summary.Bytes), formatDuration(summary.Duration))
	if summary.Skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d skipped\n", Dim("•"), summary.Skipped)
	}
	if summary.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d failed", summary.Failed)))
	}
}

// statusLine rewrites the single progress line. Callers hold mu.
func (p *ProgressDisplay) statusLine(force bool) {
	if p.verbose || IsQuietMode() || p.queued == 0 {
		return
	}
	now := p.now()
	if !force && now.Sub(p.lastLine) < progressInterval {
		return
	}
	p.lastLine = now

	inFlight := p.bytes
	for _, n := range p.active {
		inFlight += n
	}

	const barWidth = 20
	filled := p.done * barWidth / p.queued
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %s • %d active",
		Cyan(p.username), bar, p.done, p.queued, FormatBytes(inFlight), len(p.active))
	if elapsed := now.Sub(p.startTime); elapsed > time.Second {
		line += " • " + FormatBytes(int64(float64(inFlight)/elapsed.Seconds())) + "/s"
	}
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d errors", p.failed))
	}

	fmt.Fprintf(p.out, "\r\033[K%s", line)
	p.lineOpen = true
}

// breakLine ends an open status line so the next output starts clean. Callers hold mu.
func (p *ProgressDisplay) breakLine() {
	if p.lineOpen {
		fmt.Fprintln(p.out)
		p.lineOpen = false
	}
}

func (p *ProgressDisplay) println(msg string) {
	if IsQuietMode() {
		return
	}
	p.write(func(w io.Writer) {
		fmt.Fprintln(w, msg)
	})
}

func (p *ProgressDisplay) write(fn func(io.Writer)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakLine()
	fn(p.out)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
