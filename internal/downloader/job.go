package downloader

import (
	"time"

	"civitdl/pkg/civitai"
)

// DownloadJob represents a single image to fetch
type DownloadJob struct {
	ID     string
	URL    string
	Target string
}

// Status is the final state of a DownloadJob
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      DownloadJob
	Status   Status
	Bytes    int64
	Attempts int
	Error    error
	Duration time.Duration
}

// Plan is the outcome of filtering a listing before any download starts
type Plan struct {
	Jobs []DownloadJob
	// Invalid counts records without an id or url
	Invalid int
	// Existing counts records whose target file was already present
	Existing int
	// Duplicates counts records mapping to a target already planned
	Duplicates int
}

// Summary aggregates the results of one Run
type Summary struct {
	Results   []DownloadResult
	Completed int
	Skipped   int
	Failed    int
	Bytes     int64
	Duration  time.Duration
}

func (s *Summary) add(r DownloadResult) {
	switch r.Status {
	case StatusCompleted:
		s.Completed++
		s.Bytes += r.Bytes
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
}

// FailedResults returns the results that ended in failure
func (s *Summary) FailedResults() []DownloadResult {
	var failed []DownloadResult
	for _, r := range s.Results {
		if r.Status == StatusFailed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Reporter receives download progress. Implementations must be safe for
// concurrent use; calls for different jobs interleave.
type Reporter interface {
	// DownloadStarted is called at the start of every attempt. size is -1
	// when unknown.
	DownloadStarted(job DownloadJob, size int64)
	// DownloadProgress reports cumulative bytes written in the current attempt
	DownloadProgress(job DownloadJob, written, size int64)
	// DownloadFinished is called once per job with its final result
	DownloadFinished(result DownloadResult)
}

// NopReporter discards all progress
type NopReporter struct{}

func (NopReporter) DownloadStarted(DownloadJob, int64) {}
func (NopReporter) DownloadProgress(DownloadJob, int64, int64) {}
func (NopReporter) DownloadFinished(DownloadResult) {}

func jobFor(r civitai.ImageRecord, target string) DownloadJob {
	return DownloadJob{ID: r.ID.String(), URL: r.URL, Target: target}
}
