package downloader

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"civitdl/pkg/civitai"
	errs "civitdl/pkg/errors"
	"civitdl/pkg/logger"
	"civitdl/pkg/ratelimit"
	"civitdl/pkg/retry"
	"civitdl/pkg/storage"
)

// DefaultConcurrency is the number of downloads allowed in flight at once
const DefaultConcurrency = 5

// ImageFetcher opens an image stream
type ImageFetcher interface {
	OpenImage(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Options configures a Scheduler
type Options struct {
	Concurrency int
	Retry       *retry.Config
	// Limiter optionally paces the start of every download attempt
	Limiter  ratelimit.Limiter
	Reporter Reporter
}

// Scheduler downloads image records into a storage.Manager with a bounded
// number of downloads in flight
type Scheduler struct {
	fetcher     ImageFetcher
	store       *storage.Manager
	concurrency int
	retry       *retry.Config
	limiter     ratelimit.Limiter
	reporter    Reporter
	logger      logger.Logger
}

// New creates a Scheduler
func New(fetcher ImageFetcher, store *storage.Manager, opts Options, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Retry == nil {
		opts.Retry = retry.DefaultConfig()
	}
	if opts.Reporter == nil {
		opts.Reporter = NopReporter{}
	}

	return &Scheduler{
		fetcher:     fetcher,
		store:       store,
		concurrency: opts.Concurrency,
		retry:       opts.Retry.WithLogger(log),
		limiter:     opts.Limiter,
		reporter:    opts.Reporter,
		logger:      log,
	}
}

// Plan derives a target for every record and keeps the ones worth
// downloading: records need an id and a url, and their target must not
// exist yet. The existence check happens once, here.
func (s *Scheduler) Plan(records []civitai.ImageRecord) *Plan {
	plan := &Plan{}
	seen := make(map[string]struct{}, len(records))

	for _, r := range records {
		if !r.Valid() {
			plan.Invalid++
			continue
		}

		target := s.store.Target(r.ID.String(), r.URL)
		if _, dup := seen[target]; dup {
			plan.Duplicates++
			continue
		}
		seen[target] = struct{}{}

		if s.store.Exists(target) {
			plan.Existing++
			continue
		}

		plan.Jobs = append(plan.Jobs, jobFor(r, target))
	}

	s.logger.DebugWithFields("download plan ready", map[string]interface{}{
		"records":    len(records),
		"jobs":       len(plan.Jobs),
		"invalid":    plan.Invalid,
		"existing":   plan.Existing,
		"duplicates": plan.Duplicates,
	})

	return plan
}

// Run downloads every job and waits for all of them. A failing job never
// stops the others. Results keep the order of jobs.
func (s *Scheduler) Run(ctx context.Context, jobs []DownloadJob) *Summary {
	start := time.Now()
	gate := semaphore.NewWeighted(int64(s.concurrency))
	results := make([]DownloadResult, len(jobs))

	s.logger.InfoWithFields("starting downloads", map[string]interface{}{
		"jobs":        len(jobs),
		"concurrency": s.concurrency,
	})

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job DownloadJob) {
			defer wg.Done()
			results[i] = s.downloadItem(ctx, gate, job)
			s.reporter.DownloadFinished(results[i])
		}(i, job)
	}
	wg.Wait()

	summary := &Summary{Results: results, Duration: time.Since(start)}
	for _, r := range results {
		summary.add(r)
	}

	s.logger.InfoWithFields("downloads finished", map[string]interface{}{
		"completed": summary.Completed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"bytes":     summary.Bytes,
		"duration":  summary.Duration,
	})

	return summary
}

// Download plans records and runs the resulting jobs
func (s *Scheduler) Download(ctx context.Context, records []civitai.ImageRecord) (*Plan, *Summary) {
	plan := s.Plan(records)
	return plan, s.Run(ctx, plan.Jobs)
}

// downloadItem runs one job while holding a slot of gate
func (s *Scheduler) downloadItem(ctx context.Context, gate *semaphore.Weighted, job DownloadJob) (result DownloadResult) {
	result = DownloadResult{Job: job, Status: StatusFailed}

	if err := gate.Acquire(ctx, 1); err != nil {
		result.Error = &errs.Error{Kind: errs.KindCanceled, Op: "download", URL: job.URL, Err: err}
		return result
	}
	defer gate.Release(1)

	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	// The target may have appeared since planning
	if s.store.Exists(job.Target) {
		result.Status = StatusSkipped
		return result
	}

	err := retry.Do(ctx, func(ctx context.Context) error {
		result.Attempts++
		n, err := s.fetchOnce(ctx, job)
		result.Bytes = n
		return err
	}, s.retry)

	switch {
	case err == nil:
		result.Status = StatusCompleted
		logger.LogDownload(s.logger, job.ID, job.Target, result.Bytes, nil)
	case errors.Is(err, storage.ErrExists):
		result.Status = StatusSkipped
		result.Bytes = 0
	default:
		result.Error = err
		result.Bytes = 0
		s.logger.WithField("attempts", result.Attempts).ErrorWithFields("download failed", map[string]interface{}{
			"image_id": job.ID,
			"url":      job.URL,
			"kind":     string(errs.KindOf(err)),
			"error":    err.Error(),
		})
	}

	return result
}

// fetchOnce streams one attempt into a fresh partial file. Any failure
// discards the bytes written so far.
func (s *Scheduler) fetchOnce(ctx context.Context, job DownloadJob) (int64, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	body, size, err := s.fetcher.OpenImage(ctx, job.URL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	part, err := s.store.Create(job.Target)
	if err != nil {
		return 0, &errs.Error{Kind: errs.KindFilesystem, Op: "download", URL: job.URL, Err: err}
	}

	s.reporter.DownloadStarted(job, size)
	w := &progressWriter{part: part, job: job, size: size, reporter: s.reporter}

	if _, err := io.Copy(w, body); err != nil {
		part.Abort()
		var e *errs.Error
		if errors.As(err, &e) {
			return 0, err
		}
		return 0, errs.New("download", job.URL, err)
	}

	if err := part.Commit(); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return 0, err
		}
		return 0, &errs.Error{Kind: errs.KindFilesystem, Op: "download", URL: job.URL, Err: err}
	}

	return w.written, nil
}

// progressWriter forwards writes to a partial file and reports progress
type progressWriter struct {
	part     *storage.PartialFile
	job      DownloadJob
	size     int64
	written  int64
	reporter Reporter
}

func (w *progressWriter) Write(p []byte) (int, error) {
	n, err := w.part.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, &errs.Error{Kind: errs.KindFilesystem, Op: "download", URL: w.job.URL, Err: err}
	}
	w.reporter.DownloadProgress(w.job, w.written, w.size)
	return n, nil
}
