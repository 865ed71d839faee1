package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"civitdl/internal/downloader"
	"civitdl/pkg/civitai"
	"civitdl/pkg/config"
	"civitdl/pkg/logger"
	"civitdl/pkg/ratelimit"
	"civitdl/pkg/retry"
	"civitdl/pkg/storage"
)

var (
	// ErrEmptyUsername is returned before any network activity
	ErrEmptyUsername = errors.New("username cannot be empty")

	// ErrInvalidUsername is returned for names that cannot be a Civitai user
	ErrInvalidUsername = errors.New("invalid username")
)

// Report describes a finished run
type Report struct {
	Username  string
	OutputDir string
	Listing   *Listing
	Plan      *downloader.Plan
	Summary   *downloader.Summary
}

// Scraper orchestrates listing and downloading one user's images
type Scraper struct {
	client   APIClient
	config   *config.Config
	progress Progress
	notifier Notifier
	logger   logger.Logger
}

// Option customizes a Scraper
type Option func(*Scraper)

// WithClient replaces the Civitai client
func WithClient(c APIClient) Option {
	return func(s *Scraper) { s.client = c }
}

// WithProgress sets the progress display
func WithProgress(p Progress) Option {
	return func(s *Scraper) { s.progress = p }
}

// WithNotifier sets the end of run notifier
func WithNotifier(n Notifier) Option {
	return func(s *Scraper) { s.notifier = n }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scraper) { s.logger = l }
}

// New creates a new Scraper instance
func New(cfg *config.Config, opts ...Option) (*Scraper, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	s := &Scraper{
		config:   cfg,
		progress: NopProgress{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.GetLogger()
	}
	if s.client == nil {
		s.client = civitai.NewClient(civitai.ClientConfig{
			BaseURL:         cfg.API.BaseURL,
			UserAgent:       cfg.API.UserAgent,
			Token:           cfg.Auth.Token,
			PageTimeout:     cfg.API.PageTimeout,
			DownloadTimeout: cfg.Download.Timeout,
		}, nil, s.logger)
	}

	return s, nil
}

// OutputDir determines the output directory for a username
func (s *Scraper) OutputDir(username string) string {
	if s.config.Output.CreateUserFolders {
		return filepath.Join(s.config.Output.BaseDirectory, username)
	}
	return s.config.Output.BaseDirectory
}

// RetryConfig builds the shared retry policy from configuration
func RetryConfig(cfg config.RetryConfig) *retry.Config {
	rc := retry.DefaultConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	rc.Backoff = &retry.ExponentialBackoff{
		Multiplier: cfg.Multiplier,
		Base:       2.0,
		MinDelay:   cfg.MinDelay,
		MaxDelay:   cfg.MaxDelay,
	}
	return rc
}

// Run lists every image of username and downloads the ones missing from
// the output directory. A listing that fails part way still downloads what
// was collected. The returned error is only set for invalid input, setup
// failures, or cancellation of ctx.
func (s *Scraper) Run(ctx context.Context, username string) (*Report, error) {
	username = civitai.SanitizeUsername(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if !civitai.IsValidUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}

	log := s.logger.WithField("username", username)
	report := &Report{Username: username, OutputDir: s.OutputDir(username)}

	store, err := storage.NewManager(report.OutputDir)
	if err != nil {
		return report, err
	}
	if removed, err := store.CleanupPartials(); err == nil && removed > 0 {
		log.InfoWithFields("removed partial files from an earlier run", map[string]interface{}{
			"count": removed,
		})
	}

	log.InfoWithFields("starting run", map[string]interface{}{
		"output_dir":    report.OutputDir,
		"authenticated": s.client.Authenticated(),
	})

	retryCfg := RetryConfig(s.config.Retry)

	query := civitai.DefaultQuery(username)
	query.Limit = s.config.API.PageLimit
	query.NSFW = s.config.API.NSFW
	query.Sort = s.config.API.Sort
	query.Period = s.config.API.Period

	aggregator := NewAggregator(s.client, AggregatorOptions{
		BaseURL:     s.client.BaseURL(),
		Query:       query,
		Retry:       retryCfg,
		Pacer:       ratelimit.NewPacer(s.config.Download.PageDelay),
		MaxPages:    s.config.API.MaxPages,
		OnPageStart: s.progress.PageRequested,
		OnPage:      s.progress.PageFetched,
	}, log)

	s.progress.ListingStarted(username)
	listing := aggregator.FetchAll(ctx, username)
	report.Listing = listing
	s.progress.ListingFinished(username, len(listing.Records), listing.Pages, listing.Err)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	if len(listing.Records) == 0 {
		log.Info("no images to download")
		return report, nil
	}

	opts := downloader.Options{
		Concurrency: s.config.Download.Concurrency,
		Retry:       retryCfg,
		Reporter:    s.progress,
	}
	if limiter := ratelimit.PerMinute(s.config.Download.RequestsPerMinute); limiter != nil {
		opts.Limiter = limiter
	}
	scheduler := downloader.New(s.client, store, opts, log)

	report.Plan = scheduler.Plan(listing.Records)
	s.progress.DownloadsQueued(len(report.Plan.Jobs), report.Plan.Existing)

	report.Summary = scheduler.Run(ctx, report.Plan.Jobs)
	s.progress.RunFinished(report.Summary)
	s.notify(report)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Scraper) notify(r *Report) {
	if s.notifier == nil || r.Summary == nil {
		return
	}

	msg := fmt.Sprintf("%d downloaded, %d skipped, %d failed", r.Summary.Completed, r.Summary.Skipped+r.Plan.Existing, r.Summary.Failed)
	s.notifier.SendNotification("civitdl: "+r.Username, msg)
}
