package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"civitdl/pkg/auth"
	"civitdl/pkg/civitai"
	"civitdl/pkg/config"
	"civitdl/pkg/logger"
	"civitdl/pkg/scraper"
	"civitdl/pkg/ui"
	"civitdl/pkg/ui/tui"
)

const usernamePrompt = "Enter the Civitai username to download from: "

// downloadOptions holds the flags shared by the root and download commands
type downloadOptions struct {
	output          string
	baseURL         string
	tokenFile       string
	concurrency     int
	maxPages        int
	maxAttempts     int
	rateLimit       int
	downloadTimeout time.Duration
	pageDelay       time.Duration
	notifications   bool
	useTUI          bool
}

func newDownloadCmd(opts *globalOptions) *cobra.Command {
	dl := &downloadOptions{}
	cmd := &cobra.Command{
		Use:   "download [username]",
		Short: "Download all images of a Civitai user",
		Long: `Download all images of a Civitai user into <output>/<username>.

Images already present on disk are skipped. When no username is given the
command asks for one. An API key is read from civitai_api_key.txt in the
working directory, the CIVITDL_API_KEY variable, or a stored login.`,
		Example: `  civitdl download someartist
  civitdl download https://civitai.com/user/someartist --concurrency 8
  civitdl download someartist --max-pages 3 --verbose`,
		Aliases: []string{"dl"},
		Args:    usernameArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, args, opts, dl)
		},
	}
	addDownloadFlags(cmd, dl)
	return cmd
}

func addDownloadFlags(cmd *cobra.Command, dl *downloadOptions) {
	defaults := config.DefaultConfig()
	f := cmd.Flags()
	f.StringVarP(&dl.output, "output", "o", "", "base directory for downloads (default: current directory)")
	f.StringVar(&dl.baseURL, "base-url", "", "images endpoint (default: "+civitai.DefaultBaseURL+")")
	f.StringVar(&dl.tokenFile, "token-file", "", "API key file (default: "+config.DefaultTokenFile+")")
	f.IntVar(&dl.concurrency, "concurrency", defaults.Download.Concurrency, "maximum simultaneous downloads")
	f.IntVar(&dl.maxPages, "max-pages", defaults.API.MaxPages, "stop listing after this many pages (0 = no limit)")
	f.IntVar(&dl.maxAttempts, "max-attempts", defaults.Retry.MaxAttempts, "attempts per request including the first")
	f.IntVar(&dl.rateLimit, "rate-limit", defaults.Download.RequestsPerMinute, "maximum download starts per minute (0 = unlimited)")
	f.DurationVar(&dl.downloadTimeout, "download-timeout", defaults.Download.Timeout, "timeout for a single image download")
	f.DurationVar(&dl.pageDelay, "page-delay", defaults.Download.PageDelay, "pause between listing pages")
	f.BoolVar(&dl.notifications, "notifications", defaults.Notifications.Enabled, "send a notification when the run ends")
	f.BoolVar(&dl.useTUI, "tui", false, "show the interactive dashboard")
}

// collectFlags returns only the flags the user set, keyed the way
// config.MergeCommandLineFlags expects
func collectFlags(cmd *cobra.Command, opts *globalOptions, dl *downloadOptions) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("output") {
		flags["output"] = dl.output
	}
	if changed("base-url") {
		flags["base-url"] = dl.baseURL
	}
	if changed("token-file") {
		flags["token-file"] = dl.tokenFile
	}
	if changed("concurrency") {
		flags["concurrency"] = dl.concurrency
	}
	if changed("max-pages") {
		flags["max-pages"] = dl.maxPages
	}
	if changed("max-attempts") {
		flags["max-attempts"] = dl.maxAttempts
	}
	if changed("rate-limit") {
		flags["rate-limit"] = dl.rateLimit
	}
	if changed("download-timeout") {
		flags["download-timeout"] = dl.downloadTimeout
	}
	if changed("page-delay") {
		flags["page-delay"] = dl.pageDelay
	}
	if changed("notifications") {
		flags["notifications"] = dl.notifications
	}
	if opts.logLevel != "" {
		flags["log-level"] = opts.logLevel
	}
	if opts.logFile != "" {
		flags["log-file"] = opts.logFile
	}
	return flags
}

func runDownload(cmd *cobra.Command, args []string, opts *globalOptions, dl *downloadOptions) error {
	flags := collectFlags(cmd, opts, dl)
	// the dashboard owns the terminal, so logs only go to a file
	if dl.useTUI && opts.logFile == "" && opts.logLevel == "" {
		flags["log-level"] = "disabled"
	}

	cfg, err := config.Load(opts.configFile, flags)
	if err != nil {
		return invalidInput(err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return invalidInput(err)
	}
	log := logger.GetLogger()

	out := cmd.OutOrStdout()
	if !dl.useTUI {
		ui.PrintLogo()
	}

	var raw string
	if len(args) > 0 {
		raw = args[0]
	} else {
		raw, err = promptUsername(cmd.InOrStdin(), out)
		if err != nil && !errors.Is(err, io.EOF) {
			return invalidInput(fmt.Errorf("failed to read username: %w", err))
		}
	}
	username := civitai.SanitizeUsername(raw)
	if username == "" {
		return invalidInput(scraper.ErrEmptyUsername)
	}

	token, notes := resolveToken(cfg.Auth.TokenFile, newTokenManager(cfg.Auth.TokenFile, log))
	if token != "" {
		cfg.Auth.Token = token
	}
	for _, note := range notes {
		ui.Println(note)
	}

	if dl.useTUI {
		return runWithTUI(cmd.Context(), cfg, username, out, log)
	}

	s, err := buildScraper(cfg, ui.NewProgressDisplay(out, opts.verbose), out, log)
	if err != nil {
		return err
	}
	printOutputDir(s, username)

	report, err := s.Run(cmd.Context(), username)
	if err != nil {
		return err
	}
	logReport(log, report)
	return nil
}

func buildScraper(cfg *config.Config, progress scraper.Progress, notifyOut io.Writer, log logger.Logger) (*scraper.Scraper, error) {
	scraperOpts := []scraper.Option{
		scraper.WithLogger(log),
		scraper.WithProgress(progress),
	}
	if cfg.Notifications.Enabled {
		if n := ui.NewNotifier(cfg.Notifications.Type, notifyOut); n != nil {
			scraperOpts = append(scraperOpts, scraper.WithNotifier(n))
		}
	}

	s, err := scraper.New(cfg, scraperOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize downloader: %w", err)
	}
	return s, nil
}

func printOutputDir(s *scraper.Scraper, username string) {
	if abs, err := filepath.Abs(s.OutputDir(username)); err == nil {
		ui.Println("Images will be saved in: " + abs)
	}
}

// runWithTUI runs the download in the background while the dashboard owns
// the terminal. Quitting the dashboard cancels the run.
func runWithTUI(ctx context.Context, cfg *config.Config, username string, out io.Writer, log logger.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dashboard := tui.NewTUI(username, cfg.Download.Concurrency, cancel)

	// console notes would corrupt the alternate screen
	s, err := buildScraper(cfg, dashboard, nil, log)
	if err != nil {
		return err
	}

	type outcome struct {
		report *scraper.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := s.Run(ctx, username)
		// ends the event loop when the run stops before RunFinished
		dashboard.Stop()
		done <- outcome{report, err}
	}()

	if err := dashboard.Start(); err != nil {
		log.WithError(err).Warn("dashboard failed, continuing without it")
	}

	result := <-done
	if result.err != nil {
		return result.err
	}
	printOutputDir(s, username)
	printSummary(out, result.report)
	logReport(log, result.report)
	return nil
}

func promptUsername(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, usernamePrompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(line), err
}

func printSummary(out io.Writer, report *scraper.Report) {
	if report == nil || ui.IsQuietMode() {
		return
	}
	if report.Listing != nil && len(report.Listing.Records) == 0 {
		fmt.Fprintln(out, "No images to download. Exiting.")
		return
	}
	if report.Summary == nil {
		return
	}
	fmt.Fprintf(out, "\nDownload process complete. %d downloaded (%s), %d already present, %d failed.\n",
		report.Summary.Completed,
		ui.FormatBytes(report.Summary.Bytes),
		report.Summary.Skipped+report.Plan.Existing,
		report.Summary.Failed,
	)
	for _, r := range report.Summary.FailedResults() {
		fmt.Fprintf(out, "  %s %s: %v\n", ui.Red("✗"), r.Job.ID, r.Error)
	}
}

func logReport(log logger.Logger, report *scraper.Report) {
	if report == nil {
		return
	}
	fields := map[string]interface{}{
		"username":   report.Username,
		"output_dir": report.OutputDir,
	}
	if report.Listing != nil {
		fields["listed"] = len(report.Listing.Records)
		fields["pages"] = report.Listing.Pages
	}
	if report.Summary != nil {
		fields["completed"] = report.Summary.Completed
		fields["skipped"] = report.Summary.Skipped + report.Plan.Existing
		fields["failed"] = report.Summary.Failed
		fields["bytes"] = report.Summary.Bytes
	}
	log.InfoWithFields("run finished", fields)
}

// newTokenManager builds the credential chain, falling back to the token
// file alone when the config directory is unusable
func newTokenManager(tokenFile string, log logger.Logger) *auth.Manager {
	manager, err := auth.NewManager(tokenFile)
	if err != nil {
		log.WithError(err).Warn("credential stores unavailable, using token file and environment only")
		return auth.NewManagerWithStores(auth.NewFileStore(tokenFile), auth.NewEnvironmentStore())
	}
	return manager
}

// resolveToken looks up the API key and returns it with the console notes
// describing where it came from
func resolveToken(tokenFile string, manager *auth.Manager) (string, []string) {
	var notes []string

	content, err := os.ReadFile(tokenFile)
	switch {
	case err == nil && strings.TrimSpace(string(content)) != "":
		notes = append(notes, fmt.Sprintf("API Key loaded from '%s'. Using authenticated requests.", tokenFile))
		return strings.TrimSpace(string(content)), notes
	case err == nil:
		notes = append(notes, fmt.Sprintf("'%s' found but it is empty.", tokenFile))
	default:
		notes = append(notes, fmt.Sprintf("API key file '%s' not found.", tokenFile))
	}

	if manager != nil {
		if token, source, err := manager.Resolve(); err == nil {
			notes = append(notes, fmt.Sprintf("API Key loaded from %s. Using authenticated requests.", source))
			return token, notes
		}
	}

	notes = append(notes, "Proceeding with public access.")
	return "", notes
}
