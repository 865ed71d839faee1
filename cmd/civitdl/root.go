package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"civitdl/pkg/logger"
	"civitdl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// globalOptions holds the persistent flags
type globalOptions struct {
	configFile string
	logLevel   string
	logFile    string
	quiet      bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	dl := &downloadOptions{}

	cmd := &cobra.Command{
		Use:   "civitdl [username]",
		Short: "Download every image a Civitai user has posted",
		Long: `civitdl lists all images of a Civitai user through the public API and
downloads the ones not already on disk into a folder named after the user.

Files are named <image id>.<ext>, so re-running the command only fetches
new images. An API key is optional; see 'civitdl auth --help'.`,
		Example: `  # Prompt for the username
  civitdl

  # Download into ./images/<username>
  civitdl download someartist --output ./images

  # Use the dashboard and cap downloads at 120 per minute
  civitdl download someartist --tui --rate-limit 120`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
		Args:          usernameArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Version = version
			if opts.quiet {
				ui.SetQuietMode(true)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, args, opts, dl)
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return invalidInput(fmt.Errorf("%w\nRun '%s --help' for usage", err, c.CommandPath()))
	})

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is .civitdl.yaml or ~/.config/civitdl/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "also write JSON logs to this file")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print one line per downloaded file")

	addDownloadFlags(cmd, dl)

	cmd.SetVersionTemplate(`civitdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(
		newDownloadCmd(opts),
		newAuthCmd(opts),
		newConfigCmd(opts),
	)

	return cmd
}

// usernameArgs accepts at most one positional username
func usernameArgs(cmd *cobra.Command, args []string) error {
	return invalidInput(cobra.MaximumNArgs(1)(cmd, args))
}
