package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"civitdl/pkg/config"
	"civitdl/pkg/ui"
)

const defaultConfigPath = ".civitdl.yaml"

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
		Long: `Manage civitdl configuration files.

Configuration is loaded from, in order of priority:
  - Command line flags
  - CIVITDL_* environment variables (also read from .env and ~/.civitdl.env)
  - Configuration file
  - Default values`,
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default values",
		Long: `Write a configuration file containing every option at its default value.

The file is created as .civitdl.yaml in the current directory unless a
different path is given with --config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), opts.configFile, force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout(), opts.configFile)
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file for syntax errors and invalid values.

Without --config the first file found in the usual locations is checked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(cmd.OutOrStdout(), opts.configFile)
		},
	}

	cmd.AddCommand(initCmd, show, validate)
	return cmd
}

func runConfigInit(out io.Writer, path string, force bool) error {
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); err == nil && !force {
		return invalidInput(fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path))
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "1. Edit the file to change the output directory, concurrency or retry policy")
	fmt.Fprintln(out, "2. Run 'civitdl config validate' to check it")
	fmt.Fprintln(out, "3. Start downloading with 'civitdl download <username>'")
	return nil
}

func runConfigShow(out io.Writer, path string) error {
	cfg, err := config.Load(path, nil)
	if err != nil {
		return invalidInput(err)
	}

	// Auth.Token is excluded from YAML output
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(data))

	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (CIVITDL_*)")
	switch {
	case path != "":
		fmt.Fprintf(out, "3. Configuration file: %s\n", path)
	case config.FindConfigFile() != "":
		fmt.Fprintf(out, "3. Configuration file: %s\n", config.FindConfigFile())
	default:
		fmt.Fprintln(out, "3. Configuration file: (none found)")
	}
	fmt.Fprintln(out, "4. Default values")
	return nil
}

func runConfigValidate(out io.Writer, path string) error {
	if path == "" {
		path = config.FindConfigFile()
	}
	if path == "" {
		return invalidInput(errors.New("no configuration file found, specify one with --config"))
	}

	ui.PrintInfo("Validating configuration", path)

	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		return invalidInput(fmt.Errorf("configuration validation failed: %w", err))
	}
	if err := cfg.Validate(); err != nil {
		return invalidInput(fmt.Errorf("configuration has errors:\n%w", err))
	}

	var warnings []string
	if cfg.Download.Concurrency > 10 {
		warnings = append(warnings, "concurrency above 10 may trigger server-side throttling")
	}
	if cfg.Download.PageDelay == 0 {
		warnings = append(warnings, "page_delay of 0 sends listing requests back to back")
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
		fmt.Fprintln(out)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(out, "\nConfiguration summary:")
	fmt.Fprintf(out, "  Output directory: %s\n", cfg.Output.BaseDirectory)
	fmt.Fprintf(out, "  Concurrency: %d\n", cfg.Download.Concurrency)
	fmt.Fprintf(out, "  Max attempts: %d (backoff %s to %s)\n", cfg.Retry.MaxAttempts, cfg.Retry.MinDelay, cfg.Retry.MaxDelay)
	if cfg.Download.RequestsPerMinute > 0 {
		fmt.Fprintf(out, "  Rate limit: %d downloads/minute\n", cfg.Download.RequestsPerMinute)
	}
	fmt.Fprintf(out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
