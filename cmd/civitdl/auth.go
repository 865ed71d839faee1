package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"civitdl/pkg/auth"
	"civitdl/pkg/config"
	"civitdl/pkg/ui"
)

func newAuthCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the Civitai API key",
		Long: `Manage the Civitai API key used for authenticated requests.

The key is looked up in this order:
  - civitai_api_key.txt in the working directory (auth.token_file)
  - the CIVITDL_API_KEY environment variable
  - the system keychain (when available)
  - an encrypted file in the civitdl config directory

Never share your API key or config files!`,
	}

	var tokenFile string
	cmd.PersistentFlags().StringVar(&tokenFile, "token-file", "", "API key file (default: "+config.DefaultTokenFile+")")

	manager := func() (*auth.Manager, string, error) {
		path := tokenFile
		if path == "" {
			cfg, err := config.Load(opts.configFile, nil)
			if err != nil {
				return nil, "", invalidInput(err)
			}
			path = cfg.Auth.TokenFile
		}
		m, err := auth.NewManager(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize credential manager: %w", err)
		}
		return m, path, nil
	}

	login := &cobra.Command{
		Use:   "login",
		Short: "Store an API key in the keychain or encrypted file",
		Long: `Store a Civitai API key. The key is read without echo and saved in the
first writable store: the system keychain, or the encrypted file when no
keychain is available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, path, err := manager()
			if err != nil {
				return err
			}
			auth.WriteTokenGuide(cmd.OutOrStdout(), path)

			fmt.Fprint(cmd.OutOrStdout(), "API key (input is hidden): ")
			token, err := readSecret(cmd.InOrStdin())
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return invalidInput(fmt.Errorf("failed to read API key: %w", err))
			}

			where, err := m.Save(token)
			if errors.Is(err, auth.ErrInvalidToken) {
				return invalidInput(errors.New("API key cannot be empty"))
			}
			if err != nil {
				return err
			}

			ui.PrintSuccess("API key stored in " + where + ": " + auth.MaskToken(strings.TrimSpace(token)))
			if _, source, err := m.Resolve(); err == nil && source != where {
				ui.PrintWarning("Note: %s takes precedence and will be used instead", source)
			}
			return nil
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API key",
		Long:  `Remove the API key from the keychain and the encrypted file. The token file and environment variable are left alone.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := manager()
			if err != nil {
				return err
			}
			err = m.Delete()
			if errors.Is(err, auth.ErrTokenNotFound) {
				ui.PrintWarning("No stored API key found")
				return nil
			}
			if err != nil {
				return err
			}
			ui.PrintSuccess("Stored API key removed")
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show where the API key would be loaded from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := manager()
			if err != nil {
				return err
			}
			printAuthStatus(cmd.OutOrStdout(), m)
			return nil
		},
	}

	cmd.AddCommand(login, logout, status)
	return cmd
}

func printAuthStatus(out io.Writer, m *auth.Manager) {
	_, active, resolveErr := m.Resolve()

	for _, st := range m.Status() {
		marker := " "
		if st.Name == active {
			marker = "*"
		}
		switch {
		case st.Err != nil:
			fmt.Fprintf(out, "%s %-40s %s\n", marker, st.Name, ui.Red("error: "+st.Err.Error()))
		case st.Present:
			fmt.Fprintf(out, "%s %-40s %s\n", marker, st.Name, ui.Green(st.Masked))
		default:
			fmt.Fprintf(out, "%s %-40s %s\n", marker, st.Name, ui.Dim("not set"))
		}
	}

	if resolveErr != nil {
		fmt.Fprintln(out, "\nNo API key found. Requests will use public access.")
		return
	}
	fmt.Fprintf(out, "\nUsing the API key from %s.\n", active)
}

// readSecret reads a line without echo when in is a terminal
func readSecret(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
