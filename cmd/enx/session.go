package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/japaniel/enx/pkg/apperrors"
	"github.com/japaniel/enx/pkg/db"
)

type loginOptions struct {
	username      string
	passwordStdin bool
}

func newLoginCmd(a *app) *cobra.Command {
	opts := loginOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the translation backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, a, &opts)
		},
	}
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "Account name")
	cmd.Flags().BoolVar(&opts.passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func runLogin(cmd *cobra.Command, a *app, opts *loginOptions) error {
	in := bufio.NewReader(cmd.InOrStdin())
	username := strings.TrimSpace(opts.username)
	if username == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Username: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("error reading username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	password, err := readPassword(cmd, in, opts.passwordStdin)
	if err != nil {
		return fmt.Errorf("error reading password: %w", err)
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required")
	}

	client, err := a.client(cmd.Context())
	if err != nil {
		return err
	}
	res, err := client.Login(cmd.Context(), username, password)
	if err != nil {
		return fmt.Errorf("%s", apperrors.PublicMessage(err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", res.User)
	return nil
}

// readPassword prompts without echo on a terminal and reads a plain line
// otherwise.
func readPassword(cmd *cobra.Command, in *bufio.Reader, fromStdin bool) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session state and word cache counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client(cmd.Context())
			if err != nil {
				return err
			}
			conn, err := a.db()
			if err != nil {
				return err
			}
			stats, err := db.GetStats(conn)
			if err != nil {
				return fmt.Errorf("failed to read word cache: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:    %s\n", a.cfg.API.BaseURL)
			fmt.Fprintf(out, "Session:    %s (store=%s)\n", client.State(), a.cfg.Session.Store)
			fmt.Fprintf(out, "Words:      %d (%d acquainted)\n", stats.Words, stats.Acquainted)
			fmt.Fprintf(out, "Pages:      %d\n", stats.Pages)
			return nil
		},
	}
}
