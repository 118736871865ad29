package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cashboxes/internal/auth"
	applog "cashboxes/internal/log"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the people who can sign in",
	}
	cmd.AddCommand(newUserCreateCommand(), newUserListCommand())
	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var fullName string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "create USERNAME",
		Short: "Register a user with a password",
		Long: "Register a user. The password is read from CASHBOXES_PASSWORD or,\n" +
			"with --password-stdin, from the first line of standard input.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("CASHBOXES_PASSWORD")
			if passwordStdin {
				var err error
				if password, err = readPassword(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if password == "" {
				return errors.New("no password given: set CASHBOXES_PASSWORD or use --password-stdin")
			}

			a, err := openApp(cmd.Context(), applog.ComponentAuth, false)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := auth.NewAuthenticator(a.store).Register(cmd.Context(), args[0], fullName, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %q (%s)\n", u.Username, u.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&fullName, "name", "", "full name shown in the pages")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from standard input")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newUserListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), applog.ComponentAuth, false)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.store.ListUsers(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tNAME\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%t\n", u.Username, u.DisplayName(), u.Active)
			}
			return w.Flush()
		},
	}
}
