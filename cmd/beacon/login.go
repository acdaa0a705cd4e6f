package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in so reports are sent on your behalf",
	Long: `Log in with your email and password. The session is stored in the
profile and sent with every report until it expires or you run
'beacon logout'.

The password is read from stdin when --password is not given. Any
--api-url or --app-token given here is saved to the profile.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := newClientEnv(cmd.Context())
		if err != nil {
			return err
		}
		if err := env.sessions.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("logged out"))
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (prefer stdin)")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	env, err := newClientEnv(ctx)
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	email := loginEmail
	if email == "" {
		if email, err = prompt(in, cmd.ErrOrStderr(), "Email: "); err != nil {
			return err
		}
	}
	password := loginPassword
	if password == "" {
		if password, err = prompt(in, cmd.ErrOrStderr(), "Password: "); err != nil {
			return err
		}
	}

	if apiURL != "" || appToken != "" {
		p := env.profile.Profile()
		if err := env.profile.SetEndpoint(firstNonEmpty(apiURL, p.APIURL), firstNonEmpty(appToken, p.AppToken)); err != nil {
			return err
		}
	}

	result, err := env.sessions.Login(ctx, email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
		successStyle.Render("logged in as "+result.User.Email),
		mutedStyle.Render("until "+result.ExpiresAt.Local().Format("2006-01-02 15:04")))
	return nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, labelStyle.Render(label))
	line, err := in.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}
