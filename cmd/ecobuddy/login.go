package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/ecobuddy/internal/browser"
)

var (
	loginEmail    string
	loginPassword string
	loginBrowser  bool

	signupName     string
	signupEmail    string
	signupPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Login to the dashboard and save the session",
	Long: `Logs in with email and password (flags or config.yaml) and saves the
session cookie to the config file.

With --browser, opens a browser window for you to login manually instead.`,
	RunE: runLogin,
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create a dashboard account",
	RunE:  runSignup,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the dashboard session and forget saved cookies",
	RunE:  runLogout,
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open the dashboard in a browser using the saved session",
	RunE:  runOpen,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email (default: session.email from config)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password (default: session.password from config)")
	loginCmd.Flags().BoolVar(&loginBrowser, "browser", false, "login interactively in a browser window")

	signupCmd.Flags().StringVar(&signupName, "name", "", "full name")
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "account email")
	signupCmd.Flags().StringVar(&signupPassword, "password", "", "account password")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, openCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	if loginBrowser {
		return loginWithBrowser(cmd, s)
	}

	email := firstNonEmpty(loginEmail, s.cfg.Session.Email)
	password := firstNonEmpty(loginPassword, s.cfg.Session.Password)
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required (use --email/--password, session settings in config.yaml, or --browser)")
	}

	if err := s.client.Login(cmd.Context(), email, password); err != nil {
		return err
	}

	s.cfg.Session.Email = email
	s.cfg.Session.Cookies = s.client.Cookies()
	if err := saveConfig(s.cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Login successful! 🌿 Session saved for %s\n", email)
	return nil
}

func loginWithBrowser(cmd *cobra.Command, s *session) error {
	fmt.Fprintln(cmd.OutOrStdout(), "Opening browser for dashboard login...")
	fmt.Fprintln(cmd.OutOrStdout(), "Please log in manually in the browser window.")

	ctx, cancel := browser.NewContext(cmd.Context(), true)
	defer cancel()

	// Set a longer timeout for user to login
	ctx, cancelTimeout := context.WithTimeout(ctx, 10*time.Minute)
	defer cancelTimeout()

	cookies, err := browser.Login(ctx, s.cfg.GetServerURL())
	if err != nil {
		return err
	}

	s.cfg.Session.Cookies = cookies
	if err := saveConfig(s.cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Successfully saved %d cookies\n", len(cookies))
	return nil
}

func runSignup(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	if err := s.client.Signup(cmd.Context(), signupName, signupEmail, signupPassword); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Signup submitted 🌱 Please log in with 'ecobuddy login'.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	if err := s.client.Logout(cmd.Context()); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "⚠ Could not reach server: %v\n", err)
	}

	s.cfg.Session.Cookies = nil
	if err := saveConfig(s.cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ You have been logged out. 👋")
	return nil
}

func runOpen(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	if len(s.cfg.Session.Cookies) == 0 {
		return fmt.Errorf("no saved session. Run 'ecobuddy login' first")
	}

	ctx, cancel := browser.NewContext(cmd.Context(), true)
	defer cancel()

	if err := browser.Open(ctx, s.cfg.GetServerURL(), s.cfg.Session.Cookies); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Dashboard opened. Press Enter to close the browser...")
	fmt.Fscanln(cmd.InOrStdin())
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
