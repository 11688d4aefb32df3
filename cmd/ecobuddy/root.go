package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jgoulah/ecobuddy/internal/api"
	"github.com/jgoulah/ecobuddy/internal/config"
	"github.com/jgoulah/ecobuddy/internal/database"
	"github.com/jgoulah/ecobuddy/internal/viewmodel"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ecobuddy",
	Short: "Track household electricity, water and waste usage",
	Long: `EcoBuddy is a CLI client for the EcoBuddy dashboard.
It manages your devices, records how long they were used, charts the
current week's usage and relays questions to the dashboard's AI assistant.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "snapshot database file (default is ./ecobuddy.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests at debug level")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "ecobuddy.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// saveConfig saves the configuration file
func saveConfig(cfg *config.Config) error {
	return config.Save(getConfigPath(), cfg)
}

// openDB opens the database connection
func openDB() (*database.DB, error) {
	path := getDBPath()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

// newLogger builds the logger from config; --verbose forces debug
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if strings.EqualFold(cfg.Logging.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	return logger
}

// session bundles what most commands need
type session struct {
	cfg    *config.Config
	log    *logrus.Logger
	client *api.Client
}

// newSession loads config and builds an API client carrying the saved cookies
func newSession(opts ...api.Option) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := newLogger(cfg)
	opts = append([]api.Option{api.WithLogger(log), api.WithTimeout(cfg.GetTimeout())}, opts...)

	client, err := api.New(cfg.GetServerURL(), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	client.SetCookies(cfg.Session.Cookies)

	return &session{cfg: cfg, log: log, client: client}, nil
}

// viewModel builds a view-model printing the given panels to the command's output
func (s *session) viewModel(cmd *cobra.Command, panels panel) *viewmodel.ViewModel {
	return viewmodel.New(s.client, newTerminalView(cmd.OutOrStdout(), panels), viewmodel.WithLogger(s.log))
}

// hint adds a login hint to unauthorized errors
func hint(err error) error {
	if api.IsUnauthorized(err) {
		return fmt.Errorf("%w (hint: run 'ecobuddy login' first)", err)
	}
	return err
}
