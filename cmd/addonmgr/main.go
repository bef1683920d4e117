// Package main is the entry point for the addonmgr CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dikkadev/addonmgr/pkg/config"
	"github.com/dikkadev/addonmgr/pkg/github"
	"github.com/dikkadev/addonmgr/pkg/installer"
	"github.com/dikkadev/addonmgr/pkg/logging"
	"github.com/dikkadev/addonmgr/pkg/rules"
	"github.com/dikkadev/addonmgr/pkg/storage"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags
type globalOptions struct {
	envFile  string
	logLevel string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "addonmgr",
		Short: "Install and update add-ons from GitHub releases",
		Long: `addonmgr installs add-ons from GitHub releases and keeps them up to date.

Update rules control how each add-on is updated:
  disable-auto-update  skip the add-on when running "update" without arguments
  pin-version          never update the add-on
  pin-major            only update within the installed major version
  pin-minor            only update within the installed major.minor version

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. ~/.config/addonmgr/config.json
  3. .env file (if --env-file is given)
  4. ADDONMGR_* environment variables
  5. Command line flags`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file with ADDONMGR_* variables")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(installCmd(opts))
	cmd.AddCommand(updateCmd(opts))
	cmd.AddCommand(removeCmd(opts))
	cmd.AddCommand(listCmd(opts))
	cmd.AddCommand(rulesCmd(opts))
	cmd.AddCommand(configureCmd(opts))
	cmd.AddCommand(versionCmd())

	return cmd
}

// app bundles everything a command needs to work on installed add-ons
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     storage.Storage
	rules     *rules.Store
	installer *installer.Installer
}

// loadConfig loads configuration and applies the --log-level flag
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadWithEnvFile(opts.envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, nil
}

// openApp loads configuration, opens the database and loads the update rules
func openApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	store, err := storage.NewLibSQL(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := cmd.Context()
	if err := store.Initialize(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	ruleStore := rules.NewStore(logger.Named("rules"))
	if err := ruleStore.Refresh(ctx, store); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize rule store: %w", err)
	}

	gh := github.NewClient(cfg.GitHubToken, logger.Named("github"))
	inst := installer.New(cfg, store, ruleStore, gh, logger.Named("installer"), cmd.OutOrStdout())

	logger.Debug("database opened", zap.String("url", cfg.DatabaseURL()))

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		rules:     ruleStore,
		installer: inst,
	}, nil
}

func (a *app) Close() error {
	_ = a.logger.Sync()
	return a.store.Close()
}

// lookup returns the installed add-on with the given id
func (a *app) lookup(cmd *cobra.Command, id string) (*storage.Addon, error) {
	owner, repo, err := installer.ParseID(id)
	if err != nil {
		return nil, err
	}

	addon, err := a.store.GetAddon(cmd.Context(), owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get add-on: %w", err)
	}
	if addon == nil {
		return nil, fmt.Errorf("add-on not installed: %s", id)
	}
	return addon, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "addonmgr version %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
