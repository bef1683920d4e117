package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dikkadev/addonmgr/pkg/logging"
)

// ConfigureOperation represents a configuration operation. Handlers that
// change the configuration save it before returning.
type ConfigureOperation struct {
	Name        string
	Description string
	// NeedsValue reports whether the operation takes an argument
	NeedsValue bool
	Handler    func(cfg *Config, w io.Writer, value string) error
}

// GetOperations returns available configuration operations
func GetOperations() []ConfigureOperation {
	return []ConfigureOperation{
		{
			Name:        "token",
			Description: "Set GitHub API token (empty clears it)",
			NeedsValue:  true,
			Handler:     configureGitHubToken,
		},
		{
			Name:        "root",
			Description: "Change root directory",
			NeedsValue:  true,
			Handler:     configureRootDir,
		},
		{
			Name:        "log-level",
			Description: "Set log level (debug, info, warn, error)",
			NeedsValue:  true,
			Handler:     configureLogLevel,
		},
		{
			Name:        "concurrency",
			Description: "Set how many add-ons are updated in parallel",
			NeedsValue:  true,
			Handler:     configureConcurrency,
		},
		{
			Name:        "show",
			Description: "Show current configuration",
			Handler:     showConfig,
		},
	}
}

// FindOperation returns the operation with the given name
func FindOperation(name string) (ConfigureOperation, error) {
	for _, op := range GetOperations() {
		if op.Name == name {
			return op, nil
		}
	}
	return ConfigureOperation{}, fmt.Errorf("unknown operation: %s", name)
}

func configureGitHubToken(cfg *Config, w io.Writer, value string) error {
	token := strings.TrimSpace(value)
	cfg.GitHubToken = token
	if token == "" {
		fmt.Fprintln(w, "GitHub token cleared")
	} else {
		fmt.Fprintln(w, "GitHub token updated")
	}
	return cfg.Save()
}

func configureRootDir(cfg *Config, w io.Writer, value string) error {
	newDir := strings.TrimSpace(value)
	if newDir == "" {
		fmt.Fprintln(w, "Root directory unchanged")
		return nil
	}

	// Expand ~ to home directory
	if newDir == "~" || strings.HasPrefix(newDir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		newDir = filepath.Join(home, strings.TrimPrefix(newDir[1:], "/"))
	}

	absPath, err := filepath.Abs(newDir)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	cfg.RootDir = absPath
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(w, "Root directory changed to %s\n", absPath)
	fmt.Fprintln(w, "Note: existing add-ons and their update rules stay in the old location")
	return nil
}

func configureLogLevel(cfg *Config, w io.Writer, value string) error {
	if _, err := logging.ParseLevel(value); err != nil {
		return err
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(value))
	fmt.Fprintf(w, "Log level set to %s\n", cfg.LogLevel)
	return cfg.Save()
}

func configureConcurrency(cfg *Config, w io.Writer, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 1 {
		return fmt.Errorf("concurrency must be a positive integer, got %q", value)
	}
	cfg.Concurrency = n
	fmt.Fprintf(w, "Concurrency set to %d\n", n)
	return cfg.Save()
}

func showConfig(cfg *Config, w io.Writer, _ string) error {
	fmt.Fprintln(w, "Current configuration:")
	fmt.Fprintf(w, "Root directory: %s\n", cfg.RootDir)
	if cfg.GitHubToken != "" {
		fmt.Fprintln(w, "GitHub token: [set]")
	} else {
		fmt.Fprintln(w, "GitHub token: [not set]")
	}
	fmt.Fprintf(w, "Log level: %s\n", cfg.LogLevel)
	fmt.Fprintf(w, "Log format: %s\n", cfg.LogFormat)
	fmt.Fprintf(w, "Concurrency: %d\n", cfg.Concurrency)
	return nil
}
