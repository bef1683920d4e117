package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dikkadev/addonmgr/pkg/config"
	"github.com/dikkadev/addonmgr/pkg/github"
	"github.com/dikkadev/addonmgr/pkg/platform"
	"github.com/dikkadev/addonmgr/pkg/rules"
	"github.com/dikkadev/addonmgr/pkg/storage"
)

// Options represents installation options
type Options struct {
	// Rules are recorded for the add-on right after it is installed
	Rules  []rules.UpdateRule
	DryRun bool
}

// Installer installs, updates and removes add-ons
type Installer struct {
	cfg      *config.Config
	store    storage.Storage
	rules    *rules.Store
	gh       github.Client
	platform platform.Platform
	logger   *zap.Logger

	outMu sync.Mutex
	out   io.Writer
}

// New creates an installer targeting the current platform. Messages for the
// user are written to out.
func New(cfg *config.Config, store storage.Storage, ruleStore *rules.Store, gh github.Client, logger *zap.Logger, out io.Writer) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{
		cfg:      cfg,
		store:    store,
		rules:    ruleStore,
		gh:       gh,
		platform: platform.Current(),
		logger:   logger,
		out:      out,
	}
}

// WithPlatform overrides the platform used for asset selection
func (i *Installer) WithPlatform(p platform.Platform) *Installer {
	i.platform = p
	return i
}

func (i *Installer) printf(format string, args ...any) {
	i.outMu.Lock()
	defer i.outMu.Unlock()
	fmt.Fprintf(i.out, format, args...)
}

// ParseID splits an "owner/repo" add-on id
func ParseID(id string) (owner, repo string, err error) {
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid add-on id: %s (expected format: owner/repo)", id)
	}
	return parts[0], parts[1], nil
}

// Install installs an add-on from its latest GitHub release
func (i *Installer) Install(ctx context.Context, id string, opts Options) error {
	owner, repo, err := ParseID(id)
	if err != nil {
		return err
	}

	existing, err := i.store.GetAddon(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("failed to check existing add-on: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("add-on %s is already installed", id)
	}

	release, err := i.gh.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("failed to get latest release: %w", err)
	}

	asset, err := i.platform.SelectAsset(release.Assets)
	if err != nil {
		return err
	}

	dirs := i.cfg.GetDirectories()
	actualPath := filepath.Join(dirs.BinActual, fmt.Sprintf("%s-%s-%s", owner, repo, release.TagName))
	symlinkPath := filepath.Join(dirs.Bin, repo)

	if opts.DryRun {
		i.printf("Would install %s@%s:\n", id, release.TagName)
		i.printf("  Asset: %s\n", asset.Name)
		i.printf("  Binary: %s\n", actualPath)
		i.printf("  Symlink: %s\n", symlinkPath)
		for _, rule := range opts.Rules {
			i.printf("  Rule: %s\n", rule)
		}
		return nil
	}

	if err := i.gh.DownloadAsset(ctx, asset, actualPath); err != nil {
		return fmt.Errorf("failed to download asset: %w", err)
	}

	if err := os.Chmod(actualPath, 0755); err != nil {
		os.Remove(actualPath)
		return fmt.Errorf("failed to make binary executable: %w", err)
	}

	if err := os.Symlink(actualPath, symlinkPath); err != nil {
		os.Remove(actualPath)
		return fmt.Errorf("failed to create symlink: %w", err)
	}

	addon := &storage.Addon{
		Owner:       owner,
		Repo:        repo,
		Version:     release.TagName,
		InstallPath: actualPath,
		BinaryName:  repo,
		Platform:    i.platform.String(),
	}

	if err := i.store.AddAddon(ctx, addon); err != nil {
		os.Remove(symlinkPath)
		os.Remove(actualPath)
		return fmt.Errorf("failed to add add-on to database: %w", err)
	}

	for _, rule := range opts.Rules {
		if err := i.rules.AddRule(ctx, i.store, id, rule); err != nil {
			return fmt.Errorf("installed %s but failed to set rule: %w", id, err)
		}
	}

	i.logger.Info("add-on installed", zap.String("addon", id), zap.String("version", release.TagName))
	i.printf("Successfully installed %s@%s\n", id, release.TagName)
	return nil
}

// Remove removes an installed add-on together with its update rules
func (i *Installer) Remove(ctx context.Context, addon *storage.Addon, opts Options) error {
	dirs := i.cfg.GetDirectories()
	symlinkPath := filepath.Join(dirs.Bin, addon.BinaryName)

	if opts.DryRun {
		i.printf("Would remove %s@%s:\n", addon.ID(), addon.Version)
		i.printf("  Binary: %s\n", addon.InstallPath)
		i.printf("  Symlink: %s\n", symlinkPath)
		for _, rule := range i.rules.Rules(addon.ID()) {
			i.printf("  Rule: %s\n", rule)
		}
		return nil
	}

	// Remove from database first
	if err := i.store.DeleteAddon(ctx, addon.Owner, addon.Repo); err != nil {
		return fmt.Errorf("failed to remove add-on from database: %w", err)
	}

	if err := i.rules.RemoveAllRules(ctx, i.store, addon.ID()); err != nil && !errors.Is(err, rules.ErrNotFound) {
		return fmt.Errorf("failed to clear update rules: %w", err)
	}

	if err := os.Remove(symlinkPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove symlink: %w", err)
	}

	if err := os.Remove(addon.InstallPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove binary: %w", err)
	}

	i.logger.Info("add-on removed", zap.String("addon", addon.ID()))
	i.printf("Successfully removed %s\n", addon.ID())
	return nil
}
