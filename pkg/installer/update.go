package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dikkadev/addonmgr/pkg/github"
	"github.com/dikkadev/addonmgr/pkg/rules"
	"github.com/dikkadev/addonmgr/pkg/storage"
)

// Update moves one add-on to the newest release its update rules allow.
// It is the explicit path: disable-auto-update does not stop it, pin-version
// does.
func (i *Installer) Update(ctx context.Context, addon *storage.Addon, opts Options) error {
	id := addon.ID()

	releases, err := i.gh.GetReleases(ctx, addon.Owner, addon.Repo)
	if err != nil {
		return fmt.Errorf("failed to get releases: %w", err)
	}

	release, err := PlanUpdate(addon.Version, releases, i.rules.Rules(id))
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	if release == nil || release.TagName == addon.Version {
		i.printf("%s is already at the newest allowed version (%s)\n", id, addon.Version)
		return nil
	}

	return i.apply(ctx, addon, release, opts)
}

// autoUpdateBlocked reports whether a bulk update must skip id, and which
// rule causes it
func (i *Installer) autoUpdateBlocked(id string) (rules.UpdateRule, bool) {
	if i.rules.IsAutoUpdateable(id) {
		return rules.RuleNone, false
	}
	for _, rule := range []rules.UpdateRule{rules.RulePinVersion, rules.RuleDisableAutoUpdate} {
		if !i.rules.IsUpdateableByRule(id, rule) {
			return rule, true
		}
	}
	return rules.RuleNone, false
}

// UpdateAll updates every installed add-on that may be updated automatically.
// Add-ons are processed concurrently; one failure does not stop the others
// and all failures are returned together.
func (i *Installer) UpdateAll(ctx context.Context, opts Options) error {
	addons, err := i.store.ListAddons(ctx)
	if err != nil {
		return fmt.Errorf("failed to list add-ons: %w", err)
	}

	if len(addons) == 0 {
		return fmt.Errorf("no add-ons installed")
	}

	var (
		mu   sync.Mutex
		errs error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(i.cfg.Concurrency, 1))

	for _, addon := range addons {
		if rule, blocked := i.autoUpdateBlocked(addon.ID()); blocked {
			i.printf("Skipping %s (%s)\n", addon.ID(), rule)
			continue
		}

		g.Go(func() error {
			if err := i.Update(gctx, addon, opts); err != nil {
				i.logger.Warn("update failed", zap.String("addon", addon.ID()), zap.Error(err))
				i.printf("Failed to update %s: %v\n", addon.ID(), err)
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return errs
}

// apply downloads release and switches the add-on's symlink to it
func (i *Installer) apply(ctx context.Context, addon *storage.Addon, release *github.Release, opts Options) error {
	asset, err := i.platform.SelectAsset(release.Assets)
	if err != nil {
		return fmt.Errorf("%s@%s: %w", addon.ID(), release.TagName, err)
	}

	dirs := i.cfg.GetDirectories()
	actualPath := filepath.Join(dirs.BinActual, fmt.Sprintf("%s-%s-%s", addon.Owner, addon.Repo, release.TagName))
	symlinkPath := filepath.Join(dirs.Bin, addon.BinaryName)

	if opts.DryRun {
		i.printf("Would update %s from %s to %s:\n", addon.ID(), addon.Version, release.TagName)
		i.printf("  Asset: %s\n", asset.Name)
		i.printf("  Binary: %s\n", actualPath)
		i.printf("  Symlink: %s\n", symlinkPath)
		return nil
	}

	if err := i.gh.DownloadAsset(ctx, asset, actualPath); err != nil {
		return fmt.Errorf("failed to download asset: %w", err)
	}

	if err := os.Chmod(actualPath, 0755); err != nil {
		os.Remove(actualPath)
		return fmt.Errorf("failed to make binary executable: %w", err)
	}

	// Swap the symlink atomically
	tmpSymlink := symlinkPath + ".tmp"
	os.Remove(tmpSymlink)
	if err := os.Symlink(actualPath, tmpSymlink); err != nil {
		os.Remove(actualPath)
		return fmt.Errorf("failed to create temporary symlink: %w", err)
	}

	if err := os.Rename(tmpSymlink, symlinkPath); err != nil {
		os.Remove(tmpSymlink)
		os.Remove(actualPath)
		return fmt.Errorf("failed to update symlink: %w", err)
	}

	previous := addon.InstallPath
	addon.Version = release.TagName
	addon.InstallPath = actualPath

	if err := i.store.UpdateAddon(ctx, addon); err != nil {
		return fmt.Errorf("failed to update add-on in database: %w", err)
	}

	// The old binary may still be running
	if err := os.Remove(previous); err != nil && !errors.Is(err, os.ErrNotExist) {
		i.logger.Debug("old binary not removed", zap.String("path", previous), zap.Error(err))
	}

	i.logger.Info("add-on updated", zap.String("addon", addon.ID()), zap.String("version", release.TagName))
	i.printf("Successfully updated %s to %s\n", addon.ID(), release.TagName)
	return nil
}
