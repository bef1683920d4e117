package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dikkadev/addonmgr/pkg/config"
	"github.com/dikkadev/addonmgr/pkg/rules"
	"github.com/dikkadev/addonmgr/pkg/storage"
)

// setupHome isolates configuration and data in temp directories and
// returns the root directory
func setupHome(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"GITHUB_TOKEN", "LOG_LEVEL", "LOG_FORMAT", "CONCURRENCY"} {
		t.Setenv(config.EnvPrefix+"_"+key, "")
		os.Unsetenv(config.EnvPrefix + "_" + key)
	}
	root := filepath.Join(t.TempDir(), "root")
	t.Setenv(config.EnvPrefix+"_ROOT_DIR", root)
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedAddon(t *testing.T, root, owner, repo, version string) {
	t.Helper()
	cfg := &config.Config{RootDir: root}
	store, err := storage.NewLibSQL(cfg.DatabaseURL())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Initialize(ctx))
	require.NoError(t, store.AddAddon(ctx, &storage.Addon{
		Owner:       owner,
		Repo:        repo,
		Version:     version,
		InstallPath: filepath.Join(cfg.GetDirectories().BinActual, owner+"-"+repo+"-"+version),
		BinaryName:  repo,
		Platform:    "linux-amd64",
	}))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "addonmgr version dev")
}

func TestEmptyState(t *testing.T) {
	setupHome(t)

	out, err := run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No add-ons installed")

	out, err = run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No update rules set")

	_, err = run(t, "update")
	require.Error(t, err)
}

func TestRulesCommandErrors(t *testing.T) {
	setupHome(t)

	_, err := run(t, "rules", "add", "owner/tool", "pin-everything")
	require.ErrorIs(t, err, rules.ErrInvalidRule)

	_, err = run(t, "rules", "add", "owner/tool", "none")
	require.ErrorIs(t, err, rules.ErrInvalidRule)

	_, err = run(t, "rules", "add", "owner/tool", "pin-major")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not installed")

	_, err = run(t, "rules", "clear", "owner/tool")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no update rules")

	_, err = run(t, "rules", "remove", "tool", "pin-major")
	require.Error(t, err)
}

func TestRulesLifecycle(t *testing.T) {
	root := setupHome(t)

	_, err := run(t, "list")
	require.NoError(t, err)
	seedAddon(t, root, "owner", "tool", "v1.0.0")

	out, err := run(t, "rules", "add", "owner/tool", "pin-major", "disable-auto-update")
	require.NoError(t, err)
	assert.Contains(t, out, "owner/tool (pin-major, disable-auto-update)")

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "owner/tool@v1.0.0 (pin-major, disable-auto-update)")

	out, err = run(t, "rules", "remove", "owner/tool", "pin-major")
	require.NoError(t, err)
	assert.Contains(t, out, "owner/tool (disable-auto-update)")

	out, err = run(t, "rules", "list", "owner/tool")
	require.NoError(t, err)
	assert.Equal(t, "disable-auto-update\n", out)

	// A single remaining rule that does not match is not found
	_, err = run(t, "rules", "remove", "owner/tool", "pin-version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not have the pin-version rule")

	// disable-auto-update keeps the add-on out of bulk updates
	out, err = run(t, "update", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Skipping owner/tool (disable-auto-update)")

	out, err = run(t, "rules", "clear", "owner/tool")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared update rules of owner/tool")

	out, err = run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No update rules set")
}

func TestConfigure(t *testing.T) {
	setupHome(t)

	out, err := run(t, "configure", "set", "concurrency", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Concurrency set to 3")

	out, err = run(t, "configure", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Concurrency: 3")

	_, err = run(t, "configure", "set", "concurrency", "zero")
	require.Error(t, err)

	_, err = run(t, "configure", "set", "colour", "blue")
	require.Error(t, err)
}

func TestConfigureDoesNotPersistEnvironment(t *testing.T) {
	root := setupHome(t)
	t.Setenv(config.EnvPrefix+"_GITHUB_TOKEN", "secret-from-env")

	_, err := run(t, "configure", "set", "concurrency", "2")
	require.NoError(t, err)

	path, err := config.Path()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-from-env")
	assert.NotContains(t, string(data), root)

	out, err := run(t, "configure", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "GitHub token: [set]")
	assert.Contains(t, out, "Concurrency: 2")
}
