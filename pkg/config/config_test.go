package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir and clears environment overrides
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"ROOT_DIR", "GITHUB_TOKEN", "LOG_LEVEL", "LOG_FORMAT", "CONCURRENCY"} {
		// Setenv restores the original value on cleanup
		t.Setenv(EnvPrefix+"_"+key, "")
		os.Unsetenv(EnvPrefix + "_" + key)
	}
	return home
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	assert.Equal(t, filepath.Join(homeDir, "addonmgr"), config.RootDir)
	assert.Equal(t, DefaultLogLevel, config.LogLevel)
	assert.Equal(t, DefaultConcurrency, config.Concurrency)
}

func TestGetDirectories(t *testing.T) {
	config := &Config{
		RootDir: "/test/root",
	}

	dirs := config.GetDirectories()

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"Root", dirs.Root, "/test/root"},
		{"Bin", dirs.Bin, "/test/root/bin"},
		{"BinActual", dirs.BinActual, "/test/root/bin/actual"},
		{"Config", dirs.Config, "/test/root/config"},
		{"DB", dirs.DB, "/test/root/db"},
		{"Logs", dirs.Logs, "/test/root/logs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.got)
			}
		})
	}

	assert.Equal(t, "file:/test/root/db/addonmgr.db", config.DatabaseURL())
}

func TestConfigSaveLoad(t *testing.T) {
	tmpDir := isolate(t)

	testConfig := &Config{
		RootDir:     filepath.Join(tmpDir, "addonmgr"),
		GitHubToken: "test-token",
		LogLevel:    "debug",
		LogFormat:   "json",
		Concurrency: 2,
	}

	require.NoError(t, testConfig.Save())

	loadedConfig, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testConfig, loadedConfig)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "addonmgr"), cfg.RootDir)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
}

func TestEnvironmentOverrides(t *testing.T) {
	tmpDir := isolate(t)

	require.NoError(t, (&Config{RootDir: "/from/file", GitHubToken: "file-token"}).Save())

	t.Setenv("ADDONMGR_ROOT_DIR", filepath.Join(tmpDir, "env-root"))
	t.Setenv("ADDONMGR_LOG_LEVEL", "error")
	t.Setenv("ADDONMGR_CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "env-root"), cfg.RootDir)
	assert.Equal(t, "file-token", cfg.GitHubToken)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestEnvFile(t *testing.T) {
	tmpDir := isolate(t)

	envFile := filepath.Join(tmpDir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ADDONMGR_GITHUB_TOKEN=dotenv-token\n"), 0600))

	cfg, err := LoadWithEnvFile(envFile)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-token", cfg.GitHubToken)

	_, err = LoadWithEnvFile(filepath.Join(tmpDir, "missing.env"))
	require.NoError(t, err)
}

func TestInvalidEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("ADDONMGR_CONCURRENCY", "many")

	_, err := Load()
	require.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	config := &Config{
		RootDir: tmpDir,
	}

	require.NoError(t, config.EnsureDirectories())

	dirs := config.GetDirectories()
	for _, dir := range []string{
		dirs.Root,
		dirs.Bin,
		dirs.BinActual,
		dirs.Config,
		dirs.DB,
		dirs.Logs,
	} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("Directory %s was not created", dir)
		}
	}

	readmePath := filepath.Join(dirs.Bin, "README.md")
	if _, err := os.Stat(readmePath); os.IsNotExist(err) {
		t.Error("README.md was not created in bin directory")
	}
}

func TestOperations(t *testing.T) {
	home := isolate(t)
	cfg := DefaultConfig()

	run := func(name, value string) (string, error) {
		op, err := FindOperation(name)
		require.NoError(t, err)
		var out bytes.Buffer
		err = op.Handler(cfg, &out, value)
		return out.String(), err
	}

	out, err := run("token", "abc")
	require.NoError(t, err)
	assert.Contains(t, out, "updated")
	assert.Equal(t, "abc", cfg.GitHubToken)

	out, err = run("token", "")
	require.NoError(t, err)
	assert.Contains(t, out, "cleared")
	assert.Empty(t, cfg.GitHubToken)

	_, err = run("root", "~/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "elsewhere"), cfg.RootDir)

	_, err = run("log-level", "DEBUG")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = run("log-level", "chatty")
	require.Error(t, err)

	_, err = run("concurrency", "0")
	require.Error(t, err)

	_, err = run("concurrency", "3")
	require.NoError(t, err)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Concurrency)
	assert.Equal(t, filepath.Join(home, "elsewhere"), loaded.RootDir)

	out, err = run("show", "")
	require.NoError(t, err)
	assert.Contains(t, out, "GitHub token: [not set]")
	assert.Contains(t, out, "Concurrency: 3")

	_, err = FindOperation("nope")
	require.Error(t, err)
}

func TestSavingPersistedConfigKeepsEnvironmentOut(t *testing.T) {
	isolate(t)
	require.NoError(t, (&Config{RootDir: "/from/file"}).Save())

	t.Setenv("ADDONMGR_GITHUB_TOKEN", "secret-from-env")
	t.Setenv("ADDONMGR_ROOT_DIR", "/from/env")

	cfg, err := LoadPersisted()
	require.NoError(t, err)
	assert.Empty(t, cfg.GitHubToken)
	assert.Equal(t, "/from/file", cfg.RootDir)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)

	op, err := FindOperation("concurrency")
	require.NoError(t, err)
	require.NoError(t, op.Handler(cfg, &bytes.Buffer{}, "2"))

	path, err := Path()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-from-env")
	assert.NotContains(t, string(data), "/from/env")

	// The environment still applies to the effective configuration
	effective, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "secret-from-env", effective.GitHubToken)
	assert.Equal(t, "/from/env", effective.RootDir)
	assert.Equal(t, 2, effective.Concurrency)
}
