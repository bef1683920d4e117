package e2e

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcexec "github.com/testcontainers/testcontainers-go/exec"
)

const (
	image   = "addonmgr-e2e-test:latest"
	rootDir = "/home/testuser/addonmgr"
	// jq publishes raw binaries and tags releases as jq-X.Y.Z
	repo = "jqlang/jq"
)

var logger = log.New(os.Stdout, "E2E_TEST| ", log.LstdFlags|log.Lmicroseconds)

type testContainer struct {
	container testcontainers.Container
}

func buildTestImage() error {
	dir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	buildScript := filepath.Join(dir, "build.sh")
	logger.Printf("Running build script: %s\n", buildScript)

	cmd := exec.Command("/bin/bash", buildScript)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to build test image: %w", err)
	}
	return nil
}

func setupContainer(ctx context.Context, t *testing.T) *testContainer {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}

	require.NoError(t, buildTestImage())

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: image,
			Cmd:   []string{"tail", "-f", "/dev/null"},
			Env:   map[string]string{"ADDONMGR_GITHUB_TOKEN": os.Getenv("GITHUB_TOKEN")},
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start container")

	tc := &testContainer{container: container}
	t.Cleanup(func() { tc.terminate(context.Background()) })
	logger.Println("Container started:", container.GetContainerID())
	return tc
}

// exec runs a command in the container and returns its combined output
func (tc *testContainer) exec(ctx context.Context, cmd ...string) (string, error) {
	logger.Printf("Executing command: %s\n", strings.Join(cmd, " "))

	code, output, err := tc.container.Exec(ctx, cmd, tcexec.Multiplexed())
	if err != nil {
		return "", fmt.Errorf("failed to execute command: %w", err)
	}

	outputBytes, err := io.ReadAll(output)
	if err != nil {
		return "", fmt.Errorf("failed to read output: %w", err)
	}
	out := string(outputBytes)
	logger.Printf("Command output:\n%s\n", out)

	if code != 0 {
		return out, fmt.Errorf("command exited with code %d", code)
	}
	return out, nil
}

func (tc *testContainer) addonmgr(ctx context.Context, args ...string) (string, error) {
	return tc.exec(ctx, append([]string{"addonmgr"}, args...)...)
}

func (tc *testContainer) exists(ctx context.Context, flag, path string) bool {
	code, _, err := tc.container.Exec(ctx, []string{"test", flag, path})
	return err == nil && code == 0
}

func (tc *testContainer) terminate(ctx context.Context) {
	if err := tc.container.Terminate(ctx); err != nil {
		logger.Printf("Failed to terminate container: %v\n", err)
	}
}

func TestInstallUpdateRemove(t *testing.T) {
	ctx := context.Background()
	tc := setupContainer(ctx, t)

	out, err := tc.addonmgr(ctx, "install", "--dry-run", repo)
	require.NoError(t, err)
	assert.Contains(t, out, "Would install "+repo)

	out, err = tc.addonmgr(ctx, "install", repo)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Successfully installed "+repo)

	symlink := filepath.Join(rootDir, "bin", "jq")
	require.True(t, tc.exists(ctx, "-L", symlink), "symlink not created")

	out, err = tc.exec(ctx, "jq", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "jq-")

	out, err = tc.addonmgr(ctx, "list")
	require.NoError(t, err)
	assert.Contains(t, out, repo+"@")

	out, err = tc.addonmgr(ctx, "update", repo)
	require.NoError(t, err, out)
	assert.Contains(t, out, "already at the newest allowed version")

	out, err = tc.addonmgr(ctx, "remove", repo)
	require.NoError(t, err, out)
	assert.False(t, tc.exists(ctx, "-L", symlink), "symlink still exists")
}

func TestUpdateRules(t *testing.T) {
	ctx := context.Background()
	tc := setupContainer(ctx, t)

	out, err := tc.addonmgr(ctx, "install", "--rule", "disable-auto-update", repo)
	require.NoError(t, err, out)

	out, err = tc.addonmgr(ctx, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "(disable-auto-update)")

	out, err = tc.addonmgr(ctx, "update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Skipping "+repo+" (disable-auto-update)")

	out, err = tc.addonmgr(ctx, "rules", "add", repo, "pin-version")
	require.NoError(t, err, out)
	assert.Contains(t, out, repo+" (disable-auto-update, pin-version)")

	out, err = tc.addonmgr(ctx, "update", repo)
	require.Error(t, err)
	assert.Contains(t, out, "pinned")

	// jq tags are not semantic versions, so a major pin cannot be honored
	out, err = tc.addonmgr(ctx, "rules", "remove", repo, "pin-version")
	require.NoError(t, err, out)
	out, err = tc.addonmgr(ctx, "rules", "add", repo, "pin-major")
	require.NoError(t, err, out)
	out, err = tc.addonmgr(ctx, "update", repo)
	require.Error(t, err)
	assert.Contains(t, out, "not a semantic version")

	out, err = tc.addonmgr(ctx, "remove", repo)
	require.NoError(t, err, out)

	out, err = tc.addonmgr(ctx, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No update rules set")
}

func TestInstallErrors(t *testing.T) {
	ctx := context.Background()
	tc := setupContainer(ctx, t)

	_, err := tc.addonmgr(ctx, "install", "invalid-format")
	assert.Error(t, err)

	_, err = tc.addonmgr(ctx, "install", "--rule", "none", repo)
	assert.Error(t, err)

	_, err = tc.addonmgr(ctx, "install", "addonmgr-nonexistent/repo")
	assert.Error(t, err)

	out, err := tc.addonmgr(ctx, "install", repo)
	require.NoError(t, err, out)

	out, err = tc.addonmgr(ctx, "install", repo)
	require.Error(t, err)
	assert.Contains(t, out, "already installed")
}
