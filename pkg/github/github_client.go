package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the public GitHub API
const DefaultBaseURL = "https://api.github.com"

// client implements the Client interface
type client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// NewClient creates a new GitHub client
func NewClient(token string, logger *zap.Logger) Client {
	return NewClientWithBaseURL(DefaultBaseURL, token, logger)
}

// NewClientWithBaseURL creates a client talking to baseURL instead of the
// public API, e.g. a GitHub Enterprise host or a test server
func NewClientWithBaseURL(baseURL, token string, logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		logger:  logger,
	}
}

func (c *client) newRequest(ctx context.Context, url, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("Accept", accept)
	return req, nil
}

// getJSON decodes the response of url into out and reports whether the
// response links to a next page
func (c *client) getJSON(ctx context.Context, url string, out any) (bool, error) {
	req, err := c.newRequest(ctx, url, "application/vnd.github.v3+json")
	if err != nil {
		return false, err
	}

	c.logger.Debug("github request", zap.String("url", url))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	return strings.Contains(resp.Header.Get("Link"), `rel="next"`), nil
}

// GetLatestRelease gets the latest release for a repository
func (c *client) GetLatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)

	var release Release
	if _, err := c.getJSON(ctx, url, &release); err != nil {
		return nil, fmt.Errorf("failed to get latest release: %w", err)
	}

	return &release, nil
}

// GetReleases gets all releases for a repository
func (c *client) GetReleases(ctx context.Context, owner, repo string) ([]*Release, error) {
	var allReleases []*Release

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=100&page=%d", c.baseURL, owner, repo, page)

		var releases []*Release
		more, err := c.getJSON(ctx, url, &releases)
		if err != nil {
			return nil, fmt.Errorf("failed to get releases: %w", err)
		}

		allReleases = append(allReleases, releases...)
		if !more || len(releases) == 0 {
			break
		}
	}

	return allReleases, nil
}

// DownloadAsset downloads a release asset to a specified path
func (c *client) DownloadAsset(ctx context.Context, asset *Asset, destPath string) error {
	req, err := c.newRequest(ctx, asset.DownloadURL, "application/octet-stream")
	if err != nil {
		return err
	}

	c.logger.Debug("downloading asset", zap.String("asset", asset.Name), zap.String("dest", destPath))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download asset: %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to write file: %w", err)
	}

	return f.Close()
}
