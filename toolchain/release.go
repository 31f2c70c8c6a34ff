package toolchain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/grovetools/packreload/errors"
	"github.com/sirupsen/logrus"
)

const (
	// ReleaseURL returns metadata about the latest compiler release.
	ReleaseURL = "https://api.github.com/repos/Slackow/PackScript/releases/latest"
	// DownloadURL redirects to the latest compiler script.
	DownloadURL = "https://github.com/Slackow/PackScript/releases/latest/download/" + CompilerFileName
	// ChangelogURL is shown to operators after an update.
	ChangelogURL = "https://github.com/Slackow/PackScript/releases/latest"

	userAgent = "packreload"
)

// defaultHTTPClient follows redirects, which the download URL relies on.
var defaultHTTPClient = &http.Client{Timeout: 60 * time.Second}

// ReleaseClient looks up the latest published compiler version.
type ReleaseClient struct {
	URL  string
	HTTP *http.Client
}

// NewReleaseClient creates a client for the public releases endpoint.
func NewReleaseClient() *ReleaseClient {
	return &ReleaseClient{URL: ReleaseURL, HTTP: defaultHTTPClient}
}

type releaseResponse struct {
	Name string `json:"name"`
}

// Latest returns the name of the latest release. Any failure, including a
// non-200 response or a missing name, returns ok=false.
func (c *ReleaseClient) Latest(ctx context.Context) (version string, ok bool) {
	v, err := c.fetch(ctx)
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *ReleaseClient) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch latest release: status %d", resp.StatusCode)
	}

	var release releaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("decode release: %w", err)
	}
	name := strings.TrimSpace(release.Name)
	if name == "" {
		return "", fmt.Errorf("release has no name")
	}
	return name, nil
}

// Downloader replaces the compiler script with the latest release asset.
type Downloader struct {
	URL      string
	HTTP     *http.Client
	notifier Notifier
	logger   *logrus.Entry
}

// NewDownloader creates a Downloader for the public release asset.
func NewDownloader(notifier Notifier, logger *logrus.Entry) *Downloader {
	return &Downloader{URL: DownloadURL, HTTP: defaultHTTPClient, notifier: notifier, logger: logger}
}

// Replace downloads the compiler and overwrites path with it. A non-200
// response leaves path untouched. It reports whether path exists afterwards
// following a successful download.
func (d *Downloader) Replace(ctx context.Context, path string) bool {
	body, err := d.fetch(ctx)
	if err != nil {
		if errors.Is(err, errors.ErrCodeDownloadFailed) {
			d.logger.WithError(err).Warn("Compiler download skipped")
		} else {
			d.logger.WithError(err).Error("Compiler download failed")
			d.notifier.Error(err.Error())
		}
		return false
	}

	if err := writeLocked(path, body); err != nil {
		d.logger.WithError(err).WithField("path", path).Error("Failed to write compiler")
		d.notifier.Error(err.Error())
		return false
	}

	d.logger.WithField("path", path).Info("Updated compiler")
	d.notifier.Info("Updated PackScript! Changelog: " + ChangelogURL)

	_, err = os.Stat(path)
	return err == nil
}

func (d *Downloader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.DownloadFailed(d.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read download: %w", err)
	}
	return body, nil
}

// writeLocked overwrites path while holding an advisory lock next to it, so
// two hosts sharing the global config directory never interleave writes.
func writeLocked(path string, body []byte) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer lock.Unlock()

	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
