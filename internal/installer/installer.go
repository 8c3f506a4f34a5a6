// Package installer writes a selected release's firmware image to disk.
package installer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nickromney-org/ota-release-selector/pkg/types"
)

// BackupSuffix is appended to the previous image when backups are enabled
const BackupSuffix = ".bak"

// ErrTruncatedURL is returned for a release whose download URL was cut to fit
// its bounded field and therefore cannot be fetched
var ErrTruncatedURL = errors.New("download URL was truncated")

// Installer installs the firmware image of a release
type Installer interface {
	Install(ctx context.Context, release types.Release) (*Result, error)
}

// Result describes an installed image
type Result struct {
	Path       string
	BackupPath string
	Bytes      int64
	SHA256     string
}

// HTTPError reports a non-200 download response
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("download failed: HTTP %d from %s", e.StatusCode, e.URL)
}

// FileInstaller downloads images over HTTP and replaces the file at Path
// atomically: the image is written to a temporary file in the same directory
// and renamed into place.
type FileInstaller struct {
	Path   string
	Backup bool
	Client *http.Client
	Log    logrus.FieldLogger
}

// NewFileInstaller creates an installer writing to path
func NewFileInstaller(path string, backup bool, timeout time.Duration, log logrus.FieldLogger) *FileInstaller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileInstaller{
		Path:   path,
		Backup: backup,
		Client: &http.Client{Timeout: timeout},
		Log:    log,
	}
}

// Install downloads release.DownloadURL to Path
func (f *FileInstaller) Install(ctx context.Context, release types.Release) (*Result, error) {
	if release.DownloadURL == "" {
		return nil, fmt.Errorf("release %s has no download URL", release.TagName)
	}
	if slices.Contains(release.Truncated, "browser_download_url") {
		return nil, fmt.Errorf("release %s: %w", release.TagName, ErrTruncatedURL)
	}

	log := f.Log.WithFields(logrus.Fields{
		"tag_name": release.TagName,
		"url":      release.DownloadURL,
		"path":     f.Path,
	})
	log.Info("Installing firmware image")

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create install directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	n, sum, err := f.download(ctx, release.DownloadURL, tmp)
	if err != nil {
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("failed to sync image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close image: %w", err)
	}

	result := &Result{Path: f.Path, Bytes: n, SHA256: sum}

	if f.Backup {
		backup := f.Path + BackupSuffix
		if err := os.Rename(f.Path, backup); err == nil {
			result.BackupPath = backup
			log.WithField("backup", backup).Debug("Previous image kept")
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to back up previous image: %w", err)
		}
	}

	if err := os.Rename(tmpPath, f.Path); err != nil {
		if result.BackupPath != "" {
			if rerr := os.Rename(result.BackupPath, f.Path); rerr != nil {
				log.WithError(rerr).Error("Failed to restore previous image")
			}
		}
		return nil, fmt.Errorf("failed to move image into place: %w", err)
	}
	committed = true

	log.WithFields(logrus.Fields{
		"bytes":  n,
		"sha256": sum,
	}).Info("Firmware image installed")
	return result, nil
}

func (f *FileInstaller) download(ctx context.Context, url string, dst io.Writer) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("invalid download URL: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	h := sha256.New()
	n, err := copyWithContext(ctx, io.MultiWriter(dst, h), resp.Body)
	if err != nil {
		return n, "", fmt.Errorf("download interrupted after %d bytes: %w", n, err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// copyWithContext copies src to dst, checking for cancellation between reads
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
