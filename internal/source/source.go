// Package source provides offline release listings: a saved API response on
// disk, or the demo listing bundled into the binary.
package source

import (
	"context"
	"embed"
	"fmt"
	"io"
	"os"
)

//go:embed data/*.json
var bundled embed.FS

const (
	bundledList   = "data/releases.json"
	bundledLatest = "data/latest.json"
)

// File replays a saved GitHub API response. The file must hold a release
// array, or a single release object when opened in latest mode.
type File struct {
	Path string
}

// NewFile creates a source reading from path
func NewFile(path string) *File {
	return &File{Path: path}
}

// OpenReleases opens the saved response
func (f *File) OpenReleases(ctx context.Context, latest bool) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open releases file %s: %w", f.Path, err)
	}
	return fh, nil
}

// Bundled serves the demo listing compiled into the binary
type Bundled struct{}

// OpenReleases opens the bundled release array, or the bundled latest
// release object
func (Bundled) OpenReleases(ctx context.Context, latest bool) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := bundledList
	if latest {
		name = bundledLatest
	}
	fh, err := bundled.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundled releases %s: %w", name, err)
	}
	return fh, nil
}
