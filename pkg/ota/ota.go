// Package ota selects firmware releases from a GitHub release listing and
// installs the image of the newest one.
package ota

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nickromney-org/ota-release-selector/internal/installer"
	"github.com/nickromney-org/ota-release-selector/internal/selector"
	"github.com/nickromney-org/ota-release-selector/pkg/logger"
	"github.com/nickromney-org/ota-release-selector/pkg/types"
)

// Source provides a release listing. In latest mode it yields a single
// release object instead of an array.
type Source interface {
	OpenReleases(ctx context.Context, latest bool) (io.ReadCloser, error)
}

// ErrSelection is returned when an install does not select exactly one release
var ErrSelection = errors.New("expected exactly one release to install")

// ErrNoInstaller is returned by InstallLatest on an Updater without an installer
var ErrNoInstaller = errors.New("no installer configured")

// SelectionError reports how many releases an install selected
type SelectionError struct {
	Count int
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("%v, selected %d", ErrSelection, e.Count)
}

func (e *SelectionError) Unwrap() error {
	return ErrSelection
}

var (
	engineOnce   sync.Once
	sharedEngine *selector.Engine
)

// Engine returns the process-wide selection engine. Only one selection runs
// at a time across every Updater that uses it.
func Engine() *selector.Engine {
	engineOnce.Do(func() {
		sharedEngine = selector.NewEngine(logger.Module("selector"))
	})
	return sharedEngine
}

// Installation describes a completed install
type Installation struct {
	Release types.Release
	Result  *installer.Result
}

// Updater selects releases from a source and installs them
type Updater struct {
	source    Source
	installer installer.Installer
	engine    *selector.Engine
	log       logrus.FieldLogger

	mu     sync.RWMutex
	config selector.Config
}

// Option customises an Updater
type Option func(*Updater)

// WithInstaller sets the installer used by InstallLatest
func WithInstaller(i installer.Installer) Option {
	return func(u *Updater) { u.installer = i }
}

// WithEngine replaces the process-wide engine
func WithEngine(e *selector.Engine) Option {
	return func(u *Updater) { u.engine = e }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(u *Updater) { u.log = log }
}

// New creates an Updater selecting from src with cfg
func New(src Source, cfg selector.Config, opts ...Option) *Updater {
	u := &Updater{
		source: src,
		config: cfg,
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.engine == nil {
		u.engine = Engine()
	}
	if u.log == nil {
		u.log = logger.Module("ota")
	}
	return u
}

// Config returns the current selection config
func (u *Updater) Config() selector.Config {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.config
}

// SetCurrentVersion makes later selections require a version above v
func (u *Updater) SetCurrentVersion(v string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.config.NewerThan = v
}

// Releases returns the releases selected by the configured filter. On a
// parse or stream failure the releases committed before it are returned
// along with the error.
func (u *Updater) Releases(ctx context.Context) ([]types.Release, error) {
	return u.run(ctx, u.Config())
}

// InstallLatest selects the latest release and installs it. The latest
// release must pass the configured filter; anything other than exactly one
// selected release is a *SelectionError and nothing is installed.
func (u *Updater) InstallLatest(ctx context.Context) (*Installation, error) {
	if u.installer == nil {
		return nil, ErrNoInstaller
	}

	cfg := u.Config()
	cfg.LatestOnly = true

	releases, err := u.run(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(releases) != 1 {
		u.log.WithField("selected", len(releases)).Info("No release to install")
		return nil, &SelectionError{Count: len(releases)}
	}

	release := releases[0]
	u.log.WithFields(logrus.Fields{
		"tag_name": release.TagName,
		"url":      release.DownloadURL,
	}).Info("Release ready to install")

	result, err := u.installer.Install(ctx, release)
	if err != nil {
		return nil, fmt.Errorf("failed to install %s: %w", release.TagName, err)
	}
	return &Installation{Release: release, Result: result}, nil
}

func (u *Updater) run(ctx context.Context, cfg selector.Config) ([]types.Release, error) {
	rc, err := u.source.OpenReleases(ctx, cfg.LatestOnly)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	res, err := u.engine.Run(ctx, rc, cfg)
	return res.Releases(), err
}
