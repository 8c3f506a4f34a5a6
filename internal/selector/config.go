package selector

import (
	"errors"
	"fmt"
)

// DefaultCapacity is the number of releases kept when Config.Capacity is zero
const DefaultCapacity = 10

// Maximum stored length in bytes of each captured field
const (
	MaxNameLen      = 64
	MaxTagNameLen   = 32
	MaxCreatedAtLen = 32
	MaxURLLen       = 256
	MaxAssetNameLen = 64
)

// Config describes which releases a session selects. It is read-only once a
// session has started.
type Config struct {
	// TargetFilename is the asset name that must be attached to a release
	TargetFilename string

	// LatestOnly treats the input as a single release object instead of an array
	LatestOnly bool

	// Prerelease selects prereleases when true and stable releases when false
	Prerelease bool

	// NewerThan, when set, keeps only releases whose tag is a higher version
	NewerThan string

	// ReleaseID, when non-zero, keeps only the release with this id
	ReleaseID int64

	// Capacity bounds the result collection; zero means DefaultCapacity
	Capacity int
}

// Validate checks if the configuration is usable
func (c Config) Validate() error {
	if c.TargetFilename == "" {
		return errors.New("target filename must not be empty")
	}
	if c.Capacity < 0 {
		return fmt.Errorf("capacity must be non-negative, got %d", c.Capacity)
	}
	if c.ReleaseID < 0 {
		return fmt.Errorf("release id must be non-negative, got %d", c.ReleaseID)
	}
	return nil
}

func (c Config) capacity() int {
	if c.Capacity == 0 {
		return DefaultCapacity
	}
	return c.Capacity
}
