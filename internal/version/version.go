package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseError reports a version string that is not MAJOR.MINOR.PATCH[-pre][+build]
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid version %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse parses a version, removing a single leading 'v' if present.
// Unlike semver.NewVersion it requires all three numeric components.
func Parse(s string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(strings.TrimPrefix(s, "v"))
	if err != nil {
		return nil, &ParseError{Input: s, Err: err}
	}
	return v, nil
}

// Compare returns -1, 0 or 1 depending on whether a has lower, equal or
// higher precedence than b. Build metadata is ignored.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// IsNewer reports whether candidate has strictly greater precedence than baseline
func IsNewer(candidate, baseline string) (bool, error) {
	cmp, err := Compare(candidate, baseline)
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}
