package selector

import (
	"errors"
	"fmt"

	"github.com/nickromney-org/ota-release-selector/pkg/types"
)

// ErrSessionBusy is returned when a session is started while another one is active
var ErrSessionBusy = errors.New("a release selection session is already active")

// ParseError reports malformed input. Releases holds everything committed
// before the failure.
type ParseError struct {
	Offset   int64
	Err      error
	Releases []types.Release
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse releases at offset %d (%d selected before failure): %v",
		e.Offset, len(e.Releases), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StreamError reports that reading the input failed or was cancelled.
// Releases holds everything committed before the failure.
type StreamError struct {
	Err      error
	Releases []types.Release
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("failed to read releases (%d selected before failure): %v", len(e.Releases), e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
