package selector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nickromney-org/ota-release-selector/internal/jsonstream"
)

// Engine hands out selection sessions, at most one at a time
type Engine struct {
	mu     sync.Mutex
	active *Session
	log    logrus.FieldLogger
}

// NewEngine creates an engine logging through log, or through the logrus
// standard logger when log is nil
func NewEngine(log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{log: log}
}

// Begin starts a session. It fails with ErrSessionBusy while another session
// has not ended, leaving that session untouched.
func (e *Engine) Begin(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid selection config: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active != nil {
		e.log.WithField("active_session", e.active.id).Warn("Release selection already running")
		return nil, ErrSessionBusy
	}

	id := uuid.NewString()
	s := &Session{
		id:      id,
		cfg:     cfg,
		engine:  e,
		log:     e.log.WithField("session", id),
		results: newCollection(cfg.capacity()),
	}
	e.active = s
	return s, nil
}

// Busy reports whether a session is active
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

func (e *Engine) release(s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == s {
		e.active = nil
	}
}

// Run selects releases from r in a single session. In LatestOnly mode the
// input is a single release object and is wrapped into a one-element array.
//
// On malformed input Run returns a *ParseError, and on read failure or
// cancellation a *StreamError; in both cases the collection of releases
// committed before the failure is returned as well.
func (e *Engine) Run(ctx context.Context, r io.Reader, cfg Config) (*Collection, error) {
	s, err := e.Begin(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.LatestOnly {
		r = io.MultiReader(strings.NewReader("["), r, strings.NewReader("]"))
	}

	sc := jsonstream.NewScanner(r)
	for {
		if err := ctx.Err(); err != nil {
			res := s.End()
			return res, &StreamError{Err: err, Releases: res.Releases()}
		}

		ev, err := sc.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			res := s.End()
			var se *jsonstream.SyntaxError
			if errors.As(err, &se) {
				s.log.WithError(err).Error("Malformed releases document")
				return res, &ParseError{Offset: se.Offset, Err: se.Err, Releases: res.Releases()}
			}
			return res, &StreamError{Err: err, Releases: res.Releases()}
		}

		s.HandleEvent(ev, sc.Stack())
	}

	return s.End(), nil
}
