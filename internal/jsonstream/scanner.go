// Package jsonstream exposes a JSON document as a sequence of structural
// events together with a view of the currently open containers.
//
// Only one token is held at a time, so memory use is bounded by the nesting
// depth and the longest scalar rather than by the document size.
package jsonstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxDepth bounds the container stack. Object keys occupy a slot, so
// a releases document needs six.
const DefaultMaxDepth = 16

// ErrTooDeep is returned when the document nests deeper than the scanner's limit
var ErrTooDeep = errors.New("json nesting exceeds stack limit")

// Kind identifies the type of an event
type Kind int

const (
	ObjectStart Kind = iota
	ObjectEnd
	ArrayStart
	ArrayEnd
	String
	Number
	True
	False
	Null
)

func (k Kind) String() string {
	switch k {
	case ObjectStart:
		return "object-start"
	case ObjectEnd:
		return "object-end"
	case ArrayStart:
		return "array-start"
	case ArrayEnd:
		return "array-end"
	case String:
		return "string"
	case Number:
		return "number"
	case True:
		return "true"
	case False:
		return "false"
	case Null:
		return "null"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one semantically complete token. Value holds the decoded text of
// strings and the literal text of numbers.
type Event struct {
	Kind  Kind
	Value string
}

// Status mirrors the progress of the scanner over its input
type Status int

const (
	Waiting Status = iota // no input consumed yet
	InProgress
	Done
	Failed
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case InProgress:
		return "in-progress"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handler receives every event along with the stack at the time of the event.
// The stack must not be retained after HandleEvent returns.
type Handler interface {
	HandleEvent(ev Event, stack Stack)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ev Event, stack Stack)

func (f HandlerFunc) HandleEvent(ev Event, stack Stack) { f(ev, stack) }

// SyntaxError wraps a tokenizer failure with the input offset it occurred at
type SyntaxError struct {
	Offset int64
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("json syntax error at offset %d: %v", e.Offset, e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Scanner pulls tokens from a reader and maintains the container stack
type Scanner struct {
	dec      *json.Decoder
	frames   []Frame
	maxDepth int
	status   Status

	// release is set after a value completes; the enclosing key (if any) is
	// popped before the next token so handlers still see it.
	release bool
	// topDone is set once the top-level value has been closed
	topDone bool
}

// NewScanner creates a scanner reading from r
func NewScanner(r io.Reader) *Scanner {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Scanner{
		dec:      dec,
		frames:   make([]Frame, 0, DefaultMaxDepth),
		maxDepth: DefaultMaxDepth,
	}
}

// SetMaxDepth changes the stack limit. Values below one are ignored.
func (s *Scanner) SetMaxDepth(n int) {
	if n > 0 {
		s.maxDepth = n
	}
}

// Status returns the scanner state
func (s *Scanner) Status() Status {
	return s.status
}

// Offset returns the number of input bytes consumed so far
func (s *Scanner) Offset() int64 {
	return s.dec.InputOffset()
}

// Stack returns a read-only view of the open containers
func (s *Scanner) Stack() Stack {
	return Stack{frames: s.frames}
}

// Next returns the next event. It returns io.EOF once the top-level value is
// complete and the input is exhausted, or when the input was empty.
// Any other error leaves the scanner in the Failed state; malformed and
// truncated input is reported as *SyntaxError, reader errors are returned as is.
func (s *Scanner) Next() (Event, error) {
	if s.status == Failed {
		return Event{}, errors.New("jsonstream: scanner already failed")
	}
	if s.status == Done {
		return Event{}, io.EOF
	}
	s.releaseValue()

	for {
		tok, err := s.dec.Token()
		if err != nil {
			return Event{}, s.fail(err)
		}
		if s.topDone {
			return Event{}, s.syntaxError(errors.New("unexpected value after top-level value"))
		}
		s.status = InProgress

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				return s.open(ObjectStart, Object)
			case '[':
				return s.open(ArrayStart, Array)
			case '}':
				return s.close(ObjectEnd), nil
			case ']':
				return s.close(ArrayEnd), nil
			}
		case string:
			if n := len(s.frames); n > 0 && s.frames[n-1].Kind == Object {
				if err := s.push(Frame{Kind: Key, Name: v}); err != nil {
					return Event{}, err
				}
				continue
			}
			return s.scalar(Event{Kind: String, Value: v}), nil
		case json.Number:
			return s.scalar(Event{Kind: Number, Value: v.String()}), nil
		case bool:
			if v {
				return s.scalar(Event{Kind: True}), nil
			}
			return s.scalar(Event{Kind: False}), nil
		case nil:
			return s.scalar(Event{Kind: Null}), nil
		}
		return Event{}, s.syntaxError(fmt.Errorf("unexpected token %v", tok))
	}
}

// Stream feeds every event from r to h until the document ends or fails
func Stream(r io.Reader, h Handler) error {
	s := NewScanner(r)
	for {
		ev, err := s.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		h.HandleEvent(ev, s.Stack())
	}
}

func (s *Scanner) open(kind Kind, container FrameKind) (Event, error) {
	if err := s.push(Frame{Kind: container}); err != nil {
		return Event{}, err
	}
	return Event{Kind: kind}, nil
}

// close pops the finished container. The event is reported with the stack
// as it is after the pop.
func (s *Scanner) close(kind Kind) Event {
	s.frames = s.frames[:len(s.frames)-1]
	s.release = true
	return Event{Kind: kind}
}

func (s *Scanner) scalar(ev Event) Event {
	s.release = true
	return ev
}

func (s *Scanner) releaseValue() {
	if !s.release {
		return
	}
	s.release = false
	if n := len(s.frames); n > 0 && s.frames[n-1].Kind == Key {
		s.frames = s.frames[:n-1]
	}
	if len(s.frames) == 0 {
		s.topDone = true
	}
}

func (s *Scanner) push(f Frame) error {
	if len(s.frames) >= s.maxDepth {
		return s.syntaxError(ErrTooDeep)
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *Scanner) fail(err error) error {
	if errors.Is(err, io.EOF) {
		switch {
		case s.topDone:
			s.status = Done
			return io.EOF
		case s.status == Waiting:
			return io.EOF
		default:
			return s.syntaxError(io.ErrUnexpectedEOF)
		}
	}

	var se *json.SyntaxError
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.As(err, &se) {
		return s.syntaxError(err)
	}
	s.status = Failed
	return err
}

func (s *Scanner) syntaxError(err error) error {
	s.status = Failed
	return &SyntaxError{Offset: s.dec.InputOffset(), Err: err}
}
