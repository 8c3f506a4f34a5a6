package jsonstream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type recorded struct {
	kind  Kind
	value string
	stack string
}

func collect(t *testing.T, input string) ([]recorded, error) {
	t.Helper()
	var got []recorded
	err := Stream(strings.NewReader(input), HandlerFunc(func(ev Event, stack Stack) {
		got = append(got, recorded{kind: ev.Kind, value: ev.Value, stack: stack.String()})
	}))
	return got, err
}

func TestStream_StackView(t *testing.T) {
	input := `[{"id": 7, "assets": [{"name": "fw.bin"}], "draft": false}]`

	got, err := collect(t, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []recorded{
		{kind: ArrayStart, stack: "array"},
		{kind: ObjectStart, stack: "array object"},
		{kind: Number, value: "7", stack: `array object "id":`},
		{kind: ArrayStart, stack: `array object "assets": array`},
		{kind: ObjectStart, stack: `array object "assets": array object`},
		{kind: String, value: "fw.bin", stack: `array object "assets": array object "name":`},
		{kind: ObjectEnd, stack: `array object "assets": array`},
		{kind: ArrayEnd, stack: `array object "assets":`},
		{kind: False, stack: `array object "draft":`},
		{kind: ObjectEnd, stack: "array"},
		{kind: ArrayEnd, stack: ""},
	}

	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStream_ScalarKinds(t *testing.T) {
	got, err := collect(t, `["a\nb", -1.5e3, true, false, null]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantKinds := []Kind{ArrayStart, String, Number, True, False, Null, ArrayEnd}
	if len(got) != len(wantKinds) {
		t.Fatalf("got %d events, want %d", len(got), len(wantKinds))
	}
	for i, k := range wantKinds {
		if got[i].kind != k {
			t.Errorf("event %d kind = %v, want %v", i, got[i].kind, k)
		}
	}
	if got[1].value != "a\nb" {
		t.Errorf("string value = %q, want unescaped", got[1].value)
	}
	if got[2].value != "-1.5e3" {
		t.Errorf("number value = %q, want literal text", got[2].value)
	}
}

func TestStream_Errors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantEvents int
	}{
		{name: "bad byte after element", input: `[{"id":1}x`, wantEvents: 4},
		{name: "truncated", input: `[{"id":1},{"id"`, wantEvents: 5},
		{name: "truncated string", input: `[{"name":"abc`, wantEvents: 2},
		{name: "trailing value", input: `[] []`, wantEvents: 2},
		{name: "invalid first byte", input: `x`, wantEvents: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, tt.input)
			var se *SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SyntaxError, got %v", err)
			}
			if len(got) != tt.wantEvents {
				t.Errorf("got %d events before failure, want %d", len(got), tt.wantEvents)
			}
		})
	}
}

func TestScanner_Status(t *testing.T) {
	s := NewScanner(strings.NewReader(" [1] "))
	if s.Status() != Waiting {
		t.Fatalf("initial status = %v, want waiting", s.Status())
	}

	for {
		_, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if s.Status() != InProgress {
			t.Errorf("status during scan = %v, want in-progress", s.Status())
		}
	}

	if s.Status() != Done {
		t.Errorf("final status = %v, want done", s.Status())
	}
}

func TestScanner_EmptyInput(t *testing.T) {
	s := NewScanner(strings.NewReader("   "))
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if s.Status() != Waiting {
		t.Errorf("status = %v, want waiting", s.Status())
	}
}

func TestScanner_MaxDepth(t *testing.T) {
	s := NewScanner(strings.NewReader(`[[[1]]]`))
	s.SetMaxDepth(2)

	var err error
	for err == nil {
		_, err = s.Next()
	}
	if !errors.Is(err, ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
	if s.Status() != Failed {
		t.Errorf("status = %v, want failed", s.Status())
	}
}

type failingReader struct {
	data string
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.data == "" {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestStream_ReaderErrorPassesThrough(t *testing.T) {
	readErr := errors.New("connection reset")
	err := Stream(&failingReader{data: `[{"id":1},`, err: readErr}, HandlerFunc(func(Event, Stack) {}))

	if !errors.Is(err, readErr) {
		t.Fatalf("expected reader error, got %v", err)
	}
	var se *SyntaxError
	if errors.As(err, &se) {
		t.Error("reader error must not be reported as a syntax error")
	}
}
