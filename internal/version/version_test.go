package version

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain", input: "1.2.3", want: "1.2.3"},
		{name: "v prefix", input: "v2.3.0", want: "2.3.0"},
		{name: "prerelease and build", input: "v1.0.0-rc.1+build.5", want: "1.0.0-rc.1+build.5"},
		{name: "only one v stripped", input: "vv1.0.0", wantErr: true},
		{name: "missing patch", input: "1.2", wantErr: true},
		{name: "non numeric", input: "1.x.0", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "not a version", input: "nightly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.wantErr {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("expected *ParseError, got %v", err)
				}
				if pe.Input != tt.input {
					t.Errorf("ParseError.Input = %q, want %q", pe.Input, tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v.String() != tt.want {
				t.Errorf("Parse(%q) = %s, want %s", tt.input, v, tt.want)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.2.0", "1.1.9", 1},
		{"1.0.0-alpha", "1.0.0", -1},
		{"2.0.0", "1.9.9", 1},
		{"v2.3.0", "2.2.0", 1},
		{"v2.1.0", "2.2.0", -1},
		{"1.0.0", "v1.0.0", 0},
		{"1.0.0+build.1", "1.0.0+build.2", 0},
		{"1.0.0-alpha.1", "1.0.0-alpha.beta", -1},
		{"1.0.0-alpha.2", "1.0.0-alpha.10", -1},
		{"1.0.0-beta.11", "1.0.0-rc.1", -1},
		{"1.10.0", "1.9.0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		baseline  string
		want      bool
		wantErr   bool
	}{
		{name: "newer", candidate: "v2.3.0", baseline: "2.2.0", want: true},
		{name: "older", candidate: "v2.1.0", baseline: "2.2.0", want: false},
		{name: "equal is not newer", candidate: "2.2.0", baseline: "v2.2.0", want: false},
		{name: "release beats its prerelease", candidate: "1.0.0", baseline: "1.0.0-rc.1", want: true},
		{name: "bad candidate", candidate: "latest", baseline: "1.0.0", wantErr: true},
		{name: "bad baseline", candidate: "1.0.0", baseline: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsNewer(tt.candidate, tt.baseline)
			if (err != nil) != tt.wantErr {
				t.Fatalf("IsNewer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsNewer(%q, %q) = %v, want %v", tt.candidate, tt.baseline, got, tt.want)
			}
		})
	}
}
