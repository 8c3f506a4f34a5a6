package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nickromney-org/ota-release-selector/internal/config"
	"github.com/nickromney-org/ota-release-selector/pkg/types"
)

// report is the result of a listing as printed by every output format
type report struct {
	Source     string          `json:"source" yaml:"source"`
	Filename   string          `json:"filename" yaml:"filename"`
	Prerelease bool            `json:"prerelease" yaml:"prerelease"`
	NewerThan  string          `json:"newer_than,omitempty" yaml:"newer_than,omitempty"`
	ReleaseID  int64           `json:"release_id,omitempty" yaml:"release_id,omitempty"`
	Latest     bool            `json:"latest_only" yaml:"latest_only"`
	Count      int             `json:"count" yaml:"count"`
	Releases   []types.Release `json:"releases" yaml:"releases"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	CheckedAt  time.Time       `json:"checked_at" yaml:"checked_at"`
}

func newReport(origin string, cfg *config.Config, releases []types.Release, err error) *report {
	sel := cfg.Selection()
	r := &report{
		Source:     origin,
		Filename:   sel.TargetFilename,
		Prerelease: sel.Prerelease,
		NewerThan:  sel.NewerThan,
		ReleaseID:  sel.ReleaseID,
		Latest:     sel.LatestOnly,
		Count:      len(releases),
		Releases:   releases,
		CheckedAt:  time.Now(),
	}
	if r.Releases == nil {
		r.Releases = []types.Release{}
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func outputJSON(w io.Writer, r *report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func outputYAML(w io.Writer, r *report) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(r); err != nil {
		return err
	}
	return encoder.Close()
}

func outputCI(w io.Writer, r *report) error {
	// Newest selected tag first (for script compatibility)
	if len(r.Releases) > 0 {
		fmt.Fprintln(w, r.Releases[0].TagName)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "::group::📦 Firmware Release Selection")
	fmt.Fprintf(w, "Source: %s\n", r.Source)
	fmt.Fprintf(w, "Asset: %s\n", r.Filename)
	if r.NewerThan != "" {
		fmt.Fprintf(w, "Newer than: %s\n", r.NewerThan)
	}
	fmt.Fprintf(w, "Selected: %d\n", r.Count)
	fmt.Fprintln(w, "::endgroup::")
	fmt.Fprintln(w)

	switch {
	case r.Error != "":
		fmt.Fprintf(w, "::error title=Release Selection Failed::%s\n", escapeWorkflowData(r.Error))
	case r.Count == 0:
		fmt.Fprintf(w, "::notice title=No Release Selected::No release carries %s%s\n", r.Filename, newerSuffix(r))
	default:
		fmt.Fprintf(w, "::notice title=Release Available::%s carries %s\n", r.Releases[0].TagName, r.Filename)
	}
	for _, rel := range r.Releases {
		if rel.IsTruncated() {
			fmt.Fprintf(w, "::warning title=Truncated Release Fields::%s: %s\n", rel.TagName, strings.Join(rel.Truncated, ", "))
		}
	}

	if summaryFile := os.Getenv("GITHUB_STEP_SUMMARY"); summaryFile != "" {
		if err := writeGitHubSummary(summaryFile, r); err != nil {
			return fmt.Errorf("failed to write GitHub summary: %w", err)
		}
	}
	return nil
}

// escapeWorkflowData escapes a message for a workflow command
func escapeWorkflowData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	return strings.ReplaceAll(s, "\n", "%0A")
}

func newerSuffix(r *report) string {
	if r.NewerThan == "" {
		return ""
	}
	return " newer than " + r.NewerThan
}

func writeGitHubSummary(summaryFile string, r *report) error {
	f, err := os.OpenFile(summaryFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	icon := "✅"
	switch {
	case r.Error != "":
		icon = "❌"
	case r.Count == 0:
		icon = "ℹ️"
	}
	fmt.Fprintf(f, "## %s Firmware Releases: %s\n\n", icon, r.Source)

	if r.Count == 0 {
		fmt.Fprintf(f, "No release carries `%s`%s.\n", r.Filename, newerSuffix(r))
	} else {
		fmt.Fprintf(f, "| Tag | Name | Created | Download |\n")
		fmt.Fprintf(f, "|-----|------|---------|----------|\n")
		for _, rel := range r.Releases {
			fmt.Fprintf(f, "| %s | %s | %s | [%s](%s) |\n",
				rel.TagName, rel.Name, formatCreatedAt(rel.CreatedAt), r.Filename, rel.DownloadURL)
		}
	}

	if r.Error != "" {
		fmt.Fprintf(f, "\n### ⚠️ Listing Incomplete\n\n%s\n", r.Error)
	}
	fmt.Fprintln(f)
	return nil
}

func outputTerminal(w io.Writer, r *report) {
	if quiet {
		for _, rel := range r.Releases {
			fmt.Fprintln(w, rel.TagName)
		}
		return
	}

	if r.Count == 0 {
		if r.Error == "" {
			green.Fprintf(w, "✅ No release carries %s%s\n", r.Filename, newerSuffix(r))
		}
		return
	}

	kind := "stable"
	if r.Prerelease {
		kind = "prerelease"
	}
	bold.Fprintf(w, "%d %s release(s) carrying %s in %s\n\n", r.Count, kind, r.Filename, r.Source)
	printReleaseTable(w, r.Releases)

	fmt.Fprintln(w)
	if age := releaseAge(r.Releases[0].CreatedAt, r.CheckedAt); age != "" {
		grey.Fprintf(w, "Newest release created %s\n", age)
	}
	grey.Fprintf(w, "Checked at %s\n", r.CheckedAt.Format("2 Jan 2006 15:04:05 MST"))
}

func printReleaseTable(w io.Writer, releases []types.Release) {
	tagWidth := len("Tag")
	nameWidth := len("Name")
	for _, rel := range releases {
		tagWidth = max(tagWidth, len(rel.TagName))
		nameWidth = max(nameWidth, len(rel.Name))
	}

	fmt.Fprintf(w, "%-*s  %-*s  %-11s  %s\n", tagWidth, "Tag", nameWidth, "Name", "Created", "Download")
	fmt.Fprintf(w, "%s  %s  %s  %s\n",
		strings.Repeat("─", tagWidth), strings.Repeat("─", nameWidth), strings.Repeat("─", 11), strings.Repeat("─", 8))

	for i, rel := range releases {
		tag := fmt.Sprintf("%-*s", tagWidth, rel.TagName)
		if i == 0 {
			green.Fprint(w, tag)
		} else {
			fmt.Fprint(w, tag)
		}
		fmt.Fprintf(w, "  %-*s  %-11s  ", nameWidth, rel.Name, formatCreatedAt(rel.CreatedAt))
		cyan.Fprintln(w, rel.DownloadURL)
		if rel.IsTruncated() {
			yellow.Fprintf(w, "%*s  ⚠️  truncated: %s\n", tagWidth, "", strings.Join(rel.Truncated, ", "))
		}
	}
}
