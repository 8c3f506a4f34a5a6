package cmd

import (
	"fmt"
	"time"
)

// formatUKDate formats a date in UK format: "25 Jul 2024"
func formatUKDate(t time.Time) string {
	return t.Format("2 Jan 2006")
}

// formatCreatedAt formats a GitHub timestamp as a UK date. Values that are
// not RFC 3339 (including truncated ones) are shown as they are.
func formatCreatedAt(s string) string {
	if s == "" {
		return "-"
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return formatUKDate(t)
}

// releaseAge describes how long ago a release was created, relative to now
func releaseAge(createdAt string, now time.Time) string {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return ""
	}
	return formatDaysAgo(int(now.Sub(t).Hours() / 24))
}

// formatDaysAgo returns a human-readable string for days
func formatDaysAgo(days int) string {
	if days < 0 {
		return "in " + formatDaysInFuture(-days)
	}
	if days == 0 {
		return "today"
	}
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}

// formatDaysInFuture returns a human-readable string for future days
func formatDaysInFuture(days int) string {
	if days == 0 {
		return "today"
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
