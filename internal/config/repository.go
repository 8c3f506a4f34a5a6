package config

import (
	"fmt"
	"strings"
)

// Repository identifies the GitHub repository releases are selected from
type Repository struct {
	Owner string // GitHub owner (e.g., "acme")
	Repo  string // GitHub repo (e.g., "widget-firmware")
}

// ParseRepositoryString parses "owner/repo" format or URL
func ParseRepositoryString(repoStr string) (*Repository, error) {
	repoStr = strings.TrimSpace(repoStr)

	// Check if it's a GitHub URL
	if strings.Contains(repoStr, "github.com") {
		// https://github.com/owner/repo -> owner/repo
		parts := strings.Split(repoStr, "github.com/")
		if len(parts) == 2 {
			repoStr = strings.TrimSuffix(parts[1], "/")
			repoStr = strings.Split(repoStr, "/releases")[0]
			repoStr = strings.Split(repoStr, "/tags")[0]
			repoStr = strings.TrimSuffix(repoStr, ".git")
		}
	}

	parts := strings.Split(repoStr, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid repository format: %s (expected: owner/repo or GitHub URL)", repoStr)
	}

	return &Repository{
		Owner: parts[0],
		Repo:  parts[1],
	}, nil
}

// FullName returns the full repository name (owner/repo)
func (r *Repository) FullName() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Repo)
}
