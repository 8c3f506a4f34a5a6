// Command capture-releases saves a repository's raw release listing and
// latest release so they can be replayed with ota --from-file.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/nickromney-org/ota-release-selector/internal/config"
	"github.com/nickromney-org/ota-release-selector/internal/github"
)

func main() {
	token := flag.String("token", os.Getenv("GITHUB_TOKEN"), "GitHub token")
	outDir := flag.String("out", ".", "Directory to write releases.json and latest.json to")
	repo := flag.String("repo", "", "Repository to capture (e.g., 'acme/widget-firmware')")
	perPage := flag.Int("per-page", 30, "Releases per page (max 100)")
	flag.Parse()

	if *repo == "" {
		fmt.Fprintln(os.Stderr, "Error: -repo is required")
		os.Exit(1)
	}

	// Parse repository
	repoConfig, err := config.ParseRepositoryString(*repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid repository %q: %v\n", *repo, err)
		os.Exit(1)
	}

	client, err := github.NewClient(*token, repoConfig.Owner, repoConfig.Repo, github.WithPerPage(*perPage))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("Capturing releases of %s via GitHub API...\n", repoConfig.FullName())

	for _, target := range []struct {
		name   string
		latest bool
	}{
		{name: "releases.json", latest: false},
		{name: "latest.json", latest: true},
	} {
		path := filepath.Join(*outDir, target.name)
		n, err := capture(ctx, client, target.latest, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error capturing %s: %v\n", target.name, err)
			os.Exit(1)
		}
		fmt.Printf("✅ Wrote %d bytes to %s\n", n, path)
	}
}

// capture copies one response body to path unchanged
func capture(ctx context.Context, client *github.Client, latest bool, path string) (int64, error) {
	body, err := client.OpenReleases(ctx, latest)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating file: %w", err)
	}

	n, err := io.Copy(file, body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return n, err
}
