package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	colour "github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nickromney-org/ota-release-selector/internal/config"
	"github.com/nickromney-org/ota-release-selector/internal/github"
	"github.com/nickromney-org/ota-release-selector/internal/selector"
	"github.com/nickromney-org/ota-release-selector/internal/source"
	"github.com/nickromney-org/ota-release-selector/pkg/logger"
	"github.com/nickromney-org/ota-release-selector/pkg/ota"
)

var (
	configPath     string
	repository     string
	apiURL         string
	githubToken    string
	filename       string
	currentVersion string
	releaseID      int64
	newerOnly      bool
	latestOnly     bool
	prerelease     bool
	capacity       int
	fromFile       string
	demo           bool
	logLevel       string
	logFormat      string

	jsonOutput   bool
	outputFormat string
	ciOutput     bool
	quiet        bool

	// Version information (set via SetVersionInfo from main)
	appVersion = "dev"
	buildTime  = "unknown"
	gitCommit  = "unknown"

	// Colours for output
	green  = colour.New(colour.FgGreen, colour.Bold)
	yellow = colour.New(colour.FgYellow, colour.Bold)
	red    = colour.New(colour.FgRed, colour.Bold)
	cyan   = colour.New(colour.FgCyan)
	grey   = colour.New(colour.FgHiBlack) // Faint grey for timestamps
	bold   = colour.New(colour.Bold)
)

// SetVersionInfo sets the version information from the main package
func SetVersionInfo(version, build, commit string) {
	appVersion = version
	buildTime = build
	gitCommit = commit
	rootCmd.Version = version
}

var rootCmd = &cobra.Command{
	Use:   "ota",
	Short: "Select firmware releases from GitHub",
	Long: `Select the GitHub releases of a repository that carry a given firmware
asset, filtered by prerelease flag, version and release id.

The release listing is streamed and never held in memory as a whole, so the
same selection logic runs on small devices and in CI pipelines.`,
	Example: `  # List stable releases of acme/widget-firmware carrying firmware.bin
  ota -r acme/widget-firmware -f firmware.bin

  # Only releases newer than the installed version
  ota -r acme/widget-firmware -c v1.2.0 --newer

  # Check only the latest release, as JSON
  ota -r acme/widget-firmware --latest --json

  # Replay a saved API response
  ota --from-file releases.json -f firmware.bin`,
	RunE: runList,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ./ota.yaml or $HOME/.config/ota/ota.yaml)")
	pf.StringVarP(&repository, "repo", "r", "", "GitHub repository (owner/repo or URL)")
	pf.StringVar(&apiURL, "api-url", "", "GitHub API base URL (for GitHub Enterprise)")
	pf.StringVarP(&githubToken, "token", "t", os.Getenv("GITHUB_TOKEN"), "GitHub token (or GITHUB_TOKEN env var)")
	pf.StringVarP(&filename, "filename", "f", "", "asset filename to select (default firmware.bin)")
	pf.StringVarP(&currentVersion, "current", "c", "", "currently installed version (e.g., v1.2.0)")
	pf.Int64Var(&releaseID, "release-id", 0, "only select the release with this id")
	pf.BoolVarP(&newerOnly, "newer", "n", false, "only select releases newer than --current")
	pf.BoolVarP(&latestOnly, "latest", "l", false, "only consider the latest release")
	pf.BoolVarP(&prerelease, "prerelease", "p", false, "select prereleases instead of stable releases")
	pf.IntVar(&capacity, "capacity", 0, "maximum number of releases to select (default 10)")
	pf.StringVar(&fromFile, "from-file", "", "read the release listing from a saved API response")
	pf.BoolVar(&demo, "demo", false, "use the bundled demo release listing")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "log format (text, json)")

	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (table, json, yaml)")
	rootCmd.Flags().BoolVar(&ciOutput, "ci", false, "format output for CI/GitHub Actions")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the selected tags")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the config file and environment, then applies the flags
// given on the command line
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("repo") {
		cfg.Repository = repository
	}
	if flags.Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if flags.Changed("token") || cfg.Token == "" {
		cfg.Token = githubToken
	}
	if flags.Changed("filename") {
		cfg.Filename = filename
	}
	if flags.Changed("current") {
		cfg.CurrentVersion = currentVersion
	}
	if flags.Changed("release-id") {
		cfg.ReleaseID = releaseID
	}
	if flags.Changed("newer") {
		cfg.Newer = newerOnly
	}
	if flags.Changed("latest") {
		cfg.Latest = latestOnly
	}
	if flags.Changed("prerelease") {
		cfg.Prerelease = prerelease
	}
	if flags.Changed("capacity") {
		cfg.Capacity = capacity
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = logFormat
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newSource picks where the release listing comes from: a saved file, the
// bundled demo listing, or the GitHub API
func newSource(cfg *config.Config) (ota.Source, string, error) {
	switch {
	case fromFile != "":
		return source.NewFile(fromFile), fromFile, nil
	case demo:
		return source.Bundled{}, "demo", nil
	}

	if cfg.Repository == "" {
		return nil, "", errors.New("no repository given (use --repo, --from-file or --demo)")
	}
	repo, err := config.ParseRepositoryString(cfg.Repository)
	if err != nil {
		return nil, "", err
	}

	opts := []github.Option{github.WithLogger(logger.Module("github"))}
	if cfg.APIURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.APIURL))
	}
	client, err := github.NewClient(detectGitHubToken(cfg.Token), repo.Owner, repo.Repo, opts...)
	if err != nil {
		return nil, "", err
	}
	return client, repo.FullName(), nil
}

// detectGitHubToken attempts to find a GitHub token from multiple sources
func detectGitHubToken(providedToken string) string {
	// 1. Use explicitly provided token (flag, config file, OTA_TOKEN or GITHUB_TOKEN)
	if providedToken != "" {
		return providedToken
	}

	// 2. Try to get token from GitHub CLI
	ghToken, err := getGitHubCLIToken()
	if err == nil && ghToken != "" {
		return ghToken
	}

	// 3. No token found - will use unauthenticated requests
	return ""
}

// getGitHubCLIToken attempts to retrieve a token from the GitHub CLI
func getGitHubCLIToken() (string, error) {
	cmd := exec.Command("gh", "auth", "token")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", fmt.Errorf("gh auth token returned empty")
	}

	return token, nil
}

func runList(cmd *cobra.Command, args []string) error {
	// Disable automatic usage printing on error
	cmd.SilenceUsage = true

	format, err := resolveFormat()
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	src, origin, err := newSource(cfg)
	if err != nil {
		return err
	}

	updater := ota.New(src, cfg.Selection())
	releases, err := updater.Releases(cmd.Context())

	report := newReport(origin, cfg, releases, err)
	if err != nil && len(releases) == 0 {
		printFetchError(cmd.ErrOrStderr(), err)
		return err
	}

	out := cmd.OutOrStdout()
	switch {
	case ciOutput:
		if werr := outputCI(out, report); werr != nil {
			return werr
		}
	case format == "json":
		if werr := outputJSON(out, report); werr != nil {
			return werr
		}
	case format == "yaml":
		if werr := outputYAML(out, report); werr != nil {
			return werr
		}
	default:
		outputTerminal(out, report)
	}

	if err != nil {
		printFetchError(cmd.ErrOrStderr(), err)
	}
	return err
}

func resolveFormat() (string, error) {
	if jsonOutput {
		return "json", nil
	}
	switch f := strings.ToLower(outputFormat); f {
	case "", "table":
		return "table", nil
	case "json", "yaml":
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected table, json or yaml)", outputFormat)
	}
}

// printFetchError explains common failures before cobra prints the error
func printFetchError(w io.Writer, err error) {
	var pe *selector.ParseError
	var se *selector.StreamError

	switch {
	case github.IsRateLimit(err):
		red.Fprintf(w, "\n❌ Error: Unable to fetch release information from GitHub API\n\n")
		yellow.Fprintln(w, "⚠️  GitHub API Rate Limit Exceeded")
		yellow.Fprintln(w)
		yellow.Fprintln(w, "   Unauthenticated requests are limited to 60 per hour.")
		yellow.Fprintln(w, "   Authenticated requests get 5,000 per hour.")
		yellow.Fprintln(w)
		yellow.Fprintln(w, "💡 Authentication options (auto-detected in order):")
		yellow.Fprintln(w, "   1. Use the -t flag: ota -t YOUR_TOKEN")
		yellow.Fprintln(w, "   2. Set OTA_TOKEN or GITHUB_TOKEN environment variable")
		yellow.Fprintln(w, "   3. GitHub CLI: gh auth login (automatically detected)")
		yellow.Fprintln(w, "   4. GitHub Actions: GITHUB_TOKEN is auto-available")
	case github.IsNotFound(err):
		red.Fprintf(w, "\n❌ Error: Repository or release not found\n\n")
		yellow.Fprintln(w, "ℹ️  Check the --repo value, and that the repository has a published release.")
		yellow.Fprintln(w, "   Private repositories need a token with read access.")
	case errors.As(err, &pe):
		red.Fprintf(w, "\n❌ Error: Release listing is malformed at byte %d\n", pe.Offset)
		if len(pe.Releases) > 0 {
			yellow.Fprintf(w, "   %d release(s) selected before the error are shown above.\n", len(pe.Releases))
		}
	case errors.As(err, &se):
		if errors.Is(err, context.Canceled) {
			yellow.Fprintln(w, "\nInterrupted.")
			return
		}
		red.Fprintf(w, "\n❌ Error: Release listing could not be read completely\n")
		if len(se.Releases) > 0 {
			yellow.Fprintf(w, "   %d release(s) selected before the error are shown above.\n", len(se.Releases))
		}
	}
}
