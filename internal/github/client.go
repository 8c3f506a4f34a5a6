package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// APIVersion is the REST API version requested from GitHub
	APIVersion = "2022-11-28"

	mediaType = "application/vnd.github+json"

	defaultTimeout   = 30 * time.Second
	defaultRateLimit = rate.Limit(2)
	defaultBurst     = 4
	defaultPerPage   = 30
)

// Client streams release listings from the GitHub REST API
type Client struct {
	gh      *gh.Client
	Owner   string
	Repo    string
	perPage int
	log     logrus.FieldLogger
}

type settings struct {
	baseURL string
	timeout time.Duration
	limit   rate.Limit
	burst   int
	perPage int
	log     logrus.FieldLogger
}

// Option customises a Client
type Option func(*settings)

// WithBaseURL points the client at a GitHub Enterprise or test server
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithTimeout sets the overall timeout of each request
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithRateLimit paces outgoing requests. A zero limit disables pacing.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *settings) {
		s.limit = limit
		s.burst = burst
	}
}

// WithPerPage sets the page size requested when listing releases
func WithPerPage(n int) Option {
	return func(s *settings) { s.perPage = n }
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *settings) { s.log = log }
}

// NewClient creates a new GitHub API client. An empty token makes
// unauthenticated requests.
func NewClient(token, owner, repo string, opts ...Option) (*Client, error) {
	s := settings{
		timeout: defaultTimeout,
		limit:   defaultRateLimit,
		burst:   defaultBurst,
		perPage: defaultPerPage,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	base := &http.Client{
		Timeout:   s.timeout,
		Transport: newPacedTransport(http.DefaultTransport, s.limit, s.burst),
	}

	httpClient := base
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = s.timeout
	}

	client := gh.NewClient(httpClient)
	if s.baseURL != "" {
		u, err := url.Parse(s.baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", s.baseURL, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}

	return &Client{
		gh:      client,
		Owner:   owner,
		Repo:    repo,
		perPage: s.perPage,
		log:     s.log,
	}, nil
}

// ReleasesPath returns the API path listing the repository's releases, or
// the latest release when latest is set
func (c *Client) ReleasesPath(latest bool) string {
	path := fmt.Sprintf("repos/%s/%s/releases", url.PathEscape(c.Owner), url.PathEscape(c.Repo))
	if latest {
		return path + "/latest"
	}
	if c.perPage > 0 {
		path += fmt.Sprintf("?per_page=%d", c.perPage)
	}
	return path
}

// OpenReleases requests the release listing and returns the undecoded
// response body. The caller must close it.
func (c *Client) OpenReleases(ctx context.Context, latest bool) (io.ReadCloser, error) {
	path := c.ReleasesPath(latest)

	req, err := c.gh.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build releases request: %w", err)
	}
	req.Header.Set("Accept", mediaType)
	req.Header.Set("X-GitHub-Api-Version", APIVersion)

	c.log.WithFields(logrus.Fields{
		"url":    req.URL.String(),
		"latest": latest,
	}).Debug("Requesting releases")

	resp, err := c.gh.BareDo(ctx, req)
	if err != nil {
		if latest && IsNotFound(err) {
			return nil, fmt.Errorf("no published release in %s/%s: %w", c.Owner, c.Repo, err)
		}
		return nil, fmt.Errorf("failed to get releases: %w", err)
	}

	c.log.WithFields(logrus.Fields{
		"status":         resp.StatusCode,
		"rate_remaining": resp.Rate.Remaining,
		"rate_limit":     resp.Rate.Limit,
		"content_length": resp.ContentLength,
	}).Debug("Releases response received")

	return resp.Body, nil
}

// IsRateLimit reports whether err was caused by GitHub API rate limiting
func IsRateLimit(err error) bool {
	var rle *gh.RateLimitError
	var arle *gh.AbuseRateLimitError
	return errors.As(err, &rle) || errors.As(err, &arle)
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	var er *gh.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound
}

// pacedTransport waits on a token bucket before each request
type pacedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func newPacedTransport(base http.RoundTripper, limit rate.Limit, burst int) http.RoundTripper {
	if limit <= 0 {
		return base
	}
	if burst < 1 {
		burst = 1
	}
	return &pacedTransport{base: base, limiter: rate.NewLimiter(limit, burst)}
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("request pacing: %w", err)
	}
	return t.base.RoundTrip(req)
}
