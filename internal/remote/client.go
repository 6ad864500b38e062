// Package remote is a typed client for the Codacy v3 REST API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public Codacy API endpoint.
const DefaultBaseURL = "https://app.codacy.com/api/v3"

// ErrUnauthenticated is returned when no API token is configured.
var ErrUnauthenticated = errors.New("remote: no api token")

// Repo addresses a repository on the platform.
type Repo struct {
	Provider     string
	Organization string
	Name         string
}

func (r Repo) String() string {
	return r.Provider + "/" + r.Organization + "/" + r.Name
}

// API is the subset of the Codacy API the tracker consumes.
type API interface {
	Repository(ctx context.Context, repo Repo) (Repository, error)
	RepositoryAnalysis(ctx context.Context, repo Repo) (RepositoryAnalysis, error)
	Branches(ctx context.Context, repo Repo) ([]Branch, error)
	PullRequests(ctx context.Context, repo Repo) ([]PullRequestAnalysis, error)
	PullRequest(ctx context.Context, repo Repo, number int) (PullRequestAnalysis, error)
	PullRequestIssues(ctx context.Context, repo Repo, number int) ([]PullRequestIssue, error)
	PullRequestFiles(ctx context.Context, repo Repo, number int, cursor string) (Page[PullRequestFile], error)
	PullRequestCoverage(ctx context.Context, repo Repo, number int) (Coverage, error)
	QualityGates(ctx context.Context, repo Repo) (QualityGates, error)
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote: %s: unexpected status %d: %s", e.Path, e.Status, e.Body)
}

// NotFound reports whether err is a 404 from the API.
func NotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Unauthorized reports whether err means the token was missing or rejected.
func Unauthorized(err error) bool {
	if errors.Is(err, ErrUnauthenticated) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

// Client calls the API over HTTP.
type Client struct {
	http    *http.Client
	baseURL string
	token   func() string
}

// New creates a client. token is read on every request so a refreshed
// credential takes effect without rebuilding the client.
func New(baseURL string, token func() string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	token := c.token()
	if token == "" {
		return ErrUnauthenticated
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-token", token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Status: resp.StatusCode, Path: path, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: %s: decode: %w", path, err)
	}
	return nil
}

func getData[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var env envelope[T]
	if err := c.get(ctx, path, query, &env); err != nil {
		var zero T
		return zero, err
	}
	return env.Data, nil
}

func repoPath(prefix string, repo Repo) string {
	return prefix + "/organizations/" + url.PathEscape(repo.Provider) +
		"/" + url.PathEscape(repo.Organization) +
		"/repositories/" + url.PathEscape(repo.Name)
}

func prPath(prefix string, repo Repo, number int) string {
	return repoPath(prefix, repo) + "/pull-requests/" + strconv.Itoa(number)
}

func (c *Client) Repository(ctx context.Context, repo Repo) (Repository, error) {
	return getData[Repository](ctx, c, repoPath("", repo), nil)
}

func (c *Client) RepositoryAnalysis(ctx context.Context, repo Repo) (RepositoryAnalysis, error) {
	return getData[RepositoryAnalysis](ctx, c, repoPath("/analysis", repo), nil)
}

func (c *Client) Branches(ctx context.Context, repo Repo) ([]Branch, error) {
	return getData[[]Branch](ctx, c, repoPath("", repo)+"/branches", nil)
}

func (c *Client) PullRequests(ctx context.Context, repo Repo) ([]PullRequestAnalysis, error) {
	q := url.Values{"limit": {"100"}}
	return getData[[]PullRequestAnalysis](ctx, c, repoPath("/analysis", repo)+"/pull-requests", q)
}

func (c *Client) PullRequest(ctx context.Context, repo Repo, number int) (PullRequestAnalysis, error) {
	var out PullRequestAnalysis
	err := c.get(ctx, prPath("/analysis", repo, number), nil, &out)
	return out, err
}

func (c *Client) PullRequestIssues(ctx context.Context, repo Repo, number int) ([]PullRequestIssue, error) {
	q := url.Values{"status": {"all"}, "onlyPotential": {"false"}, "limit": {"1000"}}
	return getData[[]PullRequestIssue](ctx, c, prPath("/analysis", repo, number)+"/issues", q)
}

func (c *Client) PullRequestFiles(ctx context.Context, repo Repo, number int, cursor string) (Page[PullRequestFile], error) {
	q := url.Values{"limit": {"100"}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page Page[PullRequestFile]
	err := c.get(ctx, prPath("/analysis", repo, number)+"/files", q, &page)
	return page, err
}

func (c *Client) PullRequestCoverage(ctx context.Context, repo Repo, number int) (Coverage, error) {
	return getData[Coverage](ctx, c, prPath("/coverage", repo, number), nil)
}

func (c *Client) QualityGates(ctx context.Context, repo Repo) (QualityGates, error) {
	var out struct {
		QualityGate QualityGates `json:"qualityGate"`
	}
	err := c.get(ctx, repoPath("", repo)+"/settings/quality/pull-requests", nil, &out)
	return out.QualityGate, err
}
