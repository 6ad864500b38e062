package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testRepo = Repo{Provider: "gh", Organization: "acme", Name: "widgets"}

func newTestClient(t *testing.T, token string, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, func() string { return token }, time.Second)
}

func TestRepositorySendsTokenAndUnwrapsData(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/gh/acme/repositories/widgets", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-token"))
		w.Write([]byte(`{"data":{"name":"widgets","defaultBranch":{"name":"main","isDefault":true}}}`))
	})

	repo, err := c.Repository(context.Background(), testRepo)
	require.NoError(t, err)
	assert.Equal(t, "widgets", repo.Name)
	assert.Equal(t, "main", repo.DefaultBranchName())
}

func TestPullRequestsAndDetail(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/analysis/organizations/gh/acme/repositories/widgets/pull-requests":
			w.Write([]byte(`{"data":[{"pullRequest":{"number":7,"originBranch":"feature","headCommitSha":"abc"},"isAnalysing":true}]}`))
		case "/analysis/organizations/gh/acme/repositories/widgets/pull-requests/7":
			w.Write([]byte(`{"pullRequest":{"number":7,"title":"Add"},"isUpToStandards":true,"newIssues":2}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	prs, err := c.PullRequests(ctx, testRepo)
	require.NoError(t, err)
	require.Len(t, prs, 1)
	assert.Equal(t, "feature", prs[0].PullRequest.OriginBranch)
	assert.Equal(t, "abc", prs[0].PullRequest.HeadCommitSHA)
	assert.True(t, prs[0].IsAnalysing)

	pr, err := c.PullRequest(ctx, testRepo, 7)
	require.NoError(t, err)
	assert.Equal(t, "Add", pr.PullRequest.Title)
	require.NotNil(t, pr.IsUpToStandards)
	assert.True(t, *pr.IsUpToStandards)
	require.NotNil(t, pr.NewIssues)
	assert.Equal(t, 2, *pr.NewIssues)
}

func TestPullRequestFilesPaginates(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			w.Write([]byte(`{"data":[{"file":{"path":"a.go"}}],"pagination":{"cursor":"next","limit":1}}`))
			return
		}
		assert.Equal(t, "next", r.URL.Query().Get("cursor"))
		w.Write([]byte(`{"data":[{"file":{"path":"b.go"}}]}`))
	})
	ctx := context.Background()

	first, err := c.PullRequestFiles(ctx, testRepo, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "a.go", first.Data[0].Path())
	assert.Equal(t, "next", first.NextCursor())

	second, err := c.PullRequestFiles(ctx, testRepo, 1, first.NextCursor())
	require.NoError(t, err)
	assert.Equal(t, "b.go", second.Data[0].Path())
	assert.Empty(t, second.NextCursor())
}

func TestQualityGatesUnwrapsGate(t *testing.T) {
	c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/gh/acme/repositories/widgets/settings/quality/pull-requests", r.URL.Path)
		w.Write([]byte(`{"qualityGate":{"issueThreshold":{"threshold":0,"minimumSeverity":"Warning"}}}`))
	})

	gates, err := c.QualityGates(context.Background(), testRepo)
	require.NoError(t, err)
	require.NotNil(t, gates.IssueThreshold)
	assert.Equal(t, "Warning", gates.IssueThreshold.MinimumSeverity)
}

func TestErrors(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		})
		_, err := c.Repository(context.Background(), testRepo)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, "nope", apiErr.Body)
		assert.True(t, NotFound(err))
		assert.False(t, Unauthorized(err))
	})

	t.Run("rejected token", func(t *testing.T) {
		c := newTestClient(t, "secret", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := c.Branches(context.Background(), testRepo)
		assert.True(t, Unauthorized(err))
	})

	t.Run("no token", func(t *testing.T) {
		called := false
		c := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
			called = true
		})
		_, err := c.Repository(context.Background(), testRepo)
		require.ErrorIs(t, err, ErrUnauthenticated)
		assert.True(t, Unauthorized(err))
		assert.False(t, called)
	})
}
