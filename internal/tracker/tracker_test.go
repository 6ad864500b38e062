package tracker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lintdeck/internal/git"
	"lintdeck/internal/model"
	"lintdeck/internal/remote"
)

func TestOpenStates(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		gitErr  error
		resolve error
		repoErr error
		want    RepositoryState
	}{
		{name: "signed out", token: "", want: NeedsAuthentication},
		{name: "not a checkout", token: "t", gitErr: errors.New("not a git repository"), want: NoGitRepository},
		{name: "no remote", token: "t", resolve: git.ErrNoRemote, want: NoGitRepository},
		{name: "unsupported remote", token: "t", resolve: errors.New("forge: unsupported remote"), want: NoRepository},
		{name: "unknown repository", token: "t", repoErr: &remote.APIError{Status: http.StatusNotFound}, want: NoRepository},
		{name: "token rejected", token: "t", repoErr: &remote.APIError{Status: http.StatusUnauthorized}, want: NeedsAuthentication},
		{name: "loaded", token: "t", want: Loaded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			api.repoErr = tt.repoErr
			g := &fakeGit{head: git.Head{Branch: "main", Commit: "c1"}, err: tt.gitErr}
			tr := New(Config{
				API: api,
				Git: g,
				Resolve: func(context.Context) (model.Identity, error) {
					return testIdentity, tt.resolve
				},
				Token:   func() string { return tt.token },
				Options: fastOptions(),
				Log:     quietLog(),
			})
			defer tr.Close()

			require.NoError(t, tr.Open(context.Background()))
			assert.Equal(t, tt.want, tr.RepositoryState())
			_, loaded := tr.Repository()
			assert.Equal(t, tt.want == Loaded, loaded)
		})
	}
}

func TestOpenPublishesLoadAndBindsPullRequest(t *testing.T) {
	api := newFakeAPI()
	api.prs = []remote.PullRequestAnalysis{pr(12, "feature-a", "c1")}
	api.files = []remote.PullRequestFile{fileNamed("a.go"), fileNamed("b.go")}
	g := &fakeGit{head: git.Head{Branch: "feature-a", Commit: "c1", Upstream: "origin/feature-a"}}
	tr := newTracker(t, api, g, fastOptions())

	var mu sync.Mutex
	var states []RepositoryState
	var loaded []string
	var updates []*PullRequest
	tr.OnRepositoryState(func(s RepositoryState) { mu.Lock(); states = append(states, s); mu.Unlock() })
	tr.OnRepositoryLoaded(func(r remote.Repository) { mu.Lock(); loaded = append(loaded, r.Name); mu.Unlock() })
	tr.OnPullRequest(func(p *PullRequest) { mu.Lock(); updates = append(updates, p); mu.Unlock() })

	require.NoError(t, tr.Open(context.Background()))

	assert.Equal(t, []RepositoryState{Loaded}, states)
	assert.Equal(t, []string{"widgets"}, loaded)
	assert.Equal(t, PullRequestLoaded, tr.PullRequestState())
	assert.Equal(t, OnPullRequestBranch, tr.BranchState())

	bound := tr.PullRequest()
	require.NotNil(t, bound)
	assert.Equal(t, 12, bound.Number)
	require.Len(t, updates, 2, "bind and first refresh")
	assert.Same(t, bound, updates[0])

	snap := bound.Snapshot()
	assert.Equal(t, "c1", snap.HeadCommit())
	assert.Len(t, snap.Issues, 1)
	assert.Len(t, snap.Files, 2)
	assert.Nil(t, snap.Coverage, "coverage failure is not fatal")
	require.NotNil(t, snap.Gates.IssueThreshold)
	assert.False(t, bound.Polling(), "head analysed, nothing to wait for")
}

func TestBranchStateOnAnalysedBranch(t *testing.T) {
	api := newFakeAPI()
	api.analysis = &remote.RepositoryAnalysis{LastAnalysedCommit: &remote.Commit{SHA: "c1"}}
	api.branches = []remote.Branch{{Name: "release", IsEnabled: true, LastCommit: "r1"}}
	g := &fakeGit{head: git.Head{Branch: "main", Commit: "c1"}}
	tr := newTracker(t, api, g, fastOptions())
	ctx := context.Background()

	require.NoError(t, tr.Open(ctx))
	assert.Equal(t, OnAnalysedBranch, tr.BranchState())
	assert.Equal(t, NoPullRequest, tr.PullRequestState())
	assert.Zero(t, api.count("list"), "default branch never looks up pull requests")

	g.set(git.Head{Branch: "main", Commit: "c2"})
	require.NoError(t, tr.HandleStateChange(ctx))
	assert.Equal(t, OnAnalysedBranchOutdated, tr.BranchState())

	g.set(git.Head{Branch: "release", Commit: "r1"})
	require.NoError(t, tr.HandleStateChange(ctx))
	assert.Equal(t, OnAnalysedBranch, tr.BranchState())

	g.set(git.Head{Branch: "scratch", Commit: "s1"})
	require.NoError(t, tr.HandleStateChange(ctx))
	assert.Equal(t, OnUnknownBranch, tr.BranchState())
}

func TestDefaultBranchFallsBackToCheckout(t *testing.T) {
	api := newFakeAPI()
	api.noDefault = true
	api.analysis = &remote.RepositoryAnalysis{LastAnalysedCommit: &remote.Commit{SHA: "t1"}}
	api.setPRs(pr(3, "trunk", "t1"))
	g := &fakeGit{head: git.Head{Branch: "trunk", Commit: "t1"}, defaultBranch: "trunk"}
	tr := newTracker(t, api, g, fastOptions())

	require.NoError(t, tr.Open(context.Background()))
	assert.Equal(t, OnAnalysedBranch, tr.BranchState())
	assert.Equal(t, NoPullRequest, tr.PullRequestState())
	assert.Zero(t, api.count("list"), "default branch never looks up pull requests")
}

func TestBranchesFailureFallsBackToEmpty(t *testing.T) {
	api := newFakeAPI()
	g := &fakeGit{head: git.Head{Branch: "release", Commit: "r1"}}
	tr := newTracker(t, api, g, Options{RetryAttempts: -1})

	require.NoError(t, tr.Open(context.Background()))
	assert.Equal(t, Loaded, tr.RepositoryState())
	assert.Equal(t, OnUnknownBranch, tr.BranchState())
}

func TestBranchChangeClearsPullRequestBeforeLookup(t *testing.T) {
	api := newFakeAPI()
	api.prs = []remote.PullRequestAnalysis{pr(12, "feature-a", "a1"), pr(13, "feature-b", "b1")}
	g := &fakeGit{head: git.Head{Branch: "feature-a", Commit: "a1"}}
	tr := newTracker(t, api, g, fastOptions())
	ctx := context.Background()

	require.NoError(t, tr.Open(ctx))
	require.NotNil(t, tr.PullRequest())
	require.Equal(t, 12, tr.PullRequest().Number)

	var stateAtLookup PullRequestState
	var boundAtLookup *PullRequest
	api.mu.Lock()
	api.listHook = func(int) ([]remote.PullRequestAnalysis, error) {
		stateAtLookup = tr.PullRequestState()
		boundAtLookup = tr.PullRequest()
		return api.prs, nil
	}
	api.mu.Unlock()

	var cleared bool
	tr.OnPullRequest(func(p *PullRequest) {
		if p == nil {
			cleared = true
		}
	})

	g.set(git.Head{Branch: "feature-b", Commit: "b1"})
	require.NoError(t, tr.HandleStateChange(ctx))

	assert.True(t, cleared)
	assert.Equal(t, NoPullRequest, stateAtLookup)
	assert.Nil(t, boundAtLookup)
	require.NotNil(t, tr.PullRequest())
	assert.Equal(t, 13, tr.PullRequest().Number)
}

func TestRetryCeiling(t *testing.T) {
	api := newFakeAPI()
	g := &fakeGit{head: git.Head{Branch: "feature-x", Commit: "x1"}}
	tr := newTracker(t, api, g, fastOptions())
	ctx := context.Background()

	require.NoError(t, tr.Open(ctx))

	// one lookup on open plus five retries
	assert.Eventually(t, func() bool { return api.count("list") == 6 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 6, api.count("list"))
	assert.False(t, tr.retry.Pending())

	// a repository event on the same branch stays silent
	require.NoError(t, tr.HandleStateChange(ctx))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 6, api.count("list"))

	// a branch change restores the budget
	g.set(git.Head{Branch: "feature-y", Commit: "y1"})
	require.NoError(t, tr.HandleStateChange(ctx))
	assert.Eventually(t, func() bool { return api.count("list") == 12 }, time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 12, api.count("list"))
}

func TestRetryFindsLatePullRequest(t *testing.T) {
	api := newFakeAPI()
	api.listHook = func(call int) ([]remote.PullRequestAnalysis, error) {
		if call < 3 {
			return nil, nil
		}
		return []remote.PullRequestAnalysis{pr(7, "feature-x", "x1")}, nil
	}
	api.prs = []remote.PullRequestAnalysis{pr(7, "feature-x", "x1")}
	g := &fakeGit{head: git.Head{Branch: "feature-x", Commit: "x1"}}
	tr := newTracker(t, api, g, fastOptions())

	require.NoError(t, tr.Open(context.Background()))
	assert.Eventually(t, func() bool { return tr.PullRequestState() == PullRequestLoaded }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, api.count("list"))
}

func TestMatchBranchPrefersOpen(t *testing.T) {
	closed := pr(3, "feature", "a")
	closed.PullRequest.Status = "merged"
	open := pr(4, "feature", "b")

	got, ok := matchBranch([]remote.PullRequestAnalysis{closed, open, pr(5, "other", "c")}, "feature")
	require.True(t, ok)
	assert.Equal(t, 4, got.PullRequest.Number)

	got, ok = matchBranch([]remote.PullRequestAnalysis{closed}, "feature")
	require.True(t, ok)
	assert.Equal(t, 3, got.PullRequest.Number)

	_, ok = matchBranch(nil, "feature")
	assert.False(t, ok)
}

func TestNewCommitDebouncesRefresh(t *testing.T) {
	api := newFakeAPI()
	api.prs = []remote.PullRequestAnalysis{pr(12, "feature-a", "c1")}
	g := &fakeGit{head: git.Head{Branch: "feature-a", Commit: "c1"}}
	tr := newTracker(t, api, g, fastOptions())
	ctx := context.Background()

	require.NoError(t, tr.Open(ctx))
	require.Equal(t, 1, api.count("detail"))

	// unpushed commits never trigger a refresh
	g.set(git.Head{Branch: "feature-a", Commit: "c2", Ahead: 1})
	require.NoError(t, tr.HandleStateChange(ctx))
	assert.False(t, tr.debounce.Pending())

	g.set(git.Head{Branch: "feature-a", Commit: "c2"})
	for i := 0; i < 3; i++ {
		require.NoError(t, tr.HandleStateChange(ctx))
		time.Sleep(2 * time.Millisecond)
	}
	assert.Eventually(t, func() bool { return api.count("detail") == 2 }, time.Second, time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 2, api.count("detail"), "bursts collapse into one refresh")
	assert.True(t, tr.PullRequest().Polling(), "pushed head not analysed yet")
}

func TestDivergedCommitSchedulesRefresh(t *testing.T) {
	api := newFakeAPI()
	api.prs = []remote.PullRequestAnalysis{pr(12, "feature-a", "c1")}
	g := &fakeGit{head: git.Head{Branch: "feature-a", Commit: "c1"}}
	tr := newTracker(t, api, g, fastOptions())
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))

	g.set(git.Head{Branch: "feature-a", Commit: "c3", Ahead: 1, Behind: 2})
	require.NoError(t, tr.HandleStateChange(ctx))
	assert.True(t, tr.debounce.Pending())
	assert.Eventually(t, func() bool { return api.count("detail") == 2 }, time.Second, time.Millisecond)
	assert.True(t, tr.PullRequest().Polling(), "diverged head still waits for the remote")
}

func TestReset(t *testing.T) {
	api := newFakeAPI()
	api.prs = []remote.PullRequestAnalysis{pr(12, "feature-a", "c1")}
	g := &fakeGit{head: git.Head{Branch: "feature-a", Commit: "c1"}}
	tr := newTracker(t, api, g, fastOptions())
	ctx := context.Background()
	require.NoError(t, tr.Open(ctx))
	first := tr.PullRequest()

	var states []RepositoryState
	tr.OnRepositoryState(func(s RepositoryState) { states = append(states, s) })

	require.NoError(t, tr.Reset(ctx))
	assert.Equal(t, []RepositoryState{NoRepository, Initializing, Loaded}, states)
	require.NotNil(t, tr.PullRequest())
	assert.NotSame(t, first, tr.PullRequest())
	assert.Equal(t, 2, api.count("repository"))
}

func TestCloseStopsRetries(t *testing.T) {
	api := newFakeAPI()
	g := &fakeGit{head: git.Head{Branch: "feature-x", Commit: "x1"}}
	opts := fastOptions()
	opts.RetryDelay = 20 * time.Millisecond
	tr := newTracker(t, api, g, opts)

	require.NoError(t, tr.Open(context.Background()))
	tr.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, api.count("list"))
}

func TestOptionsDefaults(t *testing.T) {
	assert.Equal(t, DefaultOptions(), Options{}.withDefaults())
	assert.Equal(t, 0, Options{RetryAttempts: -1}.withDefaults().RetryAttempts)
	assert.Equal(t, 5, DefaultOptions().RetryAttempts)
	assert.Equal(t, 2*time.Minute, DefaultOptions().RetryDelay)
	assert.Equal(t, 60*time.Second, DefaultOptions().RefreshInterval)
	assert.Equal(t, 10*time.Second, DefaultOptions().Debounce)
	assert.Equal(t, 300, DefaultOptions().MaxFiles)
}
