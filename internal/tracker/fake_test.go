package tracker

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"lintdeck/internal/git"
	"lintdeck/internal/model"
	"lintdeck/internal/remote"
)

// fakeAPI serves one repository. Hooks may replace any answer.
type fakeAPI struct {
	mu sync.Mutex

	repoErr    error
	noDefault  bool
	branches   []remote.Branch
	analysis   *remote.RepositoryAnalysis
	prs        []remote.PullRequestAnalysis
	listHook   func(call int) ([]remote.PullRequestAnalysis, error)
	detailHook func(number, call int) (remote.PullRequestAnalysis, error)
	files      []remote.PullRequestFile
	filesPage  int
	counts     map[string]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{counts: map[string]int{}}
}

func (f *fakeAPI) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}

func (f *fakeAPI) hit(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[name]++
	return f.counts[name]
}

func (f *fakeAPI) setPRs(prs ...remote.PullRequestAnalysis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prs = prs
}

func (f *fakeAPI) Repository(ctx context.Context, repo remote.Repo) (remote.Repository, error) {
	f.hit("repository")
	if f.repoErr != nil {
		return remote.Repository{}, f.repoErr
	}
	r := remote.Repository{
		Provider:      repo.Provider,
		Owner:         repo.Organization,
		Name:          repo.Name,
		DefaultBranch: &remote.Branch{Name: "main", IsDefault: true, IsEnabled: true},
	}
	if f.noDefault {
		r.DefaultBranch = nil
	}
	return r, nil
}

func (f *fakeAPI) RepositoryAnalysis(ctx context.Context, repo remote.Repo) (remote.RepositoryAnalysis, error) {
	f.hit("analysis")
	if f.analysis == nil {
		return remote.RepositoryAnalysis{}, &remote.APIError{Status: http.StatusNotFound}
	}
	return *f.analysis, nil
}

func (f *fakeAPI) Branches(ctx context.Context, repo remote.Repo) ([]remote.Branch, error) {
	f.hit("branches")
	if f.branches == nil {
		return nil, errors.New("branches unavailable")
	}
	return f.branches, nil
}

func (f *fakeAPI) PullRequests(ctx context.Context, repo remote.Repo) ([]remote.PullRequestAnalysis, error) {
	call := f.hit("list")
	f.mu.Lock()
	hook, prs := f.listHook, f.prs
	f.mu.Unlock()
	if hook != nil {
		return hook(call)
	}
	return prs, nil
}

func (f *fakeAPI) PullRequest(ctx context.Context, repo remote.Repo, number int) (remote.PullRequestAnalysis, error) {
	call := f.hit("detail")
	f.mu.Lock()
	hook, prs := f.detailHook, f.prs
	f.mu.Unlock()
	if hook != nil {
		return hook(number, call)
	}
	for _, pr := range prs {
		if pr.PullRequest.Number == number {
			return pr, nil
		}
	}
	return remote.PullRequestAnalysis{}, &remote.APIError{Status: http.StatusNotFound}
}

func (f *fakeAPI) PullRequestIssues(ctx context.Context, repo remote.Repo, number int) ([]remote.PullRequestIssue, error) {
	f.hit("issues")
	issue := remote.PullRequestIssue{DeltaType: "Added"}
	issue.CommitIssue.FilePath = "main.go"
	return []remote.PullRequestIssue{issue}, nil
}

func (f *fakeAPI) PullRequestFiles(ctx context.Context, repo remote.Repo, number int, cursor string) (remote.Page[remote.PullRequestFile], error) {
	f.hit("files")
	size := f.filesPage
	if size <= 0 {
		size = len(f.files)
	}
	start := 0
	if cursor != "" {
		start = int(cursor[0] - '0')
	}
	end := min(start+size, len(f.files))
	page := remote.Page[remote.PullRequestFile]{Data: f.files[start:end]}
	if end < len(f.files) {
		page.Pagination = &remote.Pagination{Cursor: string(rune('0' + end))}
	}
	return page, nil
}

func (f *fakeAPI) PullRequestCoverage(ctx context.Context, repo remote.Repo, number int) (remote.Coverage, error) {
	f.hit("coverage")
	return remote.Coverage{}, errors.New("no coverage")
}

func (f *fakeAPI) QualityGates(ctx context.Context, repo remote.Repo) (remote.QualityGates, error) {
	f.hit("gates")
	return remote.QualityGates{IssueThreshold: &remote.IssueThreshold{MinimumSeverity: "Warning"}}, nil
}

// fakeGit is a checkout whose HEAD the test moves.
type fakeGit struct {
	mu            sync.Mutex
	head          git.Head
	err           error
	defaultBranch string
}

func (g *fakeGit) Head(ctx context.Context) (git.Head, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.head, g.err
}

func (g *fakeGit) DefaultBranch(ctx context.Context) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.defaultBranch == "" {
		return "main"
	}
	return g.defaultBranch
}

func (g *fakeGit) set(h git.Head) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.head = h
}

func pr(number int, branch, head string) remote.PullRequestAnalysis {
	return remote.PullRequestAnalysis{PullRequest: remote.PullRequestMeta{
		Number:        number,
		Status:        "open",
		OriginBranch:  branch,
		TargetBranch:  "main",
		HeadCommitSHA: head,
	}}
}

func fileNamed(path string) remote.PullRequestFile {
	var f remote.PullRequestFile
	f.File.Path = path
	return f
}

var testIdentity = model.Identity{
	Provider:     "gh",
	Organization: "acme",
	Repository:   "widgets",
	ProjectRoot:  "/work/widgets",
}

func quietLog() *logrus.Entry {
	l, _ := test.NewNullLogger()
	return logrus.NewEntry(l)
}

func fastOptions() Options {
	return Options{
		RetryAttempts:   5,
		RetryDelay:      2 * time.Millisecond,
		RefreshInterval: time.Hour,
		Debounce:        20 * time.Millisecond,
		MaxFiles:        300,
	}
}

func newTracker(t *testing.T, api *fakeAPI, g *fakeGit, opts Options) *Tracker {
	t.Helper()
	tr := New(Config{
		API:     api,
		Git:     g,
		Resolve: func(context.Context) (model.Identity, error) { return testIdentity, nil },
		Token:   func() string { return "token" },
		Options: opts,
		Log:     quietLog(),
	})
	t.Cleanup(tr.Close)
	return tr
}
