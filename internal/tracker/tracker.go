// Package tracker follows the local branch of a project and keeps the
// matching remote pull request loaded.
package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"lintdeck/internal/git"
	"lintdeck/internal/model"
	"lintdeck/internal/notify"
	"lintdeck/internal/remote"
	"lintdeck/internal/timer"
)

// Options are the polling constants of a tracker.
type Options struct {
	RetryAttempts   int
	RetryDelay      time.Duration
	RefreshInterval time.Duration
	Debounce        time.Duration
	MaxFiles        int
}

// DefaultOptions returns the stock polling policy.
func DefaultOptions() Options {
	return Options{
		RetryAttempts:   5,
		RetryDelay:      2 * time.Minute,
		RefreshInterval: 60 * time.Second,
		Debounce:        10 * time.Second,
		MaxFiles:        300,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	} else if o.RetryAttempts == 0 {
		o.RetryAttempts = d.RetryAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = d.RefreshInterval
	}
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.MaxFiles <= 0 {
		o.MaxFiles = d.MaxFiles
	}
	return o
}

// Git is the part of a local checkout the tracker reads.
type Git interface {
	Head(ctx context.Context) (git.Head, error)
	// DefaultBranch is consulted when the platform reports no default branch.
	DefaultBranch(ctx context.Context) string
}

// Config wires a tracker to its collaborators.
type Config struct {
	API remote.API
	Git Git
	// Resolve maps the checkout to its remote repository.
	Resolve func(ctx context.Context) (model.Identity, error)
	// Token returns the API token; "" means the user is signed out.
	Token   func() string
	Options Options
	Log     *logrus.Entry
}

// Tracker owns the repository, pull request and branch state of one
// project. Operations are serialized; reads never wait on network I/O.
type Tracker struct {
	cfg  Config
	opts Options
	log  *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	opMu     sync.Mutex
	attempts int
	retry    timer.Slot
	debounce timer.Slot

	mu            sync.RWMutex
	state         RepositoryState
	identity      model.Identity
	repository    remote.Repository
	defaultBranch string
	analysis      *remote.RepositoryAnalysis
	branches      []remote.Branch
	head          git.Head
	pr            *PullRequest

	stateChanged notify.Topic[RepositoryState]
	prUpdated    notify.Topic[*PullRequest]
	loaded       notify.Topic[remote.Repository]
	completed    notify.Topic[*PullRequest]
}

func New(cfg Config) *Tracker {
	if cfg.Token == nil {
		cfg.Token = func() string { return "" }
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		cfg:    cfg,
		opts:   cfg.Options.withDefaults(),
		log:    log.WithField("component", "tracker"),
		ctx:    ctx,
		cancel: cancel,
		state:  Initializing,
	}
}

// OnRepositoryState subscribes to repository state transitions.
func (t *Tracker) OnRepositoryState(fn func(RepositoryState)) (unsubscribe func()) {
	return t.stateChanged.Subscribe(fn)
}

// OnPullRequest subscribes to pull request updates. fn receives nil when
// the bound pull request is cleared.
func (t *Tracker) OnPullRequest(fn func(*PullRequest)) (unsubscribe func()) {
	return t.prUpdated.Subscribe(fn)
}

// OnRepositoryLoaded subscribes to successful repository loads.
func (t *Tracker) OnRepositoryLoaded(fn func(remote.Repository)) (unsubscribe func()) {
	return t.loaded.Subscribe(fn)
}

// OnAnalysisCompleted subscribes to pull requests whose remote analysis
// just finished.
func (t *Tracker) OnAnalysisCompleted(fn func(*PullRequest)) (unsubscribe func()) {
	return t.completed.Subscribe(fn)
}

func (t *Tracker) RepositoryState() RepositoryState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *Tracker) PullRequestState() PullRequestState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.pr != nil {
		return PullRequestLoaded
	}
	return NoPullRequest
}

// PullRequest returns the bound pull request or nil.
func (t *Tracker) PullRequest() *PullRequest {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pr
}

// Repository returns the loaded repository and whether one is loaded.
func (t *Tracker) Repository() (remote.Repository, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.repository, t.state == Loaded
}

func (t *Tracker) Identity() model.Identity {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.identity
}

// Head returns the last observed local HEAD.
func (t *Tracker) Head() git.Head {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.head
}

// BranchState classifies the current branch.
func (t *Tracker) BranchState() BranchState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.pr != nil {
		return OnPullRequestBranch
	}
	if t.state != Loaded || t.head.Branch == "" {
		return OnUnknownBranch
	}
	lastCommit, known := "", false
	for _, b := range t.branches {
		if b.Name == t.head.Branch && b.IsEnabled {
			lastCommit, known = b.LastCommit, true
			break
		}
	}
	if t.head.Branch == t.defaultBranch {
		known = true
		if t.analysis != nil && t.analysis.LastAnalysedCommit != nil {
			lastCommit = t.analysis.LastAnalysedCommit.SHA
		}
	}
	switch {
	case !known:
		return OnUnknownBranch
	case lastCommit != "" && t.head.Commit != "" && lastCommit != t.head.Commit:
		return OnAnalysedBranchOutdated
	default:
		return OnAnalysedBranch
	}
}

// Open resolves the repository and loads the pull request of the current
// branch.
func (t *Tracker) Open(ctx context.Context) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	return t.open(ctx)
}

func (t *Tracker) open(ctx context.Context) error {
	t.setState(Initializing)

	if t.cfg.Token() == "" {
		t.setState(NeedsAuthentication)
		return nil
	}

	head, err := t.cfg.Git.Head(ctx)
	if err != nil {
		t.log.WithError(err).Info("no git repository")
		t.setState(NoGitRepository)
		return nil
	}
	id, err := t.cfg.Resolve(ctx)
	if err != nil {
		t.log.WithError(err).Info("git remote does not map to a repository")
		state := NoRepository
		if errors.Is(err, git.ErrNoRemote) {
			state = NoGitRepository
		}
		t.setState(state)
		return nil
	}

	repo := remoteRepo(id)
	repository, err := t.cfg.API.Repository(ctx, repo)
	if err != nil {
		switch {
		case remote.Unauthorized(err):
			t.setState(NeedsAuthentication)
			return nil
		case remote.NotFound(err):
			t.log.WithField("repository", repo).Info("repository not found")
			t.setState(NoRepository)
			return nil
		}
		t.log.WithError(err).Warn("load repository failed")
		t.setState(NoRepository)
		return err
	}

	branches, err := t.cfg.API.Branches(ctx, repo)
	if err != nil {
		t.log.WithError(err).Warn("load branches failed")
		branches = nil
	}
	defaultBranch := repository.DefaultBranchName()
	if defaultBranch == "" {
		defaultBranch = t.cfg.Git.DefaultBranch(ctx)
	}
	var analysis *remote.RepositoryAnalysis
	if a, err := t.cfg.API.RepositoryAnalysis(ctx, repo); err != nil {
		t.log.WithError(err).Debug("load repository analysis failed")
	} else {
		analysis = &a
	}

	t.mu.Lock()
	t.identity = id
	t.repository = repository
	t.defaultBranch = defaultBranch
	t.branches = branches
	t.analysis = analysis
	t.head = head
	t.mu.Unlock()

	t.log.WithFields(logrus.Fields{"repository": repo, "branch": head.Branch}).Info("repository loaded")
	t.loaded.Publish(repository)
	t.setState(Loaded)

	t.attempts = 0
	return t.loadPullRequest(ctx)
}

// LoadPullRequest looks up the pull request of the current branch and
// restarts the retry budget.
func (t *Tracker) LoadPullRequest(ctx context.Context) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.attempts = 0
	return t.loadPullRequest(ctx)
}

func (t *Tracker) loadPullRequest(ctx context.Context) error {
	t.mu.RLock()
	state, branch, id, defaultBranch := t.state, t.head.Branch, t.identity, t.defaultBranch
	t.mu.RUnlock()
	if state != Loaded {
		return nil
	}
	log := t.log.WithField("branch", branch)

	if branch == "" || branch == defaultBranch {
		t.retry.Cancel()
		t.bind(nil)
		return nil
	}

	repo := remoteRepo(id)
	prs, err := t.cfg.API.PullRequests(ctx, repo)
	if err != nil {
		log.WithError(err).Warn("list pull requests failed")
		t.scheduleRetry(branch)
		return err
	}
	match, ok := matchBranch(prs, branch)
	if !ok {
		log.Debug("no pull request for branch")
		t.bind(nil)
		t.scheduleRetry(branch)
		return nil
	}
	t.retry.Cancel()

	if cur := t.PullRequest(); cur != nil && cur.Number == match.PullRequest.Number {
		return cur.Refresh(ctx)
	}
	pr := t.newPullRequest(repo, match)
	t.bind(pr)
	log.WithField("pr", pr.Number).Info("pull request bound")
	return pr.Refresh(ctx)
}

// matchBranch prefers an open pull request and falls back to the first
// listed one.
func matchBranch(prs []remote.PullRequestAnalysis, branch string) (remote.PullRequestAnalysis, bool) {
	var found *remote.PullRequestAnalysis
	for i := range prs {
		if prs[i].PullRequest.OriginBranch != branch {
			continue
		}
		if prs[i].PullRequest.Status == "open" {
			return prs[i], true
		}
		if found == nil {
			found = &prs[i]
		}
	}
	if found == nil {
		return remote.PullRequestAnalysis{}, false
	}
	return *found, true
}

func (t *Tracker) scheduleRetry(branch string) {
	if t.attempts >= t.opts.RetryAttempts {
		t.log.WithField("branch", branch).Debug("pull request retries exhausted")
		return
	}
	t.attempts++
	t.retry.Schedule(t.opts.RetryDelay, func() {
		t.opMu.Lock()
		defer t.opMu.Unlock()
		if t.ctx.Err() != nil || t.Head().Branch != branch {
			return
		}
		_ = t.loadPullRequest(t.ctx)
	})
}

func (t *Tracker) newPullRequest(repo remote.Repo, analysis remote.PullRequestAnalysis) *PullRequest {
	return &PullRequest{
		Number:     analysis.PullRequest.Number,
		api:        t.cfg.API,
		repo:       repo,
		localHead:  t.Head,
		opts:       t.opts,
		log:        t.log,
		ctx:        t.ctx,
		onUpdate:   t.prUpdated.Publish,
		onComplete: t.completed.Publish,
		data: Snapshot{
			Analysis:  analysis,
			Analysing: analysis.IsAnalysing,
		},
	}
}

// bind replaces the bound pull request. The previous one stops polling.
func (t *Tracker) bind(pr *PullRequest) {
	t.mu.Lock()
	old := t.pr
	t.pr = pr
	t.mu.Unlock()
	if old == pr {
		return
	}
	if old != nil {
		old.close()
	}
	t.prUpdated.Publish(pr)
}

// HandleStateChange reacts to a change in the local git repository.
func (t *Tracker) HandleStateChange(ctx context.Context) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	if t.RepositoryState() != Loaded {
		return nil
	}

	head, err := t.cfg.Git.Head(ctx)
	if err != nil {
		t.log.WithError(err).Warn("read git head failed")
		return err
	}

	t.mu.Lock()
	prev := t.head
	t.head = head
	pr := t.pr
	t.mu.Unlock()

	if head.Branch != prev.Branch {
		t.log.WithFields(logrus.Fields{"from": prev.Branch, "to": head.Branch}).Info("branch changed")
		t.debounce.Cancel()
		t.retry.Cancel()
		t.bind(nil)
		t.attempts = 0
		return t.loadPullRequest(ctx)
	}

	if pr == nil || head.Commit == "" || head.Unpushed() {
		return nil
	}
	if head.Commit != pr.Snapshot().HeadCommit() {
		t.debounce.Schedule(t.opts.Debounce, func() {
			t.opMu.Lock()
			defer t.opMu.Unlock()
			if t.ctx.Err() != nil || t.PullRequest() != pr {
				return
			}
			_ = pr.Refresh(t.ctx)
		})
	}
	return nil
}

// Reset drops everything loaded and opens the repository again, as after a
// configuration change or sign-out.
func (t *Tracker) Reset(ctx context.Context) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.clear()
	t.setState(NoRepository)
	return t.open(ctx)
}

// Close stops every timer. The tracker must not be used afterwards.
func (t *Tracker) Close() {
	t.opMu.Lock()
	defer t.opMu.Unlock()
	t.cancel()
	t.clear()
}

func (t *Tracker) clear() {
	t.retry.Cancel()
	t.debounce.Cancel()
	t.bind(nil)
	t.mu.Lock()
	t.repository = remote.Repository{}
	t.defaultBranch = ""
	t.branches = nil
	t.analysis = nil
	t.mu.Unlock()
}

func (t *Tracker) setState(s RepositoryState) {
	t.mu.Lock()
	changed := t.state != s
	t.state = s
	t.mu.Unlock()
	if changed {
		t.log.WithField("state", s).Debug("repository state changed")
		t.stateChanged.Publish(s)
	}
}

func remoteRepo(id model.Identity) remote.Repo {
	return remote.Repo{Provider: id.Provider, Organization: id.Organization, Name: id.Repository}
}
