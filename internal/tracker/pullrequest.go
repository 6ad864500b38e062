package tracker

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"lintdeck/internal/git"
	"lintdeck/internal/remote"
	"lintdeck/internal/timer"
)

// Snapshot is a copy of a pull request's data at one point in time.
type Snapshot struct {
	Analysis  remote.PullRequestAnalysis
	Gates     remote.QualityGates
	Coverage  *remote.Coverage
	Issues    []remote.PullRequestIssue
	Files     []remote.PullRequestFile
	Analysing bool
}

// HeadCommit is the head commit the platform last saw for the pull request.
func (s Snapshot) HeadCommit() string { return s.Analysis.PullRequest.HeadCommitSHA }

// BaseCommit is the merge base the platform recorded.
func (s Snapshot) BaseCommit() string { return s.Analysis.PullRequest.BaseCommitSHA }

// PullRequest is the remote pull request bound to the current branch. The
// tracker is its only writer; observers read it through Snapshot.
type PullRequest struct {
	Number int

	api       remote.API
	repo      remote.Repo
	localHead func() git.Head
	opts      Options
	log       *logrus.Entry
	ctx       context.Context

	onUpdate   func(*PullRequest)
	onComplete func(*PullRequest)

	refreshMu sync.Mutex
	poll      timer.Slot

	mu     sync.RWMutex
	data   Snapshot
	closed bool
}

func (p *PullRequest) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.data
	s.Issues = append([]remote.PullRequestIssue(nil), p.data.Issues...)
	s.Files = append([]remote.PullRequestFile(nil), p.data.Files...)
	return s
}

// Polling reports whether a follow-up refresh is scheduled.
func (p *PullRequest) Polling() bool { return p.poll.Pending() }

// Refresh refetches the pull request. Metadata failures are returned and
// retried on the refresh interval; failures of the other endpoints keep
// the previous values.
func (p *PullRequest) Refresh(ctx context.Context) error {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	if p.isClosed() {
		return nil
	}
	log := p.log.WithField("pr", p.Number)

	analysis, err := p.api.PullRequest(ctx, p.repo, p.Number)
	if err != nil {
		log.WithError(err).Warn("fetch pull request failed")
		p.schedule()
		return err
	}

	p.mu.RLock()
	next := p.data
	p.mu.RUnlock()
	wasAnalysing := next.Analysing

	next.Analysis = analysis
	next.Analysing = analysis.IsAnalysing
	if gates, err := p.api.QualityGates(ctx, p.repo); err != nil {
		log.WithError(err).Debug("fetch quality gates failed")
	} else {
		next.Gates = gates
	}
	if cov, err := p.api.PullRequestCoverage(ctx, p.repo, p.Number); err != nil {
		log.WithError(err).Debug("fetch coverage failed")
	} else {
		next.Coverage = &cov
	}
	if issues, err := p.api.PullRequestIssues(ctx, p.repo, p.Number); err != nil {
		log.WithError(err).Warn("fetch pull request issues failed")
	} else {
		next.Issues = issues
	}
	if files, err := p.fetchFiles(ctx); err != nil {
		log.WithError(err).Warn("fetch pull request files failed")
	} else {
		next.Files = files
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.data = next
	p.mu.Unlock()
	p.onUpdate(p)

	head := p.localHead()
	pending := head.Commit != "" && head.Commit != next.HeadCommit() && !head.Unpushed()
	switch {
	case next.Analysing || pending:
		log.WithFields(logrus.Fields{
			"analysing": next.Analysing,
			"local":     head.Commit,
			"remote":    next.HeadCommit(),
		}).Debug("pull request analysis pending")
		p.schedule()
	case wasAnalysing:
		log.Info("pull request analysis completed")
		p.onComplete(p)
	}
	return nil
}

func (p *PullRequest) fetchFiles(ctx context.Context) ([]remote.PullRequestFile, error) {
	var files []remote.PullRequestFile
	cursor := ""
	for len(files) < p.opts.MaxFiles {
		page, err := p.api.PullRequestFiles(ctx, p.repo, p.Number, cursor)
		if err != nil {
			return nil, err
		}
		files = append(files, page.Data...)
		cursor = page.NextCursor()
		if cursor == "" || len(page.Data) == 0 {
			break
		}
	}
	if len(files) > p.opts.MaxFiles {
		files = files[:p.opts.MaxFiles]
	}
	return files, nil
}

func (p *PullRequest) schedule() {
	if p.isClosed() {
		return
	}
	p.poll.Schedule(p.opts.RefreshInterval, func() {
		_ = p.Refresh(p.ctx)
	})
}

func (p *PullRequest) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// close stops polling; a refresh already in flight publishes nothing.
func (p *PullRequest) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.poll.Cancel()
}
