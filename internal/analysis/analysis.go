// Package analysis runs the Codacy CLI against a file or the whole
// repository and returns normalized findings.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lintdeck/internal/cache"
	"lintdeck/internal/cli"
	"lintdeck/internal/model"
	"lintdeck/internal/pathmap"
	"lintdeck/internal/process"
	"lintdeck/internal/sarif"
)

// ReportFormat is the --format value passed to `analyze`.
const ReportFormat = "sarif"

// Request selects what to analyze. An empty File means the whole
// repository; an empty Tool runs every configured tool.
type Request struct {
	File string
	Tool string
}

// Machine is the CLI lifecycle the orchestrator drives.
type Machine interface {
	Identity() model.Identity
	Analyze(ctx context.Context, fn func(context.Context, cli.Session) error) error
}

// Orchestrator ties the CLI state machine, the process runner, the SARIF
// mapper and the result cache together.
type Orchestrator struct {
	machine Machine
	runner  process.Runner
	results *cache.Results
	mapper  sarif.Mapper
	timeout time.Duration
	log     *logrus.Entry
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithTimeout bounds each CLI analyze run. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func New(machine Machine, runner process.Runner, results *cache.Results, log *logrus.Entry, opts ...Option) *Orchestrator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	o := &Orchestrator{
		machine: machine,
		runner:  runner,
		results: results,
		mapper:  sarif.Mapper{Log: log},
		log:     log,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Analyze runs the CLI for req. File requests are memoized by content
// fingerprint. A report that cannot be parsed yields an empty list and no
// error; a failing CLI run returns its *process.ExecutionFailed.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) ([]model.Finding, error) {
	root := o.machine.Identity().ProjectRoot
	if root == "" {
		return nil, fmt.Errorf("analyze: %w", pathmap.ErrConfiguration)
	}

	var (
		findings []model.Finding
		err      error
	)
	if req.File == "" {
		findings, err = o.results.Coalesce(ctx, "repository\x00"+req.Tool, func(ctx context.Context) ([]model.Finding, error) {
			return o.run(ctx, req, "")
		})
	} else {
		fp, abs, ferr := fingerprint(root, req)
		if ferr != nil {
			return nil, fmt.Errorf("analyze %s: %w", req.File, ferr)
		}
		findings, err = o.results.GetOrCompute(ctx, fp, func(ctx context.Context) ([]model.Finding, error) {
			return o.run(ctx, req, abs)
		})
	}

	var parseErr *sarif.ParseFailed
	if errors.As(err, &parseErr) {
		o.log.WithError(err).WithField("file", req.File).Warn("discarding unreadable analysis report")
		return []model.Finding{}, nil
	}
	if err != nil {
		return nil, err
	}
	return findings, nil
}

// Fingerprint returns the cache key Analyze uses for a file request.
func (o *Orchestrator) Fingerprint(req Request) (string, error) {
	fp, _, err := fingerprint(o.machine.Identity().ProjectRoot, req)
	return fp, err
}

func fingerprint(root string, req Request) (fp, abs string, err error) {
	abs = req.File
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, abs)
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return "", "", err
	}
	return cache.Fingerprint(relPath(root, abs), req.Tool, content), abs, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, file string) ([]model.Finding, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	var findings []model.Finding
	err := o.machine.Analyze(ctx, func(ctx context.Context, sess cli.Session) error {
		var err error
		findings, err = o.execute(ctx, sess, req, file)
		return err
	})
	return findings, err
}

func (o *Orchestrator) execute(ctx context.Context, sess cli.Session, req Request, file string) ([]model.Finding, error) {
	root := sess.Identity.ProjectRoot
	paths := sess.Paths()

	dir := filepath.Join(root, cli.Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("analyze: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "analysis-*.sarif")
	if err != nil {
		return nil, fmt.Errorf("analyze: create report file: %w", err)
	}
	report := tmp.Name()
	tmp.Close()
	defer os.Remove(report)

	args := []string{"analyze", "--output", paths.ToToolPath(report)}
	if file != "" {
		args = append(args, paths.ToToolPath(file))
	}
	args = append(args, "--format", ReportFormat)
	if req.Tool != "" {
		args = append(args, "--tool", req.Tool)
	}

	log := o.log.WithFields(logrus.Fields{"file": req.File, "tool": req.Tool})
	start := time.Now()
	if _, err := o.runner.Run(ctx, sess.Command(args...)); err != nil {
		log.WithError(err).Warn("codacy cli analyze failed")
		return nil, err
	}

	data, err := os.ReadFile(report)
	if err != nil {
		return nil, &sarif.ParseFailed{Path: report, Err: err}
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, &sarif.ParseFailed{Path: report, Err: errors.New("empty report")}
	}
	decoded, err := sarif.Decode(data)
	if err != nil {
		return nil, &sarif.ParseFailed{Path: report, Err: errors.Unwrap(err)}
	}

	findings := o.mapper.Map(decoded)
	for i := range findings {
		findings[i].FilePath = localPath(paths, root, findings[i].FilePath)
	}
	log.WithFields(logrus.Fields{
		"findings": len(findings),
		"elapsed":  time.Since(start).Round(time.Millisecond),
	}).Debug("analysis finished")
	return findings, nil
}

// localPath converts a report URI into a project-relative native path when
// it points inside root.
func localPath(paths pathmap.Adapter, root, uri string) string {
	if uri == "" {
		return ""
	}
	p := uri
	if u, err := url.Parse(uri); err == nil && (u.Scheme == "file" || u.Scheme == "") {
		p = u.Path
	}
	p = paths.FromToolPath(p)
	if !filepath.IsAbs(p) {
		return filepath.FromSlash(p)
	}
	return relPath(root, p)
}

func relPath(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return abs
	}
	return rel
}
