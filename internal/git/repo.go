// Package git answers the questions the tracker asks about a local
// checkout: which branch and commit HEAD is on and how it relates to its
// upstream.
package git

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lintdeck/internal/process"
)

// Head describes the checked-out state of a repository.
type Head struct {
	// Branch is empty when HEAD is detached.
	Branch string
	// Commit is empty before the first commit.
	Commit   string
	Upstream string
	Ahead    int
	Behind   int
}

// Detached reports whether HEAD points at a commit rather than a branch.
func (h Head) Detached() bool { return h.Branch == "" }

// Unpushed reports whether the branch only has local commits on top of its
// upstream. A diverged branch is not unpushed.
func (h Head) Unpushed() bool { return h.Ahead > 0 && h.Behind == 0 }

// Repo runs git against one working tree.
type Repo struct {
	Root   string
	runner process.Runner
}

// Open binds a Repo to root. No git command runs until a query is made.
func Open(root string, runner process.Runner) *Repo {
	return &Repo{Root: root, runner: runner}
}

func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	res, err := r.runner.Run(ctx, process.Command{
		Name: "git",
		Args: append([]string{"-C", r.Root}, args...),
	})
	if err != nil {
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// Head reads branch, commit and upstream divergence in one git call.
func (r *Repo) Head(ctx context.Context) (Head, error) {
	out, err := r.git(ctx, "status", "--porcelain=v2", "--branch", "--untracked-files=no")
	if err != nil {
		return Head{}, err
	}
	return parseStatus(out), nil
}

func parseStatus(raw string) Head {
	var h Head
	for _, line := range strings.Split(raw, "\n") {
		rest, ok := strings.CutPrefix(line, "# branch.")
		if !ok {
			continue
		}
		key, value, _ := strings.Cut(rest, " ")
		switch key {
		case "oid":
			if value != "(initial)" {
				h.Commit = value
			}
		case "head":
			if value != "(detached)" {
				h.Branch = value
			}
		case "upstream":
			h.Upstream = value
		case "ab":
			// "+<ahead> -<behind>"
			a, b, _ := strings.Cut(value, " ")
			h.Ahead, _ = strconv.Atoi(strings.TrimPrefix(a, "+"))
			h.Behind, _ = strconv.Atoi(strings.TrimPrefix(b, "-"))
		}
	}
	return h
}

// ErrNoRemote is returned when the repository has no remotes.
var ErrNoRemote = errors.New("git: no remote configured")

// RemoteURL returns the URL of origin, or of the first remote when there
// is no origin.
func (r *Repo) RemoteURL(ctx context.Context) (string, error) {
	if out, err := r.git(ctx, "remote", "get-url", "origin"); err == nil && out != "" {
		return out, nil
	}
	remotes, err := r.git(ctx, "remote")
	if err != nil {
		return "", err
	}
	name, _, _ := strings.Cut(remotes, "\n")
	if name == "" {
		return "", ErrNoRemote
	}
	return r.git(ctx, "remote", "get-url", strings.TrimSpace(name))
}

// DefaultBranch returns the branch origin/HEAD points at, or "main" when
// the checkout does not record one.
func (r *Repo) DefaultBranch(ctx context.Context) string {
	out, err := r.git(ctx, "symbolic-ref", "--short", "refs/remotes/origin/HEAD")
	if err == nil {
		// "origin/main"
		if _, after, ok := strings.Cut(out, "/"); ok && after != "" {
			return after
		}
	}
	return "main"
}
