// Package forge maps a git remote URL to the provider, organization and
// repository the Codacy API addresses it by.
package forge

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"lintdeck/internal/git"
	"lintdeck/internal/model"
	"lintdeck/internal/process"
)

// Provider codes used by the API.
const (
	GitHub    = "gh"
	GitLab    = "gl"
	Bitbucket = "bb"
)

// ErrUnsupported is returned for remotes on an unknown host.
var ErrUnsupported = errors.New("forge: unsupported remote")

var hosts = map[string]string{
	"github.com":    GitHub,
	"gitlab.com":    GitLab,
	"bitbucket.org": Bitbucket,
}

// Parse splits a remote URL into provider, organization and repository.
// SSH (git@host:org/repo.git), ssh:// and https:// forms are accepted.
// Nested GitLab groups keep everything before the last segment as the
// organization.
func Parse(remote string) (provider, org, repo string, err error) {
	remote = strings.TrimSpace(remote)
	host, path, ok := splitRemote(remote)
	if !ok {
		return "", "", "", fmt.Errorf("%w: %q", ErrUnsupported, remote)
	}
	provider, ok = hosts[strings.ToLower(host)]
	if !ok {
		return "", "", "", fmt.Errorf("%w: host %q", ErrUnsupported, host)
	}
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", "", fmt.Errorf("%w: path %q", ErrUnsupported, path)
	}
	return provider, path[:i], path[i+1:], nil
}

func splitRemote(remote string) (host, path string, ok bool) {
	if strings.Contains(remote, "://") {
		u, err := url.Parse(remote)
		if err != nil || u.Host == "" {
			return "", "", false
		}
		return u.Hostname(), u.Path, true
	}
	// scp-like: [user@]host:path
	hostPart, path, ok := strings.Cut(remote, ":")
	if !ok {
		return "", "", false
	}
	if _, after, found := strings.Cut(hostPart, "@"); found {
		hostPart = after
	}
	return hostPart, path, hostPart != ""
}

// Detect fills the remote fields of an identity from the repository's
// git remote. The returned identity keeps root as ProjectRoot even when
// detection fails.
func Detect(ctx context.Context, root string, runner process.Runner) (model.Identity, error) {
	id := model.Identity{ProjectRoot: root}
	remote, err := git.Open(root, runner).RemoteURL(ctx)
	if err != nil {
		return id, err
	}
	provider, org, repo, err := Parse(remote)
	if err != nil {
		return id, err
	}
	id.Provider, id.Organization, id.Repository = provider, org, repo
	return id, nil
}
