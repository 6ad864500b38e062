package forge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lintdeck/internal/model"
	"lintdeck/internal/process"
	"lintdeck/internal/process/processtest"
)

func TestParse(t *testing.T) {
	tests := []struct {
		remote             string
		provider, org, rep string
	}{
		{"git@github.com:acme/widgets.git", GitHub, "acme", "widgets"},
		{"https://github.com/acme/widgets", GitHub, "acme", "widgets"},
		{"https://user@bitbucket.org/acme/widgets.git", Bitbucket, "acme", "widgets"},
		{"ssh://git@gitlab.com:22/group/sub/widgets.git", GitLab, "group/sub", "widgets"},
		{"git@GitHub.com:acme/widgets.git/", GitHub, "acme", "widgets"},
	}
	for _, tt := range tests {
		t.Run(tt.remote, func(t *testing.T) {
			provider, org, repo, err := Parse(tt.remote)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, provider)
			assert.Equal(t, tt.org, org)
			assert.Equal(t, tt.rep, repo)
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, remote := range []string{
		"",
		"/srv/git/widgets.git",
		"https://example.com/acme/widgets.git",
		"git@github.com:widgets.git",
		"https://github.com/acme/",
	} {
		_, _, _, err := Parse(remote)
		assert.ErrorIs(t, err, ErrUnsupported, remote)
	}
}

func TestDetect(t *testing.T) {
	runner := &processtest.Runner{Handler: func(_ context.Context, cmd process.Command) (process.Result, error) {
		return process.Result{Stdout: []byte("git@github.com:acme/widgets.git\n")}, nil
	}}

	id, err := Detect(context.Background(), "/work/widgets", runner)
	require.NoError(t, err)
	assert.Equal(t, model.Identity{
		Provider:     GitHub,
		Organization: "acme",
		Repository:   "widgets",
		ProjectRoot:  "/work/widgets",
	}, id)
}

func TestDetectKeepsRootOnFailure(t *testing.T) {
	runner := &processtest.Runner{Handler: func(_ context.Context, cmd process.Command) (process.Result, error) {
		return process.Result{Stdout: []byte("/srv/git/widgets.git\n")}, nil
	}}

	id, err := Detect(context.Background(), "/work/widgets", runner)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.Equal(t, "/work/widgets", id.ProjectRoot)
	assert.False(t, id.Remote())
}
