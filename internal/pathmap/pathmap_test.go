package pathmap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWSLToToolPath(t *testing.T) {
	cases := map[string]string{
		`C:\Users\dev\project`:   "/mnt/c/Users/dev/project",
		`d:\work\src\Foo.java`:   "/mnt/d/work/src/Foo.java",
		`C:\`:                    "/mnt/c",
		`src\main\Foo.java`:      "src/main/Foo.java",
		"/home/dev/project":      "/home/dev/project",
		"":                       "",
	}
	var a WSL
	for in, want := range cases {
		assert.Equal(t, want, a.ToToolPath(in), "input %q", in)
	}
}

func TestWSLFromToolPath(t *testing.T) {
	cases := map[string]string{
		"/mnt/c/Users/dev/project": `C:\Users\dev\project`,
		"/mnt/d/work":              `D:\work`,
		"/mnt/c":                   `C:\`,
		"/home/dev":                "/home/dev",
		"/mnt/data/x":              "/mnt/data/x",
	}
	var a WSL
	for in, want := range cases {
		assert.Equal(t, want, a.FromToolPath(in), "input %q", in)
	}
}

func TestWSLRoundTrip(t *testing.T) {
	var a WSL
	for _, p := range []string{
		`C:\Users\dev\project\src\Foo.java`,
		`c:\lower\case`,
		`E:\`,
	} {
		back := a.FromToolPath(a.ToToolPath(p))
		assert.Equal(t, upperDrive(p), back)
	}
}

func upperDrive(p string) string {
	b := []byte(p)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

func TestIdentity(t *testing.T) {
	var a Identity
	assert.Equal(t, "/a/b", a.ToToolPath("/a/b"))
	assert.Equal(t, "/a/b", a.FromToolPath("/a/b"))
}

func TestForOS(t *testing.T) {
	assert.IsType(t, WSL{}, ForOS("windows"))
	assert.IsType(t, Identity{}, ForOS("linux"))
	assert.IsType(t, Identity{}, ForOS("darwin"))
}

func TestProjectRoot(t *testing.T) {
	ctx := context.Background()

	_, err := ProjectRoot(ctx, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = ProjectRoot(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, ErrConfiguration))

	dir := t.TempDir()
	root, err := ProjectRoot(ctx, dir)
	require.NoError(t, err)
	assert.NotEmpty(t, root)
}
