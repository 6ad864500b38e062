// Package pathmap translates paths between the host's native form and the
// form seen by the analysis CLI's execution environment.
package pathmap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrConfiguration is returned when the project root cannot be determined.
var ErrConfiguration = errors.New("configuration error")

// Adapter converts paths for the CLI's execution environment.
type Adapter interface {
	ToToolPath(native string) string
	FromToolPath(tool string) string
}

// Identity is the adapter for POSIX hosts: both conversions are no-ops.
type Identity struct{}

func (Identity) ToToolPath(native string) string { return native }
func (Identity) FromToolPath(tool string) string { return tool }

// WSL maps Windows drive paths onto the /mnt/<drive> mounts of a Linux
// subsystem.
type WSL struct{}

// ToToolPath rewrites C:\a\b to /mnt/c/a/b. Paths without a drive letter
// only get their separators normalized.
func (WSL) ToToolPath(native string) string {
	if native == "" {
		return native
	}
	p := strings.ReplaceAll(native, `\`, "/")
	if hasDrive(p) {
		drive := unicode.ToLower(rune(p[0]))
		rest := strings.TrimLeft(p[2:], "/")
		if rest == "" {
			return "/mnt/" + string(drive)
		}
		return "/mnt/" + string(drive) + "/" + rest
	}
	return p
}

// FromToolPath restores /mnt/c/a/b to C:\a\b. Other paths keep forward
// slashes so subsystem-local paths stay usable.
func (WSL) FromToolPath(tool string) string {
	if tool == "" {
		return tool
	}
	p := strings.ReplaceAll(tool, `\`, "/")
	if rest, ok := strings.CutPrefix(p, "/mnt/"); ok && len(rest) >= 1 && isLetter(rest[0]) &&
		(len(rest) == 1 || rest[1] == '/') {
		drive := unicode.ToUpper(rune(rest[0]))
		tail := strings.TrimLeft(rest[1:], "/")
		return string(drive) + `:\` + strings.ReplaceAll(tail, "/", `\`)
	}
	if hasDrive(p) {
		return string(unicode.ToUpper(rune(p[0]))) + ":" + strings.ReplaceAll(p[2:], "/", `\`)
	}
	return p
}

// ForOS returns the adapter for a GOOS value.
func ForOS(goos string) Adapter {
	if goos == "windows" {
		return WSL{}
	}
	return Identity{}
}

// ProjectRoot resolves the project root for dir: the git top-level when dir
// is inside a work tree, otherwise dir itself.
func ProjectRoot(ctx context.Context, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("project root: empty directory: %w", ErrConfiguration)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("project root: %v: %w", err, ErrConfiguration)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("project root: %s is not a directory: %w", abs, ErrConfiguration)
	}
	out, err := exec.CommandContext(ctx, "git", "-C", abs, "rev-parse", "--show-toplevel").Output()
	if err == nil {
		if top := strings.TrimSpace(string(out)); top != "" {
			return filepath.Clean(top), nil
		}
	}
	return abs, nil
}

func hasDrive(p string) bool {
	return len(p) >= 2 && isLetter(p[0]) && p[1] == ':'
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
