package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultSettle is how long the watcher waits for a burst of ref updates
// to finish before reporting a change.
const DefaultSettle = 250 * time.Millisecond

// Watch calls fn after HEAD or a local branch ref changes under root. A
// burst of events within settle produces one call. The watch stops when
// ctx is done.
func Watch(ctx context.Context, root string, settle time.Duration, log *logrus.Entry, fn func()) error {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil {
		return fmt.Errorf("git watch: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("git watch: %s is not a directory", gitDir)
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("git watch: %w", err)
	}
	for _, dir := range []string{gitDir, filepath.Join(gitDir, "refs", "heads")} {
		if err := w.Add(dir); err != nil {
			w.Close()
			return fmt.Errorf("git watch %s: %w", dir, err)
		}
	}

	go func() {
		defer w.Close()
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if relevant(gitDir, ev) {
					fire = time.After(settle)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("git watcher error")
			case <-fire:
				fire = nil
				fn()
			}
		}
	}()
	return nil
}

func relevant(gitDir string, ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod || strings.HasSuffix(ev.Name, ".lock") {
		return false
	}
	rel, err := filepath.Rel(gitDir, ev.Name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel == "HEAD" || rel == "packed-refs" || strings.HasPrefix(rel, "refs/heads/")
}
