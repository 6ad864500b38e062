package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"lintdeck/internal/model"
	"lintdeck/internal/process"
)

// InstalledCLI is a CLI script bound to the identity it was installed for.
type InstalledCLI struct {
	Path     string
	Identity model.Identity
}

// Installer makes sure the CLI script exists under the project's .codacy
// directory, downloading it when missing.
type Installer struct {
	platform Platform
	runner   process.Runner
	url      string
	log      *logrus.Entry

	mu        sync.Mutex
	installed *InstalledCLI
}

func NewInstaller(platform Platform, runner process.Runner, downloadURL string, log *logrus.Entry) *Installer {
	return &Installer{
		platform: platform,
		runner:   runner,
		url:      downloadURL,
		log:      log,
	}
}

// EnsureInstalled returns the path of the CLI script for id. A failed
// download or chmod is returned as *InstallFailed and is not retried.
func (i *Installer) EnsureInstalled(ctx context.Context, id model.Identity) (string, error) {
	if id.ProjectRoot == "" {
		return "", errors.New("install codacy cli: empty project root")
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.installed != nil && i.installed.Identity == id && fileExists(i.installed.Path) {
		return i.installed.Path, nil
	}
	i.installed = nil

	path := i.platform.ExecutablePath(id.ProjectRoot)
	if fileExists(path) {
		i.log.WithField("path", path).Debug("found existing codacy cli")
		i.installed = &InstalledCLI{Path: path, Identity: id}
		return path, nil
	}

	i.log.WithField("url", i.url).Info("downloading codacy cli")
	dl := i.platform.Download(i.url)
	dl.Dir = id.ProjectRoot
	res, err := i.runner.Run(ctx, dl)
	if err != nil {
		return "", &InstallFailed{Step: "download", ExitCode: exitCode(err), Err: err}
	}
	if len(res.Stdout) == 0 {
		return "", &InstallFailed{Step: "download", ExitCode: res.ExitCode, Err: errors.New("empty download")}
	}
	if err := writeAtomic(path, res.Stdout); err != nil {
		return "", &InstallFailed{Step: "write", ExitCode: -1, Err: err}
	}

	chmod := i.platform.Chmod(path)
	chmod.Dir = id.ProjectRoot
	if _, err := i.runner.Run(ctx, chmod); err != nil {
		return "", &InstallFailed{Step: "chmod", ExitCode: exitCode(err), Err: err}
	}

	i.log.WithField("path", path).Info("codacy cli installed")
	i.installed = &InstalledCLI{Path: path, Identity: id}
	return path, nil
}

// binding returns the current binding, if any.
func (i *Installer) binding() (InstalledCLI, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.installed == nil {
		return InstalledCLI{}, false
	}
	return *i.installed, true
}

// Reset drops the cached binding.
func (i *Installer) Reset() {
	i.mu.Lock()
	i.installed = nil
	i.mu.Unlock()
}

// writeAtomic writes data next to path and renames it into place so a
// concurrent reader never sees a partial script.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cli-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
