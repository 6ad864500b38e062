package cli

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"lintdeck/internal/model"
	"lintdeck/internal/notify"
	"lintdeck/internal/pathmap"
	"lintdeck/internal/process"
)

// Options configures a StateMachine.
type Options struct {
	Platform    Platform
	Runner      process.Runner
	DownloadURL string
	Version     string
	// Token returns the current API token; it may return "".
	Token func() string
	Log   *logrus.Entry
}

// Session is the CLI binding handed to an analysis while it runs.
type Session struct {
	Identity model.Identity
	CLIPath  string
	platform Platform
	env      map[string]string
}

// Command builds a CLI invocation running in the project root.
func (s Session) Command(args ...string) process.Command {
	cmd := s.platform.Command(s.CLIPath, args...)
	cmd.Dir = s.Identity.ProjectRoot
	cmd.Env = s.env
	return cmd
}

// Paths returns the path adapter for the CLI's environment.
func (s Session) Paths() pathmap.Adapter { return s.platform.Paths() }

// StateMachine owns the CLI state of one project. Install and init run at
// most once at a time; concurrent Prepare calls share one operation.
type StateMachine struct {
	platform    Platform
	installer   *Installer
	initializer *Initializer
	env         map[string]string
	token       func() string
	log         *logrus.Entry

	mu        sync.RWMutex
	state     State
	identity  model.Identity
	gen       uint64
	cliPath   string
	lastErr   error
	analyzing int

	opMu    sync.Mutex
	flight  singleflight.Group
	changes notify.Topic[State]
}

func NewStateMachine(id model.Identity, opts Options) *StateMachine {
	env := map[string]string{VersionEnv: opts.Version}
	token := opts.Token
	if token == nil {
		token = func() string { return "" }
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("project", id.ProjectRoot)
	return &StateMachine{
		platform:    opts.Platform,
		installer:   NewInstaller(opts.Platform, opts.Runner, opts.DownloadURL, log),
		initializer: NewInitializer(opts.Platform, opts.Runner, env, log),
		env:         env,
		token:       token,
		log:         log,
		identity:    id,
		state:       NotInstalled,
	}
}

// State returns the current state.
func (m *StateMachine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Err returns the error that moved the machine into Error, if any.
func (m *StateMachine) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Identity returns the bound identity.
func (m *StateMachine) Identity() model.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.identity
}

// Subscribe registers fn for every state transition. fn runs on the
// goroutine that made the transition, after the state is visible.
func (m *StateMachine) Subscribe(fn func(State)) (unsubscribe func()) {
	return m.changes.Subscribe(fn)
}

// Rebind attaches a new identity and forces re-evaluation from NotInstalled.
// Results of operations started under the old identity are discarded.
func (m *StateMachine) Rebind(id model.Identity) {
	m.mu.Lock()
	if m.identity == id {
		m.mu.Unlock()
		return
	}
	m.identity = id
	m.gen++
	m.cliPath = ""
	m.lastErr = nil
	m.analyzing = 0
	m.state = NotInstalled
	m.mu.Unlock()

	m.installer.Reset()
	m.log.WithField("identity", id).Info("codacy cli identity changed")
	m.changes.Publish(NotInstalled)
}

// Prepare drives the machine towards Initialized. With autoInstall false it
// only detects an existing installation and configuration. Concurrent
// callers with the same autoInstall value share one underlying operation,
// which is not cancelled when the caller that started it gives up.
func (m *StateMachine) Prepare(ctx context.Context, autoInstall bool) (State, error) {
	key := "detect"
	if autoInstall {
		key = "prepare"
	}
	shared := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(key, func() (any, error) {
		return m.prepare(shared, autoInstall)
	})
	select {
	case res := <-ch:
		return res.Val.(State), res.Err
	case <-ctx.Done():
		return m.State(), ctx.Err()
	}
}

func (m *StateMachine) prepare(ctx context.Context, autoInstall bool) (State, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.RLock()
	id, gen, state := m.identity, m.gen, m.state
	m.mu.RUnlock()

	if state.Ready() {
		return state, nil
	}

	if !autoInstall {
		path := m.platform.ExecutablePath(id.ProjectRoot)
		if !fileExists(path) {
			return state, nil
		}
		next := Installed
		if m.initializer.Initialized(id, m.token()) {
			next = Initialized
		}
		return m.transition(gen, next, path, nil), nil
	}

	m.transition(gen, Installing, "", nil)
	path, err := m.installer.EnsureInstalled(ctx, id)
	if err != nil {
		m.log.WithError(err).Error("codacy cli installation failed")
		return m.transition(gen, Error, "", err), err
	}
	m.transition(gen, Installed, path, nil)

	m.transition(gen, Installing, "", nil)
	if _, err := m.initializer.EnsureInitialized(ctx, id, path, m.token()); err != nil {
		m.log.WithError(err).Error("codacy cli initialization failed")
		return m.transition(gen, Error, "", err), err
	}
	return m.transition(gen, Initialized, "", nil), nil
}

// transition applies next if the identity generation is still gen and
// publishes it. It returns the state after the call.
func (m *StateMachine) transition(gen uint64, next State, cliPath string, cause error) State {
	m.mu.Lock()
	if m.gen != gen {
		cur := m.state
		m.mu.Unlock()
		return cur
	}
	if cliPath != "" {
		m.cliPath = cliPath
	}
	m.lastErr = cause
	changed := m.state != next
	m.state = next
	m.mu.Unlock()

	if changed {
		m.log.WithField("state", next).Debug("codacy cli state changed")
		m.changes.Publish(next)
	}
	return next
}

// Analyze prepares the CLI, marks the machine Analyzing while fn runs and
// settles back to Initialized whatever fn returns.
func (m *StateMachine) Analyze(ctx context.Context, fn func(context.Context, Session) error) error {
	state, err := m.Prepare(ctx, true)
	if err != nil {
		return err
	}
	if !state.Ready() {
		return ErrNotReady
	}

	sess, gen, ok := m.beginAnalysis()
	if !ok {
		return ErrNotReady
	}
	defer m.endAnalysis(gen)
	return fn(ctx, sess)
}

func (m *StateMachine) beginAnalysis() (Session, uint64, bool) {
	m.mu.Lock()
	if !m.state.Ready() || m.cliPath == "" {
		m.mu.Unlock()
		return Session{}, 0, false
	}
	m.analyzing++
	sess := Session{
		Identity: m.identity,
		CLIPath:  m.cliPath,
		platform: m.platform,
		env:      m.env,
	}
	gen := m.gen
	first := m.state != Analyzing
	m.state = Analyzing
	m.mu.Unlock()

	if first {
		m.changes.Publish(Analyzing)
	}
	return sess, gen, true
}

func (m *StateMachine) endAnalysis(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.analyzing--
	settle := m.analyzing == 0 && m.state == Analyzing
	if settle {
		m.state = Initialized
	}
	m.mu.Unlock()

	if settle {
		m.changes.Publish(Initialized)
	}
}
