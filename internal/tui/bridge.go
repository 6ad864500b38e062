package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"lintdeck/internal/cli"
	"lintdeck/internal/remote"
	"lintdeck/internal/tracker"
)

// Sender is satisfied by *tea.Program.
type Sender interface {
	Send(msg tea.Msg)
}

// Notifier is where the dashboard's change notifications come from.
type Notifier interface {
	Subscribe(fn func(cli.State)) (unsubscribe func())
}

// TrackerNotifier is the tracker's side of the notifications.
type TrackerNotifier interface {
	OnRepositoryState(fn func(tracker.RepositoryState)) (unsubscribe func())
	OnPullRequest(fn func(*tracker.PullRequest)) (unsubscribe func())
	OnRepositoryLoaded(fn func(remote.Repository)) (unsubscribe func())
	OnAnalysisCompleted(fn func(*tracker.PullRequest)) (unsubscribe func())
}

// Bridge forwards state notifications into the program as messages. t may
// be nil. The returned function removes every subscription.
func Bridge(p Sender, m Notifier, t TrackerNotifier) (detach func()) {
	changed := func() { p.Send(StatusChangedMsg{}) }
	unsubs := []func(){
		m.Subscribe(func(cli.State) { changed() }),
	}
	if t != nil {
		unsubs = append(unsubs,
			t.OnRepositoryState(func(tracker.RepositoryState) { changed() }),
			t.OnPullRequest(func(*tracker.PullRequest) { changed() }),
			t.OnRepositoryLoaded(func(remote.Repository) { changed() }),
			t.OnAnalysisCompleted(func(pr *tracker.PullRequest) {
				p.Send(AnalysisCompletedMsg{Number: pr.Number})
			}),
		)
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
