package tracker

// RepositoryState is the tracker's view of the remote repository.
type RepositoryState int

const (
	Initializing RepositoryState = iota
	NeedsAuthentication
	NoGitRepository
	Loaded
	NoRepository
)

func (s RepositoryState) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case NeedsAuthentication:
		return "NeedsAuthentication"
	case NoGitRepository:
		return "NoGitRepository"
	case Loaded:
		return "Loaded"
	case NoRepository:
		return "NoRepository"
	default:
		return "RepositoryState(?)"
	}
}

// PullRequestState says whether a remote pull request is bound to the
// current branch.
type PullRequestState int

const (
	NoPullRequest PullRequestState = iota
	PullRequestLoaded
)

func (s PullRequestState) String() string {
	if s == PullRequestLoaded {
		return "Loaded"
	}
	return "NoPullRequest"
}

// BranchState classifies the checked-out branch. It is derived from the
// repository and pull request state on every read.
type BranchState int

const (
	OnUnknownBranch BranchState = iota
	OnPullRequestBranch
	OnAnalysedBranch
	OnAnalysedBranchOutdated
)

func (s BranchState) String() string {
	switch s {
	case OnPullRequestBranch:
		return "OnPullRequestBranch"
	case OnAnalysedBranch:
		return "OnAnalysedBranch"
	case OnAnalysedBranchOutdated:
		return "OnAnalysedBranchOutdated"
	default:
		return "OnUnknownBranch"
	}
}
