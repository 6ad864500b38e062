package cli

// State is the lifecycle state of a project's CLI binding.
type State int

const (
	NotInstalled State = iota
	Installing
	Installed
	Initialized
	Analyzing
	Error
)

func (s State) String() string {
	switch s {
	case NotInstalled:
		return "NotInstalled"
	case Installing:
		return "Installing"
	case Installed:
		return "Installed"
	case Initialized:
		return "Initialized"
	case Analyzing:
		return "Analyzing"
	case Error:
		return "Error"
	default:
		return "State(?)"
	}
}

// Ready reports whether analyses can run in this state.
func (s State) Ready() bool {
	return s == Initialized || s == Analyzing
}
