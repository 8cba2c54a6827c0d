package gitwatch

import "time"

const (
	// BranchDetached is reported when HEAD holds a commit hash.
	BranchDetached = "detached"

	// BranchUnknown is reported when HEAD cannot be read.
	BranchUnknown = "unknown"
)

// EventKind identifies an event type.
type EventKind string

const (
	KindBranchChange EventKind = "branch_change"
	KindCommit       EventKind = "commit"
)

// Event is delivered on Watcher.Events. It is either a *BranchChangeEvent
// or a *CommitEvent.
type Event interface {
	Kind() EventKind
	Repository() string
	Time() time.Time
}

// BranchChangeEvent reports a transition between two resolvable branches.
type BranchChangeEvent struct {
	RepoPath  string
	OldBranch string
	NewBranch string
	Timestamp time.Time
}

func (e *BranchChangeEvent) Kind() EventKind    { return KindBranchChange }
func (e *BranchChangeEvent) Repository() string { return e.RepoPath }
func (e *BranchChangeEvent) Time() time.Time    { return e.Timestamp }

// CommitEvent reports a newly observed commit hash.
type CommitEvent struct {
	RepoPath string
	Branch   string
	Hash     string
	Message  string

	// OnBranchSwitch is set when the hash changed in the same pass as the
	// branch. HEAD moved to the target branch tip; no commit was created.
	OnBranchSwitch bool

	Timestamp time.Time
}

func (e *CommitEvent) Kind() EventKind    { return KindCommit }
func (e *CommitEvent) Repository() string { return e.RepoPath }
func (e *CommitEvent) Time() time.Time    { return e.Timestamp }

// RepositoryState is the per-repository record the watcher diffs against.
type RepositoryState struct {
	RepoPath           string
	CurrentBranch      string
	CurrentCommit      string
	LastObservedBranch string
	LastObservedCommit string
}

// BranchInfo is a point-in-time view of a repository.
type BranchInfo struct {
	Path       string `json:"path"`
	Branch     string `json:"branch"`
	RemoteURL  string `json:"remote_url,omitempty"`
	LastCommit string `json:"last_commit,omitempty"`
}

// resolvable reports whether a branch value can take part in a transition.
func resolvable(branch string) bool {
	return branch != "" && branch != BranchUnknown
}
