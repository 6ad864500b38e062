package remote

import "time"

// Repository is the remote repository record.
type Repository struct {
	RepositoryID  int64    `json:"repositoryId"`
	Provider      string   `json:"provider"`
	Owner         string   `json:"owner"`
	Name          string   `json:"name"`
	FullPath      string   `json:"fullPath"`
	DefaultBranch *Branch  `json:"defaultBranch"`
	Languages     []string `json:"languages"`
}

// DefaultBranchName returns the default branch name or "".
func (r Repository) DefaultBranchName() string {
	if r.DefaultBranch == nil {
		return ""
	}
	return r.DefaultBranch.Name
}

// Branch is a branch known to the platform.
type Branch struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	IsDefault   bool       `json:"isDefault"`
	IsEnabled   bool       `json:"isEnabled"`
	LastUpdated *time.Time `json:"lastUpdated"`
	LastCommit  string     `json:"lastCommit"`
	BranchType  string     `json:"branchType"`
}

// Commit references an analyzed commit.
type Commit struct {
	SHA             string     `json:"sha"`
	StartedAnalysis *time.Time `json:"startedAnalysis"`
	EndedAnalysis   *time.Time `json:"endedAnalysis"`
}

// RepositoryAnalysis summarizes the latest analysis of a repository.
type RepositoryAnalysis struct {
	Repository         Repository `json:"repository"`
	GradeLetter        string     `json:"gradeLetter"`
	IssuesCount        int        `json:"issuesCount"`
	LOC                int        `json:"loc"`
	LastAnalysedCommit *Commit    `json:"lastAnalysedCommit"`
}

// PullRequestMeta is the pull request as seen by the git provider.
type PullRequestMeta struct {
	ID            int64      `json:"id"`
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	OriginBranch  string     `json:"originBranch"`
	TargetBranch  string     `json:"targetBranch"`
	HeadCommitSHA string     `json:"headCommitSha"`
	BaseCommitSHA string     `json:"commonAncestorCommitSha"`
	UpdatedAt     *time.Time `json:"updated"`
}

// PullRequestAnalysis is a pull request with its analysis summary.
type PullRequestAnalysis struct {
	PullRequest     PullRequestMeta `json:"pullRequest"`
	IsUpToStandards *bool           `json:"isUpToStandards"`
	IsAnalysing     bool            `json:"isAnalysing"`
	NewIssues       *int            `json:"newIssues"`
	FixedIssues     *int            `json:"fixedIssues"`
	DeltaComplexity *int            `json:"deltaComplexity"`
	DeltaClones     *int            `json:"deltaClonesCount"`
}

// PatternInfo describes the rule behind a pull request issue.
type PatternInfo struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Level    string `json:"level"`
}

// CommitIssue is an issue found on a commit.
type CommitIssue struct {
	FilePath    string      `json:"filePath"`
	LineNumber  int         `json:"lineNumber"`
	Message     string      `json:"message"`
	PatternInfo PatternInfo `json:"patternInfo"`
	ToolInfo    struct {
		Name string `json:"name"`
	} `json:"toolInfo"`
}

// PullRequestIssue is an issue added or fixed by a pull request.
type PullRequestIssue struct {
	DeltaType   string      `json:"deltaType"` // "Added" | "Fixed"
	CommitIssue CommitIssue `json:"commitIssue"`
}

// PullRequestFile is the per-file delta of a pull request.
type PullRequestFile struct {
	File struct {
		Path string `json:"path"`
	} `json:"file"`
	Quality struct {
		DeltaNewIssues   int `json:"deltaNewIssues"`
		DeltaFixedIssues int `json:"deltaFixedIssues"`
	} `json:"quality"`
	Coverage struct {
		DeltaCoverage *float64 `json:"deltaCoverage"`
	} `json:"coverage"`
}

// Path returns the file path.
func (f PullRequestFile) Path() string { return f.File.Path }

// Coverage is the coverage summary of a pull request.
type Coverage struct {
	HeadCommitCoverage *float64 `json:"headCommitCoverage"`
	DiffCoverage       *float64 `json:"diffCoverage"`
	DeltaCoverage      *float64 `json:"deltaCoverage"`
}

// IssueThreshold is the issue part of a quality gate.
type IssueThreshold struct {
	Threshold       int    `json:"threshold"`
	MinimumSeverity string `json:"minimumSeverity"`
}

// QualityGates are the pull request quality gate thresholds.
type QualityGates struct {
	IssueThreshold        *IssueThreshold `json:"issueThreshold"`
	DuplicationThreshold  *int            `json:"duplicationThreshold"`
	CoverageThreshold     *float64        `json:"coverageThresholdWithDecimals"`
	DiffCoverageThreshold *int            `json:"diffCoverageThreshold"`
	ComplexityThreshold   *int            `json:"complexityThreshold"`
}

// Pagination carries the cursor of the next page.
type Pagination struct {
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit"`
	Total  int    `json:"total"`
}

// Page is one page of a cursor-paginated list.
type Page[T any] struct {
	Data       []T         `json:"data"`
	Pagination *Pagination `json:"pagination"`
}

// NextCursor returns the cursor of the next page or "" on the last page.
func (p Page[T]) NextCursor() string {
	if p.Pagination == nil {
		return ""
	}
	return p.Pagination.Cursor
}
