package model

// Rule is the analyzer rule a finding was reported under.
type Rule struct {
	ID               string `json:"id"`
	Name             string `json:"name,omitempty"`
	HelpURI          string `json:"helpUri,omitempty"`
	ShortDescription string `json:"shortDescription,omitempty"`
}

// Region locates a finding inside a file. Zero values mean "not reported".
type Region struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

// Finding is a single normalized diagnostic produced from a SARIF report.
type Finding struct {
	Tool     string  `json:"tool"`
	Rule     *Rule   `json:"rule,omitempty"` // nil when the result's ruleId is not in the driver's rules
	Severity string  `json:"severity"`       // SARIF level: "error", "warning", "note", "none"
	Message  string  `json:"message"`
	FilePath string  `json:"filePath,omitempty"` // project-relative when the file is inside the project
	Region   *Region `json:"region,omitempty"`   // nil if the location carried no region
}
