// Package sarif decodes the CLI's SARIF report and flattens it into
// normalized findings.
package sarif

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"lintdeck/internal/model"
)

// Defaults applied to results that omit them.
const (
	DefaultLevel   = "error"
	DefaultMessage = "No message provided"
)

// ParseFailed means the report was missing, unreadable or not SARIF.
type ParseFailed struct {
	Path string
	Err  error
}

func (e *ParseFailed) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse sarif report: %v", e.Err)
	}
	return fmt.Sprintf("parse sarif report %s: %v", e.Path, e.Err)
}

func (e *ParseFailed) Unwrap() error { return e.Err }

// Report is a decoded SARIF log whose runs are kept raw so that one
// malformed run does not discard the others.
type Report struct {
	Version string            `json:"version"`
	Runs    []json.RawMessage `json:"runs"`
}

type run struct {
	Tool struct {
		Driver struct {
			Name  string `json:"name"`
			Rules []rule `json:"rules"`
		} `json:"driver"`
	} `json:"tool"`
	Results []json.RawMessage `json:"results"`
}

type rule struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	HelpURI          string   `json:"helpUri"`
	ShortDescription *message `json:"shortDescription"`
}

type message struct {
	Text string `json:"text"`
}

type result struct {
	RuleID    string     `json:"ruleId"`
	Level     string     `json:"level"`
	Message   message    `json:"message"`
	Locations []location `json:"locations"`
}

type location struct {
	PhysicalLocation *struct {
		ArtifactLocation *struct {
			URI string `json:"uri"`
		} `json:"artifactLocation"`
		Region *region `json:"region"`
	} `json:"physicalLocation"`
}

type region struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// Decode parses the top level of a SARIF document.
func Decode(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, &ParseFailed{Err: err}
	}
	return r, nil
}

// Mapper flattens reports into findings.
type Mapper struct {
	Log *logrus.Entry
}

// Map produces one finding per result location. Runs and results that do
// not decode are skipped.
func (m Mapper) Map(r Report) []model.Finding {
	var out []model.Finding
	for i, raw := range r.Runs {
		var rn run
		if err := json.Unmarshal(raw, &rn); err != nil {
			m.debug(err, "run", i)
			continue
		}
		tool := rn.Tool.Driver.Name
		rules := make(map[string]*model.Rule, len(rn.Tool.Driver.Rules))
		for _, ru := range rn.Tool.Driver.Rules {
			if ru.ID == "" {
				continue
			}
			mr := &model.Rule{ID: ru.ID, Name: ru.Name, HelpURI: ru.HelpURI}
			if ru.ShortDescription != nil {
				mr.ShortDescription = ru.ShortDescription.Text
			}
			rules[ru.ID] = mr
		}

		for j, rawResult := range rn.Results {
			var res result
			if err := json.Unmarshal(rawResult, &res); err != nil {
				m.debug(err, "result", j)
				continue
			}
			out = append(out, flatten(tool, rules[res.RuleID], res)...)
		}
	}
	return out
}

func flatten(tool string, ru *model.Rule, res result) []model.Finding {
	level := strings.TrimSpace(res.Level)
	if level == "" {
		level = DefaultLevel
	}
	msg := strings.TrimSpace(res.Message.Text)
	if msg == "" {
		msg = DefaultMessage
	}

	findings := make([]model.Finding, 0, len(res.Locations))
	for _, loc := range res.Locations {
		f := model.Finding{
			Tool:     tool,
			Rule:     ru,
			Severity: level,
			Message:  msg,
		}
		if pl := loc.PhysicalLocation; pl != nil {
			if pl.ArtifactLocation != nil {
				f.FilePath = pl.ArtifactLocation.URI
			}
			if pl.Region != nil {
				f.Region = &model.Region{
					StartLine:   pl.Region.StartLine,
					StartColumn: pl.Region.StartColumn,
					EndLine:     pl.Region.EndLine,
					EndColumn:   pl.Region.EndColumn,
				}
			}
		}
		findings = append(findings, f)
	}
	return findings
}

func (m Mapper) debug(err error, kind string, index int) {
	if m.Log == nil {
		return
	}
	m.Log.WithError(err).WithField(kind, index).Debug("skipping malformed sarif entry")
}
