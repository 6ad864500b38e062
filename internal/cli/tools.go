package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type settings struct {
	Runtimes []string `yaml:"runtimes"`
	Tools    []string `yaml:"tools"`
}

// ReadTools lists the tool names configured in .codacy/codacy.yaml, without
// their pinned versions ("eslint@8.57.0" -> "eslint").
func ReadTools(root string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(root, Dir, SettingsFile))
	if err != nil {
		return nil, err
	}
	var s settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", SettingsFile, err)
	}
	tools := make([]string, 0, len(s.Tools))
	for _, t := range s.Tools {
		name, _, _ := strings.Cut(strings.TrimSpace(t), "@")
		if name != "" {
			tools = append(tools, name)
		}
	}
	return tools, nil
}
