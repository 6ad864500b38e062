package process

import (
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

const shellMeta = ";|&$<>`()\n\r"

// Split tokenizes a composed command line into argv. Lines containing shell
// metacharacters are rejected: the result is never handed to a shell.
func Split(line string) ([]string, error) {
	if i := strings.IndexAny(line, shellMeta); i >= 0 {
		return nil, fmt.Errorf("split %q: shell metacharacter %q not allowed", line, line[i])
	}
	p := shellwords.NewParser()
	p.ParseEnv = false
	p.ParseBacktick = false
	args, err := p.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", line, err)
	}
	return args, nil
}
