package output

import (
	"os"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Ignore suppresses findings whose subject matches gitignore-style patterns.
// Patterns are matched against the logical path without its leading slash, so
// "zoneA/home/public/**" or "*.tmp" behave as they would in a .gitignore at
// the namespace root. A nil *Ignore matches nothing.
type Ignore struct {
	matcher *ignore.GitIgnore
	source  string
}

// NewIgnore compiles patterns given one per line.
func NewIgnore(lines ...string) *Ignore {
	return &Ignore{matcher: ignore.CompileIgnoreLines(lines...), source: "inline"}
}

// LoadIgnore reads patterns from path. A missing file yields a nil *Ignore
// and no error.
func LoadIgnore(path string) (*Ignore, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	return &Ignore{matcher: ignore.CompileIgnoreLines(lines...), source: path}, nil
}

// Source names where the patterns came from.
func (i *Ignore) Source() string {
	if i == nil {
		return ""
	}
	return i.source
}

// Match reports whether f should be suppressed.
func (i *Ignore) Match(f Finding) bool {
	if i == nil || i.matcher == nil || f.Subject == "" {
		return false
	}
	return i.matcher.MatchesPath(strings.TrimPrefix(f.Subject, "/"))
}
