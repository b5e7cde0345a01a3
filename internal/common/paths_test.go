package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                     "",
		"/":                    "",
		"//":                   "",
		".":                    "",
		"/tempZone":            "tempZone",
		"/tempZone/home/":      "tempZone/home",
		"/vault//alice///dir/": "vault/alice/dir",
		"/vault/./alice":       "vault/alice",
		"/vault/x/../alice":    "vault/alice",
		"../escape":            "../escape",
	}
	for input, want := range tests {
		assert.Equal(t, want, NormalizePath(input), "NormalizePath(%q)", input)
	}
}

func TestParentPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                         "",
		"/":                        "",
		"/f":                       "",
		"/vault/alice/f":           "vault/alice",
		"/vault/alice/dir/":        "vault/alice",
		"vault//alice//dir//f.txt": "vault/alice/dir",
	}
	for input, want := range tests {
		assert.Equal(t, want, ParentPath(input), "ParentPath(%q)", input)
	}
}

func TestStripComponents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"zone_home_user", "/zoneA/home/alice/dir", 2, "alice/dir"},
		{"zone_home_only", "/zoneA/home", 2, ""},
		{"zone_root", "/zoneA", 2, ""},
		{"root", "/", 2, ""},
		{"trailing_slash", "/zoneA/home/alice/", 2, "alice"},
		{"strip_none", "/zoneA/home", 0, "zoneA/home"},
		{"double_slash", "/zoneA//home//alice", 2, "alice"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StripComponents(tt.input, tt.n), "StripComponents(%q, %d)", tt.input, tt.n)
		})
	}
}

func TestRelativeTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		path   string
		base   string
		want   string
		wantOK bool
	}{
		{"below", "/vault/alice/dir", "/vault", "alice/dir", true},
		{"equal", "/vault", "/vault", "", true},
		{"base_trailing_slash", "/vault/alice", "/vault/", "alice", true},
		{"sibling_prefix", "/vault2/alice", "/vault", "", false},
		{"outside", "/other/alice", "/vault", "", false},
		{"dotdot_escape", "/vault/../other/x", "/vault", "", false},
		{"empty_base", "/a/b", "", "a/b", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := RelativeTo(tt.path, tt.base)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
