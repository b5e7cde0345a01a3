// Copyright 2024 icatcheck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"path"
	"strings"
)

// Logical catalog paths and vault paths are always slash separated, so these
// helpers use package path rather than path/filepath. Results carry no
// leading or trailing slash: "/zoneA/home/" and "zoneA/home" compare equal.

// NormalizePath cleans p and drops its outer slashes. The root is "".
func NormalizePath(p string) string {
	p = strings.Trim(path.Clean(p), "/")
	if p == "." {
		return ""
	}
	return p
}

// ParentPath returns the directory holding p, "" for top level entries.
func ParentPath(p string) string {
	dir := path.Dir(NormalizePath(p))
	if dir == "." {
		return ""
	}
	return dir
}

// StripComponents drops the first n components of p and returns the rest in
// normalized form. Stripping more components than p has yields "".
func StripComponents(p string, n int) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	parts := strings.Split(p, "/")
	if n >= len(parts) {
		return ""
	}
	return strings.Join(parts[n:], "/")
}

// RelativeTo returns p relative to base, both normalized. The second result is
// false when p does not lie at or below base.
func RelativeTo(p, base string) (string, bool) {
	p = NormalizePath(p)
	base = NormalizePath(base)
	switch {
	case base == "":
		return p, true
	case p == base:
		return "", true
	case strings.HasPrefix(p, base+"/"):
		return p[len(base)+1:], true
	}
	return "", false
}
