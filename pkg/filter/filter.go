// Copyright 2025 BaseMax
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

// Package filter decides which filesystem entries make it into the image.
// A Set is built once from the run configuration and is safe to share across
// workers; Matches is a pure function of its inputs.
package filter

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// 🧩 Entry is the filter's view of one filesystem entry. The scanner fills it
// from the walked tree; the filter never touches the filesystem itself.
type Entry struct {
	RelPath string // slash-separated path relative to the source root
	Name    string // base name
	Ext     string // lower-cased extension including the dot, "" for none
	Hidden  bool   // name starts with a dot
	Dir     bool   // directory entry
}

// 🎯 Set is the compiled include/exclude policy for one run.
type Set struct {
	includeExts   map[string]struct{}
	excludeNames  []string
	includeHidden bool
}

// 🏗️ NewSet compiles a policy. Extensions are expected lower-cased with a
// leading dot (config.Validate normalizes them). Exclude entries may be plain
// names, path prefixes, or doublestar globs.
func NewSet(includeExts, excludeNames []string, includeHidden bool) *Set {
	s := &Set{
		excludeNames:  excludeNames,
		includeHidden: includeHidden,
	}
	if len(includeExts) > 0 {
		s.includeExts = make(map[string]struct{}, len(includeExts))
		for _, ext := range includeExts {
			if ext != "" {
				s.includeExts[ext] = struct{}{}
			}
		}
	}
	return s
}

// 🔍 Matches reports whether the entry survives the policy. Rules apply in
// precedence order: hidden check, exclude-name check, extension allow-list.
// The extension rule never applies to directories.
func (s *Set) Matches(e Entry) bool {
	if e.Hidden && !s.includeHidden {
		return false
	}
	if s.excluded(e.RelPath) {
		return false
	}
	if !e.Dir && s.includeExts != nil {
		if _, ok := s.includeExts[e.Ext]; !ok {
			return false
		}
	}
	return true
}

// Excluded when the relative path, any of its segments, or a glob over the
// relative path matches an exclude entry. Prefix matches let "build" also
// cover "build-cache".
func (s *Set) excluded(relPath string) bool {
	if len(s.excludeNames) == 0 {
		return false
	}
	segments := strings.Split(relPath, "/")
	for _, pattern := range s.excludeNames {
		if pattern == "" {
			continue
		}
		if relPath == pattern || strings.HasPrefix(relPath, pattern) {
			return true
		}
		for _, seg := range segments {
			if seg == pattern || strings.HasPrefix(seg, pattern) {
				return true
			}
		}
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}
