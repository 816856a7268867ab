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

// Package scan walks the source tree and produces the ordered candidate list
// for the build. The walk is lexicographic by relative path, so an unchanged
// tree yields an identical candidate list on every run.
package scan

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaseMax/iso-creator-cli/pkg/errdefs"
	"github.com/BaseMax/iso-creator-cli/pkg/filter"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// 🧩 Entry is one candidate file. Immutable once produced.
type Entry struct {
	AbsPath string // path on the source filesystem
	RelPath string // slash-separated path inside the image
	Size    int64  // size in bytes at walk time
	Hidden  bool   // base name starts with a dot
	Ext     string // lower-cased extension including the dot
}

// 🚶 Scanner walks one source root with one filter policy.
type Scanner struct {
	fsys     afero.Fs
	root     string
	filters  *filter.Set
	failFast bool
}

// 🏗️ NewScanner creates a scanner over fsys rooted at root.
func NewScanner(fsys afero.Fs, root string, filters *filter.Set, failFast bool) *Scanner {
	return &Scanner{
		fsys:     fsys,
		root:     root,
		filters:  filters,
		failFast: failFast,
	}
}

// 🔍 Scan returns the ordered candidate list plus the per-entry errors that
// did not stop the walk. A fatal error (fail-fast escalation, duplicate image
// path) aborts the walk and is returned last.
//
// Directory entries are filtered too: an excluded directory prunes its whole
// subtree. Directories never become candidates themselves; the image paths of
// the files imply them.
func (s *Scanner) Scan(ctx context.Context) ([]Entry, []error, error) {
	log := zerolog.Ctx(ctx)

	var (
		entries  []Entry
		soft     []error
		fatalErr error
	)

	// afero.Walk has no SkipAll; a sentinel error stops the walk instead.
	errStop := errors.New("stop walk")

	// Case-folded image paths seen so far. Two entries folding to the same
	// image path would silently shadow each other on case-insensitive
	// targets, so that is a hard stop.
	seen := make(map[string]string)

	walkErr := afero.Walk(s.fsys, s.root, func(path string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			fatalErr = errors.Errorf("%w: walk cancelled: %v", errdefs.ErrFilesystem, ctx.Err())
			return errStop
		}
		if err != nil {
			perr := errors.Errorf("%w: reading %q: %v", errdefs.ErrFilesystem, path, err)
			if s.failFast {
				fatalErr = perr
				return errStop
			}
			log.Warn().Str("path", path).Err(err).Msg("skipping unreadable entry")
			soft = append(soft, perr)
			return nil
		}
		if path == s.root {
			return nil
		}

		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return errors.Errorf("%w: relativizing %q: %v", errdefs.ErrFilesystem, path, relErr)
		}
		rel = filepath.ToSlash(rel)
		name := filepath.Base(path)

		fe := filter.Entry{
			RelPath: rel,
			Name:    name,
			Ext:     strings.ToLower(filepath.Ext(name)),
			Hidden:  strings.HasPrefix(name, "."),
			Dir:     info.IsDir(),
		}
		if !s.filters.Matches(fe) {
			log.Debug().Str("path", rel).Msg("filtered out")
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		folded := strings.ToLower(rel)
		if prev, dup := seen[folded]; dup {
			fatalErr = errors.Errorf("%w: image paths %q and %q collide on case-insensitive targets",
				errdefs.ErrConfiguration, prev, rel)
			return errStop
		}
		seen[folded] = rel

		entries = append(entries, Entry{
			AbsPath: path,
			RelPath: rel,
			Size:    info.Size(),
			Hidden:  fe.Hidden,
			Ext:     fe.Ext,
		})
		return nil
	})

	if fatalErr != nil {
		return nil, soft, fatalErr
	}
	if walkErr != nil && !errors.Is(walkErr, errStop) {
		return nil, soft, errors.Errorf("%w: walking %q: %v", errdefs.ErrFilesystem, s.root, walkErr)
	}

	log.Debug().Int("candidates", len(entries)).Int("skipped_errors", len(soft)).Msg("scan complete")
	return entries, soft, nil
}
