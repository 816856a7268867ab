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

package image

import (
	"context"
	"path"
	"sort"

	"github.com/BaseMax/iso-creator-cli/pkg/codec"
	"github.com/BaseMax/iso-creator-cli/pkg/errdefs"
	"github.com/BaseMax/iso-creator-cli/pkg/manifest"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// 📊 Result is what the assembler reports back to the pipeline.
type Result struct {
	Entries      int    // file records added (or that would be added)
	BytesWritten int64  // size of the written image, 0 in dry-run
	ImageDigest  string // hex digest of the written image, "" in dry-run
	WrappedPath  string // path of the second-pass archive, if requested
}

// 🏭 Assembler sequences the manifest into the Writer, or simulates it.
type Assembler struct {
	fsys afero.Fs
	w    Writer
	algo codec.Algorithm
	wrap codec.Method // None = no second pass
}

// 🏗️ NewAssembler wires the assembler to its collaborators. fsys is used for
// the digest read-back, the wrap pass and never in dry-run.
func NewAssembler(fsys afero.Fs, w Writer, algo codec.Algorithm, wrap codec.Method) *Assembler {
	return &Assembler{fsys: fsys, w: w, algo: algo, wrap: wrap}
}

// 🏃 Assemble writes the whole manifest to outputPath, or reports what would
// be written when dryRun is set. Every add happens in manifest order; the
// first failure aborts the rest and removes any partial output, so outputPath
// either holds a complete image or nothing.
func (a *Assembler) Assemble(ctx context.Context, m *manifest.Manifest, outputPath string, dryRun bool) (Result, error) {
	log := zerolog.Ctx(ctx)
	dirs := collectDirs(m)

	if dryRun {
		log.Info().
			Str("output", outputPath).
			Str("label", m.Label).
			Int("entries", len(m.Units)).
			Int("directories", len(dirs)).
			Int64("total_bytes", m.TotalBytes).
			Msg("dry run, nothing written")
		return Result{Entries: len(m.Units)}, nil
	}

	res, err := a.write(ctx, m, dirs, outputPath)
	if err != nil {
		if aerr := a.w.Abort(); aerr != nil {
			log.Warn().Err(aerr).Msg("cleanup after failed assembly")
		}
		return Result{}, err
	}
	return res, nil
}

func (a *Assembler) write(ctx context.Context, m *manifest.Manifest, dirs []string, outputPath string) (Result, error) {
	log := zerolog.Ctx(ctx)

	hint := SizeHint(m.TotalBytes, len(m.Units))
	if err := a.w.Create(outputPath, m.Label, hint); err != nil {
		return Result{}, errors.Errorf("%w: %v", errdefs.ErrImageWrite, err)
	}

	for _, dir := range dirs {
		if err := a.w.AddDirectory(dir); err != nil {
			return Result{}, errors.Errorf("%w: %v", errdefs.ErrImageWrite, err)
		}
	}

	for _, unit := range m.Units {
		if ctx.Err() != nil {
			return Result{}, errors.Errorf("%w: assembly cancelled: %v", errdefs.ErrImageWrite, ctx.Err())
		}
		if err := a.w.AddFile(unit.Entry.RelPath, unit.Payload); err != nil {
			return Result{}, errors.Errorf("%w: %v", errdefs.ErrImageWrite, err)
		}
		log.Debug().Str("path", unit.Entry.RelPath).Str("digest", unit.Digest).Msg("added")
	}

	if err := a.w.Finalize(); err != nil {
		return Result{}, errors.Errorf("%w: %v", errdefs.ErrImageWrite, err)
	}

	info, err := a.fsys.Stat(outputPath)
	if err != nil {
		return Result{}, errors.Errorf("%w: written image missing: %v", errdefs.ErrImageWrite, err)
	}

	digest, err := a.digestImage(outputPath)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Entries:      len(m.Units),
		BytesWritten: info.Size(),
		ImageDigest:  digest,
	}

	if a.wrap != "" && a.wrap != codec.None {
		wrapped, err := a.wrapImage(outputPath)
		if err != nil {
			return Result{}, err
		}
		res.WrappedPath = wrapped
	}
	return res, nil
}

// The finished image gets the same digest treatment as its contents, so the
// whole artifact can be verified after transfer.
func (a *Assembler) digestImage(outputPath string) (string, error) {
	f, err := a.fsys.Open(outputPath)
	if err != nil {
		return "", errors.Errorf("%w: reading back image: %v", errdefs.ErrImageWrite, err)
	}
	defer f.Close()

	digest, err := a.algo.SumReader(f)
	if err != nil {
		return "", errors.Errorf("%w: digesting image: %v", errdefs.ErrImageWrite, err)
	}
	return digest, nil
}

// Second pass: wrap the finished container in a stream archive next to it.
func (a *Assembler) wrapImage(outputPath string) (string, error) {
	wrapped := outputPath + a.wrap.Extension()

	src, err := a.fsys.Open(outputPath)
	if err != nil {
		return "", errors.Errorf("%w: opening image for wrap: %v", errdefs.ErrImageWrite, err)
	}
	defer src.Close()

	dst, err := a.fsys.Create(wrapped)
	if err != nil {
		return "", errors.Errorf("%w: creating %q: %v", errdefs.ErrImageWrite, wrapped, err)
	}
	defer dst.Close()

	if err := a.wrap.WrapStream(dst, src); err != nil {
		_ = a.fsys.Remove(wrapped)
		return "", errors.Errorf("%w: wrapping image: %v", errdefs.ErrImageWrite, err)
	}
	return wrapped, nil
}

// Unique ancestor directories of every unit, shallowest first.
func collectDirs(m *manifest.Manifest) []string {
	seen := make(map[string]struct{})
	for _, unit := range m.Units {
		dir := path.Dir(unit.Entry.RelPath)
		for dir != "." && dir != "/" {
			seen[dir] = struct{}{}
			dir = path.Dir(dir)
		}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}
