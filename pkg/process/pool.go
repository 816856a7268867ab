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

// Package process turns candidates into processed units on a bounded worker
// pool. Results land in a slot per candidate index, so the output order is
// the candidate order for every worker count.
package process

import (
	"context"

	"github.com/BaseMax/iso-creator-cli/pkg/codec"
	"github.com/BaseMax/iso-creator-cli/pkg/errdefs"
	"github.com/BaseMax/iso-creator-cli/pkg/scan"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🧩 Unit is one candidate after checksum and compression. Immutable.
type Unit struct {
	Entry     scan.Entry
	Algorithm codec.Algorithm
	Digest    string // hex digest of the original content
	Payload   []byte // compressed bytes, or the original bytes for Method none
	Method    codec.Method
}

// 📬 Sink receives each finished unit at its candidate index. Implementations
// must be safe for concurrent calls; a non-nil return cancels the pool.
type Sink func(index int, unit Unit) error

// 🏊 Pool is the bounded per-file processing stage.
type Pool struct {
	fsys     afero.Fs
	workers  int
	algo     codec.Algorithm
	method   codec.Method
	compress bool
}

// 🏗️ NewPool creates a pool with the given concurrency degree. workers must
// be at least 1 (config.Validate defaults it to the hardware parallelism).
func NewPool(fsys afero.Fs, workers int, algo codec.Algorithm, method codec.Method, compress bool) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		fsys:     fsys,
		workers:  workers,
		algo:     algo,
		method:   method,
		compress: compress,
	}
}

// 🏃 Process runs every entry through read → checksum → compress and hands
// each unit to sink at its candidate index. Per-entry read and transform
// failures are collected and returned in candidate order; they do not cancel
// sibling workers. A sink error or context cancellation is fatal: the pool
// drains and returns it, and nothing is handed downstream.
func (p *Pool) Process(ctx context.Context, entries []scan.Entry, sink Sink) ([]error, error) {
	log := zerolog.Ctx(ctx)

	perEntry := make([]error, len(entries))

	indexes := make(chan int, len(entries))
	for i := range entries {
		indexes <- i
	}
	close(indexes)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			for i := range indexes {
				if gctx.Err() != nil {
					return errors.Errorf("worker cancelled: %w", gctx.Err())
				}
				unit, err := p.one(entries[i])
				if err != nil {
					// Terminal for this file only.
					log.Warn().Str("path", entries[i].RelPath).Err(err).Msg("skipping file")
					perEntry[i] = err
					continue
				}
				if err := sink(i, unit); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []error
	for _, err := range perEntry {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs, nil
}

// One entry: read the full content, digest it, then compress or pass through.
func (p *Pool) one(entry scan.Entry) (Unit, error) {
	data, err := afero.ReadFile(p.fsys, entry.AbsPath)
	if err != nil {
		return Unit{}, errors.Errorf("%w: reading %q: %v", errdefs.ErrFilesystem, entry.AbsPath, err)
	}

	digest := p.algo.Sum(data)

	payload := data
	method := codec.None
	if p.compress && p.method != codec.None {
		payload, err = p.method.Compress(entry.RelPath, data)
		if err != nil {
			return Unit{}, errors.Errorf("%w: compressing %q: %v", errdefs.ErrCompression, entry.RelPath, err)
		}
		method = p.method
	}

	return Unit{
		Entry:     entry,
		Algorithm: p.algo,
		Digest:    digest,
		Payload:   payload,
		Method:    method,
	}, nil
}
