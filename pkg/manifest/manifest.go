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

// Package manifest assembles processed units into the ordered build manifest
// and enforces the optional size budget.
package manifest

import (
	"sync"

	"github.com/BaseMax/iso-creator-cli/pkg/errdefs"
	"github.com/BaseMax/iso-creator-cli/pkg/process"
	"gitlab.com/tozd/go/errors"
)

// 📜 Manifest is the finalized, ordered list of units destined for the image.
// Unit order is candidate order; TotalBytes is the sum of payload lengths.
type Manifest struct {
	Units      []process.Unit
	TotalBytes int64
	Label      string
}

// 🏗️ Builder accumulates units by candidate index. Each index is written by
// exactly one worker, so slot writes need no lock; the mutex gates only the
// running total and its budget check.
type Builder struct {
	label    string
	maxBytes int64 // 0 = unlimited

	slots  []process.Unit
	filled []bool

	mu    sync.Mutex
	total int64
	done  bool
}

// 🏗️ NewBuilder creates a builder for a run of capacity candidates.
func NewBuilder(label string, capacity int, maxBytes int64) *Builder {
	return &Builder{
		label:    label,
		maxBytes: maxBytes,
		slots:    make([]process.Unit, capacity),
		filled:   make([]bool, capacity),
	}
}

// ➕ Add places unit at its candidate index and accounts its payload against
// the budget. Returns SizeLimitExceeded as soon as the running total would
// pass the budget, without waiting for the rest of the tree.
func (b *Builder) Add(index int, unit process.Unit) error {
	n := int64(len(unit.Payload))

	b.mu.Lock()
	if b.maxBytes > 0 && b.total+n > b.maxBytes {
		b.mu.Unlock()
		return errors.Errorf("%w: %d bytes over the %d byte budget after %q",
			errdefs.ErrSizeLimitExceeded, b.total+n-b.maxBytes, b.maxBytes, unit.Entry.RelPath)
	}
	b.total += n
	b.mu.Unlock()

	b.slots[index] = unit
	b.filled[index] = true
	return nil
}

// 🔒 Finalize compacts the filled slots in index order into an immutable
// Manifest. The builder must not be reused afterwards.
func (b *Builder) Finalize() (*Manifest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return nil, errors.New("manifest already finalized")
	}
	b.done = true

	units := make([]process.Unit, 0, len(b.slots))
	var total int64
	for i, unit := range b.slots {
		if !b.filled[i] {
			continue
		}
		units = append(units, unit)
		total += int64(len(unit.Payload))
	}

	return &Manifest{
		Units:      units,
		TotalBytes: total,
		Label:      b.label,
	}, nil
}
