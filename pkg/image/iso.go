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
	"os"

	diskfs "github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/disk"
	"github.com/diskfs/go-diskfs/filesystem"
	"github.com/diskfs/go-diskfs/filesystem/iso9660"
	"gitlab.com/tozd/go/errors"
)

// ISO9660 images are laid out in 2048-byte logical sectors. The size hint is
// padded for directory records and path tables, then rounded up.
const (
	sectorSize      = 2048
	perFileOverhead = 4 * sectorSize
	baseOverhead    = 1 << 20
)

// 💿 ISOWriter writes an ISO-9660 image through go-diskfs.
type ISOWriter struct {
	path  string
	label string
	d     *disk.Disk
	fs    filesystem.FileSystem
}

// 🏗️ NewISOWriter returns an unopened writer; Create opens the container.
func NewISOWriter() *ISOWriter {
	return &ISOWriter{}
}

func (w *ISOWriter) Create(path, label string, sizeHint int64) error {
	size := sizeHint + baseOverhead
	size += sectorSize - size%sectorSize

	d, err := diskfs.Create(path, size, diskfs.Raw, diskfs.SectorSizeDefault)
	if err != nil {
		return errors.Errorf("creating image container at %q: %w", path, err)
	}

	fs, err := d.CreateFilesystem(disk.FilesystemSpec{
		Partition:   0,
		FSType:      filesystem.TypeISO9660,
		VolumeLabel: label,
	})
	if err != nil {
		_ = d.Close()
		_ = os.Remove(path)
		return errors.Errorf("creating iso9660 filesystem: %w", err)
	}

	w.path = path
	w.label = label
	w.d = d
	w.fs = fs
	return nil
}

func (w *ISOWriter) AddDirectory(dir string) error {
	if err := w.fs.Mkdir("/" + dir); err != nil {
		return errors.Errorf("adding directory %q: %w", dir, err)
	}
	return nil
}

func (w *ISOWriter) AddFile(path string, payload []byte) error {
	f, err := w.fs.OpenFile("/"+path, os.O_CREATE|os.O_RDWR)
	if err != nil {
		return errors.Errorf("opening image file %q: %w", path, err)
	}
	if _, err := f.Write(payload); err != nil {
		return errors.Errorf("writing image file %q: %w", path, err)
	}
	return nil
}

func (w *ISOWriter) Finalize() error {
	iso, ok := w.fs.(*iso9660.FileSystem)
	if !ok {
		return errors.New("filesystem is not iso9660")
	}
	if err := iso.Finalize(iso9660.FinalizeOptions{
		RockRidge:        true,
		VolumeIdentifier: w.label,
	}); err != nil {
		return errors.Errorf("finalizing image: %w", err)
	}
	if err := w.d.Close(); err != nil {
		return errors.Errorf("closing image container: %w", err)
	}
	return nil
}

func (w *ISOWriter) Abort() error {
	if w.d != nil {
		_ = w.d.Close()
	}
	if w.path != "" {
		if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
			return errors.Errorf("removing partial image %q: %w", w.path, err)
		}
	}
	return nil
}

// SizeHint estimates the container size for totalBytes of payload across
// entryCount files.
func SizeHint(totalBytes int64, entryCount int) int64 {
	return totalBytes + int64(entryCount)*perFileOverhead
}
