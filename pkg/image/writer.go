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

// Package image feeds the build manifest to the image-authoring backend, or
// simulates the whole run in dry-run mode. The on-disk ISO byte layout lives
// behind the Writer interface; this package only sequences the calls.
package image

// 💿 Writer is the image-authoring collaborator. Implementations own the
// container handle and any partial output on disk; after a failed call the
// assembler invokes Abort exactly once.
type Writer interface {
	// Create opens a new image container at path with the given volume
	// label. sizeHint is the expected payload size in bytes.
	Create(path, label string, sizeHint int64) error

	// AddDirectory registers one directory, parents first.
	AddDirectory(dir string) error

	// AddFile adds one file record with its full payload.
	AddFile(path string, payload []byte) error

	// Finalize lays out and writes the container.
	Finalize() error

	// Abort releases the container handle and removes any partial output.
	Abort() error
}
