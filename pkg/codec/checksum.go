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

package codec

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	"gitlab.com/tozd/go/errors"
)

// 🔐 Algorithm identifies a supported checksum digest.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256" // default, strongest of the three
)

// 🔍 Validate reports whether the algorithm is one of the supported set.
func (a Algorithm) Validate() error {
	switch a {
	case MD5, SHA1, SHA256:
		return nil
	}
	return errors.Errorf("unsupported checksum algorithm %q (want md5, sha1 or sha256)", string(a))
}

func (a Algorithm) hasher() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	default:
		return sha256.New()
	}
}

// 🧮 Sum returns the hex digest of data. Safe for concurrent use; each call
// owns its hash state.
func (a Algorithm) Sum(data []byte) string {
	h := a.hasher()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// 🧮 SumReader returns the hex digest of everything readable from r.
func (a Algorithm) SumReader(r io.Reader) (string, error) {
	h := a.hasher()
	if _, err := io.Copy(h, r); err != nil {
		return "", errors.Errorf("hashing stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
