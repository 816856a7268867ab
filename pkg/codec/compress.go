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
	"archive/zip"
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"gitlab.com/tozd/go/errors"
)

// 📦 Method identifies a supported compression codec.
type Method string

const (
	None Method = "none"
	Zip  Method = "zip" // default per-file method
	Gzip Method = "gzip"
	Zstd Method = "zstd"
	XZ   Method = "xz"
)

// 🔍 Validate reports whether the method is one of the supported set.
func (m Method) Validate() error {
	switch m {
	case None, Zip, Gzip, Zstd, XZ:
		return nil
	}
	return errors.Errorf("unsupported compression method %q (want zip, gzip, zstd or xz)", string(m))
}

// Extension returns the filename suffix for the method, including the dot.
func (m Method) Extension() string {
	switch m {
	case Zip:
		return ".zip"
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case XZ:
		return ".xz"
	default:
		return ""
	}
}

// 🗜️ Compress transforms data with the method. name is the archive member
// name, used only by container formats (zip). None returns data unchanged.
func (m Method) Compress(name string, data []byte) ([]byte, error) {
	switch m {
	case None:
		return data, nil
	case Zip:
		return zipCompress(name, data)
	case Gzip:
		return wrapStream(data, func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		})
	case Zstd:
		return wrapStream(data, func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		})
	case XZ:
		return wrapStream(data, func(w io.Writer) (io.WriteCloser, error) {
			return xz.NewWriter(w)
		})
	}
	return nil, errors.Errorf("unsupported compression method %q", string(m))
}

// 🔓 Decompress reverses Compress. For zip the first archive member is
// extracted, matching what Compress produced.
func (m Method) Decompress(data []byte) ([]byte, error) {
	switch m {
	case None:
		return data, nil
	case Zip:
		return zipDecompress(data)
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Errorf("opening gzip stream: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case Zstd:
		r, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Errorf("opening zstd stream: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case XZ:
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Errorf("opening xz stream: %w", err)
		}
		return io.ReadAll(r)
	}
	return nil, errors.Errorf("unsupported compression method %q", string(m))
}

// WrapStream copies from src to dst through the method's stream encoder.
// Used for the second-pass wrap of a finished image, where the payload does
// not fit in memory.
func (m Method) WrapStream(dst io.Writer, src io.Reader) error {
	var (
		w   io.WriteCloser
		err error
	)
	switch m {
	case Gzip:
		w = gzip.NewWriter(dst)
	case Zstd:
		w, err = zstd.NewWriter(dst)
	case XZ:
		w, err = xz.NewWriter(dst)
	default:
		return errors.Errorf("method %q cannot wrap a stream", string(m))
	}
	if err != nil {
		return errors.Errorf("creating %s writer: %w", string(m), err)
	}
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return errors.Errorf("wrapping stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return errors.Errorf("flushing %s stream: %w", string(m), err)
	}
	return nil
}

func wrapStream(data []byte, open func(io.Writer) (io.WriteCloser, error)) ([]byte, error) {
	var buf bytes.Buffer
	w, err := open(&buf)
	if err != nil {
		return nil, errors.Errorf("creating compressor: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, errors.Errorf("compressing: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, errors.Errorf("flushing compressor: %w", err)
	}
	return buf.Bytes(), nil
}

func zipCompress(name string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	if err != nil {
		zw.Close()
		return nil, errors.Errorf("creating zip entry %q: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		zw.Close()
		return nil, errors.Errorf("writing zip entry %q: %w", name, err)
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Errorf("finalizing zip: %w", err)
	}
	return buf.Bytes(), nil
}

func zipDecompress(data []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Errorf("opening zip: %w", err)
	}
	if len(zr.File) == 0 {
		return nil, errors.New("zip archive has no entries")
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		return nil, errors.Errorf("opening zip entry: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
