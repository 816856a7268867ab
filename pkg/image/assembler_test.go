package image

import (
	"context"
	"testing"

	"github.com/BaseMax/iso-creator-cli/pkg/codec"
	"github.com/BaseMax/iso-creator-cli/pkg/errdefs"
	"github.com/BaseMax/iso-creator-cli/pkg/manifest"
	"github.com/BaseMax/iso-creator-cli/pkg/process"
	"github.com/BaseMax/iso-creator-cli/pkg/scan"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

// fakeWriter records the call sequence and materializes the image on the
// given afero filesystem so the assembler's read-back works.
type fakeWriter struct {
	fsys afero.Fs

	path    string
	label   string
	calls   []string
	content []byte

	failOnFile string

	created   bool
	finalized bool
	aborted   bool
}

func (w *fakeWriter) Create(path, label string, sizeHint int64) error {
	w.path = path
	w.label = label
	w.created = true
	w.calls = append(w.calls, "create")
	return nil
}

func (w *fakeWriter) AddDirectory(dir string) error {
	w.calls = append(w.calls, "dir:"+dir)
	return nil
}

func (w *fakeWriter) AddFile(path string, payload []byte) error {
	if w.failOnFile != "" && path == w.failOnFile {
		return errors.New("device full")
	}
	w.calls = append(w.calls, "file:"+path)
	w.content = append(w.content, payload...)
	return nil
}

func (w *fakeWriter) Finalize() error {
	w.finalized = true
	w.calls = append(w.calls, "finalize")
	return afero.WriteFile(w.fsys, w.path, w.content, 0o644)
}

func (w *fakeWriter) Abort() error {
	w.aborted = true
	if w.path != "" {
		_ = w.fsys.Remove(w.path)
	}
	return nil
}

func testManifest(label string, units ...process.Unit) *manifest.Manifest {
	var total int64
	for _, u := range units {
		total += int64(len(u.Payload))
	}
	return &manifest.Manifest{Units: units, TotalBytes: total, Label: label}
}

func unit(rel, payload string) process.Unit {
	return process.Unit{
		Entry:   scan.Entry{RelPath: rel},
		Payload: []byte(payload),
	}
}

func TestAssembler_WritesInManifestOrder(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := &fakeWriter{fsys: fsys}
	a := NewAssembler(fsys, w, codec.SHA256, codec.None)

	m := testManifest("DATA",
		unit("docs/readme.txt", "hello "),
		unit("docs/sub/deep.txt", "deep "),
		unit("top.txt", "top"),
	)

	res, err := a.Assemble(context.Background(), m, "/out/disc.iso", false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create",
		"dir:docs",
		"dir:docs/sub",
		"file:docs/readme.txt",
		"file:docs/sub/deep.txt",
		"file:top.txt",
		"finalize",
	}, w.calls)
	assert.Equal(t, "DATA", w.label)
	assert.Equal(t, 3, res.Entries)
	assert.Equal(t, int64(len("hello deep top")), res.BytesWritten)
	assert.Equal(t, codec.SHA256.Sum([]byte("hello deep top")), res.ImageDigest)
	assert.False(t, w.aborted)
}

func TestAssembler_FailureAbortsAndRemovesPartialOutput(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := &fakeWriter{fsys: fsys, failOnFile: "b.txt"}
	a := NewAssembler(fsys, w, codec.SHA256, codec.None)

	m := testManifest("DATA", unit("a.txt", "a"), unit("b.txt", "b"), unit("c.txt", "c"))

	_, err := a.Assemble(context.Background(), m, "/out/disc.iso", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrImageWrite))
	assert.True(t, w.aborted, "partial output must be cleaned up")
	assert.False(t, w.finalized)

	exists, _ := afero.Exists(fsys, "/out/disc.iso")
	assert.False(t, exists, "no corrupt file may remain")
}

func TestAssembler_DryRunTouchesNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := &fakeWriter{fsys: fsys}
	a := NewAssembler(fsys, w, codec.SHA256, codec.None)

	m := testManifest("DATA", unit("a.txt", "aaaaa"), unit("b/c.txt", "ccc"))

	res, err := a.Assemble(context.Background(), m, "/out/disc.iso", true)
	require.NoError(t, err)

	assert.False(t, w.created, "dry run must not open the container")
	assert.Equal(t, 2, res.Entries)
	assert.Zero(t, res.BytesWritten)
	assert.Empty(t, res.ImageDigest)

	exists, _ := afero.Exists(fsys, "/out/disc.iso")
	assert.False(t, exists, "output path must stay untouched")
}

func TestAssembler_WrapProducesDecompressibleArchive(t *testing.T) {
	fsys := afero.NewMemMapFs()
	w := &fakeWriter{fsys: fsys}
	a := NewAssembler(fsys, w, codec.SHA256, codec.Gzip)

	m := testManifest("DATA", unit("a.txt", "wrapped payload bytes"))

	res, err := a.Assemble(context.Background(), m, "/out/disc.iso", false)
	require.NoError(t, err)
	require.Equal(t, "/out/disc.iso.gz", res.WrappedPath)

	wrapped, err := afero.ReadFile(fsys, res.WrappedPath)
	require.NoError(t, err)
	restored, err := codec.Gzip.Decompress(wrapped)
	require.NoError(t, err)

	image, err := afero.ReadFile(fsys, "/out/disc.iso")
	require.NoError(t, err)
	assert.Equal(t, image, restored)
}

func TestCollectDirs(t *testing.T) {
	m := testManifest("X",
		unit("a/b/c/file.txt", "x"),
		unit("a/b/other.txt", "y"),
		unit("root.txt", "z"),
	)
	assert.Equal(t, []string{"a", "a/b", "a/b/c"}, collectDirs(m))
}
