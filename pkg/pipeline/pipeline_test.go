package pipeline

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/BaseMax/iso-creator-cli/pkg/codec"
	"github.com/BaseMax/iso-creator-cli/pkg/config"
	"github.com/BaseMax/iso-creator-cli/pkg/errdefs"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

// memWriter materializes the image on an afero filesystem.
type memWriter struct {
	fsys       afero.Fs
	path       string
	content    []byte
	created    bool
	failOnFile string
}

func (w *memWriter) Create(path, label string, sizeHint int64) error {
	w.path = path
	w.created = true
	return nil
}

func (w *memWriter) AddDirectory(dir string) error { return nil }

func (w *memWriter) AddFile(path string, payload []byte) error {
	if w.failOnFile != "" && path == w.failOnFile {
		return errors.New("device full")
	}
	w.content = append(w.content, payload...)
	return nil
}

func (w *memWriter) Finalize() error {
	return afero.WriteFile(w.fsys, w.path, w.content, 0o644)
}

func (w *memWriter) Abort() error {
	if w.path != "" {
		_ = w.fsys.Remove(w.path)
	}
	return nil
}

// recordingNotifier counts deliveries.
type recordingNotifier struct {
	mu       sync.Mutex
	count    int
	subjects []string
	fail     bool
}

func (n *recordingNotifier) Notify(ctx context.Context, subject, body, recipient string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
	n.subjects = append(n.subjects, subject)
	if n.fail {
		return errors.New("smtp down")
	}
	return nil
}

// denyFs fails Open for one path, simulating a permission-denied read.
type denyFs struct {
	afero.Fs
	deny string
}

func (f *denyFs) Open(name string) (afero.File, error) {
	if name == f.deny {
		return nil, os.ErrPermission
	}
	return f.Fs.Open(name)
}

func scenarioFs(t *testing.T) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/src/a.txt", []byte("0123456789"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/src/b.jpg", []byte("01234567890123456789"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/src/.hidden", []byte("01234"), 0o644))
	return fsys
}

func run(t *testing.T, fsys afero.Fs, cfg *config.Config) (*Outcome, *memWriter, *recordingNotifier, error) {
	t.Helper()
	w := &memWriter{fsys: fsys}
	n := &recordingNotifier{}
	outcome, err := Run(context.Background(), Options{
		Config:   cfg,
		FS:       fsys,
		Writer:   w,
		Notifier: n,
	})
	return outcome, w, n, err
}

func TestRun_DefaultFilters(t *testing.T) {
	fsys := scenarioFs(t)
	outcome, _, n, err := run(t, fsys, &config.Config{Source: "/src", Output: "/out/disc.iso"})
	require.NoError(t, err)

	assert.True(t, outcome.Success)
	assert.Equal(t, 2, outcome.Entries, "a.txt and b.jpg, .hidden excluded")
	assert.Equal(t, int64(30), outcome.TotalBytes)
	assert.Empty(t, outcome.Errors)
	assert.Equal(t, 1, n.count, "exactly one notification per run")

	exists, _ := afero.Exists(fsys, "/out/disc.iso")
	assert.True(t, exists)
}

func TestRun_ExtensionFilter(t *testing.T) {
	fsys := scenarioFs(t)
	outcome, _, _, err := run(t, fsys, &config.Config{
		Source:      "/src",
		Output:      "/out/disc.iso",
		IncludeExts: []string{".txt"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.Entries)
	assert.Equal(t, int64(10), outcome.TotalBytes)
}

func TestRun_SizeBudgetAborts(t *testing.T) {
	fsys := scenarioFs(t)
	outcome, _, n, err := run(t, fsys, &config.Config{
		Source:  "/src",
		Output:  "/out/disc.iso",
		MaxSize: 15,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrSizeLimitExceeded))
	assert.Equal(t, errdefs.ExitSizeLimit, errdefs.ExitCode(err))

	assert.False(t, outcome.Success)
	assert.Equal(t, 1, n.count, "failed runs notify too")

	exists, _ := afero.Exists(fsys, "/out/disc.iso")
	assert.False(t, exists, "no output file on a fatal error")
}

func TestRun_DryRun(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, afero.WriteFile(fsys, "/src/"+name+".dat", make([]byte, 200), 0o644))
	}

	outcome, w, _, err := run(t, fsys, &config.Config{
		Source: "/src",
		Output: "/out/disc.iso",
		DryRun: true,
	})
	require.NoError(t, err)

	assert.True(t, outcome.DryRun)
	assert.True(t, outcome.Success)
	assert.Equal(t, 5, outcome.Entries)
	assert.Equal(t, int64(1000), outcome.TotalBytes)
	assert.Zero(t, outcome.BytesWritten)
	assert.False(t, w.created, "dry run must not open the container")

	exists, _ := afero.Exists(fsys, "/out/disc.iso")
	assert.False(t, exists, "output path untouched")
}

func TestRun_UnreadableFileIsNonFatal(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, name := range []string{"a", "b", "c", "d", "locked"} {
		require.NoError(t, afero.WriteFile(fsys, "/src/"+name+".txt", []byte("data"), 0o644))
	}

	outcome, _, _, err := run(t, &denyFs{Fs: fsys, deny: "/src/locked.txt"}, &config.Config{
		Source: "/src",
		Output: "/out/disc.iso",
	})
	require.NoError(t, err, "per-file errors never fail the run")

	assert.True(t, outcome.Success)
	assert.Equal(t, 4, outcome.Entries)
	require.Len(t, outcome.Errors, 1)
	assert.True(t, errors.Is(outcome.Errors[0], errdefs.ErrFilesystem))
	assert.Equal(t, errdefs.ExitOK, errdefs.ExitCode(err))
}

func TestRun_ImageWriteFailureCleansUp(t *testing.T) {
	fsys := scenarioFs(t)
	w := &memWriter{fsys: fsys, failOnFile: "b.jpg"}
	n := &recordingNotifier{}

	outcome, err := Run(context.Background(), Options{
		Config:   &config.Config{Source: "/src", Output: "/out/disc.iso"},
		FS:       fsys,
		Writer:   w,
		Notifier: n,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrImageWrite))
	assert.Equal(t, errdefs.ExitImageWrite, errdefs.ExitCode(err))
	assert.False(t, outcome.Success)

	exists, _ := afero.Exists(fsys, "/out/disc.iso")
	assert.False(t, exists)
}

func TestRun_InvalidConfig(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_, err := Run(context.Background(), Options{
		Config: &config.Config{Source: "/missing", Output: "/out/disc.img"},
		FS:     fsys,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errdefs.ErrConfiguration))
	assert.Equal(t, errdefs.ExitConfiguration, errdefs.ExitCode(err))
}

func TestRun_NotificationFailureDoesNotChangeResult(t *testing.T) {
	fsys := scenarioFs(t)
	w := &memWriter{fsys: fsys}
	n := &recordingNotifier{fail: true}

	outcome, err := Run(context.Background(), Options{
		Config:   &config.Config{Source: "/src", Output: "/out/disc.iso"},
		FS:       fsys,
		Writer:   w,
		Notifier: n,
	})
	require.NoError(t, err, "notification failure is never fatal")
	assert.True(t, outcome.Success)
	assert.Equal(t, 1, n.count)
}

func TestRun_CompressedRoundTrip(t *testing.T) {
	fsys := afero.NewMemMapFs()
	content := []byte("content that compresses content that compresses")
	require.NoError(t, afero.WriteFile(fsys, "/src/a.txt", content, 0o644))

	w := &memWriter{fsys: fsys}
	outcome, err := Run(context.Background(), Options{
		Config: &config.Config{
			Source:   "/src",
			Output:   "/out/disc.iso",
			Compress: true,
			Method:   codec.Zstd,
		},
		FS:     fsys,
		Writer: w,
	})
	require.NoError(t, err)
	require.True(t, outcome.Success)

	restored, err := codec.Zstd.Decompress(w.content)
	require.NoError(t, err)
	assert.Equal(t, content, restored)
}

func TestRun_DeterministicAcrossWorkerCounts(t *testing.T) {
	build := func(workers int) *Outcome {
		fsys := afero.NewMemMapFs()
		for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			require.NoError(t, afero.WriteFile(fsys, "/src/"+name+".txt", []byte(name+name), 0o644))
		}
		outcome, _, _, err := run(t, fsys, &config.Config{
			Source:  "/src",
			Output:  "/out/disc.iso",
			Workers: workers,
		})
		require.NoError(t, err)
		return outcome
	}

	one := build(1)
	eight := build(8)
	assert.Equal(t, one.TotalBytes, eight.TotalBytes)
	assert.Equal(t, one.Entries, eight.Entries)
	assert.Equal(t, one.ImageDigest, eight.ImageDigest, "image content independent of worker count")
}

func TestRender(t *testing.T) {
	outcome := &Outcome{
		RunID:        "run-1",
		Success:      true,
		OutputPath:   "/out/disc.iso",
		BytesWritten: 42,
		Entries:      3,
	}
	subject, body := Render(outcome, "HOLIDAY")
	assert.Equal(t, "ISO creation successful: HOLIDAY", subject)
	assert.Contains(t, body, "/out/disc.iso")
	assert.Contains(t, body, "42 bytes")

	outcome.Success = false
	subject, _ = Render(outcome, "HOLIDAY")
	assert.Equal(t, "ISO creation failed: HOLIDAY", subject)
}
