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

// Package pipeline wires the build stages together: scan → filter → process
// (parallel) → manifest → assemble → notify. Data flows strictly left to
// right; a fatal error in any stage short-circuits the rest.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BaseMax/iso-creator-cli/pkg/config"
	"github.com/BaseMax/iso-creator-cli/pkg/errdefs"
	"github.com/BaseMax/iso-creator-cli/pkg/filter"
	"github.com/BaseMax/iso-creator-cli/pkg/image"
	"github.com/BaseMax/iso-creator-cli/pkg/manifest"
	"github.com/BaseMax/iso-creator-cli/pkg/notify"
	"github.com/BaseMax/iso-creator-cli/pkg/process"
	"github.com/BaseMax/iso-creator-cli/pkg/scan"
	"github.com/BaseMax/iso-creator-cli/pkg/ui"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// 🎯 Options carries the pipeline's collaborators. Zero-value fields get
// production defaults: the OS filesystem, the ISO writer, no notification.
type Options struct {
	Config   *config.Config
	FS       afero.Fs
	Writer   image.Writer
	Notifier notify.Notifier
	Reporter *ui.Reporter
}

// 📊 Outcome is the terminal value of one run.
type Outcome struct {
	RunID        string
	Success      bool
	OutputPath   string
	BytesWritten int64
	ImageDigest  string
	WrappedPath  string
	DryRun       bool
	Entries      int
	TotalBytes   int64
	Errors       []error // ordered: per-entry first, fatal last
	Elapsed      time.Duration
}

// 🏃 Run executes the whole pipeline once. The returned Outcome is non-nil
// whenever the run got past configuration validation; the returned error is
// the fatal error, if any. Notification is dispatched exactly once per run,
// success or failure, and its own failure never changes the result.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	start := time.Now()
	runID := uuid.NewString()

	log := zerolog.Ctx(ctx).With().Str("run_id", runID).Logger()
	ctx = log.WithContext(ctx)

	if opts.FS == nil {
		opts.FS = afero.NewOsFs()
	}
	if opts.Writer == nil {
		opts.Writer = image.NewISOWriter()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Noop{}
	}
	if opts.Reporter == nil {
		opts.Reporter = ui.NewReporter(ctx, true)
	}

	cfg := opts.Config
	if cfg == nil {
		return nil, errors.Errorf("%w: no configuration", errdefs.ErrConfiguration)
	}
	if err := cfg.Validate(opts.FS); err != nil {
		return nil, err
	}

	log.Info().Str("run", cfg.String()).Bool("dry_run", cfg.DryRun).Msg("starting build")

	outcome := &Outcome{
		RunID:      runID,
		OutputPath: cfg.Output,
		DryRun:     cfg.DryRun,
	}

	err := build(ctx, opts, outcome)
	outcome.Success = err == nil
	outcome.Elapsed = time.Since(start)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err)
	}

	dispatch(ctx, opts, outcome)

	return outcome, err
}

// Build runs scan through assemble, filling the outcome as it goes.
func build(ctx context.Context, opts Options, outcome *Outcome) error {
	cfg := opts.Config

	filters := filter.NewSet(cfg.IncludeExts, cfg.ExcludeNames, cfg.IncludeHidden)
	scanner := scan.NewScanner(opts.FS, cfg.Source, filters, cfg.FailFast)

	entries, scanErrs, err := scanner.Scan(ctx)
	outcome.Errors = append(outcome.Errors, scanErrs...)
	if err != nil {
		return err
	}
	opts.Reporter.ScanDone(len(entries), len(scanErrs))

	builder := manifest.NewBuilder(cfg.Label, len(entries), cfg.MaxSize)
	pool := process.NewPool(opts.FS, cfg.Workers, cfg.Checksum, cfg.Method, cfg.Compress)

	opts.Reporter.StartProgress(len(entries))
	procErrs, err := pool.Process(ctx, entries, func(i int, unit process.Unit) error {
		if err := builder.Add(i, unit); err != nil {
			return err
		}
		opts.Reporter.FileDone(unit.Entry.RelPath)
		return nil
	})
	opts.Reporter.StopProgress()
	outcome.Errors = append(outcome.Errors, procErrs...)
	if err != nil {
		return err
	}

	m, err := builder.Finalize()
	if err != nil {
		return err
	}
	outcome.Entries = len(m.Units)
	outcome.TotalBytes = m.TotalBytes

	if !cfg.DryRun {
		if err := checkDiskSpace(ctx, opts.FS, cfg.Output, image.SizeHint(m.TotalBytes, len(m.Units))); err != nil {
			return err
		}
	}

	assembler := image.NewAssembler(opts.FS, opts.Writer, cfg.Checksum, cfg.Wrap)
	res, err := assembler.Assemble(ctx, m, cfg.Output, cfg.DryRun)
	if err != nil {
		return err
	}

	outcome.BytesWritten = res.BytesWritten
	outcome.ImageDigest = res.ImageDigest
	outcome.WrappedPath = res.WrappedPath
	return nil
}

// CheckDiskSpace refuses to start an assembly the target volume cannot hold.
// It only applies to the real OS filesystem; in-memory backends have no
// volume to interrogate.
func checkDiskSpace(ctx context.Context, fsys afero.Fs, outputPath string, required int64) error {
	if _, ok := fsys.(*afero.OsFs); !ok {
		return nil
	}

	dir := filepath.Dir(outputPath)
	usage, err := disk.UsageWithContext(ctx, dir)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("path", dir).Msg("could not determine free disk space")
		return nil
	}

	if usage.Free < uint64(required) {
		return errors.Errorf("%w: %s has %d bytes free, image needs %d",
			errdefs.ErrFilesystem, dir, usage.Free, required)
	}

	zerolog.Ctx(ctx).Debug().
		Uint64("free", usage.Free).
		Int64("required", required).
		Msg("disk space preflight passed")
	return nil
}

// Dispatch sends the one notification for the run. Failure here is logged as
// a NotificationError and otherwise ignored.
func dispatch(ctx context.Context, opts Options, outcome *Outcome) {
	recipient := opts.Config.Email
	subject, body := Render(outcome, opts.Config.Label)

	if err := opts.Notifier.Notify(ctx, subject, body, recipient); err != nil {
		nerr := errors.Errorf("%w: %v", errdefs.ErrNotification, err)
		zerolog.Ctx(ctx).Warn().Err(nerr).Msg("notification failed")
	}
}

// 📝 Render formats the notification subject and body for an outcome.
func Render(outcome *Outcome, label string) (subject, body string) {
	status := "successful"
	if !outcome.Success {
		status = "failed"
	}
	subject = fmt.Sprintf("ISO creation %s: %s", status, label)

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s %s in %s.\n", outcome.RunID, status, outcome.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "Output: %s\n", outcome.OutputPath)
	if outcome.DryRun {
		fmt.Fprintf(&b, "Dry run: %d entries, %d bytes would have been packed.\n", outcome.Entries, outcome.TotalBytes)
	} else if outcome.Success {
		fmt.Fprintf(&b, "Wrote %d bytes (%d entries).\n", outcome.BytesWritten, outcome.Entries)
		if outcome.ImageDigest != "" {
			fmt.Fprintf(&b, "Image digest: %s\n", outcome.ImageDigest)
		}
		if outcome.WrappedPath != "" {
			fmt.Fprintf(&b, "Wrapped archive: %s\n", outcome.WrappedPath)
		}
	}
	if len(outcome.Errors) > 0 {
		fmt.Fprintf(&b, "Errors (%d):\n", len(outcome.Errors))
		for _, err := range outcome.Errors {
			fmt.Fprintf(&b, "  - %v\n", err)
		}
	}
	return subject, b.String()
}
