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

// Package ui gives the user progress feedback on the console while the
// structured log stream goes to zerolog.
package ui

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// 📢 Reporter prints user-facing progress for one run.
type Reporter struct {
	log   zerolog.Logger
	quiet bool
	bar   *pterm.ProgressbarPrinter
}

// 🏗️ NewReporter creates a reporter; quiet suppresses console output (used
// by tests and when stdout is not a terminal).
func NewReporter(ctx context.Context, quiet bool) *Reporter {
	return &Reporter{
		log:   *zerolog.Ctx(ctx),
		quiet: quiet,
	}
}

// 🔍 ScanDone reports the candidate count after traversal.
func (r *Reporter) ScanDone(candidates, skipped int) {
	r.log.Info().Int("candidates", candidates).Int("skipped", skipped).Msg("scan complete")
	if r.quiet {
		return
	}
	msg := fmt.Sprintf("Found %d files", candidates)
	if skipped > 0 {
		msg += fmt.Sprintf(" (%d unreadable, skipped)", skipped)
	}
	pterm.Info.WithPrefix(pterm.Prefix{Text: "🔍"}).Println(msg)
}

// 📊 StartProgress opens the per-file progress bar.
func (r *Reporter) StartProgress(total int) {
	if r.quiet || total == 0 {
		return
	}
	bar, err := pterm.DefaultProgressbar.WithTotal(total).WithTitle("Processing files").Start()
	if err != nil {
		r.log.Debug().Err(err).Msg("progress bar unavailable")
		return
	}
	r.bar = bar
}

// ➕ FileDone advances the progress bar by one file.
func (r *Reporter) FileDone(relPath string) {
	r.log.Debug().Str("path", relPath).Msg("processed")
	if r.bar != nil {
		r.bar.Increment()
	}
}

// 🛑 StopProgress closes the progress bar, if one is running.
func (r *Reporter) StopProgress() {
	if r.bar != nil {
		_, _ = r.bar.Stop()
		r.bar = nil
	}
}

// ⚠️ Warn surfaces a non-fatal error to the user.
func (r *Reporter) Warn(err error) {
	r.log.Warn().Err(err).Msg("non-fatal")
	if r.quiet {
		return
	}
	pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).Println(err.Error())
}

// ✅ Success prints the final success line.
func (r *Reporter) Success(outputPath string, bytesWritten int64, dryRun bool) {
	if r.quiet {
		return
	}
	if dryRun {
		pterm.Info.WithPrefix(pterm.Prefix{Text: "🔎"}).Println("Dry run complete, nothing written")
		return
	}
	bold := color.New(color.Bold).Sprint(outputPath)
	pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}).Printf("Image written to %s (%d bytes)\n", bold, bytesWritten)
}

// ❌ Failure prints the final failure line.
func (r *Reporter) Failure(err error) {
	if r.quiet {
		return
	}
	pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).Println(err.Error())
}
