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

package main

import (
	"github.com/BaseMax/iso-creator-cli/pkg/codec"
	"github.com/BaseMax/iso-creator-cli/pkg/config"
	"github.com/BaseMax/iso-creator-cli/pkg/notify"
	"github.com/BaseMax/iso-creator-cli/pkg/pipeline"
	"github.com/BaseMax/iso-creator-cli/pkg/ui"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// newRootCmd builds the CLI surface. Flags always win over the optional YAML
// config file; the file only supplies values for flags the user left alone.
func newRootCmd() *cobra.Command {
	var (
		cfg        config.Config
		configFile string
		method     string
		checksum   string
		wrap       string
	)

	cmd := &cobra.Command{
		Use:   "iso-creator",
		Short: "Build an ISO image from a directory tree",
		Long: `iso-creator packs a directory tree into a single ISO-9660 image,
with file filtering, per-file checksums, optional compression, a size budget,
dry-run simulation and email notification.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			fsys := afero.NewOsFs()

			cfg.Method = codec.Method(method)
			cfg.Checksum = codec.Algorithm(checksum)
			cfg.Wrap = codec.Method(wrap)

			if configFile != "" {
				var base config.Config
				if err := config.Load(ctx, fsys, configFile, &base); err != nil {
					return err
				}
				applyFileDefaults(cmd, &cfg, &base)
			}

			if cfg.Verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}

			reporter := ui.NewReporter(ctx, false)

			var notifier notify.Notifier = notify.Noop{}
			if cfg.Email != "" {
				mailer, err := notify.NewMailerFromEnv(ctx)
				if err != nil {
					// Broken SMTP settings must not fail the build.
					zerolog.Ctx(ctx).Warn().Err(err).Msg("notifications disabled")
				} else {
					notifier = mailer
				}
			}

			outcome, err := pipeline.Run(ctx, pipeline.Options{
				Config:   &cfg,
				FS:       fsys,
				Notifier: notifier,
				Reporter: reporter,
			})
			if err != nil {
				reporter.Failure(err)
				return err
			}

			for _, werr := range outcome.Errors {
				reporter.Warn(werr)
			}
			reporter.Success(outcome.OutputPath, outcome.BytesWritten, outcome.DryRun)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Source, "source", "s", "", "source directory (required)")
	f.StringVarP(&cfg.Output, "output", "o", "", "output ISO path, must end in .iso (required)")
	f.StringVarP(&cfg.Label, "label", "l", "", "volume label (default: source directory name)")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "enable debug logging")
	f.BoolVar(&cfg.IncludeHidden, "include-hidden", false, "include hidden files and directories")
	f.StringSliceVar(&cfg.IncludeExts, "include-ext", nil, "only include these extensions (e.g. .txt,.jpg)")
	f.StringSliceVar(&cfg.ExcludeNames, "exclude", nil, "names, prefixes or globs to exclude")
	f.BoolVar(&cfg.Compress, "compress", false, "compress each file before adding it")
	f.StringVar(&method, "compression-method", string(codec.Zip), "per-file compression method (zip, gzip, zstd, xz)")
	f.StringVar(&checksum, "checksum", string(codec.SHA256), "checksum algorithm (md5, sha1, sha256)")
	f.Int64Var(&cfg.MaxSize, "max-size", 0, "abort when the packed payload would exceed this many bytes")
	f.BoolVar(&cfg.DryRun, "dry-run", false, "simulate the build without writing anything")
	f.BoolVar(&cfg.FailFast, "fail-fast", false, "abort on the first unreadable entry")
	f.StringVar(&cfg.Email, "email", "", "send the outcome to this address")
	f.IntVarP(&cfg.Workers, "workers", "w", 0, "worker pool size (default: available CPUs)")
	f.StringVar(&wrap, "wrap", "", "wrap the finished image in a stream archive (gzip, zstd, xz)")
	f.StringVarP(&configFile, "config", "c", "", "YAML config file with defaults")

	return cmd
}

// applyFileDefaults copies file values into cfg for every flag the user did
// not set on the command line.
func applyFileDefaults(cmd *cobra.Command, cfg, base *config.Config) {
	f := cmd.Flags()
	if !f.Changed("source") && base.Source != "" {
		cfg.Source = base.Source
	}
	if !f.Changed("output") && base.Output != "" {
		cfg.Output = base.Output
	}
	if !f.Changed("label") && base.Label != "" {
		cfg.Label = base.Label
	}
	if !f.Changed("verbose") {
		cfg.Verbose = base.Verbose
	}
	if !f.Changed("include-hidden") {
		cfg.IncludeHidden = base.IncludeHidden
	}
	if !f.Changed("include-ext") && len(base.IncludeExts) > 0 {
		cfg.IncludeExts = base.IncludeExts
	}
	if !f.Changed("exclude") && len(base.ExcludeNames) > 0 {
		cfg.ExcludeNames = base.ExcludeNames
	}
	if !f.Changed("compress") {
		cfg.Compress = base.Compress
	}
	if !f.Changed("compression-method") && base.Method != "" {
		cfg.Method = base.Method
	}
	if !f.Changed("checksum") && base.Checksum != "" {
		cfg.Checksum = base.Checksum
	}
	if !f.Changed("max-size") && base.MaxSize != 0 {
		cfg.MaxSize = base.MaxSize
	}
	if !f.Changed("dry-run") {
		cfg.DryRun = base.DryRun
	}
	if !f.Changed("fail-fast") {
		cfg.FailFast = base.FailFast
	}
	if !f.Changed("email") && base.Email != "" {
		cfg.Email = base.Email
	}
	if !f.Changed("workers") && base.Workers != 0 {
		cfg.Workers = base.Workers
	}
	if !f.Changed("wrap") && base.Wrap != "" {
		cfg.Wrap = base.Wrap
	}
}
