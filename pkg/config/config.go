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

package config

import (
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BaseMax/iso-creator-cli/pkg/codec"
	"github.com/BaseMax/iso-creator-cli/pkg/errdefs"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// 📚 Config is the complete, immutable run configuration. It is built once
// from flags (plus an optional config file) and passed by reference into every
// pipeline stage; nothing mutates it after Validate.
type Config struct {
	Source string `yaml:"source"` // Source directory to pack
	Output string `yaml:"output"` // Output image path, must end in .iso
	Label  string `yaml:"label"`  // Volume label, defaults to base name of Source

	Verbose       bool     `yaml:"verbose"`        // Debug-level logging
	IncludeHidden bool     `yaml:"include_hidden"` // Keep dot-files and dot-directories
	IncludeExts   []string `yaml:"include_exts"`   // Extension allow-list, empty = everything
	ExcludeNames  []string `yaml:"exclude_names"`  // Names or globs to skip

	Compress bool         `yaml:"compress"`           // Compress each file before adding
	Method   codec.Method `yaml:"compression_method"` // Per-file codec when Compress is set

	Checksum codec.Algorithm `yaml:"checksum"` // Digest algorithm for every file

	MaxSize  int64 `yaml:"max_size"`  // Size budget in bytes, 0 = unlimited
	DryRun   bool  `yaml:"dry_run"`   // Simulate without writing anything
	FailFast bool  `yaml:"fail_fast"` // Escalate the first unreadable entry

	Email string `yaml:"email"` // Notification recipient, empty = no notification

	Workers int `yaml:"workers"` // Worker pool size, 0 = GOMAXPROCS

	Wrap codec.Method `yaml:"wrap"` // Optional second-pass wrap of the finished image
}

// 🔍 Validate checks the configuration against fsys, cleans paths and fills
// defaults. It must be called exactly once, before the pipeline starts.
func (cfg *Config) Validate(fsys afero.Fs) error {
	if cfg.Source == "" {
		return errors.Errorf("%w: source directory is required", errdefs.ErrConfiguration)
	}
	if cfg.Output == "" {
		return errors.Errorf("%w: output path is required", errdefs.ErrConfiguration)
	}
	if !strings.HasSuffix(cfg.Output, ".iso") {
		return errors.Errorf("%w: output file must have a .iso extension, got %q", errdefs.ErrConfiguration, cfg.Output)
	}

	cfg.Source = filepath.Clean(cfg.Source)
	cfg.Output = filepath.Clean(cfg.Output)

	info, err := fsys.Stat(cfg.Source)
	if err != nil {
		return errors.Errorf("%w: source %q: %v", errdefs.ErrConfiguration, cfg.Source, err)
	}
	if !info.IsDir() {
		return errors.Errorf("%w: source %q is not a directory", errdefs.ErrConfiguration, cfg.Source)
	}

	if cfg.Label == "" {
		cfg.Label = filepath.Base(cfg.Source)
	}

	if cfg.Checksum == "" {
		cfg.Checksum = codec.SHA256
	}
	if err := cfg.Checksum.Validate(); err != nil {
		return errors.Errorf("%w: %v", errdefs.ErrConfiguration, err)
	}

	if cfg.Compress {
		if cfg.Method == "" {
			cfg.Method = codec.Zip
		}
		if err := cfg.Method.Validate(); err != nil {
			return errors.Errorf("%w: %v", errdefs.ErrConfiguration, err)
		}
	} else {
		cfg.Method = codec.None
	}

	if cfg.Wrap != "" && cfg.Wrap != codec.None {
		if err := cfg.Wrap.Validate(); err != nil {
			return errors.Errorf("%w: wrap: %v", errdefs.ErrConfiguration, err)
		}
		if cfg.Wrap == codec.Zip {
			return errors.Errorf("%w: wrap: zip is not a stream wrap format", errdefs.ErrConfiguration)
		}
	}

	if cfg.MaxSize < 0 {
		return errors.Errorf("%w: max size must be non-negative, got %d", errdefs.ErrConfiguration, cfg.MaxSize)
	}

	if cfg.Workers < 0 {
		return errors.Errorf("%w: workers must be non-negative, got %d", errdefs.ErrConfiguration, cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	// Extensions match with a leading dot, lower-cased.
	for i, ext := range cfg.IncludeExts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.IncludeExts[i] = ext
	}

	return nil
}

// 📝 String returns a short, loggable description of the run.
func (cfg *Config) String() string {
	return cfg.Source + " -> " + cfg.Output + " (" + cfg.Label + ")"
}
