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
	"context"

	"github.com/BaseMax/iso-creator-cli/pkg/errdefs"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 📂 Load reads a YAML config file into cfg. Values already set in cfg are
// overwritten by values present in the file; callers that want flags to win
// load the file into a zero Config first and merge flag overrides afterwards.
func Load(ctx context.Context, fsys afero.Fs, path string, cfg *Config) error {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return errors.Errorf("%w: reading config file %q: %v", errdefs.ErrConfiguration, path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Errorf("%w: parsing config file %q: %v", errdefs.ErrConfiguration, path, err)
	}

	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("loaded config file")
	return nil
}
