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

package errdefs

import (
	"gitlab.com/tozd/go/errors"
)

// 🚨 Error kinds shared by every pipeline stage. Stages wrap these with
// errors.Errorf("%w: ...") so callers can classify with errors.Is.
var (
	ErrConfiguration     = errors.Base("invalid configuration")
	ErrFilesystem        = errors.Base("filesystem error")
	ErrChecksum          = errors.Base("checksum failure")
	ErrCompression       = errors.Base("compression failure")
	ErrSizeLimitExceeded = errors.Base("size limit exceeded")
	ErrImageWrite        = errors.Base("image write failure")
	ErrNotification      = errors.Base("notification failure")
)

// Exit codes reported by the CLI.
const (
	ExitOK            = 0
	ExitConfiguration = 1
	ExitFilesystem    = 2
	ExitSizeLimit     = 3
	ExitImageWrite    = 4
)

// 🔢 ExitCode maps a fatal pipeline error to a process exit code.
// Notification failures are non-fatal and never reach this mapping.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrSizeLimitExceeded):
		return ExitSizeLimit
	case errors.Is(err, ErrImageWrite):
		return ExitImageWrite
	case errors.Is(err, ErrFilesystem):
		return ExitFilesystem
	default:
		return ExitConfiguration
	}
}
