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

// Package notify reports the final build outcome to an external channel.
// A failed notification never changes the run's own result.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// 📣 Notifier delivers one message about a finished run.
type Notifier interface {
	Notify(ctx context.Context, subject, body, recipient string) error
}

// 🤫 Noop is the notifier used when no recipient is configured.
type Noop struct{}

func (Noop) Notify(ctx context.Context, subject, body, recipient string) error {
	zerolog.Ctx(ctx).Debug().Str("subject", subject).Msg("no recipient, notification skipped")
	return nil
}
