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

package notify

import (
	"context"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	mail "github.com/wneessen/go-mail"
	"gitlab.com/tozd/go/errors"
)

// SMTP settings come from the environment (optionally seeded from a .env
// file) so credentials stay out of the config file and flags:
//
//	ISO_SMTP_HOST, ISO_SMTP_PORT, ISO_SMTP_USER, ISO_SMTP_PASS, ISO_SMTP_FROM
const (
	envHost = "ISO_SMTP_HOST"
	envPort = "ISO_SMTP_PORT"
	envUser = "ISO_SMTP_USER"
	envPass = "ISO_SMTP_PASS"
	envFrom = "ISO_SMTP_FROM"
)

// 📧 Mailer sends outcome notifications over SMTP.
type Mailer struct {
	host string
	port int
	user string
	pass string
	from string
}

// 🏗️ NewMailerFromEnv builds a mailer from the environment. A missing host
// or sender is a configuration problem surfaced immediately, not at send
// time.
func NewMailerFromEnv(ctx context.Context) (*Mailer, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("no .env file loaded")
	}

	m := &Mailer{
		host: os.Getenv(envHost),
		user: os.Getenv(envUser),
		pass: os.Getenv(envPass),
		from: os.Getenv(envFrom),
		port: 587,
	}
	if p := os.Getenv(envPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, errors.Errorf("parsing %s=%q: %w", envPort, p, err)
		}
		m.port = port
	}
	if m.host == "" {
		return nil, errors.Errorf("%s is not set", envHost)
	}
	if m.from == "" {
		return nil, errors.Errorf("%s is not set", envFrom)
	}
	return m, nil
}

// 📨 Notify sends one plain-text message to recipient.
func (m *Mailer) Notify(ctx context.Context, subject, body, recipient string) error {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return errors.Errorf("setting sender %q: %w", m.from, err)
	}
	if err := msg.To(recipient); err != nil {
		return errors.Errorf("setting recipient %q: %w", recipient, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.user != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.user),
			mail.WithPassword(m.pass),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return errors.Errorf("creating smtp client for %q: %w", m.host, err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Errorf("sending notification to %q: %w", recipient, err)
	}

	zerolog.Ctx(ctx).Info().Str("recipient", recipient).Msg("notification sent")
	return nil
}
