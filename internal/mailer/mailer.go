// Package mailer is the notification collaborator for competitor
// onboarding. The core only hands over a plain-data payload; transport is
// someone else's problem.
package mailer

import (
	"context"

	"github.com/rs/zerolog/log"
)

// CredentialsPayload carries the data an onboarding email needs.
type CredentialsPayload struct {
	Name              string
	Email             string
	TemporaryPassword string
}

// Mailer delivers credentials to a freshly onboarded competitor.
type Mailer interface {
	SendCredentials(ctx context.Context, payload CredentialsPayload) error
}

// LogMailer is the default Mailer: it records the delivery instead of
// sending it. Useful for development and tests; production wires a real
// transport behind the same interface.
type LogMailer struct {
	From    string
	Subject string
}

// NewLogMailer creates a new LogMailer instance.
func NewLogMailer(from, subject string) *LogMailer {
	return &LogMailer{From: from, Subject: subject}
}

// SendCredentials logs the delivery. The temporary password is deliberately
// not logged.
func (m *LogMailer) SendCredentials(_ context.Context, payload CredentialsPayload) error {
	log.Info().
		Str("from", m.From).
		Str("to", payload.Email).
		Str("subject", m.Subject).
		Str("name", payload.Name).
		Msg("Credentials email dispatched")
	return nil
}
