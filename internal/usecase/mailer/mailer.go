// Package mailer declares the outbound report-delivery hook (spec.md §6).
// Email templating, SMTP/API transport, and delivery retries are outside
// this core's scope; a concrete ReportMailer is wired in by the host
// application.
package mailer

import (
	"context"

	"briefingcore/internal/domain/entity"
)

// ReportMailer delivers a generated Report to its briefing's owner.
// Failures are logged and swallowed by callers — a mail outage never
// fails a brief run (spec.md §4.3 step 5).
type ReportMailer interface {
	Deliver(ctx context.Context, briefing *entity.Briefing, report *entity.Report) error
}
