// Package ingress implements the push-side EmailIngress component
// (spec.md §6): inbound mail addressed to a Source's EMAIL routing token
// arrives here directly, bypassing the fetch pipeline entirely.
package ingress

import (
	"context"
	"fmt"
	"log/slog"

	"briefingcore/internal/domain/entity"
	"briefingcore/internal/infra/enricher"
	"briefingcore/internal/repository"
	"briefingcore/internal/usecase/credit"
)

// MailArchiver persists the raw inbound message regardless of the
// sender's credit balance (spec.md §6: "raw mail is archived regardless
// of credit"). Storage of raw mail bodies is outside the Store's
// Source/Item/Briefing schema, so it is a separate narrow collaborator.
type MailArchiver interface {
	Archive(ctx context.Context, sourceID, messageID, rawMail string) error
}

// InboundMail is one push-delivered message addressed to a Source's
// EMAIL routing token.
type InboundMail struct {
	SourceID  string
	MessageID string
	Subject   string
	Markdown  string // body converted to markdown before extraction
	Raw       string
}

// EmailIngress archives inbound mail and, credit permitting, extracts it
// into new NEW items via the enricher.
type EmailIngress struct {
	store    repository.Store
	archiver MailArchiver
	provider enricher.Provider
	credits  *credit.Gate
	logger   *slog.Logger
}

// New builds an EmailIngress.
func New(store repository.Store, archiver MailArchiver, provider enricher.Provider, credits *credit.Gate, logger *slog.Logger) *EmailIngress {
	return &EmailIngress{store: store, archiver: archiver, provider: provider, credits: credits, logger: logger}
}

// Ingest implements spec.md §6's EmailIngress contract.
func (e *EmailIngress) Ingest(ctx context.Context, mail InboundMail) error {
	if err := e.archiver.Archive(ctx, mail.SourceID, mail.MessageID, mail.Raw); err != nil {
		return fmt.Errorf("archiving inbound mail: %w", err)
	}

	source, err := e.store.Sources().Get(ctx, mail.SourceID)
	if err != nil {
		return fmt.Errorf("loading source: %w", err)
	}
	briefing, err := e.store.Briefings().Get(ctx, source.BriefingID)
	if err != nil {
		return fmt.Errorf("loading owning briefing: %w", err)
	}

	hasBalance, err := e.credits.HasBalance(ctx, briefing.UserID)
	if err != nil {
		return fmt.Errorf("checking credit balance: %w", err)
	}
	if !hasBalance {
		e.logger.InfoContext(ctx, "email ingress: no credit balance, archived only", slog.String("source_id", mail.SourceID))
		return nil
	}

	cc := entity.NewCallContext(briefing.UserID)
	extracted, _, err := e.provider.ExtractFromEmail(ctx, cc, mail.Subject, mail.Markdown)
	if err != nil {
		return fmt.Errorf("extractFromEmail: %w", err)
	}

	for i, item := range extracted {
		guid := fmt.Sprintf("%s:%d", mail.MessageID, i)
		exists, err := e.store.Items().ExistsBySourceAndGUID(ctx, mail.SourceID, guid)
		if err != nil {
			e.logger.ErrorContext(ctx, "email ingress: dedup check failed", slog.String("guid", guid), slog.Any("error", err))
			continue
		}
		if exists {
			continue
		}

		newItem := &entity.Item{
			SourceID: mail.SourceID,
			GUID:     guid,
			Title:    item.Title,
			Link:     item.URL,
			Summary:  item.Summary,
			Status:   entity.ItemStatusNew,
		}
		if err := e.store.Items().Create(ctx, newItem); err != nil {
			e.logger.ErrorContext(ctx, "email ingress: inserting item failed", slog.String("guid", guid), slog.Any("error", err))
		}
	}
	return nil
}
