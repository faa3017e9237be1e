package service

import (
	"context"
	"fmt"

	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/pkg/logger"
)

// PlaceholderResolver renders template strings for a recipient. Column
// reference placeholders are combined with the recipient's contact row to form
// cell addresses, fetched from the spreadsheet in one batch, and substituted
// together with the literal string placeholders.
type PlaceholderResolver struct {
	recipientRepo domain.RecipientRepository
	contactRepo   domain.ContactRepository
	sheets        domain.SpreadsheetGateway
	spreadsheetID string
	logger        logger.Logger
}

// NewPlaceholderResolver creates a resolver bound to one spreadsheet.
func NewPlaceholderResolver(
	recipientRepo domain.RecipientRepository,
	contactRepo domain.ContactRepository,
	sheets domain.SpreadsheetGateway,
	spreadsheetID string,
	logger logger.Logger,
) *PlaceholderResolver {
	return &PlaceholderResolver{
		recipientRepo: recipientRepo,
		contactRepo:   contactRepo,
		sheets:        sheets,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}
}

// Resolve renders input for the given recipient. Reference placeholders are
// read from the recipient's row in one batch; the batch result preserves
// request order so values match their originating keys. Missing cells resolve
// to the empty string.
func (r *PlaceholderResolver) Resolve(ctx context.Context, input string, store *domain.PlaceholderStore, recipientID string) (string, error) {
	if store == nil {
		return "", &domain.ResolutionError{Reason: "no placeholder store"}
	}
	if recipientID == "" {
		return "", &domain.ResolutionError{Reason: "recipient id is empty"}
	}
	if store.Len() == 0 {
		return input, nil
	}

	values := make(map[string]string, store.Len())
	for _, key := range store.Keys() {
		value, _ := store.Get(key)
		if value.Type == domain.PlaceholderValueTypeString {
			values[key] = value.Text()
		}
	}

	referenceKeys := store.ReferenceKeys()
	if len(referenceKeys) > 0 {
		recipient, err := r.recipientRepo.GetByID(ctx, recipientID)
		if err != nil {
			return "", fmt.Errorf("failed to load recipient %s: %w", recipientID, err)
		}
		contact, err := r.contactRepo.GetByID(ctx, recipient.Metadata.ContactID)
		if err != nil {
			return "", fmt.Errorf("failed to load contact for recipient %s: %w", recipientID, err)
		}
		row, err := contact.Row.RowNumber()
		if err != nil {
			return "", &domain.ResolutionError{Reason: "contact has no row", Err: err}
		}

		refs := make([]domain.SpreadsheetReference, 0, len(referenceKeys))
		for _, key := range referenceKeys {
			value, _ := store.Get(key)
			column, err := value.Reference.ColumnLetter()
			if err != nil {
				return "", &domain.ResolutionError{Reason: fmt.Sprintf("placeholder %q is not a column reference", key), Err: err}
			}
			cell, err := domain.NewCellReference(fmt.Sprintf("%s%d", column, row))
			if err != nil {
				return "", &domain.ResolutionError{Reason: fmt.Sprintf("placeholder %q yields an invalid cell", key), Err: err}
			}
			refs = append(refs, cell.WithSheet(contact.SheetTitle))
		}

		ranges, err := r.sheets.ReadBatch(ctx, r.spreadsheetID, refs)
		if err != nil {
			return "", &domain.ResolutionError{Reason: "batch read failed", Err: err}
		}
		if len(ranges) != len(refs) {
			return "", &domain.ResolutionError{Reason: fmt.Sprintf("batch read returned %d ranges for %d cells", len(ranges), len(refs))}
		}
		for i, key := range referenceKeys {
			values[key] = ranges[i].FirstValue()
		}
	}

	rendered, err := store.ReplaceWithValues(input, values)
	if err != nil {
		return "", &domain.ResolutionError{Reason: "substitution failed", Err: err}
	}
	return rendered, nil
}

// ResolveTemplate renders a template's subject and body for the recipient.
func (r *PlaceholderResolver) ResolveTemplate(ctx context.Context, template *domain.Template, recipientID string) (subject, body string, err error) {
	subject, err = r.Resolve(ctx, template.Subject, template.Placeholders, recipientID)
	if err != nil {
		return "", "", err
	}
	body, err = r.Resolve(ctx, template.Body, template.Placeholders, recipientID)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}
