package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/pkg/logger"
)

func resolverFixture(t *testing.T) (*MockRecipientRepository, *MockContactRepository, *MockSpreadsheetGateway, *PlaceholderResolver) {
	t.Helper()
	recipients := &MockRecipientRepository{}
	contacts := &MockContactRepository{}
	sheets := &MockSpreadsheetGateway{}
	resolver := NewPlaceholderResolver(recipients, contacts, sheets, "sheet-1", logger.NewMockLogger())
	return recipients, contacts, sheets, resolver
}

func fixtureRecipient(t *testing.T, row int) (*domain.Recipient, *domain.Contact) {
	t.Helper()
	address, err := domain.NewEmailAddress("alice@example.com")
	require.NoError(t, err)
	recipient, err := domain.NewRecipient("r1", address, "c1")
	require.NoError(t, err)

	rowRef, err := domain.NewRowReferenceFromNumber(row)
	require.NoError(t, err)
	contact := &domain.Contact{ID: "c1", SheetTitle: "Leads", Row: rowRef}
	return recipient, contact
}

func TestResolve_StringAndReferencePlaceholders(t *testing.T) {
	recipients, contacts, sheets, resolver := resolverFixture(t)

	recipient, contact := fixtureRecipient(t, 7)
	recipients.GetByIDFn = func(ctx context.Context, id string) (*domain.Recipient, error) {
		return recipient, nil
	}
	contacts.GetByIDFn = func(ctx context.Context, id string) (*domain.Contact, error) {
		return contact, nil
	}

	store := domain.NewPlaceholderStore()
	require.NoError(t, store.AddStringPlaceholder("salutation", "Mr. Smith"))
	column, err := domain.NewColumnReference("B")
	require.NoError(t, err)
	require.NoError(t, store.AddReferencePlaceholder("colB", column))

	sheets.ReadBatchFn = func(ctx context.Context, spreadsheetID string, refs []domain.SpreadsheetReference) ([]domain.ValueRange, error) {
		require.Len(t, refs, 1)
		assert.Equal(t, domain.ReferenceTypeCell, refs[0].Type)
		assert.Equal(t, "B7", refs[0].Value)
		assert.Equal(t, "Leads", refs[0].SheetTitle)
		return []domain.ValueRange{{Values: [][]string{{"foo"}}}}, nil
	}

	rendered, err := resolver.Resolve(context.Background(), "Dear {salutation}, see {colB}.", store, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Dear Mr. Smith, see foo.", rendered)
	require.Len(t, sheets.ReadBatchCalls, 1)
}

func TestResolve_MissingCellYieldsEmptyString(t *testing.T) {
	recipients, contacts, sheets, resolver := resolverFixture(t)

	recipient, contact := fixtureRecipient(t, 3)
	recipients.GetByIDFn = func(ctx context.Context, id string) (*domain.Recipient, error) { return recipient, nil }
	contacts.GetByIDFn = func(ctx context.Context, id string) (*domain.Contact, error) { return contact, nil }

	store := domain.NewPlaceholderStore()
	column, err := domain.NewColumnReference("C")
	require.NoError(t, err)
	require.NoError(t, store.AddReferencePlaceholder("site", column))

	sheets.ReadBatchFn = func(ctx context.Context, spreadsheetID string, refs []domain.SpreadsheetReference) ([]domain.ValueRange, error) {
		return []domain.ValueRange{{}}, nil
	}

	rendered, err := resolver.Resolve(context.Background(), "visit {site}!", store, "r1")
	require.NoError(t, err)
	assert.Equal(t, "visit !", rendered)
}

func TestResolve_StringOnlySkipsLookups(t *testing.T) {
	recipients, _, sheets, resolver := resolverFixture(t)

	recipients.GetByIDFn = func(ctx context.Context, id string) (*domain.Recipient, error) {
		t.Fatal("string-only stores must not hit the repository")
		return nil, nil
	}

	store := domain.NewPlaceholderStore()
	require.NoError(t, store.AddStringPlaceholder("name", "Alice"))

	rendered, err := resolver.Resolve(context.Background(), "Hi {name}", store, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Hi Alice", rendered)
	assert.Empty(t, sheets.ReadBatchCalls)
}

func TestResolve_Guards(t *testing.T) {
	_, _, _, resolver := resolverFixture(t)

	store := domain.NewPlaceholderStore()
	_, err := resolver.Resolve(context.Background(), "x", store, "")
	var resolution *domain.ResolutionError
	require.ErrorAs(t, err, &resolution)

	_, err = resolver.Resolve(context.Background(), "x", nil, "r1")
	require.ErrorAs(t, err, &resolution)
}

func TestResolve_MissingContactSurfacesNotFound(t *testing.T) {
	recipients, contacts, _, resolver := resolverFixture(t)

	recipient, _ := fixtureRecipient(t, 7)
	recipients.GetByIDFn = func(ctx context.Context, id string) (*domain.Recipient, error) { return recipient, nil }
	contacts.GetByIDFn = func(ctx context.Context, id string) (*domain.Contact, error) {
		return nil, &domain.ErrNotFound{Entity: "contact", ID: id}
	}

	store := domain.NewPlaceholderStore()
	column, err := domain.NewColumnReference("B")
	require.NoError(t, err)
	require.NoError(t, store.AddReferencePlaceholder("colB", column))

	_, err = resolver.Resolve(context.Background(), "{colB}", store, "r1")
	require.Error(t, err)
	var notFound *domain.ErrNotFound
	assert.True(t, errors.As(err, &notFound))
}

func TestResolveTemplate(t *testing.T) {
	_, _, _, resolver := resolverFixture(t)

	store := domain.NewPlaceholderStore()
	require.NoError(t, store.AddStringPlaceholder("name", "Alice"))
	template, err := domain.NewTemplate("t1", domain.TemplateTypeInitial, "Hi {name}", "Hello {name}, welcome.", store)
	require.NoError(t, err)

	subject, body, err := resolver.ResolveTemplate(context.Background(), template, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Hi Alice", subject)
	assert.Equal(t, "Hello Alice, welcome.", body)
}
