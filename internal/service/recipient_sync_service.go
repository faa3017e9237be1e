package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/phleudt/mailscheduler/config"
	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/pkg/logger"
)

// RecipientSyncService reads the recipient rows from the spreadsheet, applies
// the configured sending criteria and upserts Contact and Recipient pairs.
// Re-synchronization never overwrites a recipient's write-once initial
// contact date.
type RecipientSyncService struct {
	recipientRepo domain.RecipientRepository
	contactRepo   domain.ContactRepository
	sheets        domain.SpreadsheetGateway
	spreadsheetID string
	sheetTitle    string
	mapping       config.ColumnMapping
	criteria      config.SendingCriteria
	pattern       *regexp.Regexp
	logger        logger.Logger
}

// NewRecipientSyncService creates a synchronizer. A COLUMN_PATTERN_MATCH
// criteria compiles its pattern eagerly.
func NewRecipientSyncService(
	recipientRepo domain.RecipientRepository,
	contactRepo domain.ContactRepository,
	sheets domain.SpreadsheetGateway,
	spreadsheetID string,
	sheetTitle string,
	mapping config.ColumnMapping,
	criteria config.SendingCriteria,
	logger logger.Logger,
) (*RecipientSyncService, error) {
	s := &RecipientSyncService{
		recipientRepo: recipientRepo,
		contactRepo:   contactRepo,
		sheets:        sheets,
		spreadsheetID: spreadsheetID,
		sheetTitle:    sheetTitle,
		mapping:       mapping,
		criteria:      criteria,
		logger:        logger,
	}
	if criteria.Type == config.CriteriaColumnPatternMatch {
		pattern, err := regexp.Compile(criteria.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid sending criteria pattern: %w", err)
		}
		s.pattern = pattern
	}
	return s, nil
}

// Sync reads all mapped columns in one batch and upserts one contact and
// recipient per qualifying row. It returns the number of recipients synced.
func (s *RecipientSyncService) Sync(ctx context.Context) (int, error) {
	columns := []string{
		s.mapping.Domain,
		s.mapping.EmailAddress,
		s.mapping.Name,
		s.mapping.Salutation,
		s.mapping.PhoneNumber,
		s.mapping.InitialEmailDate,
		s.criteria.Column,
	}
	refs := make([]domain.SpreadsheetReference, 0, len(columns))
	for _, column := range columns {
		ref, err := domain.NewColumnReference(column)
		if err != nil {
			return 0, err
		}
		refs = append(refs, ref.WithSheet(s.sheetTitle))
	}

	ranges, err := s.sheets.ReadBatch(ctx, s.spreadsheetID, refs)
	if err != nil {
		return 0, &domain.GatewayError{Operation: "readBatch", Err: err}
	}
	if len(ranges) != len(refs) {
		return 0, fmt.Errorf("batch read returned %d ranges for %d columns", len(ranges), len(refs))
	}

	rowCount := 0
	for _, r := range ranges {
		if len(r.Values) > rowCount {
			rowCount = len(r.Values)
		}
	}

	synced := 0
	// Row 1 is the header.
	for rowIdx := 1; rowIdx < rowCount; rowIdx++ {
		row := sheetRow{
			domain:      cellAt(ranges[0], rowIdx),
			email:       cellAt(ranges[1], rowIdx),
			name:        cellAt(ranges[2], rowIdx),
			salutation:  cellAt(ranges[3], rowIdx),
			phone:       cellAt(ranges[4], rowIdx),
			initialDate: cellAt(ranges[5], rowIdx),
			criteria:    cellAt(ranges[6], rowIdx),
			number:      rowIdx + 1,
		}
		if row.email == "" {
			continue
		}
		if !s.matchesCriteria(row.criteria) {
			continue
		}
		if err := s.upsertRow(ctx, row); err != nil {
			s.logger.WithField("row", row.number).Warn(fmt.Sprintf("recipient row skipped: %v", err))
			continue
		}
		synced++
	}
	return synced, nil
}

type sheetRow struct {
	domain      string
	email       string
	name        string
	salutation  string
	phone       string
	initialDate string
	criteria    string
	number      int
}

func (s *RecipientSyncService) matchesCriteria(value string) bool {
	switch s.criteria.Type {
	case config.CriteriaColumnFilled:
		return strings.TrimSpace(value) != ""
	case config.CriteriaColumnValueMatch:
		return strings.TrimSpace(value) == s.criteria.Value
	case config.CriteriaColumnPatternMatch:
		return s.pattern.MatchString(value)
	case config.CriteriaStatusCheck:
		// Rows whose status column carries no terminal marker still qualify.
		trimmed := strings.TrimSpace(value)
		return trimmed == "" || trimmed == "Offen"
	default:
		// CUSTOM leaves filtering to the operator's sheet; every row with an
		// address qualifies.
		return true
	}
}

func (s *RecipientSyncService) upsertRow(ctx context.Context, row sheetRow) error {
	address, err := domain.NewEmailAddress(row.email)
	if err != nil {
		return err
	}

	contact, err := s.upsertContact(ctx, row)
	if err != nil {
		return err
	}

	recipient, err := s.recipientRepo.GetByEmail(ctx, address)
	switch {
	case domain.IsNotFound(err):
		recipient, err = domain.NewRecipient(uuid.New().String(), address, contact.ID)
		if err != nil {
			return err
		}
		s.applyRow(recipient, row)
		return s.recipientRepo.Create(ctx, recipient)
	case err != nil:
		return fmt.Errorf("failed to look up recipient: %w", err)
	default:
		s.applyRow(recipient, row)
		return s.recipientRepo.Update(ctx, recipient)
	}
}

func (s *RecipientSyncService) applyRow(recipient *domain.Recipient, row sheetRow) {
	if trimmed := strings.TrimSpace(row.salutation); trimmed != "" {
		recipient.Salutation = &trimmed
	}
	if recipient.InitialContactDate == nil && strings.TrimSpace(row.initialDate) != "" {
		date, err := parseHistoryDate(row.initialDate)
		if err != nil {
			s.logger.WithField("row", row.number).Warn(fmt.Sprintf("unparseable initial email date %q", row.initialDate))
			return
		}
		if err := recipient.SetInitialContactDate(date); err != nil {
			s.logger.WithField("row", row.number).Warn(err.Error())
		}
	}
}

func (s *RecipientSyncService) upsertContact(ctx context.Context, row sheetRow) (*domain.Contact, error) {
	contact, err := s.contactRepo.GetBySheetRow(ctx, s.sheetTitle, row.number)
	if err != nil && !domain.IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}

	if contact == nil {
		rowRef, err := domain.NewRowReferenceFromNumber(row.number)
		if err != nil {
			return nil, err
		}
		contact = &domain.Contact{
			ID:         uuid.New().String(),
			SheetTitle: s.sheetTitle,
			Row:        rowRef,
		}
		applyContactFields(contact, row)
		if err := s.contactRepo.Create(ctx, contact); err != nil {
			return nil, fmt.Errorf("failed to create contact: %w", err)
		}
		return contact, nil
	}

	applyContactFields(contact, row)
	if err := s.contactRepo.Update(ctx, contact); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return contact, nil
}

func applyContactFields(contact *domain.Contact, row sheetRow) {
	if trimmed := strings.TrimSpace(row.name); trimmed != "" {
		contact.Name = &trimmed
	}
	if trimmed := strings.TrimSpace(row.domain); trimmed != "" {
		contact.Website = &trimmed
	}
	if trimmed := strings.TrimSpace(row.phone); trimmed != "" {
		contact.Phone = &trimmed
	}
}

// cellAt returns the first cell of row index i within a whole-column range,
// or "" past the end.
func cellAt(r domain.ValueRange, i int) string {
	if i >= len(r.Values) || len(r.Values[i]) == 0 {
		return ""
	}
	return r.Values[i][0]
}
