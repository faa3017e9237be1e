package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/pkg/logger"
)

// maxHistoryFollowUps is the number of (date, status) column pairs a history
// row can carry.
const maxHistoryFollowUps = 8

// historyDateLayouts are tried in order when parsing history dates.
var historyDateLayouts = []string{"2006-01-02", "02.01.2006", "2.1.2006"}

// historyStatuses maps the spreadsheet's status strings to email statuses.
// The set is closed; anything else ingests as FAILED with a warning.
var historyStatuses = map[string]domain.EmailStatus{
	"Offen":              domain.EmailStatusPending,
	"Gesendet":           domain.EmailStatusSent,
	"Nicht erforderlich": domain.EmailStatusCancelled,
	"Failed":             domain.EmailStatusFailed,
}

const (
	externalSubject = "Externally recorded email"
	externalBody    = "Imported from the spreadsheet history."
)

// externalCandidate is one parsed history entry before persistence.
type externalCandidate struct {
	followUpNumber int
	scheduledDate  time.Time
	status         domain.EmailStatus
	statusRaw      string
}

// HistorySyncService ingests externally recorded sends from the spreadsheet
// into the schedule graph, so the scheduler resumes sequences instead of
// duplicating them. Re-ingestion is idempotent: entries whose follow-up
// number a recipient already carries are discarded.
type HistorySyncService struct {
	emailRepo     domain.EmailRepository
	recipientRepo domain.RecipientRepository
	sheets        domain.SpreadsheetGateway
	spreadsheetID string
	historyRange  domain.SpreadsheetReference
	sender        domain.EmailAddress
	logger        logger.Logger
}

// NewHistorySyncService creates an ingestor reading the given history range.
func NewHistorySyncService(
	emailRepo domain.EmailRepository,
	recipientRepo domain.RecipientRepository,
	sheets domain.SpreadsheetGateway,
	spreadsheetID string,
	historyRange domain.SpreadsheetReference,
	sender domain.EmailAddress,
	logger logger.Logger,
) *HistorySyncService {
	return &HistorySyncService{
		emailRepo:     emailRepo,
		recipientRepo: recipientRepo,
		sheets:        sheets,
		spreadsheetID: spreadsheetID,
		historyRange:  historyRange,
		sender:        sender,
		logger:        logger,
	}
}

// Sync reads the history range and ingests every row.
func (s *HistorySyncService) Sync(ctx context.Context) (int, error) {
	ranges, err := s.sheets.ReadBatch(ctx, s.spreadsheetID, []domain.SpreadsheetReference{s.historyRange})
	if err != nil {
		return 0, &domain.GatewayError{Operation: "readBatch", Err: err}
	}
	if len(ranges) == 0 {
		return 0, nil
	}
	return s.IngestRows(ctx, ranges[0].Values)
}

// IngestRows parses and persists history rows. It returns the number of
// external emails created.
func (s *HistorySyncService) IngestRows(ctx context.Context, rows [][]string) (int, error) {
	created := 0
	for i, row := range rows {
		n, err := s.ingestRow(ctx, row)
		if err != nil {
			s.logger.WithField("row", i).Warn(fmt.Sprintf("history row skipped: %v", err))
			continue
		}
		created += n
	}
	return created, nil
}

func (s *HistorySyncService) ingestRow(ctx context.Context, row []string) (int, error) {
	if len(row) < 2 {
		return 0, fmt.Errorf("row has %d columns, need at least 2", len(row))
	}

	initialDate, err := parseHistoryDate(row[1])
	if err != nil {
		return 0, fmt.Errorf("initial contact date %q is unparseable", row[1])
	}

	candidates := []externalCandidate{{
		followUpNumber: 0,
		scheduledDate:  initialDate,
		status:         domain.EmailStatusSent,
	}}
	for k := 1; k <= maxHistoryFollowUps; k++ {
		dateIdx, statusIdx := 2*k, 2*k+1
		if dateIdx >= len(row) || strings.TrimSpace(row[dateIdx]) == "" {
			break
		}
		date, err := parseHistoryDate(row[dateIdx])
		if err != nil {
			s.logger.WithField("followup", k).Warn(fmt.Sprintf("follow-up date %q is unparseable, stopping row", row[dateIdx]))
			break
		}
		raw := ""
		if statusIdx < len(row) {
			raw = strings.TrimSpace(row[statusIdx])
		}
		status, known := historyStatuses[raw]
		if !known {
			s.logger.WithField("followup", k).Warn(fmt.Sprintf("unknown history status %q, recording as failed", raw))
			status = domain.EmailStatusFailed
		}
		candidates = append(candidates, externalCandidate{
			followUpNumber: k,
			scheduledDate:  date,
			status:         status,
			statusRaw:      raw,
		})
	}

	created := 0
	for _, rawAddress := range strings.Split(row[0], ",") {
		address, err := domain.NewEmailAddress(rawAddress)
		if err != nil {
			s.logger.Warn(fmt.Sprintf("dropping invalid history address %q", strings.TrimSpace(rawAddress)))
			continue
		}
		n, err := s.ingestForAddress(ctx, address, initialDate, candidates)
		if err != nil {
			s.logger.WithField("email_address", string(address)).Warn(fmt.Sprintf("history entry skipped: %v", err))
			continue
		}
		created += n
	}
	return created, nil
}

func (s *HistorySyncService) ingestForAddress(ctx context.Context, address domain.EmailAddress, initialDate time.Time, candidates []externalCandidate) (int, error) {
	recipient, err := s.recipientRepo.GetByEmail(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("no recipient for address: %w", err)
	}

	if recipient.InitialContactDate == nil {
		if err := recipient.SetInitialContactDate(initialDate); err == nil {
			if err := s.recipientRepo.Update(ctx, recipient); err != nil {
				return 0, fmt.Errorf("failed to store initial contact date: %w", err)
			}
		}
	}

	existing, err := s.emailRepo.FindByRecipient(ctx, recipient.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to load existing emails: %w", err)
	}
	taken := make(map[int]bool, len(existing))
	for _, e := range existing {
		taken[e.Metadata.FollowUpNumber] = true
	}
	initial := findInitial(existing)

	created := 0
	for _, candidate := range candidates {
		if taken[candidate.followUpNumber] {
			continue
		}
		if candidate.followUpNumber > 0 && initial == nil {
			s.logger.WithFields(map[string]interface{}{
				"recipient_id": recipient.ID,
				"followup":     candidate.followUpNumber,
			}).Warn("dropping external follow-up without an initial email")
			continue
		}

		emailType := domain.TemplateTypeExternallyInitial
		if candidate.followUpNumber > 0 {
			emailType = domain.TemplateTypeExternallyFollowUp
		}
		email := &domain.Email{
			ID:        uuid.New().String(),
			Sender:    s.sender,
			Recipient: recipient.EmailAddress,
			Subject:   externalSubject,
			Body:      externalBody,
			Type:      emailType,
		}

		var opts []domain.EmailMetadataOption
		switch {
		case candidate.status == domain.EmailStatusSent:
			opts = append(opts, domain.WithSentDate(candidate.scheduledDate))
		case candidate.status == domain.EmailStatusFailed:
			reason := "recorded as failed in history"
			if candidate.statusRaw != "" && candidate.statusRaw != "Failed" {
				reason = fmt.Sprintf("unrecognized history status %q", candidate.statusRaw)
			}
			opts = append(opts, domain.WithFailureReason(reason))
		}
		if candidate.followUpNumber > 0 {
			opts = append(opts, domain.WithInitialEmailID(initial.Email.ID))
		}

		metadata, err := domain.NewEmailMetadata(recipient.ID, candidate.followUpNumber, candidate.status, candidate.scheduledDate, opts...)
		if err != nil {
			return created, err
		}
		if err := s.emailRepo.Create(ctx, email, metadata); err != nil {
			return created, fmt.Errorf("failed to persist external email: %w", err)
		}

		if candidate.followUpNumber == 0 {
			// Self-link the freshly created initial, same as the scheduler.
			metadata = metadata.WithInitialEmail(email.ID)
			if err := s.emailRepo.Update(ctx, email, metadata); err != nil {
				return created, fmt.Errorf("failed to self-link external initial: %w", err)
			}
			initial = &domain.EmailWithMetadata{Email: email, Metadata: metadata}
		}
		taken[candidate.followUpNumber] = true
		created++
	}
	return created, nil
}

// LinkOrphans is the linking pass over already persisted external emails: it
// self-links initials and binds follow-ups to their recipient's initial.
// Useful after partial prior runs.
func (s *HistorySyncService) LinkOrphans(ctx context.Context) error {
	emails, err := s.emailRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list emails: %w", err)
	}

	byRecipient := make(map[string][]*domain.EmailWithMetadata)
	for _, e := range emails {
		byRecipient[e.Metadata.RecipientID] = append(byRecipient[e.Metadata.RecipientID], e)
	}

	for recipientID, group := range byRecipient {
		initial := findInitial(group)
		for _, e := range group {
			if e.Metadata.InitialEmailID != nil || !e.Email.Type.IsExternal() {
				continue
			}
			switch {
			case e.Metadata.IsInitial():
				linked := e.Metadata.WithInitialEmail(e.Email.ID)
				if err := s.emailRepo.Update(ctx, e.Email, linked); err != nil {
					return fmt.Errorf("failed to self-link initial %s: %w", e.Email.ID, err)
				}
			case initial != nil:
				linked := e.Metadata.WithInitialEmail(initial.Email.ID)
				if err := s.emailRepo.Update(ctx, e.Email, linked); err != nil {
					return fmt.Errorf("failed to link follow-up %s: %w", e.Email.ID, err)
				}
			default:
				s.logger.WithField("recipient_id", recipientID).Warn("external follow-up has no initial email to link to")
			}
		}
	}
	return nil
}

func parseHistoryDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range historyDateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", trimmed)
}
