package domain

import (
	"strings"
	"time"
)

// EmailStatus is the lifecycle state of a scheduled email. PENDING is the
// only non-terminal state.
type EmailStatus string

const (
	EmailStatusPending   EmailStatus = "PENDING"
	EmailStatusSent      EmailStatus = "SENT"
	EmailStatusFailed    EmailStatus = "FAILED"
	EmailStatusCancelled EmailStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s EmailStatus) IsTerminal() bool {
	return s == EmailStatusSent || s == EmailStatusFailed || s == EmailStatusCancelled
}

// Email is the message entity: what gets handed to the mail gateway.
type Email struct {
	ID        string       `json:"id"`
	Sender    EmailAddress `json:"sender"`
	Recipient EmailAddress `json:"recipient"`
	Subject   string       `json:"subject"`
	Body      string       `json:"body"`
	Type      TemplateType `json:"type"`
}

// Validate checks the email's structural invariants.
func (e *Email) Validate() error {
	if e.ID == "" {
		return NewValidationError("email id is required")
	}
	if _, err := NewEmailAddress(string(e.Sender)); err != nil {
		return err
	}
	if _, err := NewEmailAddress(string(e.Recipient)); err != nil {
		return err
	}
	if strings.TrimSpace(e.Subject) == "" {
		return NewValidationError("email subject must not be blank")
	}
	return nil
}

// EmailMetadata is the scheduling record attached to an email. Invariants are
// enforced at construction; state transitions return fresh records so
// terminal states stay immutable.
type EmailMetadata struct {
	InitialEmailID *string     `json:"initial_email_id,omitempty"`
	RecipientID    string      `json:"recipient_id"`
	FollowUpNumber int         `json:"followup_number"`
	Status         EmailStatus `json:"status"`
	FailureReason  *string     `json:"failure_reason,omitempty"`
	ScheduledDate  time.Time   `json:"scheduled_date"`
	SentDate       *time.Time  `json:"sent_date,omitempty"`
}

// NewEmailMetadata creates validated metadata. A blank failure reason is
// normalized to nil before the FAILED invariant is checked.
func NewEmailMetadata(recipientID string, followUpNumber int, status EmailStatus, scheduledDate time.Time, opts ...EmailMetadataOption) (*EmailMetadata, error) {
	m := &EmailMetadata{
		RecipientID:    recipientID,
		FollowUpNumber: followUpNumber,
		Status:         status,
		ScheduledDate:  scheduledDate,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// EmailMetadataOption configures optional metadata fields at construction.
type EmailMetadataOption func(*EmailMetadata)

// WithInitialEmailID links the metadata to its initial email.
func WithInitialEmailID(id string) EmailMetadataOption {
	return func(m *EmailMetadata) { m.InitialEmailID = &id }
}

// WithSentDate records the send timestamp.
func WithSentDate(date time.Time) EmailMetadataOption {
	return func(m *EmailMetadata) { m.SentDate = &date }
}

// WithFailureReason records why a send failed.
func WithFailureReason(reason string) EmailMetadataOption {
	return func(m *EmailMetadata) { m.FailureReason = &reason }
}

// Validate checks the metadata invariants.
func (m *EmailMetadata) Validate() error {
	if m.RecipientID == "" {
		return NewValidationError("email metadata requires a recipient id")
	}
	if m.FollowUpNumber < 0 {
		return NewValidationError("followup number must not be negative")
	}
	switch m.Status {
	case EmailStatusPending, EmailStatusSent, EmailStatusFailed, EmailStatusCancelled:
	default:
		return NewValidationError("invalid email status")
	}

	if m.FailureReason != nil && strings.TrimSpace(*m.FailureReason) == "" {
		m.FailureReason = nil
	}
	if m.Status == EmailStatusFailed && m.FailureReason == nil {
		return NewValidationError("failed emails require a failure reason")
	}
	if m.Status == EmailStatusSent && m.SentDate == nil {
		return NewValidationError("sent emails require a sent date")
	}
	return nil
}

// IsInitial reports whether this metadata belongs to an initial email.
func (m *EmailMetadata) IsInitial() bool {
	return m.FollowUpNumber == 0
}

// MarkSent transitions PENDING metadata to SENT with the given date.
func (m *EmailMetadata) MarkSent(sentDate time.Time) (*EmailMetadata, error) {
	if m.Status != EmailStatusPending {
		return nil, NewValidationError("only pending emails can be marked sent")
	}
	next := *m
	next.Status = EmailStatusSent
	next.SentDate = &sentDate
	next.FailureReason = nil
	return &next, nil
}

// MarkFailed transitions PENDING metadata to FAILED with a non-blank reason.
func (m *EmailMetadata) MarkFailed(reason string) (*EmailMetadata, error) {
	if m.Status != EmailStatusPending {
		return nil, NewValidationError("only pending emails can be marked failed")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, NewValidationError("failure reason must not be blank")
	}
	next := *m
	next.Status = EmailStatusFailed
	next.FailureReason = &reason
	return &next, nil
}

// Cancel transitions PENDING metadata to CANCELLED.
func (m *EmailMetadata) Cancel() (*EmailMetadata, error) {
	if m.Status != EmailStatusPending {
		return nil, NewValidationError("only pending emails can be cancelled")
	}
	next := *m
	next.Status = EmailStatusCancelled
	return &next, nil
}

// Reschedule moves the scheduled date. Only valid while PENDING.
func (m *EmailMetadata) Reschedule(date time.Time) (*EmailMetadata, error) {
	if m.Status != EmailStatusPending {
		return nil, NewValidationError("only pending emails can be rescheduled")
	}
	next := *m
	next.ScheduledDate = date
	return &next, nil
}

// WithInitialEmail returns a copy linked to the given initial email id. An
// initial email links to itself after its first save.
func (m *EmailMetadata) WithInitialEmail(id string) *EmailMetadata {
	next := *m
	next.InitialEmailID = &id
	return &next
}

// EmailWithMetadata bundles the email entity with its scheduling record; the
// pair is persisted atomically.
type EmailWithMetadata struct {
	Email    *Email         `json:"email"`
	Metadata *EmailMetadata `json:"metadata"`
}
