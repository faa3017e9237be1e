package domain

import (
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
)

// EmailAddress is a syntactically validated local@domain address. Equality is
// by normalized (lowercased) form.
type EmailAddress string

// NewEmailAddress validates and normalizes an address.
func NewEmailAddress(address string) (EmailAddress, error) {
	normalized := strings.ToLower(strings.TrimSpace(address))
	if !govalidator.IsEmail(normalized) {
		return "", NewValidationError("invalid email address: " + address)
	}
	return EmailAddress(normalized), nil
}

// String implements fmt.Stringer.
func (a EmailAddress) String() string { return string(a) }

// ThreadID is the mail gateway's opaque conversation identifier. It is
// stable across all follow-ups of a sequence.
type ThreadID string

// RecipientMetadata links a recipient to its contact row, plan and thread.
type RecipientMetadata struct {
	ContactID string  `json:"contact_id"`
	PlanID    *string `json:"plan_id,omitempty"`
	ThreadID  *string `json:"thread_id,omitempty"`
}

// Recipient is one addressee of a follow-up sequence.
type Recipient struct {
	ID                 string            `json:"id"`
	EmailAddress       EmailAddress      `json:"email_address"`
	Salutation         *string           `json:"salutation,omitempty"`
	HasReplied         bool              `json:"has_replied"`
	InitialContactDate *time.Time        `json:"initial_contact_date,omitempty"`
	Metadata           RecipientMetadata `json:"metadata"`
}

// NewRecipient creates a validated recipient. The contact id is required.
func NewRecipient(id string, address EmailAddress, contactID string) (*Recipient, error) {
	r := &Recipient{
		ID:           id,
		EmailAddress: address,
		Metadata:     RecipientMetadata{ContactID: contactID},
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the recipient's structural invariants.
func (r *Recipient) Validate() error {
	if r.ID == "" {
		return NewValidationError("recipient id is required")
	}
	if _, err := NewEmailAddress(string(r.EmailAddress)); err != nil {
		return err
	}
	if r.Metadata.ContactID == "" {
		return NewValidationError("recipient contact id is required")
	}
	return nil
}

// SetInitialContactDate assigns the write-once initial contact date. Once
// set it cannot be reassigned.
func (r *Recipient) SetInitialContactDate(date time.Time) error {
	if r.InitialContactDate != nil {
		return NewValidationError("initial contact date is already set")
	}
	r.InitialContactDate = &date
	return nil
}

// MarkReplied flips the monotonic reply flag. It never transitions back.
func (r *Recipient) MarkReplied() {
	r.HasReplied = true
}
