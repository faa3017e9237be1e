package domain

import (
	"context"
	"time"
)

// EmailRepository persists email aggregates. Create and Update write the
// email and its metadata in one transaction: both succeed or both fail.
type EmailRepository interface {
	Create(ctx context.Context, email *Email, metadata *EmailMetadata) error
	Update(ctx context.Context, email *Email, metadata *EmailMetadata) error

	GetByID(ctx context.Context, id string) (*EmailWithMetadata, error)
	List(ctx context.Context) ([]*EmailWithMetadata, error)

	// FindByRecipient returns the recipient's emails ordered by
	// followup_number ascending; that ordering is the canonical iteration
	// order for scheduling decisions.
	FindByRecipient(ctx context.Context, recipientID string) ([]*EmailWithMetadata, error)

	// FindPendingScheduledBefore returns all PENDING emails with a scheduled
	// date strictly before the cutoff.
	FindPendingScheduledBefore(ctx context.Context, cutoff time.Time) ([]*EmailWithMetadata, error)
}

// RecipientRepository persists recipients and their metadata.
type RecipientRepository interface {
	Create(ctx context.Context, recipient *Recipient) error
	Update(ctx context.Context, recipient *Recipient) error
	GetByID(ctx context.Context, id string) (*Recipient, error)
	GetByEmail(ctx context.Context, address EmailAddress) (*Recipient, error)
	List(ctx context.Context) ([]*Recipient, error)

	// UpdateThreadID binds the gateway thread id captured on the initial send.
	UpdateThreadID(ctx context.Context, recipientID string, threadID string) error

	// MarkReplied flips the monotonic reply flag.
	MarkReplied(ctx context.Context, recipientID string) error
}

// ContactRepository persists spreadsheet-row contacts.
type ContactRepository interface {
	Create(ctx context.Context, contact *Contact) error
	Update(ctx context.Context, contact *Contact) error
	GetByID(ctx context.Context, id string) (*Contact, error)
	GetBySheetRow(ctx context.Context, sheetTitle string, row int) (*Contact, error)
	List(ctx context.Context) ([]*Contact, error)
}

// TemplateRepository persists templates with their placeholder stores.
type TemplateRepository interface {
	Create(ctx context.Context, template *Template) error
	Update(ctx context.Context, template *Template) error
	GetByID(ctx context.Context, id string) (*Template, error)
	List(ctx context.Context) ([]*Template, error)
	Delete(ctx context.Context, id string) error
}

// PlanRepository persists follow-up plans with their steps.
type PlanRepository interface {
	Create(ctx context.Context, plan *FollowUpPlan) error
	GetByID(ctx context.Context, id string) (*FollowUpPlan, error)
	List(ctx context.Context) ([]*FollowUpPlan, error)
	Delete(ctx context.Context, id string) error
}
