package domain

import (
	"strings"
	"time"
)

// TemplateType distinguishes sequence positions and externally recorded mail.
type TemplateType string

const (
	TemplateTypeInitial            TemplateType = "INITIAL"
	TemplateTypeFollowUp           TemplateType = "FOLLOW_UP"
	TemplateTypeExternallyInitial  TemplateType = "EXTERNALLY_INITIAL"
	TemplateTypeExternallyFollowUp TemplateType = "EXTERNALLY_FOLLOW_UP"
)

// IsExternal reports whether the type records mail sent outside the engine.
func (t TemplateType) IsExternal() bool {
	return t == TemplateTypeExternallyInitial || t == TemplateTypeExternallyFollowUp
}

// IsInitial reports whether the type is the first message of a sequence.
func (t TemplateType) IsInitial() bool {
	return t == TemplateTypeInitial || t == TemplateTypeExternallyInitial
}

// Template is a reusable subject/body pair with a bound placeholder store.
type Template struct {
	ID           string            `json:"id"`
	Type         TemplateType      `json:"type"`
	Subject      string            `json:"subject"`
	Body         string            `json:"body"`
	Placeholders *PlaceholderStore `json:"placeholders"`
	DraftID      *string           `json:"draft_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewTemplate creates a validated template with an empty placeholder store
// attached if none is given.
func NewTemplate(id string, templateType TemplateType, subject, body string, placeholders *PlaceholderStore) (*Template, error) {
	if placeholders == nil {
		placeholders = NewPlaceholderStore()
	}
	t := &Template{
		ID:           id,
		Type:         templateType,
		Subject:      strings.TrimSpace(subject),
		Body:         strings.TrimSpace(body),
		Placeholders: placeholders,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the template's structural invariants.
func (t *Template) Validate() error {
	if t.ID == "" {
		return NewValidationError("template id is required")
	}
	switch t.Type {
	case TemplateTypeInitial, TemplateTypeFollowUp, TemplateTypeExternallyInitial, TemplateTypeExternallyFollowUp:
	default:
		return NewValidationError("invalid template type")
	}
	if strings.TrimSpace(t.Subject) == "" {
		return NewValidationError("template subject must not be blank")
	}
	if strings.TrimSpace(t.Body) == "" {
		return NewValidationError("template body must not be blank")
	}
	if t.Placeholders == nil {
		return NewValidationError("template requires a placeholder store")
	}
	open, close := t.Placeholders.OpenDelimiter(), t.Placeholders.CloseDelimiter()
	if err := CheckDelimiterBalance(t.Subject, open, close); err != nil {
		return err
	}
	if err := CheckDelimiterBalance(t.Body, open, close); err != nil {
		return err
	}
	return nil
}
