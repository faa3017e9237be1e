package domain

// Contact identifies a spreadsheet row a recipient originates from, plus the
// organization data recorded there.
type Contact struct {
	ID         string               `json:"id"`
	SheetTitle string               `json:"sheet_title"`
	Row        SpreadsheetReference `json:"row"`
	Name       *string              `json:"name,omitempty"`
	Website    *string              `json:"website,omitempty"`
	Phone      *string              `json:"phone,omitempty"`
}

// NewContact creates a validated contact. The row reference must be a ROW
// variant.
func NewContact(id, sheetTitle string, row SpreadsheetReference) (*Contact, error) {
	c := &Contact{ID: id, SheetTitle: sheetTitle, Row: row}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the contact's structural invariants.
func (c *Contact) Validate() error {
	if c.ID == "" {
		return NewValidationError("contact id is required")
	}
	if c.SheetTitle == "" {
		return NewValidationError("contact sheet title is required")
	}
	if c.Row.Type != ReferenceTypeRow {
		return NewValidationError("contact row must be a row reference")
	}
	return nil
}
