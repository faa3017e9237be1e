package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/phleudt/mailscheduler/internal/domain"
)

// ContactRepository implements domain.ContactRepository on PostgreSQL. The
// row reference is stored as its integer row number.
type ContactRepository struct {
	db *sql.DB
}

// NewContactRepository creates a new PostgreSQL contact repository.
func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

// Create inserts a contact.
func (r *ContactRepository) Create(ctx context.Context, contact *domain.Contact) error {
	if err := contact.Validate(); err != nil {
		return err
	}
	row, err := contact.Row.RowNumber()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO contacts (id, sheet_title, row_number, name, website, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		contact.ID,
		contact.SheetTitle,
		row,
		contact.Name,
		contact.Website,
		contact.Phone,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

// Update rewrites a contact row.
func (r *ContactRepository) Update(ctx context.Context, contact *domain.Contact) error {
	if err := contact.Validate(); err != nil {
		return err
	}
	row, err := contact.Row.RowNumber()
	if err != nil {
		return err
	}

	query := `
		UPDATE contacts SET
			sheet_title = $2,
			row_number = $3,
			name = $4,
			website = $5,
			phone = $6,
			updated_at = $7
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		contact.ID,
		contact.SheetTitle,
		row,
		contact.Name,
		contact.Website,
		contact.Phone,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ErrNotFound{Entity: "contact", ID: contact.ID}
	}
	return nil
}

// GetByID retrieves a contact by id.
func (r *ContactRepository) GetByID(ctx context.Context, id string) (*domain.Contact, error) {
	query := `SELECT id, sheet_title, row_number, name, website, phone FROM contacts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	contact, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Entity: "contact", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return contact, nil
}

// GetBySheetRow retrieves a contact by its unique (sheet title, row) origin.
func (r *ContactRepository) GetBySheetRow(ctx context.Context, sheetTitle string, row int) (*domain.Contact, error) {
	query := `SELECT id, sheet_title, row_number, name, website, phone FROM contacts WHERE sheet_title = $1 AND row_number = $2`
	result := r.db.QueryRowContext(ctx, query, sheetTitle, row)

	contact, err := scanContact(result)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Entity: "contact", ID: fmt.Sprintf("%s:%d", sheetTitle, row)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact by sheet row: %w", err)
	}
	return contact, nil
}

// List returns all contacts ordered by sheet position.
func (r *ContactRepository) List(ctx context.Context) ([]*domain.Contact, error) {
	query := `SELECT id, sheet_title, row_number, name, website, phone FROM contacts ORDER BY sheet_title, row_number`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*domain.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact rows: %w", err)
	}
	return contacts, nil
}

// scanContact scans one contact row.
func scanContact(scanner interface {
	Scan(dest ...interface{}) error
}) (*domain.Contact, error) {
	var (
		contact              domain.Contact
		rowNumber            int
		name, website, phone sql.NullString
	)

	err := scanner.Scan(
		&contact.ID,
		&contact.SheetTitle,
		&rowNumber,
		&name,
		&website,
		&phone,
	)
	if err != nil {
		return nil, err
	}

	rowRef, err := domain.NewRowReferenceFromNumber(rowNumber)
	if err != nil {
		return nil, fmt.Errorf("stored contact row is invalid: %w", err)
	}
	contact.Row = rowRef

	if name.Valid {
		contact.Name = &name.String
	}
	if website.Valid {
		contact.Website = &website.String
	}
	if phone.Valid {
		contact.Phone = &phone.String
	}
	return &contact, nil
}
