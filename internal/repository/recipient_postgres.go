package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/phleudt/mailscheduler/internal/domain"
)

const recipientColumns = `id, email_address, salutation, has_replied, initial_contact_date,
		contact_id, plan_id, thread_id`

// RecipientRepository implements domain.RecipientRepository on PostgreSQL.
type RecipientRepository struct {
	db *sql.DB
}

// NewRecipientRepository creates a new PostgreSQL recipient repository.
func NewRecipientRepository(db *sql.DB) *RecipientRepository {
	return &RecipientRepository{db: db}
}

// Create inserts a recipient with its metadata.
func (r *RecipientRepository) Create(ctx context.Context, recipient *domain.Recipient) error {
	if err := recipient.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO recipients (
			id, email_address, salutation, has_replied, initial_contact_date,
			contact_id, plan_id, thread_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		recipient.ID,
		recipient.EmailAddress,
		recipient.Salutation,
		recipient.HasReplied,
		recipient.InitialContactDate,
		recipient.Metadata.ContactID,
		recipient.Metadata.PlanID,
		recipient.Metadata.ThreadID,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create recipient: %w", err)
	}
	return nil
}

// Update rewrites a recipient row.
func (r *RecipientRepository) Update(ctx context.Context, recipient *domain.Recipient) error {
	if err := recipient.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE recipients SET
			email_address = $2,
			salutation = $3,
			has_replied = $4,
			initial_contact_date = $5,
			contact_id = $6,
			plan_id = $7,
			thread_id = $8,
			updated_at = $9
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		recipient.ID,
		recipient.EmailAddress,
		recipient.Salutation,
		recipient.HasReplied,
		recipient.InitialContactDate,
		recipient.Metadata.ContactID,
		recipient.Metadata.PlanID,
		recipient.Metadata.ThreadID,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update recipient: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ErrNotFound{Entity: "recipient", ID: recipient.ID}
	}
	return nil
}

// GetByID retrieves a recipient by id.
func (r *RecipientRepository) GetByID(ctx context.Context, id string) (*domain.Recipient, error) {
	query := fmt.Sprintf(`SELECT %s FROM recipients WHERE id = $1`, recipientColumns)
	row := r.db.QueryRowContext(ctx, query, id)

	recipient, err := scanRecipient(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Entity: "recipient", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return recipient, nil
}

// GetByEmail retrieves a recipient by its unique email address.
func (r *RecipientRepository) GetByEmail(ctx context.Context, address domain.EmailAddress) (*domain.Recipient, error) {
	query := fmt.Sprintf(`SELECT %s FROM recipients WHERE email_address = $1`, recipientColumns)
	row := r.db.QueryRowContext(ctx, query, address)

	recipient, err := scanRecipient(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Entity: "recipient", ID: string(address)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient by email: %w", err)
	}
	return recipient, nil
}

// List returns all recipients.
func (r *RecipientRepository) List(ctx context.Context) ([]*domain.Recipient, error) {
	query := fmt.Sprintf(`SELECT %s FROM recipients ORDER BY email_address`, recipientColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var recipients []*domain.Recipient
	for rows.Next() {
		recipient, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		recipients = append(recipients, recipient)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipient rows: %w", err)
	}
	return recipients, nil
}

// UpdateThreadID binds the gateway thread id captured on the initial send.
func (r *RecipientRepository) UpdateThreadID(ctx context.Context, recipientID string, threadID string) error {
	query := `UPDATE recipients SET thread_id = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, recipientID, threadID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update thread id: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ErrNotFound{Entity: "recipient", ID: recipientID}
	}
	return nil
}

// MarkReplied flips the monotonic reply flag.
func (r *RecipientRepository) MarkReplied(ctx context.Context, recipientID string) error {
	query := `UPDATE recipients SET has_replied = TRUE, updated_at = $2 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, recipientID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark recipient replied: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ErrNotFound{Entity: "recipient", ID: recipientID}
	}
	return nil
}

// scanRecipient scans one recipient row.
func scanRecipient(scanner interface {
	Scan(dest ...interface{}) error
}) (*domain.Recipient, error) {
	var (
		recipient                  domain.Recipient
		salutation, planID, thread sql.NullString
		initialContactDate         sql.NullTime
	)

	err := scanner.Scan(
		&recipient.ID,
		&recipient.EmailAddress,
		&salutation,
		&recipient.HasReplied,
		&initialContactDate,
		&recipient.Metadata.ContactID,
		&planID,
		&thread,
	)
	if err != nil {
		return nil, err
	}

	if salutation.Valid {
		recipient.Salutation = &salutation.String
	}
	if initialContactDate.Valid {
		recipient.InitialContactDate = &initialContactDate.Time
	}
	if planID.Valid {
		recipient.Metadata.PlanID = &planID.String
	}
	if thread.Valid {
		recipient.Metadata.ThreadID = &thread.String
	}
	return &recipient, nil
}
