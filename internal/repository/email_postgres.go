package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/phleudt/mailscheduler/internal/domain"
)

const emailColumns = `id, recipient_id, initial_email_id, followup_number, status, failure_reason,
		scheduled_date, sent_date, sender, recipient_address, subject, body, type`

// EmailRepository implements domain.EmailRepository on PostgreSQL. The email
// entity and its metadata are folded into one row, so each save is naturally
// atomic.
type EmailRepository struct {
	db *sql.DB
}

// NewEmailRepository creates a new PostgreSQL email repository.
func NewEmailRepository(db *sql.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

// Create inserts the email together with its metadata.
func (r *EmailRepository) Create(ctx context.Context, email *domain.Email, metadata *domain.EmailMetadata) error {
	if err := email.Validate(); err != nil {
		return err
	}
	if err := metadata.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO emails (
			id, recipient_id, initial_email_id, followup_number, status, failure_reason,
			scheduled_date, sent_date, sender, recipient_address, subject, body, type,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.db.ExecContext(ctx, query,
		email.ID,
		metadata.RecipientID,
		metadata.InitialEmailID,
		metadata.FollowUpNumber,
		metadata.Status,
		metadata.FailureReason,
		metadata.ScheduledDate,
		metadata.SentDate,
		email.Sender,
		email.Recipient,
		email.Subject,
		email.Body,
		email.Type,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create email: %w", err)
	}
	return nil
}

// Update rewrites the email and its metadata in one statement.
func (r *EmailRepository) Update(ctx context.Context, email *domain.Email, metadata *domain.EmailMetadata) error {
	if err := metadata.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE emails SET
			recipient_id = $2,
			initial_email_id = $3,
			followup_number = $4,
			status = $5,
			failure_reason = $6,
			scheduled_date = $7,
			sent_date = $8,
			sender = $9,
			recipient_address = $10,
			subject = $11,
			body = $12,
			type = $13,
			updated_at = $14
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		email.ID,
		metadata.RecipientID,
		metadata.InitialEmailID,
		metadata.FollowUpNumber,
		metadata.Status,
		metadata.FailureReason,
		metadata.ScheduledDate,
		metadata.SentDate,
		email.Sender,
		email.Recipient,
		email.Subject,
		email.Body,
		email.Type,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update email: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ErrNotFound{Entity: "email", ID: email.ID}
	}
	return nil
}

// GetByID retrieves a single email with its metadata.
func (r *EmailRepository) GetByID(ctx context.Context, id string) (*domain.EmailWithMetadata, error) {
	query := fmt.Sprintf(`SELECT %s FROM emails WHERE id = $1`, emailColumns)
	row := r.db.QueryRowContext(ctx, query, id)

	email, err := scanEmail(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Entity: "email", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return email, nil
}

// List returns all emails ordered by recipient and followup number.
func (r *EmailRepository) List(ctx context.Context) ([]*domain.EmailWithMetadata, error) {
	query := fmt.Sprintf(`SELECT %s FROM emails ORDER BY recipient_id, followup_number ASC`, emailColumns)
	return r.queryEmails(ctx, query)
}

// FindByRecipient returns the recipient's emails ordered by followup_number
// ascending.
func (r *EmailRepository) FindByRecipient(ctx context.Context, recipientID string) ([]*domain.EmailWithMetadata, error) {
	query := fmt.Sprintf(`SELECT %s FROM emails WHERE recipient_id = $1 ORDER BY followup_number ASC`, emailColumns)
	return r.queryEmails(ctx, query, recipientID)
}

// FindPendingScheduledBefore returns all PENDING emails scheduled strictly
// before the cutoff.
func (r *EmailRepository) FindPendingScheduledBefore(ctx context.Context, cutoff time.Time) ([]*domain.EmailWithMetadata, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.
		Select("id", "recipient_id", "initial_email_id", "followup_number", "status", "failure_reason",
			"scheduled_date", "sent_date", "sender", "recipient_address", "subject", "body", "type").
		From("emails").
		Where(sq.Eq{"status": domain.EmailStatusPending}).
		Where(sq.Lt{"scheduled_date": cutoff}).
		OrderBy("recipient_id", "followup_number ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	return r.queryEmails(ctx, query, args...)
}

func (r *EmailRepository) queryEmails(ctx context.Context, query string, args ...interface{}) ([]*domain.EmailWithMetadata, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query emails: %w", err)
	}
	defer rows.Close()

	var emails []*domain.EmailWithMetadata
	for rows.Next() {
		email, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating email rows: %w", err)
	}
	return emails, nil
}

// scanEmail scans one email row into the aggregate.
func scanEmail(scanner interface {
	Scan(dest ...interface{}) error
}) (*domain.EmailWithMetadata, error) {
	var (
		email                         domain.Email
		metadata                      domain.EmailMetadata
		initialEmailID, failureReason sql.NullString
		sentDate                      sql.NullTime
	)

	err := scanner.Scan(
		&email.ID,
		&metadata.RecipientID,
		&initialEmailID,
		&metadata.FollowUpNumber,
		&metadata.Status,
		&failureReason,
		&metadata.ScheduledDate,
		&sentDate,
		&email.Sender,
		&email.Recipient,
		&email.Subject,
		&email.Body,
		&email.Type,
	)
	if err != nil {
		return nil, err
	}

	if initialEmailID.Valid {
		metadata.InitialEmailID = &initialEmailID.String
	}
	if failureReason.Valid {
		metadata.FailureReason = &failureReason.String
	}
	if sentDate.Valid {
		metadata.SentDate = &sentDate.Time
	}
	return &domain.EmailWithMetadata{Email: &email, Metadata: &metadata}, nil
}
