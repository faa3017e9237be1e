package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/phleudt/mailscheduler/internal/domain"
)

// TemplateRepository implements domain.TemplateRepository on PostgreSQL. The
// placeholder store serializes into the placeholders_json column.
type TemplateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new PostgreSQL template repository.
func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a template.
func (r *TemplateRepository) Create(ctx context.Context, template *domain.Template) error {
	if err := template.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	template.CreatedAt = now
	template.UpdatedAt = now

	query := `
		INSERT INTO templates (id, type, subject, body, draft_id, placeholders_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		template.ID,
		template.Type,
		template.Subject,
		template.Body,
		template.DraftID,
		template.Placeholders,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// Update rewrites a template row.
func (r *TemplateRepository) Update(ctx context.Context, template *domain.Template) error {
	if err := template.Validate(); err != nil {
		return err
	}
	template.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE templates SET
			type = $2,
			subject = $3,
			body = $4,
			draft_id = $5,
			placeholders_json = $6,
			updated_at = $7
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		template.ID,
		template.Type,
		template.Subject,
		template.Body,
		template.DraftID,
		template.Placeholders,
		template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ErrNotFound{Entity: "template", ID: template.ID}
	}
	return nil
}

// GetByID retrieves a template by id.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	query := `SELECT id, type, subject, body, draft_id, placeholders_json, created_at, updated_at FROM templates WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	template, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrNotFound{Entity: "template", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return template, nil
}

// List returns all templates.
func (r *TemplateRepository) List(ctx context.Context) ([]*domain.Template, error) {
	query := `SELECT id, type, subject, body, draft_id, placeholders_json, created_at, updated_at FROM templates ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.Template
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating template rows: %w", err)
	}
	return templates, nil
}

// Delete removes a template.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ErrNotFound{Entity: "template", ID: id}
	}
	return nil
}

// scanTemplate scans one template row.
func scanTemplate(scanner interface {
	Scan(dest ...interface{}) error
}) (*domain.Template, error) {
	var (
		template domain.Template
		draftID  sql.NullString
		store    domain.PlaceholderStore
	)

	err := scanner.Scan(
		&template.ID,
		&template.Type,
		&template.Subject,
		&template.Body,
		&draftID,
		&store,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if draftID.Valid {
		template.DraftID = &draftID.String
	}
	template.Placeholders = &store
	return &template, nil
}
