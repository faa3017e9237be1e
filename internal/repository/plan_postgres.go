package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phleudt/mailscheduler/internal/domain"
)

// PlanRepository implements domain.PlanRepository on PostgreSQL. A plan and
// its steps are written in one transaction.
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository creates a new PostgreSQL plan repository.
func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Create inserts a plan with all its steps atomically.
func (r *PlanRepository) Create(ctx context.Context, plan *domain.FollowUpPlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO follow_up_plans (id, plan_type, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		plan.ID, plan.PlanType, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.ID == "" {
			step.ID = uuid.New().String()
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO follow_up_steps (id, plan_id, step_number, wait_days, template_id) VALUES ($1, $2, $3, $4, $5)`,
			step.ID, plan.ID, step.StepNumber, step.WaitDays, step.TemplateID,
		)
		if err != nil {
			return fmt.Errorf("failed to create plan step %d: %w", step.StepNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan: %w", err)
	}
	return nil
}

// GetByID retrieves a plan with its steps ordered by step number.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*domain.FollowUpPlan, error) {
	var plan domain.FollowUpPlan
	row := r.db.QueryRowContext(ctx, `SELECT id, plan_type FROM follow_up_plans WHERE id = $1`, id)
	if err := row.Scan(&plan.ID, &plan.PlanType); err != nil {
		if err == sql.ErrNoRows {
			return nil, &domain.ErrNotFound{Entity: "plan", ID: id}
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	steps, err := r.stepsForPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.Steps = steps
	return &plan, nil
}

// List returns all plans with their steps.
func (r *PlanRepository) List(ctx context.Context) ([]*domain.FollowUpPlan, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, plan_type FROM follow_up_plans ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.FollowUpPlan
	for rows.Next() {
		var plan domain.FollowUpPlan
		if err := rows.Scan(&plan.ID, &plan.PlanType); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, &plan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan rows: %w", err)
	}

	for _, plan := range plans {
		steps, err := r.stepsForPlan(ctx, plan.ID)
		if err != nil {
			return nil, err
		}
		plan.Steps = steps
	}
	return plans, nil
}

// Delete removes a plan and its steps atomically.
func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM follow_up_steps WHERE plan_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete plan steps: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM follow_up_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return &domain.ErrNotFound{Entity: "plan", ID: id}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan deletion: %w", err)
	}
	return nil
}

func (r *PlanRepository) stepsForPlan(ctx context.Context, planID string) ([]domain.FollowUpStep, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, step_number, wait_days, template_id FROM follow_up_steps WHERE plan_id = $1 ORDER BY step_number ASC`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.FollowUpStep
	for rows.Next() {
		var (
			step       domain.FollowUpStep
			templateID sql.NullString
		)
		if err := rows.Scan(&step.ID, &step.StepNumber, &step.WaitDays, &templateID); err != nil {
			return nil, fmt.Errorf("failed to scan plan step: %w", err)
		}
		if templateID.Valid {
			step.TemplateID = &templateID.String
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating plan step rows: %w", err)
	}
	return steps, nil
}
