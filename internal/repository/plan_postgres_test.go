package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/domain"
)

func setupPlanMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PlanRepository) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return db, mock, NewPlanRepository(db)
}

func TestPlanRepository_Create(t *testing.T) {
	db, mock, repo := setupPlanMock(t)
	defer db.Close()

	plan := &domain.FollowUpPlan{
		ID:       "p1",
		PlanType: domain.PlanTypeDefault,
		Steps: []domain.FollowUpStep{
			{StepNumber: 0, WaitDays: 0},
			{StepNumber: 1, WaitDays: 4},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO follow_up_plans`).
		WithArgs("p1", domain.PlanTypeDefault, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO follow_up_steps`).
		WithArgs(sqlmock.AnyArg(), "p1", 0, 0, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO follow_up_steps`).
		WithArgs(sqlmock.AnyArg(), "p1", 1, 4, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), plan))
	assert.NotEmpty(t, plan.Steps[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Gapped step numbers never reach the database.
	broken := &domain.FollowUpPlan{
		ID:       "p2",
		PlanType: domain.PlanTypeCustom,
		Steps:    []domain.FollowUpStep{{StepNumber: 1, WaitDays: 2}},
	}
	require.Error(t, repo.Create(context.Background(), broken))
}

func TestPlanRepository_GetByID(t *testing.T) {
	db, mock, repo := setupPlanMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, plan_type FROM follow_up_plans WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "plan_type"}).AddRow("p1", domain.PlanTypeDefault))
	mock.ExpectQuery(`SELECT id, step_number, wait_days, template_id FROM follow_up_steps`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "step_number", "wait_days", "template_id"}).
			AddRow("s0", 0, 0, "t0").
			AddRow("s1", 1, 4, nil))

	plan, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, 1, plan.MaxFollowUpNumber())
	require.NotNil(t, plan.Steps[0].TemplateID)
	assert.Equal(t, "t0", *plan.Steps[0].TemplateID)
	assert.Nil(t, plan.Steps[1].TemplateID)
}

func TestPlanRepository_Delete(t *testing.T) {
	db, mock, repo := setupPlanMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM follow_up_steps WHERE plan_id = \$1`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM follow_up_plans WHERE id = \$1`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
