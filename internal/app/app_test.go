package app

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/config"
	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/internal/service"
)

func TestEnsureDefaultPlan_CreatesPlanWithUUID(t *testing.T) {
	plans := &service.MockPlanRepository{}
	var created *domain.FollowUpPlan
	plans.CreateFn = func(ctx context.Context, plan *domain.FollowUpPlan) error {
		created = plan
		return nil
	}

	a := &App{
		Config:   &config.Config{FollowUpIntervals: []int{0, 4, 7}},
		PlanRepo: plans,
	}
	require.NoError(t, a.EnsureDefaultPlan(context.Background()))

	require.NotNil(t, created)
	assert.Equal(t, domain.PlanTypeDefault, created.PlanType)
	require.Len(t, created.Steps, 3)
	assert.Equal(t, 4, created.Steps[1].WaitDays)

	// The plans table keys on a UUID column.
	_, err := uuid.Parse(created.ID)
	assert.NoError(t, err)
}

func TestEnsureDefaultPlan_ExistingDefaultIsKept(t *testing.T) {
	plans := &service.MockPlanRepository{}
	existing, err := domain.NewFollowUpPlan(uuid.New().String(), domain.PlanTypeDefault, []domain.FollowUpStep{
		{ID: "s0", StepNumber: 0, WaitDays: 0},
	})
	require.NoError(t, err)
	plans.ListFn = func(ctx context.Context) ([]*domain.FollowUpPlan, error) {
		return []*domain.FollowUpPlan{existing}, nil
	}
	plans.CreateFn = func(ctx context.Context, plan *domain.FollowUpPlan) error {
		t.Fatal("no plan should be created when a default already exists")
		return nil
	}

	a := &App{
		Config:   &config.Config{FollowUpIntervals: []int{0, 4}},
		PlanRepo: plans,
	}
	require.NoError(t, a.EnsureDefaultPlan(context.Background()))
}
