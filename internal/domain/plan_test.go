package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSteps(waits ...int) []FollowUpStep {
	steps := make([]FollowUpStep, len(waits))
	for i, w := range waits {
		steps[i] = FollowUpStep{StepNumber: i, WaitDays: w}
	}
	return steps
}

func TestNewFollowUpPlan(t *testing.T) {
	plan, err := NewFollowUpPlan("p1", PlanTypeDefault, testSteps(0, 3, 7))
	require.NoError(t, err)
	assert.Equal(t, 2, plan.MaxFollowUpNumber())
}

func TestFollowUpPlanValidation(t *testing.T) {
	// No steps at all.
	_, err := NewFollowUpPlan("p1", PlanTypeDefault, nil)
	assert.Error(t, err)

	// Step numbers must equal their index.
	_, err = NewFollowUpPlan("p1", PlanTypeDefault, []FollowUpStep{
		{StepNumber: 0, WaitDays: 0},
		{StepNumber: 2, WaitDays: 3},
	})
	assert.Error(t, err)

	// Negative wait.
	_, err = NewFollowUpPlan("p1", PlanTypeDefault, []FollowUpStep{
		{StepNumber: 0, WaitDays: -1},
	})
	assert.Error(t, err)

	_, err = NewFollowUpPlan("p1", PlanType("WEIRD"), testSteps(0))
	assert.Error(t, err)
}

func TestNewPlanWithTemplates(t *testing.T) {
	plan, err := NewFollowUpPlan("p1", PlanTypeDefault, testSteps(0, 3))
	require.NoError(t, err)

	t0, err := NewTemplate("t0", TemplateTypeInitial, "Hi", "Body", nil)
	require.NoError(t, err)
	t1, err := NewTemplate("t1", TemplateTypeFollowUp, "Re: Hi", "Body", nil)
	require.NoError(t, err)

	pwt, err := NewPlanWithTemplates(plan, []*Template{t0, t1})
	require.NoError(t, err)
	assert.Len(t, pwt.Templates, 2)

	// Pairing must be one-to-one.
	_, err = NewPlanWithTemplates(plan, []*Template{t0})
	assert.Error(t, err)

	_, err = NewPlanWithTemplates(plan, []*Template{t0, nil})
	assert.Error(t, err)
}

func TestScheduledDateForStep(t *testing.T) {
	plan, err := NewFollowUpPlan("p1", PlanTypeDefault, testSteps(0, 3, 0))
	require.NoError(t, err)
	t0, _ := NewTemplate("t0", TemplateTypeInitial, "Hi", "Body", nil)
	t1, _ := NewTemplate("t1", TemplateTypeFollowUp, "Re: Hi", "Body", nil)
	t2, _ := NewTemplate("t2", TemplateTypeFollowUp, "Re: Hi", "Body", nil)
	pwt, err := NewPlanWithTemplates(plan, []*Template{t0, t1, t2})
	require.NoError(t, err)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	next := pwt.ScheduledDateForStep(1, base)
	assert.Equal(t, time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), next)

	// A zero wait period yields the same date as the prior step.
	same := pwt.ScheduledDateForStep(2, next)
	assert.Equal(t, next, same)
}
