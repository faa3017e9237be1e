package domain

import (
	"fmt"
	"time"
)

// PlanType categorizes follow-up plans.
type PlanType string

const (
	PlanTypeDefault PlanType = "DEFAULT"
	PlanTypeCustom  PlanType = "CUSTOM"
)

// FollowUpStep is one step of a plan. Step 0 is the initial message; later
// steps wait the given number of days after the previous step.
type FollowUpStep struct {
	ID         string  `json:"id"`
	StepNumber int     `json:"step_number"`
	WaitDays   int     `json:"wait_days"`
	TemplateID *string `json:"template_id,omitempty"`
}

// FollowUpPlan is an ordered list of follow-up steps with contiguous step
// numbers starting at 0.
type FollowUpPlan struct {
	ID       string         `json:"id"`
	PlanType PlanType       `json:"plan_type"`
	Steps    []FollowUpStep `json:"steps"`
}

// NewFollowUpPlan creates a validated plan.
func NewFollowUpPlan(id string, planType PlanType, steps []FollowUpStep) (*FollowUpPlan, error) {
	p := &FollowUpPlan{ID: id, PlanType: planType, Steps: steps}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks the plan's structural invariants.
func (p *FollowUpPlan) Validate() error {
	if p.ID == "" {
		return NewValidationError("plan id is required")
	}
	if p.PlanType != PlanTypeDefault && p.PlanType != PlanTypeCustom {
		return NewValidationError("invalid plan type")
	}
	if len(p.Steps) == 0 {
		return NewValidationError("plan requires at least the initial step")
	}
	for i, step := range p.Steps {
		if step.StepNumber != i {
			return NewValidationError(fmt.Sprintf("step numbers must be contiguous from 0, step at index %d has number %d", i, step.StepNumber))
		}
		if step.WaitDays < 0 {
			return NewValidationError(fmt.Sprintf("step %d has a negative wait period", i))
		}
	}
	return nil
}

// MaxFollowUpNumber returns the highest follow-up index of the plan.
func (p *FollowUpPlan) MaxFollowUpNumber() int {
	return len(p.Steps) - 1
}

// PlanWithTemplates pairs a plan's steps one-to-one with their templates.
type PlanWithTemplates struct {
	Plan      *FollowUpPlan
	Templates []*Template
}

// NewPlanWithTemplates validates the one-to-one pairing of steps and
// templates.
func NewPlanWithTemplates(plan *FollowUpPlan, templates []*Template) (*PlanWithTemplates, error) {
	if plan == nil {
		return nil, NewValidationError("plan is required")
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if len(templates) != len(plan.Steps) {
		return nil, NewValidationError(fmt.Sprintf("plan has %d steps but %d templates", len(plan.Steps), len(templates)))
	}
	for i, t := range templates {
		if t == nil {
			return nil, NewValidationError(fmt.Sprintf("step %d has no template", i))
		}
	}
	return &PlanWithTemplates{Plan: plan, Templates: templates}, nil
}

// ScheduledDateForStep computes the scheduled date of step i given the
// scheduled date of step i-1. A wait period of 0 yields the prior date.
func (p *PlanWithTemplates) ScheduledDateForStep(i int, previous time.Time) time.Time {
	return previous.AddDate(0, 0, p.Plan.Steps[i].WaitDays)
}
