package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/pkg/logger"
)

type schedulerFixture struct {
	emails     *MockEmailRepository
	recipients *MockRecipientRepository
	plans      *MockPlanRepository
	templates  *MockTemplateRepository
	scheduler  *SchedulerService
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		emails:     &MockEmailRepository{},
		recipients: &MockRecipientRepository{},
		plans:      &MockPlanRepository{},
		templates:  &MockTemplateRepository{},
	}
	resolver := NewPlaceholderResolver(f.recipients, &MockContactRepository{}, &MockSpreadsheetGateway{}, "sheet-1", logger.NewMockLogger())
	f.scheduler = NewSchedulerService(f.emails, f.recipients, f.plans, f.templates, resolver, "sender@example.com", logger.NewMockLogger())
	return f
}

func twoStepPlan(t *testing.T) *domain.PlanWithTemplates {
	t.Helper()
	store := domain.NewPlaceholderStore()
	require.NoError(t, store.AddStringPlaceholder("name", "Alice"))
	t0, err := domain.NewTemplate("t0", domain.TemplateTypeInitial, "Hi {name}", "Hi {name}", store)
	require.NoError(t, err)
	t1, err := domain.NewTemplate("t1", domain.TemplateTypeFollowUp, "anything", "checking in", domain.NewPlaceholderStore())
	require.NoError(t, err)

	plan, err := domain.NewFollowUpPlan("p1", domain.PlanTypeDefault, []domain.FollowUpStep{
		{ID: "s0", StepNumber: 0, WaitDays: 0},
		{ID: "s1", StepNumber: 1, WaitDays: 3},
	})
	require.NoError(t, err)
	withTemplates, err := domain.NewPlanWithTemplates(plan, []*domain.Template{t0, t1})
	require.NoError(t, err)
	return withTemplates
}

func schedulerRecipient(t *testing.T, contactDate *time.Time) *domain.Recipient {
	t.Helper()
	address, err := domain.NewEmailAddress("alice@example.com")
	require.NoError(t, err)
	recipient, err := domain.NewRecipient("r1", address, "c1")
	require.NoError(t, err)
	if contactDate != nil {
		require.NoError(t, recipient.SetInitialContactDate(*contactDate))
	}
	return recipient
}

func TestScheduleRecipient_FullSequence(t *testing.T) {
	f := newSchedulerFixture(t)
	contactDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	recipient := schedulerRecipient(t, &contactDate)
	plan := twoStepPlan(t)

	emails, err := f.scheduler.ScheduleRecipient(context.Background(), plan, recipient)
	require.NoError(t, err)
	require.Len(t, emails, 2)

	initial := emails[0]
	assert.Equal(t, 0, initial.Metadata.FollowUpNumber)
	assert.Equal(t, domain.EmailStatusPending, initial.Metadata.Status)
	assert.Equal(t, contactDate, initial.Metadata.ScheduledDate)
	assert.Equal(t, "Hi Alice", initial.Email.Body)
	require.NotNil(t, initial.Metadata.InitialEmailID)
	assert.Equal(t, initial.Email.ID, *initial.Metadata.InitialEmailID)

	followUp := emails[1]
	assert.Equal(t, 1, followUp.Metadata.FollowUpNumber)
	assert.Equal(t, time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), followUp.Metadata.ScheduledDate)
	assert.Equal(t, "Re: anything", followUp.Email.Subject)
	require.NotNil(t, followUp.Metadata.InitialEmailID)
	assert.Equal(t, initial.Email.ID, *followUp.Metadata.InitialEmailID)

	// Initial is persisted twice: once to obtain its id, once for the self-link.
	require.Len(t, f.emails.CreateCalls, 2)
	require.Len(t, f.emails.UpdateCalls, 1)
	assert.Equal(t, initial.Email.ID, f.emails.UpdateCalls[0].Email.ID)
}

func TestScheduleRecipient_ResumeFromPartial(t *testing.T) {
	f := newSchedulerFixture(t)
	contactDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	recipient := schedulerRecipient(t, &contactDate)
	plan := twoStepPlan(t)

	sentDate := contactDate
	existingMeta, err := domain.NewEmailMetadata("r1", 0, domain.EmailStatusSent, contactDate,
		domain.WithInitialEmailID("e0"), domain.WithSentDate(sentDate))
	require.NoError(t, err)
	existing := &domain.EmailWithMetadata{
		Email: &domain.Email{
			ID: "e0", Sender: "sender@example.com", Recipient: "alice@example.com",
			Subject: "Hi Alice", Body: "Hi Alice", Type: domain.TemplateTypeInitial,
		},
		Metadata: existingMeta,
	}
	f.emails.FindByRecipientFn = func(ctx context.Context, recipientID string) ([]*domain.EmailWithMetadata, error) {
		return []*domain.EmailWithMetadata{existing}, nil
	}

	emails, err := f.scheduler.ScheduleRecipient(context.Background(), plan, recipient)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, 1, emails[0].Metadata.FollowUpNumber)
	assert.Equal(t, time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC), emails[0].Metadata.ScheduledDate)
	require.NotNil(t, emails[0].Metadata.InitialEmailID)
	assert.Equal(t, "e0", *emails[0].Metadata.InitialEmailID)
	assert.Equal(t, "Re: anything", emails[0].Email.Subject)
	require.Len(t, f.emails.CreateCalls, 1)
}

func TestScheduleRecipient_QuiescentRerunCreatesNothing(t *testing.T) {
	f := newSchedulerFixture(t)
	contactDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	recipient := schedulerRecipient(t, &contactDate)
	plan := twoStepPlan(t)

	var persisted []*domain.EmailWithMetadata
	f.emails.CreateFn = func(ctx context.Context, email *domain.Email, metadata *domain.EmailMetadata) error {
		persisted = append(persisted, &domain.EmailWithMetadata{Email: email, Metadata: metadata})
		return nil
	}
	f.emails.FindByRecipientFn = func(ctx context.Context, recipientID string) ([]*domain.EmailWithMetadata, error) {
		return persisted, nil
	}

	first, err := f.scheduler.ScheduleRecipient(context.Background(), plan, recipient)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := f.scheduler.ScheduleRecipient(context.Background(), plan, recipient)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, persisted, 2)
}

func TestScheduleRecipient_EmitsNothing(t *testing.T) {
	t.Run("no initial contact date", func(t *testing.T) {
		f := newSchedulerFixture(t)
		recipient := schedulerRecipient(t, nil)

		emails, err := f.scheduler.ScheduleRecipient(context.Background(), twoStepPlan(t), recipient)
		require.NoError(t, err)
		assert.Empty(t, emails)
		assert.Empty(t, f.emails.CreateCalls)
	})

	t.Run("recipient has replied", func(t *testing.T) {
		f := newSchedulerFixture(t)
		contactDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		recipient := schedulerRecipient(t, &contactDate)
		recipient.MarkReplied()

		emails, err := f.scheduler.ScheduleRecipient(context.Background(), twoStepPlan(t), recipient)
		require.NoError(t, err)
		assert.Empty(t, emails)
		assert.Empty(t, f.emails.CreateCalls)
	})
}

func TestScheduleRecipient_ZeroWaitSharesDate(t *testing.T) {
	f := newSchedulerFixture(t)
	contactDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	recipient := schedulerRecipient(t, &contactDate)

	plan := twoStepPlan(t)
	plan.Plan.Steps[1].WaitDays = 0

	emails, err := f.scheduler.ScheduleRecipient(context.Background(), plan, recipient)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, emails[0].Metadata.ScheduledDate, emails[1].Metadata.ScheduledDate)
}

func TestScheduleAll_FailureIsolation(t *testing.T) {
	f := newSchedulerFixture(t)
	contactDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	good := schedulerRecipient(t, &contactDate)
	badAddress, err := domain.NewEmailAddress("bob@example.com")
	require.NoError(t, err)
	bad, err := domain.NewRecipient("r2", badAddress, "c2")
	require.NoError(t, err)
	require.NoError(t, bad.SetInitialContactDate(contactDate))

	f.recipients.ListFn = func(ctx context.Context) ([]*domain.Recipient, error) {
		return []*domain.Recipient{bad, good}, nil
	}

	plan := twoStepPlan(t)
	f.plans.ListFn = func(ctx context.Context) ([]*domain.FollowUpPlan, error) {
		t0, t1 := "t0", "t1"
		plan.Plan.Steps[0].TemplateID = &t0
		plan.Plan.Steps[1].TemplateID = &t1
		return []*domain.FollowUpPlan{plan.Plan}, nil
	}
	f.templates.GetByIDFn = func(ctx context.Context, id string) (*domain.Template, error) {
		if id == "t0" {
			return plan.Templates[0], nil
		}
		return plan.Templates[1], nil
	}

	f.emails.FindByRecipientFn = func(ctx context.Context, recipientID string) ([]*domain.EmailWithMetadata, error) {
		if recipientID == "r2" {
			return nil, &domain.ErrNotFound{Entity: "recipient", ID: recipientID}
		}
		return nil, nil
	}

	results, err := f.scheduler.ScheduleAll(context.Background())
	require.NoError(t, err)
	require.Contains(t, results, "r1")
	assert.NotContains(t, results, "r2")
	assert.Len(t, results["r1"], 2)
}

func TestScheduleAll_BrokenPlanDoesNotAbortTick(t *testing.T) {
	f := newSchedulerFixture(t)
	contactDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	recipient := schedulerRecipient(t, &contactDate)

	f.recipients.ListFn = func(ctx context.Context) ([]*domain.Recipient, error) {
		return []*domain.Recipient{recipient}, nil
	}

	// One plan is missing its step template, the other is healthy.
	broken, err := domain.NewFollowUpPlan("p-broken", domain.PlanTypeCustom, []domain.FollowUpStep{
		{ID: "b0", StepNumber: 0, WaitDays: 0},
	})
	require.NoError(t, err)

	healthy := twoStepPlan(t)
	f.plans.ListFn = func(ctx context.Context) ([]*domain.FollowUpPlan, error) {
		t0, t1 := "t0", "t1"
		healthy.Plan.Steps[0].TemplateID = &t0
		healthy.Plan.Steps[1].TemplateID = &t1
		return []*domain.FollowUpPlan{broken, healthy.Plan}, nil
	}
	f.templates.GetByIDFn = func(ctx context.Context, id string) (*domain.Template, error) {
		if id == "t0" {
			return healthy.Templates[0], nil
		}
		return healthy.Templates[1], nil
	}

	results, err := f.scheduler.ScheduleAll(context.Background())
	require.NoError(t, err)
	require.Contains(t, results, "r1")
	assert.Len(t, results["r1"], 2)
}
