package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/pkg/logger"
)

// SchedulingStatus classifies a recipient's position in its sequence.
type SchedulingStatus string

const (
	SchedulingStatusNotRequired SchedulingStatus = "NO_SCHEDULING_REQUIRED"
	SchedulingStatusNoEmails    SchedulingStatus = "NO_EMAILS_SCHEDULED"
	SchedulingStatusComplete    SchedulingStatus = "SEQUENCE_COMPLETE"
	SchedulingStatusPartial     SchedulingStatus = "PARTIAL_SEQUENCE_SCHEDULED"
)

const replySubjectPrefix = "Re: "

// defaultSchedulerParallelism bounds concurrent per-recipient scheduling.
const defaultSchedulerParallelism = 8

// recipientLocks serializes all mutations for a given recipient id. Shared
// between the scheduler and the dispatcher.
type recipientLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRecipientLocks() *recipientLocks {
	return &recipientLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *recipientLocks) forRecipient(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	return lock
}

// SchedulerService materializes per-recipient email sequences from follow-up
// plans. One run classifies every recipient and persists the emails the
// classification calls for; failures are isolated per recipient.
type SchedulerService struct {
	emailRepo     domain.EmailRepository
	recipientRepo domain.RecipientRepository
	planRepo      domain.PlanRepository
	templateRepo  domain.TemplateRepository
	resolver      *PlaceholderResolver
	sender        domain.EmailAddress
	locks         *recipientLocks
	parallelism   int
	logger        logger.Logger
}

// NewSchedulerService creates a scheduler.
func NewSchedulerService(
	emailRepo domain.EmailRepository,
	recipientRepo domain.RecipientRepository,
	planRepo domain.PlanRepository,
	templateRepo domain.TemplateRepository,
	resolver *PlaceholderResolver,
	sender domain.EmailAddress,
	logger logger.Logger,
) *SchedulerService {
	return &SchedulerService{
		emailRepo:     emailRepo,
		recipientRepo: recipientRepo,
		planRepo:      planRepo,
		templateRepo:  templateRepo,
		resolver:      resolver,
		sender:        sender,
		locks:         newRecipientLocks(),
		parallelism:   defaultSchedulerParallelism,
		logger:        logger,
	}
}

// ScheduleAll runs one scheduling tick across every recipient. Recipients
// bound to a plan use it; unbound recipients fall back to the default plan.
// The result maps recipient id to the emails persisted for it this tick; a
// failed recipient is logged and absent from the map.
func (s *SchedulerService) ScheduleAll(ctx context.Context) (map[string][]*domain.EmailWithMetadata, error) {
	plans, err := s.loadPlans(ctx)
	if err != nil {
		return nil, err
	}
	recipients, err := s.recipientRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}

	results := make(map[string][]*domain.EmailWithMetadata)
	var resultsMu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.parallelism)
	for _, recipient := range recipients {
		recipient := recipient
		group.Go(func() error {
			plan := plans.forRecipient(recipient)
			if plan == nil {
				s.logger.WithField("recipient_id", recipient.ID).Warn("no plan available for recipient")
				return nil
			}

			lock := s.locks.forRecipient(recipient.ID)
			lock.Lock()
			emails, err := s.ScheduleRecipient(groupCtx, plan, recipient)
			lock.Unlock()
			if err != nil {
				s.logger.WithFields(map[string]interface{}{
					"recipient_id": recipient.ID,
					"plan_id":      plan.Plan.ID,
				}).Error(fmt.Sprintf("scheduling failed: %v", err))
				return nil
			}
			if len(emails) > 0 {
				resultsMu.Lock()
				results[recipient.ID] = emails
				resultsMu.Unlock()
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Classify determines the recipient's scheduling status against its plan.
func (s *SchedulerService) Classify(recipient *domain.Recipient, existing []*domain.EmailWithMetadata, maxFollowUp int) SchedulingStatus {
	if recipient.InitialContactDate == nil {
		return SchedulingStatusNotRequired
	}
	if len(existing) == 0 {
		return SchedulingStatusNoEmails
	}
	if maxExistingFollowUp(existing) >= maxFollowUp {
		return SchedulingStatusComplete
	}
	return SchedulingStatusPartial
}

// ScheduleRecipient runs the state machine for one recipient. Replied
// recipients and recipients without an initial contact date emit nothing.
func (s *SchedulerService) ScheduleRecipient(ctx context.Context, plan *domain.PlanWithTemplates, recipient *domain.Recipient) ([]*domain.EmailWithMetadata, error) {
	if recipient.HasReplied {
		return nil, nil
	}

	existing, err := s.emailRepo.FindByRecipient(ctx, recipient.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load emails for recipient %s: %w", recipient.ID, err)
	}

	switch s.Classify(recipient, existing, plan.Plan.MaxFollowUpNumber()) {
	case SchedulingStatusNotRequired, SchedulingStatusComplete:
		return nil, nil
	case SchedulingStatusNoEmails:
		return s.scheduleFullSequence(ctx, plan, recipient)
	default:
		return s.resumeSequence(ctx, plan, recipient, existing)
	}
}

func (s *SchedulerService) scheduleFullSequence(ctx context.Context, plan *domain.PlanWithTemplates, recipient *domain.Recipient) ([]*domain.EmailWithMetadata, error) {
	initial, err := s.buildEmail(ctx, plan.Templates[0], recipient, domain.TemplateTypeInitial, false)
	if err != nil {
		return nil, err
	}
	metadata, err := domain.NewEmailMetadata(recipient.ID, 0, domain.EmailStatusPending, *recipient.InitialContactDate)
	if err != nil {
		return nil, err
	}
	if err := s.emailRepo.Create(ctx, initial, metadata); err != nil {
		return nil, fmt.Errorf("failed to persist initial email: %w", err)
	}

	// The initial email links to itself; the id only exists after the first
	// save, so the link lands in a second write.
	metadata = metadata.WithInitialEmail(initial.ID)
	if err := s.emailRepo.Update(ctx, initial, metadata); err != nil {
		return nil, fmt.Errorf("failed to self-link initial email: %w", err)
	}

	emails := []*domain.EmailWithMetadata{{Email: initial, Metadata: metadata}}
	previous := *recipient.InitialContactDate
	for i := 1; i <= plan.Plan.MaxFollowUpNumber(); i++ {
		scheduled := plan.ScheduledDateForStep(i, previous)
		followUp, err := s.buildEmail(ctx, plan.Templates[i], recipient, domain.TemplateTypeFollowUp, true)
		if err != nil {
			return nil, err
		}
		followUpMeta, err := domain.NewEmailMetadata(
			recipient.ID, plan.Plan.Steps[i].StepNumber, domain.EmailStatusPending, scheduled,
			domain.WithInitialEmailID(initial.ID),
		)
		if err != nil {
			return nil, err
		}
		if err := s.emailRepo.Create(ctx, followUp, followUpMeta); err != nil {
			return nil, fmt.Errorf("failed to persist follow-up %d: %w", i, err)
		}
		emails = append(emails, &domain.EmailWithMetadata{Email: followUp, Metadata: followUpMeta})
		previous = scheduled
	}
	return emails, nil
}

func (s *SchedulerService) resumeSequence(ctx context.Context, plan *domain.PlanWithTemplates, recipient *domain.Recipient, existing []*domain.EmailWithMetadata) ([]*domain.EmailWithMetadata, error) {
	initial := findInitial(existing)
	if initial == nil {
		return nil, &domain.SchedulingInvariantError{RecipientID: recipient.ID, Reason: "partial sequence has no initial email"}
	}
	current := maxExistingFollowUp(existing)
	last := findByFollowUp(existing, current)
	if last == nil {
		return nil, &domain.SchedulingInvariantError{RecipientID: recipient.ID, Reason: fmt.Sprintf("no email carries the current follow-up number %d", current)}
	}

	var emails []*domain.EmailWithMetadata
	base := last.Metadata.ScheduledDate
	for i := current + 1; i <= plan.Plan.MaxFollowUpNumber(); i++ {
		scheduled := plan.ScheduledDateForStep(i, base)
		followUp, err := s.buildEmail(ctx, plan.Templates[i], recipient, domain.TemplateTypeFollowUp, true)
		if err != nil {
			return nil, err
		}
		followUpMeta, err := domain.NewEmailMetadata(
			recipient.ID, plan.Plan.Steps[i].StepNumber, domain.EmailStatusPending, scheduled,
			domain.WithInitialEmailID(initial.Email.ID),
		)
		if err != nil {
			return nil, err
		}
		if err := s.emailRepo.Create(ctx, followUp, followUpMeta); err != nil {
			return nil, fmt.Errorf("failed to persist follow-up %d: %w", i, err)
		}
		emails = append(emails, &domain.EmailWithMetadata{Email: followUp, Metadata: followUpMeta})
		base = scheduled
	}
	return emails, nil
}

// buildEmail resolves the template for the recipient and assembles the email
// entity. Follow-up subjects carry the reply prefix so the gateway threads
// them into the existing conversation.
func (s *SchedulerService) buildEmail(ctx context.Context, template *domain.Template, recipient *domain.Recipient, emailType domain.TemplateType, replyPrefix bool) (*domain.Email, error) {
	subject, body, err := s.resolver.ResolveTemplate(ctx, template, recipient.ID)
	if err != nil {
		return nil, err
	}
	if replyPrefix && !strings.HasPrefix(subject, replySubjectPrefix) {
		subject = replySubjectPrefix + subject
	}
	email := &domain.Email{
		ID:        uuid.New().String(),
		Sender:    s.sender,
		Recipient: recipient.EmailAddress,
		Subject:   subject,
		Body:      body,
		Type:      emailType,
	}
	if err := email.Validate(); err != nil {
		return nil, err
	}
	return email, nil
}

// planIndex resolves each recipient to its plan, falling back to the default.
type planIndex struct {
	byID     map[string]*domain.PlanWithTemplates
	fallback *domain.PlanWithTemplates
}

func (p *planIndex) forRecipient(recipient *domain.Recipient) *domain.PlanWithTemplates {
	if recipient.Metadata.PlanID != nil {
		if plan, ok := p.byID[*recipient.Metadata.PlanID]; ok {
			return plan
		}
	}
	return p.fallback
}

func (s *SchedulerService) loadPlans(ctx context.Context) (*planIndex, error) {
	plans, err := s.planRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	// A plan that cannot be loaded is skipped so the rest of the tick still
	// runs; its recipients are logged as planless later.
	index := &planIndex{byID: make(map[string]*domain.PlanWithTemplates, len(plans))}
	for _, plan := range plans {
		withTemplates, err := s.loadPlanTemplates(ctx, plan)
		if err != nil {
			s.logger.WithField("plan_id", plan.ID).Warn(fmt.Sprintf("skipping plan: %v", err))
			continue
		}
		index.byID[plan.ID] = withTemplates
		if plan.PlanType == domain.PlanTypeDefault && index.fallback == nil {
			index.fallback = withTemplates
		}
	}
	return index, nil
}

func (s *SchedulerService) loadPlanTemplates(ctx context.Context, plan *domain.FollowUpPlan) (*domain.PlanWithTemplates, error) {
	templates := make([]*domain.Template, len(plan.Steps))
	for i, step := range plan.Steps {
		if step.TemplateID == nil {
			return nil, &domain.SchedulingInvariantError{Reason: fmt.Sprintf("step %d has no template", i)}
		}
		template, err := s.templateRepo.GetByID(ctx, *step.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("failed to load template for step %d: %w", i, err)
		}
		templates[i] = template
	}
	return domain.NewPlanWithTemplates(plan, templates)
}

func maxExistingFollowUp(existing []*domain.EmailWithMetadata) int {
	max := 0
	for _, e := range existing {
		if e.Metadata.FollowUpNumber > max {
			max = e.Metadata.FollowUpNumber
		}
	}
	return max
}

func findInitial(existing []*domain.EmailWithMetadata) *domain.EmailWithMetadata {
	for _, e := range existing {
		if e.Email.Type.IsInitial() {
			return e
		}
	}
	return nil
}

func findByFollowUp(existing []*domain.EmailWithMetadata, followUp int) *domain.EmailWithMetadata {
	for _, e := range existing {
		if e.Metadata.FollowUpNumber == followUp {
			return e
		}
	}
	return nil
}
