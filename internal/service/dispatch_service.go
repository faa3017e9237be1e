package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/pkg/logger"
)

// DispatchOutcome is the per-email verdict of one dispatch pass.
type DispatchOutcome string

const (
	DispatchOutcomeSent    DispatchOutcome = "SENT"
	DispatchOutcomeSkipped DispatchOutcome = "SKIPPED"
	DispatchOutcomeFailed  DispatchOutcome = "FAILED"
)

// defaultGatewayTimeout bounds each mail gateway call.
const defaultGatewayTimeout = 30 * time.Second

// SendRequest is one validated dispatch unit. Follow-ups must carry the
// thread id of their conversation.
type SendRequest struct {
	Email          *domain.Email
	Metadata       *domain.EmailMetadata
	ThreadID       *string
	FollowUpNumber int
}

// DispatchResult records what happened to one request.
type DispatchResult struct {
	RecipientID string
	HasReplied  bool
	Outcome     DispatchOutcome
	SendResult  *domain.SendResult
	Request     *SendRequest
	Err         error
}

// DispatchService runs the dispatch pipeline: reply gate, send or draft,
// status update, thread binding. The side-effect order is fixed; a FAILED
// email never claims a thread id or a sent date.
type DispatchService struct {
	emailRepo     domain.EmailRepository
	recipientRepo domain.RecipientRepository
	mail          domain.MailGateway
	selector      *PendingSelector
	locks         *recipientLocks
	timeout       time.Duration
	now           func() time.Time
	logger        logger.Logger
}

// NewDispatchService creates a dispatcher.
func NewDispatchService(
	emailRepo domain.EmailRepository,
	recipientRepo domain.RecipientRepository,
	mail domain.MailGateway,
	selector *PendingSelector,
	logger logger.Logger,
) *DispatchService {
	return &DispatchService{
		emailRepo:     emailRepo,
		recipientRepo: recipientRepo,
		mail:          mail,
		selector:      selector,
		locks:         newRecipientLocks(),
		timeout:       defaultGatewayTimeout,
		now:           time.Now,
		logger:        logger,
	}
}

// DispatchAll selects the due emails and dispatches each. saveAsDraft stores
// drafts at the gateway instead of sending. Per-recipient failures are
// recorded in the result list and do not abort the run.
func (s *DispatchService) DispatchAll(ctx context.Context, saveAsDraft bool) ([]*DispatchResult, error) {
	due, err := s.selector.SelectDue(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*DispatchResult, 0, len(due))
	for _, entry := range due {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}

		lock := s.locks.forRecipient(entry.Metadata.RecipientID)
		lock.Lock()
		result := s.dispatchOne(ctx, entry, saveAsDraft)
		lock.Unlock()

		if result.Err != nil {
			s.logger.WithField("recipient_id", result.RecipientID).Error(fmt.Sprintf("dispatch failed: %v", result.Err))
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *DispatchService) dispatchOne(ctx context.Context, entry *domain.EmailWithMetadata, saveAsDraft bool) *DispatchResult {
	result := &DispatchResult{RecipientID: entry.Metadata.RecipientID}

	recipient, err := s.recipientRepo.GetByID(ctx, entry.Metadata.RecipientID)
	if err != nil {
		result.Outcome = DispatchOutcomeFailed
		result.Err = fmt.Errorf("failed to load recipient: %w", err)
		return result
	}

	// A recipient marked replied stays quiet for good, whatever the thread
	// looks like today.
	if recipient.HasReplied {
		result.HasReplied = true
		result.Outcome = DispatchOutcomeSkipped
		return result
	}

	request := &SendRequest{
		Email:          entry.Email,
		Metadata:       entry.Metadata,
		ThreadID:       recipient.Metadata.ThreadID,
		FollowUpNumber: entry.Metadata.FollowUpNumber,
	}
	result.Request = request

	if request.FollowUpNumber > 0 && request.ThreadID == nil {
		result.Outcome = DispatchOutcomeFailed
		result.Err = &domain.SchedulingInvariantError{
			RecipientID: recipient.ID,
			Reason:      fmt.Sprintf("follow-up %d has no thread id", request.FollowUpNumber),
		}
		return result
	}

	if request.FollowUpNumber > 0 {
		replied := s.checkReplies(ctx, *request.ThreadID, request.FollowUpNumber)
		if replied {
			if err := s.recipientRepo.MarkReplied(ctx, recipient.ID); err != nil {
				result.Outcome = DispatchOutcomeFailed
				result.Err = fmt.Errorf("failed to mark recipient replied: %w", err)
				return result
			}
			result.HasReplied = true
			result.Outcome = DispatchOutcomeSkipped
			return result
		}
	}

	sendResult := s.callGateway(ctx, request, saveAsDraft)
	result.SendResult = sendResult

	if sendResult.Status == domain.SendStatusSuccess {
		sent, err := entry.Metadata.MarkSent(s.now().UTC())
		if err != nil {
			result.Outcome = DispatchOutcomeFailed
			result.Err = err
			return result
		}
		if err := s.emailRepo.Update(ctx, entry.Email, sent); err != nil {
			result.Outcome = DispatchOutcomeFailed
			result.Err = fmt.Errorf("failed to record sent status: %w", err)
			return result
		}
		result.Outcome = DispatchOutcomeSent

		// Only the initial send binds the thread; follow-ups never rewrite it.
		if entry.Metadata.IsInitial() && sendResult.ThreadID != nil {
			if err := s.recipientRepo.UpdateThreadID(ctx, recipient.ID, *sendResult.ThreadID); err != nil {
				result.Err = fmt.Errorf("sent but failed to bind thread id: %w", err)
			}
		}
		return result
	}

	reason := "send failed"
	if sendResult.ErrorMessage != nil {
		reason = *sendResult.ErrorMessage
	}
	failed, err := entry.Metadata.MarkFailed(reason)
	if err != nil {
		result.Outcome = DispatchOutcomeFailed
		result.Err = err
		return result
	}
	if err := s.emailRepo.Update(ctx, entry.Email, failed); err != nil {
		result.Outcome = DispatchOutcomeFailed
		result.Err = fmt.Errorf("failed to record failure: %w", err)
		return result
	}
	result.Outcome = DispatchOutcomeFailed
	return result
}

// checkReplies asks the gateway whether the thread holds more messages than
// the sequence has produced so far (initial plus prior follow-ups). Gateway
// errors are treated as "replied" so a broken reply check never causes an
// unwanted follow-up.
func (s *DispatchService) checkReplies(ctx context.Context, threadID string, followUpNumber int) bool {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	replied, err := s.mail.HasReplies(callCtx, threadID, followUpNumber+1)
	if err != nil {
		s.logger.WithField("thread_id", threadID).Warn(fmt.Sprintf("reply check failed, treating as replied: %v", err))
		return true
	}
	return replied
}

func (s *DispatchService) callGateway(ctx context.Context, request *SendRequest, saveAsDraft bool) *domain.SendResult {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		sendResult *domain.SendResult
		err        error
	)
	if saveAsDraft {
		sendResult, err = s.mail.SaveDraft(callCtx, request.Email, request.ThreadID)
	} else {
		sendResult, err = s.mail.Send(callCtx, request.Email, request.ThreadID)
	}
	if err != nil {
		message := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			message = "timeout"
		}
		return &domain.SendResult{Status: domain.SendStatusFailure, ErrorMessage: &message}
	}
	return sendResult
}
