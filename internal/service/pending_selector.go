package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/phleudt/mailscheduler/internal/domain"
	"github.com/phleudt/mailscheduler/pkg/logger"
)

// PendingSelector picks at most one due email per recipient for dispatch.
type PendingSelector struct {
	emailRepo domain.EmailRepository
	now       func() time.Time
	logger    logger.Logger
}

// NewPendingSelector creates a selector.
func NewPendingSelector(emailRepo domain.EmailRepository, logger logger.Logger) *PendingSelector {
	return &PendingSelector{emailRepo: emailRepo, now: time.Now, logger: logger}
}

// SelectDue returns one email per recipient: the lowest follow-up number among
// that recipient's PENDING emails scheduled before tomorrow. Externally
// recorded emails are never dispatched; emails without a recipient id are
// dropped.
func (s *PendingSelector) SelectDue(ctx context.Context) ([]*domain.EmailWithMetadata, error) {
	cutoff := s.now().UTC().AddDate(0, 0, 1)
	pending, err := s.emailRepo.FindPendingScheduledBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending emails: %w", err)
	}

	byRecipient := make(map[string]*domain.EmailWithMetadata)
	var order []string
	for _, e := range pending {
		if e.Email.Type.IsExternal() {
			continue
		}
		if e.Metadata.RecipientID == "" {
			s.logger.WithField("email_id", e.Email.ID).Warn("pending email has no recipient id")
			continue
		}
		best, ok := byRecipient[e.Metadata.RecipientID]
		if !ok {
			byRecipient[e.Metadata.RecipientID] = e
			order = append(order, e.Metadata.RecipientID)
			continue
		}
		if e.Metadata.FollowUpNumber < best.Metadata.FollowUpNumber {
			byRecipient[e.Metadata.RecipientID] = e
		}
	}

	sort.Strings(order)
	selected := make([]*domain.EmailWithMetadata, 0, len(order))
	for _, recipientID := range order {
		selected = append(selected, byRecipient[recipientID])
	}
	return selected, nil
}
