package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testScheduled = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func TestNewEmailMetadata(t *testing.T) {
	m, err := NewEmailMetadata("r1", 0, EmailStatusPending, testScheduled)
	require.NoError(t, err)
	assert.True(t, m.IsInitial())
	assert.Nil(t, m.InitialEmailID)

	m, err = NewEmailMetadata("r1", 2, EmailStatusPending, testScheduled, WithInitialEmailID("e0"))
	require.NoError(t, err)
	assert.False(t, m.IsInitial())
	assert.Equal(t, "e0", *m.InitialEmailID)
}

func TestEmailMetadataInvariants(t *testing.T) {
	// FAILED requires a non-blank reason.
	_, err := NewEmailMetadata("r1", 0, EmailStatusFailed, testScheduled)
	require.Error(t, err)

	// A blank reason is normalized to nil and then rejected.
	_, err = NewEmailMetadata("r1", 0, EmailStatusFailed, testScheduled, WithFailureReason("   "))
	require.Error(t, err)

	m, err := NewEmailMetadata("r1", 0, EmailStatusFailed, testScheduled, WithFailureReason("quota exceeded"))
	require.NoError(t, err)
	assert.Equal(t, "quota exceeded", *m.FailureReason)

	// SENT requires a sent date.
	_, err = NewEmailMetadata("r1", 0, EmailStatusSent, testScheduled)
	require.Error(t, err)

	sent := testScheduled.AddDate(0, 0, 1)
	m, err = NewEmailMetadata("r1", 0, EmailStatusSent, testScheduled, WithSentDate(sent))
	require.NoError(t, err)
	assert.Equal(t, sent, *m.SentDate)

	_, err = NewEmailMetadata("", 0, EmailStatusPending, testScheduled)
	assert.Error(t, err)

	_, err = NewEmailMetadata("r1", -1, EmailStatusPending, testScheduled)
	assert.Error(t, err)
}

func TestEmailMetadataTransitions(t *testing.T) {
	m, err := NewEmailMetadata("r1", 0, EmailStatusPending, testScheduled)
	require.NoError(t, err)

	sentAt := testScheduled.AddDate(0, 0, 2)
	sent, err := m.MarkSent(sentAt)
	require.NoError(t, err)
	assert.Equal(t, EmailStatusSent, sent.Status)
	assert.Equal(t, sentAt, *sent.SentDate)
	// The original record is untouched.
	assert.Equal(t, EmailStatusPending, m.Status)

	// Terminal states admit no further transitions.
	_, err = sent.MarkFailed("late failure")
	assert.Error(t, err)
	_, err = sent.MarkSent(sentAt)
	assert.Error(t, err)
	_, err = sent.Cancel()
	assert.Error(t, err)

	failed, err := m.MarkFailed("smtp 550")
	require.NoError(t, err)
	assert.Equal(t, EmailStatusFailed, failed.Status)
	assert.Equal(t, "smtp 550", *failed.FailureReason)

	_, err = m.MarkFailed("  ")
	assert.Error(t, err)

	cancelled, err := m.Cancel()
	require.NoError(t, err)
	assert.Equal(t, EmailStatusCancelled, cancelled.Status)
}

func TestEmailMetadataReschedule(t *testing.T) {
	m, err := NewEmailMetadata("r1", 1, EmailStatusPending, testScheduled, WithInitialEmailID("e0"))
	require.NoError(t, err)

	moved, err := m.Reschedule(testScheduled.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, testScheduled.AddDate(0, 0, 5), moved.ScheduledDate)

	sent, err := m.MarkSent(testScheduled)
	require.NoError(t, err)
	_, err = sent.Reschedule(testScheduled)
	assert.Error(t, err)
}

func TestEmailValidate(t *testing.T) {
	email := &Email{
		ID:        "e1",
		Sender:    "sender@example.com",
		Recipient: "to@example.com",
		Subject:   "Hello",
		Body:      "Body",
		Type:      TemplateTypeInitial,
	}
	require.NoError(t, email.Validate())

	bad := *email
	bad.Recipient = "not-an-address"
	assert.Error(t, bad.Validate())

	bad = *email
	bad.Subject = "  "
	assert.Error(t, bad.Validate())
}

func TestEmailStatusTerminal(t *testing.T) {
	assert.False(t, EmailStatusPending.IsTerminal())
	assert.True(t, EmailStatusSent.IsTerminal())
	assert.True(t, EmailStatusFailed.IsTerminal())
	assert.True(t, EmailStatusCancelled.IsTerminal())
}
