// Package gmailgw adapts the Gmail API to the domain's mail gateway port.
// Messages are assembled as MIME with go-mail and submitted base64url-encoded
// through the users.messages and users.drafts endpoints.
package gmailgw

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/wneessen/go-mail"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/phleudt/mailscheduler/internal/domain"
)

// Gateway implements domain.MailGateway on the Gmail v1 API.
type Gateway struct {
	service *gmail.Service
}

// NewGateway creates a gateway over an authenticated HTTP client.
func NewGateway(ctx context.Context, client *http.Client) (*Gateway, error) {
	service, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}
	return &Gateway{service: service}, nil
}

// Send dispatches the email. A non-nil threadID threads the message into the
// existing conversation; Gmail then reports the thread id back, which is how
// initial sends learn theirs.
func (g *Gateway) Send(ctx context.Context, email *domain.Email, threadID *string) (*domain.SendResult, error) {
	message, err := g.buildMessage(email, threadID)
	if err != nil {
		return nil, err
	}

	sent, err := g.service.Users.Messages.Send("me", message).Context(ctx).Do()
	if err != nil {
		return nil, &domain.GatewayError{Operation: "messages.send", Err: err}
	}

	result := &domain.SendResult{Status: domain.SendStatusSuccess}
	if sent.ThreadId != "" {
		result.ThreadID = &sent.ThreadId
	}
	return result, nil
}

// SaveDraft stores the email as a draft instead of sending it.
func (g *Gateway) SaveDraft(ctx context.Context, email *domain.Email, threadID *string) (*domain.SendResult, error) {
	message, err := g.buildMessage(email, threadID)
	if err != nil {
		return nil, err
	}

	draft, err := g.service.Users.Drafts.Create("me", &gmail.Draft{Message: message}).Context(ctx).Do()
	if err != nil {
		return nil, &domain.GatewayError{Operation: "drafts.create", Err: err}
	}

	result := &domain.SendResult{Status: domain.SendStatusSuccess}
	if draft.Message != nil && draft.Message.ThreadId != "" {
		result.ThreadID = &draft.Message.ThreadId
	}
	return result, nil
}

// HasReplies reports whether the thread holds strictly more messages than
// expectedMessageCount, i.e. someone other than us has written.
func (g *Gateway) HasReplies(ctx context.Context, threadID string, expectedMessageCount int) (bool, error) {
	thread, err := g.service.Users.Threads.Get("me", threadID).
		Format("minimal").
		Context(ctx).
		Do()
	if err != nil {
		return false, &domain.GatewayError{Operation: "threads.get", Err: err}
	}
	return len(thread.Messages) > expectedMessageCount, nil
}

func (g *Gateway) buildMessage(email *domain.Email, threadID *string) (*gmail.Message, error) {
	msg := mail.NewMsg()
	if err := msg.From(string(email.Sender)); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(string(email.Recipient)); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Body)

	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		return nil, fmt.Errorf("failed to assemble message: %w", err)
	}

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw.Bytes()),
	}
	if threadID != nil {
		message.ThreadId = *threadID
	}
	return message, nil
}
