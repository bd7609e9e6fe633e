// Package notify delivers order confirmations: it publishes order-placed
// events, consumes them, renders the invoice and hands it to a mail
// provider.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers one email. A non-nil error means it was not accepted.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type PostmarkSender struct {
	Client *postmark.Client
	From   string
}

func NewPostmarkSender(token, from string) *PostmarkSender {
	return &PostmarkSender{Client: postmark.NewClient(token, ""), From: from}
}

func (s *PostmarkSender) Send(_ context.Context, m Message) error {
	res, err := s.Client.SendEmail(postmark.Email{
		From:     s.From,
		To:       m.To,
		Subject:  m.Subject,
		HtmlBody: m.HTML,
		TextBody: m.Text,
		Tag:      "order-confirmation",
	})
	if err != nil {
		return fmt.Errorf("postmark: %w", err)
	}
	if res.ErrorCode != 0 {
		return fmt.Errorf("postmark: %d %s", res.ErrorCode, res.Message)
	}
	return nil
}

type SendgridSender struct {
	Client *sendgrid.Client
	From   string
}

func NewSendgridSender(apiKey, from string) *SendgridSender {
	return &SendgridSender{Client: sendgrid.NewSendClient(apiKey), From: from}
}

func (s *SendgridSender) Send(ctx context.Context, m Message) error {
	msg := mail.NewSingleEmail(mail.NewEmail("", s.From), m.Subject, mail.NewEmail("", m.To), m.Text, m.HTML)
	res, err := s.Client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// LogSender only logs; used when no provider is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, m Message) error {
	log.Printf("notify: mail to=%s subject=%q (%d bytes html)", m.To, m.Subject, len(m.HTML))
	return nil
}

var ErrUnknownProvider = errors.New("unknown mail provider")

// NewSender picks the provider by name: postmark, sendgrid or log.
func NewSender(provider, postmarkToken, sendgridKey, from string) (Sender, error) {
	switch provider {
	case "postmark":
		return NewPostmarkSender(postmarkToken, from), nil
	case "sendgrid":
		return NewSendgridSender(sendgridKey, from), nil
	case "log", "":
		return LogSender{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
}
