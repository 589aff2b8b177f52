// Package mail sends transactional email, either through an HTTP mail API
// or, in development, by writing messages to the log.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jorenvermeersch/budget-api/internal/logging"
)

type Message struct {
	To       string
	ToName   string
	Subject  string
	Text     string
	HTML     string
	Category string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	From     address   `json:"from"`
	To       []address `json:"to"`
	Subject  string    `json:"subject"`
	Text     string    `json:"text,omitempty"`
	HTML     string    `json:"html,omitempty"`
	Category string    `json:"category,omitempty"`
}

// APISender posts messages as JSON to a Mailtrap-compatible send endpoint.
type APISender struct {
	client   *http.Client
	url      string
	apiKey   string
	from     string
	fromName string
}

func NewAPISender(url, apiKey, from, fromName string, timeout time.Duration) *APISender {
	return &APISender{
		client:   &http.Client{Timeout: timeout},
		url:      url,
		apiKey:   apiKey,
		from:     from,
		fromName: fromName,
	}
}

func (s *APISender) Send(ctx context.Context, m Message) error {
	payload, err := json.Marshal(sendRequest{
		From:     address{Email: s.from, Name: s.fromName},
		To:       []address{{Email: m.To, Name: m.ToName}},
		Subject:  m.Subject,
		Text:     m.Text,
		HTML:     m.HTML,
		Category: m.Category,
	})
	if err != nil {
		return fmt.Errorf("error encoding mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("error creating mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending mail: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSender logs messages instead of delivering them.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger.With("module", "mail")}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.logger.Info(ctx, "mail not delivered, no mail API configured", "to", m.To, "subject", m.Subject)
	// the body may carry a live reset token
	s.logger.Debug(ctx, "undelivered mail body", "to", m.To, "body", m.Text)
	return nil
}
