package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message is one transactional email.
type Message struct {
	To            string
	RecipientName string
	Subject       string
	TextBody      string
	HTMLBody      string
}

// Sender delivers transactional email through a specific channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// HTTPSenderConfig configures the HTTP API sender.
type HTTPSenderConfig struct {
	BaseURL  string
	APIKey   string
	FromName string
	FromAddr string
	Client   *http.Client
}

// HTTPSender delivers email through the provider's REST API.
type HTTPSender struct {
	baseURL  string
	apiKey   string
	fromName string
	fromAddr string
	client   *http.Client
}

// NewHTTPSender constructs an HTTPSender.
func NewHTTPSender(cfg HTTPSenderConfig) (*HTTPSender, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("email: base URL is required")
	}
	if strings.TrimSpace(cfg.FromAddr) == "" {
		return nil, errors.New("email: from address is required")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSender{
		baseURL:  baseURL,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		fromName: strings.TrimSpace(cfg.FromName),
		fromAddr: strings.TrimSpace(cfg.FromAddr),
		client:   client,
	}, nil
}

// Name identifies the channel.
func (s *HTTPSender) Name() string {
	return "http-api"
}

type sendPayload struct {
	FromName      string `json:"fromName,omitempty"`
	FromAddr      string `json:"fromAddr"`
	To            string `json:"to"`
	RecipientName string `json:"recipientName,omitempty"`
	Subject       string `json:"subject"`
	TextBody      string `json:"textBody,omitempty"`
	HTMLBody      string `json:"htmlBody,omitempty"`
}

// Send posts the message to the provider API.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("email: recipient is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return errors.New("email: subject is required")
	}

	body, err := json.Marshal(sendPayload{
		FromName:      s.fromName,
		FromAddr:      s.fromAddr,
		To:            msg.To,
		RecipientName: strings.TrimSpace(msg.RecipientName),
		Subject:       msg.Subject,
		TextBody:      msg.TextBody,
		HTMLBody:      msg.HTMLBody,
	})
	if err != nil {
		return fmt.Errorf("email: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("email: provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
