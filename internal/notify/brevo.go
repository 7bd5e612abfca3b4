package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const brevoEndpoint = "https://api.brevo.com/v3/smtp/email"

// Brevo sends transactional email through the Brevo (Sendinblue) HTTP API.
type Brevo struct {
	apiKey     string
	fromEmail  string
	fromName   string
	endpoint   string
	httpClient *http.Client
}

func NewBrevo(apiKey, fromEmail string) (*Brevo, error) {
	apiKey = strings.TrimSpace(apiKey)
	fromEmail = strings.TrimSpace(fromEmail)
	if apiKey == "" || fromEmail == "" {
		return nil, fmt.Errorf("brevo api key and from address are required")
	}

	return &Brevo{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  "TMIS Business Guru",
		endpoint:  brevoEndpoint,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}, nil
}

type brevoRecipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoPayload struct {
	Sender      brevoRecipient   `json:"sender"`
	To          []brevoRecipient `json:"to"`
	Subject     string           `json:"subject"`
	HTMLContent string           `json:"htmlContent"`
}

type brevoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (b *Brevo) Send(ctx context.Context, msg Message) error {
	to := make([]brevoRecipient, 0, len(msg.To))
	for _, addr := range msg.To {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			to = append(to, brevoRecipient{Email: addr})
		}
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	payload := brevoPayload{
		Sender:      brevoRecipient{Email: b.fromEmail, Name: b.fromName},
		To:          to,
		Subject:     msg.Subject,
		HTMLContent: msg.HTML,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode brevo payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var apiErr brevoError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("brevo send failed: %s (%s)", apiErr.Message, apiErr.Code)
	}

	return fmt.Errorf("brevo send failed with status %d", resp.StatusCode)
}
