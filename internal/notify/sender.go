package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

type OutgoingEmail struct {
	To      string                  `json:"to"`
	From    string                  `json:"from"`
	Subject string                  `json:"subject"`
	Body    string                  `json:"body"`
	Kind    domain.NotificationKind `json:"kind"`
}

type Sender interface {
	Send(ctx context.Context, email OutgoingEmail) error
}

// HTTPSender posts emails to the email service's /send endpoint.
type HTTPSender struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSender(baseURL string, client *http.Client) *HTTPSender {
	return &HTTPSender{baseURL: baseURL, client: client}
}

func (s *HTTPSender) Send(ctx context.Context, email OutgoingEmail) error {
	data, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/send", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	return nil
}
