// Package mailer is the API server's client for the mail relay, the
// small SMTP-speaking service that actually delivers OTP emails.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client posts delivery requests to the mail relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the relay at baseURL, e.g. "http://localhost:5174".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SendOTP asks the relay to email the collection code to the contributor.
func (c *Client) SendOTP(ctx context.Context, email, otp string) error {
	payload, err := json.Marshal(map[string]string{
		"email": email,
		"otp":   otp,
	})
	if err != nil {
		return fmt.Errorf("encode otp request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send-otp", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build otp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send otp email: relay returned %s", resp.Status)
	}
	return nil
}
