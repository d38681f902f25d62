// Package sms delivers phone verification codes through the SMS Local HTTP API.
package sms

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

const (
	defaultTimeout = 15 * time.Second
	// DefaultBaseURL is the SMS Local bulk endpoint used when no base URL is configured.
	DefaultBaseURL = "https://app.smslocal.in/api/smsapi"
)

// ErrNotConfigured is returned when the client has no API key.
var ErrNotConfigured = errors.New("sms: API key not configured")

// Client sends verification codes via the SMS Local API (route=otp).
type Client struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewClient returns a client that uses the given API key and optional base URL/sender.
func NewClient(apiKey, baseURL, sender string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendCode sends code to phone. Non-digit characters are stripped from phone (e.g. "+91 98765-43210").
// The code is never included in returned errors.
func (c *Client) SendCode(ctx context.Context, phone, code string) error {
	if c.APIKey == "" {
		return ErrNotConfigured
	}
	numbers := digitsOnly(phone)
	if numbers == "" {
		return fmt.Errorf("sms: phone number %q has no digits", phone)
	}
	body := map[string]string{
		"route":     "otp",
		"numbers":   numbers,
		"variables": code,
	}
	if c.Sender != "" {
		body["sender_id"] = c.Sender
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("sms: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sms: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
