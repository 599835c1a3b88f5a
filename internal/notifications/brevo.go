package notifications

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

const defaultBrevoEndpoint = "https://api.brevo.com/v3/smtp/email"

type BrevoClient struct {
	apiKey      string
	senderEmail string
	senderName  string
	sandbox     bool
	endpoint    string
	httpClient  *http.Client
}

func NewBrevoClient(apiKey, senderEmail, senderName string, sandbox bool) *BrevoClient {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(senderEmail) == "" {
		return nil
	}
	if strings.TrimSpace(senderName) == "" {
		senderName = senderEmail
	}
	return &BrevoClient{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		sandbox:     sandbox,
		endpoint:    defaultBrevoEndpoint,
		httpClient:  &http.Client{Timeout: 8 * time.Second},
	}
}

// SendFollowupReminder mails a due follow-up reminder to the user who owns it.
func (c *BrevoClient) SendFollowupReminder(ctx context.Context, toEmail, toName, leadTitle, followupType, description string, due time.Time) (string, error) {
	if c == nil {
		return "", errors.New("brevo client is nil")
	}
	subject := fmt.Sprintf("Follow-up reminder: %s", leadTitle)
	htmlBody, err := buildFollowupReminderHTML(toName, leadTitle, followupType, description, due)
	if err != nil {
		return "", err
	}
	return c.sendHTML(ctx, toEmail, toName, subject, htmlBody)
}

// SendQuotationDecision notifies a quotation creator about an approval or rejection.
func (c *BrevoClient) SendQuotationDecision(ctx context.Context, toEmail, toName, quotationTitle, decision, comment string) (string, error) {
	if c == nil {
		return "", errors.New("brevo client is nil")
	}
	subject := fmt.Sprintf("Quotation %s: %s", decision, quotationTitle)
	htmlBody, err := buildQuotationDecisionHTML(toName, quotationTitle, decision, comment)
	if err != nil {
		return "", err
	}
	return c.sendHTML(ctx, toEmail, toName, subject, htmlBody)
}

type brevoSendRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	Headers     map[string]any `json:"headers,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

func (c *BrevoClient) sendHTML(ctx context.Context, toEmail, toName, subject, htmlBody string) (string, error) {
	if c == nil {
		return "", errors.New("brevo client is nil")
	}
	if strings.TrimSpace(toEmail) == "" {
		return "", errors.New("missing recipient email")
	}

	payload := brevoSendRequest{
		Sender:      brevoContact{Email: c.senderEmail, Name: c.senderName},
		To:          []brevoContact{{Email: toEmail, Name: toName}},
		Subject:     subject,
		HTMLContent: htmlBody,
	}
	if c.sandbox {
		payload.Headers = map[string]any{"X-Sib-Sandbox": "drop"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed brevoSendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", nil
	}
	return parsed.MessageID, nil
}
