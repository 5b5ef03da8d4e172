package whatsapp

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// SendError is a typed failure from the Cloud API send call. The raw
// response body is preserved for logging; callers must not retry within
// the same request.
type SendError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("whatsapp send failed: %v", e.Err)
	}
	return fmt.Sprintf("whatsapp send failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *SendError) Unwrap() error { return e.Err }

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	httpClient    *resty.Client
	phoneNumberID string
}

// NewClient creates a Cloud API client for one phone number.
func NewClient(baseURL, phoneNumberID, accessToken string, timeout time.Duration) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("whatsapp baseURL cannot be empty")
	}
	if phoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp phoneNumberID cannot be empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(accessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{
		httpClient:    httpClient,
		phoneNumberID: phoneNumberID,
	}, nil
}

// SendText sends a plain text message to a recipient.
func (c *Client) SendText(ctx context.Context, to, text string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text": map[string]interface{}{
			"preview_url": false,
			"body":        text,
		},
	}
	return c.send(ctx, payload)
}

// MarkRead marks an inbound message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	return c.send(ctx, payload)
}

func (c *Client) send(ctx context.Context, payload map[string]interface{}) error {
	url := fmt.Sprintf("/%s/messages", c.phoneNumberID)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("WhatsApp API request failed")
		return &SendError{Err: err}
	}

	if resp.IsError() {
		log.Error().
			Int("statusCode", resp.StatusCode()).
			Str("responseBody", string(resp.Body())).
			Msg("WhatsApp API returned an error")
		return &SendError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	return nil
}
