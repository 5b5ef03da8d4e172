package api

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/leadline/internal/whatsapp"
)

// WebhookHandler terminates the messaging platform's webhook: the GET
// verification handshake and the POST delivery endpoint.
type WebhookHandler struct {
	verifyToken     string
	appSecret       string
	verifySignature bool
	processor       *Processor
}

// NewWebhookHandler creates the webhook handler
func NewWebhookHandler(verifyToken, appSecret string, verifySignature bool, processor *Processor) *WebhookHandler {
	return &WebhookHandler{
		verifyToken:     verifyToken,
		appSecret:       appSecret,
		verifySignature: verifySignature,
		processor:       processor,
	}
}

// Verify handles the subscription handshake: echo the challenge back
// when the mode and token match, refuse otherwise.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		log.Info().Msg("Webhook verified successfully")
		return c.String(http.StatusOK, challenge)
	}
	return c.JSON(http.StatusForbidden, map[string]string{
		"status":  "fail",
		"message": "Webhook verification failed",
	})
}

// Receive handles a delivery. The 200 acknowledgement goes out before
// any processing so the platform never retries on our latency; all
// failures after the body read are logged and swallowed.
func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read webhook body")
		return c.String(http.StatusOK, "EVENT_RECEIVED")
	}

	if err := c.String(http.StatusOK, "EVENT_RECEIVED"); err != nil {
		return err
	}

	signature := c.Request().Header.Get("X-Hub-Signature-256")

	go func() {
		if h.verifySignature && !whatsapp.VerifySignature(h.appSecret, body, signature) {
			log.Warn().Msg("Invalid webhook signature")
			return
		}

		events, err := whatsapp.ParseEnvelope(body)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to parse webhook payload")
			return
		}
		if len(events) == 0 {
			return
		}

		h.processor.Process(context.Background(), events)
	}()

	return nil
}
