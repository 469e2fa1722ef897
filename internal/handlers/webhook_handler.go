package handlers

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/degentalk/ledger/internal/services"
)

const (
	SignatureHeader          = "X-Signature"
	SignatureTimestampHeader = "X-Signature-Timestamp"
)

type WebhookHandler struct {
	processor *services.WebhookProcessor
	secret    string
	tolerance time.Duration
	audit     *services.AuditLogger
	now       func() time.Time
}

func NewWebhookHandler(processor *services.WebhookProcessor, secret string, tolerance time.Duration) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		secret:    secret,
		tolerance: tolerance,
		audit:     services.NewAuditLogger(),
		now:       time.Now,
	}
}

// HandlePaymentEvent receives a payment provider notification
// @Summary Payment provider webhook
// @Description Verify, store and reconcile a provider event. Redeliveries are acknowledged without side effects.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Signature header string true "hex HMAC-SHA256 of timestamp.payload"
// @Param X-Signature-Timestamp header string true "unix seconds"
// @Param request body models.WebhookPayload true "Provider event"
// @Success 200 {object} object{status=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 401 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /webhooks/payments [post]
func (h *WebhookHandler) HandlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	err = services.VerifySignature(payload, r.Header.Get(SignatureHeader), h.secret,
		r.Header.Get(SignatureTimestampHeader), h.now(), h.tolerance)
	if err != nil {
		h.audit.LogSecurity(r.RemoteAddr, err.Error())
		services.SendErrorResponse(w, "Invalid signature", http.StatusUnauthorized, nil)
		return
	}

	event, err := h.processor.ParseEvent(payload)
	if err != nil {
		log.Printf("[WEBHOOK] rejected payload: %v", err)
		services.SendErrorResponse(w, "Invalid payload", http.StatusBadRequest, nil)
		return
	}

	outcome, err := h.processor.ProcessEvent(r.Context(), event)
	if err != nil {
		if services.IsTerminalWebhookError(err) {
			// Acknowledge so the provider stops redelivering
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "reason": err.Error()})
			return
		}
		services.SendErrorResponse(w, "Event processing failed", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}
