package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/PankindProjects/pankind/internal/config"
)

var GatewayWebhookSecret = config.GenFlag[string]("integrations.gateway.webhook_secret", "", "Shared secret for verifying payment gateway webhook signatures")

type gatewayEvent struct {
	Type    string          `json:"type"`
	Created int             `json:"created"`
	Data    json.RawMessage `json:"data"`
}

type paymentEventData struct {
	PaymentReference string `json:"payment_reference"`

	// Reason is only set on payment.failed events.
	Reason string `json:"failure_reason"`
}

// paymentEvent handles a signed notification from the payment gateway.
// Settlements and failures are keyed by payment reference, so replayed
// deliveries are absorbed without double-applying.
func (s *API) paymentEvent(w http.ResponseWriter, r *http.Request) {
	if GatewayWebhookSecret.Value() == "" {
		slog.WarnContext(r.Context(), "payment_event was POSTed but no secret was specified in config file")
		errorData(w, "Gateway secret not rolled out", 400)
		return
	}

	if r.Header.Get("X-Signature-Sha256") == "" {
		errorData(w, "Invalid signature", 400)
		return
	}
	mac := hmac.New(sha256.New, []byte(GatewayWebhookSecret.Value()))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r.Body); err != nil {
		slog.WarnContext(r.Context(), "Couldn't read body to buffer", slog.Any("err", err))
		errorData(w, "Couldn't read body to buffer", 500)
		return
	}
	mac.Write(buf.Bytes())
	expectedMAC := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expectedMAC), []byte(r.Header.Get("X-Signature-Sha256"))) {
		errorData(w, "Invalid signature", 400)
		return
	}

	var event gatewayEvent
	if err := json.NewDecoder(&buf).Decode(&event); err != nil {
		slog.WarnContext(r.Context(), "Invalid JSON", slog.Any("err", err))
		errorData(w, "Invalid JSON", 400)
		return
	}

	switch event.Type {
	case "payment.succeeded":
		var data paymentEventData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			slog.WarnContext(r.Context(), "Invalid JSON payment data", slog.Any("err", err))
			errorData(w, "Invalid JSON payment data", 400)
			return
		}
		if _, err := s.base.CompleteDonationByReference(r.Context(), data.PaymentReference); err != nil {
			statusError(w, err)
			return
		}
	case "payment.failed":
		var data paymentEventData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			slog.WarnContext(r.Context(), "Invalid JSON payment data", slog.Any("err", err))
			errorData(w, "Invalid JSON payment data", 400)
			return
		}
		if _, err := s.base.FailDonationByReference(r.Context(), data.PaymentReference, data.Reason); err != nil {
			statusError(w, err)
			return
		}
	default:
		slog.InfoContext(r.Context(), "Skipping unhandled gateway event", slog.String("type", event.Type))
		returnData(w, "Skipped event")
		return
	}

	returnData(w, "Processed event")
}
