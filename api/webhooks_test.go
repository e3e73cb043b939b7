package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PankindProjects/pankind/sudoapi"
)

func signBody(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaymentEventSignature(t *testing.T) {
	handler := New(&sudoapi.BaseAPI{}).Handler()

	post := func(body string, sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payment", strings.NewReader(body))
		if sig != "" {
			req.Header.Set("X-Signature-Sha256", sig)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	// Unhandled event type, so a valid signature never reaches the ledger.
	body := `{"type":"payout.created","created":5,"data":{}}`

	if rec := post(body, signBody("hunter2", body)); rec.Code != 400 {
		t.Fatalf("Expected status 400 with no secret configured, got %d", rec.Code)
	}

	GatewayWebhookSecret.Update("hunter2")

	if rec := post(body, ""); rec.Code != 400 {
		t.Fatalf("Expected status 400 for missing signature, got %d", rec.Code)
	}
	if rec := post(body, signBody("not-the-secret", body)); rec.Code != 400 {
		t.Fatalf("Expected status 400 for bad signature, got %d", rec.Code)
	}
	if rec := post(`{bad json`, signBody("hunter2", `{bad json`)); rec.Code != 400 {
		t.Fatalf("Expected status 400 for malformed JSON, got %d", rec.Code)
	}

	rec := post(body, signBody("hunter2", body))
	if rec.Code != 200 {
		t.Fatalf("Expected status 200 for signed unknown event, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Skipped event") {
		t.Fatalf("Expected skipped event response, got %q", rec.Body.String())
	}
}
