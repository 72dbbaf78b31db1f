package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/mmynk/kameti/internal/engine"
	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/models"
)

// SignatureHeader carries the gateway's hex HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Gateway-Signature"

const maxBodyBytes = 1 << 20

// Reconciler applies canonical payment events.
type Reconciler interface {
	Reconcile(ctx context.Context, event models.PaymentEvent) (*engine.ReconcileResult, error)
}

// WebhookHandler receives gateway payment notifications.
type WebhookHandler struct {
	reconciler Reconciler
	secret     []byte
}

// NewWebhookHandler verifies bodies against secret. With an empty secret
// every delivery is rejected.
func NewWebhookHandler(reconciler Reconciler, secret string) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler, secret: []byte(secret)}
}

type webhookResponse struct {
	PaymentID string `json:"payment_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, webhookResponse{Error: "method not allowed"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, webhookResponse{Error: "failed to read body"})
		return
	}

	if len(h.secret) == 0 {
		slog.ErrorContext(r.Context(), "Gateway webhook rejected", "reason", "no signing secret configured")
		writeJSON(w, http.StatusUnauthorized, webhookResponse{Error: "webhook signing secret not configured"})
		return
	}
	if !VerifySignature(h.secret, body, r.Header.Get(SignatureHeader)) {
		slog.WarnContext(r.Context(), "Gateway webhook rejected", "reason", "bad signature")
		writeJSON(w, http.StatusUnauthorized, webhookResponse{Error: "invalid signature"})
		return
	}

	event, err := ParseEvent(body)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	slog.InfoContext(r.Context(), "Gateway webhook received",
		"transaction_id", event.TransactionID, "group_id", event.GroupRef)

	result, err := h.reconciler.Reconcile(r.Context(), event)
	if err != nil {
		h.fail(w, r, event.TransactionID, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{PaymentID: result.Payment.ID, Duplicate: result.Duplicate})
}

func (h *WebhookHandler) fail(w http.ResponseWriter, r *http.Request, transactionID string, err error) {
	code := apperrors.CodeOf(err)
	slog.ErrorContext(r.Context(), "Gateway webhook failed", "transaction_id", transactionID, "code", code, "error", err)
	writeJSON(w, httpStatus(code), webhookResponse{Error: err.Error(), Code: string(code)})
}

// httpStatus maps domain codes to webhook responses. Only persistence
// failures invite the gateway to retry.
func httpStatus(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidArgument, apperrors.CodeNotSupported:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodePersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// VerifySignature reports whether signature is the hex HMAC-SHA256 of body.
func VerifySignature(secret, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
