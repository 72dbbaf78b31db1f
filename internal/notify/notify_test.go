package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSinkSignsBody(t *testing.T) {
	var got Message
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		signature = r.Header.Get(SignatureHeader)
		if signature != Sign([]byte("s3cret"), body) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, "s3cret")
	err := sink.Notify(context.Background(), Message{
		Kind:    KindPayoutDisbursed,
		GroupID: "g1",
		UserID:  "alice",
		Round:   1,
		Amount:  3000,
		Text:    "alice received 3000",
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if got.Kind != KindPayoutDisbursed || got.Amount != 3000 {
		t.Errorf("unexpected message: %+v", got)
	}
	if signature == "" {
		t.Error("expected signature header")
	}
}

func TestWebhookSinkReportsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.URL, "")
	if err := sink.Notify(context.Background(), Message{Kind: KindKametiClosed}); err == nil {
		t.Error("expected error for 502 response")
	}
}

type failingSink struct{}

func (failingSink) Notify(context.Context, Message) error { return errors.New("down") }

func TestMultiJoinsErrors(t *testing.T) {
	m := Multi{LogSink{}, failingSink{}}
	if err := m.Notify(context.Background(), Message{Kind: KindPaymentReceived}); err == nil {
		t.Error("expected joined error from failing sink")
	}
}
