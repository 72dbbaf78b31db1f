// Package gateway adapts payment gateway payloads into canonical payment events.
package gateway

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "github.com/mmynk/kameti/internal/errors"
	"github.com/mmynk/kameti/internal/models"
)

// EventCompleted is the only gateway event type that settles a contribution.
const EventCompleted = "payment.completed"

// minorUnits is the number of fractional digits in the settlement currency.
const minorUnits = 2

// payload is the gateway's webhook body.
type payload struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Amount        string            `json:"amount"`
		CustomerEmail string            `json:"customer_email"`
		CustomerID    string            `json:"customer_id"`
		PaymentMethod string            `json:"payment_method"`
		Metadata      map[string]string `json:"metadata"`
	} `json:"data"`
}

// ParseEvent decodes a raw gateway body into a PaymentEvent. The raw body is
// kept on the event for audit.
func ParseEvent(raw []byte) (models.PaymentEvent, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.PaymentEvent{}, apperrors.Wrap(apperrors.CodeInvalidArgument, "malformed gateway payload", err)
	}
	if p.Type != EventCompleted {
		return models.PaymentEvent{}, apperrors.Newf(apperrors.CodeNotSupported, "unsupported gateway event type %q", p.Type)
	}
	if p.ID == "" {
		return models.PaymentEvent{}, apperrors.New(apperrors.CodeInvalidArgument, "gateway event has no transaction id")
	}

	amount, err := ParseAmount(p.Data.Amount)
	if err != nil {
		return models.PaymentEvent{}, err
	}

	payer := p.Data.CustomerEmail
	if payer == "" {
		payer = p.Data.CustomerID
	}

	var round int
	if v := p.Data.Metadata["round"]; v != "" {
		round, err = strconv.Atoi(v)
		if err != nil || round < 0 {
			return models.PaymentEvent{}, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid round %q", v)
		}
	}

	method := models.PaymentMethod(p.Data.PaymentMethod)
	if method == "" {
		method = models.PaymentMethodCard
	}

	event := models.PaymentEvent{
		TransactionID:  p.ID,
		PayerIdentity:  payer,
		Amount:         amount,
		GroupRef:       p.Data.Metadata["kameti_id"],
		Round:          round,
		Method:         method,
		Source:         models.PaymentSourceGateway,
		GatewayPayload: json.RawMessage(raw),
	}
	if p.Created > 0 {
		event.OccurredAt = time.Unix(p.Created, 0).UTC()
	}
	return event, nil
}

// ParseAmount converts a decimal major-unit string ("1000.50") to minor units.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, apperrors.Wrap(apperrors.CodeInvalidArgument, fmt.Sprintf("invalid amount %q", s), err)
	}
	if !d.IsPositive() {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "amount must be positive, got %s", s)
	}
	minor := d.Shift(minorUnits)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "amount %s has more than %d decimal places", s, minorUnits)
	}
	if !minor.BigInt().IsInt64() {
		return 0, apperrors.Newf(apperrors.CodeInvalidArgument, "amount %s out of range", s)
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units as a decimal major-unit string.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -minorUnits).StringFixed(minorUnits)
}

// ManualEvent builds the event an operator submits when the gateway webhook
// never arrived.
func ManualEvent(transactionID, payer, groupID string, round int, amount int64, method models.PaymentMethod) models.PaymentEvent {
	if method == "" {
		method = models.PaymentMethodCash
	}
	return models.PaymentEvent{
		TransactionID: transactionID,
		PayerIdentity: payer,
		Amount:        amount,
		GroupRef:      groupID,
		Round:         round,
		Method:        method,
		Source:        models.PaymentSourceManual,
	}
}
