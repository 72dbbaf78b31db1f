package models

import (
	"encoding/json"
	"time"
)

// PaymentMethod identifies how the contribution was made.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodWallet       PaymentMethod = "wallet"
	PaymentMethodCash         PaymentMethod = "cash"
)

// PaymentSource is the entry path an event arrived through.
type PaymentSource string

const (
	PaymentSourceGateway PaymentSource = "gateway"
	PaymentSourceManual  PaymentSource = "manual"
)

// PaymentEvent is the canonical completion event. Gateway adapters parse raw
// payloads into it; the reconciler never sees gateway-specific shapes.
type PaymentEvent struct {
	TransactionID string
	// PayerIdentity is an email address or a user ID.
	PayerIdentity string
	Amount        int64
	GroupRef      string
	// Round is optional; 0 means the group's current round.
	Round          int
	Method         PaymentMethod
	Source         PaymentSource
	GatewayPayload json.RawMessage
	// OccurredAt is when the gateway completed the payment; zero means now.
	OccurredAt time.Time
}

// Payment is the immutable record of one completed transaction.
type Payment struct {
	ID string

	// TransactionID is globally unique; storage enforces it.
	TransactionID string

	GroupID string
	UserID  string
	Round   int
	Amount  int64
	Method  PaymentMethod
	Source  PaymentSource

	// Status is always "completed" once persisted.
	Status string

	// GatewayPayload is kept for audit only.
	GatewayPayload json.RawMessage

	CreatedAt time.Time
}

// PaymentStatusCompleted is the only persisted Payment status.
const PaymentStatusCompleted = "completed"

// RecordStatus is the state of a PaymentRecord.
type RecordStatus string

const (
	RecordStatusPending RecordStatus = "pending"
	RecordStatusPaid    RecordStatus = "paid"
)

// PaymentRecord is a member's obligation for one round. There is at most one
// per (group, user, round).
type PaymentRecord struct {
	ID      string
	GroupID string
	UserID  string
	Round   int
	Amount  int64
	Status  RecordStatus
	DueDate time.Time

	// PaidAt is zero until the record is paid.
	PaidAt   time.Time
	IsLate   bool
	DaysLate int

	// PaymentID links to the Payment that settled this record.
	PaymentID string
}

// MarkPaid settles the record and computes lateness against DueDate.
func (r *PaymentRecord) MarkPaid(paymentID string, paidAt time.Time) {
	r.Status = RecordStatusPaid
	r.PaymentID = paymentID
	r.PaidAt = paidAt
	r.IsLate = paidAt.After(r.DueDate)
	r.DaysLate = 0
	if r.IsLate {
		late := paidAt.Sub(r.DueDate)
		r.DaysLate = int(late / (24 * time.Hour))
		if late%(24*time.Hour) != 0 {
			r.DaysLate++
		}
	}
}
