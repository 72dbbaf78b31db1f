// Package api defines the kameti.v1.KametiService wire contract: request and
// response messages, procedure names, the JSON codec and a typed client.
package api

import "time"

// Group is the wire form of a kameti.
type Group struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	CreatedBy    string      `json:"created_by"`
	Amount       int64       `json:"amount"`
	TotalMembers int         `json:"total_members"`
	CurrentRound int         `json:"current_round"`
	TotalRounds  int         `json:"total_rounds"`
	PayoutOrder  string      `json:"payout_order"`
	CountPolicy  CountPolicy `json:"count_policy"`
	Status       string      `json:"status"`
	Frequency    string      `json:"frequency"`
	StartDate    time.Time   `json:"start_date"`
	Members      []Member    `json:"members"`
	Version      int64       `json:"version"`
	CreatedAt    time.Time   `json:"created_at"`
}

// CountPolicy is strict, override_count or override_amount.
type CountPolicy struct {
	Kind  string `json:"kind"`
	Value int64  `json:"value,omitempty"`
}

type Member struct {
	UserID            string    `json:"user_id"`
	Position          int       `json:"position"`
	PaymentStatus     string    `json:"payment_status"`
	LastPaymentRef    string    `json:"last_payment_ref,omitempty"`
	HasReceivedPayout bool      `json:"has_received_payout"`
	PayoutRound       int       `json:"payout_round,omitempty"`
	JoinedAt          time.Time `json:"joined_at"`
}

type Payment struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	GroupID       string    `json:"group_id"`
	UserID        string    `json:"user_id"`
	Round         int       `json:"round"`
	Amount        int64     `json:"amount"`
	Method        string    `json:"method"`
	Source        string    `json:"source"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

type PaymentRecord struct {
	ID        string     `json:"id"`
	GroupID   string     `json:"group_id"`
	UserID    string     `json:"user_id"`
	Round     int        `json:"round"`
	Amount    int64      `json:"amount"`
	Status    string     `json:"status"`
	DueDate   time.Time  `json:"due_date"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	IsLate    bool       `json:"is_late"`
	DaysLate  int        `json:"days_late,omitempty"`
	PaymentID string     `json:"payment_id,omitempty"`
}

type Payout struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	Round       int       `json:"round"`
	RecipientID string    `json:"recipient_id"`
	Amount      int64     `json:"amount"`
	Status      string    `json:"status"`
	ProcessedBy string    `json:"processed_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Readiness explains whether a round can be paid out.
type Readiness struct {
	Ready              bool   `json:"ready"`
	Reason             string `json:"reason"`
	PaidCount          int    `json:"paid_count"`
	TotalMembers       int    `json:"total_members"`
	PoolAmount         int64  `json:"pool_amount"`
	EligibleRecipients int    `json:"eligible_recipients"`
	Round              int    `json:"round"`
	TotalRounds        int    `json:"total_rounds"`
	GroupStatus        string `json:"group_status"`
}

// CreateGroupRequest creates a kameti owned by the caller.
type CreateGroupRequest struct {
	Name         string `json:"name"`
	Amount       int64  `json:"amount"`
	TotalMembers int    `json:"total_members"`
	PayoutOrder  string `json:"payout_order,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	// StartDate is YYYY-MM-DD; empty means today.
	StartDate  string `json:"start_date,omitempty"`
	OwnerJoins bool   `json:"owner_joins"`
}

// GroupResponse carries the group after a group operation.
type GroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id"`
}

// JoinGroupRequest adds the caller to a pending kameti.
type JoinGroupRequest struct {
	GroupID string `json:"group_id"`
}

type ActivateGroupRequest struct {
	GroupID string `json:"group_id"`
}

type CancelGroupRequest struct {
	GroupID string `json:"group_id"`
}

type SetCountPolicyRequest struct {
	GroupID string      `json:"group_id"`
	Policy  CountPolicy `json:"policy"`
}

// InitiatePaymentRequest opens the caller's contribution for the current round.
type InitiatePaymentRequest struct {
	GroupID string `json:"group_id"`
}

type InitiatePaymentResponse struct {
	Record *PaymentRecord `json:"record"`
}

// ReconcilePaymentRequest is the operator fallback for a payment the gateway
// never reported.
type ReconcilePaymentRequest struct {
	TransactionID string `json:"transaction_id"`
	PayerIdentity string `json:"payer_identity"`
	Amount        int64  `json:"amount"`
	GroupID       string `json:"group_id"`
	Round         int    `json:"round,omitempty"`
	Method        string `json:"method,omitempty"`
}

type ReconcilePaymentResponse struct {
	Payment   *Payment       `json:"payment"`
	Record    *PaymentRecord `json:"record,omitempty"`
	Duplicate bool           `json:"duplicate"`
	Readiness *Readiness     `json:"readiness,omitempty"`
}

type GetRoundReadinessRequest struct {
	GroupID string `json:"group_id"`
	// Round 0 means the current round.
	Round int `json:"round,omitempty"`
}

type GetRoundReadinessResponse struct {
	Readiness *Readiness `json:"readiness"`
}

type ProcessPayoutRequest struct {
	GroupID string `json:"group_id"`
	// RecipientID overrides the payout order when set.
	RecipientID string `json:"recipient_id,omitempty"`
}

type ProcessPayoutResponse struct {
	Payout      *Payout `json:"payout"`
	NextRound   int     `json:"next_round"`
	IsCompleted bool    `json:"is_completed"`
	GroupStatus string  `json:"group_status"`
}

type ListPayoutsRequest struct {
	GroupID string `json:"group_id"`
}

type ListPayoutsResponse struct {
	Payouts []*Payout `json:"payouts"`
}

type ListPaymentRecordsRequest struct {
	GroupID string `json:"group_id"`
	// Round 0 lists every round.
	Round int `json:"round,omitempty"`
}

type ListPaymentRecordsResponse struct {
	Records []*PaymentRecord `json:"records"`
}
