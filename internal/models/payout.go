package models

import "time"

// PayoutStatusCompleted is the status written by the payout processor.
const PayoutStatusCompleted = "completed"

// Payout is an append-only disbursement of one round's pool to one member.
type Payout struct {
	// ID is the unique identifier for the payout (UUID format).
	ID string

	// GroupID and Round are unique together.
	GroupID string
	Round   int

	// RecipientID is the user who received the pool.
	RecipientID string

	// Amount is per-member amount x members who paid this round.
	Amount int64

	Status string

	// ProcessedBy is the user ID of the actor who triggered the payout.
	ProcessedBy string

	CreatedAt time.Time
}
