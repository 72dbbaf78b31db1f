// Package models defines the core domain models for kameti groups.
//
// # Models
//
//   - Group: the kameti header (contribution amount, rounds, policy, status)
//   - Member: one participant, embedded in Group in join order
//   - Payment: canonical completed transaction, unique per TransactionID
//   - PaymentRecord: per-member, per-round contribution obligation
//   - Payout: append-only disbursement, one per (group, round)
//   - PaymentEvent: the canonical completion event every gateway adapter produces
//
// # Money
//
// Amounts are int64 minor units (paisa, cents). A contribution of 1000.00 is
// stored as 100000.
//
// # Relationships
//
// Models reference each other by ID strings, never by pointer. Members are
// owned by their Group and persisted alongside it; Group.Version guards every
// write of the aggregate.
package models
